package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/amasui/aniarr/internal/controllers"
	"github.com/amasui/aniarr/internal/models"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scrape sessions untouched this long are considered abandoned
const staleSessionCutoff = 24 * time.Hour

// Scheduler manages scheduled tasks
type Scheduler struct {
	cron       *cron.Cron
	scrapeCtrl *controllers.ScrapeController
	db         *models.Database
	logger     *logrus.Logger
}

// NewScheduler creates a new scheduler
func NewScheduler(scrapeCtrl *controllers.ScrapeController, db *models.Database, logger *logrus.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		scrapeCtrl: scrapeCtrl,
		db:         db,
		logger:     logger,
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.logger.Info("Starting scheduler")

	// Every 5 minutes: autosave live scrape session progress
	_, err := s.cron.AddFunc("*/5 * * * *", func() {
		s.runProgressAutosave()
	})
	if err != nil {
		return fmt.Errorf("failed to add autosave job: %w", err)
	}

	// Every hour: expire abandoned scrape sessions
	_, err = s.cron.AddFunc("0 * * * *", func() {
		s.runStaleSessionCleanup()
	})
	if err != nil {
		return fmt.Errorf("failed to add stale session job: %w", err)
	}

	// Daily: prune watch progress pointing at deleted anime
	_, err = s.cron.AddFunc("0 4 * * *", func() {
		s.runOrphanProgressPrune()
	})
	if err != nil {
		return fmt.Errorf("failed to add orphan prune job: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started")
	return nil
}

// Stop stops the scheduler
func (s *Scheduler) Stop() {
	s.logger.Info("Stopping scheduler")
	s.cron.Stop()
}

// runProgressAutosave flushes in-memory scrape progress to the store so a
// crash between chunk boundaries loses at most a few minutes
func (s *Scheduler) runProgressAutosave() {
	if err := s.scrapeCtrl.FlushProgress(); err != nil {
		s.logger.WithError(err).Error("Progress autosave failed")
	} else {
		s.logger.Debug("Scrape progress autosaved")
	}
}

// runStaleSessionCleanup drops stored scrape sessions nothing has touched
// for a day
func (s *Scheduler) runStaleSessionCleanup() {
	sessions, err := s.db.ListScrapeProgress()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list scrape sessions")
		return
	}

	cutoff := time.Now().Add(-staleSessionCutoff)
	removed := 0
	for _, session := range sessions {
		if session.Status == models.ScrapeStatusInProgress {
			continue
		}
		if session.UpdatedAt.Before(cutoff) {
			if err := s.db.DeleteScrapeProgress(session.AnimeID); err != nil {
				s.logger.WithError(err).WithField("anime_id", session.AnimeID).Error("Failed to delete stale session")
				continue
			}
			removed++
		}
	}

	if removed > 0 {
		s.logger.WithField("count", removed).Info("Removed stale scrape sessions")
	}
}

// runOrphanProgressPrune removes watch progress rows whose anime is gone
func (s *Scheduler) runOrphanProgressPrune() {
	progress, err := s.db.ListWatchProgress()
	if err != nil {
		s.logger.WithError(err).Error("Failed to list watch progress")
		return
	}

	removed := 0
	for _, p := range progress {
		_, err := s.db.GetAnimeByID(p.AnimeID)
		if err == nil {
			continue
		}
		if !errors.Is(err, models.ErrNotFound) {
			s.logger.WithError(err).Error("Failed to load anime during prune")
			continue
		}
		if err := s.db.DeleteWatchProgressByID(p.ID); err != nil {
			s.logger.WithError(err).Error("Failed to delete orphan watch progress")
			continue
		}
		removed++
	}

	if removed > 0 {
		s.logger.WithField("count", removed).Info("Pruned orphan watch progress")
	}
}
