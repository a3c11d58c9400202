package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amasui/aniarr/internal/models"
	"github.com/sirupsen/logrus"
)

var (
	// ErrNoReconcileSession is returned when no candidate session is open for an anime
	ErrNoReconcileSession = errors.New("no reconcile session for this anime")
	// ErrCommitInFlight is returned when closing a session mid-commit without force
	ErrCommitInFlight = errors.New("a commit is in flight; close requires force")
	// ErrUnknownCandidate is returned when committing an episode number not in the session
	ErrUnknownCandidate = errors.New("no such candidate in this session")
)

// BulkOutcome classifies the result of a bulk commit run.
// Exactly one outcome is produced per run.
type BulkOutcome string

const (
	BulkOutcomeAllAdded  BulkOutcome = "all_added"
	BulkOutcomePartial   BulkOutcome = "partial"
	BulkOutcomeAllFailed BulkOutcome = "all_failed"
	BulkOutcomeNothing   BulkOutcome = "nothing_to_do"
	BulkOutcomeCancelled BulkOutcome = "cancelled"
)

// BulkResult summarizes one bulk commit run
type BulkResult struct {
	Outcome   BulkOutcome `json:"outcome"`
	Message   string      `json:"message"`
	Added     int         `json:"added"`
	Failed    int         `json:"failed"`
	Attempted int         `json:"attempted"`
}

// reconcileSession holds candidates for one anime between scrape completion
// and operator decisions
type reconcileSession struct {
	mu sync.Mutex

	animeID    uint64
	candidates []Candidate
	failures   []EpisodeFailure
	existing   map[int]bool

	committing bool
	cancelBulk context.CancelFunc
}

// ReconcileController lets an operator commit scraped episode candidates
// into durable episode records, one at a time or in bulk
type ReconcileController struct {
	db          *models.Database
	scrapeCtrl  *ScrapeController
	catalogCtrl *CatalogController
	commitDelay time.Duration
	logger      *logrus.Logger

	mu       sync.Mutex
	sessions map[uint64]*reconcileSession
}

// NewReconcileController creates a new reconcile controller
func NewReconcileController(db *models.Database, scrapeCtrl *ScrapeController, catalogCtrl *CatalogController, commitDelay time.Duration, logger *logrus.Logger) *ReconcileController {
	return &ReconcileController{
		db:          db,
		scrapeCtrl:  scrapeCtrl,
		catalogCtrl: catalogCtrl,
		commitDelay: commitDelay,
		logger:      logger,
		sessions:    make(map[uint64]*reconcileSession),
	}
}

// Open starts a reconcile session from the scrape results of an anime.
// Candidates whose episode number is already in the catalog are marked
// exists and are never submitted for commit.
func (c *ReconcileController) Open(animeID uint64) ([]Candidate, []EpisodeFailure, error) {
	candidates, failures, err := c.scrapeCtrl.Results(animeID)
	if err != nil {
		return nil, nil, err
	}
	return c.OpenWith(animeID, candidates, failures)
}

// OpenWith starts a reconcile session from an explicit candidate batch
func (c *ReconcileController) OpenWith(animeID uint64, candidates []Candidate, failures []EpisodeFailure) ([]Candidate, []EpisodeFailure, error) {
	existing, err := c.db.GetEpisodeNumbers(animeID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to fetch existing episodes: %w", err)
	}

	session := &reconcileSession{
		animeID:    animeID,
		candidates: append([]Candidate(nil), candidates...),
		failures:   append([]EpisodeFailure(nil), failures...),
		existing:   existing,
	}
	for i := range session.candidates {
		if existing[session.candidates[i].EpisodeNumber] {
			session.candidates[i].State = models.CandidateStateExists
		} else if session.candidates[i].State != models.CandidateStateAdded {
			session.candidates[i].State = models.CandidateStatePending
		}
	}

	c.mu.Lock()
	c.sessions[animeID] = session
	c.mu.Unlock()

	c.logger.WithFields(logrus.Fields{
		"anime_id":   animeID,
		"candidates": len(session.candidates),
		"existing":   len(existing),
	}).Info("Reconcile session opened")

	return session.view(), append([]EpisodeFailure(nil), session.failures...), nil
}

// Candidates returns the current candidate states of a session
func (c *ReconcileController) Candidates(animeID uint64) ([]Candidate, []EpisodeFailure, error) {
	session, err := c.session(animeID)
	if err != nil {
		return nil, nil, err
	}
	session.mu.Lock()
	defer session.mu.Unlock()
	return append([]Candidate(nil), session.candidates...), append([]EpisodeFailure(nil), session.failures...), nil
}

// CommitOne commits a single candidate by episode number. On failure the
// error is recorded against the candidate and retry stays available.
func (c *ReconcileController) CommitOne(animeID uint64, episodeNumber int) (*Candidate, error) {
	session, err := c.session(animeID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	if session.committing {
		session.mu.Unlock()
		return nil, ErrCommitInFlight
	}
	idx := session.indexOf(episodeNumber)
	if idx < 0 {
		session.mu.Unlock()
		return nil, ErrUnknownCandidate
	}
	if session.candidates[idx].State == models.CandidateStateExists ||
		session.candidates[idx].State == models.CandidateStateAdded {
		candidate := session.candidates[idx]
		session.mu.Unlock()
		return &candidate, nil
	}
	session.committing = true
	candidate := session.candidates[idx]
	session.mu.Unlock()

	commitErr := c.persistCandidate(animeID, candidate)

	session.mu.Lock()
	defer session.mu.Unlock()
	session.committing = false

	if commitErr != nil {
		session.candidates[idx].State = models.CandidateStateFailed
		session.candidates[idx].Error = commitErr.Error()
		c.logger.WithError(commitErr).WithFields(logrus.Fields{
			"anime_id": animeID,
			"episode":  episodeNumber,
		}).Warn("Candidate commit failed")
	} else {
		session.candidates[idx].State = models.CandidateStateAdded
		session.candidates[idx].Error = ""
		session.existing[episodeNumber] = true
	}

	result := session.candidates[idx]
	return &result, nil
}

// CommitAll commits every remaining pending candidate strictly in listed
// order, one at a time, with a fixed delay between items as backpressure.
// Cancellation between items leaves committed episodes committed and the
// remainder untouched.
func (c *ReconcileController) CommitAll(animeID uint64) (*BulkResult, error) {
	session, err := c.session(animeID)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())

	session.mu.Lock()
	if session.committing {
		session.mu.Unlock()
		cancel()
		return nil, ErrCommitInFlight
	}
	session.committing = true
	session.cancelBulk = cancel

	var queue []int
	for _, candidate := range session.candidates {
		if candidate.State == models.CandidateStatePending || candidate.State == models.CandidateStateFailed {
			queue = append(queue, candidate.EpisodeNumber)
		}
	}
	session.mu.Unlock()

	defer func() {
		session.mu.Lock()
		session.committing = false
		session.cancelBulk = nil
		session.mu.Unlock()
		cancel()
	}()

	if len(queue) == 0 {
		return &BulkResult{
			Outcome: BulkOutcomeNothing,
			Message: "all candidates are already in the catalog",
		}, nil
	}

	result := &BulkResult{Attempted: len(queue)}
	cancelled := false

	for i, episodeNumber := range queue {
		if ctx.Err() != nil {
			cancelled = true
			break
		}

		session.mu.Lock()
		idx := session.indexOf(episodeNumber)
		candidate := session.candidates[idx]
		session.mu.Unlock()

		commitErr := c.persistCandidate(animeID, candidate)

		session.mu.Lock()
		if commitErr != nil {
			session.candidates[idx].State = models.CandidateStateFailed
			session.candidates[idx].Error = commitErr.Error()
			result.Failed++
		} else {
			session.candidates[idx].State = models.CandidateStateAdded
			session.candidates[idx].Error = ""
			session.existing[episodeNumber] = true
			result.Added++
		}
		session.mu.Unlock()

		if commitErr != nil {
			c.logger.WithError(commitErr).WithFields(logrus.Fields{
				"anime_id": animeID,
				"episode":  episodeNumber,
			}).Warn("Bulk commit item failed")
		}

		// Courtesy delay between items, skipped after the last one
		if c.commitDelay > 0 && i < len(queue)-1 {
			select {
			case <-ctx.Done():
				cancelled = true
			case <-time.After(c.commitDelay):
			}
			if cancelled {
				break
			}
		}
	}

	switch {
	case cancelled:
		result.Outcome = BulkOutcomeCancelled
		result.Message = fmt.Sprintf("cancelled after %d of %d added", result.Added, result.Attempted)
	case result.Failed == 0:
		result.Outcome = BulkOutcomeAllAdded
		result.Message = fmt.Sprintf("all %d episodes added", result.Added)
	case result.Added == 0:
		result.Outcome = BulkOutcomeAllFailed
		result.Message = fmt.Sprintf("all %d episodes failed", result.Failed)
	default:
		result.Outcome = BulkOutcomePartial
		result.Message = fmt.Sprintf("%d of %d episodes added, %d failed", result.Added, result.Attempted, result.Failed)
	}

	c.logger.WithFields(logrus.Fields{
		"anime_id": animeID,
		"outcome":  result.Outcome,
		"added":    result.Added,
		"failed":   result.Failed,
	}).Info("Bulk commit finished")

	return result, nil
}

// CancelBulk stops an in-flight bulk commit between items
func (c *ReconcileController) CancelBulk(animeID uint64) error {
	session, err := c.session(animeID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if session.cancelBulk != nil {
		session.cancelBulk()
	}
	return nil
}

// Close discards a session. A session with a commit in flight refuses to
// close unless force is set, since an abandoned bulk run has no rollback.
func (c *ReconcileController) Close(animeID uint64, force bool) error {
	session, err := c.session(animeID)
	if err != nil {
		return err
	}

	session.mu.Lock()
	if session.committing && !force {
		session.mu.Unlock()
		return ErrCommitInFlight
	}
	if session.cancelBulk != nil {
		session.cancelBulk()
	}
	session.mu.Unlock()

	c.mu.Lock()
	delete(c.sessions, animeID)
	c.mu.Unlock()
	return nil
}

func (c *ReconcileController) session(animeID uint64) (*reconcileSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[animeID]
	if !ok {
		return nil, ErrNoReconcileSession
	}
	return session, nil
}

func (c *ReconcileController) persistCandidate(animeID uint64, candidate Candidate) error {
	episode := &models.Episode{
		AnimeID:            animeID,
		Number:             candidate.EpisodeNumber,
		Title:              candidate.Title,
		StreamURL:          candidate.StreamURL,
		EmbeddingProtected: candidate.EmbeddingProtected,
		ProtectionReason:   candidate.ProtectionReason,
	}
	if err := c.db.CreateEpisode(episode); err != nil {
		return err
	}
	if c.catalogCtrl != nil {
		c.catalogCtrl.InvalidateEpisodes(animeID)
	}
	return nil
}

func (s *reconcileSession) indexOf(episodeNumber int) int {
	for i, candidate := range s.candidates {
		if candidate.EpisodeNumber == episodeNumber {
			return i
		}
	}
	return -1
}

func (s *reconcileSession) view() []Candidate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Candidate(nil), s.candidates...)
}
