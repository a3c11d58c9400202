package controllers

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/amasui/aniarr/internal/models"
	"github.com/amasui/aniarr/internal/services/hianime"
	"github.com/amasui/aniarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// Bounded most-recent-first chunk history kept per session
const maxRecentChunks = 5

var (
	// ErrScrapeRunning is returned when a second scrape is started for an anime
	ErrScrapeRunning = errors.New("scrape already in progress for this anime")
	// ErrNoSession is returned when pausing/resuming an anime with no scrape session
	ErrNoSession = errors.New("no scrape session for this anime")
	// ErrNotPaused is returned when resuming a session that is not paused
	ErrNotPaused = errors.New("scrape session is not paused")
)

// ScrapeService is the remote scrape backend as seen by the orchestrator
type ScrapeService interface {
	ScrapeRange(ctx context.Context, animeSlug string, from, to int) (*hianime.BatchResponse, error)
	ScrapeEpisode(ctx context.Context, animeSlug string, episode int) (*hianime.EpisodeResult, error)
}

// Candidate is a scraped episode awaiting an operator decision.
// It exists only between scrape completion and commit/reset.
type Candidate struct {
	EpisodeNumber      int                   `json:"episode_number"`
	Title              string                `json:"title"`
	StreamURL          string                `json:"stream_url"`
	EmbeddingProtected bool                  `json:"embedding_protected"`
	ProtectionReason   string                `json:"protection_reason,omitempty"`
	ScrapedAt          time.Time             `json:"scraped_at"`
	State              models.CandidateState `json:"state"`
	Error              string                `json:"error,omitempty"`
}

// EpisodeFailure records one episode the scrape service could not resolve
type EpisodeFailure struct {
	EpisodeNumber int    `json:"episode_number"`
	Error         string `json:"error"`
}

// ChunkSummary is the outcome of one dispatched chunk
type ChunkSummary struct {
	Index     int           `json:"index"`
	From      int           `json:"from"`
	To        int           `json:"to"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Duration  time.Duration `json:"duration"`
}

type chunkBounds struct {
	from, to int
}

// chunkRange partitions [1, total] into contiguous chunks of at most size
// episodes. The chunks cover the range exactly, without gaps or overlaps.
func chunkRange(total, size int) []chunkBounds {
	if total <= 0 || size <= 0 {
		return nil
	}
	chunks := make([]chunkBounds, 0, (total+size-1)/size)
	for from := 1; from <= total; from += size {
		to := from + size - 1
		if to > total {
			to = total
		}
		chunks = append(chunks, chunkBounds{from: from, to: to})
	}
	return chunks
}

// scrapeSession is the in-memory state of one chunked scrape run
type scrapeSession struct {
	mu sync.Mutex

	animeID uint64
	slug    string
	chunks  []chunkBounds

	progress   models.ScrapeProgress
	recent     []ChunkSummary // Most recent first
	candidates []Candidate
	failures   []EpisodeFailure

	paused  bool
	running bool // Chunk loop goroutine active
	cancel  context.CancelFunc
}

// ScrapeController drives chunked scraping of whole anime, one session per
// anime, one chunk request in flight at a time
type ScrapeController struct {
	db         *models.Database
	scraper    ScrapeService
	chunkSize  int
	chunkDelay time.Duration
	logger     *logrus.Logger

	mu       sync.Mutex
	sessions map[uint64]*scrapeSession
}

// NewScrapeController creates a new scrape controller
func NewScrapeController(db *models.Database, scraper ScrapeService, chunkSize int, chunkDelay time.Duration, logger *logrus.Logger) *ScrapeController {
	return &ScrapeController{
		db:         db,
		scraper:    scraper,
		chunkSize:  chunkSize,
		chunkDelay: chunkDelay,
		logger:     logger,
		sessions:   make(map[uint64]*scrapeSession),
	}
}

// Start begins a chunked scrape session for an anime. If a paused session
// snapshot survives in the store (e.g. across a restart) the run continues
// from its recorded chunk index instead of starting over.
func (c *ScrapeController) Start(animeID uint64) (*models.ScrapeProgress, error) {
	anime, err := c.db.GetAnimeByID(animeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load anime: %w", err)
	}
	if anime.TotalEpisodes <= 0 {
		return nil, fmt.Errorf("anime %q has no episode count to scrape", anime.Title)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.sessions[animeID]; ok {
		existing.mu.Lock()
		if existing.running {
			existing.mu.Unlock()
			return nil, ErrScrapeRunning
		}
		// A live paused session keeps its candidates; starting again
		// resumes it instead of rebuilding and losing them
		if existing.progress.Status == models.ScrapeStatusPaused &&
			existing.progress.TotalEpisodes == anime.TotalEpisodes &&
			existing.progress.ChunkSize == c.chunkSize {
			existing.paused = false
			existing.progress.Status = models.ScrapeStatusInProgress
			existing.mu.Unlock()
			c.launch(existing)

			snapshot := existing.snapshot()
			return &snapshot, nil
		}
		existing.mu.Unlock()
	}

	chunks := chunkRange(anime.TotalEpisodes, c.chunkSize)
	session := &scrapeSession{
		animeID: animeID,
		slug:    utils.Slugify(anime.Title),
		chunks:  chunks,
		progress: models.ScrapeProgress{
			AnimeID:       animeID,
			TotalEpisodes: anime.TotalEpisodes,
			ChunkSize:     c.chunkSize,
			TotalChunks:   len(chunks),
			Status:        models.ScrapeStatusInProgress,
			ETA:           "unknown",
			StartedAt:     time.Now(),
		},
	}

	// Pick up where a previous run left off
	if stored, err := c.db.GetScrapeProgress(animeID); err == nil &&
		stored.Status == models.ScrapeStatusPaused &&
		stored.TotalEpisodes == anime.TotalEpisodes &&
		stored.ChunkSize == c.chunkSize {
		session.progress.CurrentChunk = stored.CurrentChunk
		session.progress.Completed = stored.Completed
		session.progress.Failed = stored.Failed
		session.progress.StartedAt = stored.StartedAt
		c.logger.WithFields(logrus.Fields{
			"anime_id": animeID,
			"chunk":    stored.CurrentChunk,
		}).Info("Resuming scrape session from stored progress")
	}

	c.sessions[animeID] = session
	c.launch(session)

	snapshot := session.snapshot()
	return &snapshot, nil
}

// Pause stops launching further chunks. The chunk already in flight is
// allowed to finish.
func (c *ScrapeController) Pause(animeID uint64) (*models.ScrapeProgress, error) {
	session, err := c.session(animeID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	if session.progress.Status == models.ScrapeStatusInProgress {
		session.paused = true
	}
	session.mu.Unlock()

	snapshot := session.snapshot()
	return &snapshot, nil
}

// Resume continues a paused session from its recorded chunk index
func (c *ScrapeController) Resume(animeID uint64) (*models.ScrapeProgress, error) {
	session, err := c.session(animeID)
	if err != nil {
		return nil, err
	}

	session.mu.Lock()
	if session.progress.Status != models.ScrapeStatusPaused || session.running {
		session.mu.Unlock()
		return nil, ErrNotPaused
	}
	session.paused = false
	session.progress.Status = models.ScrapeStatusInProgress
	session.mu.Unlock()

	c.launch(session)

	snapshot := session.snapshot()
	return &snapshot, nil
}

// Reset discards a session and its stored progress, returning the anime to
// not_started
func (c *ScrapeController) Reset(animeID uint64) error {
	c.mu.Lock()
	session, ok := c.sessions[animeID]
	delete(c.sessions, animeID)
	c.mu.Unlock()

	if ok {
		session.mu.Lock()
		if session.cancel != nil {
			session.cancel()
		}
		session.mu.Unlock()
	}

	if err := c.db.DeleteScrapeProgress(animeID); err != nil && !errors.Is(err, models.ErrNotFound) {
		return fmt.Errorf("failed to delete scrape progress: %w", err)
	}
	return nil
}

// Progress returns the current session snapshot plus recent chunk summaries.
// Falls back to the stored snapshot when no live session exists.
func (c *ScrapeController) Progress(animeID uint64) (*models.ScrapeProgress, []ChunkSummary, error) {
	c.mu.Lock()
	session, ok := c.sessions[animeID]
	c.mu.Unlock()

	if ok {
		snapshot := session.snapshot()
		session.mu.Lock()
		recent := append([]ChunkSummary(nil), session.recent...)
		session.mu.Unlock()
		return &snapshot, recent, nil
	}

	stored, err := c.db.GetScrapeProgress(animeID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &models.ScrapeProgress{
				AnimeID: animeID,
				Status:  models.ScrapeStatusNotStarted,
			}, nil, nil
		}
		return nil, nil, err
	}
	return stored, nil, nil
}

// Results returns the candidates and failures accumulated by a session
func (c *ScrapeController) Results(animeID uint64) ([]Candidate, []EpisodeFailure, error) {
	session, err := c.session(animeID)
	if err != nil {
		return nil, nil, err
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	candidates := append([]Candidate(nil), session.candidates...)
	failures := append([]EpisodeFailure(nil), session.failures...)
	return candidates, failures, nil
}

// FlushProgress persists every live session snapshot. Called by the
// scheduler as an autosave between chunk boundaries.
func (c *ScrapeController) FlushProgress() error {
	c.mu.Lock()
	sessions := make([]*scrapeSession, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.mu.Unlock()

	for _, session := range sessions {
		snapshot := session.snapshot()
		if err := c.db.SaveScrapeProgress(&snapshot); err != nil {
			return err
		}
	}
	return nil
}

// ActiveSessions returns the number of sessions with a running chunk loop
func (c *ScrapeController) ActiveSessions() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := 0
	for _, session := range c.sessions {
		session.mu.Lock()
		if session.running {
			count++
		}
		session.mu.Unlock()
	}
	return count
}

func (c *ScrapeController) session(animeID uint64) (*scrapeSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[animeID]
	if !ok {
		return nil, ErrNoSession
	}
	return session, nil
}

func (c *ScrapeController) launch(session *scrapeSession) {
	ctx, cancel := context.WithCancel(context.Background())

	session.mu.Lock()
	session.cancel = cancel
	session.running = true
	session.mu.Unlock()

	go c.run(ctx, session)
}

// run is the sequential chunk loop. Exactly one chunk request is in flight
// at any time; pause and cancellation are observed between chunks only.
func (c *ScrapeController) run(ctx context.Context, session *scrapeSession) {
	defer func() {
		session.mu.Lock()
		session.running = false
		session.mu.Unlock()
	}()

	loopStart := time.Now()
	chunksAtStart := session.snapshot().CurrentChunk

	for {
		session.mu.Lock()
		index := session.progress.CurrentChunk
		total := len(session.chunks)
		paused := session.paused
		session.mu.Unlock()

		if ctx.Err() != nil {
			return
		}

		if paused {
			session.mu.Lock()
			session.progress.Status = models.ScrapeStatusPaused
			session.mu.Unlock()
			c.persist(session)
			c.logger.WithFields(logrus.Fields{
				"anime_id": session.animeID,
				"chunk":    index,
			}).Info("Scrape session paused")
			return
		}

		if index >= total {
			session.mu.Lock()
			session.progress.Status = models.ScrapeStatusCompleted
			session.progress.ETA = "0s"
			session.mu.Unlock()
			c.persist(session)
			c.logger.WithFields(logrus.Fields{
				"anime_id":  session.animeID,
				"completed": session.snapshot().Completed,
				"failed":    session.snapshot().Failed,
			}).Info("Scrape session completed")
			return
		}

		bounds := session.chunks[index]
		chunkStart := time.Now()

		c.logger.WithFields(logrus.Fields{
			"anime_id": session.animeID,
			"chunk":    index,
			"from":     bounds.from,
			"to":       bounds.to,
		}).Debug("Dispatching scrape chunk")

		resp, err := c.scraper.ScrapeRange(ctx, session.slug, bounds.from, bounds.to)

		summary := ChunkSummary{
			Index:    index,
			From:     bounds.from,
			To:       bounds.to,
			Duration: time.Since(chunkStart),
		}

		session.mu.Lock()
		if err != nil {
			// A failed chunk never halts the run: every episode in the
			// chunk is counted failed and the loop moves on
			for n := bounds.from; n <= bounds.to; n++ {
				session.failures = append(session.failures, EpisodeFailure{
					EpisodeNumber: n,
					Error:         err.Error(),
				})
			}
			count := bounds.to - bounds.from + 1
			session.progress.Failed += count
			summary.Failed = count
		} else {
			for _, result := range resp.Results {
				if result.Success {
					session.candidates = append(session.candidates, Candidate{
						EpisodeNumber:      result.Episode,
						Title:              result.Title,
						StreamURL:          result.StreamURL,
						EmbeddingProtected: result.EmbeddingProtected,
						ProtectionReason:   result.ProtectionReason,
						ScrapedAt:          result.ScrapedAt,
						State:              models.CandidateStatePending,
					})
					session.progress.Completed++
					summary.Succeeded++
				} else {
					session.failures = append(session.failures, EpisodeFailure{
						EpisodeNumber: result.Episode,
						Error:         result.Error,
					})
					session.progress.Failed++
					summary.Failed++
				}
			}
		}

		session.progress.CurrentChunk = index + 1
		session.recent = append([]ChunkSummary{summary}, session.recent...)
		if len(session.recent) > maxRecentChunks {
			session.recent = session.recent[:maxRecentChunks]
		}

		// Prefer the service-supplied ETA, estimate otherwise
		if err == nil && resp.ETA != "" {
			session.progress.ETA = resp.ETA
		} else {
			done := session.progress.CurrentChunk - chunksAtStart
			session.progress.ETA = utils.EstimateETA(time.Since(loopStart), done, total-chunksAtStart)
		}
		session.mu.Unlock()

		if err != nil {
			c.logger.WithError(err).WithFields(logrus.Fields{
				"anime_id": session.animeID,
				"chunk":    index,
			}).Warn("Scrape chunk failed")
		}

		c.persist(session)

		if c.chunkDelay > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.chunkDelay):
			}
		}
	}
}

func (c *ScrapeController) persist(session *scrapeSession) {
	snapshot := session.snapshot()
	if err := c.db.SaveScrapeProgress(&snapshot); err != nil {
		c.logger.WithError(err).WithField("anime_id", session.animeID).Error("Failed to persist scrape progress")
	}
}

func (s *scrapeSession) snapshot() models.ScrapeProgress {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}
