package controllers

import (
	"context"
	"errors"
	"fmt"

	"github.com/amasui/aniarr/internal/models"
	"github.com/amasui/aniarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// Source is a resolved playable stream for one episode
type Source struct {
	AnimeID            uint64 `json:"anime_id"`
	EpisodeNumber      int    `json:"episode_number"`
	StreamURL          string `json:"stream_url"`
	Premium            bool   `json:"premium"`
	EmbeddingProtected bool   `json:"embedding_protected"`
	ProtectionReason   string `json:"protection_reason,omitempty"`
}

// PlaybackController resolves playable sources and tracks watch progress
type PlaybackController struct {
	db      *models.Database
	scraper ScrapeService
	logger  *logrus.Logger
}

// NewPlaybackController creates a new playback controller
func NewPlaybackController(db *models.Database, scraper ScrapeService, logger *logrus.Logger) *PlaybackController {
	return &PlaybackController{
		db:      db,
		scraper: scraper,
		logger:  logger,
	}
}

// ResolveSource returns the stream for an episode. An episode stored
// without a URL falls back to a single-episode live scrape, and the
// resolved URL is persisted for the next viewer.
func (c *PlaybackController) ResolveSource(ctx context.Context, animeID uint64, episodeNumber int) (*Source, error) {
	episode, err := c.db.GetEpisodeByNumber(animeID, episodeNumber)
	if err != nil {
		return nil, err
	}

	if episode.StreamURL == "" {
		anime, err := c.db.GetAnimeByID(animeID)
		if err != nil {
			return nil, err
		}

		c.logger.WithFields(logrus.Fields{
			"anime_id": animeID,
			"episode":  episodeNumber,
		}).Info("No stored stream URL, scraping live")

		result, err := c.scraper.ScrapeEpisode(ctx, utils.Slugify(anime.Title), episodeNumber)
		if err != nil {
			return nil, fmt.Errorf("live scrape failed: %w", err)
		}
		if !result.Success {
			return nil, fmt.Errorf("live scrape failed: %s", result.Error)
		}

		episode.StreamURL = result.StreamURL
		episode.EmbeddingProtected = result.EmbeddingProtected
		episode.ProtectionReason = result.ProtectionReason
		if err := c.db.UpdateEpisode(episode); err != nil {
			c.logger.WithError(err).Warn("Failed to persist scraped stream URL")
		}
	}

	return &Source{
		AnimeID:            animeID,
		EpisodeNumber:      episode.Number,
		StreamURL:          episode.StreamURL,
		Premium:            episode.Premium,
		EmbeddingProtected: episode.EmbeddingProtected,
		ProtectionReason:   episode.ProtectionReason,
	}, nil
}

// SaveProgress upserts the playback position for one episode
func (c *PlaybackController) SaveProgress(animeID uint64, episodeNumber, positionSeconds, durationSeconds int) error {
	if positionSeconds < 0 {
		return fmt.Errorf("%w: position must not be negative", ErrValidation)
	}
	if _, err := c.db.GetEpisodeByNumber(animeID, episodeNumber); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return fmt.Errorf("episode %d of anime %d does not exist: %w", episodeNumber, animeID, models.ErrNotFound)
		}
		return err
	}

	return c.db.SaveWatchProgress(&models.WatchProgress{
		AnimeID:         animeID,
		EpisodeNumber:   episodeNumber,
		PositionSeconds: positionSeconds,
		DurationSeconds: durationSeconds,
	})
}

// ContinueWatching returns the most recently watched entries
func (c *PlaybackController) ContinueWatching(limit int) ([]*models.WatchProgress, error) {
	return c.db.ListRecentWatchProgress(limit)
}
