package controllers

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amasui/aniarr/internal/models"
	gocache "github.com/patrickmn/go-cache"
	"github.com/sirupsen/logrus"
)

// ErrValidation marks rejected input so the API layer can answer 400
// instead of treating it as an internal failure
var ErrValidation = errors.New("invalid input")

// Cache key prefixes. List caches (search, trending, recent) are wiped on
// every mutation; per-id entries only when the record itself is touched.
const (
	cacheKeySearchPrefix   = "search:"
	cacheKeyTrending       = "trending"
	cacheKeyRecent         = "recent"
	cacheKeyAnimePrefix    = "anime:"
	cacheKeyEpisodesPrefix = "episodes:"
)

// AnimePage is one page of catalog listing results
type AnimePage struct {
	Items []*models.Anime `json:"items"`
	Total int             `json:"total"`
}

// DeleteSummary describes the cascade of an anime delete
type DeleteSummary struct {
	AnimeID         uint64 `json:"anime_id"`
	Title           string `json:"title"`
	EpisodesDeleted int    `json:"episodes_deleted"`
}

// CatalogController handles anime/episode CRUD with a read-through TTL
// cache. Every mutation invalidates the affected cache entries so a
// subsequent read never returns a stale or deleted record.
type CatalogController struct {
	db     *models.Database
	cache  *gocache.Cache
	logger *logrus.Logger
}

// NewCatalogController creates a new catalog controller
func NewCatalogController(db *models.Database, cacheTTL time.Duration, logger *logrus.Logger) *CatalogController {
	return &CatalogController{
		db:     db,
		cache:  gocache.New(cacheTTL, 2*cacheTTL),
		logger: logger,
	}
}

// ListAnime lists anime with filter/search/pagination. Pure search results
// (no status filter, no pagination offset) are served from cache.
func (c *CatalogController) ListAnime(opts models.ListAnimeOptions) (*AnimePage, error) {
	key := c.listCacheKey(opts)
	if key != "" {
		if cached, ok := c.cache.Get(key); ok {
			return cached.(*AnimePage), nil
		}
	}

	items, total, err := c.db.ListAnime(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list anime: %w", err)
	}
	page := &AnimePage{Items: items, Total: total}

	if key != "" {
		c.cache.SetDefault(key, page)
	}
	return page, nil
}

// RecentAnime returns the most recently added catalog entries
func (c *CatalogController) RecentAnime(limit int) ([]*models.Anime, error) {
	if cached, ok := c.cache.Get(cacheKeyRecent); ok {
		return cached.([]*models.Anime), nil
	}

	items, _, err := c.db.ListAnime(models.ListAnimeOptions{Limit: limit})
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(cacheKeyRecent, items)
	return items, nil
}

// GetAnime retrieves one anime through the cache
func (c *CatalogController) GetAnime(id uint64) (*models.Anime, error) {
	key := fmt.Sprintf("%s%d", cacheKeyAnimePrefix, id)
	if cached, ok := c.cache.Get(key); ok {
		return cached.(*models.Anime), nil
	}

	anime, err := c.db.GetAnimeByID(id)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, anime)
	return anime, nil
}

// CreateAnime validates and creates a catalog entry
func (c *CatalogController) CreateAnime(anime *models.Anime) error {
	if strings.TrimSpace(anime.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if anime.Status == "" {
		anime.Status = models.AnimeStatusOngoing
	}
	if !models.ValidAnimeStatus(anime.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, anime.Status)
	}

	if err := c.db.CreateAnime(anime); err != nil {
		return fmt.Errorf("failed to create anime: %w", err)
	}

	c.invalidateLists()
	c.logger.WithFields(logrus.Fields{
		"anime_id": anime.ID,
		"title":    anime.Title,
	}).Info("Anime created")
	return nil
}

// UpdateAnime validates and updates a catalog entry
func (c *CatalogController) UpdateAnime(anime *models.Anime) error {
	if strings.TrimSpace(anime.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if !models.ValidAnimeStatus(anime.Status) {
		return fmt.Errorf("%w: unknown status %q", ErrValidation, anime.Status)
	}

	if err := c.db.UpdateAnime(anime); err != nil {
		return fmt.Errorf("failed to update anime: %w", err)
	}

	c.invalidateAnime(anime.ID)
	c.invalidateLists()
	return nil
}

// DeleteAnime deletes an anime and its dependents, and reports the cascade
func (c *CatalogController) DeleteAnime(id uint64) (*DeleteSummary, error) {
	anime, err := c.db.GetAnimeByID(id)
	if err != nil {
		return nil, err
	}
	episodes, err := c.db.GetEpisodesByAnimeID(id)
	if err != nil {
		return nil, err
	}

	if err := c.db.DeleteAnime(id); err != nil {
		return nil, fmt.Errorf("failed to delete anime: %w", err)
	}

	c.invalidateAnime(id)
	c.invalidateLists()

	c.logger.WithFields(logrus.Fields{
		"anime_id": id,
		"title":    anime.Title,
		"episodes": len(episodes),
	}).Info("Anime deleted")

	return &DeleteSummary{
		AnimeID:         id,
		Title:           anime.Title,
		EpisodesDeleted: len(episodes),
	}, nil
}

// BulkUpdateStatus applies one status to a set of anime ids in one request
func (c *CatalogController) BulkUpdateStatus(ids []uint64, status models.AnimeStatus) ([]uint64, error) {
	if !models.ValidAnimeStatus(status) {
		return nil, fmt.Errorf("%w: unknown status %q", ErrValidation, status)
	}

	missing, err := c.db.BulkUpdateAnimeStatus(ids, status)
	if err != nil {
		return missing, err
	}

	for _, id := range ids {
		c.invalidateAnime(id)
	}
	c.invalidateLists()
	return missing, nil
}

// BulkDelete deletes a set of anime ids in one request
func (c *CatalogController) BulkDelete(ids []uint64) ([]*DeleteSummary, error) {
	summaries := make([]*DeleteSummary, 0, len(ids))
	for _, id := range ids {
		summary, err := c.DeleteAnime(id)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				continue
			}
			return summaries, err
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Episodes lists episodes for an anime through the per-anime cache
func (c *CatalogController) Episodes(animeID uint64) ([]*models.Episode, error) {
	key := fmt.Sprintf("%s%d", cacheKeyEpisodesPrefix, animeID)
	if cached, ok := c.cache.Get(key); ok {
		return cached.([]*models.Episode), nil
	}

	episodes, err := c.db.GetEpisodesByAnimeID(animeID)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, episodes)
	return episodes, nil
}

// CreateEpisode validates and creates an episode
func (c *CatalogController) CreateEpisode(episode *models.Episode) error {
	if episode.Number < 1 {
		return fmt.Errorf("%w: episode number must be 1 or greater", ErrValidation)
	}
	if _, err := c.db.GetAnimeByID(episode.AnimeID); err != nil {
		return fmt.Errorf("failed to load anime: %w", err)
	}

	if err := c.db.CreateEpisode(episode); err != nil {
		return err
	}

	c.invalidateEpisodes(episode.AnimeID)
	return nil
}

// DeleteEpisode deletes one episode
func (c *CatalogController) DeleteEpisode(id uint64) error {
	episode, err := c.db.GetEpisodeByID(id)
	if err != nil {
		return err
	}
	if err := c.db.DeleteEpisode(id); err != nil {
		return err
	}
	c.invalidateEpisodes(episode.AnimeID)
	return nil
}

// InvalidateEpisodes drops the cached episode list for an anime. Exposed
// for the reconcile flow, which writes episodes behind this controller.
func (c *CatalogController) InvalidateEpisodes(animeID uint64) {
	c.invalidateEpisodes(animeID)
}

// CacheStats reports cache entry count for the status endpoint
func (c *CatalogController) CacheStats() int {
	return c.cache.ItemCount()
}

func (c *CatalogController) listCacheKey(opts models.ListAnimeOptions) string {
	// Only plain searches and the unfiltered first page are worth caching
	if opts.Status != "" || opts.Offset != 0 {
		return ""
	}
	if opts.Search != "" {
		return cacheKeySearchPrefix + strings.ToLower(opts.Search)
	}
	return cacheKeyTrending
}

// invalidateLists wipes every list-shaped cache entry
func (c *CatalogController) invalidateLists() {
	for key := range c.cache.Items() {
		if strings.HasPrefix(key, cacheKeySearchPrefix) || key == cacheKeyTrending || key == cacheKeyRecent {
			c.cache.Delete(key)
		}
	}
}

func (c *CatalogController) invalidateAnime(id uint64) {
	c.cache.Delete(fmt.Sprintf("%s%d", cacheKeyAnimePrefix, id))
	c.invalidateEpisodes(id)
}

func (c *CatalogController) invalidateEpisodes(animeID uint64) {
	c.cache.Delete(fmt.Sprintf("%s%d", cacheKeyEpisodesPrefix, animeID))
}
