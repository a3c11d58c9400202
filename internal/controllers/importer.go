package controllers

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/amasui/aniarr/internal/models"
	"github.com/amasui/aniarr/internal/services/anilist"
	"github.com/amasui/aniarr/internal/services/jikan"
	"github.com/amasui/aniarr/internal/utils"
	"github.com/sirupsen/logrus"
)

// ErrTitleSkipped is returned when an import target matches the operator skip list
var ErrTitleSkipped = errors.New("title is on the skip list")

// ErrAlreadyImported is returned when an external id was imported before
var ErrAlreadyImported = errors.New("anime already imported")

// ExternalAnime is a provider-neutral view of a metadata search result
type ExternalAnime struct {
	Source        models.ImportSource `json:"source"`
	ExternalID    int                 `json:"external_id"`
	Title         string              `json:"title"`
	AltTitle      string              `json:"alt_title,omitempty"`
	Status        models.AnimeStatus  `json:"status"`
	TotalEpisodes int                 `json:"total_episodes"`
	PosterURL     string              `json:"poster_url,omitempty"`
	Genres        []string            `json:"genres,omitempty"`
	Studios       []string            `json:"studios,omitempty"`
	Synopsis      string              `json:"synopsis,omitempty"`
}

// ImportResult is the per-title outcome of a bulk import
type ImportResult struct {
	Title   string `json:"title"`
	AnimeID uint64 `json:"anime_id,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ImportController brings anime metadata from Jikan and AniList into the
// catalog
type ImportController struct {
	db            *models.Database
	jikanClient   *jikan.Client
	anilistClient *anilist.Client
	catalogCtrl   *CatalogController
	skipList      *utils.SkipList
	commitDelay   time.Duration
	logger        *logrus.Logger
}

// NewImportController creates a new import controller
func NewImportController(db *models.Database, jikanClient *jikan.Client, anilistClient *anilist.Client, catalogCtrl *CatalogController, skipList *utils.SkipList, commitDelay time.Duration, logger *logrus.Logger) *ImportController {
	return &ImportController{
		db:            db,
		jikanClient:   jikanClient,
		anilistClient: anilistClient,
		catalogCtrl:   catalogCtrl,
		skipList:      skipList,
		commitDelay:   commitDelay,
		logger:        logger,
	}
}

// Search queries one metadata provider by title
func (c *ImportController) Search(ctx context.Context, source models.ImportSource, query string, limit int) ([]ExternalAnime, error) {
	switch source {
	case models.ImportSourceAniList:
		media, err := c.anilistClient.Search(ctx, query, limit)
		if err != nil {
			return nil, fmt.Errorf("anilist search failed: %w", err)
		}
		return fromAniList(media), nil
	default:
		results, err := c.jikanClient.Search(ctx, query, limit)
		if err != nil {
			return nil, fmt.Errorf("jikan search failed: %w", err)
		}
		return fromJikan(results), nil
	}
}

// Trending lists currently trending anime from AniList
func (c *ImportController) Trending(ctx context.Context, limit int) ([]ExternalAnime, error) {
	media, err := c.anilistClient.Trending(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("anilist trending failed: %w", err)
	}
	return fromAniList(media), nil
}

// Seasonal lists the current season from Jikan
func (c *ImportController) Seasonal(ctx context.Context, limit int) ([]ExternalAnime, error) {
	results, err := c.jikanClient.SeasonNow(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("jikan seasonal failed: %w", err)
	}
	return fromJikan(results), nil
}

// Import brings one external record into the catalog. Skip-listed titles
// and already-imported external ids are rejected.
func (c *ImportController) Import(external ExternalAnime) (*models.Anime, error) {
	if skipped, term := c.skipList.IsSkipped(external.Title); skipped {
		c.logger.WithFields(logrus.Fields{
			"title": external.Title,
			"term":  term,
		}).Info("Import skipped by skip list")
		return nil, fmt.Errorf("%w: matched %q", ErrTitleSkipped, term)
	}

	if _, err := c.db.GetImportRecord(external.Source, external.ExternalID); err == nil {
		return nil, ErrAlreadyImported
	}
	if existing, err := c.db.GetAnimeByExternalID(external.Source, external.ExternalID); err == nil {
		return existing, ErrAlreadyImported
	}

	anime := &models.Anime{
		Title:         external.Title,
		AltTitle:      external.AltTitle,
		Status:        external.Status,
		TotalEpisodes: external.TotalEpisodes,
		PosterURL:     external.PosterURL,
		Genres:        external.Genres,
		Studios:       external.Studios,
		Synopsis:      external.Synopsis,
	}
	switch external.Source {
	case models.ImportSourceJikan:
		anime.MALID = external.ExternalID
	case models.ImportSourceAniList:
		anime.AniListID = external.ExternalID
	}

	if err := c.catalogCtrl.CreateAnime(anime); err != nil {
		return nil, err
	}

	record := &models.ImportRecord{
		Source:     external.Source,
		ExternalID: external.ExternalID,
		AnimeID:    anime.ID,
		Title:      anime.Title,
	}
	if err := c.db.CreateImportRecord(record); err != nil {
		c.logger.WithError(err).Warn("Failed to record import history")
	}

	c.logger.WithFields(logrus.Fields{
		"anime_id": anime.ID,
		"title":    anime.Title,
		"source":   external.Source,
	}).Info("Anime imported")
	return anime, nil
}

// ImportAll imports a batch serially with the courtesy delay between
// items. Per-item failures never abort the batch.
func (c *ImportController) ImportAll(ctx context.Context, externals []ExternalAnime) []ImportResult {
	results := make([]ImportResult, 0, len(externals))

	for i, external := range externals {
		if ctx.Err() != nil {
			break
		}

		result := ImportResult{Title: external.Title}
		anime, err := c.Import(external)
		switch {
		case errors.Is(err, ErrTitleSkipped), errors.Is(err, ErrAlreadyImported):
			result.Skipped = true
			if anime != nil {
				result.AnimeID = anime.ID
			}
		case err != nil:
			result.Error = err.Error()
		default:
			result.AnimeID = anime.ID
		}
		results = append(results, result)

		if c.commitDelay > 0 && i < len(externals)-1 {
			select {
			case <-ctx.Done():
			case <-time.After(c.commitDelay):
			}
		}
	}

	return results
}

// History returns import history, newest first
func (c *ImportController) History(limit int) ([]*models.ImportRecord, error) {
	return c.db.ListImportRecords(limit)
}

func fromJikan(results []jikan.Anime) []ExternalAnime {
	out := make([]ExternalAnime, 0, len(results))
	for _, r := range results {
		title := r.TitleEnglish
		if title == "" {
			title = r.Title
		}
		out = append(out, ExternalAnime{
			Source:        models.ImportSourceJikan,
			ExternalID:    r.MALID,
			Title:         title,
			AltTitle:      r.TitleJapanese,
			Status:        mapAiringStatus(r.Status),
			TotalEpisodes: r.Episodes,
			PosterURL:     r.Images.JPG.ImageURL,
			Genres:        r.GenreNames(),
			Studios:       r.StudioNames(),
			Synopsis:      r.Synopsis,
		})
	}
	return out
}

func fromAniList(media []anilist.Media) []ExternalAnime {
	out := make([]ExternalAnime, 0, len(media))
	for _, m := range media {
		out = append(out, ExternalAnime{
			Source:        models.ImportSourceAniList,
			ExternalID:    m.ID,
			Title:         m.PreferredTitle(),
			AltTitle:      m.Title.Native,
			Status:        mapAiringStatus(m.Status),
			TotalEpisodes: m.Episodes,
			PosterURL:     m.CoverImage.Large,
			Genres:        m.Genres,
			Studios:       m.StudioNames(),
			Synopsis:      m.Description,
		})
	}
	return out
}

// mapAiringStatus folds provider status strings into the catalog's three
// states. Jikan says "Currently Airing"/"Finished Airing"/"Not yet aired";
// AniList says RELEASING/FINISHED/NOT_YET_RELEASED.
func mapAiringStatus(s string) models.AnimeStatus {
	switch strings.ToLower(s) {
	case "finished airing", "finished", "complete":
		return models.AnimeStatusCompleted
	case "not yet aired", "not_yet_released", "upcoming":
		return models.AnimeStatusUpcoming
	default:
		return models.AnimeStatusOngoing
	}
}
