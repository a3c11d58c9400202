package jikan

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/amasui/aniarr/internal/config"
	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// Anime is one entry from the Jikan (MyAnimeList) API
type Anime struct {
	MALID         int    `json:"mal_id"`
	Title         string `json:"title"`
	TitleEnglish  string `json:"title_english"`
	TitleJapanese string `json:"title_japanese"`
	Status        string `json:"status"`
	Episodes      int    `json:"episodes"`
	Synopsis      string `json:"synopsis"`
	Images        struct {
		JPG struct {
			ImageURL string `json:"image_url"`
		} `json:"jpg"`
	} `json:"images"`
	Genres  []namedEntity `json:"genres"`
	Studios []namedEntity `json:"studios"`
}

type namedEntity struct {
	Name string `json:"name"`
}

type listResponse struct {
	Data []Anime `json:"data"`
}

// GenreNames returns the genre list as plain strings
func (a *Anime) GenreNames() []string {
	return entityNames(a.Genres)
}

// StudioNames returns the studio list as plain strings
func (a *Anime) StudioNames() []string {
	return entityNames(a.Studios)
}

func entityNames(entities []namedEntity) []string {
	names := make([]string, 0, len(entities))
	for _, e := range entities {
		names = append(names, e.Name)
	}
	return names
}

// Client handles communication with the Jikan REST API
type Client struct {
	baseURL string
	resty   *resty.Client
	logger  *logrus.Logger
}

// NewClient creates a new Jikan client. Jikan rate-limits aggressively, so
// 429 and 5xx responses are retried with a wait.
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	restyClient := resty.New().
		SetBaseURL(cfg.JikanURL).
		SetTimeout(30 * time.Second).
		SetRetryCount(3).
		SetRetryWaitTime(1 * time.Second).
		SetRetryMaxWaitTime(5 * time.Second).
		SetHeader("User-Agent", "aniarr/1.0").
		SetHeader("Accept", "application/json")

	restyClient.AddRetryCondition(func(r *resty.Response, err error) bool {
		if err != nil {
			return true
		}
		return r.StatusCode() >= 500 || r.StatusCode() == 429
	})

	return &Client{
		baseURL: cfg.JikanURL,
		resty:   restyClient,
		logger:  logger,
	}
}

// Search searches anime by title
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Anime, error) {
	return c.list(ctx, "/anime", map[string]string{
		"q":     query,
		"limit": strconv.Itoa(clampLimit(limit)),
	})
}

// Top returns the current top-rated anime
func (c *Client) Top(ctx context.Context, limit int) ([]Anime, error) {
	return c.list(ctx, "/top/anime", map[string]string{
		"limit": strconv.Itoa(clampLimit(limit)),
	})
}

// SeasonNow returns anime airing in the current season
func (c *Client) SeasonNow(ctx context.Context, limit int) ([]Anime, error) {
	return c.list(ctx, "/seasons/now", map[string]string{
		"limit": strconv.Itoa(clampLimit(limit)),
	})
}

func (c *Client) list(ctx context.Context, path string, params map[string]string) ([]Anime, error) {
	c.logger.WithFields(logrus.Fields{
		"path":   path,
		"params": params,
	}).Debug("Performing Jikan request")

	var response listResponse
	resp, err := c.resty.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&response).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("jikan request failed: %w", err)
	}
	if resp.StatusCode() != 200 {
		return nil, fmt.Errorf("jikan API returned status %d: %s", resp.StatusCode(), resp.String())
	}

	c.logger.WithField("count", len(response.Data)).Debug("Jikan request completed")
	return response.Data, nil
}

// Jikan caps page size at 25
func clampLimit(limit int) int {
	if limit <= 0 || limit > 25 {
		return 25
	}
	return limit
}
