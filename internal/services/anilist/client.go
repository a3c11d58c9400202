package anilist

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amasui/aniarr/internal/config"
	"github.com/sirupsen/logrus"
)

// Media is one anime entry from the AniList GraphQL API
type Media struct {
	ID    int `json:"id"`
	Title struct {
		Romaji  string `json:"romaji"`
		English string `json:"english"`
		Native  string `json:"native"`
	} `json:"title"`
	Status      string `json:"status"`
	Episodes    int    `json:"episodes"`
	Description string `json:"description"`
	CoverImage  struct {
		Large string `json:"large"`
	} `json:"coverImage"`
	Genres  []string `json:"genres"`
	Studios struct {
		Nodes []struct {
			Name string `json:"name"`
		} `json:"nodes"`
	} `json:"studios"`
}

// PreferredTitle returns the English title when present, romaji otherwise
func (m *Media) PreferredTitle() string {
	if m.Title.English != "" {
		return m.Title.English
	}
	return m.Title.Romaji
}

// StudioNames returns the studio list as plain strings
func (m *Media) StudioNames() []string {
	names := make([]string, 0, len(m.Studios.Nodes))
	for _, node := range m.Studios.Nodes {
		names = append(names, node.Name)
	}
	return names
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type pageResponse struct {
	Data struct {
		Page struct {
			Media []Media `json:"media"`
		} `json:"Page"`
	} `json:"data"`
	Errors []graphQLError `json:"errors,omitempty"`
}

const mediaFields = `
  id
  title { romaji english native }
  status
  episodes
  description
  coverImage { large }
  genres
  studios { nodes { name } }`

const searchQuery = `query ($search: String, $perPage: Int) {
  Page(perPage: $perPage) {
    media(search: $search, type: ANIME) {` + mediaFields + `
    }
  }
}`

const trendingQuery = `query ($perPage: Int) {
  Page(perPage: $perPage) {
    media(sort: TRENDING_DESC, type: ANIME) {` + mediaFields + `
    }
  }
}`

// Client handles communication with the AniList GraphQL API
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new AniList client
func NewClient(cfg *config.Config, logger *logrus.Logger) *Client {
	return &Client{
		endpoint:   cfg.AniListURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger,
	}
}

// Search searches anime by title
func (c *Client) Search(ctx context.Context, query string, limit int) ([]Media, error) {
	return c.page(ctx, searchQuery, map[string]any{
		"search":  query,
		"perPage": clampPerPage(limit),
	})
}

// Trending returns currently trending anime
func (c *Client) Trending(ctx context.Context, limit int) ([]Media, error) {
	return c.page(ctx, trendingQuery, map[string]any{
		"perPage": clampPerPage(limit),
	})
}

func (c *Client) page(ctx context.Context, query string, variables map[string]any) ([]Media, error) {
	requestBody, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graphQL request body: %w", err)
	}

	c.logger.WithField("endpoint", c.endpoint).Debug("Performing AniList request")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(requestBody))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("anilist request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("anilist API returned status %d: %s", resp.StatusCode, string(bodyBytes))
	}

	var response pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode anilist response: %w", err)
	}
	if len(response.Errors) > 0 {
		return nil, fmt.Errorf("anilist API error: %s", response.Errors[0].Message)
	}

	c.logger.WithField("count", len(response.Data.Page.Media)).Debug("AniList request completed")
	return response.Data.Page.Media, nil
}

func clampPerPage(limit int) int {
	if limit <= 0 || limit > 50 {
		return 20
	}
	return limit
}
