package hianime

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/amasui/aniarr/internal/config"
	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"
)

const maxRetries = 3

// EpisodeResult is the per-episode outcome of a scrape call.
// Success carries the stream details; failure carries Error.
type EpisodeResult struct {
	Episode            int       `json:"episode"`
	Success            bool      `json:"success"`
	Title              string    `json:"title,omitempty"`
	StreamURL          string    `json:"stream_url,omitempty"`
	EmbeddingProtected bool      `json:"embedding_protected,omitempty"`
	ProtectionReason   string    `json:"protection_reason,omitempty"`
	Error              string    `json:"error,omitempty"`
	ScrapedAt          time.Time `json:"scraped_at,omitempty"`
}

// BatchResponse is the scrape service response for range and all-episode calls
type BatchResponse struct {
	Results []EpisodeResult `json:"results"`
	ETA     string          `json:"eta,omitempty"`
}

type scrapeRequest struct {
	Anime   string `json:"anime"`
	Episode int    `json:"episode,omitempty"`
	From    int    `json:"from,omitempty"`
	To      int    `json:"to,omitempty"`
	Max     int    `json:"max,omitempty"`
}

// Client handles communication with the remote scrape service
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Logger
}

// NewClient creates a new scrape service client
func NewClient(cfg *config.Config, logger *logrus.Logger) (*Client, error) {
	if cfg.ScraperURL == "" {
		return nil, fmt.Errorf("scraper URL is required")
	}

	return &Client{
		baseURL:    cfg.ScraperURL,
		httpClient: &http.Client{Timeout: cfg.ScraperTimeout},
		logger:     logger,
	}, nil
}

// ScrapeEpisode scrapes a single episode of an anime
func (c *Client) ScrapeEpisode(ctx context.Context, animeSlug string, episode int) (*EpisodeResult, error) {
	resp, err := c.post(ctx, "/scrape/episode", scrapeRequest{Anime: animeSlug, Episode: episode})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("scrape service returned no result for episode %d", episode)
	}
	return &resp.Results[0], nil
}

// ScrapeRange scrapes the contiguous episode range [from, to] of an anime
func (c *Client) ScrapeRange(ctx context.Context, animeSlug string, from, to int) (*BatchResponse, error) {
	if from < 1 || to < from {
		return nil, fmt.Errorf("invalid episode range %d-%d", from, to)
	}
	return c.post(ctx, "/scrape/batch", scrapeRequest{Anime: animeSlug, From: from, To: to})
}

// ScrapeAll scrapes every episode of an anime up to max
func (c *Client) ScrapeAll(ctx context.Context, animeSlug string, max int) (*BatchResponse, error) {
	return c.post(ctx, "/scrape/all", scrapeRequest{Anime: animeSlug, Max: max})
}

// post performs a scrape request with retry on transient failures.
// 4xx responses are permanent, 5xx and network errors are retried with
// exponential backoff.
func (c *Client) post(ctx context.Context, path string, reqBody scrapeRequest) (*BatchResponse, error) {
	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scrape request: %w", err)
	}

	fullURL := c.baseURL + path
	c.logger.WithFields(logrus.Fields{
		"url":   fullURL,
		"anime": reqBody.Anime,
	}).Debug("Calling scrape service")

	var result *BatchResponse
	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, fullURL, bytes.NewReader(jsonData))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "aniarr/1.0")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("scrape request failed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			bodyBytes, _ := io.ReadAll(resp.Body)
			return fmt.Errorf("scrape service returned status %d: %s", resp.StatusCode, string(bodyBytes))
		}
		if resp.StatusCode != http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			return backoff.Permanent(fmt.Errorf("scrape service returned status %d: %s", resp.StatusCode, string(bodyBytes)))
		}

		var batch BatchResponse
		if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode scrape response: %w", err))
		}
		result = &batch
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	return result, nil
}
