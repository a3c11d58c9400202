package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("SCRAPER_URL", "http://localhost:9000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.ScrapeChunkSize != 25 {
		t.Errorf("ScrapeChunkSize = %d, want 25", cfg.ScrapeChunkSize)
	}
	if cfg.ScrapeChunkDelay != 2*time.Second {
		t.Errorf("ScrapeChunkDelay = %v, want 2s", cfg.ScrapeChunkDelay)
	}
	if cfg.CommitDelay != 500*time.Millisecond {
		t.Errorf("CommitDelay = %v, want 500ms", cfg.CommitDelay)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.JikanURL != "https://api.jikan.moe/v4" {
		t.Errorf("JikanURL = %q", cfg.JikanURL)
	}
	if cfg.AniListURL != "https://graphql.anilist.co" {
		t.Errorf("AniListURL = %q", cfg.AniListURL)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
	if cfg.DatabaseFile == "" || cfg.SkipListFile == "" {
		t.Error("Config paths were not derived")
	}
}

func TestLoadRequiresScraperURL(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("SCRAPER_URL", "")

	if _, err := Load(); err == nil {
		t.Error("Missing SCRAPER_URL should be rejected")
	}
}

func TestChunkSizeClamped(t *testing.T) {
	cases := map[int]int{1: 10, 10: 10, 25: 25, 100: 100, 500: 100, -3: 10}
	for in, want := range cases {
		if got := clampChunkSize(in); got != want {
			t.Errorf("clampChunkSize(%d) = %d, want %d", in, got, want)
		}
	}

	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("SCRAPER_URL", "http://localhost:9000")
	t.Setenv("SCRAPE_CHUNK_SIZE", "7")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.ScrapeChunkSize != 10 {
		t.Errorf("ScrapeChunkSize = %d, want clamp to 10", cfg.ScrapeChunkSize)
	}
}
