package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Chunk size bounds for the scrape orchestrator. Values outside the range
// are clamped rather than rejected.
const (
	MinChunkSize = 10
	MaxChunkSize = 100
)

// Config holds all application configuration
type Config struct {
	// Scraper backend
	ScraperURL     string
	ScraperTimeout time.Duration

	// Scrape orchestration
	ScrapeChunkSize  int           // Episodes per chunk (clamped to 10-100, default: 25)
	ScrapeChunkDelay time.Duration // Pause between chunk requests (default: 2s)

	// Reconciliation
	CommitDelay time.Duration // Pause between bulk episode commits (default: 500ms)

	// Metadata providers
	JikanURL   string
	AniListURL string

	// Cache
	CacheTTL time.Duration // Catalog cache entry lifetime (default: 5m)

	// Server
	ServerPort string

	// Paths
	SkipListFile string // $CONFIG_DIR/skiplist.txt
	DatabaseFile string // $CONFIG_DIR/aniarr.db

	// Logging
	LogLevel string
}

// Load loads configuration from environment variables and .env file
func Load() (*Config, error) {
	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	viper.AutomaticEnv()

	// Load .env file if it exists (ignore if not found)
	_ = viper.ReadInConfig()

	viper.SetDefault("SCRAPER_TIMEOUT_SECONDS", 60)
	viper.SetDefault("SCRAPE_CHUNK_SIZE", 25)
	viper.SetDefault("SCRAPE_CHUNK_DELAY_SECONDS", 2)
	viper.SetDefault("COMMIT_DELAY_MS", 500)
	viper.SetDefault("JIKAN_URL", "https://api.jikan.moe/v4")
	viper.SetDefault("ANILIST_URL", "https://graphql.anilist.co")
	viper.SetDefault("CACHE_TTL_MINUTES", 5)
	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")

	configDir := viper.GetString("CONFIG_DIR")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config", "aniarr")
	} else {
		absPath, err := filepath.Abs(configDir)
		if err != nil {
			return nil, fmt.Errorf("failed to get absolute path for CONFIG_DIR: %w", err)
		}
		configDir = absPath
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	config := &Config{
		ScraperURL:     viper.GetString("SCRAPER_URL"),
		ScraperTimeout: time.Duration(viper.GetInt("SCRAPER_TIMEOUT_SECONDS")) * time.Second,

		ScrapeChunkSize:  clampChunkSize(viper.GetInt("SCRAPE_CHUNK_SIZE")),
		ScrapeChunkDelay: time.Duration(viper.GetInt("SCRAPE_CHUNK_DELAY_SECONDS")) * time.Second,

		CommitDelay: time.Duration(viper.GetInt("COMMIT_DELAY_MS")) * time.Millisecond,

		JikanURL:   viper.GetString("JIKAN_URL"),
		AniListURL: viper.GetString("ANILIST_URL"),

		CacheTTL: time.Duration(viper.GetInt("CACHE_TTL_MINUTES")) * time.Minute,

		ServerPort: viper.GetString("SERVER_PORT"),

		SkipListFile: filepath.Join(configDir, "skiplist.txt"),
		DatabaseFile: filepath.Join(configDir, "aniarr.db"),

		LogLevel: viper.GetString("LOG_LEVEL"),
	}

	if config.ScraperURL == "" {
		return nil, fmt.Errorf("SCRAPER_URL is required")
	}

	return config, nil
}

func clampChunkSize(size int) int {
	if size < MinChunkSize {
		return MinChunkSize
	}
	if size > MaxChunkSize {
		return MaxChunkSize
	}
	return size
}
