package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/amasui/aniarr/internal/api"
	"github.com/amasui/aniarr/internal/config"
	"github.com/amasui/aniarr/internal/controllers"
	"github.com/amasui/aniarr/internal/models"
	"github.com/amasui/aniarr/internal/scheduler"
	"github.com/amasui/aniarr/internal/services/anilist"
	"github.com/amasui/aniarr/internal/services/hianime"
	"github.com/amasui/aniarr/internal/services/jikan"
	"github.com/amasui/aniarr/internal/utils"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := utils.NewLogger(cfg.LogLevel)
	logger.Info("Starting aniarr")
	logger.WithField("config_dir", filepath.Dir(cfg.DatabaseFile)).Info("Configuration loaded")

	// 3. Initialize database
	db, err := models.NewDatabase(cfg.DatabaseFile)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer db.Close()
	logger.Info("Database initialized")

	// 4. Load importer skip list
	skipList, err := utils.LoadSkipList(cfg.SkipListFile)
	if err != nil {
		logger.WithError(err).Warn("Failed to load skip list, continuing without it")
		skipList = &utils.SkipList{}
	} else {
		logger.Info("Skip list loaded")
	}

	// 5. Initialize services
	scraperClient, err := hianime.NewClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize scraper client: %w", err)
	}
	logger.Info("Scraper client initialized")

	jikanClient := jikan.NewClient(cfg, logger)
	anilistClient := anilist.NewClient(cfg, logger)
	logger.Info("Metadata clients initialized")

	// 6. Initialize controllers
	catalogCtrl := controllers.NewCatalogController(db, cfg.CacheTTL, logger)
	scrapeCtrl := controllers.NewScrapeController(db, scraperClient, cfg.ScrapeChunkSize, cfg.ScrapeChunkDelay, logger)
	reconcileCtrl := controllers.NewReconcileController(db, scrapeCtrl, catalogCtrl, cfg.CommitDelay, logger)
	importCtrl := controllers.NewImportController(db, jikanClient, anilistClient, catalogCtrl, skipList, cfg.CommitDelay, logger)
	playbackCtrl := controllers.NewPlaybackController(db, scraperClient, logger)
	logger.Info("Controllers initialized")

	// 7. Initialize scheduler
	sched := scheduler.NewScheduler(scrapeCtrl, db, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 8. Initialize HTTP server
	server := api.NewServer(cfg, db, api.Controllers{
		Catalog:   catalogCtrl,
		Scrape:    scrapeCtrl,
		Reconcile: reconcileCtrl,
		Import:    importCtrl,
		Playback:  playbackCtrl,
	}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 9. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("aniarr is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("aniarr stopped")
	return nil
}
