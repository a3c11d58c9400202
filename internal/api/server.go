package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/amasui/aniarr/internal/api/handlers"
	"github.com/amasui/aniarr/internal/api/middleware"
	"github.com/amasui/aniarr/internal/config"
	"github.com/amasui/aniarr/internal/controllers"
	"github.com/amasui/aniarr/internal/models"
	"github.com/sirupsen/logrus"
)

// Controllers bundles everything the HTTP surface exposes
type Controllers struct {
	Catalog   *controllers.CatalogController
	Scrape    *controllers.ScrapeController
	Reconcile *controllers.ReconcileController
	Import    *controllers.ImportController
	Playback  *controllers.PlaybackController
}

// Server represents the HTTP server
type Server struct {
	server *http.Server
	logger *logrus.Logger
}

// NewServer creates a new HTTP server
func NewServer(cfg *config.Config, db *models.Database, ctrls Controllers, logger *logrus.Logger) *Server {
	s := &Server{logger: logger}

	mux := http.NewServeMux()
	s.setupRoutes(mux, db, ctrls)

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      middleware.Logging(mux, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // Bulk commits are slow by design
		IdleTimeout:  60 * time.Second,
	}

	return s
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes(mux *http.ServeMux, db *models.Database, ctrls Controllers) {
	healthHandler := handlers.NewHealthHandler(s.logger)
	mux.HandleFunc("GET /health", healthHandler.ServeHTTP)

	statusHandler := handlers.NewStatusHandler(db, ctrls.Scrape, ctrls.Catalog, s.logger)
	mux.HandleFunc("GET /status", statusHandler.ServeHTTP)

	animeHandler := handlers.NewAnimeHandler(ctrls.Catalog, s.logger)
	mux.HandleFunc("GET /api/anime", animeHandler.List)
	mux.HandleFunc("POST /api/anime", animeHandler.Create)
	mux.HandleFunc("GET /api/anime/recent", animeHandler.Recent)
	mux.HandleFunc("GET /api/anime/{id}", animeHandler.Get)
	mux.HandleFunc("PUT /api/anime/{id}", animeHandler.Update)
	mux.HandleFunc("DELETE /api/anime/{id}", animeHandler.Delete)
	mux.HandleFunc("POST /api/anime/bulk/status", animeHandler.BulkStatus)
	mux.HandleFunc("POST /api/anime/bulk/delete", animeHandler.BulkDelete)

	episodeHandler := handlers.NewEpisodeHandler(ctrls.Catalog, s.logger)
	mux.HandleFunc("GET /api/anime/{id}/episodes", episodeHandler.List)
	mux.HandleFunc("POST /api/anime/{id}/episodes", episodeHandler.Create)
	mux.HandleFunc("DELETE /api/episodes/{id}", episodeHandler.Delete)

	scrapeHandler := handlers.NewScrapeHandler(ctrls.Scrape, s.logger)
	mux.HandleFunc("POST /api/anime/{id}/scrape", scrapeHandler.Start)
	mux.HandleFunc("POST /api/anime/{id}/scrape/pause", scrapeHandler.Pause)
	mux.HandleFunc("POST /api/anime/{id}/scrape/resume", scrapeHandler.Resume)
	mux.HandleFunc("POST /api/anime/{id}/scrape/reset", scrapeHandler.Reset)
	mux.HandleFunc("GET /api/anime/{id}/scrape/progress", scrapeHandler.Progress)

	candidateHandler := handlers.NewCandidateHandler(ctrls.Reconcile, s.logger)
	mux.HandleFunc("POST /api/anime/{id}/candidates/open", candidateHandler.Open)
	mux.HandleFunc("GET /api/anime/{id}/candidates", candidateHandler.List)
	mux.HandleFunc("POST /api/anime/{id}/candidates/commit", candidateHandler.Commit)
	mux.HandleFunc("POST /api/anime/{id}/candidates/commit-all", candidateHandler.CommitAll)
	mux.HandleFunc("POST /api/anime/{id}/candidates/cancel", candidateHandler.Cancel)
	mux.HandleFunc("POST /api/anime/{id}/candidates/close", candidateHandler.Close)

	importHandler := handlers.NewImportHandler(ctrls.Import, s.logger)
	mux.HandleFunc("GET /api/import/search", importHandler.Search)
	mux.HandleFunc("GET /api/import/trending", importHandler.Trending)
	mux.HandleFunc("GET /api/import/seasonal", importHandler.Seasonal)
	mux.HandleFunc("POST /api/import", importHandler.Import)
	mux.HandleFunc("POST /api/import/all", importHandler.ImportAll)
	mux.HandleFunc("GET /api/import/history", importHandler.History)

	playbackHandler := handlers.NewPlaybackHandler(ctrls.Playback, s.logger)
	mux.HandleFunc("GET /api/anime/{id}/episodes/{number}/source", playbackHandler.Source)
	mux.HandleFunc("POST /api/progress", playbackHandler.SaveProgress)
	mux.HandleFunc("GET /api/progress/continue", playbackHandler.ContinueWatching)
}

// Start starts the HTTP server
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithField("port", s.server.Addr).Info("Starting HTTP server")

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case err := <-errChan:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		return s.Shutdown(context.Background())
	}
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return s.server.Shutdown(shutdownCtx)
}
