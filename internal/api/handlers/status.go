package handlers

import (
	"net/http"

	"github.com/amasui/aniarr/internal/controllers"
	"github.com/amasui/aniarr/internal/models"
	"github.com/sirupsen/logrus"
)

// StatusHandler handles status requests
type StatusHandler struct {
	db          *models.Database
	scrapeCtrl  *controllers.ScrapeController
	catalogCtrl *controllers.CatalogController
	logger      *logrus.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(db *models.Database, scrapeCtrl *controllers.ScrapeController, catalogCtrl *controllers.CatalogController, logger *logrus.Logger) *StatusHandler {
	return &StatusHandler{
		db:          db,
		scrapeCtrl:  scrapeCtrl,
		catalogCtrl: catalogCtrl,
		logger:      logger,
	}
}

// StatusResponse represents the status response
type StatusResponse struct {
	TotalAnime    int            `json:"total_anime"`
	AnimeByStatus map[string]int `json:"anime_by_status"`
	ActiveScrapes int            `json:"active_scrapes"`
	CachedEntries int            `json:"cached_entries"`
}

// ServeHTTP handles the status endpoint
func (h *StatusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	animes, _, err := h.db.ListAnime(models.ListAnimeOptions{})
	if err != nil {
		h.logger.WithError(err).Error("Failed to list anime")
		writeError(w, err)
		return
	}

	response := StatusResponse{
		TotalAnime:    len(animes),
		AnimeByStatus: make(map[string]int),
		ActiveScrapes: h.scrapeCtrl.ActiveSessions(),
		CachedEntries: h.catalogCtrl.CacheStats(),
	}
	for _, anime := range animes {
		response.AnimeByStatus[string(anime.Status)]++
	}

	writeJSON(w, http.StatusOK, response)
}
