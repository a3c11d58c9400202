package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/amasui/aniarr/internal/controllers"
	"github.com/amasui/aniarr/internal/models"
	"github.com/sirupsen/logrus"
)

// EpisodeHandler handles episode endpoints
type EpisodeHandler struct {
	catalogCtrl *controllers.CatalogController
	logger      *logrus.Logger
}

// NewEpisodeHandler creates a new episode handler
func NewEpisodeHandler(catalogCtrl *controllers.CatalogController, logger *logrus.Logger) *EpisodeHandler {
	return &EpisodeHandler{catalogCtrl: catalogCtrl, logger: logger}
}

type episodeRequest struct {
	Number          int        `json:"number"`
	Title           string     `json:"title"`
	StreamURL       string     `json:"stream_url"`
	Premium         bool       `json:"premium"`
	DurationSeconds int        `json:"duration_seconds"`
	AirDate         *time.Time `json:"air_date"`
}

// List handles GET /api/anime/{id}/episodes
func (h *EpisodeHandler) List(w http.ResponseWriter, r *http.Request) {
	animeID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	episodes, err := h.catalogCtrl.Episodes(animeID)
	if err != nil {
		h.logger.WithError(err).Error("Failed to list episodes")
		writeJSON(w, http.StatusOK, []*models.Episode{})
		return
	}
	writeJSON(w, http.StatusOK, episodes)
}

// Create handles POST /api/anime/{id}/episodes
func (h *EpisodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	animeID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	var req episodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid payload")
		return
	}

	episode := &models.Episode{
		AnimeID:         animeID,
		Number:          req.Number,
		Title:           req.Title,
		StreamURL:       req.StreamURL,
		Premium:         req.Premium,
		DurationSeconds: req.DurationSeconds,
		AirDate:         req.AirDate,
	}
	if err := h.catalogCtrl.CreateEpisode(episode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, episode)
}

// Delete handles DELETE /api/episodes/{id}
func (h *EpisodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid episode id")
		return
	}

	if err := h.catalogCtrl.DeleteEpisode(id); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}
