package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/amasui/aniarr/internal/controllers"
	"github.com/sirupsen/logrus"
)

// PlaybackHandler handles source resolution and watch progress endpoints
type PlaybackHandler struct {
	playbackCtrl *controllers.PlaybackController
	logger       *logrus.Logger
}

// NewPlaybackHandler creates a new playback handler
func NewPlaybackHandler(playbackCtrl *controllers.PlaybackController, logger *logrus.Logger) *PlaybackHandler {
	return &PlaybackHandler{playbackCtrl: playbackCtrl, logger: logger}
}

// Source handles GET /api/anime/{id}/episodes/{number}/source
func (h *PlaybackHandler) Source(w http.ResponseWriter, r *http.Request) {
	animeID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}
	number, err := strconv.Atoi(r.PathValue("number"))
	if err != nil || number < 1 {
		writeBadRequest(w, "invalid episode number")
		return
	}

	source, err := h.playbackCtrl.ResolveSource(r.Context(), animeID, number)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, source)
}

type progressRequest struct {
	AnimeID         uint64 `json:"anime_id"`
	EpisodeNumber   int    `json:"episode_number"`
	PositionSeconds int    `json:"position_seconds"`
	DurationSeconds int    `json:"duration_seconds"`
}

// SaveProgress handles POST /api/progress
func (h *PlaybackHandler) SaveProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid payload")
		return
	}
	if req.AnimeID == 0 || req.EpisodeNumber < 1 {
		writeBadRequest(w, "anime_id and episode_number are required")
		return
	}

	if err := h.playbackCtrl.SaveProgress(req.AnimeID, req.EpisodeNumber, req.PositionSeconds, req.DurationSeconds); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

// ContinueWatching handles GET /api/progress/continue
func (h *PlaybackHandler) ContinueWatching(w http.ResponseWriter, r *http.Request) {
	entries, err := h.playbackCtrl.ContinueWatching(queryInt(r, "limit", 20))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
