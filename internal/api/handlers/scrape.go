package handlers

import (
	"net/http"

	"github.com/amasui/aniarr/internal/controllers"
	"github.com/sirupsen/logrus"
)

// ScrapeHandler handles scrape orchestration endpoints
type ScrapeHandler struct {
	scrapeCtrl *controllers.ScrapeController
	logger     *logrus.Logger
}

// NewScrapeHandler creates a new scrape handler
func NewScrapeHandler(scrapeCtrl *controllers.ScrapeController, logger *logrus.Logger) *ScrapeHandler {
	return &ScrapeHandler{scrapeCtrl: scrapeCtrl, logger: logger}
}

// Start handles POST /api/anime/{id}/scrape
func (h *ScrapeHandler) Start(w http.ResponseWriter, r *http.Request) {
	animeID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	progress, err := h.scrapeCtrl.Start(animeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, progress)
}

// Pause handles POST /api/anime/{id}/scrape/pause
func (h *ScrapeHandler) Pause(w http.ResponseWriter, r *http.Request) {
	animeID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	progress, err := h.scrapeCtrl.Pause(animeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// Resume handles POST /api/anime/{id}/scrape/resume
func (h *ScrapeHandler) Resume(w http.ResponseWriter, r *http.Request) {
	animeID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	progress, err := h.scrapeCtrl.Resume(animeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, progress)
}

// Reset handles POST /api/anime/{id}/scrape/reset
func (h *ScrapeHandler) Reset(w http.ResponseWriter, r *http.Request) {
	animeID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	if err := h.scrapeCtrl.Reset(animeID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// progressResponse pairs the session snapshot with recent chunk summaries
type progressResponse struct {
	Progress *progressView              `json:"progress"`
	Recent   []controllers.ChunkSummary `json:"recent_chunks,omitempty"`
}

type progressView struct {
	AnimeID       uint64  `json:"anime_id"`
	Status        string  `json:"status"`
	TotalEpisodes int     `json:"total_episodes"`
	Completed     int     `json:"completed"`
	Failed        int     `json:"failed"`
	CurrentChunk  int     `json:"current_chunk"`
	TotalChunks   int     `json:"total_chunks"`
	Percent       float64 `json:"percent"`
	ETA           string  `json:"eta"`
}

// Progress handles GET /api/anime/{id}/scrape/progress
func (h *ScrapeHandler) Progress(w http.ResponseWriter, r *http.Request) {
	animeID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	progress, recent, err := h.scrapeCtrl.Progress(animeID)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, progressResponse{
		Progress: &progressView{
			AnimeID:       progress.AnimeID,
			Status:        string(progress.Status),
			TotalEpisodes: progress.TotalEpisodes,
			Completed:     progress.Completed,
			Failed:        progress.Failed,
			CurrentChunk:  progress.CurrentChunk,
			TotalChunks:   progress.TotalChunks,
			Percent:       progress.Percent(),
			ETA:           progress.ETA,
		},
		Recent: recent,
	})
}
