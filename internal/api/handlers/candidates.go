package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/amasui/aniarr/internal/controllers"
	"github.com/sirupsen/logrus"
)

// CandidateHandler handles scraped-episode reconciliation endpoints
type CandidateHandler struct {
	reconcileCtrl *controllers.ReconcileController
	logger        *logrus.Logger
}

// NewCandidateHandler creates a new candidate handler
func NewCandidateHandler(reconcileCtrl *controllers.ReconcileController, logger *logrus.Logger) *CandidateHandler {
	return &CandidateHandler{reconcileCtrl: reconcileCtrl, logger: logger}
}

type candidatesResponse struct {
	Candidates []controllers.Candidate      `json:"candidates"`
	Failures   []controllers.EpisodeFailure `json:"failures,omitempty"`
}

// Open handles POST /api/anime/{id}/candidates/open
func (h *CandidateHandler) Open(w http.ResponseWriter, r *http.Request) {
	animeID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	candidates, failures, err := h.reconcileCtrl.Open(animeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidatesResponse{Candidates: candidates, Failures: failures})
}

// List handles GET /api/anime/{id}/candidates
func (h *CandidateHandler) List(w http.ResponseWriter, r *http.Request) {
	animeID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	candidates, failures, err := h.reconcileCtrl.Candidates(animeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidatesResponse{Candidates: candidates, Failures: failures})
}

type commitRequest struct {
	EpisodeNumber int `json:"episode_number"`
}

// Commit handles POST /api/anime/{id}/candidates/commit
func (h *CandidateHandler) Commit(w http.ResponseWriter, r *http.Request) {
	animeID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	var req commitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid payload")
		return
	}
	if req.EpisodeNumber < 1 {
		writeBadRequest(w, "episode_number is required")
		return
	}

	candidate, err := h.reconcileCtrl.CommitOne(animeID, req.EpisodeNumber)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, candidate)
}

// CommitAll handles POST /api/anime/{id}/candidates/commit-all
func (h *CandidateHandler) CommitAll(w http.ResponseWriter, r *http.Request) {
	animeID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	result, err := h.reconcileCtrl.CommitAll(animeID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Cancel handles POST /api/anime/{id}/candidates/cancel
func (h *CandidateHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	animeID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	if err := h.reconcileCtrl.CancelBulk(animeID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cancelling"})
}

// Close handles POST /api/anime/{id}/candidates/close
func (h *CandidateHandler) Close(w http.ResponseWriter, r *http.Request) {
	animeID, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	force := r.URL.Query().Get("force") == "true"
	if err := h.reconcileCtrl.Close(animeID, force); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "closed"})
}
