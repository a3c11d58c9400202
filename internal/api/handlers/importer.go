package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/amasui/aniarr/internal/controllers"
	"github.com/amasui/aniarr/internal/models"
	"github.com/sirupsen/logrus"
)

// ImportHandler handles metadata importer endpoints
type ImportHandler struct {
	importCtrl *controllers.ImportController
	logger     *logrus.Logger
}

// NewImportHandler creates a new import handler
func NewImportHandler(importCtrl *controllers.ImportController, logger *logrus.Logger) *ImportHandler {
	return &ImportHandler{importCtrl: importCtrl, logger: logger}
}

// Search handles GET /api/import/search
func (h *ImportHandler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		writeBadRequest(w, "q is required")
		return
	}
	source := models.ImportSource(r.URL.Query().Get("source"))
	if source == "" {
		source = models.ImportSourceJikan
	}

	results, err := h.importCtrl.Search(r.Context(), source, query, queryInt(r, "limit", 20))
	if err != nil {
		h.logger.WithError(err).Error("Import search failed")
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// Trending handles GET /api/import/trending
func (h *ImportHandler) Trending(w http.ResponseWriter, r *http.Request) {
	results, err := h.importCtrl.Trending(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		h.logger.WithError(err).Error("Trending fetch failed")
		writeJSON(w, http.StatusOK, []controllers.ExternalAnime{})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// Seasonal handles GET /api/import/seasonal
func (h *ImportHandler) Seasonal(w http.ResponseWriter, r *http.Request) {
	results, err := h.importCtrl.Seasonal(r.Context(), queryInt(r, "limit", 20))
	if err != nil {
		h.logger.WithError(err).Error("Seasonal fetch failed")
		writeJSON(w, http.StatusOK, []controllers.ExternalAnime{})
		return
	}
	writeJSON(w, http.StatusOK, results)
}

// Import handles POST /api/import
func (h *ImportHandler) Import(w http.ResponseWriter, r *http.Request) {
	var external controllers.ExternalAnime
	if err := json.NewDecoder(r.Body).Decode(&external); err != nil {
		writeBadRequest(w, "invalid payload")
		return
	}
	if external.Title == "" || external.ExternalID == 0 {
		writeBadRequest(w, "title and external_id are required")
		return
	}

	anime, err := h.importCtrl.Import(external)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, anime)
}

type importAllRequest struct {
	Items []controllers.ExternalAnime `json:"items"`
}

// ImportAll handles POST /api/import/all
func (h *ImportHandler) ImportAll(w http.ResponseWriter, r *http.Request) {
	var req importAllRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid payload")
		return
	}
	if len(req.Items) == 0 {
		writeBadRequest(w, "items are required")
		return
	}

	results := h.importCtrl.ImportAll(r.Context(), req.Items)
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

// History handles GET /api/import/history
func (h *ImportHandler) History(w http.ResponseWriter, r *http.Request) {
	records, err := h.importCtrl.History(queryInt(r, "limit", 50))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}
