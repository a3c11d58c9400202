package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/amasui/aniarr/internal/controllers"
	"github.com/amasui/aniarr/internal/models"
	"github.com/sirupsen/logrus"
)

// AnimeHandler handles anime CRUD endpoints
type AnimeHandler struct {
	catalogCtrl *controllers.CatalogController
	logger      *logrus.Logger
}

// NewAnimeHandler creates a new anime handler
func NewAnimeHandler(catalogCtrl *controllers.CatalogController, logger *logrus.Logger) *AnimeHandler {
	return &AnimeHandler{catalogCtrl: catalogCtrl, logger: logger}
}

// animeRequest is the create/update payload
type animeRequest struct {
	Title         string             `json:"title"`
	AltTitle      string             `json:"alt_title"`
	Status        models.AnimeStatus `json:"status"`
	TotalEpisodes int                `json:"total_episodes"`
	PosterURL     string             `json:"poster_url"`
	Genres        []string           `json:"genres"`
	Studios       []string           `json:"studios"`
	Synopsis      string             `json:"synopsis"`
}

// List handles GET /api/anime
func (h *AnimeHandler) List(w http.ResponseWriter, r *http.Request) {
	opts := models.ListAnimeOptions{
		Status: models.AnimeStatus(r.URL.Query().Get("status")),
		Search: r.URL.Query().Get("q"),
		Offset: queryInt(r, "offset", 0),
		Limit:  queryInt(r, "limit", 50),
	}
	if opts.Status != "" && !models.ValidAnimeStatus(opts.Status) {
		writeBadRequest(w, "unknown status filter")
		return
	}

	page, err := h.catalogCtrl.ListAnime(opts)
	if err != nil {
		// Degrade reads to an empty page rather than failing the view
		h.logger.WithError(err).Error("Failed to list anime")
		writeJSON(w, http.StatusOK, &controllers.AnimePage{Items: []*models.Anime{}})
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// Get handles GET /api/anime/{id}
func (h *AnimeHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	anime, err := h.catalogCtrl.GetAnime(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, anime)
}

// Create handles POST /api/anime
func (h *AnimeHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req animeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid payload")
		return
	}

	anime := &models.Anime{
		Title:         req.Title,
		AltTitle:      req.AltTitle,
		Status:        req.Status,
		TotalEpisodes: req.TotalEpisodes,
		PosterURL:     req.PosterURL,
		Genres:        req.Genres,
		Studios:       req.Studios,
		Synopsis:      req.Synopsis,
	}
	if err := h.catalogCtrl.CreateAnime(anime); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, anime)
}

// Update handles PUT /api/anime/{id}
func (h *AnimeHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	anime, err := h.catalogCtrl.GetAnime(id)
	if err != nil {
		writeError(w, err)
		return
	}

	var req animeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid payload")
		return
	}

	updated := *anime
	updated.Title = req.Title
	updated.AltTitle = req.AltTitle
	updated.Status = req.Status
	updated.TotalEpisodes = req.TotalEpisodes
	updated.PosterURL = req.PosterURL
	updated.Genres = req.Genres
	updated.Studios = req.Studios
	updated.Synopsis = req.Synopsis

	if err := h.catalogCtrl.UpdateAnime(&updated); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, &updated)
}

// Delete handles DELETE /api/anime/{id}
func (h *AnimeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeBadRequest(w, "invalid anime id")
		return
	}

	summary, err := h.catalogCtrl.DeleteAnime(id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

type bulkStatusRequest struct {
	IDs    []uint64           `json:"ids"`
	Status models.AnimeStatus `json:"status"`
}

// BulkStatus handles POST /api/anime/bulk/status
func (h *AnimeHandler) BulkStatus(w http.ResponseWriter, r *http.Request) {
	var req bulkStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid payload")
		return
	}
	if len(req.IDs) == 0 {
		writeBadRequest(w, "ids are required")
		return
	}

	missing, err := h.catalogCtrl.BulkUpdateStatus(req.IDs, req.Status)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"updated": len(req.IDs) - len(missing),
		"missing": missing,
	})
}

type bulkDeleteRequest struct {
	IDs []uint64 `json:"ids"`
}

// BulkDelete handles POST /api/anime/bulk/delete
func (h *AnimeHandler) BulkDelete(w http.ResponseWriter, r *http.Request) {
	var req bulkDeleteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid payload")
		return
	}
	if len(req.IDs) == 0 {
		writeBadRequest(w, "ids are required")
		return
	}

	summaries, err := h.catalogCtrl.BulkDelete(req.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": summaries})
}

// Recent handles GET /api/anime/recent
func (h *AnimeHandler) Recent(w http.ResponseWriter, r *http.Request) {
	items, err := h.catalogCtrl.RecentAnime(queryInt(r, "limit", 20))
	if err != nil {
		h.logger.WithError(err).Error("Failed to list recent anime")
		writeJSON(w, http.StatusOK, []*models.Anime{})
		return
	}
	writeJSON(w, http.StatusOK, items)
}
