package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/amasui/aniarr/internal/controllers"
	"github.com/amasui/aniarr/internal/models"
	"github.com/amasui/aniarr/internal/utils"
)

func newTestDB(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{models.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("episode 3 of anime 1 does not exist: %w", models.ErrNotFound), http.StatusNotFound},
		{controllers.ErrNoSession, http.StatusNotFound},
		{models.ErrDuplicateEpisode, http.StatusConflict},
		{controllers.ErrScrapeRunning, http.StatusConflict},
		{controllers.ErrNotPaused, http.StatusUnprocessableEntity},
		{fmt.Errorf("%w: title is required", controllers.ErrValidation), http.StatusBadRequest},
		{errors.New("bucket write failed"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		writeError(rec, tc.err)
		if rec.Code != tc.want {
			t.Errorf("writeError(%v) = %d, want %d", tc.err, rec.Code, tc.want)
		}
	}
}

func TestSaveProgressUnknownEpisodeReturns404(t *testing.T) {
	db := newTestDB(t)
	logger := utils.NewLogger("error")
	handler := NewPlaybackHandler(controllers.NewPlaybackController(db, nil, logger), logger)

	body := strings.NewReader(`{"anime_id": 1, "episode_number": 3, "position_seconds": 10}`)
	req := httptest.NewRequest(http.MethodPost, "/api/progress", body)
	rec := httptest.NewRecorder()
	handler.SaveProgress(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("Status = %d, want 404 for an unknown episode", rec.Code)
	}
}

func TestCreateAnimeValidationReturns400(t *testing.T) {
	db := newTestDB(t)
	logger := utils.NewLogger("error")
	catalogCtrl := controllers.NewCatalogController(db, 5*time.Minute, logger)
	handler := NewAnimeHandler(catalogCtrl, logger)

	cases := []string{
		`{"title": "   "}`,
		`{"title": "Trigun", "status": "airing"}`,
	}
	for _, payload := range cases {
		req := httptest.NewRequest(http.MethodPost, "/api/anime", strings.NewReader(payload))
		rec := httptest.NewRecorder()
		handler.Create(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Create(%s) = %d, want 400", payload, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodPost, "/api/anime", strings.NewReader(`{"title": "Trigun"}`))
	rec := httptest.NewRecorder()
	handler.Create(rec, req)
	if rec.Code != http.StatusCreated {
		t.Errorf("Valid create = %d, want 201", rec.Code)
	}
}
