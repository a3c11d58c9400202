package controllers

import (
	"errors"
	"testing"
	"time"

	"github.com/amasui/aniarr/internal/models"
	"github.com/amasui/aniarr/internal/utils"
)

func newCatalog(t *testing.T) (*CatalogController, *models.Database) {
	t.Helper()
	db := newTestDB(t)
	return NewCatalogController(db, 5*time.Minute, utils.NewLogger("error")), db
}

func TestCreateAnimeValidation(t *testing.T) {
	ctrl, _ := newCatalog(t)

	if err := ctrl.CreateAnime(&models.Anime{Title: "   "}); !errors.Is(err, ErrValidation) {
		t.Errorf("Blank title: got %v, want ErrValidation", err)
	}
	if err := ctrl.CreateAnime(&models.Anime{Title: "Trigun", Status: "airing"}); !errors.Is(err, ErrValidation) {
		t.Errorf("Unknown status: got %v, want ErrValidation", err)
	}

	anime := &models.Anime{Title: "Trigun"}
	if err := ctrl.CreateAnime(anime); err != nil {
		t.Fatalf("CreateAnime failed: %v", err)
	}
	if anime.Status != models.AnimeStatusOngoing {
		t.Errorf("Default status = %q, want ongoing", anime.Status)
	}
	if anime.ID == 0 {
		t.Error("ID was not assigned")
	}
}

func TestDeleteInvalidatesCaches(t *testing.T) {
	ctrl, _ := newCatalog(t)

	keep := &models.Anime{Title: "Mushishi", Status: models.AnimeStatusCompleted, TotalEpisodes: 26}
	doomed := &models.Anime{Title: "Texhnolyze", Status: models.AnimeStatusCompleted, TotalEpisodes: 22}
	for _, anime := range []*models.Anime{keep, doomed} {
		if err := ctrl.CreateAnime(anime); err != nil {
			t.Fatalf("CreateAnime failed: %v", err)
		}
	}
	if err := ctrl.CreateEpisode(&models.Episode{AnimeID: doomed.ID, Number: 1, Title: "Stranger"}); err != nil {
		t.Fatalf("CreateEpisode failed: %v", err)
	}

	// Warm every cache shape
	if _, err := ctrl.ListAnime(models.ListAnimeOptions{}); err != nil {
		t.Fatalf("ListAnime failed: %v", err)
	}
	if _, err := ctrl.ListAnime(models.ListAnimeOptions{Search: "tex"}); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if _, err := ctrl.RecentAnime(10); err != nil {
		t.Fatalf("RecentAnime failed: %v", err)
	}
	if _, err := ctrl.GetAnime(doomed.ID); err != nil {
		t.Fatalf("GetAnime failed: %v", err)
	}
	if _, err := ctrl.Episodes(doomed.ID); err != nil {
		t.Fatalf("Episodes failed: %v", err)
	}

	summary, err := ctrl.DeleteAnime(doomed.ID)
	if err != nil {
		t.Fatalf("DeleteAnime failed: %v", err)
	}
	if summary.EpisodesDeleted != 1 || summary.Title != "Texhnolyze" {
		t.Errorf("Unexpected delete summary: %+v", summary)
	}

	// No read may ever surface the deleted record again
	page, err := ctrl.ListAnime(models.ListAnimeOptions{})
	if err != nil {
		t.Fatalf("ListAnime after delete failed: %v", err)
	}
	for _, anime := range page.Items {
		if anime.ID == doomed.ID {
			t.Error("Deleted anime still present in listing")
		}
	}
	if page.Total != 1 {
		t.Errorf("Total after delete = %d, want 1", page.Total)
	}

	search, err := ctrl.ListAnime(models.ListAnimeOptions{Search: "tex"})
	if err != nil {
		t.Fatalf("Search after delete failed: %v", err)
	}
	if len(search.Items) != 0 {
		t.Error("Deleted anime still present in search results")
	}

	recent, err := ctrl.RecentAnime(10)
	if err != nil {
		t.Fatalf("RecentAnime after delete failed: %v", err)
	}
	for _, anime := range recent {
		if anime.ID == doomed.ID {
			t.Error("Deleted anime still present in recent list")
		}
	}

	if _, err := ctrl.GetAnime(doomed.ID); err != models.ErrNotFound {
		t.Errorf("GetAnime after delete: got %v, want ErrNotFound", err)
	}

	episodes, err := ctrl.Episodes(doomed.ID)
	if err != nil {
		t.Fatalf("Episodes after delete failed: %v", err)
	}
	if len(episodes) != 0 {
		t.Error("Episodes of deleted anime still cached")
	}
}

func TestUpdateAnimeRefreshesCache(t *testing.T) {
	ctrl, _ := newCatalog(t)

	anime := &models.Anime{Title: "Monster", Status: models.AnimeStatusOngoing}
	if err := ctrl.CreateAnime(anime); err != nil {
		t.Fatalf("CreateAnime failed: %v", err)
	}
	if _, err := ctrl.GetAnime(anime.ID); err != nil {
		t.Fatalf("GetAnime failed: %v", err)
	}

	anime.Status = models.AnimeStatusCompleted
	if err := ctrl.UpdateAnime(anime); err != nil {
		t.Fatalf("UpdateAnime failed: %v", err)
	}

	fresh, err := ctrl.GetAnime(anime.ID)
	if err != nil {
		t.Fatalf("GetAnime after update failed: %v", err)
	}
	if fresh.Status != models.AnimeStatusCompleted {
		t.Errorf("Status after update = %q, want completed", fresh.Status)
	}
}

func TestBulkUpdateStatusReportsMissing(t *testing.T) {
	ctrl, _ := newCatalog(t)

	a := &models.Anime{Title: "Planetes", Status: models.AnimeStatusOngoing}
	b := &models.Anime{Title: "Kaiba", Status: models.AnimeStatusOngoing}
	for _, anime := range []*models.Anime{a, b} {
		if err := ctrl.CreateAnime(anime); err != nil {
			t.Fatalf("CreateAnime failed: %v", err)
		}
	}

	missing, err := ctrl.BulkUpdateStatus([]uint64{a.ID, b.ID, 9999}, models.AnimeStatusCompleted)
	if err != nil {
		t.Fatalf("BulkUpdateStatus failed: %v", err)
	}
	if len(missing) != 1 || missing[0] != 9999 {
		t.Errorf("Missing = %v, want [9999]", missing)
	}

	for _, id := range []uint64{a.ID, b.ID} {
		got, err := ctrl.GetAnime(id)
		if err != nil {
			t.Fatalf("GetAnime failed: %v", err)
		}
		if got.Status != models.AnimeStatusCompleted {
			t.Errorf("Anime %d status = %q, want completed", id, got.Status)
		}
	}

	if _, err := ctrl.BulkUpdateStatus([]uint64{a.ID}, "bogus"); err == nil {
		t.Error("Invalid bulk status should be rejected")
	}
}

func TestBulkDeleteSkipsMissing(t *testing.T) {
	ctrl, db := newCatalog(t)

	a := &models.Anime{Title: "Ping Pong", Status: models.AnimeStatusCompleted}
	b := &models.Anime{Title: "Tatami Galaxy", Status: models.AnimeStatusCompleted}
	for _, anime := range []*models.Anime{a, b} {
		if err := ctrl.CreateAnime(anime); err != nil {
			t.Fatalf("CreateAnime failed: %v", err)
		}
	}

	summaries, err := ctrl.BulkDelete([]uint64{a.ID, 9999, b.ID})
	if err != nil {
		t.Fatalf("BulkDelete failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Errorf("Got %d summaries, want 2", len(summaries))
	}

	_, total, err := db.ListAnime(models.ListAnimeOptions{})
	if err != nil {
		t.Fatalf("ListAnime failed: %v", err)
	}
	if total != 0 {
		t.Errorf("Total after bulk delete = %d, want 0", total)
	}
}

func TestCreateEpisodeDuplicateRejected(t *testing.T) {
	ctrl, _ := newCatalog(t)

	anime := &models.Anime{Title: "Baccano", Status: models.AnimeStatusCompleted}
	if err := ctrl.CreateAnime(anime); err != nil {
		t.Fatalf("CreateAnime failed: %v", err)
	}

	if err := ctrl.CreateEpisode(&models.Episode{AnimeID: anime.ID, Number: 1}); err != nil {
		t.Fatalf("CreateEpisode failed: %v", err)
	}
	if err := ctrl.CreateEpisode(&models.Episode{AnimeID: anime.ID, Number: 1}); err != models.ErrDuplicateEpisode {
		t.Errorf("Duplicate episode: got %v, want ErrDuplicateEpisode", err)
	}
	if err := ctrl.CreateEpisode(&models.Episode{AnimeID: anime.ID, Number: 0}); err == nil {
		t.Error("Episode number 0 should be rejected")
	}
	if err := ctrl.CreateEpisode(&models.Episode{AnimeID: 9999, Number: 1}); err == nil {
		t.Error("Episode for missing anime should be rejected")
	}
}
