package controllers

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/amasui/aniarr/internal/models"
	"github.com/amasui/aniarr/internal/utils"
)

func newImporter(t *testing.T, skipTerms string) (*ImportController, *models.Database) {
	t.Helper()
	db := newTestDB(t)

	path := filepath.Join(t.TempDir(), "skip.txt")
	if err := os.WriteFile(path, []byte(skipTerms), 0644); err != nil {
		t.Fatalf("Failed to write skip list: %v", err)
	}
	skipList, err := utils.LoadSkipList(path)
	if err != nil {
		t.Fatalf("LoadSkipList failed: %v", err)
	}

	logger := utils.NewLogger("error")
	catalogCtrl := NewCatalogController(db, 5*time.Minute, logger)
	return NewImportController(db, nil, nil, catalogCtrl, skipList, 0, logger), db
}

func TestImportCreatesAnimeAndHistory(t *testing.T) {
	ctrl, db := newImporter(t, "")

	anime, err := ctrl.Import(ExternalAnime{
		Source:        models.ImportSourceJikan,
		ExternalID:    205,
		Title:         "Samurai Champloo",
		Status:        models.AnimeStatusCompleted,
		TotalEpisodes: 26,
		Genres:        []string{"Action"},
	})
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if anime.ID == 0 || anime.MALID != 205 {
		t.Errorf("Unexpected anime: %+v", anime)
	}

	record, err := db.GetImportRecord(models.ImportSourceJikan, 205)
	if err != nil {
		t.Fatalf("Import history missing: %v", err)
	}
	if record.AnimeID != anime.ID {
		t.Errorf("History points at anime %d, want %d", record.AnimeID, anime.ID)
	}

	history, err := ctrl.History(10)
	if err != nil {
		t.Fatalf("History failed: %v", err)
	}
	if len(history) != 1 {
		t.Errorf("Got %d history entries, want 1", len(history))
	}
}

func TestImportRejectsSkipListedTitle(t *testing.T) {
	ctrl, db := newImporter(t, "recap\n")

	_, err := ctrl.Import(ExternalAnime{
		Source:     models.ImportSourceJikan,
		ExternalID: 99,
		Title:      "One Piece Recap Special",
	})
	if !errors.Is(err, ErrTitleSkipped) {
		t.Fatalf("Got %v, want ErrTitleSkipped", err)
	}

	_, total, _ := db.ListAnime(models.ListAnimeOptions{})
	if total != 0 {
		t.Errorf("Skipped title still landed in the catalog (%d records)", total)
	}
}

func TestImportRejectsDuplicateExternalID(t *testing.T) {
	ctrl, _ := newImporter(t, "")

	external := ExternalAnime{
		Source:     models.ImportSourceAniList,
		ExternalID: 101,
		Title:      "Attack on Titan",
		Status:     models.AnimeStatusCompleted,
	}
	first, err := ctrl.Import(external)
	if err != nil {
		t.Fatalf("First import failed: %v", err)
	}
	if first.AniListID != 101 {
		t.Errorf("AniListID = %d, want 101", first.AniListID)
	}

	if _, err := ctrl.Import(external); !errors.Is(err, ErrAlreadyImported) {
		t.Errorf("Second import: got %v, want ErrAlreadyImported", err)
	}

	// Same external id from the other provider is a distinct title
	external.Source = models.ImportSourceJikan
	if _, err := ctrl.Import(external); err != nil {
		t.Errorf("Cross-provider import failed: %v", err)
	}
}

func TestImportAllContinuesPastFailures(t *testing.T) {
	ctrl, db := newImporter(t, "recap\n")

	results := ctrl.ImportAll(context.Background(), []ExternalAnime{
		{Source: models.ImportSourceJikan, ExternalID: 1, Title: "Cowboy Bebop", Status: models.AnimeStatusCompleted},
		{Source: models.ImportSourceJikan, ExternalID: 2, Title: "Endless Recap Hour"},
		{Source: models.ImportSourceJikan, ExternalID: 3, Title: ""},
		{Source: models.ImportSourceJikan, ExternalID: 4, Title: "Trigun", Status: models.AnimeStatusCompleted},
	})

	if len(results) != 4 {
		t.Fatalf("Got %d results, want 4", len(results))
	}
	if results[0].AnimeID == 0 || results[0].Error != "" {
		t.Errorf("First item should import cleanly: %+v", results[0])
	}
	if !results[1].Skipped {
		t.Errorf("Skip-listed item should be marked skipped: %+v", results[1])
	}
	if results[2].Error == "" {
		t.Errorf("Blank title should fail validation: %+v", results[2])
	}
	if results[3].AnimeID == 0 {
		t.Errorf("Batch should continue past failures: %+v", results[3])
	}

	_, total, _ := db.ListAnime(models.ListAnimeOptions{})
	if total != 2 {
		t.Errorf("Catalog holds %d records, want 2", total)
	}
}

func TestMapAiringStatus(t *testing.T) {
	cases := map[string]models.AnimeStatus{
		"Finished Airing":  models.AnimeStatusCompleted,
		"FINISHED":         models.AnimeStatusCompleted,
		"Currently Airing": models.AnimeStatusOngoing,
		"RELEASING":        models.AnimeStatusOngoing,
		"Not yet aired":    models.AnimeStatusUpcoming,
		"NOT_YET_RELEASED": models.AnimeStatusUpcoming,
		"":                 models.AnimeStatusOngoing,
	}
	for in, want := range cases {
		if got := mapAiringStatus(in); got != want {
			t.Errorf("mapAiringStatus(%q) = %q, want %q", in, got, want)
		}
	}
}
