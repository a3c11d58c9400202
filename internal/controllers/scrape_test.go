package controllers

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/amasui/aniarr/internal/models"
	"github.com/amasui/aniarr/internal/services/hianime"
	"github.com/amasui/aniarr/internal/utils"
)

// fakeScraper is a scripted ScrapeService for orchestrator tests
type fakeScraper struct {
	mu    sync.Mutex
	calls [][2]int // Recorded [from, to] pairs in dispatch order

	gate         chan struct{}  // When non-nil, each call blocks until a token arrives
	failChunks   map[int]bool   // from -> whole chunk call fails
	failEpisodes map[int]string // episode -> per-episode failure message
}

func (f *fakeScraper) ScrapeRange(ctx context.Context, animeSlug string, from, to int) (*hianime.BatchResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, [2]int{from, to})
	f.mu.Unlock()

	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if f.failChunks[from] {
		return nil, fmt.Errorf("scrape service returned status 500")
	}

	resp := &hianime.BatchResponse{}
	for n := from; n <= to; n++ {
		if msg, ok := f.failEpisodes[n]; ok {
			resp.Results = append(resp.Results, hianime.EpisodeResult{Episode: n, Error: msg})
			continue
		}
		resp.Results = append(resp.Results, hianime.EpisodeResult{
			Episode:   n,
			Success:   true,
			Title:     fmt.Sprintf("Episode %d", n),
			StreamURL: fmt.Sprintf("https://cdn.example.com/ep/%d.m3u8", n),
			ScrapedAt: time.Now(),
		})
	}
	return resp, nil
}

func (f *fakeScraper) ScrapeEpisode(ctx context.Context, animeSlug string, episode int) (*hianime.EpisodeResult, error) {
	resp, err := f.ScrapeRange(ctx, animeSlug, episode, episode)
	if err != nil {
		return nil, err
	}
	return &resp.Results[0], nil
}

func (f *fakeScraper) recordedCalls() [][2]int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][2]int(nil), f.calls...)
}

func newTestDB(t *testing.T) *models.Database {
	t.Helper()
	db, err := models.NewDatabase(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seedAnime(t *testing.T, db *models.Database, totalEpisodes int) *models.Anime {
	t.Helper()
	anime := &models.Anime{
		Title:         "Cowboy Bebop",
		Status:        models.AnimeStatusCompleted,
		TotalEpisodes: totalEpisodes,
	}
	if err := db.CreateAnime(anime); err != nil {
		t.Fatalf("Failed to create anime: %v", err)
	}
	return anime
}

func waitForCalls(t *testing.T, scraper *fakeScraper, n int) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if len(scraper.recordedCalls()) >= n {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d scrape calls", n)
}

func waitForStatus(t *testing.T, ctrl *ScrapeController, animeID uint64, status models.ScrapeStatus) *models.ScrapeProgress {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		progress, _, err := ctrl.Progress(animeID)
		if err != nil {
			t.Fatalf("Progress failed: %v", err)
		}
		if progress.Status == status {
			return progress
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for scrape status %q", status)
	return nil
}

func TestChunkRangePartition(t *testing.T) {
	cases := []struct {
		total, size int
	}{
		{1, 10}, {9, 10}, {10, 10}, {11, 10}, {25, 10}, {100, 25}, {101, 25}, {366, 100},
	}

	for _, tc := range cases {
		chunks := chunkRange(tc.total, tc.size)

		want := (tc.total + tc.size - 1) / tc.size
		if len(chunks) != want {
			t.Errorf("chunkRange(%d, %d): got %d chunks, want %d", tc.total, tc.size, len(chunks), want)
		}

		// Chunks must cover [1, total] contiguously
		next := 1
		for _, chunk := range chunks {
			if chunk.from != next {
				t.Errorf("chunkRange(%d, %d): chunk starts at %d, want %d", tc.total, tc.size, chunk.from, next)
			}
			if chunk.to < chunk.from {
				t.Errorf("chunkRange(%d, %d): inverted chunk %v", tc.total, tc.size, chunk)
			}
			if chunk.to-chunk.from+1 > tc.size {
				t.Errorf("chunkRange(%d, %d): oversized chunk %v", tc.total, tc.size, chunk)
			}
			next = chunk.to + 1
		}
		if next != tc.total+1 {
			t.Errorf("chunkRange(%d, %d): coverage ends at %d, want %d", tc.total, tc.size, next-1, tc.total)
		}
	}

	if chunks := chunkRange(0, 10); chunks != nil {
		t.Errorf("chunkRange(0, 10) should be empty, got %v", chunks)
	}
}

func TestScrapeRunCoversAllEpisodes(t *testing.T) {
	db := newTestDB(t)
	anime := seedAnime(t, db, 25)

	scraper := &fakeScraper{}
	ctrl := NewScrapeController(db, scraper, 10, 0, utils.NewLogger("error"))

	if _, err := ctrl.Start(anime.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	progress := waitForStatus(t, ctrl, anime.ID, models.ScrapeStatusCompleted)

	calls := scraper.recordedCalls()
	wantCalls := [][2]int{{1, 10}, {11, 20}, {21, 25}}
	if len(calls) != len(wantCalls) {
		t.Fatalf("Got %d chunk calls, want %d: %v", len(calls), len(wantCalls), calls)
	}
	for i, call := range calls {
		if call != wantCalls[i] {
			t.Errorf("Chunk call %d: got %v, want %v", i, call, wantCalls[i])
		}
	}

	if progress.Completed != 25 || progress.Failed != 0 {
		t.Errorf("Completed/Failed = %d/%d, want 25/0", progress.Completed, progress.Failed)
	}
	if progress.Percent() != 100 {
		t.Errorf("Percent = %f, want 100", progress.Percent())
	}

	candidates, failures, err := ctrl.Results(anime.ID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if len(candidates) != 25 {
		t.Errorf("Got %d candidates, want 25", len(candidates))
	}
	if len(failures) != 0 {
		t.Errorf("Got %d failures, want 0", len(failures))
	}

	// Completion must be durable
	stored, err := db.GetScrapeProgress(anime.ID)
	if err != nil {
		t.Fatalf("Stored progress missing: %v", err)
	}
	if stored.Status != models.ScrapeStatusCompleted {
		t.Errorf("Stored status = %q, want completed", stored.Status)
	}
}

func TestScrapeChunkFailureContinues(t *testing.T) {
	db := newTestDB(t)
	anime := seedAnime(t, db, 25)

	scraper := &fakeScraper{failChunks: map[int]bool{11: true}}
	ctrl := NewScrapeController(db, scraper, 10, 0, utils.NewLogger("error"))

	if _, err := ctrl.Start(anime.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	progress := waitForStatus(t, ctrl, anime.ID, models.ScrapeStatusCompleted)

	// The failed chunk is counted and the run proceeds past it
	if len(scraper.recordedCalls()) != 3 {
		t.Fatalf("Got %d chunk calls, want 3", len(scraper.recordedCalls()))
	}
	if progress.Completed != 15 {
		t.Errorf("Completed = %d, want 15", progress.Completed)
	}
	if progress.Failed != 10 {
		t.Errorf("Failed = %d, want 10", progress.Failed)
	}

	_, failures, err := ctrl.Results(anime.ID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if len(failures) != 10 {
		t.Errorf("Got %d failure entries, want 10", len(failures))
	}
}

func TestScrapePerEpisodeFailures(t *testing.T) {
	db := newTestDB(t)
	anime := seedAnime(t, db, 10)

	scraper := &fakeScraper{failEpisodes: map[int]string{3: "player timeout", 7: "not found"}}
	ctrl := NewScrapeController(db, scraper, 10, 0, utils.NewLogger("error"))

	if _, err := ctrl.Start(anime.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	progress := waitForStatus(t, ctrl, anime.ID, models.ScrapeStatusCompleted)

	if progress.Completed != 8 || progress.Failed != 2 {
		t.Errorf("Completed/Failed = %d/%d, want 8/2", progress.Completed, progress.Failed)
	}

	_, failures, _ := ctrl.Results(anime.ID)
	if len(failures) != 2 {
		t.Fatalf("Got %d failures, want 2", len(failures))
	}
	if failures[0].EpisodeNumber != 3 || failures[0].Error != "player timeout" {
		t.Errorf("Unexpected first failure: %+v", failures[0])
	}
}

func TestScrapePauseResume(t *testing.T) {
	db := newTestDB(t)
	anime := seedAnime(t, db, 30)

	scraper := &fakeScraper{gate: make(chan struct{})}
	ctrl := NewScrapeController(db, scraper, 10, 0, utils.NewLogger("error"))

	if _, err := ctrl.Start(anime.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	// Let chunk 0 finish, then pause while chunk 1 is in flight. The
	// in-flight chunk must be allowed to complete.
	scraper.gate <- struct{}{}
	waitForCalls(t, scraper, 2)
	if _, err := ctrl.Pause(anime.ID); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	scraper.gate <- struct{}{}

	progress := waitForStatus(t, ctrl, anime.ID, models.ScrapeStatusPaused)
	if progress.CurrentChunk != 2 {
		t.Fatalf("Paused at chunk %d, want 2", progress.CurrentChunk)
	}
	if progress.Completed != 20 {
		t.Errorf("Completed = %d, want 20", progress.Completed)
	}

	// Paused state must be durable
	stored, err := db.GetScrapeProgress(anime.ID)
	if err != nil {
		t.Fatalf("Stored progress missing: %v", err)
	}
	if stored.Status != models.ScrapeStatusPaused || stored.CurrentChunk != 2 {
		t.Errorf("Stored progress = %q chunk %d, want paused chunk 2", stored.Status, stored.CurrentChunk)
	}

	if _, err := ctrl.Resume(anime.ID); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	scraper.gate <- struct{}{}
	waitForStatus(t, ctrl, anime.ID, models.ScrapeStatusCompleted)

	// No chunk is ever re-scraped
	calls := scraper.recordedCalls()
	wantCalls := [][2]int{{1, 10}, {11, 20}, {21, 30}}
	if len(calls) != len(wantCalls) {
		t.Fatalf("Got %d chunk calls, want %d: %v", len(calls), len(wantCalls), calls)
	}
	for i, call := range calls {
		if call != wantCalls[i] {
			t.Errorf("Chunk call %d: got %v, want %v", i, call, wantCalls[i])
		}
	}
}

func TestScrapeStartResumesPausedSessionWithCandidates(t *testing.T) {
	db := newTestDB(t)
	anime := seedAnime(t, db, 30)

	scraper := &fakeScraper{gate: make(chan struct{})}
	ctrl := NewScrapeController(db, scraper, 10, 0, utils.NewLogger("error"))

	if _, err := ctrl.Start(anime.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	scraper.gate <- struct{}{}
	waitForCalls(t, scraper, 2)
	if _, err := ctrl.Pause(anime.ID); err != nil {
		t.Fatalf("Pause failed: %v", err)
	}
	scraper.gate <- struct{}{}
	waitForStatus(t, ctrl, anime.ID, models.ScrapeStatusPaused)

	// Start on a paused session resumes it without losing its candidates
	progress, err := ctrl.Start(anime.ID)
	if err != nil {
		t.Fatalf("Start on paused session failed: %v", err)
	}
	if progress.CurrentChunk != 2 {
		t.Errorf("Resumed at chunk %d, want 2", progress.CurrentChunk)
	}
	scraper.gate <- struct{}{}
	waitForStatus(t, ctrl, anime.ID, models.ScrapeStatusCompleted)

	candidates, _, err := ctrl.Results(anime.ID)
	if err != nil {
		t.Fatalf("Results failed: %v", err)
	}
	if len(candidates) != 30 {
		t.Errorf("Got %d candidates, want 30 (pre-pause candidates kept)", len(candidates))
	}

	calls := scraper.recordedCalls()
	wantCalls := [][2]int{{1, 10}, {11, 20}, {21, 30}}
	if len(calls) != len(wantCalls) {
		t.Fatalf("Got %d chunk calls, want %d: %v", len(calls), len(wantCalls), calls)
	}
	for i, call := range calls {
		if call != wantCalls[i] {
			t.Errorf("Chunk call %d: got %v, want %v", i, call, wantCalls[i])
		}
	}
}

func TestScrapeStartWhileRunningRejected(t *testing.T) {
	db := newTestDB(t)
	anime := seedAnime(t, db, 20)

	scraper := &fakeScraper{gate: make(chan struct{})}
	ctrl := NewScrapeController(db, scraper, 10, 0, utils.NewLogger("error"))

	if _, err := ctrl.Start(anime.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := ctrl.Start(anime.ID); err != ErrScrapeRunning {
		t.Errorf("Second Start: got %v, want ErrScrapeRunning", err)
	}

	scraper.gate <- struct{}{}
	scraper.gate <- struct{}{}
	waitForStatus(t, ctrl, anime.ID, models.ScrapeStatusCompleted)
}

func TestScrapeRecentChunksBounded(t *testing.T) {
	db := newTestDB(t)
	anime := seedAnime(t, db, 80)

	scraper := &fakeScraper{}
	ctrl := NewScrapeController(db, scraper, 10, 0, utils.NewLogger("error"))

	if _, err := ctrl.Start(anime.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForStatus(t, ctrl, anime.ID, models.ScrapeStatusCompleted)

	_, recent, err := ctrl.Progress(anime.ID)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if len(recent) != maxRecentChunks {
		t.Fatalf("Got %d recent chunks, want %d", len(recent), maxRecentChunks)
	}
	// Most recent first
	if recent[0].Index != 7 {
		t.Errorf("Most recent chunk index = %d, want 7", recent[0].Index)
	}
	if recent[len(recent)-1].Index != 3 {
		t.Errorf("Oldest retained chunk index = %d, want 3", recent[len(recent)-1].Index)
	}
}

func TestScrapeResetDiscardsProgress(t *testing.T) {
	db := newTestDB(t)
	anime := seedAnime(t, db, 20)

	scraper := &fakeScraper{}
	ctrl := NewScrapeController(db, scraper, 10, 0, utils.NewLogger("error"))

	if _, err := ctrl.Start(anime.ID); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	waitForStatus(t, ctrl, anime.ID, models.ScrapeStatusCompleted)

	if err := ctrl.Reset(anime.ID); err != nil {
		t.Fatalf("Reset failed: %v", err)
	}

	progress, _, err := ctrl.Progress(anime.ID)
	if err != nil {
		t.Fatalf("Progress failed: %v", err)
	}
	if progress.Status != models.ScrapeStatusNotStarted {
		t.Errorf("Status after reset = %q, want not_started", progress.Status)
	}
	if _, _, err := ctrl.Results(anime.ID); err != ErrNoSession {
		t.Errorf("Results after reset: got %v, want ErrNoSession", err)
	}
}
