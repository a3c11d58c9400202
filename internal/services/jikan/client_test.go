package jikan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/amasui/aniarr/internal/config"
	"github.com/amasui/aniarr/internal/utils"
)

const searchPayload = `{
	"data": [
		{
			"mal_id": 205,
			"title": "Samurai Champloo",
			"title_english": "Samurai Champloo",
			"status": "Finished Airing",
			"episodes": 26,
			"images": {"jpg": {"image_url": "https://cdn.myanimelist.net/images/anime/205.jpg"}},
			"genres": [{"name": "Action"}, {"name": "Adventure"}],
			"studios": [{"name": "Manglobe"}]
		},
		{
			"mal_id": 1,
			"title": "Cowboy Bebop",
			"status": "Finished Airing",
			"episodes": 26
		}
	]
}`

func newClientFor(url string) *Client {
	return NewClient(&config.Config{JikanURL: url}, utils.NewLogger("error"))
}

func TestSearchParsesResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/anime" {
			t.Errorf("Unexpected path: %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("q"); got != "samurai" {
			t.Errorf("q = %q, want samurai", got)
		}
		if got := r.URL.Query().Get("limit"); got != "10" {
			t.Errorf("limit = %q, want 10", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(searchPayload))
	}))
	defer server.Close()

	results, err := newClientFor(server.URL).Search(context.Background(), "samurai", 10)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("Got %d results, want 2", len(results))
	}

	first := results[0]
	if first.MALID != 205 || first.Episodes != 26 {
		t.Errorf("Unexpected first result: %+v", first)
	}
	if first.Images.JPG.ImageURL == "" {
		t.Error("Poster URL was not parsed")
	}
	if got := first.GenreNames(); len(got) != 2 || got[0] != "Action" {
		t.Errorf("GenreNames = %v", got)
	}
	if got := first.StudioNames(); len(got) != 1 || got[0] != "Manglobe" {
		t.Errorf("StudioNames = %v", got)
	}
}

func TestLimitClampedToAPIMaximum(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("limit"); got != "25" {
			t.Errorf("limit = %q, want 25", got)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"data": []}`))
	}))
	defer server.Close()

	client := newClientFor(server.URL)
	if _, err := client.Top(context.Background(), 100); err != nil {
		t.Fatalf("Top failed: %v", err)
	}
	if _, err := client.SeasonNow(context.Background(), 0); err != nil {
		t.Fatalf("SeasonNow failed: %v", err)
	}
}

func TestNon200SurfacesError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "bad request"}`, http.StatusBadRequest)
	}))
	defer server.Close()

	if _, err := newClientFor(server.URL).Search(context.Background(), "x", 5); err == nil {
		t.Error("Non-200 response should surface as an error")
	}
}
