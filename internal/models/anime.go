package models

import "time"

// Anime represents one catalog entry
type Anime struct {
	ID    uint64 `boltholdKey:"ID"`
	Title string `boltholdIndex:"Title"`

	AltTitle      string      // Romaji/native alternative title
	Status        AnimeStatus `boltholdIndex:"Status"`
	TotalEpisodes int
	PosterURL     string
	Genres        []string
	Studios       []string
	Synopsis      string

	// External ids for importer dedup and metadata refresh
	MALID     int `boltholdIndex:"MALID"`
	AniListID int `boltholdIndex:"AniListID"`

	CreatedAt time.Time
	UpdatedAt time.Time
}

// ImportRecord tracks one completed import from an external metadata provider
type ImportRecord struct {
	ID         uint64 `boltholdKey:"ID"`
	Source     ImportSource
	ExternalID int `boltholdIndex:"ExternalID"`
	AnimeID    uint64
	Title      string
	ImportedAt time.Time
}
