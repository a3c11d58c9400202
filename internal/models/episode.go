package models

import "time"

// Episode represents one playable episode of an anime
type Episode struct {
	ID      uint64 `boltholdKey:"ID"`
	AnimeID uint64 `boltholdIndex:"AnimeID"`

	Number          int // 1-based, unique within AnimeID
	Title           string
	StreamURL       string
	Premium         bool
	DurationSeconds int
	AirDate         *time.Time

	// Set when the source player refuses off-site embedding
	EmbeddingProtected bool
	ProtectionReason   string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// WatchProgress tracks playback position for one episode
type WatchProgress struct {
	ID      uint64 `boltholdKey:"ID"`
	AnimeID uint64 `boltholdIndex:"AnimeID"`

	EpisodeNumber   int
	PositionSeconds int
	DurationSeconds int
	UpdatedAt       time.Time
}
