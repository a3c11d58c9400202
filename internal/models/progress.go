package models

import "time"

// ScrapeProgress is the durable snapshot of a chunked scrape session.
// It is written on every chunk boundary so a session can resume after a
// restart from the recorded chunk index.
type ScrapeProgress struct {
	AnimeID uint64 `boltholdKey:"AnimeID"`

	TotalEpisodes int
	ChunkSize     int
	TotalChunks   int
	CurrentChunk  int // Next chunk index to dispatch (0-based)

	Completed int
	Failed    int

	Status ScrapeStatus
	ETA    string

	StartedAt time.Time
	UpdatedAt time.Time
}

// Percent returns completion as a 0-100 value
func (p *ScrapeProgress) Percent() float64 {
	if p.TotalEpisodes <= 0 {
		return 0
	}
	return float64(p.Completed) / float64(p.TotalEpisodes) * 100
}
