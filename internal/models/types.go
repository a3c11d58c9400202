package models

// AnimeStatus represents the airing status of an anime
type AnimeStatus string

const (
	AnimeStatusOngoing   AnimeStatus = "ongoing"
	AnimeStatusCompleted AnimeStatus = "completed"
	AnimeStatusUpcoming  AnimeStatus = "upcoming"
)

// ValidAnimeStatus reports whether s is one of the known airing statuses
func ValidAnimeStatus(s AnimeStatus) bool {
	switch s {
	case AnimeStatusOngoing, AnimeStatusCompleted, AnimeStatusUpcoming:
		return true
	}
	return false
}

// ScrapeStatus represents the state of a chunked scrape session
type ScrapeStatus string

const (
	ScrapeStatusNotStarted ScrapeStatus = "not_started"
	ScrapeStatusInProgress ScrapeStatus = "in_progress"
	ScrapeStatusPaused     ScrapeStatus = "paused"
	ScrapeStatusCompleted  ScrapeStatus = "completed"
)

// CandidateState represents the reconciliation state of a scraped episode candidate
type CandidateState string

const (
	CandidateStatePending CandidateState = "pending" // Not yet committed
	CandidateStateExists  CandidateState = "exists"  // Episode number already in the catalog
	CandidateStateAdded   CandidateState = "added"   // Committed during this session
	CandidateStateFailed  CandidateState = "failed"  // Last commit attempt failed, retry available
)

// ImportSource represents which metadata provider an anime was imported from
type ImportSource string

const (
	ImportSourceJikan   ImportSource = "jikan"
	ImportSourceAniList ImportSource = "anilist"
)
