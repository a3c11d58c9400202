package models

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/timshannon/bolthold"
	"go.etcd.io/bbolt"
)

// ErrNotFound is returned when a record does not exist
var ErrNotFound = bolthold.ErrNotFound

// ErrDuplicateEpisode is returned when an episode number already exists for an anime
var ErrDuplicateEpisode = errors.New("episode number already exists for this anime")

// Database wraps the bolthold store
type Database struct {
	store *bolthold.Store
}

// NewDatabase creates a new database connection
func NewDatabase(path string) (*Database, error) {
	store, err := bolthold.Open(path, 0600, &bolthold.Options{
		Options: &bbolt.Options{
			Timeout: 1 * time.Second,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &Database{store: store}, nil
}

// Close closes the database connection
func (db *Database) Close() error {
	return db.store.Close()
}

// Anime operations

// CreateAnime creates a new anime record
func (db *Database) CreateAnime(anime *Anime) error {
	anime.CreatedAt = time.Now()
	anime.UpdatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), anime)
}

// UpdateAnime updates an existing anime record
func (db *Database) UpdateAnime(anime *Anime) error {
	anime.UpdatedAt = time.Now()
	return db.store.Update(anime.ID, anime)
}

// GetAnimeByID retrieves an anime by ID
func (db *Database) GetAnimeByID(id uint64) (*Anime, error) {
	var anime Anime
	if err := db.store.Get(id, &anime); err != nil {
		return nil, err
	}
	return &anime, nil
}

// ListAnimeOptions filters and paginates ListAnime
type ListAnimeOptions struct {
	Status AnimeStatus // Empty means all statuses
	Search string      // Case-insensitive substring match on Title/AltTitle
	Offset int
	Limit  int // 0 means no limit
}

// ListAnime retrieves anime matching the given filters, newest first.
// Returns the page plus the total match count before pagination.
func (db *Database) ListAnime(opts ListAnimeOptions) ([]*Anime, int, error) {
	var query *bolthold.Query
	if opts.Status != "" {
		query = bolthold.Where("Status").Eq(opts.Status)
	}

	var animes []*Anime
	if err := db.store.Find(&animes, query); err != nil {
		return nil, 0, err
	}

	if opts.Search != "" {
		needle := strings.ToLower(opts.Search)
		filtered := animes[:0]
		for _, a := range animes {
			if strings.Contains(strings.ToLower(a.Title), needle) ||
				strings.Contains(strings.ToLower(a.AltTitle), needle) {
				filtered = append(filtered, a)
			}
		}
		animes = filtered
	}

	sort.Slice(animes, func(i, j int) bool {
		return animes[i].CreatedAt.After(animes[j].CreatedAt)
	})

	total := len(animes)
	if opts.Offset > 0 {
		if opts.Offset >= len(animes) {
			return []*Anime{}, total, nil
		}
		animes = animes[opts.Offset:]
	}
	if opts.Limit > 0 && len(animes) > opts.Limit {
		animes = animes[:opts.Limit]
	}

	return animes, total, nil
}

// GetAnimeByExternalID retrieves an anime by its MAL or AniList id
func (db *Database) GetAnimeByExternalID(source ImportSource, externalID int) (*Anime, error) {
	field := "MALID"
	if source == ImportSourceAniList {
		field = "AniListID"
	}

	var anime Anime
	if err := db.store.FindOne(&anime, bolthold.Where(field).Eq(externalID)); err != nil {
		return nil, err
	}
	return &anime, nil
}

// BulkUpdateAnimeStatus applies one status to a set of anime ids.
// Unknown ids are skipped and reported in the returned missing list.
func (db *Database) BulkUpdateAnimeStatus(ids []uint64, status AnimeStatus) (missing []uint64, err error) {
	for _, id := range ids {
		anime, err := db.GetAnimeByID(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				missing = append(missing, id)
				continue
			}
			return missing, err
		}
		anime.Status = status
		if err := db.UpdateAnime(anime); err != nil {
			return missing, err
		}
	}
	return missing, nil
}

// DeleteAnime deletes an anime and everything hanging off it: episodes,
// watch progress, and any scrape session state
func (db *Database) DeleteAnime(id uint64) error {
	if err := db.DeleteEpisodesByAnimeID(id); err != nil {
		return fmt.Errorf("failed to delete episodes: %w", err)
	}
	if err := db.DeleteWatchProgressByAnimeID(id); err != nil {
		return fmt.Errorf("failed to delete watch progress: %w", err)
	}
	if err := db.DeleteScrapeProgress(id); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("failed to delete scrape progress: %w", err)
	}
	return db.store.Delete(id, &Anime{})
}

// Episode operations

// CreateEpisode creates a new episode, rejecting duplicates of the
// (anime, number) pair
func (db *Database) CreateEpisode(episode *Episode) error {
	var existing Episode
	err := db.store.FindOne(&existing,
		bolthold.Where("AnimeID").Eq(episode.AnimeID).
			And("Number").Eq(episode.Number))
	if err == nil {
		return ErrDuplicateEpisode
	}
	if !errors.Is(err, bolthold.ErrNotFound) {
		return err
	}

	episode.CreatedAt = time.Now()
	episode.UpdatedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), episode)
}

// UpdateEpisode updates an existing episode
func (db *Database) UpdateEpisode(episode *Episode) error {
	episode.UpdatedAt = time.Now()
	return db.store.Update(episode.ID, episode)
}

// GetEpisodeByID retrieves an episode by ID
func (db *Database) GetEpisodeByID(id uint64) (*Episode, error) {
	var episode Episode
	if err := db.store.Get(id, &episode); err != nil {
		return nil, err
	}
	return &episode, nil
}

// GetEpisodesByAnimeID retrieves all episodes for an anime ordered by number
func (db *Database) GetEpisodesByAnimeID(animeID uint64) ([]*Episode, error) {
	var episodes []*Episode
	err := db.store.Find(&episodes, bolthold.Where("AnimeID").Eq(animeID))
	if err != nil {
		return nil, err
	}
	sort.Slice(episodes, func(i, j int) bool {
		return episodes[i].Number < episodes[j].Number
	})
	return episodes, nil
}

// GetEpisodeByNumber retrieves one episode of an anime by its number
func (db *Database) GetEpisodeByNumber(animeID uint64, number int) (*Episode, error) {
	var episode Episode
	err := db.store.FindOne(&episode,
		bolthold.Where("AnimeID").Eq(animeID).And("Number").Eq(number))
	if err != nil {
		return nil, err
	}
	return &episode, nil
}

// GetEpisodeNumbers returns the set of episode numbers present for an anime
func (db *Database) GetEpisodeNumbers(animeID uint64) (map[int]bool, error) {
	episodes, err := db.GetEpisodesByAnimeID(animeID)
	if err != nil {
		return nil, err
	}
	numbers := make(map[int]bool, len(episodes))
	for _, ep := range episodes {
		numbers[ep.Number] = true
	}
	return numbers, nil
}

// DeleteEpisode deletes an episode by ID
func (db *Database) DeleteEpisode(id uint64) error {
	return db.store.Delete(id, &Episode{})
}

// DeleteEpisodesByAnimeID deletes all episodes for an anime
func (db *Database) DeleteEpisodesByAnimeID(animeID uint64) error {
	return db.store.DeleteMatching(&Episode{}, bolthold.Where("AnimeID").Eq(animeID))
}

// Scrape progress operations

// SaveScrapeProgress inserts or replaces the scrape session snapshot for an anime
func (db *Database) SaveScrapeProgress(progress *ScrapeProgress) error {
	progress.UpdatedAt = time.Now()
	return db.store.Upsert(progress.AnimeID, progress)
}

// GetScrapeProgress retrieves the scrape session snapshot for an anime
func (db *Database) GetScrapeProgress(animeID uint64) (*ScrapeProgress, error) {
	var progress ScrapeProgress
	if err := db.store.Get(animeID, &progress); err != nil {
		return nil, err
	}
	return &progress, nil
}

// ListScrapeProgress retrieves all stored scrape session snapshots
func (db *Database) ListScrapeProgress() ([]*ScrapeProgress, error) {
	var progress []*ScrapeProgress
	err := db.store.Find(&progress, nil)
	return progress, err
}

// DeleteScrapeProgress removes the scrape session snapshot for an anime
func (db *Database) DeleteScrapeProgress(animeID uint64) error {
	return db.store.Delete(animeID, &ScrapeProgress{})
}

// Watch progress operations

// SaveWatchProgress inserts or updates playback position for one episode
func (db *Database) SaveWatchProgress(progress *WatchProgress) error {
	var existing WatchProgress
	err := db.store.FindOne(&existing,
		bolthold.Where("AnimeID").Eq(progress.AnimeID).
			And("EpisodeNumber").Eq(progress.EpisodeNumber))
	progress.UpdatedAt = time.Now()
	if err == nil {
		progress.ID = existing.ID
		return db.store.Update(existing.ID, progress)
	}
	if !errors.Is(err, bolthold.ErrNotFound) {
		return err
	}
	return db.store.Insert(bolthold.NextSequence(), progress)
}

// ListRecentWatchProgress returns the most recently updated progress entries
func (db *Database) ListRecentWatchProgress(limit int) ([]*WatchProgress, error) {
	var progress []*WatchProgress
	if err := db.store.Find(&progress, nil); err != nil {
		return nil, err
	}
	sort.Slice(progress, func(i, j int) bool {
		return progress[i].UpdatedAt.After(progress[j].UpdatedAt)
	})
	if limit > 0 && len(progress) > limit {
		progress = progress[:limit]
	}
	return progress, nil
}

// ListWatchProgress retrieves all watch progress entries
func (db *Database) ListWatchProgress() ([]*WatchProgress, error) {
	var progress []*WatchProgress
	err := db.store.Find(&progress, nil)
	return progress, err
}

// DeleteWatchProgressByAnimeID deletes all watch progress for an anime
func (db *Database) DeleteWatchProgressByAnimeID(animeID uint64) error {
	return db.store.DeleteMatching(&WatchProgress{}, bolthold.Where("AnimeID").Eq(animeID))
}

// DeleteWatchProgressByID deletes one watch progress entry
func (db *Database) DeleteWatchProgressByID(id uint64) error {
	return db.store.Delete(id, &WatchProgress{})
}

// Import history operations

// CreateImportRecord records one completed import
func (db *Database) CreateImportRecord(record *ImportRecord) error {
	record.ImportedAt = time.Now()
	return db.store.Insert(bolthold.NextSequence(), record)
}

// GetImportRecord retrieves an import record by provider and external id
func (db *Database) GetImportRecord(source ImportSource, externalID int) (*ImportRecord, error) {
	var record ImportRecord
	err := db.store.FindOne(&record,
		bolthold.Where("Source").Eq(source).And("ExternalID").Eq(externalID))
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListImportRecords returns import history, newest first
func (db *Database) ListImportRecords(limit int) ([]*ImportRecord, error) {
	var records []*ImportRecord
	if err := db.store.Find(&records, nil); err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].ImportedAt.After(records[j].ImportedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}
