package catalog

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/omzoxima/adminpannelbackend/apperrors"
	"github.com/omzoxima/adminpannelbackend/models"

	"github.com/cockroachdb/pebble"
)

const (
	seriesPrefix  = "series/"
	episodePrefix = "episode/"
)

// Store is the Pebble-backed catalog holding series and episode records as
// JSON values under prefixed keys. It also owns the episode-number
// uniqueness invariant: the store, not its callers, is the authority on
// whether a (series, episode number) pair is taken.
type Store struct {
	db *pebble.DB

	// createMu serializes episode creation so the uniqueness scan and the
	// write behind it are atomic with respect to other creators.
	createMu sync.Mutex
}

// Open opens (or creates) the catalog database at the given path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open catalog store: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) get(key string, dest interface{}) error {
	data, closer, err := s.db.Get([]byte(key))
	if err != nil {
		if err == pebble.ErrNotFound {
			return apperrors.New(apperrors.KindNotFound, "record not found")
		}
		return apperrors.Wrap(apperrors.KindInternal, "catalog read failed", err)
	}
	defer closer.Close()

	if err := json.Unmarshal(data, dest); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "catalog record corrupt", err)
	}
	return nil
}

func (s *Store) set(key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "catalog record encode failed", err)
	}
	if err := s.db.Set([]byte(key), data, pebble.Sync); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "catalog write failed", err)
	}
	return nil
}

// prefixUpperBound returns the exclusive upper bound for a prefix scan.
func prefixUpperBound(prefix string) []byte {
	b := []byte(prefix)
	b[len(b)-1]++
	return b
}

// CreateSeries stores a new series record, stamping timestamps.
func (s *Store) CreateSeries(series *models.Series) error {
	now := time.Now().UTC()
	series.CreatedAt = now
	series.UpdatedAt = now
	return s.set(seriesPrefix+series.ID, series)
}

// GetSeries returns the series with the given id.
func (s *Store) GetSeries(id string) (*models.Series, error) {
	var series models.Series
	if err := s.get(seriesPrefix+id, &series); err != nil {
		return nil, err
	}
	return &series, nil
}

// SaveSeries overwrites an existing series record.
func (s *Store) SaveSeries(series *models.Series) error {
	series.UpdatedAt = time.Now().UTC()
	return s.set(seriesPrefix+series.ID, series)
}

// ListSeries returns every series record.
func (s *Store) ListSeries() ([]models.Series, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(seriesPrefix),
		UpperBound: prefixUpperBound(seriesPrefix),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "catalog iteration failed", err)
	}
	defer iter.Close()

	var result []models.Series
	for iter.First(); iter.Valid(); iter.Next() {
		var series models.Series
		if err := json.Unmarshal(iter.Value(), &series); err != nil {
			continue // skip corrupt records
		}
		result = append(result, series)
	}
	if err := iter.Error(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "catalog iteration failed", err)
	}
	return result, nil
}

// CreateEpisode stores a new episode record after checking that its episode
// number is free within the series. The check-then-write holds createMu so
// concurrent creators cannot both pass the check; the store is the
// authoritative conflict signal.
func (s *Store) CreateEpisode(ep *models.Episode) error {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	existing, err := s.FindEpisodeByNumber(ep.SeriesID, ep.EpisodeNumber, ep.ID)
	if err != nil {
		return err
	}
	if existing != nil {
		return apperrors.Newf(apperrors.KindConflict,
			"episode %d already exists in series %s", ep.EpisodeNumber, ep.SeriesID)
	}

	now := time.Now().UTC()
	ep.CreatedAt = now
	ep.UpdatedAt = now
	return s.set(episodePrefix+ep.ID, ep)
}

// GetEpisode returns the episode with the given id.
func (s *Store) GetEpisode(id string) (*models.Episode, error) {
	var ep models.Episode
	if err := s.get(episodePrefix+id, &ep); err != nil {
		return nil, err
	}
	return &ep, nil
}

// SaveEpisode overwrites an existing episode record.
func (s *Store) SaveEpisode(ep *models.Episode) error {
	ep.UpdatedAt = time.Now().UTC()
	return s.set(episodePrefix+ep.ID, ep)
}

// DeleteEpisode removes the episode with the given id.
func (s *Store) DeleteEpisode(id string) error {
	if err := s.db.Delete([]byte(episodePrefix+id), pebble.Sync); err != nil {
		return apperrors.Wrap(apperrors.KindInternal, "catalog delete failed", err)
	}
	return nil
}

// FindEpisodeByNumber returns the episode holding the given number within a
// series, skipping excludeID. Returns nil without error when no such episode
// exists.
func (s *Store) FindEpisodeByNumber(seriesID string, number int, excludeID string) (*models.Episode, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(episodePrefix),
		UpperBound: prefixUpperBound(episodePrefix),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "catalog iteration failed", err)
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		var ep models.Episode
		if err := json.Unmarshal(iter.Value(), &ep); err != nil {
			continue
		}
		if ep.SeriesID == seriesID && ep.EpisodeNumber == number && ep.ID != excludeID {
			return &ep, nil
		}
	}
	if err := iter.Error(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "catalog iteration failed", err)
	}
	return nil, nil
}

// ListEpisodesBySeries returns every episode in a series.
func (s *Store) ListEpisodesBySeries(seriesID string) ([]models.Episode, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(episodePrefix),
		UpperBound: prefixUpperBound(episodePrefix),
	})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "catalog iteration failed", err)
	}
	defer iter.Close()

	var result []models.Episode
	for iter.First(); iter.Valid(); iter.Next() {
		var ep models.Episode
		if err := json.Unmarshal(iter.Value(), &ep); err != nil {
			continue
		}
		if ep.SeriesID == seriesID {
			result = append(result, ep)
		}
	}
	if err := iter.Error(); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, "catalog iteration failed", err)
	}
	return result, nil
}
