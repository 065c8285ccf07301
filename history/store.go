package history

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/cockroachdb/pebble"
)

// Outcome classifies how an ingestion ended.
type Outcome string

const (
	OutcomeCommitted  Outcome = "committed"
	OutcomeRolledBack Outcome = "rolled_back"
)

// Record is one finished ingestion, kept for operators. Rolled-back records
// carry the failure text; the catalog itself holds nothing for them.
type Record struct {
	EpisodeID string    `json:"episode_id"`
	SeriesID  string    `json:"series_id"`
	Title     string    `json:"title"`
	Languages []string  `json:"languages"`
	Outcome   Outcome   `json:"outcome"`
	Error     string    `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Store persists ingestion records in a Pebble database.
type Store struct {
	db *pebble.DB
}

// Open opens (or creates) the history database at the given path.
func Open(path string) (*Store, error) {
	db, err := pebble.Open(path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open history store: %w", err)
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

// Add stores one record, keyed by timestamp so listings come out in
// chronological order.
func (s *Store) Add(record Record) error {
	if record.Timestamp.IsZero() {
		record.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal history record: %w", err)
	}
	key := fmt.Sprintf("%020d/%s", record.Timestamp.UnixNano(), record.EpisodeID)
	return s.db.Set([]byte(key), data, pebble.Sync)
}

// List returns every record, oldest first.
func (s *Store) List() ([]Record, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	var records []Record
	for iter.First(); iter.Valid(); iter.Next() {
		var record Record
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue // skip corrupt records
		}
		records = append(records, record)
	}
	if err := iter.Error(); err != nil {
		return nil, fmt.Errorf("iteration error: %w", err)
	}
	return records, nil
}

// CleanupOldRecords deletes records older than maxAge.
func (s *Store) CleanupOldRecords(maxAge time.Duration) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return fmt.Errorf("failed to create iterator: %w", err)
	}
	defer iter.Close()

	cutoff := time.Now().Add(-maxAge)
	var stale [][]byte
	for iter.First(); iter.Valid(); iter.Next() {
		var record Record
		if err := json.Unmarshal(iter.Value(), &record); err != nil {
			continue
		}
		if record.Timestamp.Before(cutoff) {
			key := make([]byte, len(iter.Key()))
			copy(key, iter.Key())
			stale = append(stale, key)
		}
	}
	if err := iter.Error(); err != nil {
		return fmt.Errorf("iteration error: %w", err)
	}

	for _, key := range stale {
		if err := s.db.Delete(key, pebble.Sync); err != nil {
			return fmt.Errorf("failed to delete stale record: %w", err)
		}
	}
	return nil
}
