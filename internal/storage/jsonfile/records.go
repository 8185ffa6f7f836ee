// Package jsonfile persists listings and dedup bookkeeping as JSON files.
package jsonfile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"go.uber.org/zap"

	"github.com/jobradar/seek-crawler/internal/scraper"
)

// RecordStore is an append-only JSON collection of listings. Every mutation
// is one load+merge+save cycle serialized by a process mutex and a file lock,
// so concurrent runs cannot drop each other's additions.
type RecordStore struct {
	path   string
	mu     sync.Mutex
	flk    *flock.Flock
	logger *zap.Logger
}

// NewRecordStore creates the store, making parent directories as needed.
func NewRecordStore(path string, logger *zap.Logger) (*RecordStore, error) {
	if path == "" {
		return nil, fmt.Errorf("record store path is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create record store dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecordStore{
		path:   path,
		flk:    flock.New(path + ".lock"),
		logger: logger,
	}, nil
}

// Append merges listings onto the existing collection. Duplicate identities
// are allowed; dedup is advisory and lives with the orchestrator.
func (s *RecordStore) Append(ctx context.Context, listings []scraper.Listing) error {
	if len(listings) == 0 {
		return nil
	}
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	existing, err := s.load()
	if err != nil {
		return err
	}
	merged := append(existing, listings...)
	if err := s.save(merged); err != nil {
		return err
	}
	s.logger.Info("records saved",
		zap.Int("added", len(listings)), zap.Int("total", len(merged)))
	return nil
}

// LoadAll returns every stored listing.
func (s *RecordStore) LoadAll(ctx context.Context) ([]scraper.Listing, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return s.load()
}

// PruneOlderThan rewrites the collection to exclude listings captured before
// cutoff and returns the number removed.
func (s *RecordStore) PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return 0, err
	}
	defer unlock()

	existing, err := s.load()
	if err != nil {
		return 0, err
	}
	kept := existing[:0]
	for _, l := range existing {
		if l.ScrapedAt.After(cutoff) {
			kept = append(kept, l)
		}
	}
	removed := len(existing) - len(kept)
	if removed == 0 {
		return 0, nil
	}
	if err := s.save(kept); err != nil {
		return 0, err
	}
	s.logger.Info("old records pruned", zap.Int("removed", removed))
	return removed, nil
}

func (s *RecordStore) lock(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if _, err := s.flk.TryLockContext(ctx, 50*time.Millisecond); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("acquire record store lock: %w", err)
	}
	return func() {
		if err := s.flk.Unlock(); err != nil {
			s.logger.Warn("release record store lock", zap.Error(err))
		}
		s.mu.Unlock()
	}, nil
}

func (s *RecordStore) load() ([]scraper.Listing, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read record store: %w", err)
	}
	var listings []scraper.Listing
	if err := json.Unmarshal(data, &listings); err != nil {
		return nil, fmt.Errorf("decode record store: %w", err)
	}
	return listings, nil
}

func (s *RecordStore) save(listings []scraper.Listing) error {
	data, err := json.MarshalIndent(listings, "", "  ")
	if err != nil {
		return fmt.Errorf("encode record store: %w", err)
	}
	return writeAtomic(s.path, data)
}

// writeAtomic replaces path via a temp file + rename so readers never see a
// partially written collection.
func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck
		os.Remove(name)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}
