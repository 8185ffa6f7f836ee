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

// SeenStore tracks identity -> last-seen timestamp inside a retention window.
// Entries older than the window are invisible to IsSeen and purged on the
// next MarkSeen.
type SeenStore struct {
	path      string
	retention time.Duration
	clock     scraper.Clock
	mu        sync.Mutex
	flk       *flock.Flock
	logger    *zap.Logger
}

// NewSeenStore creates the store, making parent directories as needed.
func NewSeenStore(path string, retention time.Duration, clock scraper.Clock, logger *zap.Logger) (*SeenStore, error) {
	if path == "" {
		return nil, fmt.Errorf("seen store path is required")
	}
	if retention <= 0 {
		return nil, fmt.Errorf("retention must be > 0")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create seen store dir: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SeenStore{
		path:      path,
		retention: retention,
		clock:     clock,
		flk:       flock.New(path + ".lock"),
		logger:    logger,
	}, nil
}

// IsSeen reports whether identity was marked within the retention window.
func (s *SeenStore) IsSeen(ctx context.Context, identity string) (bool, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	entries, err := s.load()
	if err != nil {
		return false, err
	}
	ts, ok := entries[identity]
	if !ok {
		return false, nil
	}
	return ts.After(s.clock.Now().Add(-s.retention)), nil
}

// MarkSeen upserts last-seen timestamps for identities, then purges every
// entry older than now minus the retention window. Marking the same set
// twice with the same now is a no-op for membership.
func (s *SeenStore) MarkSeen(ctx context.Context, identities []string, now time.Time) error {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	entries, err := s.load()
	if err != nil {
		return err
	}
	if entries == nil {
		entries = make(map[string]time.Time)
	}
	for _, id := range identities {
		entries[id] = now
	}

	cutoff := now.Add(-s.retention)
	for id, ts := range entries {
		if !ts.After(cutoff) {
			delete(entries, id)
		}
	}

	if err := s.save(entries); err != nil {
		return err
	}
	s.logger.Debug("seen entries updated", zap.Int("tracked", len(entries)))
	return nil
}

func (s *SeenStore) lock(ctx context.Context) (func(), error) {
	s.mu.Lock()
	if _, err := s.flk.TryLockContext(ctx, 50*time.Millisecond); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("acquire seen store lock: %w", err)
	}
	return func() {
		if err := s.flk.Unlock(); err != nil {
			s.logger.Warn("release seen store lock", zap.Error(err))
		}
		s.mu.Unlock()
	}, nil
}

func (s *SeenStore) load() (map[string]time.Time, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read seen store: %w", err)
	}
	var entries map[string]time.Time
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode seen store: %w", err)
	}
	return entries, nil
}

func (s *SeenStore) save(entries map[string]time.Time) error {
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode seen store: %w", err)
	}
	return writeAtomic(s.path, data)
}
