package memory

import (
	"context"
	"sync"
	"time"

	"github.com/jobradar/seek-crawler/internal/scraper"
)

// RecordStore keeps listings in memory with the same append semantics as the
// durable stores.
type RecordStore struct {
	mu       sync.Mutex
	listings []scraper.Listing
}

// NewRecordStore constructs a RecordStore.
func NewRecordStore() *RecordStore {
	return &RecordStore{}
}

// Append merges listings onto the collection.
func (s *RecordStore) Append(_ context.Context, listings []scraper.Listing) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listings = append(s.listings, listings...)
	return nil
}

// LoadAll returns a copy of every stored listing.
func (s *RecordStore) LoadAll(context.Context) ([]scraper.Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]scraper.Listing, len(s.listings))
	copy(out, s.listings)
	return out, nil
}

// PruneOlderThan drops listings captured before cutoff.
func (s *RecordStore) PruneOlderThan(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.listings[:0]
	for _, l := range s.listings {
		if l.ScrapedAt.After(cutoff) {
			kept = append(kept, l)
		}
	}
	removed := len(s.listings) - len(kept)
	s.listings = kept
	return removed, nil
}

// SeenStore tracks seen identities in memory.
type SeenStore struct {
	retention time.Duration
	clock     scraper.Clock
	mu        sync.Mutex
	entries   map[string]time.Time
}

// NewSeenStore constructs a SeenStore.
func NewSeenStore(retention time.Duration, clock scraper.Clock) *SeenStore {
	return &SeenStore{
		retention: retention,
		clock:     clock,
		entries:   make(map[string]time.Time),
	}
}

// IsSeen reports membership within the retention window.
func (s *SeenStore) IsSeen(_ context.Context, identity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ts, ok := s.entries[identity]
	if !ok {
		return false, nil
	}
	return ts.After(s.clock.Now().Add(-s.retention)), nil
}

// MarkSeen upserts timestamps and purges stale entries.
func (s *SeenStore) MarkSeen(_ context.Context, identities []string, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range identities {
		s.entries[id] = now
	}
	cutoff := now.Add(-s.retention)
	for id, ts := range s.entries {
		if !ts.After(cutoff) {
			delete(s.entries, id)
		}
	}
	return nil
}
