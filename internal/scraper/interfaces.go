package scraper

import (
	"context"
	"errors"
	"time"
)

// Not-found conditions are distinct outcomes, not generic failures.
var (
	ErrJobNotFound     = errors.New("scrape job not found")
	ErrWebhookNotFound = errors.New("webhook not found")
)

// Session is one navigable browser (or plain HTTP) page owned by a single run.
// Waits are bounded by the timeouts passed in; a timeout is reported as an
// error the caller degrades on rather than propagates.
type Session interface {
	Navigate(ctx context.Context, url string) error
	WaitVisible(ctx context.Context, selector string, timeout time.Duration) error
	HTML(ctx context.Context) (string, error)
	// ClickFirstVisible tries selectors in order and clicks the first visible
	// match, then waits for the resulting navigation to finish loading.
	// It returns false when no selector matches a visible element.
	ClickFirstVisible(ctx context.Context, selectors []string) (bool, error)
	Close() error
}

// PageFetcher opens sessions. Each run owns an independent session, so
// concurrent runs are isolated at the fetch layer.
type PageFetcher interface {
	NewSession(ctx context.Context) (Session, error)
}

// JobStore tracks scrape job metadata for the orchestrator.
type JobStore interface {
	Create(ctx context.Context, job ScrapeJob) error
	Update(ctx context.Context, job ScrapeJob) error
	Get(ctx context.Context, jobID string) (ScrapeJob, error)
	// List returns jobs most-recent-first, optionally filtered by status,
	// capped at limit.
	List(ctx context.Context, status JobStatus, limit int) ([]ScrapeJob, error)
}

// RecordStore is the durable collection of accepted listings. Append merges
// onto the existing collection without identity-based upsert; dedup is
// advisory and enforced by the orchestrator consulting the SeenStore.
type RecordStore interface {
	Append(ctx context.Context, listings []Listing) error
	LoadAll(ctx context.Context) ([]Listing, error)
	PruneOlderThan(ctx context.Context, cutoff time.Time) (int, error)
}

// SeenStore tracks which identities were captured within the retention window.
type SeenStore interface {
	IsSeen(ctx context.Context, identity string) (bool, error)
	// MarkSeen upserts last-seen timestamps and purges entries older than the
	// retention window relative to now.
	MarkSeen(ctx context.Context, identities []string, now time.Time) error
}

// Notifier delivers a run summary to an external consumer. Delivery is
// best-effort; failures are logged by the caller and never affect job state.
type Notifier interface {
	Notify(ctx context.Context, summary RunSummary) error
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Queue provides enqueue/dequeue semantics for scrape triggers.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
}

// Hasher computes digests for snapshot naming.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces job and webhook IDs.
type IDGenerator interface {
	NewID() (string, error)
}
