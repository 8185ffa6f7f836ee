// Package memory provides an in-process notifier for tests and local runs.
package memory

import (
	"context"
	"sync"

	"github.com/jobradar/seek-crawler/internal/scraper"
)

// Notifier records every run summary it receives.
type Notifier struct {
	mu        sync.Mutex
	summaries []scraper.RunSummary
	err       error
}

// New constructs an empty notifier.
func New() *Notifier {
	return &Notifier{}
}

// FailWith makes subsequent Notify calls return err.
func (n *Notifier) FailWith(err error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.err = err
}

// Notify appends the summary to the recorded list.
func (n *Notifier) Notify(_ context.Context, summary scraper.RunSummary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.summaries = append(n.summaries, summary)
	return nil
}

// Summaries returns a copy of everything recorded so far.
func (n *Notifier) Summaries() []scraper.RunSummary {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]scraper.RunSummary, len(n.summaries))
	copy(out, n.summaries)
	return out
}
