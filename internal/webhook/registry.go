// Package webhook manages notification subscriptions and their delivery.
package webhook

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"

	"github.com/jobradar/seek-crawler/internal/scraper"
)

// Registry holds webhook subscriptions in memory. Subscriptions do not
// survive a restart; callers re-register on startup.
type Registry struct {
	mu    sync.RWMutex
	subs  map[string]scraper.WebhookSubscription
	ids   scraper.IDGenerator
	clock scraper.Clock
}

// NewRegistry constructs an empty registry.
func NewRegistry(ids scraper.IDGenerator, clock scraper.Clock) *Registry {
	return &Registry{
		subs:  make(map[string]scraper.WebhookSubscription),
		ids:   ids,
		clock: clock,
	}
}

// Register validates and stores a new subscription, returning it with its
// assigned ID. An empty event list subscribes to every event.
func (r *Registry) Register(_ context.Context, rawURL, description string, events []string) (scraper.WebhookSubscription, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return scraper.WebhookSubscription{}, fmt.Errorf("webhook URL must be absolute http(s): %q", rawURL)
	}
	for _, ev := range events {
		if ev != scraper.EventScrapeCompleted && ev != scraper.EventScrapeFailed {
			return scraper.WebhookSubscription{}, fmt.Errorf("unknown event %q", ev)
		}
	}

	id, err := r.ids.NewID()
	if err != nil {
		return scraper.WebhookSubscription{}, fmt.Errorf("assign webhook id: %w", err)
	}
	sub := scraper.WebhookSubscription{
		ID:          id,
		URL:         rawURL,
		Events:      events,
		Description: description,
		CreatedAt:   r.clock.Now(),
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.subs[id] = sub
	return sub, nil
}

// List returns all subscriptions ordered by creation time.
func (r *Registry) List(_ context.Context) ([]scraper.WebhookSubscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]scraper.WebhookSubscription, 0, len(r.subs))
	for _, sub := range r.subs {
		out = append(out, sub)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a subscription by ID.
func (r *Registry) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.subs[id]; !ok {
		return scraper.ErrWebhookNotFound
	}
	delete(r.subs, id)
	return nil
}

// subscribedTo reports whether the subscription wants the given event.
func subscribedTo(sub scraper.WebhookSubscription, event string) bool {
	if len(sub.Events) == 0 {
		return true
	}
	for _, ev := range sub.Events {
		if ev == event {
			return true
		}
	}
	return false
}
