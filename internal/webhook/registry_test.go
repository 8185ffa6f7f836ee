package webhook

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobradar/seek-crawler/internal/scraper"
)

type seqIDs struct {
	n int
}

func (g *seqIDs) NewID() (string, error) {
	g.n++
	return fmt.Sprintf("hook-%d", g.n), nil
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestRegistry() *Registry {
	return NewRegistry(&seqIDs{}, &fixedClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)})
}

func TestRegistryRegisterAndList(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	ctx := context.Background()

	first, err := reg.Register(ctx, "https://example.com/hook", "all events", nil)
	require.NoError(t, err)
	require.Equal(t, "hook-1", first.ID)
	require.False(t, first.CreatedAt.IsZero())

	second, err := reg.Register(ctx, "http://example.org/notify", "", []string{scraper.EventScrapeFailed})
	require.NoError(t, err)

	subs, err := reg.List(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	require.Equal(t, first.ID, subs[0].ID)
	require.Equal(t, second.ID, subs[1].ID)
}

func TestRegistryRegisterRejectsBadInput(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	ctx := context.Background()

	_, err := reg.Register(ctx, "not-a-url", "", nil)
	require.Error(t, err)

	_, err = reg.Register(ctx, "ftp://example.com/hook", "", nil)
	require.Error(t, err)

	_, err = reg.Register(ctx, "https://example.com/hook", "", []string{"scrape.unknown"})
	require.Error(t, err)
}

func TestRegistryDelete(t *testing.T) {
	t.Parallel()

	reg := newTestRegistry()
	ctx := context.Background()

	sub, err := reg.Register(ctx, "https://example.com/hook", "", nil)
	require.NoError(t, err)

	require.NoError(t, reg.Delete(ctx, sub.ID))
	require.ErrorIs(t, reg.Delete(ctx, sub.ID), scraper.ErrWebhookNotFound)

	subs, err := reg.List(ctx)
	require.NoError(t, err)
	require.Empty(t, subs)
}

func TestSubscribedTo(t *testing.T) {
	t.Parallel()

	all := scraper.WebhookSubscription{}
	require.True(t, subscribedTo(all, scraper.EventScrapeCompleted))
	require.True(t, subscribedTo(all, scraper.EventScrapeFailed))

	failOnly := scraper.WebhookSubscription{Events: []string{scraper.EventScrapeFailed}}
	require.False(t, subscribedTo(failOnly, scraper.EventScrapeCompleted))
	require.True(t, subscribedTo(failOnly, scraper.EventScrapeFailed))
}
