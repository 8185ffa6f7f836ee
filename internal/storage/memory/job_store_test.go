package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/jobradar/seek-crawler/internal/scraper"
)

func TestJobStore_CreateGetUpdate(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()

	job := scraper.ScrapeJob{ID: "j1", Status: scraper.JobStatusPending, CreatedAt: time.Unix(100, 0)}
	require.NoError(t, store.Create(ctx, job))
	require.Error(t, store.Create(ctx, job))

	got, err := store.Get(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, scraper.JobStatusPending, got.Status)

	job.Status = scraper.JobStatusRunning
	require.NoError(t, store.Update(ctx, job))
	got, err = store.Get(ctx, "j1")
	require.NoError(t, err)
	require.Equal(t, scraper.JobStatusRunning, got.Status)
}

func TestJobStore_GetUnknownIsNotFound(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	_, err := store.Get(context.Background(), "missing")
	require.ErrorIs(t, err, scraper.ErrJobNotFound)

	err = store.Update(context.Background(), scraper.ScrapeJob{ID: "missing"})
	require.ErrorIs(t, err, scraper.ErrJobNotFound)
}

func TestJobStore_ListOrderFilterLimit(t *testing.T) {
	t.Parallel()

	store := NewJobStore()
	ctx := context.Background()
	base := time.Unix(1000, 0)

	require.NoError(t, store.Create(ctx, scraper.ScrapeJob{
		ID: "old", Status: scraper.JobStatusCompleted, CreatedAt: base,
	}))
	require.NoError(t, store.Create(ctx, scraper.ScrapeJob{
		ID: "mid", Status: scraper.JobStatusFailed, CreatedAt: base.Add(time.Minute),
	}))
	require.NoError(t, store.Create(ctx, scraper.ScrapeJob{
		ID: "new", Status: scraper.JobStatusCompleted, CreatedAt: base.Add(2 * time.Minute),
	}))

	jobs, err := store.List(ctx, "", 0)
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	require.Equal(t, "new", jobs[0].ID)
	require.Equal(t, "old", jobs[2].ID)

	jobs, err = store.List(ctx, scraper.JobStatusCompleted, 0)
	require.NoError(t, err)
	require.Len(t, jobs, 2)

	jobs, err = store.List(ctx, "", 1)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	require.Equal(t, "new", jobs[0].ID)
}
