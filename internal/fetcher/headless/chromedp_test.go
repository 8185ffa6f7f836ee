package headless

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNew_RejectsNegativeParallelism(t *testing.T) {
	t.Parallel()

	_, err := New(Config{MaxParallel: -1})
	require.Error(t, err)
}

func TestNew_DefaultsNavTimeout(t *testing.T) {
	t.Parallel()

	f, err := New(Config{})
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, 30*time.Second, f.cfg.NavTimeout)
}

func TestFetcher_AcquireBlocksAtLimit(t *testing.T) {
	t.Parallel()

	f, err := New(Config{MaxParallel: 1})
	require.NoError(t, err)
	defer f.Close()

	require.NoError(t, f.acquire(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	require.Error(t, f.acquire(ctx))

	f.release()
	require.NoError(t, f.acquire(context.Background()))
}
