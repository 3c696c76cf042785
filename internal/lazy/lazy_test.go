package lazy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHandleBuildsOnceAndReuses(t *testing.T) {
	var builds atomic.Int32
	handle := New(func(context.Context) (*int, error) {
		builds.Add(1)
		v := 42
		return &v, nil
	}, nil)

	require.False(t, handle.Ready())

	var wg sync.WaitGroup
	results := make([]*int, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = handle.Get(context.Background())
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}

	require.Equal(t, int32(1), builds.Load())
	for _, value := range results {
		require.Same(t, results[0], value)
	}
	require.True(t, handle.Ready())
}

func TestHandleRetriesAfterFailedBuild(t *testing.T) {
	var builds atomic.Int32
	handle := New(func(context.Context) (string, error) {
		if builds.Add(1) == 1 {
			return "", errors.New("server not up")
		}
		return "client", nil
	}, nil)

	require.Error(t, handle.Warm(context.Background()))
	require.False(t, handle.Ready())

	value, err := handle.Get(context.Background())
	require.NoError(t, err)
	require.Equal(t, "client", value)
	require.Equal(t, int32(2), builds.Load())
}

func TestHandleHonoursCancelledContextBeforeBuild(t *testing.T) {
	var builds atomic.Int32
	handle := New(func(context.Context) (int, error) {
		builds.Add(1)
		return 1, nil
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := handle.Get(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Zero(t, builds.Load())
}

func TestHandleCloseReleasesValue(t *testing.T) {
	var closed atomic.Int32
	handle := New(func(context.Context) (int, error) { return 7, nil }, func(v int) error {
		require.Equal(t, 7, v)
		closed.Add(1)
		return nil
	})

	require.NoError(t, handle.Warm(context.Background()))
	require.NoError(t, handle.Close())
	require.NoError(t, handle.Close())
	require.Equal(t, int32(1), closed.Load())

	_, err := handle.Get(context.Background())
	require.ErrorIs(t, err, ErrClosed)
}

func TestHandleCloseWithoutBuild(t *testing.T) {
	handle := New(func(context.Context) (int, error) { return 1, nil }, func(int) error {
		t.Fatal("close must not run for an unbuilt handle")
		return nil
	})
	require.NoError(t, handle.Close())
}
