package cache

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chriscorrea/related/internal/recommend"
)

var testDocs = []recommend.Document{
	{ID: "a", Title: "how to sort an array"},
	{ID: "b", Title: "sorting arrays in place"},
	{ID: "c", Title: "baking sourdough bread"},
}

func countingBuild(calls *atomic.Int32) BuildFunc {
	return func(ctx context.Context, docs []recommend.Document) (*recommend.Index, error) {
		calls.Add(1)
		idx, err := recommend.New()
		if err != nil {
			return nil, err
		}
		return idx, idx.Train(ctx, docs)
	}
}

func TestGetCachesByVersion(t *testing.T) {
	var calls atomic.Int32
	c, err := New(2, countingBuild(&calls))
	require.NoError(t, err)

	first, hit, err := c.Get(context.Background(), 1, testDocs)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 3, first.Len())

	second, hit, err := c.Get(context.Background(), 1, testDocs)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Same(t, first, second)
	assert.Equal(t, int32(1), calls.Load())

	_, hit, err = c.Get(context.Background(), 2, testDocs[:2])
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 2, c.Len())
}

func TestGetEvictsLeastRecentlyUsed(t *testing.T) {
	var calls atomic.Int32
	c, err := New(1, countingBuild(&calls))
	require.NoError(t, err)

	ctx := context.Background()
	_, _, err = c.Get(ctx, 1, testDocs)
	require.NoError(t, err)
	_, _, err = c.Get(ctx, 2, testDocs)
	require.NoError(t, err)
	_, hit, err := c.Get(ctx, 1, testDocs)
	require.NoError(t, err)

	assert.False(t, hit)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetSharesConcurrentBuilds(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})

	c, err := New(4, func(ctx context.Context, docs []recommend.Document) (*recommend.Index, error) {
		calls.Add(1)
		<-release
		idx, err := recommend.New()
		if err != nil {
			return nil, err
		}
		return idx, idx.Train(ctx, docs)
	})
	require.NoError(t, err)

	const callers = 8
	results := make([]*recommend.Index, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			idx, _, err := c.Get(context.Background(), 42, testDocs)
			assert.NoError(t, err)
			results[i] = idx
		}()
	}

	// give the callers time to pile up on the shared build
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, idx := range results {
		assert.Same(t, results[0], idx)
	}
}

func TestGetBuildErrorNotCached(t *testing.T) {
	var calls atomic.Int32
	boom := errors.New("boom")

	c, err := New(2, func(ctx context.Context, docs []recommend.Document) (*recommend.Index, error) {
		calls.Add(1)
		return nil, boom
	})
	require.NoError(t, err)

	_, _, err = c.Get(context.Background(), 1, testDocs)
	assert.ErrorIs(t, err, boom)
	_, _, err = c.Get(context.Background(), 1, testDocs)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, 0, c.Len())
}

func TestGetValidationError(t *testing.T) {
	var calls atomic.Int32
	c, err := New(2, countingBuild(&calls))
	require.NoError(t, err)

	bad := []recommend.Document{{ID: "a", Title: "x"}, {ID: "a", Title: "y"}}
	_, _, err = c.Get(context.Background(), 9, bad)
	assert.ErrorIs(t, err, recommend.ErrInvalidDocument)
}

func TestGetCancelledCaller(t *testing.T) {
	release := make(chan struct{})
	c, err := New(2, func(ctx context.Context, docs []recommend.Document) (*recommend.Index, error) {
		<-release
		return recommend.New()
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err = c.Get(ctx, 1, testDocs)
	assert.ErrorIs(t, err, context.Canceled)

	// the abandoned build still completes and is cached
	close(release)
	require.Eventually(t, func() bool { return c.Len() == 1 }, time.Second, 10*time.Millisecond)
}

func TestPurge(t *testing.T) {
	var calls atomic.Int32
	c, err := New(0, countingBuild(&calls))
	require.NoError(t, err)

	_, _, err = c.Get(context.Background(), 1, testDocs)
	require.NoError(t, err)
	c.Purge()
	assert.Equal(t, 0, c.Len())

	_, hit, err := c.Get(context.Background(), 1, testDocs)
	require.NoError(t, err)
	assert.False(t, hit)
}

func TestNewRequiresBuild(t *testing.T) {
	_, err := New(1, nil)
	assert.Error(t, err)
}
