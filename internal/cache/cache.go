// Package cache keeps recently trained indexes keyed by corpus version, so
// callers that see the same corpus repeatedly train it only once.
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/sync/singleflight"

	"github.com/chriscorrea/related/internal/recommend"
)

// DefaultSize is the number of indexes kept when New is given size <= 0.
const DefaultSize = 4

// BuildFunc trains a new index on docs.
type BuildFunc func(ctx context.Context, docs []recommend.Document) (*recommend.Index, error)

// Cache maps corpus versions to trained indexes. It is safe for concurrent use.
type Cache struct {
	indexes *lru.Cache[uint64, *recommend.Index]
	build   BuildFunc
	group   singleflight.Group
}

// New creates a cache holding at most size indexes.
func New(size int, build BuildFunc) (*Cache, error) {
	if build == nil {
		return nil, fmt.Errorf("cache: build function is required")
	}
	if size <= 0 {
		size = DefaultSize
	}

	indexes, err := lru.NewWithEvict[uint64, *recommend.Index](size, func(version uint64, idx *recommend.Index) {
		slog.Debug("Evicted index", "version", version, "documents", idx.Len())
	})
	if err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}

	return &Cache{indexes: indexes, build: build}, nil
}

// Get returns the index trained for version, building it from docs on a
// miss. Concurrent misses for the same version share one build. The boolean
// reports whether the index came from the cache.
//
// A failed build is not cached.
func (c *Cache) Get(ctx context.Context, version uint64, docs []recommend.Document) (*recommend.Index, bool, error) {
	if idx, ok := c.indexes.Get(version); ok {
		return idx, true, nil
	}

	key := strconv.FormatUint(version, 16)
	ch := c.group.DoChan(key, func() (any, error) {
		// another caller may have finished while we waited for the group
		if idx, ok := c.indexes.Get(version); ok {
			return idx, nil
		}

		// the shared build outlives any single caller
		idx, err := c.build(context.WithoutCancel(ctx), docs)
		if err != nil {
			return nil, err
		}
		c.indexes.Add(version, idx)
		slog.Debug("Cached index", "version", key, "documents", idx.Len())
		return idx, nil
	})

	select {
	case <-ctx.Done():
		return nil, false, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, false, res.Err
		}
		return res.Val.(*recommend.Index), false, nil
	}
}

// Len returns the number of cached indexes.
func (c *Cache) Len() int {
	return c.indexes.Len()
}

// Purge drops every cached index.
func (c *Cache) Purge() {
	c.indexes.Purge()
}
