// Package similarity computes ranked neighbor lists from document vectors.
//
// Every unordered pair of documents is scored exactly once with cosine
// similarity, and a pair above the score threshold is recorded on both sides.
// Scores are therefore symmetric by construction and a document never lists
// itself.
//
// Cost: O(n²) vector comparisons for n documents. This dominates training
// time. There is no incremental update; any change to the corpus requires a
// full recomputation.
package similarity

import (
	"context"
	"log/slog"
	"sort"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/chriscorrea/related/internal/vector"
)

// Item is one document to compare.
type Item struct {
	ID     string
	Vector vector.Sparse
}

// Neighbor is a scored reference to another item.
type Neighbor struct {
	ID    string
	Index int     // position of the neighbor in the input slice
	Score float64 // cosine similarity in [0, 1]
}

// Options control filtering, truncation and execution.
type Options struct {
	MinScore     float64 // entries must score strictly above this
	MaxNeighbors int     // cap per list; <= 0 means unbounded
	Workers      int     // concurrent row scorers; <= 1 scores sequentially

	// Progress, if set, is called after each row with the rows done so far.
	// With Workers > 1 it may be called from several goroutines.
	Progress func(done, total int)
}

// Engine scores item pairs according to its Options.
type Engine struct {
	opts Options
}

// New creates an Engine.
func New(opts Options) *Engine {
	return &Engine{opts: opts}
}

// pair is a scored partner found while processing one row
type pair struct {
	j     int
	score float64
}

// Compute returns, for every item ID, its neighbors sorted by descending
// score. Items must have unique IDs. Ties keep ascending partner index.
//
// ctx is checked between rows; on cancellation the partial work is dropped
// and ctx.Err() is returned.
func (e *Engine) Compute(ctx context.Context, items []Item) (map[string][]Neighbor, error) {
	rows, err := e.scoreRows(ctx, items)
	if err != nil {
		return nil, err
	}

	lists := make([][]Neighbor, len(items))

	// merge rows in ascending row order so both sides of a pair see partners in index order
	for i, row := range rows {
		for _, p := range row {
			lists[i] = append(lists[i], Neighbor{ID: items[p.j].ID, Index: p.j, Score: p.score})
			lists[p.j] = append(lists[p.j], Neighbor{ID: items[i].ID, Index: i, Score: p.score})
		}
	}

	result := make(map[string][]Neighbor, len(items))
	for i, item := range items {
		list := lists[i]
		sort.SliceStable(list, func(a, b int) bool {
			return list[a].Score > list[b].Score
		})
		if e.opts.MaxNeighbors > 0 && len(list) > e.opts.MaxNeighbors {
			list = list[:e.opts.MaxNeighbors:e.opts.MaxNeighbors]
		}
		if list == nil {
			list = []Neighbor{}
		}
		result[item.ID] = list
	}

	slog.Debug("Similarities computed", "documents", len(items), "pairs", pairCount(len(items)))
	return result, nil
}

// scoreRows scores each item i against every item j < i.
func (e *Engine) scoreRows(ctx context.Context, items []Item) ([][]pair, error) {
	rows := make([][]pair, len(items))
	total := len(items)
	var done atomic.Int64

	scoreRow := func(i int) {
		var row []pair
		for j := 0; j < i; j++ {
			score := vector.Cosine(items[i].Vector, items[j].Vector)
			if score > e.opts.MinScore {
				row = append(row, pair{j: j, score: score})
			}
		}
		rows[i] = row

		n := done.Add(1)
		if e.opts.Progress != nil {
			e.opts.Progress(int(n), total)
		}
	}

	if e.opts.Workers <= 1 {
		for i := range items {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			scoreRow(i)
		}
		return rows, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.Workers)

	// longest rows first
	for i := len(items) - 1; i >= 0; i-- {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			scoreRow(i)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return rows, nil
}

// pairCount returns the number of unordered pairs among n items.
func pairCount(n int) int64 {
	if n < 2 {
		return 0
	}
	return int64(n) * int64(n-1) / 2
}
