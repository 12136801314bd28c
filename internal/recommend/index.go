// Package recommend provides the queryable content-based recommendation index.
//
// An Index is trained on a full snapshot of the corpus and then answers
// "most similar to X" queries. Training runs the pipeline
//
//	textproc (tokens) -> tfidf (vectors) -> similarity (neighbor lists)
//
// and replaces the whole index in one atomic step. Queries never block on
// training and never observe a partially built index.
//
// Usage Example:
//
//	idx, err := recommend.New(recommend.WithMaxSimilarDocuments(10))
//	if err != nil { ... }
//	if err := idx.Train(ctx, docs); err != nil { ... }
//	similar := idx.SimilarDocuments("42", 0, 5)
//
// Training cost is O(n²) in the number of documents. Callers decide when to
// retrain; see internal/cache for rebuilding only when the corpus changes.
package recommend

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chriscorrea/related/internal/similarity"
	"github.com/chriscorrea/related/internal/textproc"
	"github.com/chriscorrea/related/internal/tfidf"
)

// All requests every entry from the start offset onward.
const All = -1

// Index is a trained (or untrained) recommendation index.
// SimilarDocuments is safe to call concurrently with Train and Configure.
type Index struct {
	mu       sync.RWMutex // guards settings
	settings settings

	trainMu sync.Mutex // serializes Train
	current atomic.Pointer[snapshot]
}

// snapshot is one immutable training result
type snapshot struct {
	neighbors map[string][]SimilarDocument
	trainedAt time.Time
}

// New creates an untrained Index. Options not given take their defaults.
func New(opts ...Option) (*Index, error) {
	idx := &Index{
		settings: settings{
			Options:      DefaultOptions(),
			preprocessor: textproc.New(),
			logger:       slog.Default(),
		},
	}
	if err := idx.Configure(opts...); err != nil {
		return nil, err
	}
	return idx, nil
}

// Configure validates and stores options. Numeric options that are not given
// revert to their defaults; the preprocessor, logger and progress callback
// keep their current values unless replaced.
//
// On failure a *ConfigurationError is returned and the previous
// configuration stays in effect.
func (x *Index) Configure(opts ...Option) error {
	x.mu.RLock()
	next := x.settings
	x.mu.RUnlock()

	next.Options = DefaultOptions()
	for _, opt := range opts {
		opt(&next)
	}

	if err := next.Options.Validate(); err != nil {
		return err
	}

	x.mu.Lock()
	x.settings = next
	x.mu.Unlock()
	return nil
}

// Options returns the current numeric options.
func (x *Index) Options() Options {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return x.settings.Options
}

// Train validates docs, computes neighbor lists for every document and swaps
// them in as the new index state. The caller's documents are not modified.
//
// A *ValidationError is returned before any work starts if the input is
// unusable. On any error the previously trained state, if any, is kept.
func (x *Index) Train(ctx context.Context, docs []Document) error {
	x.trainMu.Lock()
	defer x.trainMu.Unlock()

	x.mu.RLock()
	s := x.settings
	x.mu.RUnlock()

	if err := validateDocuments(docs); err != nil {
		return err
	}

	started := time.Now()

	// step 1: tokens
	tokens := make([][]string, len(docs))
	for i, doc := range docs {
		tokens[i] = s.preprocessor.Tokens(doc.Title)
	}

	// step 2: vectors
	corpus := tfidf.NewCorpus(tokens)
	items := make([]similarity.Item, len(docs))
	for i, doc := range docs {
		items[i] = similarity.Item{ID: doc.ID, Vector: corpus.Vector(i, s.MaxVectorSize)}
	}

	// step 3: similarities
	engine := similarity.New(similarity.Options{
		MinScore:     s.MinScore,
		MaxNeighbors: s.MaxSimilarDocuments,
		Workers:      s.Workers,
		Progress:     s.progress,
	})
	neighbors, err := engine.Compute(ctx, items)
	if err != nil {
		return fmt.Errorf("failed to compute similarities: %w", err)
	}

	next := buildSnapshot(docs, neighbors)
	x.current.Store(next)

	s.logger.Debug("Index trained",
		"documents", len(docs),
		"terms", len(corpus.DocFrequencies),
		"duration", time.Since(started))
	return nil
}

// buildSnapshot resolves neighbor references into passthrough entries.
// Each document's fields are copied once and shared by every entry naming it.
func buildSnapshot(docs []Document, neighbors map[string][]similarity.Neighbor) *snapshot {
	fields := make([]map[string]any, len(docs))
	for i, doc := range docs {
		fields[i] = maps.Clone(doc.Fields)
	}

	out := make(map[string][]SimilarDocument, len(docs))
	for _, doc := range docs {
		list := neighbors[doc.ID]
		entries := make([]SimilarDocument, len(list))
		for k, n := range list {
			entries[k] = SimilarDocument{
				ID:     n.ID,
				Score:  n.Score,
				Title:  docs[n.Index].Title,
				Fields: fields[n.Index],
			}
		}
		out[doc.ID] = entries
	}

	return &snapshot{neighbors: out, trainedAt: time.Now()}
}

// SimilarDocuments returns the neighbors of id in descending score order,
// sliced to [start, start+size). A negative size (see All) means no upper
// bound and a negative start is treated as 0.
//
// An unknown id, or an index that was never trained, yields an empty slice.
func (x *Index) SimilarDocuments(id string, start, size int) []SimilarDocument {
	snap := x.current.Load()
	if snap == nil {
		return []SimilarDocument{}
	}

	list, ok := snap.neighbors[id]
	if !ok {
		return []SimilarDocument{}
	}

	start = max(start, 0)
	if start >= len(list) {
		return []SimilarDocument{}
	}
	end := len(list)
	if size >= 0 && size < end-start {
		end = start + size
	}
	return slices.Clone(list[start:end])
}

// Trained reports whether Train has completed successfully at least once.
func (x *Index) Trained() bool {
	return x.current.Load() != nil
}

// Len returns the number of documents in the trained index.
func (x *Index) Len() int {
	snap := x.current.Load()
	if snap == nil {
		return 0
	}
	return len(snap.neighbors)
}

// TrainedAt returns when the current snapshot was built, or the zero time.
func (x *Index) TrainedAt() time.Time {
	snap := x.current.Load()
	if snap == nil {
		return time.Time{}
	}
	return snap.trainedAt
}
