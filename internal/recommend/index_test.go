package recommend

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// questionCorpus returns a small Q&A-style corpus with overlapping titles
func questionCorpus() []Document {
	titles := []string{
		"How to sort an array in place",
		"Sort an array of objects by property",
		"Sorting a slice of structs in Go",
		"Reverse a linked list recursively",
		"Detect a cycle in a linked list",
		"Golang channel buffer deadlock",
		"Why does my Go channel deadlock",
		"Binary search on a sorted array",
		"",
		"<b>Parse JSON</b> into a Go struct",
		"Unmarshal nested JSON in Go",
		"Center a div with CSS flexbox",
	}
	docs := make([]Document, len(titles))
	for i, title := range titles {
		docs[i] = Document{
			ID:     fmt.Sprintf("q%d", i),
			Title:  title,
			Fields: map[string]any{"votes": i},
		}
	}
	return docs
}

func mustTrain(t *testing.T, idx *Index, docs []Document) {
	t.Helper()
	require.NoError(t, idx.Train(context.Background(), docs))
}

func mustNew(t *testing.T, opts ...Option) *Index {
	t.Helper()
	idx, err := New(opts...)
	require.NoError(t, err)
	return idx
}

// snapshotOf collects every neighbor list of a trained index
func snapshotOf(idx *Index, docs []Document) map[string][]SimilarDocument {
	out := make(map[string][]SimilarDocument, len(docs))
	for _, d := range docs {
		out[d.ID] = idx.SimilarDocuments(d.ID, 0, All)
	}
	return out
}

func TestTrainProperties(t *testing.T) {
	docs := questionCorpus()
	idx := mustNew(t)
	mustTrain(t, idx, docs)

	lists := snapshotOf(idx, docs)
	for id, list := range lists {
		for k, entry := range list {
			assert.NotEqual(t, id, entry.ID, "%s appears in its own list", id)
			assert.Greater(t, entry.Score, 0.0, "%s -> %s", id, entry.ID)
			assert.LessOrEqual(t, entry.Score, 1.0, "%s -> %s", id, entry.ID)
			if k > 0 {
				assert.GreaterOrEqual(t, list[k-1].Score, entry.Score, "%s list not in descending order", id)
			}

			found := false
			for _, back := range lists[entry.ID] {
				if back.ID == id {
					found = true
					assert.Equal(t, entry.Score, back.Score, "asymmetric score %s<->%s", id, entry.ID)
				}
			}
			assert.True(t, found, "%s lists %s but not the reverse", id, entry.ID)
		}
	}

	require.NotEmpty(t, lists["q0"], "q0 should match the sort/array questions")
	assert.Contains(t, []string{"q1", "q7"}, lists["q0"][0].ID)
}

func TestTrainThresholdAndBounds(t *testing.T) {
	docs := questionCorpus()
	idx := mustNew(t, WithMinScore(0.1), WithMaxSimilarDocuments(2))
	mustTrain(t, idx, docs)

	for _, d := range docs {
		list := idx.SimilarDocuments(d.ID, 0, All)
		assert.LessOrEqual(t, len(list), 2, d.ID)
		for _, entry := range list {
			assert.Greater(t, entry.Score, 0.1, "%s -> %s", d.ID, entry.ID)
		}
	}
}

func TestTrainIdempotent(t *testing.T) {
	docs := questionCorpus()
	idx := mustNew(t)

	mustTrain(t, idx, docs)
	first := snapshotOf(idx, docs)
	mustTrain(t, idx, docs)

	assert.Equal(t, first, snapshotOf(idx, docs))
}

func TestTrainWorkersDoNotChangeResults(t *testing.T) {
	docs := questionCorpus()

	seq := mustNew(t)
	mustTrain(t, seq, docs)
	par := mustNew(t, WithWorkers(4))
	mustTrain(t, par, docs)

	assert.Equal(t, snapshotOf(seq, docs), snapshotOf(par, docs))
}

func TestTrainEmptyCorpus(t *testing.T) {
	idx := mustNew(t)
	mustTrain(t, idx, []Document{})

	assert.True(t, idx.Trained())
	assert.Zero(t, idx.Len())
	assert.Empty(t, idx.SimilarDocuments("anything", 0, All))
}

func TestTrainedAt(t *testing.T) {
	idx := mustNew(t)
	assert.True(t, idx.TrainedAt().IsZero())

	before := time.Now()
	mustTrain(t, idx, questionCorpus())
	first := idx.TrainedAt()
	assert.False(t, first.Before(before))

	mustTrain(t, idx, questionCorpus())
	assert.False(t, idx.TrainedAt().Before(first))
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	idx := mustNew(t, WithLogger(logger))
	mustTrain(t, idx, questionCorpus())

	assert.Contains(t, buf.String(), "Index trained")
	assert.Contains(t, buf.String(), "documents=12")

	// a nil logger keeps the current one
	buf.Reset()
	require.NoError(t, idx.Configure(WithLogger(nil)))
	mustTrain(t, idx, questionCorpus())
	assert.Contains(t, buf.String(), "Index trained")
}

func TestScenarioIdenticalTitles(t *testing.T) {
	docs := []Document{
		{ID: "a", Title: "How to sort an array in place"},
		{ID: "b", Title: "How to sort an array in place"},
	}
	idx := mustNew(t)
	mustTrain(t, idx, docs)

	for _, pair := range [][2]string{{"a", "b"}, {"b", "a"}} {
		list := idx.SimilarDocuments(pair[0], 0, All)
		require.Len(t, list, 1, pair[0])
		assert.Equal(t, pair[1], list[0].ID)
		assert.InDelta(t, 1.0, list[0].Score, 1e-9)
	}
}

func TestScenarioEmptyTitle(t *testing.T) {
	docs := []Document{
		{ID: "empty", Title: ""},
		{ID: "text", Title: "Binary search on a sorted array"},
	}
	idx := mustNew(t)
	mustTrain(t, idx, docs)

	for _, id := range []string{"empty", "text"} {
		assert.Empty(t, idx.SimilarDocuments(id, 0, All), id)
	}
	assert.Equal(t, 2, idx.Len())
}

func TestScenarioMaxSimilarDocuments(t *testing.T) {
	docs := []Document{
		{ID: "target", Title: "golang channel buffer deadlock"},
		{ID: "n1", Title: "golang channel buffer deadlock detection"},
		{ID: "n2", Title: "golang channel buffer"},
		{ID: "n3", Title: "golang channel"},
		{ID: "n4", Title: "golang tutorial"},
		{ID: "other", Title: "rust borrow checker"},
	}

	full := mustNew(t)
	mustTrain(t, full, docs)
	all := full.SimilarDocuments("target", 0, All)
	require.GreaterOrEqual(t, len(all), 4)

	capped := mustNew(t, WithMaxSimilarDocuments(2))
	mustTrain(t, capped, docs)

	assert.Equal(t, all[:2], capped.SimilarDocuments("target", 0, All))
}

func TestScenarioInvalidConfigureKeepsIndex(t *testing.T) {
	docs := questionCorpus()
	idx := mustNew(t, WithMaxSimilarDocuments(3))
	mustTrain(t, idx, docs)
	before := snapshotOf(idx, docs)
	beforeOpts := idx.Options()

	err := idx.Configure(WithMaxVectorSize(-1))

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, "maxVectorSize", cfgErr.Option)
	assert.ErrorIs(t, err, ErrInvalidOption)
	assert.Equal(t, beforeOpts, idx.Options())
	assert.Equal(t, before, snapshotOf(idx, docs))
}

func TestConfigureRevertsOmittedToDefaults(t *testing.T) {
	idx := mustNew(t, WithMinScore(0.5), WithMaxSimilarDocuments(3))
	require.NoError(t, idx.Configure(WithMaxVectorSize(10)))

	want := DefaultOptions()
	want.MaxVectorSize = 10
	assert.Equal(t, want, idx.Options())
}

func TestTrainValidation(t *testing.T) {
	tests := []struct {
		name string
		docs []Document
	}{
		{
			name: "missing id",
			docs: []Document{{ID: "", Title: "no id"}},
		},
		{
			name: "duplicate id",
			docs: []Document{{ID: "x", Title: "one"}, {ID: "x", Title: "two"}},
		},
		{
			name: "reserved tokens field",
			docs: []Document{{ID: "x", Title: "t", Fields: map[string]any{"tokens": []string{"a"}}}},
		},
		{
			name: "reserved vector field",
			docs: []Document{{ID: "x", Title: "t", Fields: map[string]any{"vector": nil}}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			docs := questionCorpus()
			idx := mustNew(t)
			mustTrain(t, idx, docs)
			before := snapshotOf(idx, docs)

			err := idx.Train(context.Background(), tt.docs)

			var vErr *ValidationError
			require.ErrorAs(t, err, &vErr)
			assert.ErrorIs(t, err, ErrInvalidDocument)
			assert.Equal(t, before, snapshotOf(idx, docs), "failed Train changed the trained index")
		})
	}
}

func TestTrainDoesNotMutateInput(t *testing.T) {
	docs := questionCorpus()

	idx := mustNew(t)
	mustTrain(t, idx, docs)

	require.Equal(t, questionCorpus(), docs)

	// passthrough fields are copied, so later edits do not leak into results
	docs[1].Fields["votes"] = 999
	for _, entry := range idx.SimilarDocuments("q0", 0, All) {
		if entry.ID == "q1" {
			assert.Equal(t, 1, entry.Fields["votes"])
		}
	}
}

func TestTrainCancelledKeepsState(t *testing.T) {
	docs := questionCorpus()
	idx := mustNew(t)
	mustTrain(t, idx, docs)
	before := snapshotOf(idx, docs)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.ErrorIs(t, idx.Train(ctx, docs[:3]), context.Canceled)
	assert.Equal(t, before, snapshotOf(idx, docs))
}

func TestSimilarDocumentsPaging(t *testing.T) {
	docs := []Document{
		{ID: "target", Title: "golang channel buffer deadlock"},
		{ID: "n1", Title: "golang channel buffer deadlock detection"},
		{ID: "n2", Title: "golang channel buffer"},
		{ID: "n3", Title: "golang channel"},
		{ID: "n4", Title: "golang tutorial"},
	}
	idx := mustNew(t)
	mustTrain(t, idx, docs)
	all := idx.SimilarDocuments("target", 0, All)

	tests := []struct {
		name        string
		start, size int
		want        []SimilarDocument
	}{
		{"everything", 0, All, all},
		{"first page", 0, 2, all[:2]},
		{"second page", 2, 2, all[2:4]},
		{"size past end", 3, 100, all[3:]},
		{"huge size", 1, math.MaxInt, all[1:]},
		{"start past end", 10, 2, []SimilarDocument{}},
		{"negative start", -3, 1, all[:1]},
		{"zero size", 0, 0, []SimilarDocument{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, idx.SimilarDocuments("target", tt.start, tt.size))
		})
	}
}

func TestSimilarDocumentsAbsence(t *testing.T) {
	idx := mustNew(t)
	got := idx.SimilarDocuments("q0", 0, All)
	assert.NotNil(t, got)
	assert.Empty(t, got)
	assert.False(t, idx.Trained())

	mustTrain(t, idx, questionCorpus())
	got = idx.SimilarDocuments("missing", 0, All)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestSimilarDocumentsReturnsCopy(t *testing.T) {
	docs := questionCorpus()
	idx := mustNew(t)
	mustTrain(t, idx, docs)

	got := idx.SimilarDocuments("q0", 0, All)
	require.NotEmpty(t, got)
	got[0].Score = -1

	assert.NotEqual(t, -1.0, idx.SimilarDocuments("q0", 0, All)[0].Score, "modifying a result changed the index")
}

func TestConcurrentReadsDuringTrain(t *testing.T) {
	docs := questionCorpus()
	idx := mustNew(t)
	mustTrain(t, idx, docs)
	want := idx.SimilarDocuments("q0", 0, All)

	var wg sync.WaitGroup
	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				if !assert.Equal(t, want, idx.SimilarDocuments("q0", 0, All)) {
					return
				}
			}
		}()
	}

	for i := 0; i < 5; i++ {
		assert.NoError(t, idx.Train(context.Background(), docs))
	}
	wg.Wait()
}
