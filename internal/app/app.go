// Package app contains the core application logic for the related CLI tool.
// It handles the main business logic separated from CLI concerns.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"

	"github.com/chriscorrea/related/internal/corpus"
	"github.com/chriscorrea/related/internal/progress"
	"github.com/chriscorrea/related/internal/recommend"
)

// OutputFormat defines the output format for results
type OutputFormat int

const (
	// plaintext output format (default)
	Text OutputFormat = iota
	// JSON output format
	JSON
)

// String returns the string representation of the output
func (f OutputFormat) String() string {
	switch f {
	case Text:
		return "Text"
	case JSON:
		return "JSON"
	default:
		return "Unknown"
	}
}

// Config holds all configuration options for one CLI run.
type Config struct {
	Source       corpus.Source      // where the corpus comes from
	IndexOptions []recommend.Option // training options
	OutputFormat OutputFormat
	Quiet        bool      // suppress progress output
	Progress     io.Writer // where progress is drawn; defaults to stderr
}

// Similar trains on the configured corpus and renders the neighbors of id,
// sliced to [start, start+size).
//
// ctx allows for cancellation of loading and training.
func Similar(ctx context.Context, cfg Config, id string, start, size int) (string, error) {
	idx, docs, err := train(ctx, cfg)
	if err != nil {
		return "", err
	}

	if !containsID(docs, id) {
		return "", fmt.Errorf("document %q not found in corpus", id)
	}

	start = max(start, 0)
	similar := idx.SimilarDocuments(id, start, size)

	if cfg.OutputFormat == JSON {
		return renderJSON(similar)
	}

	if len(similar) == 0 {
		return fmt.Sprintf("No similar documents for %q\n", id), nil
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RANK\tSCORE\tID\tTITLE")
	for i, doc := range similar {
		fmt.Fprintf(tw, "%d\t%.4f\t%s\t%s\n", start+i+1, doc.Score, doc.ID, doc.Title)
	}
	if err := tw.Flush(); err != nil {
		return "", err
	}
	return b.String(), nil
}

// Summary describes one document's neighbor list after training.
type Summary struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Neighbors int     `json:"neighbors"`
	TopID     string  `json:"top_id,omitempty"`
	TopScore  float64 `json:"top_score"`
}

// Train trains on the configured corpus and renders a per-document summary
// in corpus order.
func Train(ctx context.Context, cfg Config) (string, error) {
	idx, docs, err := train(ctx, cfg)
	if err != nil {
		return "", err
	}

	summaries := make([]Summary, len(docs))
	for i, doc := range docs {
		similar := idx.SimilarDocuments(doc.ID, 0, recommend.All)
		summaries[i] = Summary{ID: doc.ID, Title: doc.Title, Neighbors: len(similar)}
		if len(similar) > 0 {
			summaries[i].TopID = similar[0].ID
			summaries[i].TopScore = similar[0].Score
		}
	}

	if cfg.OutputFormat == JSON {
		return renderJSON(summaries)
	}

	var b strings.Builder
	tw := tabwriter.NewWriter(&b, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNEIGHBORS\tTOP\tSCORE\tTITLE")
	for _, s := range summaries {
		top := "-"
		if s.TopID != "" {
			top = s.TopID
		}
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.4f\t%s\n", s.ID, s.Neighbors, top, s.TopScore, s.Title)
	}
	fmt.Fprintf(tw, "\n%d documents trained\n", len(docs))
	if err := tw.Flush(); err != nil {
		return "", err
	}
	return b.String(), nil
}

// train loads the corpus and builds an index, drawing progress unless quiet.
func train(ctx context.Context, cfg Config) (*recommend.Index, []recommend.Document, error) {
	docs, err := corpus.Load(ctx, cfg.Source)
	if err != nil {
		return nil, nil, err
	}

	opts := cfg.IndexOptions
	if !cfg.Quiet {
		w := cfg.Progress
		if w == nil {
			w = os.Stderr
		}
		// display spinner for longer operations
		ind := progress.New(ctx, w, "Training")
		ind.Start()
		defer ind.Stop()
		opts = append(append([]recommend.Option(nil), opts...), recommend.WithProgress(ind.Update))
	}

	idx, err := recommend.New(opts...)
	if err != nil {
		return nil, nil, err
	}
	if err := idx.Train(ctx, docs); err != nil {
		return nil, nil, fmt.Errorf("training failed: %w", err)
	}
	return idx, docs, nil
}

func containsID(docs []recommend.Document, id string) bool {
	for _, doc := range docs {
		if doc.ID == id {
			return true
		}
	}
	return false
}

func renderJSON(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}
	return string(data) + "\n", nil
}
