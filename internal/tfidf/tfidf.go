// Package tfidf provides TF-IDF (Term Frequency-Inverse Document Frequency) term weighting.
//
// This package builds corpus-wide term statistics over pre-tokenized documents
// and turns each document into a bounded-size sparse weight vector.
//
// The TF-IDF weight of a term in a document combines:
//   - Term Frequency (TF): raw count of the term in the document
//   - Inverse Document Frequency (IDF): 1 + ln(N / (1 + df)), where N is the
//     number of documents and df the number of documents containing the term
//
// Usage Example:
//
//	corpus := tfidf.NewCorpus(tokenSequences)
//	vec := corpus.Vector(docIndex, 100)
//
// Documents with no tokens still count toward N but contribute no terms.
package tfidf

import (
	"log/slog"
	"math"
	"sort"

	"github.com/chriscorrea/related/internal/vector"
)

// Corpus holds pre-calculated term statistics for a fixed set of documents.
type Corpus struct {
	Terms          [][]string       // distinct terms per document, in first-appearance order
	TermCounts     []map[string]int // raw term counts per document
	DocFrequencies map[string]int   // number of documents containing each term
	TotalDocuments int              // total number of documents, empty ones included
}

// TermScore describes one term of a document.
type TermScore struct {
	Term  string
	TF    float64
	IDF   float64
	TFIDF float64
}

// NewCorpus creates a TF-IDF corpus from token sequences, one per document.
// The token slices are read but not retained.
func NewCorpus(documents [][]string) *Corpus {
	corpus := &Corpus{
		Terms:          make([][]string, len(documents)),
		TermCounts:     make([]map[string]int, len(documents)),
		DocFrequencies: make(map[string]int),
		TotalDocuments: len(documents),
	}

	if len(documents) == 0 {
		slog.Debug("Empty document collection provided")
		return corpus
	}

	for docIdx, tokens := range documents {
		counts := make(map[string]int, len(tokens))
		var order []string
		for _, token := range tokens {
			if counts[token] == 0 {
				order = append(order, token)
			}
			counts[token]++
		}
		corpus.Terms[docIdx] = order
		corpus.TermCounts[docIdx] = counts

		// each distinct term counts once per document
		for _, term := range order {
			corpus.DocFrequencies[term]++
		}
	}

	slog.Debug("TF-IDF corpus created", "totalTerms", len(corpus.DocFrequencies), "documents", corpus.TotalDocuments)
	return corpus
}

// IDF returns the inverse document frequency of term.
// Terms absent from the corpus get the maximum IDF, 1 + ln(N).
func (c *Corpus) IDF(term string) float64 {
	df := c.DocFrequencies[term]
	return 1 + math.Log(float64(c.TotalDocuments)/float64(1+df))
}

// ListTerms returns every term of a document ranked by descending TF-IDF.
// Equal weights keep the order in which the terms first appeared.
//
// Returns nil for an out-of-range index.
func (c *Corpus) ListTerms(docIndex int) []TermScore {
	if docIndex < 0 || docIndex >= c.TotalDocuments {
		slog.Debug("Invalid document index", "docIndex", docIndex, "totalDocs", c.TotalDocuments)
		return nil
	}

	terms := c.Terms[docIndex]
	counts := c.TermCounts[docIndex]
	scores := make([]TermScore, 0, len(terms))
	for _, term := range terms {
		tf := float64(counts[term])
		idf := c.IDF(term)
		scores = append(scores, TermScore{
			Term:  term,
			TF:    tf,
			IDF:   idf,
			TFIDF: tf * idf,
		})
	}

	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].TFIDF > scores[j].TFIDF
	})
	return scores
}

// Vector builds the sparse weight vector of a document from its top
// min(maxSize, termCount) terms. A document without terms yields a zero vector.
func (c *Corpus) Vector(docIndex int, maxSize int) vector.Sparse {
	scores := c.ListTerms(docIndex)
	if maxSize < len(scores) {
		scores = scores[:max(maxSize, 0)]
	}

	terms := make([]string, len(scores))
	weights := make([]float64, len(scores))
	for i, s := range scores {
		terms[i] = s.Term
		weights[i] = s.TFIDF
	}
	return vector.New(terms, weights)
}
