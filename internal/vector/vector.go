// Package vector provides sparse term-weight vectors and cosine similarity.
//
// A Sparse vector stores its terms sorted so two vectors can be compared with
// a single merge pass over their keys. The Euclidean norm is computed once at
// construction time.
package vector

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Sparse is an immutable mapping from term to non-negative weight.
// The zero value is an empty vector.
type Sparse struct {
	terms   []string
	weights []float64
	norm    float64
}

// New builds a Sparse vector from parallel term and weight slices.
// Terms must be unique; the inputs are copied and not retained.
func New(terms []string, weights []float64) Sparse {
	if len(terms) != len(weights) {
		panic("vector: terms and weights length mismatch")
	}
	if len(terms) == 0 {
		return Sparse{}
	}

	order := make([]int, len(terms))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		return terms[order[a]] < terms[order[b]]
	})

	s := Sparse{
		terms:   make([]string, len(terms)),
		weights: make([]float64, len(terms)),
	}
	for i, idx := range order {
		s.terms[i] = terms[idx]
		s.weights[i] = weights[idx]
	}
	s.norm = floats.Norm(s.weights, 2)
	return s
}

// FromMap builds a Sparse vector from a term → weight map.
func FromMap(m map[string]float64) Sparse {
	terms := make([]string, 0, len(m))
	weights := make([]float64, 0, len(m))
	for term, w := range m {
		terms = append(terms, term)
		weights = append(weights, w)
	}
	return New(terms, weights)
}

// Len returns the number of terms.
func (s Sparse) Len() int { return len(s.terms) }

// Norm returns the Euclidean norm.
func (s Sparse) Norm() float64 { return s.norm }

// IsZero reports whether the vector has no weight at all.
func (s Sparse) IsZero() bool { return s.norm == 0 }

// Weight returns the weight of term and whether the term is present.
func (s Sparse) Weight(term string) (float64, bool) {
	i := sort.SearchStrings(s.terms, term)
	if i < len(s.terms) && s.terms[i] == term {
		return s.weights[i], true
	}
	return 0, false
}

// Terms returns a copy of the terms in sorted order.
func (s Sparse) Terms() []string {
	out := make([]string, len(s.terms))
	copy(out, s.terms)
	return out
}

// Map returns the vector as a term → weight map.
func (s Sparse) Map() map[string]float64 {
	m := make(map[string]float64, len(s.terms))
	for i, term := range s.terms {
		m[term] = s.weights[i]
	}
	return m
}

// Dot returns the dot product of a and b over their shared terms.
func Dot(a, b Sparse) float64 {
	var sum float64
	i, j := 0, 0
	for i < len(a.terms) && j < len(b.terms) {
		switch {
		case a.terms[i] == b.terms[j]:
			sum += a.weights[i] * b.weights[j]
			i++
			j++
		case a.terms[i] < b.terms[j]:
			i++
		default:
			j++
		}
	}
	return sum
}

// Cosine returns the cosine similarity of a and b, clamped to [0, 1].
// A zero vector has similarity 0 with everything, itself included.
func Cosine(a, b Sparse) float64 {
	if a.norm == 0 || b.norm == 0 {
		return 0
	}
	sim := Dot(a, b) / (a.norm * b.norm)
	return math.Max(0, math.Min(1, sim))
}
