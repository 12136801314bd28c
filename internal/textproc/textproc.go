// Package textproc turns raw document titles into normalized terms for TF-IDF.
//
// A title is stripped of markup, lower-cased and split into word tokens. The
// resulting term sequence holds, in order:
//   - Unigrams: tokens that are not stopwords, stemmed
//   - Bigrams: consecutive token pairs with no stopword member, stemmed and joined with "_"
//   - Trigrams: consecutive token triples with no stopword member, stemmed and joined with "_"
//
// Usage Example:
//
//	p := textproc.New()
//	terms := p.Tokens("Walking dogs <b>quickly</b>")
//	// [walk dog quick walk_dog dog_quick walk_dog_quick]
//
// Output is deterministic for identical input and identical stopword/stemmer resources.
package textproc

import (
	"log/slog"
	"strings"

	"github.com/kljensen/snowball"
)

// NgramSeparator joins the stemmed members of bigrams and trigrams.
const NgramSeparator = "_"

// Preprocessor converts titles into term sequences.
// It holds no mutable state after construction and is safe for concurrent use.
type Preprocessor struct {
	tokenizer Tokenizer
	stopwords map[string]struct{}
}

// Option customizes a Preprocessor.
type Option func(*Preprocessor)

// WithTokenizer replaces the default WordTokenizer.
func WithTokenizer(t Tokenizer) Option {
	return func(p *Preprocessor) {
		if t != nil {
			p.tokenizer = t
		}
	}
}

// WithStopwords replaces the built-in English stopword list.
// Words are lower-cased before they are stored.
func WithStopwords(words []string) Option {
	return func(p *Preprocessor) {
		p.stopwords = make(map[string]struct{}, len(words))
		for _, w := range words {
			p.stopwords[strings.ToLower(w)] = struct{}{}
		}
	}
}

// New creates a Preprocessor with the word tokenizer and English stopwords
// unless options say otherwise.
func New(opts ...Option) *Preprocessor {
	p := &Preprocessor{
		tokenizer: WordTokenizer{},
		stopwords: englishStopwords,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Tokens returns the unigram, bigram and trigram terms for a title.
// An empty or markup-only title yields an empty (non-nil) slice.
func (p *Preprocessor) Tokens(title string) []string {
	text := strings.ToLower(StripTags(title))
	tokens := p.tokenizer.Tokenize(text)
	if len(tokens) == 0 {
		return []string{}
	}

	// stem each token once; n-grams reuse the same stems
	stems := make([]string, len(tokens))
	keep := make([]bool, len(tokens))
	for i, token := range tokens {
		keep[i] = !p.IsStopword(token)
		if keep[i] {
			stems[i] = stem(token)
		}
	}

	terms := make([]string, 0, 3*len(tokens))

	// unigrams
	for i := range tokens {
		if keep[i] {
			terms = append(terms, stems[i])
		}
	}

	// bigrams, then trigrams, over the original token sequence
	for n := 2; n <= 3; n++ {
		terms = appendNgrams(terms, stems, keep, n)
	}

	slog.Debug("Tokenized title", "tokens", len(tokens), "terms", len(terms))
	return terms
}

// IsStopword reports whether token is in the stopword list.
func (p *Preprocessor) IsStopword(token string) bool {
	_, ok := p.stopwords[token]
	return ok
}

// appendNgrams appends every n-gram whose members all survived stopword filtering.
func appendNgrams(terms, stems []string, keep []bool, n int) []string {
	for start := 0; start+n <= len(stems); start++ {
		ok := true
		for i := start; i < start+n; i++ {
			if !keep[i] {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		terms = append(terms, strings.Join(stems[start:start+n], NgramSeparator))
	}
	return terms
}

// stem reduces a token to its English (Porter2) root.
func stem(token string) string {
	stemmed, err := snowball.Stem(token, "english", true)
	if err != nil {
		// if stemming fails, use the original token
		return token
	}
	return stemmed
}
