package textproc

import (
	"log/slog"
	"regexp"
	"strings"
	"unicode"

	"github.com/jdkato/prose/v2"
	"golang.org/x/net/html"
)

// Tokenizer splits lower-cased text into word tokens.
type Tokenizer interface {
	Tokenize(text string) []string
}

// wordSplitRegex matches runs of characters that cannot be part of a word
var wordSplitRegex = regexp.MustCompile(`[^\p{L}\p{N}_]+`)

// WordTokenizer splits text on every run of characters other than letters,
// digits and underscores. It is the default tokenizer.
type WordTokenizer struct{}

// Tokenize implements Tokenizer.
func (WordTokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	var tokens []string
	for _, token := range wordSplitRegex.Split(text, -1) {
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// ProseTokenizer uses the prose NLP tokenizer, which understands contractions
// and abbreviations. Tokens made only of punctuation or symbols are dropped.
type ProseTokenizer struct{}

// Tokenize implements Tokenizer.
func (ProseTokenizer) Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	doc, err := prose.NewDocument(text,
		prose.WithTagging(false),
		prose.WithSegmentation(false),
		prose.WithExtraction(false))
	if err != nil {
		slog.Debug("prose tokenization failed, falling back to word tokenizer", "error", err)
		return WordTokenizer{}.Tokenize(text)
	}

	var tokens []string
	for _, tok := range doc.Tokens() {
		if strings.IndexFunc(tok.Text, isWordRune) >= 0 {
			tokens = append(tokens, tok.Text)
		}
	}
	return tokens
}

// TokenizerByName returns the tokenizer registered under name ("word" or "prose").
func TokenizerByName(name string) (Tokenizer, bool) {
	switch strings.ToLower(name) {
	case "", "word":
		return WordTokenizer{}, true
	case "prose":
		return ProseTokenizer{}, true
	default:
		return nil, false
	}
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// StripTags removes markup from text. Every tag becomes a single space and
// runs of whitespace collapse, so "<b>a</b>b" yields "a b". Stray end tags and
// tags that are out of place in a body count as tags too. Comments are
// replaced like tags and entities are decoded.
func StripTags(text string) string {
	if !strings.ContainsAny(text, "<&") {
		return text
	}

	var b strings.Builder
	z := html.NewTokenizer(strings.NewReader(text))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.Join(strings.Fields(b.String()), " ")
		case html.TextToken:
			b.Write(z.Text())
		default:
			b.WriteByte(' ')
		}
	}
}
