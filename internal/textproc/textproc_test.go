package textproc

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTokens(t *testing.T) {
	p := New()

	tests := []struct {
		name  string
		title string
		want  []string
	}{
		{
			name:  "empty title",
			title: "",
			want:  []string{},
		},
		{
			name:  "markup only",
			title: "<p><br/></p>",
			want:  []string{},
		},
		{
			name:  "stopwords only",
			title: "How to do it",
			want:  []string{},
		},
		{
			name:  "stopwords break every n-gram",
			title: "How to sort an array in place",
			want:  []string{"sort", "array", "place"},
		},
		{
			name:  "unigrams then bigrams then trigrams",
			title: "Walking dogs quickly",
			want: []string{
				"walk", "dog", "quick",
				"walk_dog", "dog_quick",
				"walk_dog_quick",
			},
		},
		{
			name:  "tags collapse to spaces",
			title: "<b>Hello</b><i>World</i>",
			want:  []string{"hello", "world", "hello_world"},
		},
		{
			name:  "stray end tag does not merge words",
			title: "Sorting</b>arrays",
			want:  []string{"sort", "array", "sort_array"},
		},
		{
			name:  "mixed case and punctuation",
			title: "Parsing JSON, quickly!",
			want:  []string{"pars", "json", "quick", "pars_json", "json_quick", "pars_json_quick"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.Tokens(tt.title))
		})
	}
}

func TestTokensDeterministic(t *testing.T) {
	p := New()
	title := "Concurrent <em>map</em> access in Go routines"

	first := p.Tokens(title)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, p.Tokens(title), "run %d", i)
	}
}

func TestWithStopwords(t *testing.T) {
	p := New(WithStopwords([]string{"Dogs"}))

	assert.Equal(t, []string{"the", "bark"}, p.Tokens("the dogs bark"))
}

func TestStripTags(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"plain text untouched", "hello world", "hello world"},
		{"adjacent tags", "<b>a</b>b", "a b"},
		{"nested tags", "<div><p>one</p><p>two</p></div>", "one two"},
		{"comment replaced", "keep<!-- drop -->this", "keep this"},
		{"entity decoded", "Tom &amp; Jerry", "Tom & Jerry"},
		{"tag only", "<hr>", ""},
		{"stray end tag", "Hello</b>World", "Hello World"},
		{"table cells outside a table", "sort<td>array</td>place", "sort array place"},
		{"document-level tags", "use<html>tags", "use tags"},
		{"self-closing tag", "line<br/>break", "line break"},
		{"doctype", "<!DOCTYPE html>title", "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StripTags(tt.text))
		})
	}
}

func TestWordTokenizer(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", nil},
		{"punctuation", "hello, world!", []string{"hello", "world"}},
		{"underscores and digits", "test_123 go1.22", []string{"test_123", "go1", "22"}},
		{"hyphen splits", "x-ray", []string{"x", "ray"}},
		{"unicode letters", "café naïve", []string{"café", "naïve"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, WordTokenizer{}.Tokenize(tt.text))
		})
	}
}

func TestProseTokenizerDropsPunctuation(t *testing.T) {
	got := ProseTokenizer{}.Tokenize("sorting arrays, in place!")
	assert.NotContains(t, got, ",")
	assert.NotContains(t, got, "!")
	assert.Len(t, got, 4)
}

func TestTokenizerByName(t *testing.T) {
	for _, name := range []string{"", "word", "WORD", "prose"} {
		_, ok := TokenizerByName(name)
		assert.True(t, ok, name)
	}
	_, ok := TokenizerByName("whitespace")
	assert.False(t, ok)
}
