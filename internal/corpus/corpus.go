// Package corpus turns raw corpus sources into recommend documents.
//
// A corpus is a sequence of records, each with an "id" and a "title" plus any
// number of passthrough fields. Supported sources:
//   - JSON: an array of objects
//   - JSONL: one object per line
//   - YAML: a sequence of mappings
//   - SQLite: the rows of a query, keyed by column name
package corpus

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	"github.com/chriscorrea/related/internal/fetch"
	"github.com/chriscorrea/related/internal/recommend"
)

// Format names a corpus encoding.
type Format string

const (
	FormatAuto  Format = "auto"
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatYAML  Format = "yaml"
)

// DefaultQuery is used when a SQLite source has no query of its own.
const DefaultQuery = "SELECT * FROM documents"

// ParseFormat validates a format name; the empty string means auto.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "", FormatAuto:
		return FormatAuto, nil
	case FormatJSON, FormatJSONL, FormatYAML:
		return f, nil
	case "ndjson":
		return FormatJSONL, nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown corpus format %q (want auto, json, jsonl or yaml)", name)
	}
}

// Source describes where a corpus comes from. When SQLite is set it names a
// database file and Query selects the rows; otherwise Path is passed to
// fetch.GetContent.
type Source struct {
	Path   string
	Format Format
	SQLite string
	Query  string
}

// String describes the source for logs and error messages.
func (s Source) String() string {
	if s.SQLite != "" {
		return "sqlite:" + s.SQLite
	}
	return s.Path
}

// Load reads and decodes the corpus described by src.
func Load(ctx context.Context, src Source) ([]recommend.Document, error) {
	if src.SQLite != "" {
		query := src.Query
		if query == "" {
			query = DefaultQuery
		}
		return LoadSQLite(ctx, src.SQLite, query)
	}

	path := src.Path
	if path == "" {
		path = "-"
	}

	content, err := fetch.GetContent(ctx, path)
	if err != nil {
		return nil, err
	}
	defer content.Close()

	format := src.Format
	if format == "" || format == FormatAuto {
		format = detectFormat(content)
	}

	slog.Debug("Loading corpus", "source", content.Name, "format", format)

	docs, err := Decode(content, format)
	if err != nil {
		return nil, fmt.Errorf("failed to load corpus from %q: %w", content.Name, err)
	}
	return docs, nil
}

// detectFormat picks a format from the extension, then the media type.
// Anything else is left to Decode to sniff.
func detectFormat(c *fetch.Content) Format {
	switch c.Ext() {
	case ".jsonl", ".ndjson":
		return FormatJSONL
	case ".yaml", ".yml":
		return FormatYAML
	case ".json":
		return FormatJSON
	}

	switch c.MediaType {
	case "application/x-ndjson", "application/jsonl", "application/x-jsonlines":
		return FormatJSONL
	case "application/yaml", "application/x-yaml", "text/yaml", "text/x-yaml":
		return FormatYAML
	}
	return FormatAuto
}

// Decode reads a whole corpus from r. FormatAuto sniffs the first
// non-space byte: '[' is a JSON array, '{' is JSONL, anything else YAML.
func Decode(r io.Reader, format Format) ([]recommend.Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}

	if format == "" || format == FormatAuto {
		format = sniff(data)
	}

	switch format {
	case FormatJSON:
		return decodeJSON(data)
	case FormatJSONL:
		return decodeJSONL(data)
	case FormatYAML:
		return decodeYAML(data)
	default:
		return nil, fmt.Errorf("unknown corpus format %q", format)
	}
}

func sniff(data []byte) Format {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return FormatJSON
	}
	switch trimmed[0] {
	case '[':
		return FormatJSON
	case '{':
		return FormatJSONL
	default:
		return FormatYAML
	}
}

func decodeJSON(data []byte) ([]recommend.Document, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return []recommend.Document{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return recommend.DocumentsFromValue(v)
}

func decodeJSONL(data []byte) ([]recommend.Document, error) {
	var records []map[string]any

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), fetch.MaxFileSizeBytes)

	line := 0
	for scanner.Scan() {
		line++
		text := bytes.TrimSpace(scanner.Bytes())
		if len(text) == 0 {
			continue
		}

		dec := json.NewDecoder(bytes.NewReader(text))
		dec.UseNumber()

		var rec map[string]any
		if err := dec.Decode(&rec); err != nil {
			return nil, fmt.Errorf("invalid JSON on line %d: %w", line, err)
		}
		if rec == nil {
			return nil, &recommend.ValidationError{Index: len(records), Reason: fmt.Sprintf("line %d should be an object", line)}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read JSONL: %w", err)
	}

	return recommend.DocumentsFromRecords(records)
}

func decodeYAML(data []byte) ([]recommend.Document, error) {
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}
	if v == nil {
		return []recommend.Document{}, nil
	}
	return recommend.DocumentsFromValue(normalizeYAML(v))
}

// normalizeYAML converts yaml.v3 values to the shapes JSON decoding produces:
// string-keyed maps and int64/float64 scalars.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	case int:
		return int64(t)
	default:
		return v
	}
}
