package recommend

import (
	"fmt"
	"maps"
	"math"
	"strconv"

	"github.com/goccy/go-json"
)

// Reserved field names; input documents must not carry them.
const (
	FieldTokens = "tokens"
	FieldVector = "vector"
)

const reservedReason = `"tokens" and "vector" properties are reserved and cannot be used as document properties`

// Document is a caller-supplied record. Fields holds any extra payload, which
// is passed through unchanged to SimilarDocument results.
type Document struct {
	ID     string
	Title  string
	Fields map[string]any
}

// SimilarDocument is one entry of a neighbor list: the neighbor's identity,
// its similarity score and its passthrough fields.
type SimilarDocument struct {
	ID     string
	Score  float64
	Title  string
	Fields map[string]any // shared with the index; do not modify
}

// MarshalJSON renders the entry as a flat object: {id, score, title, ...fields}.
func (d SimilarDocument) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(d.Fields)+3)
	maps.Copy(out, d.Fields)
	out["id"] = d.ID
	out["score"] = d.Score
	out["title"] = d.Title
	return json.Marshal(out)
}

// DocumentsFromValue converts a decoded JSON or YAML value into documents.
// The value must be a sequence of objects, each with "id" and "title" keys.
// All other keys become passthrough fields.
func DocumentsFromValue(v any) ([]Document, error) {
	items, ok := v.([]any)
	if !ok {
		return nil, &ValidationError{Index: -1, Reason: fmt.Sprintf("documents should be an array of objects, got %T", v)}
	}

	records := make([]map[string]any, len(items))
	for i, item := range items {
		rec, ok := item.(map[string]any)
		if !ok {
			return nil, &ValidationError{Index: i, Reason: fmt.Sprintf("document should be an object, got %T", item)}
		}
		records[i] = rec
	}
	return DocumentsFromRecords(records)
}

// DocumentsFromRecords converts generic records into documents.
// "id" may be a string or a number; "title" must be a string. The reserved
// keys "tokens" and "vector" are rejected.
func DocumentsFromRecords(records []map[string]any) ([]Document, error) {
	docs := make([]Document, 0, len(records))

	for i, rec := range records {
		rawID, hasID := rec["id"]
		rawTitle, hasTitle := rec["title"]
		if !hasID || !hasTitle {
			return nil, &ValidationError{Index: i, Reason: "documents should have fields id and title"}
		}

		id, err := formatID(rawID)
		if err != nil {
			return nil, &ValidationError{Index: i, Reason: err.Error()}
		}

		title, ok := rawTitle.(string)
		if !ok {
			return nil, &ValidationError{Index: i, ID: id, Reason: fmt.Sprintf("title should be a string, got %T", rawTitle)}
		}

		fields := make(map[string]any, len(rec))
		for k, v := range rec {
			switch k {
			case "id", "title":
				continue
			case FieldTokens, FieldVector:
				return nil, &ValidationError{Index: i, ID: id, Reason: reservedReason}
			}
			fields[k] = v
		}

		docs = append(docs, Document{ID: id, Title: title, Fields: fields})
	}

	return docs, nil
}

// formatID renders an id value as a string
func formatID(v any) (string, error) {
	switch id := v.(type) {
	case string:
		return id, nil
	case json.Number:
		return id.String(), nil
	case int:
		return strconv.Itoa(id), nil
	case int64:
		return strconv.FormatInt(id, 10), nil
	case uint64:
		return strconv.FormatUint(id, 10), nil
	case float64:
		if math.IsNaN(id) || math.IsInf(id, 0) {
			return "", fmt.Errorf("id should be a finite number, got %v", id)
		}
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	default:
		return "", fmt.Errorf("id should be a string or number, got %T", v)
	}
}

// validateDocuments checks training input before any computation starts.
func validateDocuments(docs []Document) error {
	seen := make(map[string]int, len(docs))

	for i, doc := range docs {
		if doc.ID == "" {
			return &ValidationError{Index: i, Reason: "documents should have a non-empty id"}
		}
		if prev, dup := seen[doc.ID]; dup {
			return &ValidationError{Index: i, ID: doc.ID, Reason: fmt.Sprintf("duplicate id, first seen at document %d", prev)}
		}
		seen[doc.ID] = i

		_, hasTokens := doc.Fields[FieldTokens]
		_, hasVector := doc.Fields[FieldVector]
		if hasTokens || hasVector {
			return &ValidationError{Index: i, ID: doc.ID, Reason: reservedReason}
		}
	}

	return nil
}
