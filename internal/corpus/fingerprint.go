package corpus

import (
	"encoding/binary"
	"fmt"
	"slices"

	"github.com/cespare/xxhash/v2"
	"github.com/goccy/go-json"

	"github.com/chriscorrea/related/internal/recommend"
)

// Fingerprint hashes the corpus content in document order. Two corpora with
// the same documents, titles and fields in the same order share a
// fingerprint, so it can serve as a version for cached indexes.
func Fingerprint(docs []recommend.Document) uint64 {
	h := xxhash.New()

	var buf [8]byte
	writeInt := func(n int) {
		binary.LittleEndian.PutUint64(buf[:], uint64(n))
		_, _ = h.Write(buf[:])
	}
	writeString := func(s string) {
		writeInt(len(s))
		_, _ = h.WriteString(s)
	}

	writeInt(len(docs))
	for _, doc := range docs {
		writeString(doc.ID)
		writeString(doc.Title)

		keys := make([]string, 0, len(doc.Fields))
		for k := range doc.Fields {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		writeInt(len(keys))
		for _, k := range keys {
			writeString(k)
			writeString(fieldValue(doc.Fields[k]))
		}
	}

	return h.Sum64()
}

// fieldValue renders a field value deterministically.
func fieldValue(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		// NaN and other values JSON cannot represent
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(data)
}
