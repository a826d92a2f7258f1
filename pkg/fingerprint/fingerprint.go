// Package fingerprint derives a deterministic identity for a linkage spec.
// Two requests with the same datasets and settings hash to the same value
// regardless of JSON key ordering, which lets callers spot duplicate jobs.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"strings"
)

// FromJSON hashes a raw JSON document into its canonical fingerprint.
func FromJSON(data json.RawMessage) (string, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return "", err
	}

	var b strings.Builder
	canonicalize(&b, v)
	hash := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(hash[:]), nil
}

// canonicalize writes a deterministic representation: object keys sorted,
// arrays in order, primitives JSON-encoded.
func canonicalize(b *strings.Builder, data any) {
	switch v := data.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			keyJSON, _ := json.Marshal(k)
			b.Write(keyJSON)
			b.WriteByte(':')
			canonicalize(b, v[k])
		}
		b.WriteByte('}')
	case []any:
		b.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				b.WriteByte(',')
			}
			canonicalize(b, item)
		}
		b.WriteByte(']')
	default:
		primitive, _ := json.Marshal(v)
		b.Write(primitive)
	}
}
