// Package extractor provides tools for extracting field values from dataset rows
package extractor

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Extractor handles extracting values from nested row data
type Extractor struct{}

// New creates a new Extractor
func New() *Extractor {
	return &Extractor{}
}

// Extract extracts a value from a row using a dot-notation path
// ("name", "address.city", "user.profile.email").
func (e *Extractor) Extract(data any, path string) (any, error) {
	current := data
	for path != "" {
		if current == nil {
			return nil, nil
		}

		key, rest, _ := strings.Cut(path, ".")
		m, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("cannot extract key %q from type %T", key, current)
		}

		current, ok = m[key]
		if !ok {
			return nil, nil
		}
		path = rest
	}

	return current, nil
}

// ExtractString extracts a value and converts it to a string. Returns nil
// when the path resolves to nothing.
func (e *Extractor) ExtractString(data any, path string) (*string, error) {
	value, err := e.Extract(data, path)
	if err != nil || value == nil {
		return nil, err
	}

	s := toString(value)
	return &s, nil
}

// toString converts any value to a string
func toString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case bool:
		return strconv.FormatBool(val)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(v)
		return string(b)
	}
}
