// Package normalizers provides the named join-field normalizers a linkage
// spec can chain before blocking and comparison. Normalization happens once,
// when items are collected; every later stage sees the normalized value.
package normalizers

import (
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("remove_whitespace", RemoveWhitespace)
	Register("remove_punctuation", RemovePunctuation)
	Register("alphanumeric", Alphanumeric)
	Register("digits_only", DigitsOnly)
	Register("nname", NormalizeName)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Known reports whether a normalizer name is registered. Used to validate
// linkage specs before a run starts.
func Known(name string) bool {
	_, ok := registry[name]
	return ok
}

// Apply applies a named normalizer to a value. Unknown names are a no-op.
func Apply(value, normalizer string) string {
	fn, ok := registry[normalizer]
	if !ok {
		return value
	}
	return fn(value)
}

// ApplyChain applies multiple normalizers in sequence
func ApplyChain(value string, normalizers ...string) string {
	result := value
	for _, name := range normalizers {
		result = Apply(result, name)
	}
	return result
}

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

// RemoveWhitespace removes all whitespace characters
func RemoveWhitespace(s string) string {
	return strip(s, unicode.IsSpace)
}

// RemovePunctuation removes all punctuation characters
func RemovePunctuation(s string) string {
	return strip(s, unicode.IsPunct)
}

// Alphanumeric keeps only letters and digits
func Alphanumeric(s string) string {
	return strip(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	return strip(s, func(r rune) bool { return !unicode.IsDigit(r) })
}

// strip drops every rune the predicate matches.
func strip(s string, drop func(rune) bool) string {
	return strings.Map(func(r rune) rune {
		if drop(r) {
			return -1
		}
		return r
	}, s)
}

// nameSuffixes are generational and title suffixes stripped from person
// names before comparison.
var nameSuffixes = []string{"jr", "sr", "ii", "iii", "iv", "phd", "md", "dds"}

// NormalizeName normalizes a person's name: lowercase, common suffixes
// stripped, punctuation removed, whitespace collapsed.
func NormalizeName(s string) string {
	cleaned := strip(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r)
	})

	words := strings.Fields(cleaned)
	for len(words) > 1 {
		last := words[len(words)-1]
		if !containsWord(nameSuffixes, last) {
			break
		}
		words = words[:len(words)-1]
	}

	return strings.Join(words, " ")
}

func containsWord(words []string, w string) bool {
	for _, candidate := range words {
		if candidate == w {
			return true
		}
	}
	return false
}
