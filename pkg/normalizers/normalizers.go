// Package normalizers provides name normalization functions for feature extraction
package normalizers

import (
	"regexp"
	"strings"
	"unicode"
)

// Normalizer is a function that normalizes a string value
type Normalizer func(string) string

// registry holds all registered normalizers
var registry = make(map[string]Normalizer)

func init() {
	// Register built-in normalizers
	Register("lowercase", Lowercase)
	Register("trim", Trim)
	Register("collapse_whitespace", CollapseWhitespace)
	Register("remove_punctuation", RemovePunctuation)
	Register("nproduct", NormalizeProductName)
	Register("digits_only", DigitsOnly)
	Register("alphanumeric", Alphanumeric)
	Register("nbarcode", NormalizeBarcode)
}

// Register adds a normalizer to the registry
func Register(name string, fn Normalizer) {
	registry[name] = fn
}

// Get retrieves a normalizer by name
func Get(name string) (Normalizer, bool) {
	fn, ok := registry[name]
	return fn, ok
}

// Apply applies a named normalizer to a value
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

// Built-in normalizers

// Lowercase converts string to lowercase
func Lowercase(s string) string {
	return strings.ToLower(s)
}

// Trim removes leading and trailing whitespace
func Trim(s string) string {
	return strings.TrimSpace(s)
}

var spaceRe = regexp.MustCompile(`\s+`)

// CollapseWhitespace folds runs of whitespace into a single space
func CollapseWhitespace(s string) string {
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

// RemovePunctuation replaces punctuation with spaces so token boundaries survive.
// Hebrew gershayim and geresh are kept because unit spellings carry them.
func RemovePunctuation(s string) string {
	var result strings.Builder
	for _, r := range s {
		if r == '"' || r == '\'' || r == '״' || r == '׳' {
			result.WriteRune(r)
			continue
		}
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			result.WriteRune(' ')
			continue
		}
		result.WriteRune(r)
	}
	return result.String()
}

// NormalizeProductName normalizes a product name for tokenization
// - Lowercase
// - Punctuation to spaces (keeping unit quote marks)
// - Collapse whitespace
func NormalizeProductName(s string) string {
	return CollapseWhitespace(RemovePunctuation(strings.ToLower(s)))
}

// DigitsOnly keeps only digit characters
func DigitsOnly(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// Alphanumeric keeps only alphanumeric characters
func Alphanumeric(s string) string {
	var result strings.Builder
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			result.WriteRune(r)
		}
	}
	return result.String()
}

// NormalizeBarcode strips everything but digits and rejects implausible lengths.
// EAN-8 through EAN-14 are accepted.
func NormalizeBarcode(s string) string {
	digits := DigitsOnly(s)
	if len(digits) < 8 || len(digits) > 14 {
		return ""
	}
	return digits
}
