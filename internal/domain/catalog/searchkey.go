package catalog

import (
	"strings"
	"unicode"
)

// separator joins the normalized parts of a search key and replaces
// multi-artist separators inside a part.
const separator = "|"

// artistSeparators are the multi-artist markers collapsed during
// normalization. Matched after lowercasing.
var artistSeparators = []string{" feat. ", " x ", " & "}

// SearchKey normalizes free-text title/artist strings into a single
// lowercase key suitable for prefix-range lookup. Per part, runes outside
// [a-z0-9()&.\s-] are stripped and multi-artist separators are collapsed to
// "|"; parts are then joined with "|". Deterministic for a given input.
func SearchKey(parts ...string) string {
	formatted := make([]string, len(parts))
	for i, part := range parts {
		formatted[i] = normalizePart(part)
	}
	return strings.Join(formatted, separator)
}

func normalizePart(raw string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(raw) {
		if allowedRune(r) {
			b.WriteRune(r)
		}
	}
	s := b.String()
	for _, sep := range artistSeparators {
		s = strings.ReplaceAll(s, sep, separator)
	}
	return s
}

func allowedRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z':
		return true
	case r >= '0' && r <= '9':
		return true
	}
	switch r {
	case '(', ')', '&', '.', '-':
		return true
	}
	return unicode.IsSpace(r)
}

// SearchKeyRange returns the half-open interval [lo, hi) matching every key
// that starts with key. hi is the key with its last rune incremented; runes
// already at the maximum code point are dropped before incrementing so the
// bound stays sortable. An empty hi means the range is unbounded above.
func SearchKeyRange(key string) (lo, hi string) {
	runes := []rune(key)
	for len(runes) > 0 {
		last := runes[len(runes)-1]
		if last < unicode.MaxRune {
			runes[len(runes)-1] = last + 1
			return key, string(runes)
		}
		runes = runes[:len(runes)-1]
	}
	return key, ""
}
