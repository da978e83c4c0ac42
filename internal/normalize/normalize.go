// Package normalize folds raw product names into comparison keys. The same
// function runs on ingestion and on lookup, so any change here invalidates
// every stored key.
package normalize

import (
	"strings"
	"unicode"
)

var articles = map[string]struct{}{
	"a":   {},
	"an":  {},
	"the": {},
}

// platformWords identify where a name was seen, not what the product is.
var platformWords = map[string]struct{}{
	"amazon":            {},
	"walmart":           {},
	"target":            {},
	"etsy":              {},
	"tiktok":            {},
	"reddit":            {},
	"shopify":           {},
	"aliexpress":        {},
	"google":            {},
	"temu":              {},
	"tiktokmademebuyit": {},
	"amazonfinds":       {},
}

// Key returns the canonical comparison key for raw. It is total and idempotent:
// Key(Key(x)) == Key(x).
func Key(raw string) string {
	lowered := strings.ToLower(raw)

	var b strings.Builder
	b.Grow(len(lowered))
	for _, r := range lowered {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '-':
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	kept := fields[:0]
	for _, f := range fields {
		f = strings.Trim(f, "-")
		if f == "" || isStopword(f) {
			continue
		}
		kept = append(kept, f)
	}
	return strings.Join(kept, " ")
}

// Tokens splits a key into alphanumeric comparison tokens. Hyphens separate
// tokens here so "standing-desk" and "standing desk" compare as equal.
func Tokens(key string) []string {
	return strings.FieldsFunc(key, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func isStopword(tok string) bool {
	if _, ok := articles[tok]; ok {
		return true
	}
	_, ok := platformWords[tok]
	return ok
}
