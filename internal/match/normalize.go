package match

import (
	"strings"
	"unicode"

	"github.com/gosimple/unidecode"
	"golang.org/x/text/unicode/norm"
)

// Normalize canonicalizes a title or artist name for comparison and index
// keying: lowercase, NFKD decomposition, combining marks and punctuation
// stripped, whitespace collapsed.
//
// Deterministic and total: identical input always yields an identical key.
func Normalize(s string) string {
	s = norm.NFKD.String(strings.ToLower(strings.TrimSpace(s)))

	var b strings.Builder
	b.Grow(len(s))
	space := false
	for _, r := range s {
		switch {
		case unicode.IsSpace(r):
			space = true
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '_':
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		}
		// marks and punctuation are dropped
	}
	return b.String()
}

// HasCyrillic reports whether the string contains any Cyrillic letters.
func HasCyrillic(s string) bool {
	for _, r := range s {
		if r >= 0x0400 && r <= 0x04FF {
			return true
		}
	}
	return false
}

// Transliterate maps Cyrillic text to a Latin approximation.
//
// Returns ("", false) when the input has no Cyrillic letters, so callers can
// skip redundant index keys and search queries.
func Transliterate(s string) (string, bool) {
	if !HasCyrillic(s) {
		return "", false
	}
	return unidecode.Unidecode(s), true
}

// titleKeys returns the normalized index keys for a title: the original form
// plus the transliterated form when the title is Cyrillic.
func titleKeys(title string) []string {
	keys := []string{Normalize(title)}
	if tr, ok := Transliterate(title); ok {
		if k := Normalize(tr); k != keys[0] {
			keys = append(keys, k)
		}
	}
	return keys
}

// artistKeys returns the normalized index keys for one artist name.
func artistKeys(name string) []string {
	keys := []string{Normalize(name)}
	if tr, ok := Transliterate(name); ok {
		if k := Normalize(tr); k != keys[0] {
			keys = append(keys, k)
		}
	}
	return keys
}

// forms returns the comparison forms of a name: the original plus the
// transliterated variant when one exists.
func forms(name string) []string {
	out := []string{name}
	if tr, ok := Transliterate(name); ok {
		out = append(out, tr)
	}
	return out
}
