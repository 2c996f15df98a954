package shared

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// NormalizeName trims and NFC-normalises a display name so visually identical
// names compare equal in natural-key checks.
func NormalizeName(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// Slugify produces a lower-case ASCII slug, dropping diacritics.
func Slugify(s string) string {
	decomposed := norm.NFKD.String(strings.TrimSpace(s))
	var b strings.Builder
	dash := false
	for _, r := range decomposed {
		switch {
		case unicode.Is(unicode.Mn, r):
			continue
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			b.WriteRune(unicode.ToLower(r))
			dash = false
		default:
			if b.Len() > 0 && !dash {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
