package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var nonAlnum = regexp.MustCompile(`[^a-z0-9]+`)

// Generate creates a URL-friendly ASCII slug from name. Latin diacritics are
// folded to their base letters; scripts without an ASCII form (Arabic, for
// example) produce an empty slug and callers fall back to an id-based one.
//
// Examples:
//   - "Café Crème" → "cafe-creme"
//   - "Kadın Giyim" → "kadin-giyim"
//   - "Hello   World!" → "hello-world"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.NewReplacer("ı", "i", "ß", "ss", "ø", "o", "æ", "ae", "ł", "l").Replace(s)

	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if folded, _, err := transform.String(t, s); err == nil {
		s = folded
	}

	s = nonAlnum.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// WithSuffix appends suffix to base, or returns "<prefix>-<suffix>" when base is empty.
func WithSuffix(base, prefix, suffix string) string {
	if base == "" {
		return prefix + "-" + suffix
	}
	return base + "-" + suffix
}
