package normalize

import (
	"html"
	"net/url"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var stripPolicy = bluemonday.StrictPolicy()

// NormalizeURL makes raw absolute against base.
//
//	""            → base
//	"https://a/b" → unchanged
//	"//a/b"       → base scheme + "//a/b"
//	"/b"          → base scheme + host + "/b"
//	"b"           → base + "/b"
func NormalizeURL(raw, base string) string {
	raw = strings.TrimSpace(raw)
	switch {
	case raw == "":
		return base
	case strings.HasPrefix(raw, "http://"), strings.HasPrefix(raw, "https://"):
		return raw
	case strings.HasPrefix(raw, "//"):
		return schemeOf(base) + ":" + raw
	case strings.HasPrefix(raw, "/"):
		u, err := url.Parse(base)
		if err != nil || u.Host == "" {
			return strings.TrimRight(base, "/") + raw
		}
		return schemeOf(base) + "://" + u.Host + raw
	default:
		return base + "/" + raw
	}
}

func schemeOf(base string) string {
	if u, err := url.Parse(base); err == nil && u.Scheme != "" {
		return u.Scheme
	}
	return "https"
}

// CleanText collapses whitespace runs to single spaces and trims. When
// maxLen > 0 the result is cut to at most maxLen runes and trimmed again.
func CleanText(text string, maxLen int) string {
	cleaned := strings.Join(strings.Fields(text), " ")
	if maxLen > 0 && utf8.RuneCountInString(cleaned) > maxLen {
		cleaned = strings.TrimSpace(string([]rune(cleaned)[:maxLen]))
	}
	return cleaned
}

// StripTags removes all markup from s, decodes entities and cleans the
// resulting text.
func StripTags(s string, maxLen int) string {
	return CleanText(html.UnescapeString(stripPolicy.Sanitize(s)), maxLen)
}

// Fold lower-cases s and strips diacritics so "Licitación" matches
// "licitacion".
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(result)
}

// ContainsAny reports whether the folded text contains any folded keyword.
func ContainsAny(text string, keywords ...string) bool {
	folded := Fold(text)
	for _, k := range keywords {
		if k != "" && strings.Contains(folded, Fold(k)) {
			return true
		}
	}
	return false
}
