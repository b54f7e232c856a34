package normalize

import (
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"

	"jobtracker/ingestion-service/internal/model"
)

// IdentityHash is a rolling h = h*31 + unit over the UTF-16 code units of
// seed, wrapped to 32 bits, rendered as the base-36 absolute value.
// It is deterministic and order sensitive but not collision free: the
// (source, external id) unique key in the store is the real safety net.
func IdentityHash(seed string) string {
	var h int32
	for _, unit := range utf16.Encode([]rune(seed)) {
		h = h*31 + int32(unit)
	}
	v := int64(h)
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 36)
}

// ExternalID builds "tag-<hash>" from the stable fragments of a listing.
func ExternalID(tag string, parts ...string) string {
	return tag + "-" + IdentityHash(strings.Join(parts, "|"))
}

// MinTitleLen is the shortest title a candidate may carry.
const MinTitleLen = 3

// IsValidCandidate reports whether c has an identifier, a title of at least
// MinTitleLen characters and a URL.
func IsValidCandidate(c model.Candidate) bool {
	if strings.TrimSpace(c.ExternalID) == "" || strings.TrimSpace(c.URL) == "" {
		return false
	}
	return utf8.RuneCountInString(strings.TrimSpace(c.Title)) >= MinTitleLen
}
