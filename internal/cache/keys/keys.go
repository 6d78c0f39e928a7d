// Package keys builds the Redis keys shared by every dashboard replica.
package keys

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
)

// Geocode keys a reverse lookup by upstream endpoint, response language and H3 cell.
// The endpoint is hashed so replicas pointed at different geocoders never share entries.
func Geocode(endpoint, lang string, res int, cell string) string {
	ep := strings.TrimRight(strings.TrimSpace(endpoint), "/")
	return fmt.Sprintf("geocode:u=%08x:%s:%d:%s",
		uint32(xxhash.Sum64String(ep)),
		sanitizeForKey(strings.ToLower(strings.TrimSpace(lang))),
		res,
		sanitizeForKey(strings.TrimSpace(cell)),
	)
}

func sanitizeForKey(s string) string {
	if s == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(s))

	var prev rune
	for _, r := range s {
		out := rune(0)
		switch {
		case unicode.IsSpace(r):
			out = '_'
		case isAlphaNum(r) || r == '_' || r == '-':
			out = r
		default:
			// colons and non-ASCII would break the key layout
			out = '-'
		}
		if (out == '_' || out == '-') && out == prev {
			continue
		}
		b.WriteRune(out)
		prev = out
	}
	return b.String()
}

func isAlphaNum(r rune) bool {
	return (r >= 'a' && r <= 'z') ||
		(r >= 'A' && r <= 'Z') ||
		(r >= '0' && r <= '9')
}
