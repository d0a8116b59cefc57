package royale

import (
	"net/url"
	"strings"
)

// NormalizeTag canonicalizes a player or clan tag: trimmed, upper-cased,
// a single leading '#', and the letter O folded to zero (Supercell tags
// never contain O, but humans type it). Empty input stays empty.
func NormalizeTag(tag string) string {
	t := strings.TrimSpace(tag)
	t = strings.TrimPrefix(t, "#")
	t = strings.ToUpper(t)
	t = strings.ReplaceAll(t, "O", "0")
	if t == "" {
		return ""
	}
	return "#" + t
}

// encodeTag makes a normalized tag safe for use as a URL path segment.
func encodeTag(tag string) string {
	return url.PathEscape(NormalizeTag(tag))
}
