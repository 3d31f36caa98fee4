package match

import (
	"net/url"
	"strings"
)

// NormalizeURL canonicalizes a URL for equality comparison: lowercase, no
// fragment, no query string, no trailing slash.
func NormalizeURL(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return strings.TrimRight(strings.ToLower(strings.TrimSpace(raw)), "/")
	}
	u.Fragment = ""
	u.RawQuery = ""
	s := strings.ToLower(u.String())
	return strings.TrimRight(s, "/")
}
