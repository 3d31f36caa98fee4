package extract

import "strings"

// blockedPhrases are markers of anti-bot interstitials and login walls. The
// check is a heuristic: a page that slips through unflagged simply yields a
// low-quality identity downstream.
var blockedPhrases = []string{
	"just a moment",
	"403 forbidden",
	"access denied",
	"cloudflare",
	"checking your browser",
	"patreon login",
}

// IsBlocked reports whether the page looks like a challenge or login wall,
// matching known phrases in either the body or the page title.
func IsBlocked(html, pageTitle string) bool {
	lowerBody := strings.ToLower(html)
	lowerTitle := strings.ToLower(pageTitle)
	for _, phrase := range blockedPhrases {
		if strings.Contains(lowerBody, phrase) || strings.Contains(lowerTitle, phrase) {
			return true
		}
	}
	return false
}
