// Package match implements the deterministic candidate scan over the
// external database snapshot.
package match

import (
	"strings"

	"github.com/modscout/modscout/internal/model"
)

// DefaultCap bounds the candidate list when no cap is configured.
const DefaultCap = 35

// Match scans the snapshot in two independent passes (exact normalized URL
// equality, then case-insensitive containment of the mod name in candidate
// titles) and returns the union deduplicated by candidate ID, in snapshot
// order, capped.
//
// The snapshot must be fully materialized: pagination is resolved upstream,
// so a non-empty result is never partial.
func Match(identity model.Identity, entries []model.Candidate, limit int) []model.Candidate {
	if limit <= 0 {
		limit = DefaultCap
	}

	targetURL := NormalizeURL(identity.URL)
	name := strings.ToLower(strings.TrimSpace(identity.ModName))

	seen := make(map[string]bool)
	var out []model.Candidate

	add := func(c model.Candidate) bool {
		if seen[c.ID] {
			return true
		}
		seen[c.ID] = true
		out = append(out, c)
		return len(out) < limit
	}

	// Pass 1: exact URL.
	for _, c := range entries {
		if c.URL != "" && NormalizeURL(c.URL) == targetURL {
			if !add(c) {
				return out
			}
		}
	}

	// Pass 2: name containment. Too-short names would match everything.
	if len(name) >= 3 {
		for _, c := range entries {
			if strings.Contains(strings.ToLower(c.Title), name) {
				if !add(c) {
					return out
				}
			}
		}
	}

	return out
}
