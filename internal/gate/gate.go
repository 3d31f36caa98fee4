// Package gate decides whether the AI fallback is worth its cost for a given
// identity. Deterministic candidates always win; otherwise only blocked pages
// and poor-quality slugs justify a model call.
package gate

import (
	"strings"

	"github.com/modscout/modscout/internal/model"
)

// Policy holds the gate thresholds. There is no single right cutoff for what
// counts as a poor slug, so they are configuration, not constants.
type Policy struct {
	MinSlugTokens int
	MinSlugChars  int
}

// DefaultPolicy returns the default thresholds.
func DefaultPolicy() Policy {
	return Policy{MinSlugTokens: 2, MinSlugChars: 12}
}

// ShouldInvoke reports whether the AI tie-breaker must run. Any deterministic
// candidate short-circuits the gate: the model is never consulted when the
// matcher already has an answer.
func ShouldInvoke(debug model.IdentityDebug, candidateCount int, p Policy) bool {
	if candidateCount > 0 {
		return false
	}
	if debug.IsBlocked {
		return true
	}
	return poorSlug(debug.URLSlug, p)
}

func poorSlug(slug string, p Policy) bool {
	tokens := strings.Fields(slug)
	return len(tokens) < p.MinSlugTokens || len(slug) < p.MinSlugChars
}
