package model

import "time"

// Outcome is the final classification for one identity hash.
type Outcome string

const (
	OutcomeFound    Outcome = "FOUND"
	OutcomeNotFound Outcome = "NOT_FOUND"
)

// Decision is the audit record produced once per unresolved identity hash.
// Immutable after creation; re-classification requires explicit cache
// eviction and recompute.
type Decision struct {
	IdentityHash    string    `json:"identity_hash"`
	Identity        Identity  `json:"identity"`
	CandidatesCount int       `json:"candidates_count"`
	Outcome         Outcome   `json:"decision"`
	Reason          string    `json:"reason"`
	MatchedID       string    `json:"matched_id,omitempty"`
	MatchedURL      string    `json:"matched_url,omitempty"`
	Timestamp       time.Time `json:"timestamp"`
}

// Found reports whether the decision resolved to a known entry.
func (d Decision) Found() bool { return d.Outcome == OutcomeFound }

// Verdict is the structured answer returned by the AI tie-breaker.
type Verdict struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
	MatchedID  string  `json:"matched_id,omitempty"`
	Reason     string  `json:"reason,omitempty"`
}

// NoVerdict is the negative verdict substituted for transport failures and
// unparsable model output. The pipeline degrades to NOT_FOUND, never crashes.
func NoVerdict(reason string) Verdict {
	return Verdict{Match: false, Confidence: 0, Reason: reason}
}

// AuditEntry records one raw exchange with an external service, kept
// regardless of outcome.
type AuditEntry struct {
	ID           string    `json:"id"`
	IdentityHash string    `json:"identity_hash"`
	Stage        string    `json:"stage"`
	Request      string    `json:"request"`
	Response     string    `json:"response"`
	CreatedAt    time.Time `json:"created_at"`
}
