// Package model defines the core types shared across the dedup pipeline.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Placeholder is rendered for fields the extractor could not resolve.
const Placeholder = "—"

// IdentityDebug carries the raw extraction signals behind an Identity.
type IdentityDebug struct {
	PageTitle string `json:"page_title"`
	OGTitle   string `json:"og_title"`
	OGSite    string `json:"og_site"`
	URLSlug   string `json:"url_slug"`
	Domain    string `json:"domain"`
	IsBlocked bool   `json:"is_blocked"`
}

// Identity is the normalized (name, creator) record derived from one fetched
// mod page. Immutable once built; empty fields mean "not resolvable", not an
// error.
type Identity struct {
	URL     string        `json:"url"`
	ModName string        `json:"mod_name"`
	Creator string        `json:"creator"`
	Debug   IdentityDebug `json:"debug"`
}

// DisplayName returns the mod name or the placeholder when extraction came
// up empty.
func (id Identity) DisplayName() string {
	if id.ModName == "" {
		return Placeholder
	}
	return id.ModName
}

// DisplayCreator returns the creator or the placeholder.
func (id Identity) DisplayCreator() string {
	if id.Creator == "" {
		return Placeholder
	}
	return id.Creator
}

// Hash fingerprints the canonical subset of Identity fields. The field
// sequence is fixed, so equal canonical inputs always hash equal regardless
// of how the Identity was assembled.
func (id Identity) Hash() string {
	canonical := strings.Join([]string{
		id.URL,
		id.ModName,
		id.Debug.Domain,
		id.Debug.URLSlug,
		fmt.Sprintf("%t", id.Debug.IsBlocked),
	}, "|")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

// Candidate is one known entry from the external database snapshot.
// Read-only to the pipeline.
type Candidate struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	URL   string `json:"url,omitempty"`
}

// Snapshot is a fully materialized copy of the external database, valid for
// the duration of one session. Refreshing it is an explicit operator action.
type Snapshot struct {
	Entries     []Candidate `json:"entries"`
	Fingerprint string      `json:"fingerprint"`
	LoadedAt    time.Time   `json:"loaded_at"`
}

// Fingerprint hashes the sorted set of candidate IDs. Used to detect whether
// the external database changed between sessions.
func Fingerprint(entries []Candidate) string {
	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(strings.Join(ids, "\n")))
	return hex.EncodeToString(sum[:])
}
