package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIdentityHash_Deterministic(t *testing.T) {
	a := Identity{
		URL:     "https://example.com/cool-mod",
		ModName: "Cool Mod",
		Debug: IdentityDebug{
			Domain:    "example.com",
			URLSlug:   "cool mod",
			IsBlocked: false,
			// Non-canonical fields must not affect the hash.
			PageTitle: "Cool Mod — by Jane",
			OGSite:    "Example",
		},
	}
	b := Identity{
		URL:     "https://example.com/cool-mod",
		ModName: "Cool Mod",
		Debug: IdentityDebug{
			Domain:  "example.com",
			URLSlug: "cool mod",
		},
	}

	assert.Equal(t, a.Hash(), a.Hash())
	assert.Equal(t, a.Hash(), b.Hash())
}

func TestIdentityHash_SensitiveToCanonicalFields(t *testing.T) {
	base := Identity{URL: "https://example.com/a", ModName: "A", Debug: IdentityDebug{Domain: "example.com", URLSlug: "a"}}

	blocked := base
	blocked.Debug.IsBlocked = true
	assert.NotEqual(t, base.Hash(), blocked.Hash())

	renamed := base
	renamed.ModName = "B"
	assert.NotEqual(t, base.Hash(), renamed.Hash())
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	a := []Candidate{{ID: "x"}, {ID: "y"}, {ID: "z"}}
	b := []Candidate{{ID: "z"}, {ID: "x"}, {ID: "y"}}
	assert.Equal(t, Fingerprint(a), Fingerprint(b))
}

func TestFingerprint_SensitiveToMembership(t *testing.T) {
	a := []Candidate{{ID: "x"}, {ID: "y"}}
	b := []Candidate{{ID: "x"}}
	assert.NotEqual(t, Fingerprint(a), Fingerprint(b))
	assert.NotEqual(t, Fingerprint(a), Fingerprint(nil))
}

func TestIdentityDisplay_Placeholders(t *testing.T) {
	var id Identity
	assert.Equal(t, Placeholder, id.DisplayName())
	assert.Equal(t, Placeholder, id.DisplayCreator())

	id.ModName = "Cool Mod"
	id.Creator = "example.com"
	assert.Equal(t, "Cool Mod", id.DisplayName())
	assert.Equal(t, "example.com", id.DisplayCreator())
}
