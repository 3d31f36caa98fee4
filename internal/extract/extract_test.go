package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract_TitleWithByClause(t *testing.T) {
	html := `<html><head><title>Cool Mod — by Jane</title></head><body>hello</body></html>`
	id := Extract(html, "https://example.com/cool-mod")

	assert.Equal(t, "Cool Mod", id.ModName)
	// Creator falls back to the domain: no og:site_name, and the by-clause
	// never promotes to creator.
	assert.Equal(t, "example.com", id.Creator)
	assert.Equal(t, "cool mod", id.Debug.URLSlug)
	assert.False(t, id.Debug.IsBlocked)
}

func TestExtract_OGFallbacks(t *testing.T) {
	html := `<html><head>
		<meta property="og:title" content="Better Sliders"/>
		<meta property="og:site_name" content="ModSite"/>
	</head><body></body></html>`
	id := Extract(html, "https://www.modsite.net/downloads/better-sliders")

	assert.Equal(t, "Better Sliders", id.ModName)
	assert.Equal(t, "ModSite", id.Creator)
	assert.Equal(t, "modsite.net", id.Debug.Domain)
}

func TestExtract_OGContentFirstAttributeOrder(t *testing.T) {
	html := `<meta content="Reversed Mod" property="og:title">`
	id := Extract(html, "https://example.com/x")
	assert.Equal(t, "Reversed Mod", id.Debug.OGTitle)
}

func TestExtract_BlockedPrefersSlug(t *testing.T) {
	html := `<html><head><title>Just a moment...</title></head><body>Checking your browser</body></html>`
	id := Extract(html, "https://example.com/super-speed-mod")

	assert.True(t, id.Debug.IsBlocked)
	// Blocked pages have untrustworthy titles; the slug wins.
	assert.Equal(t, "Super Speed Mod", id.ModName)
}

func TestExtract_EmptyPageDegradesToSlug(t *testing.T) {
	id := Extract("", "https://example.com/some-great-mod")

	assert.Equal(t, "Some Great Mod", id.ModName)
	assert.Equal(t, "example.com", id.Creator)
	assert.False(t, id.Debug.IsBlocked)
}

func TestExtract_EmptyEverything(t *testing.T) {
	id := Extract("", "https://example.com/")
	assert.Equal(t, "", id.ModName)
	assert.Equal(t, "—", id.DisplayName())
}

func TestExtract_MultiSegmentSlug(t *testing.T) {
	id := Extract("", "https://example.com/mods/gameplay/faster-homework")
	assert.Equal(t, "mods gameplay faster homework", id.Debug.URLSlug)
}

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"collapse whitespace", "Cool   Mod \n Here", "Cool Mod Here"},
		{"trailing by clause", "Cool Mod by JaneDoe", "Cool Mod"},
		{"dash by clause", "Cool Mod — by Jane", "Cool Mod"},
		{"trailing repeated word", "Cool Mod Mod", "Cool Mod"},
		{"titlecase all lowercase", "cool speed mod", "Cool Speed Mod"},
		{"preserve mixed case", "MCCC Command Center", "MCCC Command Center"},
		{"preserve intentional lowercase mix", "iMod Tweaks", "iMod Tweaks"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeName(tt.in))
		})
	}
}
