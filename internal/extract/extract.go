// Package extract turns a fetched HTML page and its URL into a normalized
// mod identity. Extraction is best-effort and pure: missing signals degrade
// to empty fields, nothing here performs I/O or returns an error.
package extract

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/modscout/modscout/internal/model"
)

var (
	titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

	// og:* meta tags appear with property/content in either order.
	ogTitleRe  = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:title["'][^>]*content=["']([^"']*)["']`)
	ogTitleRe2 = regexp.MustCompile(`(?i)<meta[^>]+content=["']([^"']*)["'][^>]*property=["']og:title["']`)
	ogSiteRe   = regexp.MustCompile(`(?i)<meta[^>]+property=["']og:site_name["'][^>]*content=["']([^"']*)["']`)
	ogSiteRe2  = regexp.MustCompile(`(?i)<meta[^>]+content=["']([^"']*)["'][^>]*property=["']og:site_name["']`)
)

// Extract builds an Identity from raw HTML and the source URL.
func Extract(html, rawURL string) model.Identity {
	debug := model.IdentityDebug{
		PageTitle: findGroup(html, titleRe),
		OGTitle:   findMeta(html, ogTitleRe, ogTitleRe2),
		OGSite:    findMeta(html, ogSiteRe, ogSiteRe2),
	}

	if u, err := url.Parse(rawURL); err == nil {
		debug.Domain = strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
		debug.URLSlug = slugFromPath(u.Path)
	}

	debug.IsBlocked = IsBlocked(html, debug.PageTitle)

	identity := model.Identity{
		URL:     rawURL,
		ModName: NormalizeName(preferredName(debug)),
		Creator: resolveCreator(debug),
		Debug:   debug,
	}
	return identity
}

// preferredName picks the best name source. A blocked page's title is
// untrustworthy, so the slug wins over it.
func preferredName(d model.IdentityDebug) string {
	switch {
	case !d.IsBlocked && d.PageTitle != "":
		return d.PageTitle
	case d.OGTitle != "":
		return d.OGTitle
	default:
		return d.URLSlug
	}
}

// resolveCreator returns og:site_name, else the bare domain. A trailing
// "by X" clause is stripped from the mod name and never promoted to creator,
// so matching stays independent of how pages sign their titles.
func resolveCreator(d model.IdentityDebug) string {
	if d.OGSite != "" {
		return d.OGSite
	}
	return d.Domain
}

func findGroup(html string, re *regexp.Regexp) string {
	if m := re.FindStringSubmatch(html); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func findMeta(html string, res ...*regexp.Regexp) string {
	for _, re := range res {
		if v := findGroup(html, re); v != "" {
			return v
		}
	}
	return ""
}

func slugFromPath(path string) string {
	slug := strings.Trim(path, "/")
	slug = strings.NewReplacer("-", " ", "/", " ").Replace(slug)
	return strings.Join(strings.Fields(slug), " ")
}
