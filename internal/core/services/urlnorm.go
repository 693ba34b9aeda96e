// Package services holds the core application logic: URL
// normalization, the ingestion pipeline, and the capture router.
package services

import (
	"net/url"
	"regexp"
	"strings"
)

// Source families with dedicated normalization rules. Everything else
// keeps its URL minus query and fragment.
var (
	docCollabSources = map[string]bool{
		"gdocs":   true,
		"gsheets": true,
		"gslides": true,
		"notion":  true,
	}
	searchSources = map[string]bool{
		"google":     true,
		"bing":       true,
		"duckduckgo": true,
		"perplexity": true,
	}
	issueSources = map[string]bool{
		"jira":   true,
		"linear": true,
	}
	chatSources = map[string]bool{
		"slack":    true,
		"teams":    true,
		"discord":  true,
		"messages": true,
	}
)

// docIDRe matches the opaque document id in collab-suite paths like
// /document/d/<id>/edit or /spreadsheets/d/<id>.
var docIDRe = regexp.MustCompile(`/d/([A-Za-z0-9_-]+)`)

// issueKeyRe matches a tracker issue key like PROJ-1234.
var issueKeyRe = regexp.MustCompile(`([A-Z][A-Z0-9]+-\d+)`)

// NormalizeURL reduces a raw URL to its canonical source path. The
// source path is the dedup key: two views of the same document must
// normalize identically, whatever tab or fragment noise the raw URL
// carries.
func NormalizeURL(source, rawURL string) string {
	raw := strings.TrimSpace(rawURL)
	if raw == "" {
		return ""
	}

	// Accessibility-synthesized chat URLs are already canonical.
	if strings.HasPrefix(raw, "accessibility://") || strings.HasPrefix(raw, "ocr://") {
		return raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	switch {
	case docCollabSources[source]:
		if m := docIDRe.FindStringSubmatch(u.Path); m != nil {
			return source + "://" + m[1]
		}
	case searchSources[source]:
		if q := searchQuery(u); q != "" {
			return source + "://search/" + q
		}
	case issueSources[source]:
		if m := issueKeyRe.FindStringSubmatch(u.Path); m != nil {
			return source + "://" + u.Host + ":" + m[1]
		}
	case chatSources[source]:
		return source + "://" + u.Host + ":" + strings.Trim(u.Path, "/")
	}

	u.RawQuery = ""
	u.Fragment = ""
	return u.String()
}

// searchQuery pulls the query text out of the common engine parameter
// names.
func searchQuery(u *url.URL) string {
	values := u.Query()
	for _, key := range []string{"q", "query", "text"} {
		if v := strings.TrimSpace(values.Get(key)); v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}
