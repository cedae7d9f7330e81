package live

import (
	"net/url"
	"strings"
)

// scholarlyBoost multiplies the score of results hosted on a known scholarly
// domain.
const scholarlyBoost = 1.5

// scholarlyDomains is the closed set of hosts treated as scholarly sources.
// A candidate host matches on equality or as a subdomain.
var scholarlyDomains = map[string]struct{}{
	"plato.stanford.edu":    {},
	"iep.utm.edu":           {},
	"jstor.org":             {},
	"academia.edu":          {},
	"philpapers.org":        {},
	"scholar.google.com":    {},
	"arxiv.org":             {},
	"doi.org":               {},
	"newadvent.org":         {},
	"corpusthomisticum.org": {},
	"dhspriory.org":         {},
	"aquinas.cc":            {},
	"ccel.org":              {},
	"fordham.edu":           {},
	"orthodoxwiki.org":      {},
	"carm.org":              {},
	"monergism.com":         {},
	"theopedia.com":         {},
	"britannica.com":        {},
	"en.wikipedia.org":      {},
}

// IsScholarlyURL reports whether the URL's host is in the scholarly set,
// exactly or as a subdomain.
func IsScholarlyURL(raw string) bool {
	host := HostOf(raw)
	if host == "" {
		return false
	}
	if _, ok := scholarlyDomains[host]; ok {
		return true
	}
	for domain := range scholarlyDomains {
		if strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

// HostOf returns the lowercased host of a URL with any leading "www."
// stripped, or "" when the URL has no host.
func HostOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
