package live

import (
	"net/url"
	"strings"

	"github.com/normanking/scholia/internal/discovery"
)

// CanonicalURL normalizes a URL for deduplication: lowercase, force https,
// strip a leading "www.", trim the trailing slash, drop the fragment, keep
// path and query. Unparseable input is returned lowercased as-is so it still
// dedupes against itself.
func CanonicalURL(raw string) string {
	lowered := strings.ToLower(strings.TrimSpace(raw))
	u, err := url.Parse(lowered)
	if err != nil || u.Host == "" {
		return lowered
	}

	u.Scheme = "https"
	u.Host = strings.TrimPrefix(u.Host, "www.")
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.Fragment = ""
	return u.String()
}

// dedupeByCanonicalURL keeps the first result for each canonical URL,
// rewriting each survivor's URL to its canonical form.
func dedupeByCanonicalURL(results []discovery.Result) []discovery.Result {
	seen := make(map[string]struct{}, len(results))
	out := make([]discovery.Result, 0, len(results))
	for _, r := range results {
		canon := CanonicalURL(r.URL)
		if canon == "" {
			continue
		}
		if _, dup := seen[canon]; dup {
			continue
		}
		seen[canon] = struct{}{}
		r.URL = canon
		out = append(out, r)
	}
	return out
}
