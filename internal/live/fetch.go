package live

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/normanking/scholia/internal/extract"
)

const (
	fetchUserAgent = "ScholiaBot/1.0 (+https://github.com/normanking/scholia)"

	// defaultFetchTimeout is the client-level ceiling; the orchestrator
	// applies a tighter per-page deadline through the context.
	defaultFetchTimeout = 15 * time.Second

	maxRedirects = 5
	maxBodyBytes = 2 << 20
)

// FetchedPage is the outcome of fetching one candidate URL. Failures are
// recorded, never raised: a failed page carries Success=false and an
// explanatory Error.
type FetchedPage struct {
	URL     string
	Title   string
	Text    string
	Links   []string
	Success bool
	Error   string
}

// RobotsGate decides whether a URL may be fetched at all.
type RobotsGate interface {
	Allowed(ctx context.Context, rawURL string) bool
}

// Fetcher retrieves candidate pages and extracts their content. Safe for
// concurrent use; one instance is shared process-wide.
type Fetcher struct {
	client *http.Client
	gate   RobotsGate
}

// FetcherOption configures a Fetcher.
type FetcherOption func(*Fetcher)

// WithFetchClient overrides the HTTP client.
func WithFetchClient(client *http.Client) FetcherOption {
	return func(f *Fetcher) { f.client = client }
}

// WithRobotsGate fronts every fetch with a robots.txt check.
func WithRobotsGate(gate RobotsGate) FetcherOption {
	return func(f *Fetcher) { f.gate = gate }
}

// NewFetcher creates a Fetcher with redirect and timeout limits suitable for
// query-time crawling.
func NewFetcher(opts ...FetcherOption) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: defaultFetchTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Fetch retrieves rawURL and extracts its title, text and links. All
// failures, including a robots denial, produce a failed page record.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) FetchedPage {
	page := FetchedPage{URL: rawURL}

	if f.gate != nil && !f.gate.Allowed(ctx, rawURL) {
		page.Error = "disallowed by robots.txt"
		return page
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		page.Error = fmt.Sprintf("invalid url: %v", err)
		return page
	}
	req.Header.Set("User-Agent", fetchUserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.Do(req)
	if err != nil {
		page.Error = fmt.Sprintf("request failed: %v", err)
		return page
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		page.Error = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return page
	}
	if ct := resp.Header.Get("Content-Type"); !isHTMLContentType(ct) {
		page.Error = fmt.Sprintf("unsupported content type %q", ct)
		return page
	}

	extracted, err := extract.Extract(rawURL, io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		page.Error = fmt.Sprintf("parse failed: %v", err)
		return page
	}

	page.Title = extracted.Title
	page.Text = extracted.Text
	page.Links = extracted.Links
	page.Success = true
	return page
}

// isHTMLContentType accepts text/* and anything declaring an html subtype.
// An absent header is treated as HTML, matching common misconfigured hosts.
func isHTMLContentType(ct string) bool {
	if ct == "" {
		return true
	}
	ct = strings.ToLower(ct)
	return strings.HasPrefix(ct, "text/") || strings.Contains(ct, "/html") ||
		strings.Contains(ct, "xhtml")
}
