// Package discovery obtains candidate URLs for a query by scraping a
// third-party HTML search endpoint. It is deliberately forgiving: any
// network or parse failure ends pagination and returns what was collected.
package discovery

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	// DefaultEndpoint is the HTML-only search frontend.
	DefaultEndpoint = "https://html.duckduckgo.com/html/"
	// DefaultTimeout bounds each discovery HTTP call.
	DefaultTimeout = 15 * time.Second

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

	// maxPages: page 1 via GET, at most one more via the "Next" form POST.
	maxPages = 2
)

// Result is one discovered candidate.
type Result struct {
	URL     string `json:"url"`
	Title   string `json:"title"`
	Snippet string `json:"snippet"`
}

// Scraper queries the discovery endpoint. Safe for concurrent use.
type Scraper struct {
	client   *http.Client
	endpoint string
	limiter  *rate.Limiter
	log      zerolog.Logger
}

// Option configures a Scraper.
type Option func(*Scraper)

// WithEndpoint overrides the search endpoint, mainly for tests.
func WithEndpoint(endpoint string) Option {
	return func(s *Scraper) { s.endpoint = endpoint }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Scraper) { s.client = client }
}

// WithLogger attaches a logger for failure diagnostics.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Scraper) { s.log = log }
}

// NewScraper creates a Scraper with the default endpoint and a politeness
// limit of one request per second across pages.
func NewScraper(opts ...Option) *Scraper {
	s := &Scraper{
		client:   &http.Client{Timeout: DefaultTimeout},
		endpoint: DefaultEndpoint,
		limiter:  rate.NewLimiter(rate.Limit(1), 1),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search returns up to maxResults candidates for query, deduplicated by URL
// and in page order. Failures are logged and truncate the result, never
// propagate.
func (s *Scraper) Search(ctx context.Context, query string, maxResults int) []Result {
	query = strings.TrimSpace(query)
	if query == "" || maxResults <= 0 {
		return nil
	}

	var (
		results []Result
		seen    = make(map[string]struct{})
	)

	req := s.firstPageRequest(ctx, query)
	for page := 0; page < maxPages && req != nil && len(results) < maxResults; page++ {
		if err := s.limiter.Wait(ctx); err != nil {
			break
		}

		doc, err := s.fetchPage(req)
		if err != nil {
			s.log.Debug().Err(err).Int("page", page+1).Msg("discovery page failed")
			break
		}

		for _, r := range parseResults(doc) {
			if len(results) >= maxResults {
				break
			}
			if _, dup := seen[r.URL]; dup {
				continue
			}
			seen[r.URL] = struct{}{}
			results = append(results, r)
		}

		req = s.nextPageRequest(ctx, doc)
	}

	return results
}

func (s *Scraper) firstPageRequest(ctx context.Context, query string) *http.Request {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		s.endpoint+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return nil
	}
	setBrowserHeaders(req)
	return req
}

// nextPageRequest builds the POST for page 2 from the hidden inputs of the
// "Next" form, or nil when no such form exists.
func (s *Scraper) nextPageRequest(ctx context.Context, doc *goquery.Document) *http.Request {
	var form url.Values

	doc.Find("form").EachWithBreak(func(_ int, f *goquery.Selection) bool {
		submit := f.Find("input[type='submit']")
		if !strings.EqualFold(strings.TrimSpace(submit.AttrOr("value", "")), "next") {
			return true
		}
		form = url.Values{}
		f.Find("input[type='hidden']").Each(func(_ int, in *goquery.Selection) {
			if name := in.AttrOr("name", ""); name != "" {
				form.Set(name, in.AttrOr("value", ""))
			}
		})
		return false
	})

	if form == nil {
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil
	}
	setBrowserHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func (s *Scraper) fetchPage(req *http.Request) (*goquery.Document, error) {
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &url.Error{Op: "discovery", URL: req.URL.String(),
			Err: &statusError{code: resp.StatusCode}}
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

// parseResults extracts (url, title, snippet) tuples. Node identification is
// a substring check on the class attribute, with looser fallbacks for markup
// drift.
func parseResults(doc *goquery.Document) []Result {
	nodes := doc.Find("div[class*='result__body']")
	if nodes.Length() == 0 {
		nodes = doc.Find("div[class*='result']")
	}

	var results []Result
	nodes.Each(func(_ int, node *goquery.Selection) {
		anchor := node.Find("a[class*='result__a']").First()
		if anchor.Length() == 0 {
			anchor = node.Find("a[href]").First()
		}
		href, ok := anchor.Attr("href")
		if !ok {
			return
		}

		target := extractRedirectTarget(href)
		if target == "" {
			return
		}

		results = append(results, Result{
			URL:     target,
			Title:   strings.TrimSpace(anchor.Text()),
			Snippet: strings.TrimSpace(node.Find("[class*='result__snippet']").First().Text()),
		})
	})
	return results
}

// extractRedirectTarget unwraps the real destination from the endpoint's
// redirect href, which carries it urlencoded in the uddg parameter. Direct
// http(s) hrefs pass through; anything else is rejected.
func extractRedirectTarget(href string) string {
	href = strings.TrimSpace(href)
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}

	u, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if uddg := u.Query().Get("uddg"); uddg != "" {
		href = uddg
		if u, err = url.Parse(uddg); err != nil {
			return ""
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	return href
}

func setBrowserHeaders(req *http.Request) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
}

type statusError struct {
	code int
}

func (e *statusError) Error() string {
	return "unexpected status " + http.StatusText(e.code)
}
