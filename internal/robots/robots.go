// Package robots gates page fetches on robots.txt. Rules are cached per
// host; a robots.txt that cannot be fetched means allow-all, so a broken or
// absent robots file never blocks the pipeline.
package robots

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"
	"github.com/temoto/robotstxt"
)

const (
	// DefaultTimeout bounds each robots.txt probe.
	DefaultTimeout = 3 * time.Second
	// DefaultCacheSize is the per-host rules cache bound.
	DefaultCacheSize = 512
	// DefaultCacheTTL is how long cached rules stay valid.
	DefaultCacheTTL = time.Hour

	defaultAgent = "ScholiaBot"

	maxRobotsBytes = 512 << 10
)

// Gate answers "may I fetch this URL" per the target host's robots.txt.
// Safe for concurrent use.
type Gate struct {
	client    *http.Client
	rules     *expirable.LRU[string, *robotstxt.RobotsData]
	userAgent string
	timeout   time.Duration
	log       zerolog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithHTTPClient overrides the HTTP client used for robots.txt probes.
func WithHTTPClient(client *http.Client) Option {
	return func(g *Gate) { g.client = client }
}

// WithUserAgent sets the agent name matched against robots.txt groups.
func WithUserAgent(agent string) Option {
	return func(g *Gate) { g.userAgent = agent }
}

// WithTimeout overrides the probe deadline.
func WithTimeout(d time.Duration) Option {
	return func(g *Gate) { g.timeout = d }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(g *Gate) { g.log = log }
}

// NewGate creates a Gate with an hour-long per-host rules cache.
func NewGate(opts ...Option) *Gate {
	g := &Gate{
		client:    &http.Client{Timeout: DefaultTimeout},
		rules:     expirable.NewLRU[string, *robotstxt.RobotsData](DefaultCacheSize, nil, DefaultCacheTTL),
		userAgent: defaultAgent,
		timeout:   DefaultTimeout,
		log:       zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Allowed reports whether rawURL may be fetched. Malformed URLs and any
// robots.txt retrieval failure allow the fetch.
func (g *Gate) Allowed(ctx context.Context, rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return true
	}

	data := g.rulesFor(ctx, u)
	if data == nil {
		return true
	}

	path := u.EscapedPath()
	if path == "" {
		path = "/"
	}
	if u.RawQuery != "" {
		path += "?" + u.RawQuery
	}
	return data.FindGroup(g.userAgent).Test(path)
}

// rulesFor returns the parsed rules for the URL's origin, fetching and
// caching them on first use. nil means allow-all.
func (g *Gate) rulesFor(ctx context.Context, u *url.URL) *robotstxt.RobotsData {
	origin := u.Scheme + "://" + u.Host
	if data, ok := g.rules.Get(origin); ok {
		return data
	}

	data := g.fetch(ctx, origin)
	g.rules.Add(origin, data)
	return data
}

func (g *Gate) fetch(ctx context.Context, origin string) *robotstxt.RobotsData {
	probeCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(probeCtx, http.MethodGet, origin+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	req.Header.Set("User-Agent", g.userAgent)

	resp, err := g.client.Do(req)
	if err != nil {
		g.log.Debug().Str("origin", origin).Err(err).Msg("robots.txt probe failed, allowing")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRobotsBytes))
	if err != nil {
		return nil
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		return nil
	}
	return data
}
