// Package live implements the query-time meta-search pipeline: discovery,
// canonical deduplication, DNS warm-up, bounded parallel fetching, transient
// indexing, BM25 scoring with title and scholarly-domain boosts, snippet
// generation and two-phase streaming emission. All retrieval state is built
// per request and discarded when the request completes.
package live

import (
	"context"
	"errors"
	"net"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"github.com/normanking/scholia/internal/cache"
	"github.com/normanking/scholia/internal/discovery"
	"github.com/normanking/scholia/internal/index"
	"github.com/normanking/scholia/internal/models"
	"github.com/normanking/scholia/internal/rank"
	"github.com/normanking/scholia/internal/snippet"
)

// Pipeline defaults.
const (
	DefaultMaxDiscoveryResults = 50
	DefaultMaxParallelFetches  = 8
	DefaultPerPageTimeout      = 10 * time.Second

	// titleBoostWeight scales the title-match bonus: a full title match
	// multiplies the score by 1.3.
	titleBoostWeight = 0.3

	cacheMode = "live"
)

// queryBiasMarkers suppress the scholarly query suffix when already present.
var queryBiasMarkers = []string{"scholar", "academic", "journal", "paper", "site:"}

const scholarlySuffix = " scholarly theology philosophy"

// Discoverer produces candidate (url, title, snippet) tuples for a query.
type Discoverer interface {
	Search(ctx context.Context, query string, maxResults int) []discovery.Result
}

// PageFetcher retrieves one candidate page.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) FetchedPage
}

// Tokenizer is the analysis capability shared with the transient index.
type Tokenizer interface {
	Tokenize(text string) []string
}

// Construction errors.
var (
	ErrNilDiscoverer = errors.New("live: nil discoverer")
	ErrNilFetcher    = errors.New("live: nil fetcher")
	ErrNilTokenizer  = errors.New("live: nil tokenizer")
)

// EmitFunc receives one streaming event. It must flush the event to the
// consumer before returning; the pipeline does not start the next phase
// until it does.
type EmitFunc func(models.StreamedSearchEvent) error

// Orchestrator runs live searches. Safe for concurrent use; per-request
// state never escapes a call.
type Orchestrator struct {
	discoverer Discoverer
	fetcher    PageFetcher
	tokenizer  Tokenizer
	snippets   *snippet.Generator
	results    *cache.Cache[models.SearchResult]
	resolver   *net.Resolver
	log        zerolog.Logger

	maxDiscoveryResults int
	maxParallelFetches  int64
	perPageTimeout      time.Duration
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithMaxDiscoveryResults bounds the discovery candidate count.
func WithMaxDiscoveryResults(n int) OrchestratorOption {
	return func(o *Orchestrator) { o.maxDiscoveryResults = n }
}

// WithMaxParallelFetches bounds in-flight page fetches.
func WithMaxParallelFetches(n int) OrchestratorOption {
	return func(o *Orchestrator) { o.maxParallelFetches = int64(n) }
}

// WithPerPageTimeout sets the deadline applied to each page fetch.
func WithPerPageTimeout(d time.Duration) OrchestratorOption {
	return func(o *Orchestrator) { o.perPageTimeout = d }
}

// WithResultCache attaches a response cache consulted by Search.
func WithResultCache(c *cache.Cache[models.SearchResult]) OrchestratorOption {
	return func(o *Orchestrator) { o.results = c }
}

// WithResolver overrides the resolver used for DNS prefetch.
func WithResolver(r *net.Resolver) OrchestratorOption {
	return func(o *Orchestrator) { o.resolver = r }
}

// WithOrchestratorLogger attaches a logger.
func WithOrchestratorLogger(log zerolog.Logger) OrchestratorOption {
	return func(o *Orchestrator) { o.log = log }
}

// NewOrchestrator wires the pipeline. All three collaborators are required.
func NewOrchestrator(d Discoverer, f PageFetcher, tok Tokenizer, opts ...OrchestratorOption) (*Orchestrator, error) {
	if d == nil {
		return nil, ErrNilDiscoverer
	}
	if f == nil {
		return nil, ErrNilFetcher
	}
	if tok == nil {
		return nil, ErrNilTokenizer
	}

	o := &Orchestrator{
		discoverer:          d,
		fetcher:             f,
		tokenizer:           tok,
		snippets:            snippet.NewGenerator(),
		log:                 zerolog.Nop(),
		maxDiscoveryResults: DefaultMaxDiscoveryResults,
		maxParallelFetches:  DefaultMaxParallelFetches,
		perPageTimeout:      DefaultPerPageTimeout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Search runs the full pipeline and returns the ranked result. Only context
// cancellation is surfaced as an error; every per-page failure is absorbed.
func (o *Orchestrator) Search(ctx context.Context, query string, topN int) (models.SearchResult, error) {
	query = strings.TrimSpace(query)

	if o.results != nil {
		if cached, ok := o.results.Get(cache.Key(cacheMode, topN, query)); ok {
			return cached, nil
		}
	}

	result, err := o.run(ctx, query, topN, nil)
	if err != nil {
		return models.SearchResult{}, err
	}

	if o.results != nil && query != "" {
		o.results.Set(cache.Key(cacheMode, topN, query), result)
	}
	return result, nil
}

// SearchStream runs the pipeline in two-phase streaming mode: a "discovery"
// event with zero-scored candidates is emitted as soon as deduplication
// finishes, then a "scored" event with the final ranking. If no page is
// usable the scored event repeats the discovery items.
func (o *Orchestrator) SearchStream(ctx context.Context, query string, topN int, emit func(models.StreamedSearchEvent) error) error {
	query = strings.TrimSpace(query)

	onDiscovery := func(deduped []discovery.Result) error {
		return emit(models.StreamedSearchEvent{
			Phase: models.PhaseDiscovery,
			Result: models.SearchResult{
				Query: query,
				Items: o.discoveryItems(deduped, topN),
			},
		})
	}

	result, err := o.run(ctx, query, topN, onDiscovery)
	if err != nil {
		return err
	}
	return emit(models.StreamedSearchEvent{Phase: models.PhaseScored, Result: result})
}

// run is the shared pipeline body. onDiscovery, when non-nil, is invoked
// with the deduplicated discovery set before the fetch phase starts.
func (o *Orchestrator) run(ctx context.Context, query string, topN int, onDiscovery func([]discovery.Result) error) (models.SearchResult, error) {
	started := time.Now()
	result := models.SearchResult{Query: query, Items: []models.SearchResultItem{}}
	finish := func() models.SearchResult {
		result.ElapsedMilliseconds = time.Since(started).Milliseconds()
		return result
	}

	if query == "" {
		if onDiscovery != nil {
			if err := onDiscovery(nil); err != nil {
				return models.SearchResult{}, err
			}
		}
		return finish(), nil
	}

	discovered := o.discoverer.Search(ctx, biasQuery(query), o.maxDiscoveryResults)
	if err := ctx.Err(); err != nil {
		return models.SearchResult{}, err
	}

	deduped := dedupeByCanonicalURL(discovered)
	if onDiscovery != nil {
		if err := onDiscovery(deduped); err != nil {
			return models.SearchResult{}, err
		}
	}
	if len(deduped) == 0 {
		return finish(), nil
	}

	urls := make([]string, len(deduped))
	for i, r := range deduped {
		urls[i] = r.URL
	}
	prefetchDNS(ctx, o.resolver, urls)

	pages, err := o.fetchAll(ctx, urls)
	if err != nil {
		return models.SearchResult{}, err
	}

	idx, scorer := o.buildIndex(deduped, pages)
	if idx.DocumentCount() == 0 {
		o.log.Debug().Str("query", query).Msg("no usable pages, falling back to discovery results")
		result.Items = o.discoveryItems(deduped, topN)
		result.TotalMatches = len(result.Items)
		return finish(), nil
	}

	ranked := o.score(idx, scorer, query)
	result.TotalMatches = len(ranked)
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}

	byURL := make(map[string]discovery.Result, len(deduped))
	for _, r := range deduped {
		byURL[r.URL] = r
	}

	queryTokens := o.tokenizer.Tokenize(query)
	for _, rd := range ranked {
		doc, _ := idx.GetDocument(rd.docID)
		title := doc.Title
		if title == "" {
			title = byURL[rd.docID].Title
		}
		result.Items = append(result.Items, models.SearchResultItem{
			Title:       title,
			URL:         rd.docID,
			Snippet:     o.snippets.Generate(idx.GetDocumentContent(rd.docID), queryTokens),
			Score:       rd.score,
			SourceType:  models.SourceTypeWeb,
			IsScholarly: IsScholarlyURL(rd.docID),
			Domain:      HostOf(rd.docID),
		})
	}
	return finish(), nil
}

// fetchAll retrieves every URL with bounded parallelism and a per-page
// deadline. The returned slice is index-aligned with urls. Only caller
// cancellation aborts; page timeouts become failed records.
func (o *Orchestrator) fetchAll(ctx context.Context, urls []string) ([]FetchedPage, error) {
	pages := make([]FetchedPage, len(urls))
	sem := semaphore.NewWeighted(o.maxParallelFetches)

	for i, rawURL := range urls {
		if err := sem.Acquire(ctx, 1); err != nil {
			return nil, err
		}
		go func(i int, rawURL string) {
			defer sem.Release(1)
			pageCtx, cancel := context.WithTimeout(ctx, o.perPageTimeout)
			defer cancel()
			pages[i] = o.fetcher.Fetch(pageCtx, rawURL)
			if !pages[i].Success {
				o.log.Debug().Str("url", rawURL).Str("error", pages[i].Error).Msg("page fetch failed")
			}
		}(i, rawURL)
	}

	if err := sem.Acquire(ctx, o.maxParallelFetches); err != nil {
		return nil, err
	}
	return pages, nil
}

// buildIndex ingests every successfully fetched page with non-empty text
// into a fresh transient index, in discovery order so ranking tie-breaks
// are deterministic.
func (o *Orchestrator) buildIndex(deduped []discovery.Result, pages []FetchedPage) (*index.Index, *rank.BM25Scorer) {
	idx, _ := index.New(o.tokenizer)
	for i, page := range pages {
		if !page.Success || strings.TrimSpace(page.Text) == "" {
			continue
		}
		title := page.Title
		if title == "" {
			title = deduped[i].Title
		}
		idx.AddDocument(index.Document{
			ID:            page.URL,
			Title:         title,
			URL:           page.URL,
			ContentType:   index.ContentTypeHTML,
			LastIndexedAt: time.Now(),
		}, page.Text)
	}
	scorer, _ := rank.NewBM25Scorer(idx)
	return idx, scorer
}

type rankedDoc struct {
	docID string
	score float64
}

// score ranks every indexed document: BM25, then a title-overlap boost,
// then the scholarly-domain multiplier. Sort is stable over insertion order.
func (o *Orchestrator) score(idx *index.Index, scorer *rank.BM25Scorer, query string) []rankedDoc {
	tokens := o.tokenizer.Tokenize(query)
	tokenSet := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		tokenSet[t] = struct{}{}
	}

	ranked := make([]rankedDoc, 0, idx.DocumentCount())
	for _, docID := range idx.GetAllDocumentIDs() {
		score := scorer.Score(tokens, docID)

		if len(tokenSet) > 0 {
			doc, _ := idx.GetDocument(docID)
			titleTerms := make(map[string]struct{})
			for _, t := range o.tokenizer.Tokenize(doc.Title) {
				titleTerms[t] = struct{}{}
			}
			matches := 0
			for t := range tokenSet {
				if _, ok := titleTerms[t]; ok {
					matches++
				}
			}
			if matches > 0 {
				score *= 1 + titleBoostWeight*float64(matches)/float64(len(tokenSet))
			}
		}

		if IsScholarlyURL(docID) {
			score *= scholarlyBoost
		}
		ranked = append(ranked, rankedDoc{docID: docID, score: score})
	}

	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })
	return ranked
}

// discoveryItems converts deduped discovery tuples into zero-scored result
// items, capped at topN. Used for the discovery streaming phase and the
// all-fetches-failed fallback.
func (o *Orchestrator) discoveryItems(deduped []discovery.Result, topN int) []models.SearchResultItem {
	items := make([]models.SearchResultItem, 0, len(deduped))
	for _, r := range deduped {
		if topN > 0 && len(items) >= topN {
			break
		}
		items = append(items, models.SearchResultItem{
			Title:       r.Title,
			URL:         r.URL,
			Snippet:     r.Snippet,
			SourceType:  models.SourceTypeWeb,
			IsScholarly: IsScholarlyURL(r.URL),
			Domain:      HostOf(r.URL),
		})
	}
	return items
}

// biasQuery appends a scholarly suffix unless the query already signals a
// scholarly intent or restricts sites itself.
func biasQuery(query string) string {
	lower := strings.ToLower(query)
	for _, marker := range queryBiasMarkers {
		if strings.Contains(lower, marker) {
			return query
		}
	}
	return query + scholarlySuffix
}
