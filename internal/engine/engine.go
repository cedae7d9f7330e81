// Package engine implements index-backed search over documents ingested
// out-of-band: parse, candidate collection, AND and phrase filtering, BM25
// ranking and snippet assembly. The live pipeline does not use this path;
// it builds a transient index per request instead.
package engine

import (
	"errors"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/normanking/scholia/internal/index"
	"github.com/normanking/scholia/internal/models"
	"github.com/normanking/scholia/internal/query"
	"github.com/normanking/scholia/internal/rank"
	"github.com/normanking/scholia/internal/snippet"
)

// ErrNilIndex is returned when an Engine is constructed without an index.
var ErrNilIndex = errors.New("engine: nil index")

// Tokenizer is the analysis capability the engine shares with its parser.
type Tokenizer interface {
	Tokenize(text string) []string
}

// Engine searches a long-lived index.
type Engine struct {
	idx      *index.Index
	parser   *query.Parser
	scorer   *rank.BM25Scorer
	snippets *snippet.Generator
}

// New creates an Engine over idx, analyzing queries with tokenizer.
func New(idx *index.Index, tokenizer Tokenizer) (*Engine, error) {
	if idx == nil {
		return nil, ErrNilIndex
	}
	parser, err := query.NewParser(tokenizer)
	if err != nil {
		return nil, err
	}
	scorer, err := rank.NewBM25Scorer(idx)
	if err != nil {
		return nil, err
	}
	return &Engine{
		idx:      idx,
		parser:   parser,
		scorer:   scorer,
		snippets: snippet.NewGenerator(),
	}, nil
}

// SearchOption narrows a single Search call.
type SearchOption func(*searchOptions)

type searchOptions struct {
	contentType index.ContentType
}

// WithContentType restricts results to documents of the given source format.
func WithContentType(ct index.ContentType) SearchOption {
	return func(o *searchOptions) { o.contentType = ct }
}

// Search runs a parsed query against the index and returns the topN ranked
// results. Ranking is deterministic: ties keep index insertion order.
func (e *Engine) Search(raw string, topN int, opts ...SearchOption) models.SearchResult {
	started := time.Now()
	result := models.SearchResult{Query: raw, Items: []models.SearchResultItem{}}

	var options searchOptions
	for _, opt := range opts {
		opt(&options)
	}

	parsed := e.parser.Parse(raw)
	if parsed.IsEmpty() {
		result.ElapsedMilliseconds = time.Since(started).Milliseconds()
		return result
	}

	allTerms := parsed.AllTerms()
	candidates := e.collectCandidates(allTerms)

	survivors := candidates[:0]
	for _, docID := range candidates {
		if !e.matchesRequired(parsed.RequiredTerms, docID) {
			continue
		}
		if !e.matchesPhrases(parsed.Phrases, docID) {
			continue
		}
		if options.contentType != "" {
			doc, ok := e.idx.GetDocument(docID)
			if !ok || doc.ContentType != options.contentType {
				continue
			}
		}
		survivors = append(survivors, docID)
	}

	type scored struct {
		docID string
		score float64
	}
	ranked := make([]scored, 0, len(survivors))
	for _, docID := range survivors {
		ranked = append(ranked, scored{docID, e.scorer.Score(allTerms, docID)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	result.TotalMatches = len(ranked)
	if topN > 0 && len(ranked) > topN {
		ranked = ranked[:topN]
	}

	for _, r := range ranked {
		doc, _ := e.idx.GetDocument(r.docID)
		item := models.SearchResultItem{
			Title:      doc.Title,
			URL:        doc.URL,
			Snippet:    e.snippets.Generate(e.idx.GetDocumentContent(r.docID), allTerms),
			Score:      r.score,
			SourceType: models.SourceTypeLocal,
		}
		if doc.URL != "" {
			item.SourceType = models.SourceTypeWeb
			item.Domain = hostOf(doc.URL)
		}
		result.Items = append(result.Items, item)
	}

	result.ElapsedMilliseconds = time.Since(started).Milliseconds()
	return result
}

// collectCandidates returns every document containing at least one query
// term, in index insertion order so downstream tie-breaks are stable.
func (e *Engine) collectCandidates(terms []string) []string {
	matched := make(map[string]struct{})
	for _, term := range terms {
		for docID := range e.idx.GetPostings(term) {
			matched[docID] = struct{}{}
		}
	}
	if len(matched) == 0 {
		return nil
	}

	ordered := make([]string, 0, len(matched))
	for _, docID := range e.idx.GetAllDocumentIDs() {
		if _, ok := matched[docID]; ok {
			ordered = append(ordered, docID)
		}
	}
	return ordered
}

// matchesRequired applies AND semantics: every required term must occur.
func (e *Engine) matchesRequired(required []string, docID string) bool {
	for _, term := range required {
		if e.idx.GetPosting(term, docID) == nil {
			return false
		}
	}
	return true
}

// matchesPhrases requires each phrase's terms at consecutive positions. The
// first term's positions anchor the scan; each later term is an O(1) set
// probe at the expected offset.
func (e *Engine) matchesPhrases(phrases [][]string, docID string) bool {
	for _, phrase := range phrases {
		if !e.matchesPhrase(phrase, docID) {
			return false
		}
	}
	return true
}

func (e *Engine) matchesPhrase(phrase []string, docID string) bool {
	if len(phrase) == 0 {
		return true
	}
	anchor := e.idx.GetPosting(phrase[0], docID)
	if anchor == nil {
		return false
	}

	rest := make([]*index.Posting, len(phrase)-1)
	for i, term := range phrase[1:] {
		p := e.idx.GetPosting(term, docID)
		if p == nil {
			return false
		}
		rest[i] = p
	}

	for start := range anchor.Positions {
		found := true
		for i, p := range rest {
			if _, ok := p.Positions[start+i+1]; !ok {
				found = false
				break
			}
		}
		if found {
			return true
		}
	}
	return false
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Host), "www.")
}
