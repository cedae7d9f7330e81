// Package models holds the result types shared by the live pipeline, the
// indexed-search engine and the HTTP surface.
package models

// SourceType says where a result came from.
type SourceType string

const (
	SourceTypeWeb   SourceType = "web"
	SourceTypeLocal SourceType = "local"
)

// Streaming phases, emitted in this order.
const (
	PhaseDiscovery = "discovery"
	PhaseScored    = "scored"
)

// SearchResultItem is one ranked hit. Snippet may contain <mark> highlight
// tags. Domain is the host with any leading "www." stripped.
type SearchResultItem struct {
	Title       string     `json:"title"`
	URL         string     `json:"url,omitempty"`
	Snippet     string     `json:"snippet"`
	Score       float64    `json:"score"`
	SourceType  SourceType `json:"source_type"`
	IsScholarly bool       `json:"is_scholarly"`
	Domain      string     `json:"domain,omitempty"`
}

// SearchResult is a complete ranked response for one query.
type SearchResult struct {
	Query               string             `json:"query"`
	TotalMatches        int                `json:"total_matches"`
	ElapsedMilliseconds int64              `json:"elapsed_ms"`
	Items               []SearchResultItem `json:"items"`
}

// StreamedSearchEvent is one event of the two-phase streaming mode: a
// "discovery" event with zero-scored candidates, then a "scored" event with
// the final ranking.
type StreamedSearchEvent struct {
	Phase  string       `json:"phase"`
	Result SearchResult `json:"result"`
}
