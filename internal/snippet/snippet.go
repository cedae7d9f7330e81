// Package snippet extracts the most query-relevant excerpt from a document
// and highlights the matched terms for display.
package snippet

import (
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode"
)

const (
	// DefaultWindowSize is the target excerpt length in bytes.
	DefaultWindowSize = 280
	// DefaultStepSize is the window slide increment.
	DefaultStepSize = 40
	// DefaultTimeout bounds the whole generation pass; on expiry the best
	// window found so far is used.
	DefaultTimeout = 100 * time.Millisecond

	// boundarySnap is how far a window edge may move to land on whitespace.
	boundarySnap = 30

	ellipsis = "…"
)

// Generator produces highlighted excerpts. The zero value is not usable;
// construct with NewGenerator.
type Generator struct {
	windowSize int
	stepSize   int
	timeout    time.Duration
}

// Option configures a Generator.
type Option func(*Generator)

// WithWindowSize overrides the excerpt length.
func WithWindowSize(n int) Option { return func(g *Generator) { g.windowSize = n } }

// WithStepSize overrides the slide increment.
func WithStepSize(n int) Option { return func(g *Generator) { g.stepSize = n } }

// WithTimeout overrides the generation deadline.
func WithTimeout(d time.Duration) Option { return func(g *Generator) { g.timeout = d } }

// NewGenerator creates a Generator with the default window geometry.
func NewGenerator(opts ...Option) *Generator {
	g := &Generator{
		windowSize: DefaultWindowSize,
		stepSize:   DefaultStepSize,
		timeout:    DefaultTimeout,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns the best excerpt of text for the given terms, with every
// term occurrence wrapped in <mark> tags. Terms are matched as word-prefixes,
// case-insensitively, so stemmed terms still hit their surface forms. When no
// term occurs in the text the leading window is returned unhighlighted.
func (g *Generator) Generate(text string, terms []string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return ""
	}

	pattern := termsPattern(terms)
	if pattern == nil || len(text) <= g.windowSize {
		start, end := 0, len(text)
		if end > g.windowSize {
			end = g.snapEnd(text, g.windowSize)
		}
		return g.decorate(text, start, end, pattern)
	}

	// Collect the match start offsets of each distinct term once; window
	// scoring then reduces to two binary searches per term.
	matches := termMatches(text, terms)
	if len(matches) == 0 {
		end := g.snapEnd(text, g.windowSize)
		return g.decorate(text, 0, end, nil)
	}

	deadline := time.Now().Add(g.timeout)
	bestStart, bestScore := 0, -1

	for start := 0; start <= len(text)-g.windowSize; start += g.stepSize {
		if score := windowScore(matches, start, start+g.windowSize); score > bestScore {
			bestScore = score
			bestStart = start
		}
		if time.Now().After(deadline) {
			break
		}
	}

	start := g.snapStart(text, bestStart)
	end := g.snapEnd(text, start+g.windowSize)
	return g.decorate(text, start, end, pattern)
}

// termsPattern builds a single case-insensitive word-prefix alternation for
// all terms, or nil when no term survives sanitization.
func termsPattern(terms []string) *regexp.Regexp {
	quoted := make([]string, 0, len(terms))
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		quoted = append(quoted, regexp.QuoteMeta(t))
	}
	if len(quoted) == 0 {
		return nil
	}
	// Longer alternatives first so "theological" is not eaten by "theo".
	sort.Slice(quoted, func(i, j int) bool { return len(quoted[i]) > len(quoted[j]) })
	return regexp.MustCompile(`(?i)\b(` + strings.Join(quoted, "|") + `)\w*`)
}

// termMatches returns, per distinct term, the sorted byte offsets at which it
// matches text as a word-prefix.
func termMatches(text string, terms []string) map[string][]int {
	out := make(map[string][]int)
	seen := make(map[string]struct{}, len(terms))
	for _, t := range terms {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}

		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(t) + `\w*`)
		for _, loc := range re.FindAllStringIndex(text, -1) {
			out[t] = append(out[t], loc[0])
		}
	}
	return out
}

// windowScore weights distinct-term coverage far above raw hit count: a
// window containing every query term beats any repetition of a single one.
func windowScore(matches map[string][]int, start, end int) int {
	distinct, hits := 0, 0
	for _, offsets := range matches {
		lo := sort.SearchInts(offsets, start)
		hi := sort.SearchInts(offsets, end)
		if hi > lo {
			distinct++
			hits += hi - lo
		}
	}
	return 1000*distinct + hits
}

// snapStart moves start forward to the nearest word boundary, at most
// boundarySnap bytes away.
func (g *Generator) snapStart(text string, start int) int {
	if start == 0 || isBoundary(text[start-1]) {
		return start
	}
	limit := start + boundarySnap
	if limit > len(text) {
		limit = len(text)
	}
	for i := start; i < limit; i++ {
		if isBoundary(text[i]) {
			return i + 1
		}
	}
	return start
}

// snapEnd moves end backward to the nearest word boundary, at most
// boundarySnap bytes away.
func (g *Generator) snapEnd(text string, end int) int {
	if end >= len(text) {
		return len(text)
	}
	if isBoundary(text[end]) {
		return end
	}
	limit := end - boundarySnap
	if limit < 0 {
		limit = 0
	}
	for i := end; i > limit; i-- {
		if isBoundary(text[i-1]) {
			return i - 1
		}
	}
	return end
}

func isBoundary(b byte) bool {
	return unicode.IsSpace(rune(b))
}

// decorate cuts text to [start, end), highlights matches and adds ellipses
// on truncated edges.
func (g *Generator) decorate(text string, start, end int, pattern *regexp.Regexp) string {
	excerpt := strings.TrimSpace(text[start:end])
	if pattern != nil {
		excerpt = pattern.ReplaceAllString(excerpt, "<mark>$0</mark>")
	}

	var sb strings.Builder
	if start > 0 {
		sb.WriteString(ellipsis)
	}
	sb.WriteString(excerpt)
	if end < len(text) {
		sb.WriteString(ellipsis)
	}
	return sb.String()
}
