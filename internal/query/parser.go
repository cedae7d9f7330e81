// Package query parses user queries into required terms, optional terms and
// exact phrases for the index-backed search path.
package query

import (
	"errors"
	"regexp"
	"strings"
)

// ParsedQuery is the structured form of a user query. All term slices hold
// analyzed (stemmed, stop-word-filtered) tokens in input order.
type ParsedQuery struct {
	RequiredTerms []string
	OptionalTerms []string
	Phrases       [][]string
}

// IsEmpty reports whether parsing produced no usable terms at all.
func (q ParsedQuery) IsEmpty() bool {
	return len(q.RequiredTerms) == 0 && len(q.OptionalTerms) == 0 && len(q.Phrases) == 0
}

// AllTerms returns required, optional and flattened phrase terms in that
// order. Duplicates are retained; the scorer weighs repeats per occurrence.
func (q ParsedQuery) AllTerms() []string {
	out := make([]string, 0, len(q.RequiredTerms)+len(q.OptionalTerms))
	out = append(out, q.RequiredTerms...)
	out = append(out, q.OptionalTerms...)
	for _, phrase := range q.Phrases {
		out = append(out, phrase...)
	}
	return out
}

// Tokenizer is the analysis capability the parser needs.
type Tokenizer interface {
	Tokenize(text string) []string
}

// ErrNilTokenizer is returned when a Parser is constructed without one.
var ErrNilTokenizer = errors.New("query: nil tokenizer")

var phrasePattern = regexp.MustCompile(`"([^"]*)"`)

// Parser turns raw query strings into ParsedQuery values.
type Parser struct {
	tokenizer Tokenizer
}

// NewParser creates a Parser backed by the given tokenizer.
func NewParser(tokenizer Tokenizer) (*Parser, error) {
	if tokenizer == nil {
		return nil, ErrNilTokenizer
	}
	return &Parser{tokenizer: tokenizer}, nil
}

// Parse extracts quoted phrases first, then splits the remainder on
// whitespace. AND is a no-op connective; OR routes the following token's
// terms to the optional set. Everything else is analyzed and required.
func (p *Parser) Parse(raw string) ParsedQuery {
	var parsed ParsedQuery

	remainder := phrasePattern.ReplaceAllStringFunc(raw, func(match string) string {
		interior := strings.Trim(match, `"`)
		if terms := p.tokenizer.Tokenize(interior); len(terms) > 0 {
			parsed.Phrases = append(parsed.Phrases, terms)
		}
		return " "
	})

	optionalNext := false
	for _, token := range strings.Fields(remainder) {
		switch strings.ToUpper(token) {
		case "AND":
			continue
		case "OR":
			optionalNext = true
			continue
		}

		terms := p.tokenizer.Tokenize(token)
		if len(terms) == 0 {
			continue
		}
		if optionalNext {
			parsed.OptionalTerms = append(parsed.OptionalTerms, terms...)
			optionalNext = false
		} else {
			parsed.RequiredTerms = append(parsed.RequiredTerms, terms...)
		}
	}

	return parsed
}
