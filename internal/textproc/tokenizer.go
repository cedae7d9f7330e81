// Package textproc provides the text analysis chain used by every indexing
// and query path: lowercasing, punctuation splitting, stop-word removal, and
// Porter stemming. The same chain must be applied to documents and queries so
// that their terms land in the same space.
package textproc

import (
	"strings"
)

// Tokenizer converts raw text into the ordered sequence of index terms.
type Tokenizer struct {
	stopWords map[string]struct{}
}

// NewTokenizer creates a tokenizer with the default English stop-word set.
func NewTokenizer() *Tokenizer {
	return &Tokenizer{stopWords: defaultStopWords}
}

// Tokenize lowercases the input, splits on any character outside [a-z0-9-],
// drops empty tokens and stop-words, and stems what remains. Token order
// follows the input, so the position of token i in the result is its offset
// in the indexed document.
func (t *Tokenizer) Tokenize(text string) []string {
	if text == "" {
		return nil
	}

	lower := strings.ToLower(text)
	tokens := make([]string, 0, len(lower)/6)

	var sb strings.Builder
	flush := func() {
		if sb.Len() == 0 {
			return
		}
		tok := sb.String()
		sb.Reset()
		if _, stop := t.stopWords[tok]; stop {
			return
		}
		tokens = append(tokens, Stem(tok))
	}

	for _, r := range lower {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			sb.WriteRune(r)
		} else {
			flush()
		}
	}
	flush()

	return tokens
}

// IsStopWord reports whether the lowercased word is in the stop-word set.
func (t *Tokenizer) IsStopWord(word string) bool {
	_, ok := t.stopWords[strings.ToLower(word)]
	return ok
}
