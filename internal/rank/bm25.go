// Package rank scores documents against query terms with Okapi BM25.
package rank

import (
	"errors"
	"math"
)

// Default Okapi parameters: k1 controls term-frequency saturation, b the
// strength of document-length normalization.
const (
	DefaultK1 = 1.2
	DefaultB  = 0.75
)

// IndexReader is the read-only index surface the scorer consumes. Every
// method must be O(1) per call.
type IndexReader interface {
	DocumentCount() int
	GetDocumentFrequency(term string) int
	GetTermFrequency(term, docID string) int
	GetDocumentLength(docID string) int
	AverageDocumentLength() float64
}

// ErrNilIndex is returned when a scorer is constructed without an index.
var ErrNilIndex = errors.New("rank: nil index reader")

// BM25Scorer computes Okapi BM25 scores over an IndexReader.
type BM25Scorer struct {
	idx IndexReader
	k1  float64
	b   float64
}

// NewBM25Scorer creates a scorer with the default k1 and b parameters.
func NewBM25Scorer(idx IndexReader) (*BM25Scorer, error) {
	return NewBM25ScorerWithParams(idx, DefaultK1, DefaultB)
}

// NewBM25ScorerWithParams creates a scorer with explicit parameters.
func NewBM25ScorerWithParams(idx IndexReader, k1, b float64) (*BM25Scorer, error) {
	if idx == nil {
		return nil, ErrNilIndex
	}
	return &BM25Scorer{idx: idx, k1: k1, b: b}, nil
}

// Score sums the BM25 contribution of every query term for docID. Duplicate
// terms in the slice contribute once per occurrence. Terms absent from the
// index, or from the document, contribute zero. IDF may be negative for
// terms present in most documents; such terms pull the score down.
func (s *BM25Scorer) Score(terms []string, docID string) float64 {
	n := s.idx.DocumentCount()
	avgdl := s.idx.AverageDocumentLength()
	if n == 0 || avgdl == 0 {
		return 0
	}

	dl := float64(s.idx.GetDocumentLength(docID))
	score := 0.0

	for _, term := range terms {
		df := s.idx.GetDocumentFrequency(term)
		if df == 0 {
			continue
		}
		tf := float64(s.idx.GetTermFrequency(term, docID))
		if tf == 0 {
			continue
		}

		idf := math.Log((float64(n)-float64(df)+0.5)/(float64(df)+0.5) + 1)
		tfNorm := tf * (s.k1 + 1) / (tf + s.k1*(1-s.b+s.b*dl/avgdl))
		score += idf * tfNorm
	}

	return score
}
