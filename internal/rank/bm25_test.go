package rank

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/scholia/internal/index"
	"github.com/normanking/scholia/internal/textproc"
)

// stubIndex gives the tests exact control over corpus statistics.
type stubIndex struct {
	docLens map[string]int
	tfs     map[string]map[string]int
}

func (s *stubIndex) DocumentCount() int { return len(s.docLens) }

func (s *stubIndex) GetDocumentFrequency(term string) int { return len(s.tfs[term]) }

func (s *stubIndex) GetTermFrequency(term, docID string) int { return s.tfs[term][docID] }

func (s *stubIndex) GetDocumentLength(docID string) int { return s.docLens[docID] }

func (s *stubIndex) AverageDocumentLength() float64 {
	if len(s.docLens) == 0 {
		return 0
	}
	total := 0
	for _, n := range s.docLens {
		total += n
	}
	return float64(total) / float64(len(s.docLens))
}

var _ IndexReader = (*index.Index)(nil)

func TestNewBM25ScorerRequiresIndex(t *testing.T) {
	_, err := NewBM25Scorer(nil)
	assert.ErrorIs(t, err, ErrNilIndex)
}

func TestScoreHandComputed(t *testing.T) {
	// N=3, lengths 4/6/2 so avgdl=4. "grace" appears in a (tf=2) and b.
	idx := &stubIndex{
		docLens: map[string]int{"a": 4, "b": 6, "c": 2},
		tfs: map[string]map[string]int{
			"grace": {"a": 2, "b": 1},
		},
	}
	s, err := NewBM25Scorer(idx)
	require.NoError(t, err)

	idf := math.Log((3-2+0.5)/(2+0.5) + 1)                 // ln(1.6)
	tfNorm := 2 * 2.2 / (2 + 1.2*(1-0.75+0.75*4.0/4.0))   // dl == avgdl
	assert.InDelta(t, idf*tfNorm, s.Score([]string{"grace"}, "a"), 1e-9)
}

func TestScoreDuplicateTermsAccumulate(t *testing.T) {
	idx := &stubIndex{
		docLens: map[string]int{"a": 4, "b": 4},
		tfs:     map[string]map[string]int{"faith": {"a": 1}},
	}
	s, err := NewBM25Scorer(idx)
	require.NoError(t, err)

	single := s.Score([]string{"faith"}, "a")
	double := s.Score([]string{"faith", "faith"}, "a")
	assert.InDelta(t, 2*single, double, 1e-9)
}

func TestScoreZeroCases(t *testing.T) {
	s, err := NewBM25Scorer(&stubIndex{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, s.Score([]string{"anything"}, "a"), "empty corpus")

	idx := &stubIndex{
		docLens: map[string]int{"a": 3},
		tfs:     map[string]map[string]int{"grace": {"a": 1}},
	}
	s, err = NewBM25Scorer(idx)
	require.NoError(t, err)

	assert.Equal(t, 0.0, s.Score([]string{"unseen"}, "a"), "term not in corpus")
	assert.Equal(t, 0.0, s.Score([]string{"grace"}, "missing"), "doc without term")
	assert.Equal(t, 0.0, s.Score(nil, "a"), "no query terms")
}

func TestScoreShortDocumentsWinAtEqualFrequency(t *testing.T) {
	// Same tf, different lengths: length normalization must favor the
	// shorter document.
	idx := &stubIndex{
		docLens: map[string]int{"short": 5, "long": 50},
		tfs:     map[string]map[string]int{"aquina": {"short": 2, "long": 2}},
	}
	s, err := NewBM25Scorer(idx)
	require.NoError(t, err)

	assert.Greater(t, s.Score([]string{"aquina"}, "short"), s.Score([]string{"aquina"}, "long"))
}

func TestScoreTermFrequencySaturates(t *testing.T) {
	idx := &stubIndex{
		docLens: map[string]int{"a": 100, "b": 100},
		tfs:     map[string]map[string]int{"law": {"a": 1, "b": 20}},
	}
	s, err := NewBM25Scorer(idx)
	require.NoError(t, err)

	one := s.Score([]string{"law"}, "a")
	twenty := s.Score([]string{"law"}, "b")
	assert.Greater(t, twenty, one)
	assert.Less(t, twenty, 20*one, "tf contribution is sublinear")
}

func TestScoreAgainstRealIndex(t *testing.T) {
	idx, err := index.New(textproc.NewTokenizer())
	require.NoError(t, err)

	idx.AddDocument(index.Document{ID: "a"}, "natural law and the natural order")
	idx.AddDocument(index.Document{ID: "b"}, "divine command theory of ethics")
	idx.AddDocument(index.Document{ID: "c"}, "natural theology overview")

	s, err := NewBM25Scorer(idx)
	require.NoError(t, err)

	terms := textproc.NewTokenizer().Tokenize("natural law")
	a := s.Score(terms, "a")
	b := s.Score(terms, "b")
	c := s.Score(terms, "c")

	assert.Greater(t, a, c, "two matching terms beat one")
	assert.Greater(t, c, b, "one matching term beats none")
	assert.Equal(t, 0.0, b)
}
