// Package index implements the in-memory inverted index at the heart of both
// the live pipeline and the local search path. Postings carry positions so
// phrase queries and snippet anchoring need no re-tokenization, and a forward
// index (document -> terms) makes removal proportional to the document's own
// vocabulary instead of the whole term space.
package index

import (
	"errors"
	"sync"
	"time"
)

// ContentType identifies the source format of an indexed document.
type ContentType string

const (
	ContentTypeHTML     ContentType = "html"
	ContentTypeMarkdown ContentType = "markdown"
	ContentTypePDF      ContentType = "pdf"
)

// Document is the metadata record for one indexed document. The ID is unique
// within the index; for web pages it is the canonicalized URL. Records are
// replaced atomically on reindex, never mutated in place.
type Document struct {
	ID            string      `json:"id"`
	Title         string      `json:"title"`
	URL           string      `json:"url,omitempty"`
	SourcePath    string      `json:"source_path,omitempty"`
	ContentType   ContentType `json:"content_type"`
	LastIndexedAt time.Time   `json:"last_indexed_at"`
}

// Posting records one (term, document) pair. Positions is a set of token
// offsets so phrase checks are O(1) per lookup. TermFrequency always equals
// len(Positions). A published posting is never mutated; reindexing replaces
// it wholesale.
type Posting struct {
	DocID         string
	TermFrequency int
	Positions     map[int]struct{}
}

// Tokenizer is the capability the index needs from the analysis chain.
type Tokenizer interface {
	Tokenize(text string) []string
}

// ErrNilTokenizer is returned when an Index is constructed without one.
var ErrNilTokenizer = errors.New("index: nil tokenizer")

// Index is a thread-safe inverted index. Mutations serialize on the write
// lock; readers take the read lock and see consistent snapshots of each
// sub-structure.
type Index struct {
	mu sync.RWMutex

	postings    map[string]map[string]*Posting
	docs        map[string]Document
	docLengths  map[string]int
	docContents map[string]string
	docTerms    map[string]map[string]struct{}
	docOrder    []string

	avgDocLength float64
	avgValid     bool

	tokenizer Tokenizer
}

// New creates an empty index using the given tokenizer for ingestion.
func New(tokenizer Tokenizer) (*Index, error) {
	if tokenizer == nil {
		return nil, ErrNilTokenizer
	}
	idx := &Index{tokenizer: tokenizer}
	idx.reset()
	return idx, nil
}

func (idx *Index) reset() {
	idx.postings = make(map[string]map[string]*Posting)
	idx.docs = make(map[string]Document)
	idx.docLengths = make(map[string]int)
	idx.docContents = make(map[string]string)
	idx.docTerms = make(map[string]map[string]struct{})
	idx.docOrder = nil
	idx.avgDocLength = 0
	idx.avgValid = false
}

// AddDocument tokenizes content and indexes it under meta.ID. If the ID is
// already present its old postings are removed first, so re-adding the same
// document is idempotent. The average document length cache is invalidated.
func (idx *Index) AddDocument(meta Document, content string) {
	tokens := idx.tokenizer.Tokenize(content)

	// Build the complete posting set outside the lock; published postings
	// are immutable so readers can never observe a half-built one.
	docPostings := make(map[string]*Posting)
	for pos, term := range tokens {
		p, ok := docPostings[term]
		if !ok {
			p = &Posting{DocID: meta.ID, Positions: make(map[int]struct{})}
			docPostings[term] = p
		}
		if _, dup := p.Positions[pos]; !dup {
			p.Positions[pos] = struct{}{}
			p.TermFrequency++
		}
	}

	terms := make(map[string]struct{}, len(docPostings))
	for term := range docPostings {
		terms[term] = struct{}{}
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if _, exists := idx.docs[meta.ID]; exists {
		idx.removeLocked(meta.ID)
	}

	for term, p := range docPostings {
		byDoc, ok := idx.postings[term]
		if !ok {
			byDoc = make(map[string]*Posting)
			idx.postings[term] = byDoc
		}
		byDoc[meta.ID] = p
	}

	idx.docs[meta.ID] = meta
	idx.docLengths[meta.ID] = len(tokens)
	idx.docContents[meta.ID] = content
	idx.docTerms[meta.ID] = terms
	idx.docOrder = append(idx.docOrder, meta.ID)
	idx.avgValid = false
}

// RemoveDocument deletes a document and all its postings. The forward index
// keeps this proportional to the terms in the document.
func (idx *Index) RemoveDocument(docID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.removeLocked(docID)
}

func (idx *Index) removeLocked(docID string) {
	terms, exists := idx.docTerms[docID]
	if !exists {
		return
	}

	for term := range terms {
		byDoc := idx.postings[term]
		delete(byDoc, docID)
		if len(byDoc) == 0 {
			delete(idx.postings, term)
		}
	}

	delete(idx.docs, docID)
	delete(idx.docLengths, docID)
	delete(idx.docContents, docID)
	delete(idx.docTerms, docID)
	for i, id := range idx.docOrder {
		if id == docID {
			idx.docOrder = append(idx.docOrder[:i], idx.docOrder[i+1:]...)
			break
		}
	}
	idx.avgValid = false
}

// Clear resets the index to its empty state.
func (idx *Index) Clear() {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.reset()
}

// GetPostings returns the posting map for a term, keyed by document ID.
// The postings themselves are shared immutable values; the map is a copy.
func (idx *Index) GetPostings(term string) map[string]*Posting {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	byDoc, ok := idx.postings[term]
	if !ok {
		return nil
	}
	out := make(map[string]*Posting, len(byDoc))
	for id, p := range byDoc {
		out[id] = p
	}
	return out
}

// GetPosting returns the posting for (term, docID), or nil. O(1).
func (idx *Index) GetPosting(term, docID string) *Posting {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.postings[term][docID]
}

// GetTermFrequency returns how often term occurs in docID, or 0. O(1).
func (idx *Index) GetTermFrequency(term, docID string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	if p := idx.postings[term][docID]; p != nil {
		return p.TermFrequency
	}
	return 0
}

// GetDocumentFrequency returns the number of documents containing term.
func (idx *Index) GetDocumentFrequency(term string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.postings[term])
}

// GetDocument returns the metadata for docID.
func (idx *Index) GetDocument(docID string) (Document, bool) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	doc, ok := idx.docs[docID]
	return doc, ok
}

// GetDocumentLength returns the token count of docID, or 0.
func (idx *Index) GetDocumentLength(docID string) int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.docLengths[docID]
}

// GetDocumentContent returns the original ingested text of docID.
func (idx *Index) GetDocumentContent(docID string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.docContents[docID]
}

// GetDocumentTerms returns the forward-index term set for docID.
func (idx *Index) GetDocumentTerms(docID string) map[string]struct{} {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	terms, ok := idx.docTerms[docID]
	if !ok {
		return nil
	}
	out := make(map[string]struct{}, len(terms))
	for t := range terms {
		out[t] = struct{}{}
	}
	return out
}

// GetAllDocumentIDs returns every document ID in insertion order, which is
// what makes tie-broken rankings deterministic.
func (idx *Index) GetAllDocumentIDs() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	out := make([]string, len(idx.docOrder))
	copy(out, idx.docOrder)
	return out
}

// DocumentCount returns the number of indexed documents.
func (idx *Index) DocumentCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.docs)
}

// TermCount returns the number of distinct terms in the index.
func (idx *Index) TermCount() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.postings)
}

// AverageDocumentLength returns the mean token count across documents,
// 0 when the index is empty. The value is cached and recomputed lazily on
// the first read after a mutation.
func (idx *Index) AverageDocumentLength() float64 {
	idx.mu.RLock()
	if idx.avgValid {
		avg := idx.avgDocLength
		idx.mu.RUnlock()
		return avg
	}
	idx.mu.RUnlock()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	if idx.avgValid {
		return idx.avgDocLength
	}
	if len(idx.docLengths) == 0 {
		idx.avgDocLength = 0
	} else {
		total := 0
		for _, n := range idx.docLengths {
			total += n
		}
		idx.avgDocLength = float64(total) / float64(len(idx.docLengths))
	}
	idx.avgValid = true
	return idx.avgDocLength
}
