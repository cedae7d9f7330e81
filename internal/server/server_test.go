package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/normanking/scholia/internal/engine"
	"github.com/normanking/scholia/internal/index"
	"github.com/normanking/scholia/internal/models"
	"github.com/normanking/scholia/internal/textproc"
)

// fakeLive returns canned responses and records the requested topN.
type fakeLive struct {
	result models.SearchResult
	events []models.StreamedSearchEvent
	topN   int
}

func (f *fakeLive) Search(_ context.Context, query string, topN int) (models.SearchResult, error) {
	f.topN = topN
	result := f.result
	result.Query = query
	return result, nil
}

func (f *fakeLive) SearchStream(_ context.Context, _ string, topN int, emit func(models.StreamedSearchEvent) error) error {
	f.topN = topN
	for _, ev := range f.events {
		if err := emit(ev); err != nil {
			return err
		}
	}
	return nil
}

func newTestServer(t *testing.T, live *fakeLive, opts ...Option) *Server {
	t.Helper()
	s, err := New(live, opts...)
	require.NoError(t, err)
	return s
}

func TestNewRequiresLiveSearcher(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrNilSearcher)
}

func TestSearchEndpoint(t *testing.T) {
	live := &fakeLive{result: models.SearchResult{
		TotalMatches: 1,
		Items: []models.SearchResultItem{
			{Title: "One", URL: "https://jstor.org/x", Score: 2.5, IsScholarly: true},
		},
	}}
	s := newTestServer(t, live)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=grace&n=5", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, 5, live.topN)

	var got models.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "grace", got.Query)
	require.Len(t, got.Items, 1)
	assert.True(t, got.Items[0].IsScholarly)
}

func TestSearchEndpointRequiresQuery(t *testing.T) {
	s := newTestServer(t, &fakeLive{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpointRejectsUnknownMode(t *testing.T) {
	s := newTestServer(t, &fakeLive{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=x&mode=psychic", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSearchEndpointDefaultsTopN(t *testing.T) {
	live := &fakeLive{}
	s := newTestServer(t, live, WithDefaultTopN(7))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=x&n=junk", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 7, live.topN)
}

func TestLocalModeWithoutEngine(t *testing.T) {
	s := newTestServer(t, &fakeLive{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=x&mode=local", nil))

	assert.Equal(t, http.StatusNotImplemented, rec.Code)
}

func TestLocalMode(t *testing.T) {
	tok := textproc.NewTokenizer()
	idx, err := index.New(tok)
	require.NoError(t, err)
	idx.AddDocument(index.Document{ID: "a", Title: "On Grace"}, "grace perfects nature")

	eng, err := engine.New(idx, tok)
	require.NoError(t, err)
	s := newTestServer(t, &fakeLive{}, WithLocalEngine(eng))

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search?q=grace&mode=local", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got models.SearchResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Len(t, got.Items, 1)
	assert.Equal(t, "On Grace", got.Items[0].Title)
}

func TestStreamEndpoint(t *testing.T) {
	live := &fakeLive{events: []models.StreamedSearchEvent{
		{Phase: models.PhaseDiscovery, Result: models.SearchResult{Query: "grace"}},
		{Phase: models.PhaseScored, Result: models.SearchResult{Query: "grace", TotalMatches: 2}},
	}}
	s := newTestServer(t, live)

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search/stream?q=grace", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))

	body := rec.Body.String()
	discoveryAt := strings.Index(body, "event: discovery\n")
	scoredAt := strings.Index(body, "event: scored\n")
	require.GreaterOrEqual(t, discoveryAt, 0)
	require.Greater(t, scoredAt, discoveryAt, "discovery event precedes scored event")

	assert.Equal(t, 2, strings.Count(body, "\n\n"), "each event is terminated by a blank line")
	assert.Contains(t, body, `"total_matches":2`)
}

func TestStreamEndpointRequiresQuery(t *testing.T) {
	s := newTestServer(t, &fakeLive{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/search/stream", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHealthz(t *testing.T) {
	s := newTestServer(t, &fakeLive{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}
