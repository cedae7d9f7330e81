// Package server exposes the search pipeline over HTTP: a JSON endpoint for
// one-shot queries, a server-sent-events endpoint for the two-phase
// streaming mode, and a health probe. It is a thin adapter; all semantics
// live in the live and engine packages.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/normanking/scholia/internal/cache"
	"github.com/normanking/scholia/internal/engine"
	"github.com/normanking/scholia/internal/models"
)

// DefaultTopN is used when a request carries no limit parameter.
const DefaultTopN = 10

const maxTopN = 100

// LiveSearcher is the live pipeline capability the server needs.
type LiveSearcher interface {
	Search(ctx context.Context, query string, topN int) (models.SearchResult, error)
	SearchStream(ctx context.Context, query string, topN int, emit func(models.StreamedSearchEvent) error) error
}

// Construction errors.
var ErrNilSearcher = errors.New("server: nil live searcher")

// Server routes search requests. The local engine and response cache are
// optional; the live searcher is required.
type Server struct {
	live    LiveSearcher
	local   *engine.Engine
	results *cache.Cache[models.SearchResult]
	topN    int
	log     zerolog.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithLocalEngine enables mode=local queries over a long-lived index.
func WithLocalEngine(e *engine.Engine) Option {
	return func(s *Server) { s.local = e }
}

// WithResultCache memoizes local-mode responses. Live-mode caching belongs
// to the orchestrator.
func WithResultCache(c *cache.Cache[models.SearchResult]) Option {
	return func(s *Server) { s.results = c }
}

// WithDefaultTopN overrides the result count used when the request has none.
func WithDefaultTopN(n int) Option {
	return func(s *Server) { s.topN = n }
}

// WithLogger attaches a logger.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New creates a Server around the live pipeline.
func New(live LiveSearcher, opts ...Option) (*Server, error) {
	if live == nil {
		return nil, ErrNilSearcher
	}
	s := &Server{
		live: live,
		topN: DefaultTopN,
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Handler returns the route table wrapped in request logging.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/search", s.handleSearch)
	mux.HandleFunc("GET /api/search/stream", s.handleSearchStream)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	return s.logRequests(mux)
}

// logRequests tags each request with an id and logs its outcome.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started := time.Now()
		requestID := uuid.NewString()
		w.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(w, r)

		s.log.Debug().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Dur("elapsed", time.Since(started)).
			Msg("request served")
	})
}

// handleSearch serves one-shot queries as JSON.
// GET /api/search?q=...&n=...&mode=live|local
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}
	topN := s.parseTopN(r)
	mode := r.URL.Query().Get("mode")
	if mode == "" {
		mode = "live"
	}

	var (
		result models.SearchResult
		err    error
	)
	switch mode {
	case "live":
		result, err = s.live.Search(r.Context(), query, topN)
	case "local":
		if s.local == nil {
			http.Error(w, "local search is not configured", http.StatusNotImplemented)
			return
		}
		result = s.localSearch(query, topN)
	default:
		http.Error(w, fmt.Sprintf("unknown mode %q", mode), http.StatusBadRequest)
		return
	}
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.log.Error().Err(err).Str("query", query).Msg("search failed")
		http.Error(w, "search failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, result)
}

// localSearch runs an engine query through the response cache.
func (s *Server) localSearch(query string, topN int) models.SearchResult {
	key := cache.Key("local", topN, query)
	if s.results != nil {
		if cached, ok := s.results.Get(key); ok {
			return cached
		}
	}
	result := s.local.Search(query, topN)
	if s.results != nil {
		s.results.Set(key, result)
	}
	return result
}

// handleSearchStream serves the two-phase streaming mode as server-sent
// events. Each event is flushed before the next phase is computed.
// GET /api/search/stream?q=...&n=...
func (s *Server) handleSearchStream(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		http.Error(w, "missing query parameter q", http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	err := s.live.SearchStream(r.Context(), query, s.parseTopN(r), func(ev models.StreamedSearchEvent) error {
		payload, err := json.Marshal(ev.Result)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Phase, payload); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil && !errors.Is(err, context.Canceled) {
		s.log.Error().Err(err).Str("query", query).Msg("stream failed")
	}
}

// handleHealth is the liveness probe.
// GET /healthz
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

func (s *Server) parseTopN(r *http.Request) int {
	raw := r.URL.Query().Get("n")
	if raw == "" {
		return s.topN
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return s.topN
	}
	if n > maxTopN {
		return maxTopN
	}
	return n
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}
