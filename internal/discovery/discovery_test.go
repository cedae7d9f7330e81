package discovery

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageOne = `<html><body>
<div class="result results_links results_links_deep web-result">
  <div class="result__body links_main links_deep">
    <h2 class="result__title">
      <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fplato.stanford.edu%2Fentries%2Faquinas%2F&amp;rut=abc">Aquinas &amp; Natural Law</a>
    </h2>
    <a class="result__snippet" href="#">Thomas Aquinas on the natural law.</a>
  </div>
</div>
<div class="result">
  <div class="result__body">
    <a class="result__a" href="https://example.org/essay">A Direct Result</a>
    <div class="result__snippet">An essay.</div>
  </div>
</div>
<div class="result">
  <div class="result__body">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fplato.stanford.edu%2Fentries%2Faquinas%2F">Duplicate</a>
  </div>
</div>
<div class="result">
  <div class="result__body">
    <a class="result__a" href="javascript:void(0)">Bogus</a>
  </div>
</div>
<div class="nav-link">
  <form action="/html/" method="post">
    <input type="hidden" name="q" value="aquinas">
    <input type="hidden" name="s" value="30">
    <input type="submit" class="btn" value="Next">
  </form>
</div>
</body></html>`

const pageTwo = `<html><body>
<div class="result">
  <div class="result__body">
    <a class="result__a" href="//duckduckgo.com/l/?uddg=https%3A%2F%2Fwww.jstor.org%2Fstable%2F123">A Journal Article</a>
    <div class="result__snippet">From the archive.</div>
  </div>
</div>
</body></html>`

func newTestScraper(handler http.HandlerFunc) (*Scraper, *httptest.Server) {
	srv := httptest.NewServer(handler)
	s := NewScraper(
		WithEndpoint(srv.URL+"/html/"),
		WithHTTPClient(srv.Client()),
	)
	return s, srv
}

func TestSearchParsesAndPaginates(t *testing.T) {
	var postedForm url.Values
	s, srv := newTestScraper(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			assert.Equal(t, "aquinas natural law", r.URL.Query().Get("q"))
			assert.Contains(t, r.Header.Get("User-Agent"), "Mozilla")
			assert.Equal(t, "text/html", r.Header.Get("Accept"))
			w.Write([]byte(pageOne))
		case http.MethodPost:
			require.NoError(t, r.ParseForm())
			postedForm = r.PostForm
			w.Write([]byte(pageTwo))
		}
	})
	defer srv.Close()

	results := s.Search(context.Background(), "aquinas natural law", 10)

	require.Len(t, results, 3)
	assert.Equal(t, "https://plato.stanford.edu/entries/aquinas/", results[0].URL)
	assert.Equal(t, "Aquinas & Natural Law", results[0].Title, "entities decoded")
	assert.Equal(t, "Thomas Aquinas on the natural law.", results[0].Snippet)
	assert.Equal(t, "https://example.org/essay", results[1].URL)
	assert.Equal(t, "https://www.jstor.org/stable/123", results[2].URL)

	assert.Equal(t, "aquinas", postedForm.Get("q"), "hidden inputs carried to page 2")
	assert.Equal(t, "30", postedForm.Get("s"))
}

func TestSearchStopsAtMaxResults(t *testing.T) {
	posted := false
	s, srv := newTestScraper(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			posted = true
		}
		w.Write([]byte(pageOne))
	})
	defer srv.Close()

	results := s.Search(context.Background(), "aquinas", 2)

	assert.Len(t, results, 2)
	assert.False(t, posted, "no second page once maxResults reached")
}

func TestSearchSilentOnServerError(t *testing.T) {
	s, srv := newTestScraper(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer srv.Close()

	assert.Empty(t, s.Search(context.Background(), "aquinas", 10))
}

func TestSearchSilentOnUnreachableEndpoint(t *testing.T) {
	s := NewScraper(WithEndpoint("http://127.0.0.1:1/html/"))
	assert.Empty(t, s.Search(context.Background(), "aquinas", 10))
}

func TestSearchEmptyQuery(t *testing.T) {
	s := NewScraper()
	assert.Nil(t, s.Search(context.Background(), "   ", 10))
	assert.Nil(t, s.Search(context.Background(), "aquinas", 0))
}

func TestExtractRedirectTarget(t *testing.T) {
	tests := []struct {
		name string
		href string
		want string
	}{
		{"uddg wrapped", "//duckduckgo.com/l/?uddg=https%3A%2F%2Fjstor.org%2Fx&rut=z", "https://jstor.org/x"},
		{"direct https", "https://example.org/a", "https://example.org/a"},
		{"direct http", "http://example.org/a", "http://example.org/a"},
		{"javascript scheme", "javascript:void(0)", ""},
		{"relative", "/html/?q=next", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractRedirectTarget(tt.href))
		})
	}
}
