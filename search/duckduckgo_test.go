package search

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ddgResultHTML = `<html><body>
<div class="result">
  <a class="result__a" href="//duckduckgo.com/l/?uddg=%s">Go Documentation</a>
  <a class="result__snippet">The Go programming language.</a>
</div>
<div class="result">
  <a class="result__a" href="https://en.wikipedia.org/wiki/Go_(programming_language)">Go (programming language)</a>
  <a class="result__snippet">Wikipedia article.</a>
</div>
</body></html>`

func TestDuckDuckGoSearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "golang", r.URL.Query().Get("q"))
		fmt.Fprintf(w, ddgResultHTML, url.QueryEscape("https://go.dev/doc"))
	}))
	defer srv.Close()

	d := NewDuckDuckGo(WithDuckDuckGoBaseURL(srv.URL))
	results, err := d.Search(context.Background(), "golang", Options{MaxResults: 5})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Redirect link unwrapped.
	assert.Equal(t, "https://go.dev/doc", results[0].URL)
	assert.Equal(t, "Go Documentation", results[0].Title)
	assert.Equal(t, "The Go programming language.", results[0].Snippet)
	assert.Equal(t, AuthorityHigh, results[1].AuthorityClass)
}

func TestDuckDuckGoPostHocDomainFilter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, ddgResultHTML, url.QueryEscape("https://go.dev/doc"))
	}))
	defer srv.Close()

	d := NewDuckDuckGo(WithDuckDuckGoBaseURL(srv.URL))
	results, err := d.Search(context.Background(), "golang", Options{
		MaxResults:     5,
		IncludeDomains: []string{"wikipedia.org"},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Contains(t, results[0].URL, "wikipedia.org")
}

func TestDuckDuckGoRejectsAdvancedDepth(t *testing.T) {
	d := NewDuckDuckGo()
	assert.False(t, d.Supports(OptionAdvancedDepth))

	_, err := d.Search(context.Background(), "q", Options{Depth: DepthAdvanced})
	assert.ErrorIs(t, err, ErrUnsupportedOption)
}

func TestDuckDuckGoUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	d := NewDuckDuckGo(WithDuckDuckGoBaseURL(srv.URL))
	_, err := d.Search(context.Background(), "q", Options{})
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestResolveRedirect(t *testing.T) {
	assert.Equal(t, "https://go.dev/doc",
		resolveRedirect("//duckduckgo.com/l/?uddg=https%3A%2F%2Fgo.dev%2Fdoc"))
	assert.Equal(t, "https://direct.example.com",
		resolveRedirect("https://direct.example.com"))
	assert.Equal(t, "", resolveRedirect(""))
}
