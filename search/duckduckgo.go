package search

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DuckDuckGo scrapes the DuckDuckGo HTML endpoint. It is keyless, basic-depth
// only, and filters domains client-side after fetching.
type DuckDuckGo struct {
	baseURL string
	client  *http.Client
}

var _ Provider = (*DuckDuckGo)(nil)

// DuckDuckGoOption configures the DuckDuckGo provider.
type DuckDuckGoOption func(*DuckDuckGo)

// WithDuckDuckGoBaseURL overrides the HTML endpoint.
func WithDuckDuckGoBaseURL(baseURL string) DuckDuckGoOption {
	return func(d *DuckDuckGo) {
		d.baseURL = baseURL
	}
}

// WithDuckDuckGoHTTPClient sets a custom HTTP client.
func WithDuckDuckGoHTTPClient(client *http.Client) DuckDuckGoOption {
	return func(d *DuckDuckGo) {
		d.client = client
	}
}

// NewDuckDuckGo creates a DuckDuckGo provider.
func NewDuckDuckGo(opts ...DuckDuckGoOption) *DuckDuckGo {
	d := &DuckDuckGo{
		baseURL: "https://html.duckduckgo.com/html/",
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Name returns the provider identifier.
func (d *DuckDuckGo) Name() string { return "duckduckgo" }

// Supports reports provider capabilities. The HTML endpoint has no advanced
// mode and no server-side domain filter.
func (d *DuckDuckGo) Supports(opt Option) bool {
	return false
}

// Search runs the query. Requesting DepthAdvanced is an error rather than a
// silent downgrade. Domain filtering happens post-hoc: more results are
// fetched than requested so filtering still leaves a usable page.
func (d *DuckDuckGo) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if opts.Depth == DepthAdvanced {
		return nil, fmt.Errorf("%w: duckduckgo has no advanced depth", ErrUnsupportedOption)
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}

	reqURL := d.baseURL + "?q=" + url.QueryEscape(query)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (compatible; inquiro/1.0)")

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: duckduckgo returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: parse response: %v", ErrProviderUnavailable, err)
	}

	var results []Result
	doc.Find(".result").Each(func(_ int, sel *goquery.Selection) {
		link := sel.Find("a.result__a")
		href, _ := link.Attr("href")
		href = resolveRedirect(href)
		if href == "" {
			return
		}
		results = append(results, Result{
			URL:     href,
			Title:   strings.TrimSpace(link.Text()),
			Snippet: strings.TrimSpace(sel.Find(".result__snippet").Text()),
			Query:   query,
		})
	})

	annotate(results)
	results = Dedup(results)
	results = filterByDomains(results, opts.IncludeDomains)
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}

// resolveRedirect unwraps DuckDuckGo's /l/?uddg= redirect links.
func resolveRedirect(href string) string {
	if href == "" {
		return ""
	}
	if strings.HasPrefix(href, "//") {
		href = "https:" + href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
