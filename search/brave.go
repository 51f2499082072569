package search

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
)

// Brave searches through the Brave Search REST API. Basic depth only; domain
// filtering happens client-side.
type Brave struct {
	apiKey  string
	baseURL string
	country string
	lang    string
	client  *http.Client
}

var _ Provider = (*Brave)(nil)

// BraveOption configures the Brave provider.
type BraveOption func(*Brave)

// WithBraveBaseURL overrides the API endpoint.
func WithBraveBaseURL(baseURL string) BraveOption {
	return func(b *Brave) {
		b.baseURL = baseURL
	}
}

// WithBraveCountry sets the country code for results (e.g. "US").
func WithBraveCountry(country string) BraveOption {
	return func(b *Brave) {
		b.country = country
	}
}

// WithBraveLang sets the language code for results (e.g. "en").
func WithBraveLang(lang string) BraveOption {
	return func(b *Brave) {
		b.lang = lang
	}
}

// WithBraveHTTPClient sets a custom HTTP client.
func WithBraveHTTPClient(client *http.Client) BraveOption {
	return func(b *Brave) {
		b.client = client
	}
}

// NewBrave creates a Brave provider. If apiKey is empty it is read from the
// BRAVE_API_KEY environment variable.
func NewBrave(apiKey string, opts ...BraveOption) (*Brave, error) {
	if apiKey == "" {
		apiKey = os.Getenv("BRAVE_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("BRAVE_API_KEY not set")
	}

	b := &Brave{
		apiKey:  apiKey,
		baseURL: "https://api.search.brave.com/res/v1/web/search",
		country: "US",
		lang:    "en",
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Name returns the provider identifier.
func (b *Brave) Name() string { return "brave" }

// Supports reports provider capabilities.
func (b *Brave) Supports(opt Option) bool {
	return false
}

type braveResponse struct {
	Web struct {
		Results []struct {
			Title       string `json:"title"`
			URL         string `json:"url"`
			Description string `json:"description"`
		} `json:"results"`
	} `json:"web"`
}

// Search runs the query against the Brave API.
func (b *Brave) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if opts.Depth == DepthAdvanced {
		return nil, fmt.Errorf("%w: brave has no advanced depth", ErrUnsupportedOption)
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("count", fmt.Sprintf("%d", maxResults*2))
	if b.country != "" {
		params.Set("country", b.country)
	}
	if b.lang != "" {
		params.Set("search_lang", b.lang)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Subscription-Token", b.apiKey)

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: brave returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var parsed braveResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProviderUnavailable, err)
	}

	results := make([]Result, 0, len(parsed.Web.Results))
	for _, r := range parsed.Web.Results {
		results = append(results, Result{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: r.Description,
			Query:   query,
		})
	}

	annotate(results)
	results = Dedup(results)
	results = filterByDomains(results, opts.IncludeDomains)
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}
