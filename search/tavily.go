package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
)

// Tavily searches through the Tavily REST API. It supports both search
// depths and server-side domain filtering.
type Tavily struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

var _ Provider = (*Tavily)(nil)

// TavilyOption configures the Tavily provider.
type TavilyOption func(*Tavily)

// WithTavilyBaseURL overrides the API endpoint.
func WithTavilyBaseURL(baseURL string) TavilyOption {
	return func(t *Tavily) {
		t.baseURL = baseURL
	}
}

// WithTavilyHTTPClient sets a custom HTTP client.
func WithTavilyHTTPClient(client *http.Client) TavilyOption {
	return func(t *Tavily) {
		t.client = client
	}
}

// NewTavily creates a Tavily provider. If apiKey is empty it is read from the
// TAVILY_API_KEY environment variable.
func NewTavily(apiKey string, opts ...TavilyOption) (*Tavily, error) {
	if apiKey == "" {
		apiKey = os.Getenv("TAVILY_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("TAVILY_API_KEY not set")
	}

	t := &Tavily{
		apiKey:  apiKey,
		baseURL: "https://api.tavily.com/search",
		client:  http.DefaultClient,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Name returns the provider identifier.
func (t *Tavily) Name() string { return "tavily" }

// Supports reports provider capabilities. Tavily implements everything the
// adapter layer defines.
func (t *Tavily) Supports(opt Option) bool {
	switch opt {
	case OptionAdvancedDepth, OptionDomainFilter:
		return true
	default:
		return false
	}
}

type tavilyRequest struct {
	APIKey         string   `json:"api_key"`
	Query          string   `json:"query"`
	MaxResults     int      `json:"max_results"`
	SearchDepth    string   `json:"search_depth"`
	IncludeDomains []string `json:"include_domains,omitempty"`
}

type tavilyResponse struct {
	Results []struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Content string `json:"content"`
	} `json:"results"`
}

// Search runs the query against the Tavily API.
func (t *Tavily) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	depth := opts.Depth
	if depth == "" {
		depth = DepthBasic
	}
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 3
	}

	body, err := json.Marshal(tavilyRequest{
		APIKey:         t.apiKey,
		Query:          query,
		MaxResults:     maxResults,
		SearchDepth:    string(depth),
		IncludeDomains: opts.IncludeDomains,
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: tavily returned status %d", ErrProviderUnavailable, resp.StatusCode)
	}

	var parsed tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProviderUnavailable, err)
	}

	results := make([]Result, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		results = append(results, Result{
			URL:     r.URL,
			Title:   r.Title,
			Snippet: r.Content,
			Query:   query,
		})
	}

	annotate(results)
	results = Dedup(results)
	if len(results) > maxResults {
		results = results[:maxResults]
	}
	return results, nil
}
