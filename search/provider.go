// Package search defines the web-search provider adapter layer.
//
// Providers differ in capability: some support an advanced search depth or
// server-side domain filtering, some do not. Capability is explicit through
// Supports, so unsupported options are a defined behavior rather than being
// silently dropped.
package search

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// Depth selects how thorough a provider search should be.
type Depth string

const (
	// DepthBasic is the default, cheapest search mode.
	DepthBasic Depth = "basic"
	// DepthAdvanced requests deeper result content where supported.
	DepthAdvanced Depth = "advanced"
)

// Option identifies a provider capability.
type Option int

const (
	// OptionAdvancedDepth marks support for DepthAdvanced.
	OptionAdvancedDepth Option = iota
	// OptionDomainFilter marks server-side include-domain filtering.
	OptionDomainFilter
)

// ErrProviderUnavailable indicates a transport-level failure talking to the
// provider. Callers retry once, then degrade the sub-query to zero results.
var ErrProviderUnavailable = errors.New("search provider unavailable")

// ErrUnsupportedOption indicates a request used an option the provider does
// not implement.
var ErrUnsupportedOption = errors.New("unsupported search option")

// AuthorityHigh is the coarse trust tag for well-established publishers.
const AuthorityHigh = "HIGH_AUTHORITY"

// Result is one search hit.
type Result struct {
	ID             int    `json:"id"`
	URL            string `json:"url"`
	Title          string `json:"title"`
	Snippet        string `json:"content"`
	Domain         string `json:"domain"`
	AuthorityClass string `json:"authority_class,omitempty"`
	// Query records the sub-query that produced this result.
	Query string `json:"query,omitempty"`
}

// Options configures one provider search call.
type Options struct {
	Depth          Depth
	MaxResults     int
	IncludeDomains []string
}

// Provider is the uniform interface over search backends.
type Provider interface {
	// Name returns the provider identifier used in request payloads.
	Name() string
	// Supports reports whether the provider implements the given option.
	Supports(opt Option) bool
	// Search runs the query and returns deduplicated results, capped at
	// the provider page size.
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
}

// highAuthorityDomains lists publishers treated as HIGH_AUTHORITY sources.
var highAuthorityDomains = []string{
	"wikipedia.org",
	"bbc.com",
	"cnn.com",
	"reuters.com",
	"nytimes.com",
	"washingtonpost.com",
	"theguardian.com",
	"npr.org",
	"bloomberg.com",
	"forbes.com",
	"wsj.com",
	"cnbc.com",
	"gov",
	"edu",
}

// HighAuthorityDomains returns the domain set backing the HIGH_AUTHORITY
// filter class.
func HighAuthorityDomains() []string {
	out := make([]string, len(highAuthorityDomains))
	copy(out, highAuthorityDomains)
	return out
}

// ExpandDomainClasses maps filter classes (e.g. HIGH_AUTHORITY) to concrete
// domain lists; plain domains pass through untouched.
func ExpandDomainClasses(include []string) []string {
	var out []string
	for _, d := range include {
		if strings.EqualFold(d, AuthorityHigh) {
			out = append(out, highAuthorityDomains...)
			continue
		}
		out = append(out, d)
	}
	return out
}

// ClassifyAuthority returns the authority class for a domain, or empty.
func ClassifyAuthority(domain string) string {
	for _, d := range highAuthorityDomains {
		if domain == d || strings.HasSuffix(domain, "."+d) {
			return AuthorityHigh
		}
	}
	return ""
}

// DomainOf extracts the registrable host from a URL, without the www prefix.
func DomainOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}

// NormalizeURL canonicalizes a URL for deduplication: lowercase host, no www
// prefix, no fragment, no trailing slash.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return strings.TrimSpace(rawURL)
	}
	u.Fragment = ""
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	u.Scheme = strings.ToLower(u.Scheme)
	s := u.String()
	return strings.TrimSuffix(s, "/")
}

// Dedup removes results whose normalized URLs repeat, keeping first
// occurrences in order.
func Dedup(results []Result) []Result {
	seen := make(map[string]bool, len(results))
	out := results[:0:0]
	for _, r := range results {
		key := NormalizeURL(r.URL)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// filterByDomains keeps results whose domain matches any entry. Entries match
// by suffix so "gov" admits "data.census.gov".
func filterByDomains(results []Result, domains []string) []Result {
	if len(domains) == 0 {
		return results
	}
	out := results[:0:0]
	for _, r := range results {
		for _, d := range domains {
			if r.Domain == d || strings.HasSuffix(r.Domain, "."+d) || strings.HasSuffix(r.Domain, d) {
				out = append(out, r)
				break
			}
		}
	}
	return out
}

// annotate fills Domain and AuthorityClass on results.
func annotate(results []Result) {
	for i := range results {
		results[i].Domain = DomainOf(results[i].URL)
		results[i].AuthorityClass = ClassifyAuthority(results[i].Domain)
	}
}
