// Package mcpserver exposes the research agent and its supporting search
// tools over the Model Context Protocol, so MCP clients can drive research
// runs and web lookups directly.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/inquiro/inquiro/agent"
	"github.com/inquiro/inquiro/log"
	"github.com/inquiro/inquiro/search"
)

const (
	serverName    = "inquiro-research"
	serverVersion = "1.0.0"

	// defaultSearchResults is the search_web page size when unspecified.
	defaultSearchResults = 5
	// maxPageChars bounds fetched page text handed back to the client.
	maxPageChars = 8000
)

// Researcher runs one research query. *agent.Researcher satisfies it.
type Researcher interface {
	Research(ctx context.Context, q agent.Query) (*agent.Answer, error)
}

// Server hosts the MCP tool handlers.
type Server struct {
	providers  *search.Registry
	researcher Researcher
	client     *http.Client
	logger     log.Logger
}

// Option configures the Server.
type Option func(*Server)

// WithHTTPClient sets the client used by fetch_page_content.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Server) {
		s.client = client
	}
}

// WithServerLogger sets the logger.
func WithServerLogger(logger log.Logger) Option {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a tool server. researcher may be nil, in which case the
// research tool is not registered.
func New(providers *search.Registry, researcher Researcher, opts ...Option) *Server {
	s := &Server{
		providers:  providers,
		researcher: researcher,
		client:     http.DefaultClient,
		logger:     log.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MCPServer builds the protocol server with all tools registered.
func (s *Server) MCPServer() *server.MCPServer {
	srv := server.NewMCPServer(serverName, serverVersion,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	srv.AddTool(mcp.NewTool("search_web",
		mcp.WithDescription("Search the web and return results as JSON, each with title, url and snippet."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query"),
		),
		mcp.WithNumber("num_results",
			mcp.Description("Maximum number of results"),
			mcp.DefaultNumber(defaultSearchResults),
		),
	), s.handleSearchWeb)

	srv.AddTool(mcp.NewTool("fetch_page_content",
		mcp.WithDescription("Fetch a URL and return its cleaned plain-text content."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The page URL to fetch"),
		),
	), s.handleFetchPage)

	if s.researcher != nil {
		srv.AddTool(mcp.NewTool("research",
			mcp.WithDescription("Run a full iterative research query and return the cited answer as JSON."),
			mcp.WithString("query",
				mcp.Required(),
				mcp.Description("The research question"),
			),
			mcp.WithNumber("max_iterations",
				mcp.Description("Maximum refinement iterations"),
				mcp.DefaultNumber(3),
				mcp.Min(1),
			),
			mcp.WithString("provider",
				mcp.Description("Search provider name; empty selects the default"),
			),
		), s.handleResearch)
	}

	return srv
}

// ServeStdio runs the server over stdio until the client disconnects.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.MCPServer())
}

func (s *Server) handleSearchWeb(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid query: %v", err)), nil
	}
	numResults := request.GetInt("num_results", defaultSearchResults)

	provider, err := s.providers.Get("")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	results, err := provider.Search(ctx, query, search.Options{MaxResults: numResults})
	if err != nil {
		s.logger.Warn("search_web %q failed: %v", query, err)
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	type hit struct {
		Title   string `json:"title"`
		URL     string `json:"url"`
		Snippet string `json:"snippet"`
	}
	hits := make([]hit, 0, len(results))
	for _, r := range results {
		hits = append(hits, hit{Title: r.Title, URL: r.URL, Snippet: r.Snippet})
	}
	payload, err := json.Marshal(hits)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode results: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

func (s *Server) handleFetchPage(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	pageURL, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid url: %v", err)), nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid url: %v", err)), nil
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("fetch failed: %v", err)), nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return mcp.NewToolResultError(fmt.Sprintf("fetch failed: status %d", resp.StatusCode)), nil
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("parse page: %v", err)), nil
	}
	return mcp.NewToolResultText(cleanPageText(doc)), nil
}

func (s *Server) handleResearch(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("invalid query: %v", err)), nil
	}

	answer, err := s.researcher.Research(ctx, agent.Query{
		Text:          query,
		MaxIterations: request.GetInt("max_iterations", 3),
		Provider:      request.GetString("provider", ""),
	})
	if err != nil {
		s.logger.Warn("research %q failed: %v", query, err)
		return mcp.NewToolResultError(fmt.Sprintf("research failed: %v", err)), nil
	}
	payload, err := json.Marshal(answer)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode answer: %v", err)), nil
	}
	return mcp.NewToolResultText(string(payload)), nil
}

// cleanPageText strips non-content elements and collapses whitespace,
// bounded for use as LLM context.
func cleanPageText(doc *goquery.Document) string {
	doc.Find("script, style, nav, footer, header, aside").Remove()

	var lines []string
	for _, line := range strings.Split(doc.Text(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	text := strings.Join(lines, "\n")
	if runes := []rune(text); len(runes) > maxPageChars {
		text = string(runes[:maxPageChars])
	}
	return text
}
