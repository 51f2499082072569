package api

import (
	"github.com/inquiro/inquiro/agent"
	"github.com/inquiro/inquiro/search"
)

// ResearchRequest is the POST /api/research payload.
type ResearchRequest struct {
	Query          string   `json:"query"`
	MaxIterations  int      `json:"max_iterations"`
	Provider       string   `json:"provider"`
	SearchDepth    string   `json:"search_depth"`
	IncludeDomains []string `json:"include_domains"`
}

// Source is one cited source in a research response. Content is truncated
// for the wire.
type Source struct {
	ID      int    `json:"id"`
	URL     string `json:"url"`
	Title   string `json:"title"`
	Content string `json:"content"`
	Query   string `json:"query"`
}

// ResearchResponse is the POST /api/research reply.
type ResearchResponse struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// ChatRequest is the POST /api/chat payload.
type ChatRequest struct {
	Message   string `json:"message"`
	WebSearch bool   `json:"web_search"`
}

// ChatResponse is the POST /api/chat reply.
type ChatResponse struct {
	Message     string `json:"message"`
	SourcesUsed int    `json:"sources_used"`
}

// UploadResponse is the POST /api/upload reply.
type UploadResponse struct {
	Chunks int `json:"chunks"`
}

// ErrorResponse carries a failure message.
type ErrorResponse struct {
	Error string `json:"error"`
}

// maxSourceContent truncates source content in API responses.
const maxSourceContent = 500

func toSources(results []search.Result) []Source {
	out := make([]Source, len(results))
	for i, r := range results {
		content := truncateRunes(r.Snippet, maxSourceContent)
		title := r.Title
		if title == "" {
			title = "Unknown"
		}
		out[i] = Source{ID: r.ID, URL: r.URL, Title: title, Content: content, Query: r.Query}
	}
	return out
}

// truncateRunes bounds s to at most n runes, never splitting a multi-byte
// character.
func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

func toResearchResponse(answer *agent.Answer) ResearchResponse {
	return ResearchResponse{Answer: answer.Text, Sources: toSources(answer.Sources)}
}
