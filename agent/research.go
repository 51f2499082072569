// Package agent implements the two conversational surfaces: the iterative
// research agent and the memory-grounded chat agent. Both speak through the
// pooled inference client and persist what they learn in the knowledge store.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/inquiro/inquiro/inference"
	"github.com/inquiro/inquiro/log"
	"github.com/inquiro/inquiro/search"
	"github.com/inquiro/inquiro/store"
)

var (
	// ErrDecompositionFailed indicates the query planning call failed. The
	// run aborts with no partial answer.
	ErrDecompositionFailed = errors.New("query decomposition failed")
	// ErrSynthesisFailed indicates the synthesis call failed. The run
	// aborts with no partial answer.
	ErrSynthesisFailed = errors.New("answer synthesis failed")
)

const (
	decomposeTemperature float32 = 0.3
	relevanceTemperature float32 = 0.2
	synthesisTemperature float32 = 0.4

	// maxSubQueries bounds how many planned sub-queries one iteration runs.
	maxSubQueries = 5
	// resultsPerQuery is the per-sub-query provider page size.
	resultsPerQuery = 3
	// maxSources caps how many sources reach synthesis.
	maxSources = 8
	// relevanceThreshold is the source count that triggers a relevance check.
	relevanceThreshold = 5

	noSourcesAnswer = "Unable to find any sources for this query."
)

// LLM is the completion surface the agents use. *inference.Pool satisfies it.
type LLM interface {
	Chat(ctx context.Context, system, user string, opts ...inference.ChatOption) (string, error)
}

// KnowledgeWriter persists research findings. Each retained source becomes
// both a graph node and an embedded vector record, so later chat turns can
// retrieve it. *store.Facade satisfies it.
type KnowledgeWriter interface {
	WriteNode(ctx context.Context, rec store.Record) error
	WriteVector(ctx context.Context, rec store.Record) error
}

// Query describes one research run. Fields are read-only once submitted.
type Query struct {
	Text           string
	MaxIterations  int
	Provider       string
	Depth          search.Depth
	IncludeDomains []string
}

// Answer is the result of a completed research run. Citation markers [n] in
// the text refer to Sources by position, first-cited-first-listed.
type Answer struct {
	Query   string          `json:"query"`
	Text    string          `json:"answer"`
	Sources []search.Result `json:"sources"`
}

// Researcher runs the decompose/search/verify/synthesize loop.
type Researcher struct {
	llm       LLM
	providers *search.Registry
	knowledge KnowledgeWriter
	logger    log.Logger
}

// ResearcherOption configures the Researcher.
type ResearcherOption func(*Researcher)

// WithResearcherLogger sets the logger.
func WithResearcherLogger(logger log.Logger) ResearcherOption {
	return func(r *Researcher) {
		r.logger = logger
	}
}

// NewResearcher creates a research agent.
func NewResearcher(llm LLM, providers *search.Registry, knowledge KnowledgeWriter, opts ...ResearcherOption) *Researcher {
	r := &Researcher{
		llm:       llm,
		providers: providers,
		knowledge: knowledge,
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Research executes one full run. Zero verified sources is not an error: the
// answer carries a caveat and an empty source list.
func (r *Researcher) Research(ctx context.Context, q Query) (*Answer, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, errors.New("empty query")
	}
	maxIterations := q.MaxIterations
	if maxIterations < 1 {
		maxIterations = 1
	}

	provider, err := r.providers.Get(q.Provider)
	if err != nil {
		return nil, err
	}

	depth := q.Depth
	if depth == "" {
		depth = search.DepthBasic
	}
	if depth == search.DepthAdvanced && !provider.Supports(search.OptionAdvancedDepth) {
		r.logger.Debug("provider %s lacks advanced depth, using basic", provider.Name())
		depth = search.DepthBasic
	}
	domains := search.ExpandDomainClasses(q.IncludeDomains)

	queries, err := r.decompose(ctx, q.Text)
	if err != nil {
		return nil, err
	}

	var sources []search.Result
	seenURLs := make(map[string]bool)
	searched := make(map[string]bool)

	for iteration := 0; iteration < maxIterations; iteration++ {
		var pending []string
		for _, sq := range queries {
			if sq == "" || searched[sq] {
				continue
			}
			searched[sq] = true
			pending = append(pending, sq)
		}
		if len(pending) == 0 {
			break
		}

		found := r.fanOut(ctx, provider, pending, search.Options{
			Depth:          depth,
			MaxResults:     resultsPerQuery,
			IncludeDomains: domains,
		})

		for _, res := range found {
			if strings.TrimSpace(res.Snippet) == "" {
				continue
			}
			key := search.NormalizeURL(res.URL)
			if key == "" || seenURLs[key] {
				continue
			}
			seenURLs[key] = true
			sources = append(sources, res)
		}

		if len(sources) < relevanceThreshold || iteration == maxIterations-1 {
			continue
		}
		relevant, suggestions := r.checkRelevance(ctx, q.Text, sources)
		if relevant {
			break
		}
		queries = suggestions
	}

	if len(sources) == 0 {
		return &Answer{Query: q.Text, Text: noSourcesAnswer, Sources: []search.Result{}}, nil
	}
	if len(sources) > maxSources {
		sources = sources[:maxSources]
	}

	answerText, err := r.synthesize(ctx, q.Text, sources)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSynthesisFailed, err)
	}

	answerText, sources = orderByCitation(answerText, sources)
	r.persist(ctx, q.Text, sources)

	return &Answer{Query: q.Text, Text: answerText, Sources: sources}, nil
}

// fanOut searches all pending sub-queries concurrently. A sub-query whose
// provider call fails is retried once on ErrProviderUnavailable, then
// degraded to zero results.
func (r *Researcher) fanOut(ctx context.Context, provider search.Provider, queries []string, opts search.Options) []search.Result {
	perQuery := make([][]search.Result, len(queries))

	g, gctx := errgroup.WithContext(ctx)
	for i, sq := range queries {
		g.Go(func() error {
			results, err := provider.Search(gctx, sq, opts)
			if errors.Is(err, search.ErrProviderUnavailable) {
				r.logger.Warn("provider %s unavailable for %q, retrying once", provider.Name(), sq)
				results, err = provider.Search(gctx, sq, opts)
			}
			if err != nil {
				r.logger.Warn("sub-query %q degraded to zero results: %v", sq, err)
				return nil
			}
			for j := range results {
				results[j].Query = sq
			}
			perQuery[i] = results
			return nil
		})
	}
	_ = g.Wait()

	// Flatten in sub-query order so source numbering is deterministic.
	var all []search.Result
	for _, results := range perQuery {
		all = append(all, results...)
	}
	return all
}

const decomposePrompt = `You are a research query planner. Given a user query, generate 3-5 focused search queries that will help gather comprehensive information to answer the question.

Consider:
- Breaking down the query into component parts
- Including alternative phrasings or related terms
- If the query mentions a specific person/thing that might be obscure, also search for the general topic
- Generate queries in the same language as the original query

USER QUERY: %s

Output ONLY a JSON array of search query strings, nothing else. Example: ["query 1", "query 2", "query 3"]`

// decompose plans 1..5 sub-queries. An unparseable reply falls back to the
// raw query; a failed call aborts the run.
func (r *Researcher) decompose(ctx context.Context, query string) ([]string, error) {
	content, err := r.llm.Chat(ctx, "", fmt.Sprintf(decomposePrompt, query),
		inference.WithTemperature(decomposeTemperature))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecompositionFailed, err)
	}

	var queries []string
	if err := json.Unmarshal([]byte(inference.ParseJSONBlock(content)), &queries); err != nil {
		r.logger.Debug("decomposition reply not parseable, falling back to raw query")
		return []string{query}, nil
	}

	out := queries[:0]
	for _, sq := range queries {
		if sq = strings.TrimSpace(sq); sq != "" {
			out = append(out, sq)
		}
	}
	if len(out) == 0 {
		return []string{query}, nil
	}
	if len(out) > maxSubQueries {
		out = out[:maxSubQueries]
	}
	return out, nil
}

const relevancePrompt = `You are evaluating search results for relevance.

ORIGINAL QUERY: %s
FOUND SOURCES (titles): %s

Questions:
1. Do these sources likely contain information to answer the query? (yes/no)
2. If no, suggest 2-3 alternative search queries that might find more relevant information.

Output JSON: {"relevant": true/false, "suggestions": ["query1", "query2"]}`

// checkRelevance asks the model whether the accumulated sources can answer
// the query. Failures count as relevant so the run never stalls on this call.
func (r *Researcher) checkRelevance(ctx context.Context, query string, sources []search.Result) (bool, []string) {
	titles := make([]string, 0, relevanceThreshold)
	for _, src := range sources {
		if len(titles) == relevanceThreshold {
			break
		}
		titles = append(titles, truncateRunes(src.Title, 50))
	}

	content, err := r.llm.Chat(ctx, "",
		fmt.Sprintf(relevancePrompt, query, strings.Join(titles, " | ")),
		inference.WithTemperature(relevanceTemperature))
	if err != nil {
		return true, nil
	}

	var verdict struct {
		Relevant    bool     `json:"relevant"`
		Suggestions []string `json:"suggestions"`
	}
	if err := json.Unmarshal([]byte(inference.ParseJSONBlock(content)), &verdict); err != nil {
		return true, nil
	}
	return verdict.Relevant, verdict.Suggestions
}

const synthesisSystemPrompt = "You are a helpful research assistant. Always provide substantive, informative answers based on available sources. Never refuse to answer - find the most relevant information possible."

const synthesisPrompt = `You are a research assistant synthesizing information from multiple sources.

IMPORTANT: You MUST provide a substantive answer based on the sources. If the sources don't directly answer the query, use related information to provide the best possible answer and note what aspects couldn't be fully addressed.

QUERY: %s

SOURCES:
%s

Instructions:
- Synthesize a comprehensive answer from the sources
- Cite sources inline as [n] when using specific information
- If the exact topic isn't covered, provide relevant related information
- Be helpful - find the most relevant angles from what's available

ANSWER:`

// maxSnippetChars bounds how much of each source reaches the context window.
const maxSnippetChars = 2500

func (r *Researcher) synthesize(ctx context.Context, query string, sources []search.Result) (string, error) {
	parts := make([]string, len(sources))
	for i, src := range sources {
		snippet := truncateRunes(src.Snippet, maxSnippetChars)
		parts[i] = fmt.Sprintf("[SOURCE %d] (%s)\nSearch query: %s\n%s\n", i+1, src.URL, src.Query, snippet)
	}

	answer, err := r.llm.Chat(ctx, synthesisSystemPrompt,
		fmt.Sprintf(synthesisPrompt, query, strings.Join(parts, "\n---\n")),
		inference.WithTemperature(synthesisTemperature))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(answer), nil
}

// persist writes each retained source to both store kinds, tagged with the
// originating query: a graph node for the memory graph and an embedded
// vector record so chat retrieval can surface the finding later. Store
// failures are logged, not fatal: the answer is already complete.
func (r *Researcher) persist(ctx context.Context, query string, sources []search.Result) {
	if r.knowledge == nil {
		return
	}
	for _, src := range sources {
		node := store.NewRecord(store.KindGraph, src.Title, src.URL, src.Snippet, query, src.Domain)
		if err := r.knowledge.WriteNode(ctx, node); err != nil {
			r.logger.Warn("failed to persist source %s: %v", src.URL, err)
		}
		vec := store.NewRecord(store.KindVector, src.Title, src.URL, src.Snippet, query, src.Domain)
		if err := r.knowledge.WriteVector(ctx, vec); err != nil {
			r.logger.Warn("failed to embed source %s: %v", src.URL, err)
		}
	}
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

var citationMarker = regexp.MustCompile(`\[(\d+)\]`)

// orderByCitation reorders sources so the first-cited source is listed
// first, rewrites the [n] markers to match, and renumbers source IDs.
// Uncited sources follow the cited ones in their original order.
func orderByCitation(answer string, sources []search.Result) (string, []search.Result) {
	remap := make(map[int]int, len(sources))
	ordered := make([]search.Result, 0, len(sources))

	for _, m := range citationMarker.FindAllStringSubmatch(answer, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil || n < 1 || n > len(sources) {
			continue
		}
		if _, done := remap[n]; done {
			continue
		}
		remap[n] = len(ordered) + 1
		ordered = append(ordered, sources[n-1])
	}
	for i, src := range sources {
		if _, done := remap[i+1]; !done {
			remap[i+1] = len(ordered) + 1
			ordered = append(ordered, src)
		}
	}

	rewritten := citationMarker.ReplaceAllStringFunc(answer, func(marker string) string {
		n, err := strconv.Atoi(strings.Trim(marker, "[]"))
		if err != nil || n < 1 || n > len(sources) {
			return marker
		}
		return fmt.Sprintf("[%d]", remap[n])
	})

	for i := range ordered {
		ordered[i].ID = i + 1
	}
	return rewritten, ordered
}
