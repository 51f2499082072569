// Package memgraph builds the visual memory graph: recent knowledge records
// as nodes, chain-linked within groups that share an originating query or a
// source domain.
package memgraph

import (
	"context"
	"fmt"

	"github.com/inquiro/inquiro/store"
)

// Edge types.
const (
	EdgeSameQuery  = "same_query"
	EdgeSameDomain = "same_domain"
)

// Node group values: 1 for graph-engine records, 2 for vector-engine records.
const (
	GroupGraph  = 1
	GroupVector = 2
)

// DefaultNodeLimit bounds the view size when the caller passes no limit.
const DefaultNodeLimit = 100

// maxNodeContent truncates node content for the view payload.
const maxNodeContent = 300

// Node is one record in the view.
type Node struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Content string `json:"content"`
	Group   int    `json:"group"`
}

// Edge links two nodes that share a query or a domain.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Type   string `json:"type"`
}

// View is the complete graph payload. Every edge endpoint is guaranteed to
// be present in Nodes.
type View struct {
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"links"`
}

// RecentLister supplies the records the view is built from. *store.Facade
// satisfies it.
type RecentLister interface {
	ListRecent(ctx context.Context, limit int) ([]store.Record, error)
}

// Builder constructs memory graph views.
type Builder struct {
	recent RecentLister
}

// NewBuilder creates a view builder over the given store.
func NewBuilder(recent RecentLister) *Builder {
	return &Builder{recent: recent}
}

// Build assembles a view over at most nodeLimit recent records. A limit of
// zero or less uses DefaultNodeLimit. Groups with a single member produce no
// edges; a group of n members produces exactly n-1 chain edges.
func (b *Builder) Build(ctx context.Context, nodeLimit int) (*View, error) {
	if nodeLimit <= 0 {
		nodeLimit = DefaultNodeLimit
	}

	records, err := b.recent.ListRecent(ctx, nodeLimit)
	if err != nil {
		return nil, fmt.Errorf("list recent records: %w", err)
	}

	view := &View{Nodes: make([]Node, 0, len(records)), Edges: []Edge{}}
	byQuery := newGrouping()
	byDomain := newGrouping()

	for _, rec := range records {
		content := truncateRunes(rec.Content, maxNodeContent)
		group := GroupGraph
		if rec.Kind == store.KindVector {
			group = GroupVector
		}
		view.Nodes = append(view.Nodes, Node{
			ID:      rec.ID,
			Name:    rec.Name,
			Content: content,
			Group:   group,
		})

		byQuery.add(rec.OriginQuery, rec.ID)
		byDomain.add(rec.Domain, rec.ID)
	}

	view.Edges = append(view.Edges, byQuery.chainEdges(EdgeSameQuery)...)
	view.Edges = append(view.Edges, byDomain.chainEdges(EdgeSameDomain)...)
	return view, nil
}

// grouping collects node IDs per key, remembering key insertion order so the
// emitted edges are stable across builds.
type grouping struct {
	keys    []string
	members map[string][]string
}

func newGrouping() *grouping {
	return &grouping{members: make(map[string][]string)}
}

// add records an ID under key. Empty keys form no group.
func (g *grouping) add(key, id string) {
	if key == "" {
		return
	}
	if _, ok := g.members[key]; !ok {
		g.keys = append(g.keys, key)
	}
	g.members[key] = append(g.members[key], id)
}

// chainEdges links consecutive members of each group: n members yield
// exactly n-1 edges.
func (g *grouping) chainEdges(edgeType string) []Edge {
	var edges []Edge
	for _, key := range g.keys {
		ids := g.members[key]
		for i := 1; i < len(ids); i++ {
			edges = append(edges, Edge{Source: ids[i-1], Target: ids[i], Type: edgeType})
		}
	}
	return edges
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
