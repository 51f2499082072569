package store

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/inquiro/inquiro/inference"
	"github.com/inquiro/inquiro/log"
)

// ErrStoreUnavailable indicates a backing engine is unreachable. The facade
// surfaces it without retrying; retry policy belongs to callers.
var ErrStoreUnavailable = errors.New("knowledge store unavailable")

// Facade is the typed read/write interface over the graph and vector
// engines. It normalizes records on the way in and out and performs no
// caching or locking of its own.
type Facade struct {
	graph    GraphStore
	vector   VectorStore
	embedder inference.Embedder
	logger   log.Logger
}

// FacadeOption configures the facade.
type FacadeOption func(*Facade)

// WithFacadeLogger sets the logger.
func WithFacadeLogger(logger log.Logger) FacadeOption {
	return func(f *Facade) {
		f.logger = logger
	}
}

// NewFacade creates a facade over the given engines.
func NewFacade(graph GraphStore, vector VectorStore, embedder inference.Embedder, opts ...FacadeOption) *Facade {
	f := &Facade{
		graph:    graph,
		vector:   vector,
		embedder: embedder,
		logger:   log.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// WriteNode persists a record in the graph store.
func (f *Facade) WriteNode(ctx context.Context, rec Record) error {
	rec.Kind = KindGraph
	if err := f.graph.PutRecord(ctx, rec); err != nil {
		return fmt.Errorf("%w: graph write: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// WriteVector embeds the record content and persists it in the vector store.
func (f *Facade) WriteVector(ctx context.Context, rec Record) error {
	rec.Kind = KindVector
	embedding, err := f.embedder.Embed(ctx, rec.Content)
	if err != nil {
		return fmt.Errorf("embed content: %w", err)
	}
	if err := f.vector.Add(ctx, rec, embedding); err != nil {
		return fmt.Errorf("%w: vector write: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// QueryByDomain returns graph records for one domain.
func (f *Facade) QueryByDomain(ctx context.Context, domain string) ([]Record, error) {
	recs, err := f.graph.RecordsByDomain(ctx, domain, 50)
	if err != nil {
		return nil, fmt.Errorf("%w: graph query: %v", ErrStoreUnavailable, err)
	}
	return recs, nil
}

// QueryBySession embeds the query text and returns the most similar vector
// records.
func (f *Facade) QueryBySession(ctx context.Context, queryText string) ([]Record, error) {
	embedding, err := f.embedder.Embed(ctx, queryText)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	recs, err := f.vector.Search(ctx, embedding, 5)
	if err != nil {
		return nil, fmt.Errorf("%w: vector query: %v", ErrStoreUnavailable, err)
	}
	return recs, nil
}

// ListRecent merges the most recent records from both engines, newest first,
// capped at limit. Ordering among records with equal timestamps is not
// guaranteed stable across calls.
func (f *Facade) ListRecent(ctx context.Context, limit int) ([]Record, error) {
	graphRecs, err := f.graph.RecentRecords(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: graph recent: %v", ErrStoreUnavailable, err)
	}
	vectorRecs, err := f.vector.Recent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: vector recent: %v", ErrStoreUnavailable, err)
	}

	merged := append(graphRecs, vectorRecs...)
	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].CreatedAt.After(merged[j].CreatedAt)
	})
	if len(merged) > limit {
		merged = merged[:limit]
	}
	return merged, nil
}

// Close closes both engines, returning the first error.
func (f *Facade) Close() error {
	err := f.graph.Close()
	if verr := f.vector.Close(); err == nil {
		err = verr
	}
	return err
}
