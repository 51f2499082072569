package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inquiro/inquiro/inference"
)

type fakeGraph struct {
	records []Record
	err     error
}

func (g *fakeGraph) PutRecord(_ context.Context, rec Record) error {
	if g.err != nil {
		return g.err
	}
	g.records = append(g.records, rec)
	return nil
}

func (g *fakeGraph) RecordsByDomain(_ context.Context, domain string, limit int) ([]Record, error) {
	if g.err != nil {
		return nil, g.err
	}
	var out []Record
	for _, rec := range g.records {
		if rec.Domain == domain && len(out) < limit {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (g *fakeGraph) RecentRecords(_ context.Context, limit int) ([]Record, error) {
	if g.err != nil {
		return nil, g.err
	}
	if limit > len(g.records) {
		limit = len(g.records)
	}
	return g.records[:limit], nil
}

func (g *fakeGraph) Ping(_ context.Context) error { return g.err }
func (g *fakeGraph) Close() error                 { return nil }

func staticEmbedder(vec []float32) inference.Embedder {
	return inference.EmbedderFunc(func(_ context.Context, _ string) ([]float32, error) {
		return vec, nil
	})
}

func TestFacadeWriteNode(t *testing.T) {
	graph := &fakeGraph{}
	f := NewFacade(graph, NewMemoryVectorStore(), staticEmbedder([]float32{1, 0}))

	rec := NewRecord(KindVector, "Example", "https://example.com", "content", "q", "example.com")
	require.NoError(t, f.WriteNode(context.Background(), rec))

	require.Len(t, graph.records, 1)
	assert.Equal(t, KindGraph, graph.records[0].Kind)
}

func TestFacadeWriteNodeUnavailable(t *testing.T) {
	graph := &fakeGraph{err: errors.New("connection refused")}
	f := NewFacade(graph, NewMemoryVectorStore(), staticEmbedder([]float32{1, 0}))

	err := f.WriteNode(context.Background(), NewRecord(KindGraph, "n", "", "c", "q", ""))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}

func TestFacadeWriteVector(t *testing.T) {
	var embedded string
	embedder := inference.EmbedderFunc(func(_ context.Context, text string) ([]float32, error) {
		embedded = text
		return []float32{0.5, 0.5}, nil
	})
	vector := NewMemoryVectorStore()
	f := NewFacade(&fakeGraph{}, vector, embedder)

	rec := NewRecord(KindVector, "chunk", "", "chunk text", "doc.pdf", "")
	require.NoError(t, f.WriteVector(context.Background(), rec))
	assert.Equal(t, "chunk text", embedded)

	recent, err := vector.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, KindVector, recent[0].Kind)
}

func TestFacadeWriteVectorEmbedError(t *testing.T) {
	embedder := inference.EmbedderFunc(func(_ context.Context, _ string) ([]float32, error) {
		return nil, errors.New("model not loaded")
	})
	f := NewFacade(&fakeGraph{}, NewMemoryVectorStore(), embedder)

	err := f.WriteVector(context.Background(), NewRecord(KindVector, "n", "", "c", "q", ""))
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrStoreUnavailable)
}

func TestFacadeQueryBySession(t *testing.T) {
	vector := NewMemoryVectorStore()
	ctx := context.Background()
	for i := 0; i < 8; i++ {
		rec := NewRecord(KindVector, "chunk", "", "content", "doc.pdf", "")
		require.NoError(t, vector.Add(ctx, rec, []float32{float32(i), 1}))
	}
	f := NewFacade(&fakeGraph{}, vector, staticEmbedder([]float32{1, 0}))

	recs, err := f.QueryBySession(ctx, "what did the document say")
	require.NoError(t, err)
	assert.Len(t, recs, 5)
}

func TestFacadeQueryByDomain(t *testing.T) {
	graph := &fakeGraph{}
	ctx := context.Background()
	f := NewFacade(graph, NewMemoryVectorStore(), staticEmbedder([]float32{1}))

	a := NewRecord(KindGraph, "a", "https://en.wikipedia.org/x", "c", "q", "en.wikipedia.org")
	b := NewRecord(KindGraph, "b", "https://example.com/y", "c", "q", "example.com")
	require.NoError(t, f.WriteNode(ctx, a))
	require.NoError(t, f.WriteNode(ctx, b))

	recs, err := f.QueryByDomain(ctx, "example.com")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "b", recs[0].Name)
}

func TestFacadeListRecent(t *testing.T) {
	graph := &fakeGraph{}
	vector := NewMemoryVectorStore()
	ctx := context.Background()
	f := NewFacade(graph, vector, staticEmbedder([]float32{1}))

	old := NewRecord(KindGraph, "old", "", "c", "q", "")
	old.CreatedAt = time.Now().UTC().Add(-time.Hour)
	require.NoError(t, f.WriteNode(ctx, old))

	fresh := NewRecord(KindVector, "fresh", "", "c", "q", "")
	require.NoError(t, vector.Add(ctx, fresh, []float32{1}))

	recs, err := f.ListRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "fresh", recs[0].Name)
	assert.Equal(t, "old", recs[1].Name)
}

func TestFacadeListRecentUnavailable(t *testing.T) {
	graph := &fakeGraph{err: errors.New("no route to host")}
	f := NewFacade(graph, NewMemoryVectorStore(), staticEmbedder([]float32{1}))

	_, err := f.ListRecent(context.Background(), 10)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
