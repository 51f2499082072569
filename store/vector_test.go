package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryVectorStoreSearch(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore()

	recA := NewRecord(KindVector, "a", "", "alpha", "q", "")
	recB := NewRecord(KindVector, "b", "", "beta", "q", "")
	recC := NewRecord(KindVector, "c", "", "gamma", "q", "")

	require.NoError(t, s.Add(ctx, recA, []float32{1, 0, 0}))
	require.NoError(t, s.Add(ctx, recB, []float32{0, 1, 0}))
	require.NoError(t, s.Add(ctx, recC, []float32{0.9, 0.1, 0}))

	out, err := s.Search(ctx, []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "a", out[0].Name)
	assert.Equal(t, "c", out[1].Name)
}

func TestMemoryVectorStoreSearchEmpty(t *testing.T) {
	s := NewMemoryVectorStore()
	out, err := s.Search(context.Background(), []float32{1}, 5)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestMemoryVectorStoreRecent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryVectorStore()

	for _, name := range []string{"first", "second", "third"} {
		rec := NewRecord(KindVector, name, "", name, "", "")
		require.NoError(t, s.Add(ctx, rec, []float32{1}))
	}

	out, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "third", out[0].Name)
	assert.Equal(t, "second", out[1].Name)
}

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{1, 2}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestNewRecord(t *testing.T) {
	before := time.Now().UTC()
	rec := NewRecord(KindGraph, "n", "https://example.com", "content", "query", "example.com")
	assert.NotEmpty(t, rec.ID)
	assert.Equal(t, KindGraph, rec.Kind)
	assert.False(t, rec.CreatedAt.Before(before.Add(-time.Second)))
}
