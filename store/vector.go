package store

import (
	"context"
	"math"
	"sort"
	"sync"
)

// VectorStore is the write/read contract for the vector engine.
type VectorStore interface {
	Add(ctx context.Context, rec Record, embedding []float32) error
	Search(ctx context.Context, query []float32, k int) ([]Record, error)
	Recent(ctx context.Context, limit int) ([]Record, error)
	Ping(ctx context.Context) error
	Close() error
}

// MemoryVectorStore is an in-process vector store using cosine similarity.
// Suitable for tests and single-node deployments without external engines.
type MemoryVectorStore struct {
	mu         sync.RWMutex
	records    []Record
	embeddings [][]float32
}

var _ VectorStore = (*MemoryVectorStore)(nil)

// NewMemoryVectorStore creates an empty in-memory vector store.
func NewMemoryVectorStore() *MemoryVectorStore {
	return &MemoryVectorStore{}
}

// Add stores a record with its embedding.
func (s *MemoryVectorStore) Add(ctx context.Context, rec Record, embedding []float32) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, rec)
	s.embeddings = append(s.embeddings, embedding)
	return nil
}

// Search returns the k records most similar to the query embedding.
func (s *MemoryVectorStore) Search(ctx context.Context, query []float32, k int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 || k <= 0 {
		return []Record{}, nil
	}

	type scored struct {
		index int
		score float64
	}
	scores := make([]scored, len(s.records))
	for i, emb := range s.embeddings {
		scores[i] = scored{index: i, score: cosineSimilarity(query, emb)}
	}
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].score > scores[j].score
	})

	if k > len(scores) {
		k = len(scores)
	}
	out := make([]Record, k)
	for i := 0; i < k; i++ {
		out[i] = s.records[scores[i].index]
	}
	return out, nil
}

// Recent returns the most recently added records, newest first.
func (s *MemoryVectorStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	n := len(s.records)
	if limit > n {
		limit = n
	}
	out := make([]Record, 0, limit)
	for i := n - 1; i >= n-limit; i-- {
		out = append(out, s.records[i])
	}
	return out, nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryVectorStore) Ping(ctx context.Context) error { return nil }

// Close clears the store.
func (s *MemoryVectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = nil
	s.embeddings = nil
	return nil
}

// cosineSimilarity computes cosine similarity between two vectors. Returns 0
// when dimensions differ or either vector is zero.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
