package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DBPool is the subset of pgxpool.Pool the store needs. Kept as an interface
// so tests can substitute a mock.
type DBPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Close()
}

// PostgresVectorStore persists records and embeddings in PostgreSQL.
// Similarity is computed in-process over a bounded candidate window, so the
// store works on a stock PostgreSQL without extensions.
type PostgresVectorStore struct {
	pool      DBPool
	tableName string
	// candidateWindow bounds how many recent rows a search scores.
	candidateWindow int
}

var _ VectorStore = (*PostgresVectorStore)(nil)

// PostgresOptions configures the Postgres vector store.
type PostgresOptions struct {
	ConnString string
	TableName  string // Default "memory_records"
}

// NewPostgresVectorStore opens a connection pool and prepares the store.
func NewPostgresVectorStore(ctx context.Context, opts PostgresOptions) (*PostgresVectorStore, error) {
	pool, err := pgxpool.New(ctx, opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}
	return NewPostgresVectorStoreWithPool(pool, opts.TableName), nil
}

// NewPostgresVectorStoreWithPool wraps an existing pool. Useful for testing
// with mocks.
func NewPostgresVectorStoreWithPool(pool DBPool, tableName string) *PostgresVectorStore {
	if tableName == "" {
		tableName = "memory_records"
	}
	return &PostgresVectorStore{
		pool:            pool,
		tableName:       tableName,
		candidateWindow: 500,
	}
}

// InitSchema creates the backing table if it doesn't exist.
func (s *PostgresVectorStore) InitSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			url TEXT,
			content TEXT NOT NULL,
			origin_query TEXT,
			domain TEXT,
			created_at TIMESTAMPTZ NOT NULL,
			embedding JSONB NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s (created_at DESC);
	`, s.tableName, s.tableName, s.tableName)

	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

// Add upserts a record with its embedding.
func (s *PostgresVectorStore) Add(ctx context.Context, rec Record, embedding []float32) error {
	emb, err := json.Marshal(embedding)
	if err != nil {
		return fmt.Errorf("marshal embedding: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, name, url, content, origin_query, domain, created_at, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (id) DO UPDATE SET content = EXCLUDED.content, embedding = EXCLUDED.embedding
	`, s.tableName)

	_, err = s.pool.Exec(ctx, query,
		rec.ID, rec.Name, rec.URL, rec.Content, rec.OriginQuery, rec.Domain, rec.CreatedAt, emb)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

// Search scores the most recent candidate rows against the query embedding
// and returns the top k.
func (s *PostgresVectorStore) Search(ctx context.Context, query []float32, k int) ([]Record, error) {
	if k <= 0 {
		return []Record{}, nil
	}

	sqlQuery := fmt.Sprintf(`
		SELECT id, name, url, content, origin_query, domain, created_at, embedding
		FROM %s ORDER BY created_at DESC LIMIT $1
	`, s.tableName)

	rows, err := s.pool.Query(ctx, sqlQuery, s.candidateWindow)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	type scored struct {
		rec   Record
		score float64
	}
	var candidates []scored
	for rows.Next() {
		var rec Record
		var emb []byte
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.URL, &rec.Content,
			&rec.OriginQuery, &rec.Domain, &rec.CreatedAt, &emb); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Kind = KindVector

		var vec []float32
		if err := json.Unmarshal(emb, &vec); err != nil {
			continue
		}
		candidates = append(candidates, scored{rec: rec, score: cosineSimilarity(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})
	if k > len(candidates) {
		k = len(candidates)
	}
	out := make([]Record, k)
	for i := 0; i < k; i++ {
		out[i] = candidates[i].rec
	}
	return out, nil
}

// Recent returns the most recently written records.
func (s *PostgresVectorStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	sqlQuery := fmt.Sprintf(`
		SELECT id, name, url, content, origin_query, domain, created_at
		FROM %s ORDER BY created_at DESC LIMIT $1
	`, s.tableName)

	rows, err := s.pool.Query(ctx, sqlQuery, limit)
	if err != nil {
		return nil, fmt.Errorf("query recent: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.URL, &rec.Content,
			&rec.OriginQuery, &rec.Domain, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Kind = KindVector
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recent: %w", err)
	}
	return out, nil
}

// Ping reports whether the database is reachable.
func (s *PostgresVectorStore) Ping(ctx context.Context) error {
	var one int
	if err := s.pool.QueryRow(ctx, "SELECT 1").Scan(&one); err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	return nil
}

// Close releases the pool.
func (s *PostgresVectorStore) Close() error {
	s.pool.Close()
	return nil
}
