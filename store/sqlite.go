package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"sort"

	_ "github.com/mattn/go-sqlite3"
)

// LocalStore is a sqlite-backed store used when the graph and vector engines
// are unreachable. It implements both GraphStore and VectorStore so the
// facade can degrade to a single local file and keep the service usable.
type LocalStore struct {
	db *sql.DB
}

var (
	_ GraphStore  = (*LocalStore)(nil)
	_ VectorStore = (*LocalStore)(nil)
)

// OpenLocalStore opens (or creates) the sqlite database at path.
func OpenLocalStore(path string) (*LocalStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("unable to open database: %w", err)
	}

	s := &LocalStore{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *LocalStore) initSchema(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS records (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			name TEXT NOT NULL,
			url TEXT,
			content TEXT NOT NULL,
			origin_query TEXT,
			domain TEXT,
			created_at DATETIME NOT NULL,
			embedding TEXT
		);
		CREATE INDEX IF NOT EXISTS idx_records_kind_created ON records (kind, created_at DESC);
	`
	if _, err := s.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *LocalStore) insert(ctx context.Context, rec Record, embedding []float32) error {
	var emb any
	if embedding != nil {
		b, err := json.Marshal(embedding)
		if err != nil {
			return fmt.Errorf("marshal embedding: %w", err)
		}
		emb = string(b)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO records (id, kind, name, url, content, origin_query, domain, created_at, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, string(rec.Kind), rec.Name, rec.URL, rec.Content, rec.OriginQuery, rec.Domain, rec.CreatedAt, emb)
	if err != nil {
		return fmt.Errorf("insert record: %w", err)
	}
	return nil
}

func (s *LocalStore) selectRecords(ctx context.Context, where string, args ...any) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, kind, name, url, content, origin_query, domain, created_at FROM records "+where, args...)
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var kind string
		if err := rows.Scan(&rec.ID, &kind, &rec.Name, &rec.URL, &rec.Content,
			&rec.OriginQuery, &rec.Domain, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Kind = Kind(kind)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// PutRecord stores a graph-kind record.
func (s *LocalStore) PutRecord(ctx context.Context, rec Record) error {
	rec.Kind = KindGraph
	return s.insert(ctx, rec, nil)
}

// RecordsByDomain returns graph records for one domain, most recent first.
func (s *LocalStore) RecordsByDomain(ctx context.Context, domain string, limit int) ([]Record, error) {
	return s.selectRecords(ctx,
		"WHERE kind = ? AND domain = ? ORDER BY created_at DESC LIMIT ?",
		string(KindGraph), domain, limit)
}

// RecentRecords returns the most recent graph records.
func (s *LocalStore) RecentRecords(ctx context.Context, limit int) ([]Record, error) {
	return s.selectRecords(ctx,
		"WHERE kind = ? ORDER BY created_at DESC LIMIT ?", string(KindGraph), limit)
}

// Add stores a vector-kind record with its embedding.
func (s *LocalStore) Add(ctx context.Context, rec Record, embedding []float32) error {
	rec.Kind = KindVector
	return s.insert(ctx, rec, embedding)
}

// Search scores stored vector records against the query embedding in-process.
func (s *LocalStore) Search(ctx context.Context, query []float32, k int) ([]Record, error) {
	if k <= 0 {
		return []Record{}, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, url, content, origin_query, domain, created_at, embedding
		FROM records WHERE kind = ? AND embedding IS NOT NULL`, string(KindVector))
	if err != nil {
		return nil, fmt.Errorf("query records: %w", err)
	}
	defer rows.Close()

	type scored struct {
		rec   Record
		score float64
	}
	var candidates []scored
	for rows.Next() {
		var rec Record
		var emb string
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.URL, &rec.Content,
			&rec.OriginQuery, &rec.Domain, &rec.CreatedAt, &emb); err != nil {
			return nil, fmt.Errorf("scan record: %w", err)
		}
		rec.Kind = KindVector

		var vec []float32
		if err := json.Unmarshal([]byte(emb), &vec); err != nil {
			continue
		}
		candidates = append(candidates, scored{rec: rec, score: cosineSimilarity(query, vec)})
	}
	if err := rows.Err(); err != nil {
		return nil, err
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

// Recent returns the most recent vector records.
func (s *LocalStore) Recent(ctx context.Context, limit int) ([]Record, error) {
	return s.selectRecords(ctx,
		"WHERE kind = ? ORDER BY created_at DESC LIMIT ?", string(KindVector), limit)
}

// Ping reports whether the database is usable.
func (s *LocalStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *LocalStore) Close() error {
	return s.db.Close()
}
