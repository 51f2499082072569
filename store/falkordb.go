package store

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/redis/go-redis/v9"
)

// GraphStore is the write/read contract for the graph engine.
type GraphStore interface {
	PutRecord(ctx context.Context, rec Record) error
	RecordsByDomain(ctx context.Context, domain string, limit int) ([]Record, error)
	RecentRecords(ctx context.Context, limit int) ([]Record, error)
	Ping(ctx context.Context) error
	Close() error
}

// FalkorDB stores records as Source nodes in a FalkorDB graph.
type FalkorDB struct {
	client redis.UniversalClient
	graph  string
}

var _ GraphStore = (*FalkorDB)(nil)

// NewFalkorDB opens a graph store. The connection string has the form
// falkordb://host:port/graph_name.
func NewFalkorDB(connectionString string) (*FalkorDB, error) {
	u, err := url.Parse(connectionString)
	if err != nil {
		return nil, fmt.Errorf("invalid connection string: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid connection string: missing host")
	}

	graphName := strings.TrimPrefix(u.Path, "/")
	if graphName == "" {
		graphName = "knowledge"
	}

	client := redis.NewClient(&redis.Options{Addr: u.Host})

	return &FalkorDB{client: client, graph: graphName}, nil
}

// NewFalkorDBWithClient wraps an existing redis client. Useful for tests.
func NewFalkorDBWithClient(client redis.UniversalClient, graphName string) *FalkorDB {
	if graphName == "" {
		graphName = "knowledge"
	}
	return &FalkorDB{client: client, graph: graphName}
}

// PutRecord upserts a record as a Source node keyed by record ID.
func (f *FalkorDB) PutRecord(ctx context.Context, rec Record) error {
	g := &graphConn{name: f.graph, client: f.client}

	cypher := fmt.Sprintf(
		"MERGE (d:Source {id: '%s'}) SET d.name = '%s', d.url = '%s', d.content = '%s', d.origin_query = '%s', d.domain = '%s', d.created_at = %d",
		escapeCypherString(rec.ID),
		escapeCypherString(rec.Name),
		escapeCypherString(rec.URL),
		escapeCypherString(rec.Content),
		escapeCypherString(rec.OriginQuery),
		escapeCypherString(rec.Domain),
		rec.CreatedAt.UnixMilli(),
	)

	_, err := g.query(ctx, cypher)
	return err
}

// RecordsByDomain returns records for one domain, most recent first.
func (f *FalkorDB) RecordsByDomain(ctx context.Context, domain string, limit int) ([]Record, error) {
	cypher := fmt.Sprintf(
		"MATCH (d:Source {domain: '%s'}) RETURN d ORDER BY d.created_at DESC LIMIT %d",
		escapeCypherString(domain), limit)
	return f.queryRecords(ctx, cypher)
}

// RecentRecords returns the most recently written records.
func (f *FalkorDB) RecentRecords(ctx context.Context, limit int) ([]Record, error) {
	cypher := fmt.Sprintf(
		"MATCH (d:Source) RETURN d ORDER BY d.created_at DESC LIMIT %d", limit)
	return f.queryRecords(ctx, cypher)
}

func (f *FalkorDB) queryRecords(ctx context.Context, cypher string) ([]Record, error) {
	g := &graphConn{name: f.graph, client: f.client}

	qr, err := g.query(ctx, cypher)
	if err != nil {
		return nil, err
	}

	records := make([]Record, 0, len(qr.Rows))
	for _, row := range qr.Rows {
		if len(row) == 0 {
			continue
		}
		if rec, ok := parseNodeRecord(row[0]); ok {
			records = append(records, rec)
		}
	}
	return records, nil
}

// Ping reports whether the engine is reachable.
func (f *FalkorDB) Ping(ctx context.Context) error {
	return f.client.Ping(ctx).Err()
}

// Close releases the underlying connection.
func (f *FalkorDB) Close() error {
	return f.client.Close()
}
