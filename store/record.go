// Package store provides the typed facade over the knowledge engines: a
// FalkorDB graph store and a vector store. Records written by the research
// agent land in the graph store; records written by document ingestion land
// in the vector store. Both are read back by the chat agent and the memory
// graph view.
package store

import (
	"time"

	"github.com/google/uuid"
)

// Kind identifies which engine a record originates from.
type Kind string

const (
	// KindGraph marks records persisted in the graph store.
	KindGraph Kind = "graph"
	// KindVector marks records persisted in the vector store.
	KindVector Kind = "vector"
)

// Record is one persisted unit of knowledge. Records are immutable after
// creation.
type Record struct {
	ID          string    `json:"id"`
	Kind        Kind      `json:"kind"`
	Name        string    `json:"name"`
	URL         string    `json:"url"`
	Content     string    `json:"content"`
	OriginQuery string    `json:"origin_query"`
	Domain      string    `json:"domain"`
	CreatedAt   time.Time `json:"created_at"`
}

// NewRecord creates a record with a fresh ID and current timestamp.
func NewRecord(kind Kind, name, url, content, originQuery, domain string) Record {
	return Record{
		ID:          uuid.New().String(),
		Kind:        kind,
		Name:        name,
		URL:         url,
		Content:     content,
		OriginQuery: originQuery,
		Domain:      domain,
		CreatedAt:   time.Now().UTC(),
	}
}
