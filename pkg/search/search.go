// Package search defines the search abstraction the records API and indexer
// are written against.
package search

import (
	"context"
	"time"
)

// ProviderType identifies a search backend.
type ProviderType string

const (
	ProviderTypeBleve ProviderType = "bleve"
)

// Provider is a search backend holding one or more record indexes.
type Provider interface {
	// Name returns the provider name.
	Name() string

	// Healthy checks if the search backend is accessible.
	Healthy(ctx context.Context) error

	// RecordIndex returns the index with the given name, opening or creating
	// it as needed.
	RecordIndex(name string) (RecordIndex, error)

	// Refresh makes all pending writes to the named index visible to
	// searches.
	Refresh(ctx context.Context, index string) error

	// Close releases all indexes.
	Close() error
}

// RecordIndex is a single search index of record documents.
type RecordIndex interface {
	// Name returns the index name.
	Name() string

	// Index adds or replaces the document with the given ID. The change is
	// visible to searches after the next Refresh.
	Index(ctx context.Context, id string, doc map[string]any) error

	// Delete removes the document with the given ID. The change is visible
	// to searches after the next Refresh.
	Delete(ctx context.Context, id string) error

	// Refresh makes pending writes visible to searches.
	Refresh(ctx context.Context) error

	// Search runs a query.
	Search(ctx context.Context, q *Query) (*Result, error)

	// Count returns the number of searchable documents.
	Count(ctx context.Context) (int, error)
}

// Order is a sort or bucket order.
type Order string

const (
	OrderAsc  Order = "asc"
	OrderDesc Order = "desc"
)

// Query is a search request.
type Query struct {
	// QueryString is a free-text query string. Empty matches everything.
	QueryString string

	// Filters restrict the hits. Values of one filter are OR'ed, filters are
	// AND'ed.
	Filters []Filter

	// Aggregations are the terms aggregations to compute over the hits.
	Aggregations []Aggregation

	// Sort is the hit order. Empty sorts by score.
	Sort []SortField

	From int
	Size int
}

// Filter matches documents whose field equals one of the values.
type Filter struct {
	Field  string
	Values []string
}

// Aggregation is a terms aggregation ordered by document count.
type Aggregation struct {
	Name  string
	Field string
	Size  int
	Order Order
}

// SortField sorts hits by a single field.
type SortField struct {
	Field      string
	Descending bool
}

// Result is the result of a search.
type Result struct {
	Hits         []Hit
	Total        int
	Aggregations map[string][]Bucket
	Took         time.Duration
}

// Hit is a matched document.
type Hit struct {
	ID    string
	Score float64
}

// Bucket is a single aggregation term and its document count.
type Bucket struct {
	Key   string
	Count int
}

// IDs returns the document IDs of the hits in order.
func (r *Result) IDs() []string {
	ids := make([]string, 0, len(r.Hits))
	for _, h := range r.Hits {
		ids = append(ids, h.ID)
	}
	return ids
}
