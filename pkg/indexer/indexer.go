// Package indexer writes stored records to the search index.
package indexer

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/repokit/testrepo/pkg/models"
	"github.com/repokit/testrepo/pkg/pid"
	"github.com/repokit/testrepo/pkg/records"
	"github.com/repokit/testrepo/pkg/search"
)

// Indexer writes records to and removes records from the search index.
type Indexer interface {
	Index(ctx context.Context, rec *models.Record) error
	Delete(ctx context.Context, rec *models.Record) error
}

// Refresher makes pending writes to an index visible to searches.
type Refresher interface {
	Refresh(ctx context.Context, index string) error
}

// RecordIndexer indexes records into the index chosen by
// records.RecordToIndex.
type RecordIndexer struct {
	provider search.Provider
	fetcher  pid.Fetcher
	logger   hclog.Logger
}

// NewRecordIndexer creates a new RecordIndexer. fetcherName selects the pid
// fetcher used to read the record identifier from metadata.
func NewRecordIndexer(provider search.Provider, fetcherName string, logger hclog.Logger) (*RecordIndexer, error) {
	if provider == nil {
		return nil, fmt.Errorf("search provider is required")
	}
	fetcher, err := pid.GetFetcher(fetcherName)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	return &RecordIndexer{
		provider: provider,
		fetcher:  fetcher,
		logger:   logger.Named("record-indexer"),
	}, nil
}

// Index writes the record to its index.
func (i *RecordIndexer) Index(ctx context.Context, rec *models.Record) error {
	data, err := rec.JSON.Map()
	if err != nil {
		return err
	}

	fetched, err := i.fetcher(rec.ID, data)
	if err != nil {
		return fmt.Errorf("error fetching pid of record %s: %w", rec.ID, err)
	}

	idx, err := i.provider.RecordIndex(records.RecordToIndex(data))
	if err != nil {
		return err
	}

	if err := idx.Index(ctx, rec.ID.String(), Document(rec, data, fetched.PIDValue)); err != nil {
		return err
	}

	i.logger.Debug("indexed record",
		"record_id", rec.ID,
		"pid", fetched.PIDValue,
		"index", idx.Name(),
	)
	return nil
}

// Delete removes the record from its index.
func (i *RecordIndexer) Delete(ctx context.Context, rec *models.Record) error {
	idx, err := i.provider.RecordIndex(IndexOf(rec))
	if err != nil {
		return err
	}

	if err := idx.Delete(ctx, rec.ID.String()); err != nil {
		return err
	}

	i.logger.Debug("deleted record from index",
		"record_id", rec.ID,
		"index", idx.Name(),
	)
	return nil
}

// Document returns the search document of a record: its metadata plus the
// pid value as id and the record timestamps.
func Document(rec *models.Record, data map[string]any, pidValue string) map[string]any {
	doc := make(map[string]any, len(data)+3)
	for k, v := range data {
		doc[k] = v
	}
	doc["id"] = pidValue
	doc["created"] = rec.CreatedAt.UTC().Format(time.RFC3339)
	doc["updated"] = rec.UpdatedAt.UTC().Format(time.RFC3339)
	return doc
}

// IndexOf returns the index a stored record belongs to.
func IndexOf(rec *models.Record) string {
	data, err := rec.JSON.Map()
	if err != nil {
		data = nil
	}
	return records.RecordToIndex(data)
}
