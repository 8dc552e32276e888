package indexer

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/repokit/testrepo/pkg/models"
)

// RefreshingIndexer refreshes the affected index after every Index and
// Delete of the wrapped indexer, so changes are searchable as soon as the call
// returns. The refresh runs exactly once per call, also when the wrapped call
// fails or panics.
type RefreshingIndexer struct {
	Indexer   Indexer
	Refresher Refresher

	// IndexFor picks the index to refresh. Defaults to IndexOf.
	IndexFor func(rec *models.Record) string
}

// NewRefreshingIndexer wraps inner.
func NewRefreshingIndexer(inner Indexer, refresher Refresher) *RefreshingIndexer {
	return &RefreshingIndexer{
		Indexer:   inner,
		Refresher: refresher,
		IndexFor:  IndexOf,
	}
}

// Index indexes the record and refreshes its index.
func (r *RefreshingIndexer) Index(ctx context.Context, rec *models.Record) (err error) {
	defer func() { err = r.refresh(ctx, rec, err) }()
	return r.Indexer.Index(ctx, rec)
}

// Delete removes the record from the index and refreshes it.
func (r *RefreshingIndexer) Delete(ctx context.Context, rec *models.Record) (err error) {
	defer func() { err = r.refresh(ctx, rec, err) }()
	return r.Indexer.Delete(ctx, rec)
}

func (r *RefreshingIndexer) refresh(ctx context.Context, rec *models.Record, err error) error {
	indexFor := r.IndexFor
	if indexFor == nil {
		indexFor = IndexOf
	}
	index := indexFor(rec)

	rerr := r.Refresher.Refresh(ctx, index)
	if rerr == nil {
		return err
	}

	rerr = fmt.Errorf("error refreshing index %s: %w", index, rerr)
	if err != nil {
		return multierror.Append(err, rerr)
	}
	return rerr
}
