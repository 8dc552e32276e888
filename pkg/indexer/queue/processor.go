package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
	"github.com/repokit/testrepo/pkg/indexer"
	"github.com/repokit/testrepo/pkg/models"
	"gorm.io/gorm"
)

// ErrUnprocessable marks requests that can never succeed. The consumer
// acknowledges them instead of redelivering them.
var ErrUnprocessable = errors.New("unprocessable index request")

// Processor applies index requests to the search index.
type Processor struct {
	db         *gorm.DB
	indexer    indexer.Indexer
	maxRetries uint64
	newBackOff func() backoff.BackOff
	logger     hclog.Logger
}

// NewProcessor creates a new Processor. Transient failures are retried up to
// maxRetries times with exponential backoff.
func NewProcessor(db *gorm.DB, idx indexer.Indexer, maxRetries int, logger hclog.Logger) *Processor {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Processor{
		db:         db,
		indexer:    idx,
		maxRetries: uint64(maxRetries),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 10 * time.Second
			return b
		},
		logger: logger.Named("index-processor"),
	}
}

// Process applies a single request.
func (p *Processor) Process(ctx context.Context, req Request) error {
	attempt := 0
	op := func() error {
		attempt++
		err := p.apply(ctx, req)
		if err != nil && attempt > 1 {
			p.logger.Warn("retrying index request",
				"record_id", req.ID,
				"action", req.Action,
				"attempt", attempt,
				"error", err,
			)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(p.newBackOff(), p.maxRetries), ctx)
	if err := backoff.Retry(op, b); err != nil {
		return fmt.Errorf("error processing %s request for record %s: %w", req.Action, req.ID, err)
	}
	return nil
}

func (p *Processor) apply(ctx context.Context, req Request) error {
	rec := &models.Record{ID: req.ID}
	db := p.db.WithContext(ctx)

	switch req.Action {
	case ActionIndex:
		if err := rec.Get(db); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return backoff.Permanent(fmt.Errorf("%w: record %s not found", ErrUnprocessable, req.ID))
			}
			return err
		}
		return p.indexer.Index(ctx, rec)

	case ActionDelete:
		// Deleted records are soft-deleted; their metadata picks the index.
		err := db.Unscoped().First(rec, "id = ?", req.ID).Error
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		return p.indexer.Delete(ctx, rec)

	default:
		return backoff.Permanent(fmt.Errorf("%w: unknown action %q", ErrUnprocessable, req.Action))
	}
}
