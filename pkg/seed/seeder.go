package seed

import (
	"context"
	"fmt"

	"github.com/hashicorp/go-hclog"

	"github.com/repokit/testrepo/pkg/client"
	"github.com/repokit/testrepo/pkg/records"
)

// Creator creates records in a collection. *client.Client implements it.
type Creator interface {
	Create(ctx context.Context, collection string, metadata any) (*client.Record, error)
}

// Error reports the record that stopped a seeding run.
type Error struct {
	// Index is the position of the failed record in the batch.
	Index int
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("record %d: %v", e.Index, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Seeder posts generated records to a collection.
type Seeder struct {
	Client     Creator
	Collection string
	Logger     hclog.Logger

	// OnCreated, if set, is called after each created record.
	OnCreated func(idx int, rec *client.Record)
}

// Run posts recs one at a time, in order. It stops at the first record that
// fails validation or is not created and returns an *Error carrying its
// index. created is the number of records created before that.
func (s *Seeder) Run(ctx context.Context, recs []records.Record) (created int, err error) {
	log := s.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}
	log = log.Named("seed")

	for idx, rec := range recs {
		if err := ctx.Err(); err != nil {
			return created, &Error{Index: idx, Err: err}
		}
		if err := rec.Validate(); err != nil {
			return created, &Error{
				Index: idx,
				Err:   fmt.Errorf("invalid record: %w", err),
			}
		}

		res, err := s.Client.Create(ctx, s.Collection, rec)
		if err != nil {
			log.Error("error creating record", "index", idx, "error", err)
			return created, &Error{Index: idx, Err: err}
		}
		created++

		log.Debug("created record", "index", idx, "id", res.ID)
		if s.OnCreated != nil {
			s.OnCreated(idx, res)
		}
	}
	return created, nil
}
