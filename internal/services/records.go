package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"

	"github.com/repokit/testrepo/pkg/indexer"
	"github.com/repokit/testrepo/pkg/models"
	"github.com/repokit/testrepo/pkg/pid"
	"github.com/repokit/testrepo/pkg/records"
	"github.com/repokit/testrepo/pkg/search"
)

// ErrRevisionMismatch is returned when an update names a revision other than
// the stored one.
var ErrRevisionMismatch = errors.New("record revision does not match")

// DefaultPageSize is the page size of searches that do not set one.
const DefaultPageSize = 10

// RecordService stores, indexes and searches the records of one endpoint.
type RecordService struct {
	db       *gorm.DB
	provider search.Provider
	endpoint *records.Endpoint
	minter   pid.Minter
	fetcher  pid.Fetcher
	indexer  indexer.Indexer
	logger   hclog.Logger
}

// NewRecordService creates a new RecordService. Index and delete calls are
// refreshed immediately so the API can search its own writes.
func NewRecordService(db *gorm.DB, provider search.Provider, ep *records.Endpoint, logger hclog.Logger) (*RecordService, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if provider == nil {
		return nil, fmt.Errorf("search provider is required")
	}
	if err := ep.Validate(); err != nil {
		return nil, fmt.Errorf("invalid endpoint: %w", err)
	}
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	minter, err := pid.GetMinter(ep.PIDMinter)
	if err != nil {
		return nil, err
	}
	fetcher, err := pid.GetFetcher(ep.PIDFetcher)
	if err != nil {
		return nil, err
	}
	ri, err := indexer.NewRecordIndexer(provider, ep.PIDFetcher, logger)
	if err != nil {
		return nil, err
	}

	return &RecordService{
		db:       db,
		provider: provider,
		endpoint: ep,
		minter:   minter,
		fetcher:  fetcher,
		indexer:  indexer.NewRefreshingIndexer(ri, provider),
		logger:   logger.Named("records"),
	}, nil
}

// Endpoint returns the endpoint the service serves.
func (s *RecordService) Endpoint() *records.Endpoint {
	return s.endpoint
}

// Create mints a PID for the metadata, stores the record and indexes it.
func (s *RecordService) Create(ctx context.Context, data map[string]any) (*models.Record, *models.PersistentIdentifier, error) {
	rec := &models.Record{ID: uuid.New()}
	var p *models.PersistentIdentifier

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		p, err = s.minter(tx, rec.ID, data)
		if err != nil {
			return err
		}

		rec.JSON, err = models.NewJSON(data)
		if err != nil {
			return err
		}
		return rec.Create(tx)
	})
	if err != nil {
		return nil, nil, fmt.Errorf("error creating record: %w", err)
	}

	s.index(ctx, rec)

	s.logger.Info("created record",
		"record_id", rec.ID,
		"pid", p.PIDValue,
	)
	return rec, p, nil
}

// Get resolves a PID value to its record.
func (s *RecordService) Get(ctx context.Context, pidValue string) (*models.PersistentIdentifier, *models.Record, error) {
	return pid.Resolve(s.db.WithContext(ctx), s.endpoint.PIDType, pidValue)
}

// Update replaces the metadata of a record. A non-zero revision must match
// the stored revision. The control number cannot be changed.
func (s *RecordService) Update(ctx context.Context, pidValue string, data map[string]any, revision int) (*models.Record, error) {
	p, rec, err := s.Get(ctx, pidValue)
	if err != nil {
		return nil, err
	}
	if revision != 0 && revision != rec.Version {
		return nil, ErrRevisionMismatch
	}

	data[pid.ControlNumberField] = p.PIDValue
	j, err := models.NewJSON(data)
	if err != nil {
		return nil, err
	}

	if err := rec.Update(s.db.WithContext(ctx), j); err != nil {
		if errors.Is(err, models.ErrStaleRevision) {
			return nil, ErrRevisionMismatch
		}
		return nil, fmt.Errorf("error updating record: %w", err)
	}

	s.index(ctx, rec)

	s.logger.Info("updated record",
		"record_id", rec.ID,
		"pid", p.PIDValue,
		"revision", rec.Version,
	)
	return rec, nil
}

// Delete marks the PID deleted, soft-deletes the record and removes it from
// the index.
func (s *RecordService) Delete(ctx context.Context, pidValue string) error {
	p, rec, err := s.Get(ctx, pidValue)
	if err != nil {
		return err
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := p.MarkDeleted(tx); err != nil {
			return err
		}
		return rec.Delete(tx)
	})
	if err != nil {
		return fmt.Errorf("error deleting record: %w", err)
	}

	if err := s.indexer.Delete(ctx, rec); err != nil {
		s.logger.Error("error removing record from index",
			"record_id", rec.ID,
			"error", err,
		)
	}

	s.logger.Info("deleted record",
		"record_id", rec.ID,
		"pid", p.PIDValue,
	)
	return nil
}

// index writes a stored record to the search index. The record is already
// committed, so failures are logged and left for a reindex.
func (s *RecordService) index(ctx context.Context, rec *models.Record) {
	if err := s.indexer.Index(ctx, rec); err != nil {
		s.logger.Error("error indexing record",
			"record_id", rec.ID,
			"error", err,
		)
	}
}

// SearchParams are the parameters of a record search.
type SearchParams struct {
	QueryString string

	// Page is 1-based.
	Page int
	Size int

	// Sort names a sort option. A leading "-" reverses it. Empty selects the
	// default sort.
	Sort string

	// Filters maps filter keys to accepted values. Unknown keys are ignored.
	Filters map[string][]string
}

// SearchResult is a page of records.
type SearchResult struct {
	Records      []SearchHit
	Total        int
	Page         int
	Size         int
	Aggregations map[string][]search.Bucket
}

// SearchHit is a matched record and its PID value.
type SearchHit struct {
	PIDValue string
	Record   models.Record
}

// Search runs a search against the endpoint's index.
func (s *RecordService) Search(ctx context.Context, params SearchParams) (*SearchResult, error) {
	index := s.endpoint.SearchIndex

	page := params.Page
	if page < 1 {
		page = 1
	}
	size := params.Size
	if size < 1 {
		size = DefaultPageSize
	}
	if page*size > s.endpoint.MaxResultWindow {
		return nil, &search.Error{
			Op:  "Search",
			Err: search.ErrResultWindowExceeded,
			Msg: fmt.Sprintf("page * size must not exceed %d", s.endpoint.MaxResultWindow),
		}
	}

	sortName := params.Sort
	reverse := false
	if strings.HasPrefix(sortName, "-") {
		reverse = true
		sortName = strings.TrimPrefix(sortName, "-")
	}
	if sortName == "" {
		sortName = records.DefaultSort(index, params.QueryString != "")
	}

	q := &search.Query{
		QueryString: params.QueryString,
		From:        (page - 1) * size,
		Size:        size,
	}
	if sortName != "" {
		opt, ok := records.LookupSortOption(index, sortName)
		if !ok {
			return nil, &search.Error{
				Op:  "Search",
				Err: search.ErrInvalidQuery,
				Msg: fmt.Sprintf("unknown sort option %q", sortName),
			}
		}
		q.Sort = opt.SortFields(reverse)
	}
	for _, f := range records.Filters(index) {
		if values := params.Filters[f.Key]; len(values) > 0 {
			q.Filters = append(q.Filters, f.Apply(values))
		}
	}
	for _, f := range records.Facets(index) {
		q.Aggregations = append(q.Aggregations, f.Aggregation())
	}

	idx, err := s.provider.RecordIndex(index)
	if err != nil {
		return nil, err
	}
	res, err := idx.Search(ctx, q)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(res.Hits))
	for _, id := range res.IDs() {
		u, err := uuid.Parse(id)
		if err != nil {
			s.logger.Warn("skipping search hit with invalid id", "id", id)
			continue
		}
		ids = append(ids, u)
	}

	var recs models.Records
	if err := recs.FindByIDs(s.db.WithContext(ctx), ids); err != nil {
		return nil, fmt.Errorf("error loading search hits: %w", err)
	}

	hits := make([]SearchHit, 0, len(recs))
	for _, rec := range recs {
		data, err := rec.JSON.Map()
		if err != nil {
			return nil, err
		}
		fetched, err := s.fetcher(rec.ID, data)
		if err != nil {
			s.logger.Warn("skipping search hit without pid", "record_id", rec.ID, "error", err)
			continue
		}
		hits = append(hits, SearchHit{PIDValue: fetched.PIDValue, Record: rec})
	}

	return &SearchResult{
		Records:      hits,
		Total:        res.Total,
		Page:         page,
		Size:         size,
		Aggregations: res.Aggregations,
	}, nil
}
