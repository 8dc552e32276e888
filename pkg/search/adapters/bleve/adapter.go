package bleve

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/hashicorp/go-hclog"
	"github.com/hashicorp/go-multierror"

	"github.com/repokit/testrepo/pkg/search"
)

// Adapter implements search.Provider for Bleve (embedded full-text search).
type Adapter struct {
	cfg Config
	log hclog.Logger

	mu      sync.Mutex
	indexes map[string]*recordIndex
	closed  bool

	stop chan struct{}
	wg   sync.WaitGroup
}

// Config contains Bleve configuration.
type Config struct {
	// IndexPath is the directory holding one <name>.bleve index per record
	// index.
	IndexPath string

	// RefreshInterval is how often pending writes are made visible in the
	// background. Zero disables the background refresh.
	RefreshInterval time.Duration

	Logger hclog.Logger
}

// NewAdapter creates a new Bleve search adapter.
func NewAdapter(cfg *Config) (*Adapter, error) {
	if cfg.IndexPath == "" {
		return nil, fmt.Errorf("bleve index path required")
	}

	if err := os.MkdirAll(cfg.IndexPath, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create index directory: %w", err)
	}

	log := cfg.Logger
	if log == nil {
		log = hclog.NewNullLogger()
	}

	a := &Adapter{
		cfg:     *cfg,
		log:     log.Named("bleve"),
		indexes: make(map[string]*recordIndex),
		stop:    make(chan struct{}),
	}

	if cfg.RefreshInterval > 0 {
		a.wg.Add(1)
		go a.refreshLoop(cfg.RefreshInterval)
	}

	return a, nil
}

// openOrCreateIndex opens an existing Bleve index or creates a new one.
func openOrCreateIndex(path string, indexMapping mapping.IndexMapping) (bleve.Index, error) {
	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		return bleve.New(path, indexMapping)
	}
	return idx, err
}

// createRecordMapping creates the index mapping for records.
func createRecordMapping() mapping.IndexMapping {
	indexMapping := bleve.NewIndexMapping()
	// Free-text queries run against the composite field with this analyzer.
	indexMapping.DefaultAnalyzer = "en"

	textFieldMapping := bleve.NewTextFieldMapping()
	textFieldMapping.Analyzer = "en"

	keywordFieldMapping := bleve.NewKeywordFieldMapping()

	rawFieldMapping := bleve.NewKeywordFieldMapping()
	rawFieldMapping.Name = "title.raw"
	rawFieldMapping.IncludeInAll = false

	dateFieldMapping := bleve.NewDateTimeFieldMapping()

	authorMapping := bleve.NewDocumentMapping()
	authorMapping.AddFieldMappingsAt("name", keywordFieldMapping)
	authorMapping.AddFieldMappingsAt("job", keywordFieldMapping)
	authorMapping.AddFieldMappingsAt("sex", keywordFieldMapping)

	recordMapping := bleve.NewDocumentMapping()
	recordMapping.AddFieldMappingsAt("title", textFieldMapping, rawFieldMapping)
	recordMapping.AddFieldMappingsAt("category", keywordFieldMapping)
	recordMapping.AddFieldMappingsAt("id", keywordFieldMapping)
	recordMapping.AddFieldMappingsAt("control_number", keywordFieldMapping)
	recordMapping.AddFieldMappingsAt("created", dateFieldMapping)
	recordMapping.AddFieldMappingsAt("updated", dateFieldMapping)
	recordMapping.AddSubDocumentMapping("author", authorMapping)

	indexMapping.DefaultMapping = recordMapping

	return indexMapping
}

// Name returns the provider name.
func (a *Adapter) Name() string {
	return string(search.ProviderTypeBleve)
}

// Healthy checks if the search backend is accessible.
func (a *Adapter) Healthy(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return &search.Error{Op: "Healthy", Err: search.ErrBackendUnavailable, Msg: "adapter closed"}
	}

	for name, idx := range a.indexes {
		if _, err := idx.index.DocCount(); err != nil {
			return &search.Error{
				Op:  "Healthy",
				Err: search.ErrBackendUnavailable,
				Msg: fmt.Sprintf("index %s: %v", name, err),
			}
		}
	}

	return nil
}

// RecordIndex returns the named record index, opening or creating it.
func (a *Adapter) RecordIndex(name string) (search.RecordIndex, error) {
	return a.recordIndex(name)
}

func (a *Adapter) recordIndex(name string) (*recordIndex, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, &search.Error{Op: "RecordIndex", Err: search.ErrInvalidQuery, Msg: fmt.Sprintf("invalid index name %q", name)}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, &search.Error{Op: "RecordIndex", Err: search.ErrBackendUnavailable, Msg: "adapter closed"}
	}

	if idx, ok := a.indexes[name]; ok {
		return idx, nil
	}

	path := filepath.Join(a.cfg.IndexPath, name+".bleve")
	index, err := openOrCreateIndex(path, createRecordMapping())
	if err != nil {
		return nil, &search.Error{
			Op:  "RecordIndex",
			Err: search.ErrBackendUnavailable,
			Msg: fmt.Sprintf("failed to open index %s: %v", name, err),
		}
	}

	idx := &recordIndex{
		name:    name,
		index:   index,
		pending: index.NewBatch(),
	}
	a.indexes[name] = idx
	a.log.Debug("opened index", "index", name, "path", path)

	return idx, nil
}

// Refresh makes pending writes of the named index visible.
func (a *Adapter) Refresh(ctx context.Context, name string) error {
	idx, err := a.recordIndex(name)
	if err != nil {
		return err
	}
	return idx.Refresh(ctx)
}

func (a *Adapter) refreshLoop(interval time.Duration) {
	defer a.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-a.stop:
			return
		case <-ticker.C:
			a.mu.Lock()
			indexes := make([]*recordIndex, 0, len(a.indexes))
			for _, idx := range a.indexes {
				indexes = append(indexes, idx)
			}
			a.mu.Unlock()

			for _, idx := range indexes {
				if err := idx.Refresh(context.Background()); err != nil {
					a.log.Error("error refreshing index", "index", idx.name, "error", err)
				}
			}
		}
	}
}

// Close flushes pending writes and closes all Bleve indexes.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	close(a.stop)
	a.mu.Unlock()

	a.wg.Wait()

	var result *multierror.Error
	for name, idx := range a.indexes {
		if err := idx.Refresh(context.Background()); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to flush index %s: %w", name, err))
		}
		if err := idx.index.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close index %s: %w", name, err))
		}
	}

	return result.ErrorOrNil()
}

// recordIndex implements search.RecordIndex.
type recordIndex struct {
	name  string
	index bleve.Index

	mu      sync.Mutex
	pending *bleve.Batch
}

// Name returns the index name.
func (r *recordIndex) Name() string {
	return r.name
}

// Index buffers a document write.
func (r *recordIndex) Index(ctx context.Context, id string, doc map[string]any) error {
	if id == "" {
		return &search.Error{Op: "Index", Err: search.ErrIndexingFailed, Msg: "document ID required"}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.pending.Index(id, doc); err != nil {
		return &search.Error{Op: "Index", Err: search.ErrIndexingFailed, Msg: err.Error()}
	}
	return nil
}

// Delete buffers a document removal.
func (r *recordIndex) Delete(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.pending.Delete(id)
	return nil
}

// Refresh applies the pending batch.
func (r *recordIndex) Refresh(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.pending.Size() == 0 {
		return nil
	}

	err := r.index.Batch(r.pending)
	r.pending.Reset()
	if err != nil {
		return &search.Error{Op: "Refresh", Err: search.ErrIndexingFailed, Msg: err.Error()}
	}
	return nil
}

// Count returns the number of visible documents.
func (r *recordIndex) Count(ctx context.Context) (int, error) {
	n, err := r.index.DocCount()
	if err != nil {
		return 0, &search.Error{Op: "Count", Err: search.ErrBackendUnavailable, Msg: err.Error()}
	}
	return int(n), nil
}

// Search performs a search query.
func (r *recordIndex) Search(ctx context.Context, sq *search.Query) (*search.Result, error) {
	startTime := time.Now()

	req, err := buildSearchRequest(sq)
	if err != nil {
		return nil, err
	}

	res, err := r.index.SearchInContext(ctx, req)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, &search.Error{Op: "Search", Err: search.ErrInvalidQuery, Msg: err.Error()}
	}

	hits := make([]search.Hit, 0, len(res.Hits))
	for _, hit := range res.Hits {
		hits = append(hits, search.Hit{ID: hit.ID, Score: hit.Score})
	}

	aggs := make(map[string][]search.Bucket, len(sq.Aggregations))
	for _, agg := range sq.Aggregations {
		buckets := []search.Bucket{}
		if facet := res.Facets[agg.Name]; facet != nil && facet.Terms != nil {
			for _, term := range facet.Terms.Terms() {
				buckets = append(buckets, search.Bucket{Key: term.Term, Count: term.Count})
			}
		}
		if agg.Order == search.OrderAsc {
			sort.SliceStable(buckets, func(i, j int) bool {
				return buckets[i].Count < buckets[j].Count
			})
		}
		aggs[agg.Name] = buckets
	}

	return &search.Result{
		Hits:         hits,
		Total:        int(res.Total),
		Aggregations: aggs,
		Took:         time.Since(startTime),
	}, nil
}

// buildSearchRequest translates a search query into a Bleve request.
func buildSearchRequest(sq *search.Query) (*bleve.SearchRequest, error) {
	if sq == nil {
		sq = &search.Query{}
	}
	if sq.From < 0 || sq.Size < 0 {
		return nil, &search.Error{Op: "Search", Err: search.ErrInvalidQuery, Msg: "from and size must not be negative"}
	}

	var q query.Query
	if strings.TrimSpace(sq.QueryString) == "" {
		q = bleve.NewMatchAllQuery()
	} else {
		q = bleve.NewQueryStringQuery(sq.QueryString)
	}

	var filterQueries []query.Query
	for _, f := range sq.Filters {
		if len(f.Values) == 0 {
			continue
		}

		// OR within a field
		disjunction := bleve.NewDisjunctionQuery()
		for _, value := range f.Values {
			tq := bleve.NewTermQuery(value)
			tq.SetField(f.Field)
			disjunction.AddQuery(tq)
		}
		filterQueries = append(filterQueries, disjunction)
	}

	// AND across fields
	if len(filterQueries) > 0 {
		q = bleve.NewConjunctionQuery(append([]query.Query{q}, filterQueries...)...)
	}

	size := sq.Size
	if size == 0 {
		size = 10
	}
	req := bleve.NewSearchRequestOptions(q, size, sq.From, false)

	if len(sq.Sort) > 0 {
		order := make([]string, 0, len(sq.Sort))
		for _, s := range sq.Sort {
			if s.Descending {
				order = append(order, "-"+s.Field)
			} else {
				order = append(order, s.Field)
			}
		}
		req.SortBy(order)
	}

	for _, agg := range sq.Aggregations {
		aggSize := agg.Size
		if aggSize <= 0 {
			aggSize = 100
		}
		req.AddFacet(agg.Name, bleve.NewFacetRequest(agg.Field, aggSize))
	}

	return req, nil
}
