package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/repokit/testrepo/pkg/records"
)

// Record is a record as returned by the API.
type Record struct {
	ID       string         `json:"id"`
	Metadata map[string]any `json:"metadata"`
	Revision int            `json:"revision"`
	Created  time.Time      `json:"created"`
	Updated  time.Time      `json:"updated"`
	Links    Links          `json:"links"`
}

// Links are the links of a record.
type Links struct {
	Self string `json:"self,omitempty"`
	// UI is the user interface route of the record. It is set by List.
	UI *Route `json:"ui,omitempty"`
}

// Route names a user interface route.
type Route struct {
	Name   string            `json:"name"`
	Params map[string]string `json:"params"`
}

// Options are the collection options returned by an OPTIONS request.
type Options struct {
	Facets          []FacetDefinition         `json:"facets"`
	Filters         []FilterDefinition        `json:"filters"`
	SortOptions     []records.SortOption      `json:"sort_options"`
	DefaultSort     records.DefaultSortConfig `json:"default_sort"`
	MaxResultWindow int                       `json:"max_result_window"`
}

// FacetDefinition is a facet known by a collection.
type FacetDefinition struct {
	Code  string `json:"code"`
	Facet Label  `json:"facet"`
}

// FilterDefinition is a filter known by a collection.
type FilterDefinition struct {
	Code   string `json:"code"`
	Filter Label  `json:"filter"`
}

// Label is a human readable label.
type Label struct {
	Label string `json:"label" mapstructure:"label"`
}

// Facet is a known facet merged with the aggregation of a search response.
type Facet struct {
	Code    string   `mapstructure:"code"`
	Facet   Label    `mapstructure:"facet"`
	Label   string   `mapstructure:"label"`
	Buckets []Bucket `mapstructure:"buckets"`
}

// Bucket is a single facet value.
type Bucket struct {
	Key      string `mapstructure:"key"`
	DocCount int    `mapstructure:"doc_count"`
	Label    string `mapstructure:"label"`
}

// Collection is one page of a collection listing.
type Collection struct {
	Records []Record
	Facets  []Facet
	Total   int
	Links   map[string]string
	Options *Options
}

// UILinkTransformer returns the user interface route of a listed record.
type UILinkTransformer func(collection string, rec Record, opts *Options) *Route

// RecordTransformer rewrites a listed record.
type RecordTransformer func(collection string, rec Record, opts *Options) Record

// DefaultUILink routes to "record-<collection>" with the record id.
func DefaultUILink(collection string, rec Record, _ *Options) *Route {
	return &Route{
		Name:   "record-" + collection,
		Params: map[string]string{"id": rec.ID},
	}
}

type listResponse struct {
	Aggregations map[string]map[string]any `json:"aggregations"`
	Hits         struct {
		Hits  []Record `json:"hits"`
		Total int      `json:"total"`
	} `json:"hits"`
	Links map[string]string `json:"links"`
}

// Options returns the options of a collection. Options are cached per
// collection for the configured TTL.
func (c *Client) Options(ctx context.Context, collection string) (*Options, error) {
	c.mu.Lock()
	cached, ok := c.options[collection]
	c.mu.Unlock()
	if ok && c.now().Sub(cached.fetchedAt) < c.optionsTTL {
		return cached.options, nil
	}

	var opts Options
	if err := c.do(ctx, request{
		method: http.MethodOptions,
		url:    c.CollectionURL(collection),
		expect: http.StatusOK,
		out:    &opts,
	}); err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.options[collection] = cachedOptions{options: &opts, fetchedAt: c.now()}
	c.mu.Unlock()
	return &opts, nil
}

// List searches a collection. query is rendered with StringifyQuery.
func (c *Client) List(ctx context.Context, collection string, query map[string]any) (*Collection, error) {
	opts, err := c.Options(ctx, collection)
	if err != nil {
		return nil, fmt.Errorf("error loading collection options: %w", err)
	}

	var resp listResponse
	if err := c.do(ctx, request{
		method: http.MethodGet,
		url:    c.CollectionURL(collection) + StringifyQuery(query),
		expect: http.StatusOK,
		out:    &resp,
	}); err != nil {
		return nil, err
	}

	facets, err := mergeFacets(opts.Facets, resp.Aggregations)
	if err != nil {
		return nil, err
	}

	recs := make([]Record, 0, len(resp.Hits.Hits))
	for _, rec := range resp.Hits.Hits {
		if c.recordTransformer != nil {
			rec = c.recordTransformer(collection, rec, opts)
		}
		if rec.Links.UI == nil {
			rec.Links.UI = c.uiLink(collection, rec, opts)
		}
		recs = append(recs, rec)
	}

	return &Collection{
		Records: recs,
		Facets:  facets,
		Total:   resp.Hits.Total,
		Links:   resp.Links,
		Options: opts,
	}, nil
}

// mergeFacets overlays the received aggregations on the known facet
// definitions, in definition order.
func mergeFacets(known []FacetDefinition, aggs map[string]map[string]any) ([]Facet, error) {
	facets := make([]Facet, 0, len(known))
	for _, def := range known {
		merged := map[string]any{
			"code":  def.Code,
			"facet": map[string]any{"label": def.Facet.Label},
		}
		for k, v := range aggs[def.Code] {
			merged[k] = v
		}

		var f Facet
		if err := mapstructure.Decode(merged, &f); err != nil {
			return nil, &Error{
				Type: ErrorUnknown,
				Err:  fmt.Errorf("error decoding facet %q: %w", def.Code, err),
			}
		}
		facets = append(facets, f)
	}
	return facets, nil
}
