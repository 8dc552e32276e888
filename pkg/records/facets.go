package records

import (
	"sort"
	"strings"

	"github.com/repokit/testrepo/pkg/search"
)

const (
	// DefaultFacetSize is the bucket count of TermFacet when size is 0.
	DefaultFacetSize = 100

	facetKeyTemplate  = "{facet_key}"
	valueKeyTemplate  = "{value_key}"
	filterKeyTemplate = "{filter_key}"
)

// TermsAggregation is a terms aggregation ordered by document count.
type TermsAggregation struct {
	Field string
	Size  int
	Order search.Order
}

// TermFacet returns a terms aggregation on field ordered by count. An empty
// order means descending and a zero size means DefaultFacetSize.
func TermFacet(field string, order search.Order, size int) TermsAggregation {
	if order == "" {
		order = search.OrderDesc
	}
	if size == 0 {
		size = DefaultFacetSize
	}
	return TermsAggregation{Field: field, Size: size, Order: order}
}

// Facet is a named aggregation exposed to clients.
type Facet struct {
	Key   string
	Terms TermsAggregation

	// LabelTemplate and ValueTemplate render the facet label and bucket
	// labels.
	LabelTemplate string
	ValueTemplate string

	// PossibleValues maps bucket keys to fixed labels.
	PossibleValues map[string]string
}

// TranslateFacet attaches fixed value labels to an aggregation.
func TranslateFacet(terms TermsAggregation, possibleValues map[string]string) Facet {
	return Facet{Terms: terms, PossibleValues: possibleValues}
}

// TranslateFacets names each facet by its key and applies the label and
// value templates. The result is ordered by key.
func TranslateFacets(facets map[string]Facet, label, value string) []Facet {
	out := make([]Facet, 0, len(facets))
	for key, f := range facets {
		f.Key = key
		f.LabelTemplate = label
		f.ValueTemplate = value
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Label renders the facet label.
func (f Facet) Label() string {
	if f.LabelTemplate == "" {
		return f.Key
	}
	return strings.ReplaceAll(f.LabelTemplate, facetKeyTemplate, f.Key)
}

// BucketLabel renders the label of a bucket key.
func (f Facet) BucketLabel(key string) string {
	if l, ok := f.PossibleValues[key]; ok {
		return l
	}
	if f.ValueTemplate == "" {
		return key
	}
	return strings.ReplaceAll(f.ValueTemplate, valueKeyTemplate, key)
}

// Aggregation returns the search aggregation of the facet.
func (f Facet) Aggregation() search.Aggregation {
	return search.Aggregation{
		Name:  f.Key,
		Field: f.Terms.Field,
		Size:  f.Terms.Size,
		Order: f.Terms.Order,
	}
}

// Filter is a named terms filter accepted as a list query parameter.
type Filter struct {
	Key           string
	Field         string
	LabelTemplate string
}

// TermsFilter returns a filter matching any of the given values of field.
func TermsFilter(field string) Filter {
	return Filter{Field: field}
}

// TranslateFilters names each filter by its key and applies the label
// template. The result is ordered by key.
func TranslateFilters(filters map[string]Filter, label string) []Filter {
	out := make([]Filter, 0, len(filters))
	for key, f := range filters {
		f.Key = key
		f.LabelTemplate = label
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Label renders the filter label.
func (f Filter) Label() string {
	if f.LabelTemplate == "" {
		return f.Key
	}
	return strings.ReplaceAll(f.LabelTemplate, filterKeyTemplate, f.Key)
}

// Apply returns the search filter for the given values.
func (f Filter) Apply(values []string) search.Filter {
	return search.Filter{Field: f.Field, Values: values}
}

// SortOption is a named sort order offered to clients.
type SortOption struct {
	Name         string       `json:"code"`
	Title        string       `json:"title"`
	Fields       []string     `json:"fields"`
	DefaultOrder search.Order `json:"default_order"`
	Order        int          `json:"order"`
}

// SortFields returns the sort of the option. reverse flips the default order.
func (o SortOption) SortFields(reverse bool) []search.SortField {
	desc := o.DefaultOrder == search.OrderDesc
	if reverse {
		desc = !desc
	}
	fields := make([]search.SortField, 0, len(o.Fields))
	for _, f := range o.Fields {
		fields = append(fields, search.SortField{Field: f, Descending: desc})
	}
	return fields
}

// DefaultSortConfig names the sort option used without and with a query.
type DefaultSortConfig struct {
	NoQuery string `json:"noquery"`
	Query   string `json:"query"`
}

// SearchConfig holds the facets and filters of an index.
type SearchConfig struct {
	Aggs    []Facet
	Filters []Filter
}

var recordFacets = map[string]Facet{
	"category": {Terms: TermFacet("category", "", 0)},
	"job":      {Terms: TermFacet("author.job", "", 0)},
	"sex": TranslateFacet(TermFacet("author.sex", "", 0), map[string]string{
		"M": "Male",
		"F": "Female",
	}),
}

var recordFilters = map[string]Filter{
	"category": TermsFilter("category"),
	"job":      TermsFilter("author.job"),
	"sex":      TermsFilter("author.sex"),
}

// RESTFacets holds the search configuration per index.
var RESTFacets = map[string]SearchConfig{
	IndexName: {
		Aggs:    TranslateFacets(recordFacets, facetKeyTemplate, valueKeyTemplate),
		Filters: TranslateFilters(recordFilters, filterKeyTemplate),
	},
}

// RESTSortOptions holds the sort options per index.
var RESTSortOptions = map[string]map[string]SortOption{
	IndexName: {
		"alphabetical": {
			Name:         "alphabetical",
			Title:        "Alphabetical",
			Fields:       []string{"title.raw", "author.name", "id"},
			DefaultOrder: search.OrderAsc,
			Order:        1,
		},
	},
}

// RESTDefaultSort holds the default sort per index.
var RESTDefaultSort = map[string]DefaultSortConfig{
	IndexName: {
		NoQuery: "alphabetical",
		Query:   "alphabetical",
	},
}

// Facets returns the facets of index.
func Facets(index string) []Facet {
	return RESTFacets[index].Aggs
}

// Filters returns the filters of index.
func Filters(index string) []Filter {
	return RESTFacets[index].Filters
}

// SortOptions returns the sort options of index ordered by their Order.
func SortOptions(index string) []SortOption {
	opts := make([]SortOption, 0, len(RESTSortOptions[index]))
	for name, o := range RESTSortOptions[index] {
		o.Name = name
		opts = append(opts, o)
	}
	sort.Slice(opts, func(i, j int) bool {
		if opts[i].Order != opts[j].Order {
			return opts[i].Order < opts[j].Order
		}
		return opts[i].Name < opts[j].Name
	})
	return opts
}

// LookupSortOption returns the named sort option of index.
func LookupSortOption(index, name string) (SortOption, bool) {
	o, ok := RESTSortOptions[index][name]
	if ok {
		o.Name = name
	}
	return o, ok
}

// DefaultSort returns the name of the default sort option of index.
func DefaultSort(index string, hasQuery bool) string {
	cfg := RESTDefaultSort[index]
	if hasQuery {
		return cfg.Query
	}
	return cfg.NoQuery
}

// RecordToIndex returns the index a record is written to.
func RecordToIndex(metadata map[string]any) string {
	return IndexName
}
