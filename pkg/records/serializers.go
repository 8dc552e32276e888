package records

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// RecordResponse is the JSON v1 representation of a record.
type RecordResponse struct {
	ID       string            `json:"id"`
	Metadata map[string]any    `json:"metadata"`
	Revision int               `json:"revision"`
	Created  time.Time         `json:"created"`
	Updated  time.Time         `json:"updated"`
	Links    map[string]string `json:"links"`
}

// SearchResponse is the JSON v1 representation of a search result page.
type SearchResponse struct {
	Aggregations map[string]AggregationResponse `json:"aggregations"`
	Hits         SearchHits                     `json:"hits"`
	Links        map[string]string              `json:"links"`
}

// SearchHits holds one page of hits and the total hit count.
type SearchHits struct {
	Hits  []RecordResponse `json:"hits"`
	Total int              `json:"total"`
}

// AggregationResponse is a single facet in a search response.
type AggregationResponse struct {
	Label   string           `json:"label,omitempty"`
	Buckets []BucketResponse `json:"buckets"`
}

// BucketResponse is a single facet value and its document count.
type BucketResponse struct {
	Key      string `json:"key"`
	DocCount int    `json:"doc_count"`
	Label    string `json:"label,omitempty"`
}

// RecordSerializer writes a single record.
type RecordSerializer func(w io.Writer, r *RecordResponse) error

// SearchSerializer writes a search result page.
type SearchSerializer func(w io.Writer, s *SearchResponse) error

// RecordLoader decodes a request body into record metadata.
type RecordLoader func(body []byte) (map[string]any, error)

// JSONV1RecordSerializer writes r as JSON.
func JSONV1RecordSerializer(w io.Writer, r *RecordResponse) error {
	return json.NewEncoder(w).Encode(r)
}

// JSONV1SearchSerializer writes s as JSON.
func JSONV1SearchSerializer(w io.Writer, s *SearchResponse) error {
	if s.Hits.Hits == nil {
		s.Hits.Hits = []RecordResponse{}
	}
	if s.Aggregations == nil {
		s.Aggregations = map[string]AggregationResponse{}
	}
	return json.NewEncoder(w).Encode(s)
}

// JSONLoader returns the request JSON object unchanged.
func JSONLoader(body []byte) (map[string]any, error) {
	var data map[string]any
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, fmt.Errorf("error decoding request body: %w", err)
	}
	if data == nil {
		return nil, fmt.Errorf("request body must be a JSON object")
	}
	return data, nil
}
