package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/repokit/testrepo/internal/server"
	"github.com/repokit/testrepo/internal/services"
	"github.com/repokit/testrepo/pkg/models"
	"github.com/repokit/testrepo/pkg/pid"
	"github.com/repokit/testrepo/pkg/records"
	"github.com/repokit/testrepo/pkg/search"
)

// APIPrefix is the path prefix of endpoints with DefaultEndpointPrefix set.
const APIPrefix = "/api"

const maxBodyBytes = 10 << 20

// OptionsResponse is the response for OPTIONS on a record collection.
type OptionsResponse struct {
	Facets          []FacetOption             `json:"facets"`
	Filters         []FilterOption            `json:"filters"`
	SortOptions     []records.SortOption      `json:"sort_options"`
	DefaultSort     records.DefaultSortConfig `json:"default_sort"`
	MaxResultWindow int                       `json:"max_result_window"`
}

// FacetOption describes a facet offered by a collection.
type FacetOption struct {
	Code  string `json:"code"`
	Facet Label  `json:"facet"`
}

// FilterOption describes a filter accepted by a collection.
type FilterOption struct {
	Code   string `json:"code"`
	Filter Label  `json:"filter"`
}

// Label is a display label.
type Label struct {
	Label string `json:"label"`
}

// RecordsHandler handles the collection route of a record endpoint.
// Endpoints: GET, POST and OPTIONS /api/records/
func RecordsHandler(srv server.Server, key string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logArgs := []any{
			"path", r.URL.Path,
			"method", r.Method,
			"endpoint", key,
		}

		svc, ok := srv.Records[key]
		if !ok {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodGet, http.MethodHead:
			handleRecordsList(srv, svc, w, r, logArgs)
		case http.MethodPost:
			handleRecordCreate(srv, svc, w, r, logArgs)
		case http.MethodOptions:
			handleRecordsOptions(srv, svc, w, r, logArgs)
		default:
			w.Header().Set("Allow", "GET, POST, OPTIONS")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

// RecordHandler handles the item route of a record endpoint.
// Endpoints: GET, PUT and DELETE /api/records/{pid_value}
func RecordHandler(srv server.Server, key string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pidValue := r.PathValue("pid_value")
		logArgs := []any{
			"path", r.URL.Path,
			"method", r.Method,
			"endpoint", key,
			"pid", pidValue,
		}

		svc, ok := srv.Records[key]
		if !ok || pidValue == "" {
			http.Error(w, "Not found", http.StatusNotFound)
			return
		}

		switch r.Method {
		case http.MethodGet, http.MethodHead:
			handleRecordGet(srv, svc, w, r, pidValue, logArgs)
		case http.MethodPut:
			handleRecordUpdate(srv, svc, w, r, pidValue, logArgs)
		case http.MethodDelete:
			handleRecordDelete(srv, svc, w, r, pidValue, logArgs)
		default:
			w.Header().Set("Allow", "GET, PUT, DELETE")
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		}
	})
}

func handleRecordsList(srv server.Server, svc *services.RecordService, w http.ResponseWriter, r *http.Request, logArgs []any) {
	ep := svc.Endpoint()
	read, _, _, _ := ep.Permissions()
	if !read(r.Context(), nil) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	mediaType, ok := negotiate(r.Header.Get("Accept"), ep.SearchSerializers, ep.DefaultMediaType)
	if !ok {
		http.Error(w, "Not acceptable", http.StatusNotAcceptable)
		return
	}

	query := r.URL.Query()
	params := services.SearchParams{
		QueryString: query.Get("q"),
		Sort:        query.Get("sort"),
		Filters:     map[string][]string{},
	}
	var err error
	if params.Page, err = intParam(query, "page"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if params.Size, err = intParam(query, "size"); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	for _, f := range records.Filters(ep.SearchIndex) {
		if values := query[f.Key]; len(values) > 0 {
			params.Filters[f.Key] = values
		}
	}

	res, err := svc.Search(r.Context(), params)
	if err != nil {
		writeError(srv, w, err, logArgs)
		return
	}

	resp := &records.SearchResponse{
		Aggregations: map[string]records.AggregationResponse{},
		Hits: records.SearchHits{
			Hits:  make([]records.RecordResponse, 0, len(res.Records)),
			Total: res.Total,
		},
		Links: map[string]string{
			"self": pageURL(r, res.Page),
		},
	}
	for _, h := range res.Records {
		rec, err := recordResponse(r, ep, h.PIDValue, &h.Record)
		if err != nil {
			writeError(srv, w, err, logArgs)
			return
		}
		resp.Hits.Hits = append(resp.Hits.Hits, *rec)
	}
	for _, f := range records.Facets(ep.SearchIndex) {
		agg := records.AggregationResponse{
			Label:   f.Label(),
			Buckets: []records.BucketResponse{},
		}
		for _, b := range res.Aggregations[f.Key] {
			agg.Buckets = append(agg.Buckets, records.BucketResponse{
				Key:      b.Key,
				DocCount: b.Count,
				Label:    f.BucketLabel(b.Key),
			})
		}
		resp.Aggregations[f.Key] = agg
	}
	if res.Page*res.Size < res.Total {
		resp.Links["next"] = pageURL(r, res.Page+1)
	}
	if res.Page > 1 {
		resp.Links["prev"] = pageURL(r, res.Page-1)
	}

	var buf bytes.Buffer
	if err := ep.SearchSerializers[mediaType](&buf, resp); err != nil {
		writeError(srv, w, err, logArgs)
		return
	}
	w.Header().Set("Content-Type", mediaType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

func handleRecordCreate(srv server.Server, svc *services.RecordService, w http.ResponseWriter, r *http.Request, logArgs []any) {
	ep := svc.Endpoint()
	_, create, _, _ := ep.Permissions()

	data, mediaType, ok := loadRecord(svc, w, r)
	if !ok {
		return
	}

	if !create(r.Context(), data) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	rec, p, err := svc.Create(r.Context(), data)
	if err != nil {
		writeError(srv, w, err, logArgs)
		return
	}

	resp, err := recordResponse(r, ep, p.PIDValue, rec)
	if err != nil {
		writeError(srv, w, err, logArgs)
		return
	}
	w.Header().Set("Location", resp.Links["self"])
	writeRecord(srv, w, ep, mediaType, http.StatusCreated, rec.Version, resp, logArgs)
}

func handleRecordsOptions(srv server.Server, svc *services.RecordService, w http.ResponseWriter, r *http.Request, logArgs []any) {
	ep := svc.Endpoint()
	index := ep.SearchIndex

	resp := OptionsResponse{
		Facets:          []FacetOption{},
		Filters:         []FilterOption{},
		SortOptions:     records.SortOptions(index),
		DefaultSort:     records.RESTDefaultSort[index],
		MaxResultWindow: ep.MaxResultWindow,
	}
	for _, f := range records.Facets(index) {
		resp.Facets = append(resp.Facets, FacetOption{Code: f.Key, Facet: Label{Label: f.Label()}})
	}
	for _, f := range records.Filters(index) {
		resp.Filters = append(resp.Filters, FilterOption{Code: f.Key, Filter: Label{Label: f.Label()}})
	}

	w.Header().Set("Allow", "GET, POST, OPTIONS")
	w.Header().Set("Content-Type", records.MediaTypeJSON)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		srv.Logger.Error("error encoding options response", append(logArgs, "error", err)...)
	}
}

func handleRecordGet(srv server.Server, svc *services.RecordService, w http.ResponseWriter, r *http.Request, pidValue string, logArgs []any) {
	ep := svc.Endpoint()
	read, _, _, _ := ep.Permissions()

	mediaType, ok := negotiate(r.Header.Get("Accept"), ep.RecordSerializers, ep.DefaultMediaType)
	if !ok {
		http.Error(w, "Not acceptable", http.StatusNotAcceptable)
		return
	}

	_, rec, err := svc.Get(r.Context(), pidValue)
	if err != nil {
		writeError(srv, w, err, logArgs)
		return
	}

	resp, err := recordResponse(r, ep, pidValue, rec)
	if err != nil {
		writeError(srv, w, err, logArgs)
		return
	}
	if !read(r.Context(), resp.Metadata) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if match := r.Header.Get("If-None-Match"); match != "" && match == etag(rec.Version) {
		w.Header().Set("ETag", etag(rec.Version))
		w.WriteHeader(http.StatusNotModified)
		return
	}

	writeRecord(srv, w, ep, mediaType, http.StatusOK, rec.Version, resp, logArgs)
}

func handleRecordUpdate(srv server.Server, svc *services.RecordService, w http.ResponseWriter, r *http.Request, pidValue string, logArgs []any) {
	ep := svc.Endpoint()
	_, _, update, _ := ep.Permissions()

	revision, err := parseETag(r.Header.Get("If-Match"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	data, mediaType, ok := loadRecord(svc, w, r)
	if !ok {
		return
	}

	_, current, err := svc.Get(r.Context(), pidValue)
	if err != nil {
		writeError(srv, w, err, logArgs)
		return
	}
	currentData, err := current.JSON.Map()
	if err != nil {
		writeError(srv, w, err, logArgs)
		return
	}
	if !update(r.Context(), currentData) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	rec, err := svc.Update(r.Context(), pidValue, data, revision)
	if err != nil {
		writeError(srv, w, err, logArgs)
		return
	}

	resp, err := recordResponse(r, ep, pidValue, rec)
	if err != nil {
		writeError(srv, w, err, logArgs)
		return
	}
	writeRecord(srv, w, ep, mediaType, http.StatusOK, rec.Version, resp, logArgs)
}

func handleRecordDelete(srv server.Server, svc *services.RecordService, w http.ResponseWriter, r *http.Request, pidValue string, logArgs []any) {
	ep := svc.Endpoint()
	_, _, _, del := ep.Permissions()

	_, rec, err := svc.Get(r.Context(), pidValue)
	if err != nil {
		writeError(srv, w, err, logArgs)
		return
	}
	data, err := rec.JSON.Map()
	if err != nil {
		writeError(srv, w, err, logArgs)
		return
	}
	if !del(r.Context(), data) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := svc.Delete(r.Context(), pidValue); err != nil {
		writeError(srv, w, err, logArgs)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// loadRecord decodes the request body with the loader registered for its
// content type and negotiates the response media type. It writes the error
// response and returns false on failure.
func loadRecord(svc *services.RecordService, w http.ResponseWriter, r *http.Request) (map[string]any, string, bool) {
	ep := svc.Endpoint()

	loader, ok := ep.RecordLoaders[requestMediaType(r)]
	if !ok {
		http.Error(w, "Unsupported media type", http.StatusUnsupportedMediaType)
		return nil, "", false
	}

	mediaType, ok := negotiate(r.Header.Get("Accept"), ep.RecordSerializers, ep.DefaultMediaType)
	if !ok {
		http.Error(w, "Not acceptable", http.StatusNotAcceptable)
		return nil, "", false
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		http.Error(w, "Error reading request body", http.StatusBadRequest)
		return nil, "", false
	}

	data, err := loader(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil, "", false
	}

	return data, mediaType, true
}

func writeRecord(srv server.Server, w http.ResponseWriter, ep *records.Endpoint, mediaType string, status, revision int, resp *records.RecordResponse, logArgs []any) {
	var buf bytes.Buffer
	if err := ep.RecordSerializers[mediaType](&buf, resp); err != nil {
		writeError(srv, w, err, logArgs)
		return
	}
	w.Header().Set("Content-Type", mediaType)
	w.Header().Set("ETag", etag(revision))
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// recordResponse builds the JSON v1 representation of a stored record.
func recordResponse(r *http.Request, ep *records.Endpoint, pidValue string, rec *models.Record) (*records.RecordResponse, error) {
	data, err := rec.JSON.Map()
	if err != nil {
		return nil, err
	}
	return &records.RecordResponse{
		ID:       pidValue,
		Metadata: data,
		Revision: rec.Version,
		Created:  rec.CreatedAt,
		Updated:  rec.UpdatedAt,
		Links: map[string]string{
			"self": baseURL(r) + ItemPath(ep, pidValue),
		},
	}, nil
}

// EndpointPrefix returns the path prefix the endpoint's routes are mounted
// under.
func EndpointPrefix(ep *records.Endpoint) string {
	if ep.DefaultEndpointPrefix {
		return APIPrefix
	}
	return ""
}

// ItemPath returns the path of a single record.
func ItemPath(ep *records.Endpoint, pidValue string) string {
	return EndpointPrefix(ep) +
		strings.Replace(ep.ItemRoute, records.PIDValuePlaceholder, url.PathEscape(pidValue), 1)
}

func intParam(q url.Values, name string) (int, error) {
	v := q.Get(name)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		return 0, errors.New("invalid " + name + " parameter")
	}
	return n, nil
}

// writeError maps service errors to HTTP status codes.
func writeError(srv server.Server, w http.ResponseWriter, err error, logArgs []any) {
	switch {
	case errors.Is(err, pid.ErrPIDDoesNotExist), errors.Is(err, pid.ErrPIDMissingObject):
		http.Error(w, "Record not found", http.StatusNotFound)
	case errors.Is(err, pid.ErrPIDDeleted):
		http.Error(w, "Record has been deleted", http.StatusGone)
	case errors.Is(err, services.ErrRevisionMismatch):
		http.Error(w, "Record revision does not match", http.StatusPreconditionFailed)
	case errors.Is(err, search.ErrResultWindowExceeded), errors.Is(err, search.ErrInvalidQuery):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		srv.Logger.Error("error handling request", append(logArgs, "error", err)...)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}
