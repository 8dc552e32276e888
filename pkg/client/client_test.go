package client

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const optionsBody = `{
	"facets": [
		{"code": "category", "facet": {"label": "Category"}},
		{"code": "author.sex", "facet": {"label": "Sex"}}
	],
	"filters": [{"code": "category", "filter": {"label": "Category"}}],
	"sort_options": [{"code": "bestmatch", "title": "Best match", "fields": ["-_score"], "default_order": "desc", "order": 1}],
	"default_sort": {"noquery": "mostrecent", "query": "bestmatch"},
	"max_result_window": 10000
}`

const listBody = `{
	"aggregations": {
		"category": {"buckets": [{"key": "Book", "doc_count": 2}, {"key": "Article", "doc_count": 1}]}
	},
	"hits": {
		"hits": [
			{"id": "1", "metadata": {"title": "first"}, "revision": 1, "links": {"self": "https://x/api/records/1"}},
			{"id": "2", "metadata": {"title": "second"}, "revision": 3, "links": {"self": "https://x/api/records/2"}}
		],
		"total": 2
	},
	"links": {"self": "https://x/api/records/?page=1"}
}`

type fakeAPI struct {
	optionsCalls atomic.Int32
	lastQuery    atomic.Value
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	switch {
	case r.Method == http.MethodOptions && r.URL.Path == "/api/records/":
		f.optionsCalls.Add(1)
		_, _ = io.WriteString(w, optionsBody)
	case r.Method == http.MethodGet && r.URL.Path == "/api/records/":
		f.lastQuery.Store(r.URL.RawQuery)
		_, _ = io.WriteString(w, listBody)
	case r.Method == http.MethodPost && r.URL.Path == "/api/records/":
		var data map[string]any
		if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if data["title"] == "server error" {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"id":       "7",
			"metadata": data,
			"revision": 1,
		})
	case r.Method == http.MethodGet && r.URL.Path == "/api/records/7":
		_, _ = io.WriteString(w, `{"id": "7", "metadata": {"title": "x"}, "revision": 2}`)
	case r.Method == http.MethodPut && r.URL.Path == "/api/records/7":
		if r.Header.Get("If-Match") != `"2"` {
			http.Error(w, "precondition failed", http.StatusPreconditionFailed)
			return
		}
		_, _ = io.WriteString(w, `{"id": "7", "metadata": {"title": "y"}, "revision": 3}`)
	case r.Method == http.MethodDelete && r.URL.Path == "/api/records/7":
		w.WriteHeader(http.StatusNoContent)
	case r.URL.Path == "/api/secret/":
		http.Error(w, "forbidden", http.StatusForbidden)
	default:
		http.NotFound(w, r)
	}
}

func newTestClient(t *testing.T, cfg Config) (*Client, *fakeAPI) {
	t.Helper()

	api := &fakeAPI{}
	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	cfg.BaseURL = ts.URL + "/api"
	c, err := New(cfg)
	require.NoError(t, err)
	return c, api
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(Config{})
	require.Error(t, err)

	_, err = New(Config{BaseURL: "not a url"})
	require.Error(t, err)
}

func TestClient_List(t *testing.T) {
	c, api := newTestClient(t, Config{})

	coll, err := c.List(context.Background(), "records", map[string]any{
		"q":        "title:first",
		"category": []string{"Book"},
	})
	require.NoError(t, err)

	assert.Equal(t, "category=Book&q=title%3Afirst", api.lastQuery.Load())
	assert.Equal(t, 2, coll.Total)
	require.Len(t, coll.Records, 2)
	assert.Equal(t, "https://x/api/records/1", coll.Records[0].Links.Self)
	assert.Equal(t, &Route{Name: "record-records", Params: map[string]string{"id": "1"}}, coll.Records[0].Links.UI)
	assert.Equal(t, 3, coll.Records[1].Revision)

	require.Len(t, coll.Facets, 2)
	assert.Equal(t, "category", coll.Facets[0].Code)
	assert.Equal(t, "Category", coll.Facets[0].Facet.Label)
	assert.Equal(t, []Bucket{{Key: "Book", DocCount: 2}, {Key: "Article", DocCount: 1}}, coll.Facets[0].Buckets)
	assert.Equal(t, "author.sex", coll.Facets[1].Code)
	assert.Empty(t, coll.Facets[1].Buckets)

	require.NotNil(t, coll.Options)
	assert.Equal(t, 10000, coll.Options.MaxResultWindow)
	assert.Equal(t, "bestmatch", coll.Options.DefaultSort.Query)
}

func TestClient_ListTransformers(t *testing.T) {
	c, _ := newTestClient(t, Config{
		RecordTransformer: func(collection string, rec Record, _ *Options) Record {
			if rec.ID == "2" {
				rec.Links.UI = &Route{Name: "custom"}
			}
			rec.Metadata["collection"] = collection
			return rec
		},
		UILink: func(collection string, rec Record, _ *Options) *Route {
			return &Route{Name: "detail", Params: map[string]string{"pid": rec.ID}}
		},
	})

	coll, err := c.List(context.Background(), "records", nil)
	require.NoError(t, err)
	require.Len(t, coll.Records, 2)

	assert.Equal(t, "detail", coll.Records[0].Links.UI.Name)
	assert.Equal(t, "custom", coll.Records[1].Links.UI.Name)
	assert.Equal(t, "records", coll.Records[0].Metadata["collection"])
}

func TestClient_OptionsCache(t *testing.T) {
	c, api := newTestClient(t, Config{OptionsTTL: time.Hour})

	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	ctx := context.Background()
	_, err := c.Options(ctx, "records")
	require.NoError(t, err)
	_, err = c.List(ctx, "records", nil)
	require.NoError(t, err)
	assert.Equal(t, int32(1), api.optionsCalls.Load())

	now = now.Add(2 * time.Hour)
	_, err = c.Options(ctx, "records")
	require.NoError(t, err)
	assert.Equal(t, int32(2), api.optionsCalls.Load())
}

func TestClient_RecordLifecycle(t *testing.T) {
	c, _ := newTestClient(t, Config{})
	ctx := context.Background()

	created, err := c.Create(ctx, "records", map[string]any{"title": "x"})
	require.NoError(t, err)
	assert.Equal(t, "7", created.ID)
	assert.Equal(t, "x", created.Metadata["title"])

	rec, err := c.Get(ctx, "records", "7")
	require.NoError(t, err)
	assert.Equal(t, 2, rec.Revision)

	_, err = c.Update(ctx, "records", "7", map[string]any{"title": "y"}, 1)
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorClient))

	updated, err := c.Update(ctx, "records", "7", map[string]any{"title": "y"}, rec.Revision)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Revision)

	require.NoError(t, c.Delete(ctx, "records", "7"))
}

func TestClient_Errors(t *testing.T) {
	c, _ := newTestClient(t, Config{})
	ctx := context.Background()

	tests := []struct {
		name       string
		call       func() error
		wantType   ErrorType
		wantStatus int
	}{
		{
			name: "not found",
			call: func() error {
				_, err := c.Get(ctx, "records", "404")
				return err
			},
			wantType:   ErrorClient,
			wantStatus: http.StatusNotFound,
		},
		{
			name: "forbidden",
			call: func() error {
				_, err := c.Get(ctx, "secret", "")
				return err
			},
			wantType:   ErrorUnauthorized,
			wantStatus: http.StatusForbidden,
		},
		{
			name: "server error",
			call: func() error {
				_, err := c.Create(ctx, "records", map[string]any{"title": "server error"})
				return err
			},
			wantType:   ErrorServer,
			wantStatus: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			require.Error(t, err)

			var cerr *Error
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.wantType, cerr.Type)
			assert.Equal(t, tt.wantStatus, cerr.Status)
			assert.NotEmpty(t, cerr.Reason)
		})
	}
}

func TestClient_ResponseMissing(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, err := New(Config{BaseURL: url + "/api"})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "records", "1")
	require.Error(t, err)
	assert.True(t, IsType(err, ErrorResponseMissing))
}

func TestResponseError(t *testing.T) {
	tests := []struct {
		status int
		want   ErrorType
	}{
		{http.StatusUnauthorized, ErrorUnauthorized},
		{http.StatusForbidden, ErrorUnauthorized},
		{http.StatusMethodNotAllowed, ErrorUnauthorized},
		{http.StatusBadRequest, ErrorClient},
		{http.StatusGone, ErrorClient},
		{http.StatusInternalServerError, ErrorServer},
		{http.StatusBadGateway, ErrorServer},
		{http.StatusOK, ErrorUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			rec := httptest.NewRecorder()
			rec.WriteHeader(tt.status)
			_, _ = rec.WriteString("reason")

			err := responseError(rec.Result())
			assert.Equal(t, tt.want, err.Type)
			assert.Equal(t, tt.status, err.Status)
			assert.Equal(t, "reason", err.Reason)
		})
	}
}
