package seed

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repokit/testrepo/pkg/client"
	"github.com/repokit/testrepo/pkg/records"
)

func TestGenerator_Words(t *testing.T) {
	g := NewGenerator(42)

	tests := []struct {
		name     string
		min, max int
	}{
		{"default range", 5, 10},
		{"single word", 1, 1},
		{"fixed length", 7, 7},
		{"inverted range", 4, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hi := max(tt.min, tt.max)
			for range 50 {
				words := g.Words(tt.min, tt.max)
				n := len(strings.Fields(words))
				assert.GreaterOrEqual(t, n, tt.min)
				assert.LessOrEqual(t, n, hi)
				assert.False(t, strings.HasSuffix(words, "."), words)
			}
		})
	}

	assert.Empty(t, g.Words(0, 0))
}

func TestGenerator_WordsMatchesDrawnCount(t *testing.T) {
	tests := []struct {
		name     string
		min, max int
	}{
		{"default range", 5, 10},
		{"wide range", 1, 40},
		{"long fixed length", 25, 25},
		{"inverted range", 6, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for seed := int64(1); seed <= 25; seed++ {
				want := gofakeit.New(seed).Number(tt.min, max(tt.min, tt.max))
				words := NewGenerator(seed).Words(tt.min, tt.max)
				assert.Len(t, strings.Fields(words), want, "seed %d: %q", seed, words)
			}
		})
	}
}

func TestGenerator_Category(t *testing.T) {
	g := NewGenerator(1)

	seen := map[records.Category]bool{}
	for range 300 {
		c := g.Category()
		require.True(t, c.Valid(), c)
		seen[c] = true
	}
	assert.Len(t, seen, len(records.Categories))
}

func TestGenerator_Deterministic(t *testing.T) {
	a := NewGenerator(7).Batch(3, 5, 10)
	b := NewGenerator(7).Batch(3, 5, 10)
	assert.Equal(t, a, b)
}

func TestGenerator_Batch(t *testing.T) {
	tests := []struct {
		count    int
		wantJobs int
	}{
		{count: 0, wantJobs: 0},
		{count: 1, wantJobs: 1},
		{count: 4, wantJobs: 1},
		{count: 20, wantJobs: 4},
	}

	for _, tt := range tests {
		g := NewGenerator(3)
		recs := g.Batch(tt.count, 5, 10)
		require.Len(t, recs, tt.count)

		jobs := map[string]bool{}
		for _, rec := range recs {
			require.NoError(t, rec.Validate())
			jobs[rec.Author.Job] = true
		}
		assert.LessOrEqual(t, len(jobs), tt.wantJobs)
	}
}

func TestGenerator_Profile(t *testing.T) {
	p := NewGenerator(11).Profile()
	require.NoError(t, p.Validate())
	assert.NotEmpty(t, p.Name)
	assert.Contains(t, []string{"M", "F"}, p.Sex)
	assert.NotEmpty(t, p.CurrentLocation[0])
	assert.NotEmpty(t, p.CurrentLocation[1])
	assert.NotEmpty(t, p.Website)
}

type recordingAPI struct {
	posts  atomic.Int32
	failAt int32
}

func (a *recordingAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/api/records/" {
		http.NotFound(w, r)
		return
	}
	n := a.posts.Add(1)

	var rec records.Record
	if err := json.NewDecoder(r.Body).Decode(&rec); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if a.failAt > 0 && n == a.failAt {
		http.Error(w, "boom", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(map[string]any{"id": rec.Title, "revision": 1})
}

func newSeeder(t *testing.T, api *recordingAPI) *Seeder {
	t.Helper()

	ts := httptest.NewServer(api)
	t.Cleanup(ts.Close)

	c, err := client.New(client.Config{BaseURL: ts.URL + "/api/"})
	require.NoError(t, err)
	return &Seeder{Client: c, Collection: "records"}
}

func TestSeeder_Run(t *testing.T) {
	api := &recordingAPI{}
	s := newSeeder(t, api)

	var ids []string
	s.OnCreated = func(_ int, rec *client.Record) { ids = append(ids, rec.ID) }

	recs := NewGenerator(5).Batch(20, 5, 10)
	created, err := s.Run(context.Background(), recs)
	require.NoError(t, err)
	assert.Equal(t, 20, created)
	assert.Equal(t, int32(20), api.posts.Load())
	require.Len(t, ids, 20)
	assert.Equal(t, recs[0].Title, ids[0])
}

func TestSeeder_RunAbortsOnFailure(t *testing.T) {
	api := &recordingAPI{failAt: 3}
	s := newSeeder(t, api)

	created, err := s.Run(context.Background(), NewGenerator(5).Batch(10, 5, 10))
	require.Error(t, err)
	assert.Equal(t, 2, created)
	assert.Equal(t, int32(3), api.posts.Load())

	var serr *Error
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, 2, serr.Index)
	assert.True(t, client.IsType(err, client.ErrorServer))
}

func TestSeeder_RunInvalidRecord(t *testing.T) {
	api := &recordingAPI{}
	s := newSeeder(t, api)

	recs := NewGenerator(5).Batch(2, 5, 10)
	recs[1].Category = "Poem"

	created, err := s.Run(context.Background(), recs)
	require.Error(t, err)
	assert.Equal(t, 1, created)
	assert.Equal(t, int32(1), api.posts.Load())

	var serr *Error
	require.True(t, errors.As(err, &serr))
	assert.Equal(t, 1, serr.Index)
}

func TestSeeder_RunCanceled(t *testing.T) {
	api := &recordingAPI{}
	s := newSeeder(t, api)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	created, err := s.Run(ctx, NewGenerator(5).Batch(2, 5, 10))
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, created)
	assert.Zero(t, api.posts.Load())
}
