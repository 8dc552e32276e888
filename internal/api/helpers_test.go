package api

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repokit/testrepo/pkg/records"
)

func TestNegotiate(t *testing.T) {
	available := map[string]int{"application/json": 1, "application/x-custom": 2}

	tests := []struct {
		accept string
		want   string
		ok     bool
	}{
		{accept: "", want: "application/json", ok: true},
		{accept: "*/*", want: "application/json", ok: true},
		{accept: "application/*", want: "application/json", ok: true},
		{accept: "application/x-custom", want: "application/x-custom", ok: true},
		{accept: "text/html, application/json;q=0.9", want: "application/json", ok: true},
		{accept: "text/html", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.accept, func(t *testing.T) {
			got, ok := negotiate(tt.accept, available, "application/json")
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseETag(t *testing.T) {
	tests := []struct {
		header  string
		want    int
		wantErr bool
	}{
		{header: "", want: 0},
		{header: "*", want: 0},
		{header: `"3"`, want: 3},
		{header: `W/"4"`, want: 4},
		{header: `"abc"`, wantErr: true},
		{header: `"0"`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			got, err := parseETag(tt.header)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageURL(t *testing.T) {
	r := httptest.NewRequest("GET", "http://example.org/api/records/?q=x&page=1", nil)
	assert.Equal(t, "http://example.org/api/records/?page=3&q=x", pageURL(r, 3))
}

func TestItemPath(t *testing.T) {
	ep := records.RESTEndpoints[records.EndpointKey]
	assert.Equal(t, "/api/records/12", ItemPath(ep, "12"))

	noPrefix := *ep
	noPrefix.DefaultEndpointPrefix = false
	assert.Equal(t, "/records/a%20b", ItemPath(&noPrefix, "a b"))
}
