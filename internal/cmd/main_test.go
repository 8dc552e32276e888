package cmd

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/mitchellh/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repokit/testrepo/internal/version"
)

// fakeRecordsAPI accepts POST /api/records/ and answers 201 until failAt.
type fakeRecordsAPI struct {
	posts  atomic.Int32
	failAt int32
}

func (a *fakeRecordsAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/api/records/" {
		http.NotFound(w, r)
		return
	}
	if r.Header.Get("Content-Type") != "application/json; charset=utf-8" {
		http.Error(w, "unsupported media type", http.StatusUnsupportedMediaType)
		return
	}
	n := a.posts.Add(1)
	if a.failAt > 0 && n == a.failAt {
		http.Error(w, "invalid record", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	fmt.Fprintf(w, `{"id": "%d", "revision": 1}`, n)
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.hcl")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRun_Version(t *testing.T) {
	for _, args := range [][]string{
		{"testrepo", "version"},
		{"testrepo", "-version"},
		{"testrepo", "-v"},
	} {
		ui := cli.NewMockUi()
		code := run(args, ui)
		assert.Equal(t, 0, code)
		assert.Equal(t, version.Version+"\n", ui.OutputWriter.String())
	}
}

func TestRun_IndexPrintsHelp(t *testing.T) {
	ui := cli.NewMockUi()
	code := run([]string{"testrepo", "index"}, ui)
	assert.Equal(t, 1, code)
	assert.Contains(t, ui.ErrorWriter.String(), "reindex")
	assert.Contains(t, ui.ErrorWriter.String(), "run")
}

func TestRun_RecordsWithServerName(t *testing.T) {
	api := &fakeRecordsAPI{}
	ts := httptest.NewTLSServer(api)
	defer ts.Close()

	path := writeConfig(t, fmt.Sprintf("server_name = %q\n", strings.TrimPrefix(ts.URL, "https://")))

	ui := cli.NewMockUi()
	code := run([]string{"testrepo", "records", "-config", path, "-seed", "1"}, ui)
	require.Equal(t, 0, code, ui.ErrorWriter.String())

	assert.Equal(t, int32(20), api.posts.Load())
	assert.Contains(t, ui.OutputWriter.String(), "Created 20 record(s)")
}

func TestRun_RecordsCount(t *testing.T) {
	api := &fakeRecordsAPI{}
	ts := httptest.NewServer(api)
	defer ts.Close()

	ui := cli.NewMockUi()
	code := run([]string{"testrepo", "records",
		"-url", ts.URL + "/api/",
		"-count", "7",
		"-min-words", "2",
		"-max-words", "3",
	}, ui)
	require.Equal(t, 0, code, ui.ErrorWriter.String())
	assert.Equal(t, int32(7), api.posts.Load())
}

func TestRun_RecordsAbortsOnFirstFailure(t *testing.T) {
	api := &fakeRecordsAPI{failAt: 4}
	ts := httptest.NewServer(api)
	defer ts.Close()

	ui := cli.NewMockUi()
	code := run([]string{"testrepo", "records", "-url", ts.URL + "/api/"}, ui)
	assert.Equal(t, 1, code)

	assert.Equal(t, int32(4), api.posts.Load())
	assert.Contains(t, ui.ErrorWriter.String(), "error creating record 4 of 20")
	assert.Contains(t, ui.ErrorWriter.String(), "3 record(s) were created")
}

func TestRun_RecordsRejectsTLSFailureWhenVerifying(t *testing.T) {
	api := &fakeRecordsAPI{}
	ts := httptest.NewTLSServer(api)
	defer ts.Close()

	ui := cli.NewMockUi()
	code := run([]string{"testrepo", "records",
		"-url", ts.URL + "/api/",
		"-tls-skip-verify=false",
	}, ui)
	assert.Equal(t, 1, code)
	assert.Zero(t, api.posts.Load())
	assert.Contains(t, ui.ErrorWriter.String(), "responseMissing")
}

func TestRun_FlagErrors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{
			name:    "records without config or url",
			args:    []string{"testrepo", "records"},
			wantErr: "config flag is required",
		},
		{
			name:    "records with inverted word range",
			args:    []string{"testrepo", "records", "-url", "http://localhost/api/", "-min-words", "5", "-max-words", "2"},
			wantErr: "min-words",
		},
		{
			name:    "records with missing config file",
			args:    []string{"testrepo", "records", "-config", "/nonexistent/config.hcl"},
			wantErr: "config file not found",
		},
		{
			name:    "server without config",
			args:    []string{"testrepo", "server"},
			wantErr: "config flag is required",
		},
		{
			name:    "reindex without config",
			args:    []string{"testrepo", "index", "reindex"},
			wantErr: "config flag is required",
		},
		{
			name:    "index run without config",
			args:    []string{"testrepo", "index", "run"},
			wantErr: "config flag is required",
		},
		{
			name:    "unknown flag",
			args:    []string{"testrepo", "records", "-bogus"},
			wantErr: "error parsing flags",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ui := cli.NewMockUi()
			code := run(tt.args, ui)
			assert.Equal(t, 1, code)
			assert.Contains(t, ui.ErrorWriter.String(), tt.wantErr)
		})
	}
}

func TestRun_ReindexDryRun(t *testing.T) {
	dir := t.TempDir()
	path := writeConfig(t, fmt.Sprintf(`
database {
  driver = "sqlite"
  path   = %q
}
`, filepath.Join(dir, "testrepo.db")))

	ui := cli.NewMockUi()
	code := run([]string{"testrepo", "index", "reindex", "-config", path, "-dry-run"}, ui)
	require.Equal(t, 0, code, ui.ErrorWriter.String())
	assert.Contains(t, ui.OutputWriter.String(), "Would queue 0 record(s)")
}
