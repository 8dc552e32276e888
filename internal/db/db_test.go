package db

import (
	"path/filepath"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/repokit/testrepo/internal/config"
	"github.com/repokit/testrepo/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDB_SQLite(t *testing.T) {
	cfg := config.Database{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "testrepo.db"),
	}

	db, err := NewDB(cfg, hclog.NewNullLogger())
	require.NoError(t, err)

	for _, m := range models.ModelsToAutoMigrate() {
		assert.True(t, db.Migrator().HasTable(m), "table for %T should exist", m)
	}
}

func TestNewDB_UnsupportedDriver(t *testing.T) {
	_, err := NewDB(config.Database{Driver: "mysql"}, hclog.NewNullLogger())
	assert.Error(t, err)
}
