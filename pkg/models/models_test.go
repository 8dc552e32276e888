package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(ModelsToAutoMigrate()...))
	return db
}

func TestRecord_CreateGetUpdateDelete(t *testing.T) {
	db := setupTestDB(t)

	data, err := NewJSON(map[string]any{"title": "First"})
	require.NoError(t, err)

	rec := Record{JSON: data}
	require.NoError(t, rec.Create(db))
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, 1, rec.Version)

	got := Record{ID: rec.ID}
	require.NoError(t, got.Get(db))
	m, err := got.JSON.Map()
	require.NoError(t, err)
	assert.Equal(t, "First", m["title"])

	updated, err := NewJSON(map[string]any{"title": "Second"})
	require.NoError(t, err)
	require.NoError(t, got.Update(db, updated))
	assert.Equal(t, 2, got.Version)
	m, err = got.JSON.Map()
	require.NoError(t, err)
	assert.Equal(t, "Second", m["title"])

	require.NoError(t, got.Delete(db))
	err = (&Record{ID: rec.ID}).Get(db)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRecord_UpdateStaleRevision(t *testing.T) {
	db := setupTestDB(t)

	rec := Record{JSON: JSON(`{"title":"a"}`)}
	require.NoError(t, rec.Create(db))

	stale := rec
	require.NoError(t, rec.Update(db, JSON(`{"title":"b"}`)))

	err := stale.Update(db, JSON(`{"title":"c"}`))
	assert.ErrorIs(t, err, ErrStaleRevision)
}

func TestRecords_FindByIDsKeepsOrder(t *testing.T) {
	db := setupTestDB(t)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		rec := Record{JSON: JSON(`{}`)}
		require.NoError(t, rec.Create(db))
		ids = append(ids, rec.ID)
	}

	want := []uuid.UUID{ids[2], uuid.New(), ids[0]}
	var rs Records
	require.NoError(t, rs.FindByIDs(db, want))
	require.Len(t, rs, 2)
	assert.Equal(t, ids[2], rs[0].ID)
	assert.Equal(t, ids[0], rs[1].ID)

	all, err := rs.FindAllIDs(db)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestPersistentIdentifier(t *testing.T) {
	db := setupTestDB(t)

	var seq RecordIdentifier
	require.NoError(t, seq.Next(db))
	first := seq.Recid
	require.NoError(t, seq.Next(db))
	assert.Greater(t, seq.Recid, first)

	pid := PersistentIdentifier{
		PIDType:    "recid",
		PIDValue:   "1",
		ObjectType: RecordObjectType,
		ObjectUUID: uuid.New(),
		Status:     PIDStatusRegistered,
	}
	require.NoError(t, pid.Create(db))

	dup := pid
	dup.ID = 0
	assert.Error(t, dup.Create(db), "pid type and value must be unique")

	got := PersistentIdentifier{PIDType: "recid", PIDValue: "1"}
	require.NoError(t, got.Get(db))
	assert.Equal(t, pid.ObjectUUID, got.ObjectUUID)
	assert.False(t, got.IsDeleted())

	require.NoError(t, got.MarkDeleted(db))
	again := PersistentIdentifier{PIDType: "recid", PIDValue: "1"}
	require.NoError(t, again.Get(db))
	assert.True(t, again.IsDeleted())
}

func TestPersistentIdentifier_Columns(t *testing.T) {
	db := setupTestDB(t)

	cols, err := db.Migrator().ColumnTypes(&PersistentIdentifier{})
	require.NoError(t, err)
	names := make([]string, 0, len(cols))
	for _, c := range cols {
		names = append(names, c.Name())
	}
	assert.Subset(t, names, []string{"pid_type", "pid_value", "object_type", "object_uuid", "status"})
	assert.NotContains(t, names, "p_id_type")
	assert.NotContains(t, names, "p_id_value")
}

func TestJSON_Map(t *testing.T) {
	tests := []struct {
		name string
		in   JSON
		want map[string]any
	}{
		{name: "empty", in: nil, want: map[string]any{}},
		{name: "null", in: JSON("null"), want: map[string]any{}},
		{name: "object", in: JSON(`{"a":"b"}`), want: map[string]any{"a": "b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.in.Map()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := JSON(`[1]`).Map()
	assert.Error(t, err)
}
