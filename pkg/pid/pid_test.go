package pid

import (
	"testing"

	"github.com/google/uuid"
	"github.com/repokit/testrepo/pkg/models"
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
	require.NoError(t, db.AutoMigrate(models.ModelsToAutoMigrate()...))
	return db
}

func createRecord(t *testing.T, db *gorm.DB) (*models.Record, *models.PersistentIdentifier) {
	t.Helper()
	rec := &models.Record{ID: uuid.New()}
	data := map[string]any{"title": "A title"}

	minter, err := GetMinter(RecidType)
	require.NoError(t, err)
	p, err := minter(db, rec.ID, data)
	require.NoError(t, err)

	rec.JSON, err = models.NewJSON(data)
	require.NoError(t, err)
	require.NoError(t, rec.Create(db))
	return rec, p
}

func TestRecidMinter(t *testing.T) {
	db := setupTestDB(t)

	_, first := createRecord(t, db)
	rec, second := createRecord(t, db)

	assert.Equal(t, RecidType, second.PIDType)
	assert.Equal(t, models.RecordObjectType, second.ObjectType)
	assert.Equal(t, rec.ID, second.ObjectUUID)
	assert.NotEqual(t, first.PIDValue, second.PIDValue)

	data, err := rec.JSON.Map()
	require.NoError(t, err)
	assert.Equal(t, second.PIDValue, data[ControlNumberField])
}

func TestRecidFetcher(t *testing.T) {
	tests := []struct {
		name    string
		data    map[string]any
		want    string
		wantErr error
	}{
		{name: "string", data: map[string]any{"control_number": "12"}, want: "12"},
		{name: "number", data: map[string]any{"control_number": float64(7)}, want: "7"},
		{name: "missing", data: map[string]any{}, wantErr: ErrMissingControlNumber},
		{name: "empty", data: map[string]any{"control_number": ""}, wantErr: ErrMissingControlNumber},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RecidFetcher(uuid.New(), tt.data)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, RecidType, got.PIDType)
			assert.Equal(t, tt.want, got.PIDValue)
		})
	}
}

func TestResolve(t *testing.T) {
	db := setupTestDB(t)
	rec, p := createRecord(t, db)

	gotPID, gotRec, err := Resolve(db, RecidType, p.PIDValue)
	require.NoError(t, err)
	assert.Equal(t, p.PIDValue, gotPID.PIDValue)
	assert.Equal(t, rec.ID, gotRec.ID)

	_, _, err = Resolve(db, RecidType, "does-not-exist")
	assert.ErrorIs(t, err, ErrPIDDoesNotExist)

	require.NoError(t, gotPID.MarkDeleted(db))
	_, _, err = Resolve(db, RecidType, p.PIDValue)
	assert.ErrorIs(t, err, ErrPIDDeleted)
}

func TestResolve_MissingObject(t *testing.T) {
	db := setupTestDB(t)
	rec, p := createRecord(t, db)
	require.NoError(t, rec.Delete(db))

	_, _, err := Resolve(db, RecidType, p.PIDValue)
	assert.ErrorIs(t, err, ErrPIDMissingObject)
}

func TestRegistry(t *testing.T) {
	_, err := GetMinter("nope")
	assert.Error(t, err)
	_, err = GetFetcher("nope")
	assert.Error(t, err)

	called := false
	RegisterFetcher("custom", func(uuid.UUID, map[string]any) (*FetchedPID, error) {
		called = true
		return &FetchedPID{PIDType: "custom", PIDValue: "x"}, nil
	})
	f, err := GetFetcher("custom")
	require.NoError(t, err)
	_, err = f(uuid.New(), nil)
	require.NoError(t, err)
	assert.True(t, called)
}
