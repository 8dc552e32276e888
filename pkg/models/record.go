package models

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrStaleRevision is returned when a record was modified concurrently.
var ErrStaleRevision = errors.New("record revision is stale")

// Record is a stored record: its metadata plus a revision counter.
type Record struct {
	// ID is the record UUID. Persistent identifiers point at it.
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	CreatedAt time.Time      `json:"created"`
	UpdatedAt time.Time      `json:"updated"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Version is the revision of the record. It starts at 1 and is bumped on
	// every update.
	Version int `gorm:"not null;default:1" json:"revision"`

	// JSON is the record metadata.
	JSON JSON `gorm:"column:json" json:"metadata"`
}

// TableName specifies the table name for GORM.
func (Record) TableName() string {
	return "records_metadata"
}

// BeforeCreate hook to generate the UUID if not set.
func (r *Record) BeforeCreate(tx *gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	if r.Version == 0 {
		r.Version = 1
	}
	return nil
}

// Records is a slice of records.
type Records []Record

// Get retrieves a live record by ID.
func (r *Record) Get(db *gorm.DB) error {
	return db.First(r, "id = ?", r.ID).Error
}

// Create inserts the record.
func (r *Record) Create(db *gorm.DB) error {
	return db.Create(r).Error
}

// Update replaces the metadata if the stored revision still equals
// r.Version, then bumps the revision.
func (r *Record) Update(db *gorm.DB, data JSON) error {
	res := db.Model(&Record{}).
		Where("id = ? AND version = ?", r.ID, r.Version).
		Updates(map[string]interface{}{
			"json":       data,
			"version":    r.Version + 1,
			"updated_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrStaleRevision
	}
	return r.Get(db)
}

// Delete soft-deletes the record.
func (r *Record) Delete(db *gorm.DB) error {
	return db.Delete(r).Error
}

// FindByIDs retrieves live records by ID in the order of ids. Missing IDs are
// skipped.
func (rs *Records) FindByIDs(db *gorm.DB, ids []uuid.UUID) error {
	if len(ids) == 0 {
		*rs = Records{}
		return nil
	}

	var found []Record
	if err := db.Where("id IN ?", ids).Find(&found).Error; err != nil {
		return err
	}

	byID := make(map[uuid.UUID]Record, len(found))
	for _, rec := range found {
		byID[rec.ID] = rec
	}

	result := make(Records, 0, len(ids))
	for _, id := range ids {
		if rec, ok := byID[id]; ok {
			result = append(result, rec)
		}
	}
	*rs = result
	return nil
}

// FindAllIDs returns the IDs of all live records.
func (rs *Records) FindAllIDs(db *gorm.DB) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := db.Model(&Record{}).Order("created_at").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
