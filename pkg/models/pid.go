package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PIDStatus is the lifecycle state of a persistent identifier.
type PIDStatus string

const (
	PIDStatusRegistered PIDStatus = "R"
	PIDStatusDeleted    PIDStatus = "D"
)

// RecordObjectType is the object type of PIDs pointing at records.
const RecordObjectType = "rec"

// PersistentIdentifier maps a (type, value) pair to a record UUID.
type PersistentIdentifier struct {
	ID        uint      `gorm:"primaryKey" json:"-"`
	CreatedAt time.Time `json:"created"`
	UpdatedAt time.Time `json:"updated"`

	PIDType  string `gorm:"column:pid_type;type:varchar(6);not null;uniqueIndex:idx_pid_type_value" json:"pid_type"`
	PIDValue string `gorm:"column:pid_value;type:varchar(255);not null;uniqueIndex:idx_pid_type_value" json:"pid_value"`

	ObjectType string    `gorm:"type:varchar(3)" json:"object_type"`
	ObjectUUID uuid.UUID `gorm:"type:uuid;index" json:"object_uuid"`

	Status PIDStatus `gorm:"type:char(1);not null" json:"status"`
}

// TableName specifies the table name for GORM.
func (PersistentIdentifier) TableName() string {
	return "pidstore_pid"
}

// Get retrieves a PID by type and value.
func (p *PersistentIdentifier) Get(db *gorm.DB) error {
	return db.Where("pid_type = ? AND pid_value = ?", p.PIDType, p.PIDValue).
		First(p).Error
}

// Create registers the PID.
func (p *PersistentIdentifier) Create(db *gorm.DB) error {
	return db.Create(p).Error
}

// MarkDeleted sets the PID status to deleted.
func (p *PersistentIdentifier) MarkDeleted(db *gorm.DB) error {
	p.Status = PIDStatusDeleted
	return db.Model(p).Update("status", PIDStatusDeleted).Error
}

// IsDeleted returns true if the PID has been deleted.
func (p *PersistentIdentifier) IsDeleted() bool {
	return p.Status == PIDStatusDeleted
}

// RecordIdentifier is the sequence that recid values are drawn from.
type RecordIdentifier struct {
	Recid uint64 `gorm:"primaryKey;autoIncrement"`
}

// TableName specifies the table name for GORM.
func (RecordIdentifier) TableName() string {
	return "pidstore_recid"
}

// Next allocates the next recid.
func (ri *RecordIdentifier) Next(db *gorm.DB) error {
	ri.Recid = 0
	return db.Create(ri).Error
}
