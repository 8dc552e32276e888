// Package pid mints, fetches and resolves persistent identifiers of records.
package pid

import (
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/repokit/testrepo/pkg/models"
	"gorm.io/gorm"
)

// RecidType is the pid type of record identifiers.
const RecidType = "recid"

// ControlNumberField is the metadata key the recid is written to.
const ControlNumberField = "control_number"

var (
	// ErrPIDDoesNotExist is returned when no PID matches the requested value.
	ErrPIDDoesNotExist = errors.New("persistent identifier does not exist")

	// ErrPIDDeleted is returned when the PID exists but has been deleted.
	ErrPIDDeleted = errors.New("persistent identifier has been deleted")

	// ErrPIDMissingObject is returned when a registered PID points at no record.
	ErrPIDMissingObject = errors.New("persistent identifier has no record")

	// ErrMissingControlNumber is returned by the recid fetcher when the metadata
	// has no control number.
	ErrMissingControlNumber = errors.New("record metadata has no control number")
)

// FetchedPID is a PID read back from record metadata.
type FetchedPID struct {
	Provider string
	PIDType  string
	PIDValue string
}

// Minter registers a new PID for the record with the given UUID and records
// it in data.
type Minter func(db *gorm.DB, recordUUID uuid.UUID, data map[string]any) (*models.PersistentIdentifier, error)

// Fetcher reads the PID of a record from its metadata.
type Fetcher func(recordUUID uuid.UUID, data map[string]any) (*FetchedPID, error)

var (
	mu       sync.RWMutex
	minters  = map[string]Minter{RecidType: RecidMinter}
	fetchers = map[string]Fetcher{RecidType: RecidFetcher}
)

// RegisterMinter makes a minter available under name.
func RegisterMinter(name string, m Minter) {
	mu.Lock()
	defer mu.Unlock()
	minters[name] = m
}

// RegisterFetcher makes a fetcher available under name.
func RegisterFetcher(name string, f Fetcher) {
	mu.Lock()
	defer mu.Unlock()
	fetchers[name] = f
}

// GetMinter returns the minter registered under name.
func GetMinter(name string) (Minter, error) {
	mu.RLock()
	defer mu.RUnlock()
	m, ok := minters[name]
	if !ok {
		return nil, fmt.Errorf("unknown pid minter %q", name)
	}
	return m, nil
}

// GetFetcher returns the fetcher registered under name.
func GetFetcher(name string) (Fetcher, error) {
	mu.RLock()
	defer mu.RUnlock()
	f, ok := fetchers[name]
	if !ok {
		return nil, fmt.Errorf("unknown pid fetcher %q", name)
	}
	return f, nil
}

// RecidMinter allocates the next recid, registers it for the record and writes
// it to data as the control number.
func RecidMinter(db *gorm.DB, recordUUID uuid.UUID, data map[string]any) (*models.PersistentIdentifier, error) {
	var seq models.RecordIdentifier
	if err := seq.Next(db); err != nil {
		return nil, fmt.Errorf("error allocating recid: %w", err)
	}

	p := &models.PersistentIdentifier{
		PIDType:    RecidType,
		PIDValue:   strconv.FormatUint(seq.Recid, 10),
		ObjectType: models.RecordObjectType,
		ObjectUUID: recordUUID,
		Status:     models.PIDStatusRegistered,
	}
	if err := p.Create(db); err != nil {
		return nil, fmt.Errorf("error registering recid %s: %w", p.PIDValue, err)
	}

	data[ControlNumberField] = p.PIDValue
	return p, nil
}

// RecidFetcher returns the recid stored in the metadata control number.
func RecidFetcher(_ uuid.UUID, data map[string]any) (*FetchedPID, error) {
	v, ok := data[ControlNumberField]
	if !ok || v == nil {
		return nil, ErrMissingControlNumber
	}

	var value string
	switch cn := v.(type) {
	case string:
		value = cn
	case float64:
		value = strconv.FormatFloat(cn, 'f', -1, 64)
	default:
		value = fmt.Sprint(cn)
	}
	if value == "" {
		return nil, ErrMissingControlNumber
	}

	return &FetchedPID{
		Provider: RecidType,
		PIDType:  RecidType,
		PIDValue: value,
	}, nil
}

// Resolve returns the PID and the live record it points at.
func Resolve(db *gorm.DB, pidType, pidValue string) (*models.PersistentIdentifier, *models.Record, error) {
	p := &models.PersistentIdentifier{PIDType: pidType, PIDValue: pidValue}
	if err := p.Get(db); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, ErrPIDDoesNotExist
		}
		return nil, nil, fmt.Errorf("error getting pid: %w", err)
	}
	if p.IsDeleted() {
		return p, nil, ErrPIDDeleted
	}

	rec := &models.Record{ID: p.ObjectUUID}
	if err := rec.Get(db); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return p, nil, ErrPIDMissingObject
		}
		return p, nil, fmt.Errorf("error getting record: %w", err)
	}

	return p, rec, nil
}
