package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
)

// JSON is a JSON document column that works with both PostgreSQL and SQLite.
// Record metadata is stored in it verbatim.
type JSON json.RawMessage

// NewJSON marshals v into a JSON column value.
func NewJSON(v any) (JSON, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("error marshaling JSON: %w", err)
	}
	return JSON(b), nil
}

// Map decodes the document into a fresh map. A null or empty document yields
// an empty map.
func (j JSON) Map() (map[string]any, error) {
	m := map[string]any{}
	if len(j) == 0 || string(j) == "null" {
		return m, nil
	}
	if err := json.Unmarshal(j, &m); err != nil {
		return nil, fmt.Errorf("error decoding JSON object: %w", err)
	}
	return m, nil
}

// Value implements driver.Valuer.
func (j JSON) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	if !json.Valid(j) {
		return nil, errors.New("invalid JSON")
	}
	return string(j), nil
}

// Scan implements sql.Scanner.
func (j *JSON) Scan(value interface{}) error {
	var b []byte
	switch v := value.(type) {
	case nil:
		*j = JSON("null")
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported JSON column type %T", value)
	}

	if !json.Valid(b) {
		return errors.New("invalid JSON in database")
	}

	*j = append((*j)[0:0], b...)
	return nil
}

// MarshalJSON implements json.Marshaler.
func (j JSON) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return []byte(j), nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (j *JSON) UnmarshalJSON(data []byte) error {
	if j == nil {
		return errors.New("JSON: UnmarshalJSON on nil pointer")
	}
	*j = append((*j)[0:0], data...)
	return nil
}

// GormDataType tells GORM which column type to use for auto-migration.
func (JSON) GormDataType() string {
	return "text"
}
