// Package queue moves bulk index requests through Kafka.
package queue

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// Action is what to do with a record.
type Action string

const (
	ActionIndex  Action = "index"
	ActionDelete Action = "delete"
)

// Request asks a worker to index or delete a single record.
type Request struct {
	ID     uuid.UUID `json:"id"`
	Action Action    `json:"op"`
}

// Encode returns the wire form of the request.
func (r Request) Encode() ([]byte, error) {
	return json.Marshal(r)
}

// DecodeRequest parses and validates a request.
func DecodeRequest(b []byte) (Request, error) {
	var r Request
	if err := json.Unmarshal(b, &r); err != nil {
		return r, fmt.Errorf("failed to unmarshal index request: %w", err)
	}
	if r.ID == uuid.Nil {
		return r, fmt.Errorf("index request has no record id")
	}
	switch r.Action {
	case ActionIndex, ActionDelete:
	default:
		return r, fmt.Errorf("unknown index request action %q", r.Action)
	}
	return r, nil
}
