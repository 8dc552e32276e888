package search

import (
	"errors"
	"strings"
)

var (
	// ErrNotFound is returned when a document does not exist in the index.
	ErrNotFound = errors.New("document not found in search index")

	// ErrInvalidQuery is returned when a query cannot be executed.
	ErrInvalidQuery = errors.New("invalid search query")

	// ErrBackendUnavailable is returned when the backend cannot be reached.
	ErrBackendUnavailable = errors.New("search backend unavailable")

	// ErrIndexingFailed is returned when a document cannot be indexed.
	ErrIndexingFailed = errors.New("failed to index document")

	// ErrResultWindowExceeded is returned when a page reaches past the
	// maximum result window.
	ErrResultWindowExceeded = errors.New("result window is too large")
)

// Error is a search operation error.
type Error struct {
	Op  string
	Err error
	Msg string
}

func (e *Error) Error() string {
	parts := make([]string, 0, 3)
	parts = append(parts, e.Op)
	if e.Msg != "" {
		parts = append(parts, e.Msg)
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return strings.Join(parts, ": ")
}

func (e *Error) Unwrap() error {
	return e.Err
}
