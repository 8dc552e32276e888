package search

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "op msg and cause",
			err:  &Error{Op: "Refresh", Err: ErrIndexingFailed, Msg: "batch rejected"},
			want: "Refresh: batch rejected: failed to index document",
		},
		{
			name: "op and cause",
			err:  &Error{Op: "Healthy", Err: ErrBackendUnavailable},
			want: "Healthy: search backend unavailable",
		},
		{
			name: "op and msg without cause",
			err:  &Error{Op: "RecordIndex", Msg: `invalid index name "../x"`},
			want: `RecordIndex: invalid index name "../x"`,
		},
		{
			name: "op only",
			err:  &Error{Op: "Count"},
			want: "Count",
		},
		{
			name: "empty",
			err:  &Error{},
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_Is(t *testing.T) {
	sentinels := []error{
		ErrNotFound,
		ErrInvalidQuery,
		ErrBackendUnavailable,
		ErrIndexingFailed,
		ErrResultWindowExceeded,
	}

	for _, target := range sentinels {
		t.Run(target.Error(), func(t *testing.T) {
			err := fmt.Errorf("searching records: %w", &Error{Op: "Search", Err: target})
			assert.ErrorIs(t, err, target)

			for _, other := range sentinels {
				if other != target {
					assert.NotErrorIs(t, err, other)
				}
			}

			var serr *Error
			require.ErrorAs(t, err, &serr)
			assert.Equal(t, "Search", serr.Op)
		})
	}
}

func TestError_UnwrapNil(t *testing.T) {
	err := &Error{Op: "Count"}
	assert.NoError(t, err.Unwrap())
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestResult_IDs(t *testing.T) {
	r := &Result{Hits: []Hit{{ID: "b"}, {ID: "a"}}}
	assert.Equal(t, []string{"b", "a"}, r.IDs())
	assert.Empty(t, (&Result{}).IDs())
}
