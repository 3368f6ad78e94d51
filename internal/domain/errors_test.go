package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorHelpers(t *testing.T) {
	tests := []struct {
		name  string
		err   error
		check func(error) bool
		want  bool
	}{
		{"not found direct", ErrNotFound("file %q missing", "tickets.csv"), IsNotFound, true},
		{"not found wrapped", fmt.Errorf("lookup: %w", ErrNotFound("gone")), IsNotFound, true},
		{"not found mismatch", ErrValidation("bad"), IsNotFound, false},
		{"remote unavailable wrapped", fmt.Errorf("sync: %w", ErrRemoteUnavailable(errors.New("timeout"), "drive call")), IsRemoteUnavailable, true},
		{"schema mismatch direct", ErrSchemaMismatch("signature drift"), IsSchemaMismatch, true},
		{"schema mismatch other", ErrNotFound("gone"), IsSchemaMismatch, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.check(tt.err))
		})
	}
}

func TestRemoteUnavailableError_Unwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := ErrRemoteUnavailable(cause, "upload failed")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "upload failed")
	assert.Contains(t, err.Error(), "connection reset")
}

func TestSourceUnavailableError_Unwrap(t *testing.T) {
	cause := errors.New("bad connection")
	err := ErrSourceUnavailable(cause, "query table %q", "tickets")

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `query table "tickets"`)
}
