package unit

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsRecoverable(t *testing.T) {
	cause := errors.New("mount failed")

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"recoverable", NewRecoverable("start", cause), true},
		{"unrecoverable", NewUnrecoverable("start", cause), false},
		{"unclassified", cause, false},
		{"wrapped recoverable", fmt.Errorf("boot: %w", NewRecoverable("start", cause)), true},
		{"nil", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRecoverable(tt.err))
		})
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("no such device")
	err := &Error{Kind: Recoverable, Op: "start", Unit: "devfs", Cause: cause}

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "start devfs: no such device", err.Error())
	assert.Equal(t, "stop: no such device", (&Error{Op: "stop", Cause: cause}).Error())
	assert.Equal(t, "recoverable", Recoverable.String())
	assert.Equal(t, "unrecoverable", Unrecoverable.String())
}
