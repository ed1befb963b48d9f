package unit

import (
	"errors"
	"fmt"
)

// Kind classifies how a failure affects boot.
type Kind int

const (
	// Unrecoverable failures abort boot unless the operator chooses to go on.
	Unrecoverable Kind = iota
	// Recoverable failures are logged and the unit is skipped.
	Recoverable
)

func (k Kind) String() string {
	if k == Recoverable {
		return "recoverable"
	}
	return "unrecoverable"
}

// Error is a classified failure of a unit hook.
type Error struct {
	Kind  Kind   // Recoverable or Unrecoverable
	Op    string // the hook or operation that failed
	Unit  string // the unit name, may be empty
	Cause error  // the underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Unit == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Cause)
	}
	return fmt.Sprintf("%s %s: %v", e.Op, e.Unit, e.Cause)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewRecoverable wraps cause as a recoverable failure of op.
func NewRecoverable(op string, cause error) error {
	return &Error{Kind: Recoverable, Op: op, Cause: cause}
}

// NewUnrecoverable wraps cause as an unrecoverable failure of op.
func NewUnrecoverable(op string, cause error) error {
	return &Error{Kind: Unrecoverable, Op: op, Cause: cause}
}

// IsRecoverable reports whether err carries the Recoverable kind anywhere in
// its chain. Unclassified errors are unrecoverable.
func IsRecoverable(err error) bool {
	var uerr *Error
	if errors.As(err, &uerr) {
		return uerr.Kind == Recoverable
	}
	return false
}
