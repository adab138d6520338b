// ABOUTME: Error types for the sync client
// ABOUTME: Separates caller mistakes from transport failures
package syncclient

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTimeout is wrapped by CallerError for zero or negative timeouts
	ErrInvalidTimeout = errors.New("timeout must be positive")

	// ErrEmptyTarget is wrapped by CallerError when no target is given
	ErrEmptyTarget = errors.New("target address is required")

	// ErrUnknownAdminKind is wrapped by CallerError for unsupported admin commands
	ErrUnknownAdminKind = errors.New("unknown admin command")
)

// CallerError reports an invalid argument. It is returned before any
// network operation is attempted.
type CallerError struct {
	Err error
}

func (e *CallerError) Error() string {
	return fmt.Sprintf("invalid argument: %v", e.Err)
}

func (e *CallerError) Unwrap() error {
	return e.Err
}

// TransportError reports a send or receive failure that is not a timeout
type TransportError struct {
	Op     string
	Target string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Op, e.Target, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
