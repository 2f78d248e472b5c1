package panel

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when the panel has no user with the requested
// username. Callers branch on it to offer create/trial flows instead of a
// generic failure.
var ErrNotFound = errors.New("panel: user not found")

// AuthError means the panel rejected our admin credentials, or a token
// refresh failed twice in a row. It is fatal and never retried internally.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("panel auth failed: %v", e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

// TransientError means the panel was rate-limited or temporarily unavailable
// and the retry budget ran out. The wrapped error is the last attempt's.
type TransientError struct {
	Attempts int
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("panel temporarily unavailable after %d attempts: %v", e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }

// PanelError is any unexpected non-2xx response. Status and body are kept for
// operator diagnostics.
type PanelError struct {
	Status int
	Body   string
}

func (e *PanelError) Error() string {
	return fmt.Sprintf("panel returned %d: %s", e.Status, e.Body)
}
