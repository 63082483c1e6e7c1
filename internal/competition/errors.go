// internal/competition/errors.go
package competition

import (
	"errors"
	"fmt"
)

var (
	// ErrSolverTimeout means no response arrived before the round
	// deadline. The client never retries past the deadline.
	ErrSolverTimeout = errors.New("solver deadline exceeded")

	// ErrMalformedResponse means the solver violated the wire
	// contract (unparseable payload or unknown fields).
	ErrMalformedResponse = errors.New("malformed solver response")

	// ErrUnexpectedStatus means the solver answered with a non-200
	// HTTP status.
	ErrUnexpectedStatus = errors.New("unexpected solver status")
)

// SolverError wraps a per-solver failure with enough context to log.
// It is always local to the failing solver and never aborts the round.
type SolverError struct {
	Solver   string
	Endpoint string
	Err      error
}

func (e *SolverError) Error() string {
	return fmt.Sprintf("solver %q at %s: %v", e.Solver, e.Endpoint, e.Err)
}

func (e *SolverError) Unwrap() error {
	return e.Err
}
