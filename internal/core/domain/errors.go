package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks malformed coordinates, empty required fields and
	// out-of-range parameters. It is always surfaced to the caller.
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound is returned when a place or session does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned by a session write based on a stale read.
	ErrConflict = errors.New("conflict")
)

// ShapeFailureReason classifies why the path-shaping service could not be used.
type ShapeFailureReason string

const (
	ShapeTimeout     ShapeFailureReason = "timeout"
	ShapeUnavailable ShapeFailureReason = "unavailable"
	ShapeBadStatus   ShapeFailureReason = "bad_status"
	ShapeMalformed   ShapeFailureReason = "malformed"
)

// ShapeError is returned by path shapers. Callers recover from it by falling
// back to the straight-line path.
type ShapeError struct {
	Reason ShapeFailureReason
	Err    error
}

func (e *ShapeError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("path shaping failed (%s)", e.Reason)
	}
	return fmt.Sprintf("path shaping failed (%s): %v", e.Reason, e.Err)
}

func (e *ShapeError) Unwrap() error { return e.Err }

// ShapeFailureOf extracts the failure reason from err. Errors that are not a
// *ShapeError are reported as unavailable.
func ShapeFailureOf(err error) ShapeFailureReason {
	var se *ShapeError
	if errors.As(err, &se) {
		return se.Reason
	}
	return ShapeUnavailable
}
