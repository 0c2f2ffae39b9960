package tzconvert

import (
	"errors"
	"fmt"
)

// ErrIncompleteInput is returned when a required field is missing. Callers hold
// the request back instead of converting it.
var ErrIncompleteInput = errors.New("incomplete input")

// ErrTooManyTargets is returned when a request names more than MaxTargets zones.
var ErrTooManyTargets = fmt.Errorf("more than %d target zones", MaxTargets)

// FormatError reports a date/time that cannot be parsed as a real calendar
// date and 12-hour clock time. It aborts the whole conversion.
type FormatError struct {
	Err   error
	Input string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("invalid date/time %q: %v", e.Input, e.Err)
}

func (e *FormatError) Unwrap() error {
	return e.Err
}

// UnresolvedZoneError reports a zone identifier the timezone database does not know.
// For a target zone it only drops that target; for the source zone it aborts.
type UnresolvedZoneError struct {
	Err  error
	Zone string
}

func (e *UnresolvedZoneError) Error() string {
	return fmt.Sprintf("unknown time zone %q", e.Zone)
}

func (e *UnresolvedZoneError) Unwrap() error {
	return e.Err
}

func formatErr(input string, format string, args ...any) error {
	return &FormatError{Input: input, Err: fmt.Errorf(format, args...)}
}
