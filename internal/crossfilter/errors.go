package crossfilter

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformedData marks input records rejected at load time.
	ErrMalformedData = errors.New("malformed data")
	// ErrInvalidFilter marks a filter that cannot be applied.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrDuplicateDimension is returned when a dimension name is reused.
	ErrDuplicateDimension = errors.New("duplicate dimension")
)

// MalformedDataError reports the first record that failed validation.
type MalformedDataError struct {
	Index int
	Err   error
}

func (e *MalformedDataError) Error() string {
	return fmt.Sprintf("malformed record at index %d: %v", e.Index, e.Err)
}

func (e *MalformedDataError) Unwrap() []error {
	return []error{ErrMalformedData, e.Err}
}

// InvalidFilterError reports a rejected filter. The dimension's state is
// unchanged when this error is returned.
type InvalidFilterError struct {
	Dimension string
	Reason    string
}

func (e *InvalidFilterError) Error() string {
	if e.Dimension == "" {
		return "invalid filter: " + e.Reason
	}
	return fmt.Sprintf("invalid filter on %q: %s", e.Dimension, e.Reason)
}

func (e *InvalidFilterError) Unwrap() error { return ErrInvalidFilter }
