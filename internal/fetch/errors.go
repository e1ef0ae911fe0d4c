package fetch

import (
	"errors"
	"fmt"
)

// Error is returned when a resource is unreachable or answered with a
// non-success status.
type Error struct {
	URL        string
	StatusCode int // zero for transport errors
	Err        error
}

func (e *Error) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetching %s: HTTP %d", e.URL, e.StatusCode)
	}
	return fmt.Sprintf("fetching %s: %v", e.URL, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// ParseError is returned when a manifest body is not a usable manifest.
type ParseError struct {
	URL string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parsing manifest from %s: %v", e.URL, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// IsFetchError reports whether err is (or wraps) an *Error.
func IsFetchError(err error) bool {
	var fe *Error
	return errors.As(err, &fe)
}

// IsParseError reports whether err is (or wraps) a *ParseError.
func IsParseError(err error) bool {
	var pe *ParseError
	return errors.As(err, &pe)
}
