package pagination

import (
	"errors"
	"fmt"
)

// Defined no-op results of Advance, exposed as errors for callers that
// prefer error values over Outcome.
var (
	// ErrOutOfRange is reported when the next page would exceed the page count.
	ErrOutOfRange = errors.New("next page out of range")

	// ErrLoadInFlight is reported when a load is already outstanding for the store.
	ErrLoadInFlight = errors.New("load already in flight")

	// ErrStaleLoad is reported when the store was reset while the load was in flight.
	ErrStaleLoad = errors.New("store reset during load")
)

// LoadError represents a rejected or failed loader call.
type LoadError struct {
	Page  int
	Query string
	Err   error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	if e.Query != "" {
		return fmt.Sprintf("load page %d (query %q): %v", e.Page, e.Query, e.Err)
	}
	return fmt.Sprintf("load page %d: %v", e.Page, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// DecodeError is a LoadError raised while decoding a loader response.
type DecodeError struct {
	LoadError
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return "decode: " + e.LoadError.Error()
}

// As lets errors.As(err, **LoadError) match a decode failure.
func (e *DecodeError) As(target any) bool {
	if le, ok := target.(**LoadError); ok {
		*le = &e.LoadError
		return true
	}
	return false
}

// NewDecodeError wraps err as a decode failure for page.
func NewDecodeError(page int, query string, err error) *DecodeError {
	return &DecodeError{LoadError{Page: page, Query: query, Err: err}}
}

// IsDecodeError reports whether err contains a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// asLoadError normalizes any loader failure into a *LoadError (or keeps a
// *DecodeError as is) so LastError always has one of the two shapes.
func asLoadError(page int, err error) error {
	var de *DecodeError
	if errors.As(err, &de) {
		return err
	}
	var le *LoadError
	if errors.As(err, &le) {
		return err
	}
	return &LoadError{Page: page, Err: err}
}
