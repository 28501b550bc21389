package core

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidFormat reports a byte source that is not a PDF, or one whose
	// cross-reference data could not be recovered even by a rebuild scan.
	ErrInvalidFormat = errors.New("invalid PDF format")

	// ErrMalformedObject reports an object that could not be parsed. Readers
	// recover from it by substituting Null for the object.
	ErrMalformedObject = errors.New("malformed object")

	// ErrStructural reports a document structure that violates the object
	// graph rules, such as a page tree cycle.
	ErrStructural = errors.New("structural inconsistency")

	// ErrUnsupportedFilter is matched by every *UnsupportedFilterError.
	ErrUnsupportedFilter = errors.New("unsupported filter")

	// ErrForeignReference reports an indirect reference that belongs to a
	// different document than the one asked to resolve it.
	ErrForeignReference = errors.New("reference belongs to another document")
)

// UnsupportedFilterError is returned when a stream names a filter the
// pipeline cannot decode.
type UnsupportedFilterError struct {
	Filter string
}

func (e *UnsupportedFilterError) Error() string {
	return fmt.Sprintf("unsupported filter: %s", e.Filter)
}

// Is makes errors.Is(err, ErrUnsupportedFilter) true.
func (e *UnsupportedFilterError) Is(target error) bool {
	return target == ErrUnsupportedFilter
}

// MalformedObjectError describes a parse failure for a single object.
type MalformedObjectError struct {
	Number int
	Offset int64
	Err    error
}

func (e *MalformedObjectError) Error() string {
	return fmt.Sprintf("malformed object %d at offset %d: %v", e.Number, e.Offset, e.Err)
}

func (e *MalformedObjectError) Unwrap() error { return e.Err }

// Is makes errors.Is(err, ErrMalformedObject) true.
func (e *MalformedObjectError) Is(target error) bool {
	return target == ErrMalformedObject
}
