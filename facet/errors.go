package facet

import (
	"errors"
	"fmt"
)

var (
	// ErrIndexAccess is matched by errors.Is for every *IndexAccessError.
	ErrIndexAccess = errors.New("index access failed")

	// ErrDuplicateFacet is matched by errors.Is for every *DuplicateFacetError.
	ErrDuplicateFacet = errors.New("facet already exists")

	// ErrCorruptFacet is matched by errors.Is for every *CorruptFacetError.
	ErrCorruptFacet = errors.New("corrupt facet")

	// ErrInvalidArgument is matched by errors.Is for every *ArgumentError.
	ErrInvalidArgument = errors.New("invalid argument")
)

// IndexAccessError indicates that the index reader could not serve a build.
//
// The original underlying error (if any) can be accessed via errors.Unwrap.
type IndexAccessError struct {
	Field string
	Term  string // empty when the failure was not term specific
	Err   error
}

func (e *IndexAccessError) Error() string {
	if e.Term != "" {
		return fmt.Sprintf("index access: field %q term %q: %v", e.Field, e.Term, e.Err)
	}
	return fmt.Sprintf("index access: field %q: %v", e.Field, e.Err)
}

func (e *IndexAccessError) Unwrap() error { return e.Err }

// Is reports whether target is ErrIndexAccess.
func (e *IndexAccessError) Is(target error) bool { return target == ErrIndexAccess }

// DuplicateFacetError indicates an attempt to overwrite a persisted facet.
type DuplicateFacetError struct {
	Path string
	Err  error
}

func (e *DuplicateFacetError) Error() string {
	return fmt.Sprintf("facet already exists: %s", e.Path)
}

func (e *DuplicateFacetError) Unwrap() error { return e.Err }

// Is reports whether target is ErrDuplicateFacet.
func (e *DuplicateFacetError) Is(target error) bool { return target == ErrDuplicateFacet }

// CorruptFacetError indicates a malformed persisted facet.
// Line is 1-based; 0 means the failure is not tied to a line.
type CorruptFacetError struct {
	Path   string
	Line   int
	Reason string
	Err    error
}

func (e *CorruptFacetError) Error() string {
	msg := "corrupt facet"
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Line > 0 {
		msg += fmt.Sprintf(" line %d", e.Line)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *CorruptFacetError) Unwrap() error { return e.Err }

// Is reports whether target is ErrCorruptFacet.
func (e *CorruptFacetError) Is(target error) bool { return target == ErrCorruptFacet }

// ArgumentError indicates a caller bug: an invalid definition, path or refinement.
type ArgumentError struct {
	Name   string
	Reason string
	Err    error
}

func (e *ArgumentError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Name, e.Reason)
}

func (e *ArgumentError) Unwrap() error { return e.Err }

// Is reports whether target is ErrInvalidArgument.
func (e *ArgumentError) Is(target error) bool { return target == ErrInvalidArgument }

func argError(name, format string, args ...any) error {
	return &ArgumentError{Name: name, Reason: fmt.Sprintf(format, args...)}
}
