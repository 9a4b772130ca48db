package facetgo

import (
	"errors"
	"fmt"

	"github.com/hupe1980/facetgo/facet"
)

var (
	// ErrIndexNotFound is returned for a name that was never registered.
	ErrIndexNotFound = errors.New("index not registered")

	// ErrFacetsNotBuilt is returned when an index has no published facets yet.
	ErrFacetsNotBuilt = errors.New("facets not built")

	// ErrStaleFacets is returned when loaded facets do not fit the index they
	// were loaded for.
	ErrStaleFacets = errors.New("facets do not match index")

	// ErrClosed is returned by a closed Manager.
	ErrClosed = errors.New("manager closed")
)

// Re-exported from package facet so callers need a single import.
var (
	ErrIndexAccess     = facet.ErrIndexAccess
	ErrDuplicateFacet  = facet.ErrDuplicateFacet
	ErrCorruptFacet    = facet.ErrCorruptFacet
	ErrInvalidArgument = facet.ErrInvalidArgument
)

// IndexError reports which registered index an operation failed for.
//
// The original underlying error can be accessed via errors.Unwrap.
type IndexError struct {
	Name string
	Op   string
	Err  error
}

func (e *IndexError) Error() string {
	return fmt.Sprintf("%s index %q: %v", e.Op, e.Name, e.Err)
}

func (e *IndexError) Unwrap() error { return e.Err }

func indexError(name, op string, err error) error {
	if err == nil {
		return nil
	}
	return &IndexError{Name: name, Op: op, Err: err}
}
