package lexical

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/facetgo/docset"
	"github.com/hupe1980/facetgo/facet"
)

// TextField is the field Document.Text is indexed under.
const TextField = "text"

var (
	// ErrClosed is returned by operations on a closed index or reader.
	ErrClosed = errors.New("lexical: closed")

	// ErrStaleReader is returned by a reader whose index was reset after it was opened.
	ErrStaleReader = errors.New("lexical: reader is stale")

	// ErrInvalidDocument is returned when a document cannot be indexed.
	ErrInvalidDocument = errors.New("lexical: invalid document")
)

// Document is a unit of indexing.
type Document struct {
	// ID is the caller's identifier. It is returned in hits.
	ID string `json:"id"`
	// Text is analyzed full text.
	Text string `json:"text,omitempty"`
	// Fields holds keyword values; each value is one term.
	Fields map[string][]string `json:"fields,omitempty"`
}

// Validate reports whether d can be indexed.
func (d Document) Validate() error {
	if d.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidDocument)
	}
	if _, ok := d.Fields[TextField]; ok {
		return fmt.Errorf("%w: document %q uses reserved field %q", ErrInvalidDocument, d.ID, TextField)
	}
	for name := range d.Fields {
		if name == "" {
			return fmt.Errorf("%w: document %q has an empty field name", ErrInvalidDocument, d.ID)
		}
	}
	return nil
}

// Result is the answer of an engine to one query.
type Result struct {
	// Hits holds at most limit hits in descending score order.
	Hits []facet.Hit
	// Total is the number of matches eligible as hits.
	Total uint64
	// Matches holds every match in the numbering pinned by the last OpenReader.
	Matches *docset.Set
}

// Reader is a point-in-time view of an index with dense document ids.
type Reader interface {
	facet.IndexReader
	Close() error
}

// Index is a search engine a facet build can read from.
// Implementations must be safe for concurrent use.
type Index interface {
	// IndexDocuments adds docs. A document whose ID is already indexed replaces it.
	IndexDocuments(ctx context.Context, docs []Document) error
	// Reset drops every document.
	Reset(ctx context.Context) error
	// OpenReader opens a reader and pins the dense numbering Search reports in.
	OpenReader(ctx context.Context) (Reader, error)
	// Search executes query. Hits are restricted to within when it is non-nil;
	// Matches never is.
	Search(ctx context.Context, query string, limit int, within *docset.Set) (*Result, error)
	// Close releases the index.
	Close() error
}

// WithReader opens a reader on idx, passes it to fn and closes it on every
// return path.
func WithReader(ctx context.Context, idx Index, fn func(Reader) error) (err error) {
	r, err := idx.OpenReader(ctx)
	if err != nil {
		return fmt.Errorf("open reader: %w", err)
	}
	defer func() {
		if cerr := r.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close reader: %w", cerr)
		}
	}()

	return fn(r)
}
