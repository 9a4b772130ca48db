package bleve

import (
	"context"
	"fmt"
	"sync/atomic"

	index "github.com/blevesearch/bleve_index_api"

	"github.com/hupe1980/facetgo/lexical"
)

// ctxCheckInterval is how many postings are read between context checks.
const ctxCheckInterval = 1024

// OpenReader opens a bleve snapshot, numbers its documents densely in
// internal id order and pins that numbering for Search.
func (i *Index) OpenReader(ctx context.Context) (lexical.Reader, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.closed {
		return nil, lexical.ErrClosed
	}

	adv, err := i.idx.Advanced()
	if err != nil {
		return nil, fmt.Errorf("advanced index: %w", err)
	}

	ir, err := adv.Reader()
	if err != nil {
		return nil, fmt.Errorf("open index reader: %w", err)
	}

	internal, external, err := number(ctx, ir)
	if err != nil {
		_ = ir.Close()
		return nil, err
	}

	ids := make([]string, len(external))
	for ext, dense := range external {
		ids[dense] = ext
	}

	i.pinned = external
	i.pinnedIDs = ids
	i.universe = uint32(len(external))

	return &reader{
		parent:   i,
		epoch:    i.epoch,
		ir:       ir,
		internal: internal,
		maxDoc:   uint32(len(external)),
	}, nil
}

// number assigns dense ids in the order DocIDReaderAll yields documents.
func number(ctx context.Context, ir index.IndexReader) (map[string]uint32, map[string]uint32, error) {
	dr, err := ir.DocIDReaderAll()
	if err != nil {
		return nil, nil, fmt.Errorf("enumerate documents: %w", err)
	}
	defer dr.Close()

	internal := make(map[string]uint32)
	external := make(map[string]uint32)

	for n := uint32(0); ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		id, err := dr.Next()
		if err != nil {
			return nil, nil, fmt.Errorf("enumerate documents: %w", err)
		}
		if id == nil {
			break
		}

		ext, err := ir.ExternalID(id)
		if err != nil {
			return nil, nil, fmt.Errorf("resolve document id: %w", err)
		}

		internal[string(id)] = n
		external[ext] = n
	}

	return internal, external, nil
}

type reader struct {
	parent   *Index
	epoch    uint64
	ir       index.IndexReader
	internal map[string]uint32
	maxDoc   uint32
	closed   atomic.Bool
}

func (r *reader) check() error {
	if r.closed.Load() {
		return lexical.ErrClosed
	}

	r.parent.mu.RLock()
	defer r.parent.mu.RUnlock()

	if r.parent.closed {
		return lexical.ErrClosed
	}
	if r.parent.epoch != r.epoch {
		return lexical.ErrStaleReader
	}
	return nil
}

// EnumerateTerms walks the field dictionary; bleve yields terms in
// ascending byte order.
func (r *reader) EnumerateTerms(ctx context.Context, field string) ([]string, error) {
	if err := r.check(); err != nil {
		return nil, err
	}

	fd, err := r.ir.FieldDict(field)
	if err != nil {
		return nil, fmt.Errorf("field dictionary %q: %w", field, err)
	}
	defer fd.Close()

	terms := make([]string, 0)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		entry, err := fd.Next()
		if err != nil {
			return nil, fmt.Errorf("field dictionary %q: %w", field, err)
		}
		if entry == nil {
			break
		}
		terms = append(terms, entry.Term)
	}
	return terms, nil
}

func (r *reader) DocumentsForTerm(ctx context.Context, field, term string) ([]uint32, error) {
	if err := r.check(); err != nil {
		return nil, err
	}

	tfr, err := r.ir.TermFieldReader(ctx, []byte(term), field, false, false, false)
	if err != nil {
		return nil, fmt.Errorf("postings %s:%s: %w", field, term, err)
	}
	defer tfr.Close()

	ids := make([]uint32, 0, int(tfr.Count()))
	var tfd index.TermFieldDoc

	for n := 0; ; n++ {
		if n%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		d, err := tfr.Next(tfd.Reset())
		if err != nil {
			return nil, fmt.Errorf("postings %s:%s: %w", field, term, err)
		}
		if d == nil {
			break
		}

		if dense, ok := r.internal[string(d.ID)]; ok {
			ids = append(ids, dense)
		}
	}
	return ids, nil
}

func (r *reader) MaxDocumentID() uint32 {
	return r.maxDoc
}

func (r *reader) Close() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.ir.Close()
}
