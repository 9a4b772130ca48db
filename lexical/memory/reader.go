package memory

import (
	"context"
	"slices"
	"sync/atomic"

	"github.com/hupe1980/facetgo/lexical"
)

// OpenReader pins the current document count as the numbering Search
// reports in and returns a reader over it.
//
// Documents indexed later are invisible to the reader. Replacements of
// documents it already covers are visible.
func (idx *Index) OpenReader(ctx context.Context) (lexical.Reader, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.Lock()
	defer idx.mu.Unlock()

	if idx.closed {
		return nil, lexical.ErrClosed
	}

	idx.pinned = uint32(len(idx.ids))
	idx.hasPinned = true

	return &reader{idx: idx, epoch: idx.epoch, maxDoc: idx.pinned}, nil
}

type reader struct {
	idx    *Index
	epoch  uint64
	maxDoc uint32
	closed atomic.Bool
}

func (r *reader) checkLocked() error {
	if r.closed.Load() || r.idx.closed {
		return lexical.ErrClosed
	}
	if r.idx.epoch != r.epoch {
		return lexical.ErrStaleReader
	}
	return nil
}

func (r *reader) postingsLocked(field string) map[string][]posting {
	if field == lexical.TextField {
		return r.idx.text
	}
	return r.idx.fields[field]
}

// EnumerateTerms returns the terms of field in ascending byte order.
func (r *reader) EnumerateTerms(ctx context.Context, field string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.idx.mu.RLock()
	defer r.idx.mu.RUnlock()

	if err := r.checkLocked(); err != nil {
		return nil, err
	}

	terms := make([]string, 0)
	for term, ps := range r.postingsLocked(field) {
		if len(ps) > 0 && ps[0].doc < r.maxDoc {
			terms = append(terms, term)
		}
	}
	slices.Sort(terms)
	return terms, nil
}

func (r *reader) DocumentsForTerm(ctx context.Context, field, term string) ([]uint32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.idx.mu.RLock()
	defer r.idx.mu.RUnlock()

	if err := r.checkLocked(); err != nil {
		return nil, err
	}

	ps := r.postingsLocked(field)[term]
	ids := make([]uint32, 0, len(ps))
	for _, p := range ps {
		if p.doc >= r.maxDoc {
			break
		}
		ids = append(ids, p.doc)
	}
	return ids, nil
}

func (r *reader) MaxDocumentID() uint32 {
	return r.maxDoc
}

func (r *reader) Close() error {
	r.closed.Store(true)
	return nil
}
