package facet

import (
	"context"
	"errors"
	"sync/atomic"
)

var errClosed = errors.New("reader closed")

type fakeTerm struct {
	term string
	ids  []uint32
}

// fakeReader serves postings from memory in insertion order.
type fakeReader struct {
	maxDoc   uint32
	fields   map[string][]fakeTerm
	closed   bool
	failTerm string
	calls    atomic.Int64
}

func newFakeReader(maxDoc uint32) *fakeReader {
	return &fakeReader{maxDoc: maxDoc, fields: make(map[string][]fakeTerm)}
}

func (r *fakeReader) add(field, term string, ids ...uint32) *fakeReader {
	r.fields[field] = append(r.fields[field], fakeTerm{term: term, ids: ids})
	return r
}

func (r *fakeReader) EnumerateTerms(_ context.Context, field string) ([]string, error) {
	if r.closed {
		return nil, errClosed
	}
	terms := make([]string, 0, len(r.fields[field]))
	for _, t := range r.fields[field] {
		terms = append(terms, t.term)
	}
	return terms, nil
}

func (r *fakeReader) DocumentsForTerm(ctx context.Context, field, term string) ([]uint32, error) {
	r.calls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.closed {
		return nil, errClosed
	}
	if term == r.failTerm {
		return nil, errors.New("postings unavailable")
	}
	for _, t := range r.fields[field] {
		if t.term == term {
			return t.ids, nil
		}
	}
	return nil, nil
}

func (r *fakeReader) MaxDocumentID() uint32 { return r.maxDoc }

func colorReader() *fakeReader {
	return newFakeReader(8).
		add("color", "red", 1, 3, 5).
		add("color", "blue", 2, 4)
}
