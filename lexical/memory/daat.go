package memory

import (
	"context"
	"strings"

	"github.com/hupe1980/facetgo/docset"
	"github.com/hupe1980/facetgo/facet"
	"github.com/hupe1980/facetgo/lexical"
)

// Search scores query document-at-a-time with BM25. Clauses are combined
// with OR; an empty query matches every document with score 1.
//
// Matches covers the documents inside the numbering pinned by the last
// OpenReader, or every current document when no reader was opened. Hits may
// include later documents unless within is set.
func (idx *Index) Search(ctx context.Context, query string, limit int, within *docset.Set) (*lexical.Result, error) {
	if limit < 0 {
		return nil, &facet.ArgumentError{Name: "limit", Reason: "negative limit"}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	idx.mu.RLock()
	defer idx.mu.RUnlock()

	if idx.closed {
		return nil, lexical.ErrClosed
	}

	universe := uint32(len(idx.ids))
	if idx.hasPinned {
		universe = idx.pinned
	}

	if strings.TrimSpace(query) == "" {
		return idx.matchAllLocked(universe, limit, within), nil
	}

	iterators := idx.iteratorsLocked(parseQuery(query))

	matches := docset.New(universe)
	res := &lexical.Result{Hits: []facet.Hit{}, Matches: matches}

	if len(iterators) == 0 || len(idx.ids) == 0 {
		return res, nil
	}

	avgDL := float64(idx.totalLength) / float64(len(idx.ids))

	// Precompute BM25 constants for this query
	k1Plus1 := k1 + 1
	k11b := k1 * (1 - b)
	var k1bAvgDL float64
	if avgDL > 0 {
		k1bAvgDL = k1 * b / avgDL
	}

	h := make(candidateHeap, 0, min(limit, 1024))

	for {
		// Short queries: a linear scan for the minimum beats a heap of iterators.
		minDoc := ^uint32(0)
		for i := range iterators {
			if doc := iterators[i].doc(); doc < minDoc {
				minDoc = doc
			}
		}
		if minDoc == ^uint32(0) {
			break
		}

		var score float64
		docLen := float64(idx.docLengths[minDoc])

		for i := range iterators {
			it := &iterators[i]
			if it.doc() == minDoc {
				tf := float64(it.count())
				score += it.idf * (tf * k1Plus1 / (tf + k11b + k1bAvgDL*docLen))
				it.next()
			}
		}

		pinned := minDoc < universe
		if pinned {
			_ = matches.Add(minDoc)
		}

		if within != nil && (!pinned || !within.Contains(minDoc)) {
			continue
		}
		res.Total++

		if limit == 0 {
			continue
		}
		c := candidate{doc: minDoc, score: score}
		if len(h) < limit {
			h.push(c)
		} else if worse(h[0], c) {
			h[0] = c
			h.down(0, len(h))
		}
	}

	res.Hits = make([]facet.Hit, len(h))
	for i := len(h) - 1; i >= 0; i-- {
		c := h.pop()
		res.Hits[i] = facet.Hit{ID: idx.ids[c.doc], Score: c.score}
	}

	return res, nil
}

func (idx *Index) iteratorsLocked(clauses []clause) []termIterator {
	iterators := make([]termIterator, 0, len(clauses))
	for _, c := range clauses {
		var postings []posting
		if c.field == "" {
			postings = idx.text[c.term]
		} else {
			postings = idx.fields[c.field][c.term]
		}
		if len(postings) == 0 {
			continue
		}
		iterators = append(iterators, termIterator{
			postings: postings,
			idf:      idx.computeIDF(len(postings)),
		})
	}
	return iterators
}

func (idx *Index) matchAllLocked(universe uint32, limit int, within *docset.Set) *lexical.Result {
	matches := docset.New(universe)
	res := &lexical.Result{
		Hits:    make([]facet.Hit, 0, min(limit, len(idx.ids))),
		Matches: matches,
	}

	for doc := range uint32(len(idx.ids)) {
		pinned := doc < universe
		if pinned {
			_ = matches.Add(doc)
		}
		if within != nil && (!pinned || !within.Contains(doc)) {
			continue
		}
		res.Total++
		if len(res.Hits) < limit {
			res.Hits = append(res.Hits, facet.Hit{ID: idx.ids[doc], Score: 1})
		}
	}
	return res
}
