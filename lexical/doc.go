// Package lexical defines the contract between facet builds and the search
// engine that owns the documents.
//
// An Index tokenizes, stores and scores documents. A Reader is a
// point-in-time view exposing the three operations a facet build needs:
//
//	err := lexical.WithReader(ctx, idx, func(r lexical.Reader) error {
//	    facets, err = facet.NewBuilder(r).CreateFacets(ctx, defs)
//	    return err
//	})
//
// Search returns scored hits plus the full match set as a docset.Set in the
// numbering of the most recently opened reader, which is what a
// facet.Matcher counts against.
//
// # Implementations
//
//   - memory: in-memory inverted index with BM25 scoring
//   - bleve: github.com/blevesearch/bleve/v2, in memory or on disk
package lexical
