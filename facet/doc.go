// Package facet builds and matches facets over an external full-text index.
//
// A facet is a categorical dimension over one indexed field. Building a facet
// enumerates the field's distinct terms and materializes one docset.Set per
// term from its postings. Matching intersects a query's matching set with every
// value set and reports the resulting counts.
//
// # Building
//
//	b := facet.NewBuilder(reader, facet.WithBuildWorkers(4))
//	facets, err := b.CreateFacets(ctx, []facet.Definition{
//	    {UniqueName: "color", Field: "color", DisplayName: "Color"},
//	})
//
// A failure in any definition aborts the whole batch; CreateFacets never
// returns a partially built facet set.
//
// # Matching
//
//	m := facet.NewMatcher()
//	matches := m.GetAllMatches(facets, queryMatches)
//
// Facets are immutable once built, so one set of facets may serve any number
// of concurrent queries.
//
// # Refinement
//
// GetRefinedMatches narrows the hit set to one selected value. By default the
// counts still reflect the unrefined query so every alternative value stays
// visible; WithRefinedCounts counts against the narrowed set instead.
package facet
