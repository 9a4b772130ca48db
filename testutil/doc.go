// Package testutil provides testing utilities for facetgo.
//
// This package is intended for use in tests and benchmarks only.
// It generates deterministic document catalogs with skewed facet values
// and computes expected facet counts by brute force.
//
// # Catalog Generation
//
//	rng := testutil.NewRNG(seed)
//	docs := rng.Catalog(10_000,
//		testutil.FieldSpec{Name: "color", Cardinality: 12, Skew: 1.2},
//		testutil.FieldSpec{Name: "tag", Cardinality: 200, MaxValues: 3, MissingRate: 0.3},
//	)
//
// # Ground Truth
//
//	want := testutil.ExpectedCounts(docs, "color", func(d lexical.Document) bool {
//		return testutil.HasTerm(d, "shirt")
//	})
package testutil
