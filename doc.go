// Package facetgo computes facet counts for full-text search results.
//
// A facet is a field of the indexed documents, such as color or size. For
// every distinct value of the field, facetgo keeps a compressed bitmap of the
// documents carrying it. Counting a value for a query is then the
// cardinality of the query's match set AND the value's bitmap.
//
// # Quick Start
//
//	idx := memory.New()
//	m := facetgo.New(facetgo.WithStoreDir("./facets"))
//	defer m.Close()
//
//	_ = m.Register(facetgo.IndexDefinition{
//	    Name:  "products",
//	    Index: idx,
//	    Definitions: []facet.Definition{
//	        {UniqueName: "color", Field: "color", DisplayName: "Color"},
//	    },
//	    Documents: loadProducts,
//	})
//
//	_, _ = m.CreateIndexes(ctx)
//	res, _ := m.SearchWithFacets(ctx, "products", "wool", 10)
//	for _, f := range res.Facets {
//	    fmt.Println(f.FacetID, f.Value, f.Count)
//	}
//
// # Refinement
//
// Passing a refinement restricts hits to documents carrying one facet value:
//
//	res, _ := m.SearchWithFacets(ctx, "products", "wool", 10,
//	    facet.Refinement{FacetID: "color", Value: "red"})
//
// Counts are computed over the unrefined matches unless the Manager was
// created WithRefinedCounts.
//
// # Persistence
//
// Each build is written as a new generation of write-once .facet files below
// the store dir and, when configured, mirrored to a blob store (S3, MinIO,
// local). LoadFacets restores the latest generation without rebuilding.
//
// # Packages
//
//   - docset: Roaring bitmap document sets and their binary codec
//   - facet: definitions, builder, matcher and the error taxonomy
//   - persistence: the .facet file format, local store and blob publisher
//   - lexical: the search engine contract, with memory and bleve engines
//   - blobstore: local, memory, S3 and MinIO blob stores
//   - resource: shared build slots and IO rate limits
//   - prommetrics: Prometheus MetricsCollector
package facetgo
