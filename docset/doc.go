// Package docset provides the document-set primitive used by facets.
//
// A Set holds zero-based, dense document ids bounded by a universe (the
// index's max document id at construction time). It is backed by a Roaring
// bitmap, so intersection and cardinality cost scales with compressed
// containers instead of individual documents.
//
// # Usage
//
//	red, _ := docset.FromSlice(maxDoc, []uint32{1, 3, 5})
//	query, _ := docset.FromSlice(maxDoc, []uint32{1, 2, 3})
//	n := query.AndCardinality(red) // 2, neither set is modified
//
// # Serialization
//
// MarshalBinary produces a self-describing encoding that carries the universe
// and cardinality, optionally compressed with LZ4 or ZSTD:
//
//	data, _ := set.MarshalBinaryWith(docset.CompressionZSTD)
//	restored, _ := docset.Unmarshal(data)
//
// # Thread Safety
//
// A Set is not synchronized. Sets attached to a built facet are never
// mutated again and may be read concurrently.
package docset
