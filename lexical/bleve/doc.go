// Package bleve adapts a github.com/blevesearch/bleve/v2 index to
// lexical.Index.
//
// Facet fields should be mapped as keyword fields so each value is a single
// term:
//
//	idx, err := bleve.New("products.bleve", bleve.WithKeywordFields("color", "size"))
//
// Queries use the bleve query string syntax, e.g. "wool +color:red". The
// empty query matches every document.
//
// A reader is a bleve snapshot. Its dense document numbering follows the
// snapshot's internal id order and is pinned for Search until the next
// OpenReader.
package bleve
