// Package memory provides an in-memory lexical index with BM25 scoring.
//
// Documents carry analyzed text and keyword fields. Text is lowercased and
// split at every rune that is not a letter or a number; keyword values are
// indexed verbatim, one term per value.
//
// # Query syntax
//
// Whitespace separated tokens, combined with OR. field:value matches a
// keyword value exactly; any other token is analyzed like text. The empty
// query matches every document.
//
//	idx := memory.New()
//	_ = idx.IndexDocuments(ctx, docs)
//	res, _ := idx.Search(ctx, "wool color:red", 10, nil)
//
// # Parameters
//
// Uses standard BM25 parameters: k1=1.2, b=0.75
//
// # Thread Safety
//
// The index is safe for concurrent reads and writes.
package memory
