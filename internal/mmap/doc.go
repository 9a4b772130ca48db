// Package mmap maps facet files read-only into memory.
//
//	m, err := mmap.Open("color.facet")
//	if err != nil { ... }
//	defer m.Close()
//
//	m.Advise(mmap.AccessSequential)
//	data := m.Bytes()
//
// Unix uses mmap(2) and madvise(2). Windows uses CreateFileMapping and
// MapViewOfFile; Advise is a no-op there.
//
// The slice returned by Bytes is valid until Close. Close is idempotent.
package mmap
