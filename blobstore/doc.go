// Package blobstore provides storage abstraction for published facet files.
//
// A facet set built on one machine is mirrored to a BlobStore so that other
// machines can fetch it instead of rebuilding. Blobs are immutable: a facet
// file is written once and never modified.
//
// # Built-in Implementations
//
//   - LocalStore: Local filesystem with mmap reads
//   - MemoryStore: In-memory, for tests
//   - s3.Store: Amazon S3, conditional writes via If-None-Match
//   - s3.DDBGuardStore: S3 with DynamoDB claims for exactly-once publication
//   - minio.Store: MinIO and other S3-compatible storage
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Open(ctx, name) (Blob, error)
//	    Put(ctx, name, data) error
//	    Delete(ctx, name) error
//	    List(ctx, prefix) ([]string, error)
//	}
//
// Stores that can refuse to overwrite an existing blob atomically also
// implement WriteOnce.
package blobstore
