// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("facets/"),
//	    s3.WithRegion("us-east-1"),
//	)
//
//	pub := persistence.NewPublisher(store)
//
// # Features
//
//   - Conditional writes (If-None-Match) for write-once publication
//   - Multipart uploads for large facet files
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
//   - DDBGuardStore: DynamoDB claims for exactly-once publication on any store
package s3
