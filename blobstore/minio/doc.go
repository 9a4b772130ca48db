// Package minio provides a BlobStore implementation using the MinIO client.
//
// MinIO is S3-compatible object storage. This package uses the official MinIO
// Go client, so it also works with Ceph, SeaweedFS and Garage.
//
// # Basic Usage
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
//	    Secure: false,
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "my-bucket", "facets/")
//	pub := persistence.NewPublisher(store)
//
// The store does not implement blobstore.WriteOnce. Wrap it in
// s3.DDBGuardStore when several machines may publish the same facet.
package minio
