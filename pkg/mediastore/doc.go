// Package mediastore provides a content-addressed media catalog with
// deduplicated blob storage, reference tracking and garbage collection.
//
// Uploaded bytes are identified by their SHA-256 digest. The catalog keeps
// exactly one MediaRecord per distinct digest; re-uploading identical bytes
// returns the existing record without storing a second blob. Each record
// carries a denormalized usage flag that is recomputed asynchronously from
// the relations declared in a schema registry (see the schema, scan and
// usage packages), and unreferenced records can be swept together with
// their blobs (see the gc package).
//
// Key packages:
//
//   - mediastore: core types, the Service (registry) implementation and
//     the BlobStore/Repository interfaces
//   - mediastore/objectkey: time-derived storage key generation
//   - mediastore/schema: declared entity-relation descriptors and events
//   - mediastore/scan: the reference scanner
//   - mediastore/usage: usage-cache recomputation
//   - mediastore/gc: unused-media collection
//   - mediastore/dispatch: async job queue, worker and scheduler
//   - mediastore/storage/...: blob store backends (memory, fs, s3, minio)
//   - mediastore/repo/...: catalog repositories (memory, postgres)
package mediastore
