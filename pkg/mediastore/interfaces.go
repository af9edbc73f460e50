package mediastore

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// BlobStore defines the interface for object storage backends.
//
// Keys are opaque to the store. Delete is idempotent: deleting an absent
// key is not an error. URLFor must be deterministic for a given key; the
// reference scanner matches these URLs against rich-text content, so
// backends must not return per-call values such as presigned URLs here.
type BlobStore interface {
	// Upload stores the content under the given key, replacing any
	// existing object.
	Upload(ctx context.Context, key string, reader io.Reader) error

	// Download returns the content stored under the given key.
	Download(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the object. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Exists reports whether an object is stored under the key.
	Exists(ctx context.Context, key string) (bool, error)

	// URLFor returns the stable public URL for the key.
	URLFor(key string) string
}

// Repository defines the interface for media catalog persistence.
//
// Only the registry service and the usage tracker mutate records; the
// content hash is immutable after creation except through ReplaceFile,
// and the usage flag is written only through SetUsageFlag.
type Repository interface {
	// CreateMedia inserts a new record. It returns ErrDuplicateContentHash
	// when another record already holds the same content hash.
	CreateMedia(ctx context.Context, record *MediaRecord) error

	GetMedia(ctx context.Context, id uuid.UUID) (*MediaRecord, error)
	GetMediaByHash(ctx context.Context, hash string) (*MediaRecord, error)

	// UpdateMedia rewrites a record. ErrDuplicateContentHash applies as for
	// CreateMedia when the update would violate hash uniqueness.
	UpdateMedia(ctx context.Context, record *MediaRecord) error

	// SetUsageFlag stores the usage flag and reports whether the stored
	// value changed. Implementations must skip the write when the value is
	// already current.
	SetUsageFlag(ctx context.Context, id uuid.UUID, used bool) (bool, error)

	// DeleteMedia removes a record. Deleting an absent id is a no-op.
	DeleteMedia(ctx context.Context, id uuid.UUID) error

	ListMedia(ctx context.Context, filters MediaListFilters) ([]*MediaRecord, error)
}

// ContentHasher computes a stable content digest for uploaded bytes.
type ContentHasher interface {
	// Hash consumes the reader fully and returns the hex digest.
	Hash(reader io.Reader) (string, error)
}
