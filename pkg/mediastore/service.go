package mediastore

import (
	"context"
	"io"

	"github.com/google/uuid"
)

// Service is the media registry: the only component that creates, rewrites
// and removes catalog rows and their blobs.
type Service interface {
	// Ingest stores uploaded content. When a record with the same content
	// hash already exists, the existing record is returned unchanged with
	// created false and the uploaded bytes are discarded.
	Ingest(ctx context.Context, req IngestRequest) (record *MediaRecord, created bool, err error)

	// ReplaceFile swaps the stored file of an existing record in place.
	// When the new content matches a different existing record, the edited
	// record is merged into that record and the merged-into record is
	// returned.
	ReplaceFile(ctx context.Context, id uuid.UUID, reader io.Reader, fileName string) (*MediaRecord, error)

	GetMedia(ctx context.Context, id uuid.UUID) (*MediaRecord, error)
	FindByHash(ctx context.Context, hash string) (*MediaRecord, error)
	ListMedia(ctx context.Context, filters MediaListFilters) ([]*MediaRecord, error)

	// UpdateTitle changes the display title of a record.
	UpdateTitle(ctx context.Context, id uuid.UUID, title string) (*MediaRecord, error)

	// DeleteMedia removes the record and its blob. Deleting an absent id is
	// a no-op. A failed blob delete never blocks row removal.
	DeleteMedia(ctx context.Context, id uuid.UUID) error

	// URLFor returns the stable public URL of a record's blob.
	URLFor(record *MediaRecord) string
}
