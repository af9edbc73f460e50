package mediastore

import (
	"time"

	"github.com/google/uuid"
)

// MediaRecord represents one distinct stored blob in the catalog.
//
// ContentHash is the dedup key: the catalog never holds two records with
// the same hash. StorageKey is time-derived at creation and is not related
// to the content hash; when identical content is uploaded twice, the
// surviving key is whichever upload arrived first.
type MediaRecord struct {
	ID          uuid.UUID `json:"id"`
	ContentHash string    `json:"content_hash"`
	StorageKey  string    `json:"storage_key"`
	Title       string    `json:"title,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`

	// IsUsedCached is a cache of the reference scanner's last known answer.
	// It is not authoritative; it converges to the true reference state via
	// asynchronous recomputation.
	IsUsedCached bool `json:"is_used_cached"`
}

// Usage describes where a media record is referenced from.
type Usage struct {
	EntityType string `json:"entity_type"`
	Field      string `json:"field"`
	Count      int64  `json:"count"`
}

// MediaListFilters defines filtering options for listing media records.
type MediaListFilters struct {
	Used   *bool
	Limit  *int
	Offset *int
}

// UsedFilter builds the pointer value for MediaListFilters.Used.
func UsedFilter(used bool) *bool {
	return &used
}
