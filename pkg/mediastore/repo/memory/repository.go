// Package memory provides an in-memory implementation of
// mediastore.Repository for tests and examples.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/wavecms/mediastore/pkg/mediastore"
)

// Repository is an in-memory implementation of mediastore.Repository.
// Records are copied on the way in and out so callers cannot mutate
// stored state.
type Repository struct {
	mu     sync.RWMutex
	byID   map[uuid.UUID]*mediastore.MediaRecord
	byHash map[string]uuid.UUID
}

// New creates a new in-memory repository.
func New() *Repository {
	return &Repository{
		byID:   make(map[uuid.UUID]*mediastore.MediaRecord),
		byHash: make(map[string]uuid.UUID),
	}
}

// CreateMedia implements mediastore.Repository.
func (r *Repository) CreateMedia(ctx context.Context, record *mediastore.MediaRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byHash[record.ContentHash]; exists {
		return mediastore.ErrDuplicateContentHash
	}

	stored := *record
	r.byID[stored.ID] = &stored
	r.byHash[stored.ContentHash] = stored.ID
	return nil
}

// GetMedia implements mediastore.Repository.
func (r *Repository) GetMedia(ctx context.Context, id uuid.UUID) (*mediastore.MediaRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, exists := r.byID[id]
	if !exists {
		return nil, mediastore.ErrMediaNotFound
	}
	copied := *record
	return &copied, nil
}

// GetMediaByHash implements mediastore.Repository.
func (r *Repository) GetMediaByHash(ctx context.Context, contentHash string) (*mediastore.MediaRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, exists := r.byHash[contentHash]
	if !exists {
		return nil, mediastore.ErrMediaNotFound
	}
	copied := *r.byID[id]
	return &copied, nil
}

// UpdateMedia implements mediastore.Repository.
func (r *Repository) UpdateMedia(ctx context.Context, record *mediastore.MediaRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, exists := r.byID[record.ID]
	if !exists {
		return mediastore.ErrMediaNotFound
	}

	if record.ContentHash != existing.ContentHash {
		if _, taken := r.byHash[record.ContentHash]; taken {
			return mediastore.ErrDuplicateContentHash
		}
		delete(r.byHash, existing.ContentHash)
		r.byHash[record.ContentHash] = record.ID
	}

	stored := *record
	r.byID[stored.ID] = &stored
	return nil
}

// SetUsageFlag implements mediastore.Repository.
func (r *Repository) SetUsageFlag(ctx context.Context, id uuid.UUID, used bool) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.byID[id]
	if !exists {
		return false, mediastore.ErrMediaNotFound
	}
	if record.IsUsedCached == used {
		return false, nil
	}
	record.IsUsedCached = used
	return true, nil
}

// DeleteMedia implements mediastore.Repository. Deleting an absent id is
// a no-op.
func (r *Repository) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	record, exists := r.byID[id]
	if !exists {
		return nil
	}
	delete(r.byHash, record.ContentHash)
	delete(r.byID, id)
	return nil
}

// ListMedia implements mediastore.Repository. Records come back ordered
// by upload time, newest first.
func (r *Repository) ListMedia(ctx context.Context, filters mediastore.MediaListFilters) ([]*mediastore.MediaRecord, error) {
	r.mu.RLock()
	records := make([]*mediastore.MediaRecord, 0, len(r.byID))
	for _, record := range r.byID {
		if filters.Used != nil && record.IsUsedCached != *filters.Used {
			continue
		}
		copied := *record
		records = append(records, &copied)
	}
	r.mu.RUnlock()

	sort.Slice(records, func(i, j int) bool {
		if !records[i].UploadedAt.Equal(records[j].UploadedAt) {
			return records[i].UploadedAt.After(records[j].UploadedAt)
		}
		return records[i].ID.String() < records[j].ID.String()
	})

	if filters.Offset != nil {
		offset := *filters.Offset
		if offset >= len(records) {
			return nil, nil
		}
		records = records[offset:]
	}
	if filters.Limit != nil && *filters.Limit < len(records) {
		records = records[:*filters.Limit]
	}
	return records, nil
}
