// Package memory provides an in-memory blob store for tests and
// examples.
package memory

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/wavecms/mediastore/pkg/mediastore"
)

// Backend is an in-memory implementation of the mediastore.BlobStore
// interface.
type Backend struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

// New creates a new in-memory storage backend.
func New() *Backend {
	return &Backend{objects: make(map[string][]byte)}
}

// Upload stores the content under the key.
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader) error {
	data, err := io.ReadAll(reader)
	if err != nil {
		return &mediastore.StorageError{Backend: "memory", Key: key, Op: "upload", Err: err}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

// Download returns a reader over the stored content.
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	data, exists := b.objects[key]
	if !exists {
		return nil, &mediastore.StorageError{Backend: "memory", Key: key, Op: "download", Err: mediastore.ErrBlobNotFound}
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// Delete removes the object. Deleting a missing key is a no-op.
func (b *Backend) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

// Exists reports whether the key holds an object.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, exists := b.objects[key]
	return exists, nil
}

// URLFor returns a stable pseudo URL for the key.
func (b *Backend) URLFor(key string) string {
	return "/media/" + key
}

// Len reports the number of stored objects.
func (b *Backend) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.objects)
}
