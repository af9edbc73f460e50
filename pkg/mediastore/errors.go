package mediastore

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Error types
var (
	// ErrMediaNotFound indicates a media record was not found
	ErrMediaNotFound = errors.New("media not found")

	// ErrDuplicateContentHash indicates an insert collided with an existing
	// record holding the same content hash. The service resolves this
	// internally by returning the winning record; callers of the service
	// never observe it.
	ErrDuplicateContentHash = errors.New("duplicate content hash")

	// ErrEmptyContent indicates an upload carried no bytes
	ErrEmptyContent = errors.New("empty content")

	// ErrBlobNotFound indicates a blob store key holds no object
	ErrBlobNotFound = errors.New("blob not found")
)

// MediaError represents an error related to catalog operations
type MediaError struct {
	MediaID uuid.UUID
	Op      string
	Err     error
}

func (e *MediaError) Error() string {
	return fmt.Sprintf("media operation %s failed for record %s: %v", e.Op, e.MediaID, e.Err)
}

func (e *MediaError) Unwrap() error {
	return e.Err
}

// StorageError represents an error related to blob store operations
type StorageError struct {
	Backend string
	Key     string
	Op      string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage operation %s failed for key %s on backend %s: %v", e.Op, e.Key, e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// HashError represents a read failure while computing a content digest.
// Uploads failing here are surfaced to the caller.
type HashError struct {
	Err error
}

func (e *HashError) Error() string {
	return fmt.Sprintf("content hash computation failed: %v", e.Err)
}

func (e *HashError) Unwrap() error {
	return e.Err
}
