// Package fs provides a filesystem blob store for single-host
// deployments and development.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/wavecms/mediastore/pkg/mediastore"
)

// Backend is a filesystem implementation of the mediastore.BlobStore
// interface.
type Backend struct {
	baseDir   string
	urlPrefix string
}

// Config options for the filesystem backend.
type Config struct {
	BaseDir   string // Base directory for storing blobs
	URLPrefix string // URL prefix under which the directory is served
}

// New creates a new filesystem storage backend.
func New(config Config) (*Backend, error) {
	if config.BaseDir == "" {
		return nil, errors.New("base directory is required")
	}
	if err := os.MkdirAll(config.BaseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	return &Backend{
		baseDir:   config.BaseDir,
		urlPrefix: strings.TrimSuffix(config.URLPrefix, "/"),
	}, nil
}

// Upload writes the content to a file under the key. The write goes
// through a temp file and rename so readers never see partial content.
func (b *Backend) Upload(ctx context.Context, key string, reader io.Reader) error {
	filePath, err := b.resolve(key)
	if err != nil {
		return &mediastore.StorageError{Backend: "fs", Key: key, Op: "upload", Err: err}
	}

	if err := os.MkdirAll(filepath.Dir(filePath), 0755); err != nil {
		return &mediastore.StorageError{Backend: "fs", Key: key, Op: "upload", Err: err}
	}

	tmp, err := os.CreateTemp(filepath.Dir(filePath), ".upload-*")
	if err != nil {
		return &mediastore.StorageError{Backend: "fs", Key: key, Op: "upload", Err: err}
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, reader); err != nil {
		tmp.Close()
		return &mediastore.StorageError{Backend: "fs", Key: key, Op: "upload", Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &mediastore.StorageError{Backend: "fs", Key: key, Op: "upload", Err: err}
	}
	if err := os.Rename(tmp.Name(), filePath); err != nil {
		return &mediastore.StorageError{Backend: "fs", Key: key, Op: "upload", Err: err}
	}
	return nil
}

// Download opens the stored file.
func (b *Backend) Download(ctx context.Context, key string) (io.ReadCloser, error) {
	filePath, err := b.resolve(key)
	if err != nil {
		return nil, &mediastore.StorageError{Backend: "fs", Key: key, Op: "download", Err: err}
	}

	file, err := os.Open(filePath)
	if os.IsNotExist(err) {
		return nil, &mediastore.StorageError{Backend: "fs", Key: key, Op: "download", Err: mediastore.ErrBlobNotFound}
	} else if err != nil {
		return nil, &mediastore.StorageError{Backend: "fs", Key: key, Op: "download", Err: err}
	}
	return file, nil
}

// Delete removes the file and prunes empty parent directories. Deleting
// a missing key is a no-op.
func (b *Backend) Delete(ctx context.Context, key string) error {
	filePath, err := b.resolve(key)
	if err != nil {
		return &mediastore.StorageError{Backend: "fs", Key: key, Op: "delete", Err: err}
	}

	if err := os.Remove(filePath); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return &mediastore.StorageError{Backend: "fs", Key: key, Op: "delete", Err: err}
	}

	b.cleanupEmptyDirectories(filepath.Dir(filePath))
	return nil
}

// Exists reports whether the key holds a file.
func (b *Backend) Exists(ctx context.Context, key string) (bool, error) {
	filePath, err := b.resolve(key)
	if err != nil {
		return false, &mediastore.StorageError{Backend: "fs", Key: key, Op: "exists", Err: err}
	}

	_, err = os.Stat(filePath)
	if os.IsNotExist(err) {
		return false, nil
	} else if err != nil {
		return false, &mediastore.StorageError{Backend: "fs", Key: key, Op: "exists", Err: err}
	}
	return true, nil
}

// URLFor returns the public URL the key is served under.
func (b *Backend) URLFor(key string) string {
	return b.urlPrefix + "/" + key
}

// resolve maps a key to an absolute path, rejecting traversal out of the
// base directory.
func (b *Backend) resolve(key string) (string, error) {
	filePath := filepath.Join(b.baseDir, filepath.FromSlash(key))
	rel, err := filepath.Rel(b.baseDir, filePath)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	return filePath, nil
}

// cleanupEmptyDirectories recursively removes empty directories up to
// baseDir.
func (b *Backend) cleanupEmptyDirectories(dir string) {
	if dir == b.baseDir {
		return
	}
	if entries, err := os.ReadDir(dir); err == nil && len(entries) == 0 {
		if os.Remove(dir) == nil {
			b.cleanupEmptyDirectories(filepath.Dir(dir))
		}
	}
}
