package mediastore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

// hashChunkSize is the read granularity for streamed hashing. Uploads are
// never held in memory as a whole.
const hashChunkSize = 64 * 1024

// SHA256Hasher computes streaming SHA-256 digests.
type SHA256Hasher struct{}

// NewSHA256Hasher returns the default content hasher.
func NewSHA256Hasher() *SHA256Hasher {
	return &SHA256Hasher{}
}

// Hash consumes the reader in chunks and returns the hex SHA-256 digest.
func (h *SHA256Hasher) Hash(reader io.Reader) (string, error) {
	sum := sha256.New()
	buf := make([]byte, hashChunkSize)
	if _, err := io.CopyBuffer(sum, reader, buf); err != nil {
		return "", &HashError{Err: err}
	}
	return hex.EncodeToString(sum.Sum(nil)), nil
}

// spool holds uploaded bytes in a temporary file so they can be replayed
// into the blob store after the dedup decision has been made.
type spool struct {
	file   *os.File
	digest string
	size   int64
}

// spoolContent streams the reader to a temp file while hashing it. The
// caller must Close the returned spool.
func spoolContent(hasher ContentHasher, reader io.Reader) (*spool, error) {
	f, err := os.CreateTemp("", "mediastore-upload-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create upload spool: %w", err)
	}

	digest, err := hasher.Hash(io.TeeReader(reader, f))
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, err
	}

	size, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("failed to size upload spool: %w", err)
	}

	return &spool{file: f, digest: digest, size: size}, nil
}

// Reader rewinds the spool and returns a reader over the full content.
func (s *spool) Reader() (io.Reader, error) {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("failed to rewind upload spool: %w", err)
	}
	return s.file, nil
}

// Close removes the backing temp file.
func (s *spool) Close() error {
	name := s.file.Name()
	err := s.file.Close()
	if rmErr := os.Remove(name); err == nil {
		err = rmErr
	}
	return err
}
