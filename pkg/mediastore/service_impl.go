package mediastore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/wavecms/mediastore/pkg/mediastore/objectkey"
)

// service implements the Service interface
type service struct {
	repository  Repository
	store       BlobStore
	backendName string
	hasher      ContentHasher
	keys        objectkey.Generator
}

// Option represents a functional option for configuring the service
type Option func(*service)

// WithRepository sets the catalog repository for the service
func WithRepository(repo Repository) Option {
	return func(s *service) {
		s.repository = repo
	}
}

// WithBlobStore sets the blob storage backend
func WithBlobStore(name string, store BlobStore) Option {
	return func(s *service) {
		s.backendName = name
		s.store = store
	}
}

// WithHasher overrides the content hasher (default: streaming SHA-256)
func WithHasher(hasher ContentHasher) Option {
	return func(s *service) {
		s.hasher = hasher
	}
}

// WithKeyGenerator overrides the storage key generator
func WithKeyGenerator(gen objectkey.Generator) Option {
	return func(s *service) {
		s.keys = gen
	}
}

// New creates a new registry service instance with the given options
func New(options ...Option) (Service, error) {
	s := &service{
		hasher: NewSHA256Hasher(),
		keys:   objectkey.NewTimeBasedGenerator("media"),
	}

	for _, option := range options {
		option(s)
	}

	if s.repository == nil {
		return nil, fmt.Errorf("repository is required")
	}
	if s.store == nil {
		return nil, fmt.Errorf("blob store is required")
	}

	return s, nil
}

func (s *service) Ingest(ctx context.Context, req IngestRequest) (*MediaRecord, bool, error) {
	sp, err := spoolContent(s.hasher, req.Reader)
	if err != nil {
		return nil, false, err
	}
	defer sp.Close()

	if sp.size == 0 {
		return nil, false, ErrEmptyContent
	}

	// Dedup lookup: identical content short-circuits to the existing record.
	existing, err := s.repository.GetMediaByHash(ctx, sp.digest)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrMediaNotFound) {
		return nil, false, fmt.Errorf("dedup lookup failed: %w", err)
	}

	key := s.keys.GenerateKey(time.Now().UTC(), req.FileName)
	content, err := sp.Reader()
	if err != nil {
		return nil, false, err
	}
	if err := s.store.Upload(ctx, key, content); err != nil {
		return nil, false, &StorageError{Backend: s.backendName, Key: key, Op: "upload", Err: err}
	}

	title := req.Title
	if title == "" {
		title = req.FileName
	}

	record := &MediaRecord{
		ID:           uuid.New(),
		ContentHash:  sp.digest,
		StorageKey:   key,
		Title:        title,
		UploadedAt:   time.Now().UTC(),
		IsUsedCached: false,
	}

	if err := s.repository.CreateMedia(ctx, record); err != nil {
		if errors.Is(err, ErrDuplicateContentHash) {
			// A concurrent identical upload won the insert race. Drop the
			// blob we just stored and return the winner's record.
			s.deleteBlob(ctx, key)
			winner, err := s.repository.GetMediaByHash(ctx, sp.digest)
			return winner, false, err
		}
		s.deleteBlob(ctx, key)
		return nil, false, &MediaError{MediaID: record.ID, Op: "ingest", Err: err}
	}

	return record, true, nil
}

func (s *service) ReplaceFile(ctx context.Context, id uuid.UUID, reader io.Reader, fileName string) (*MediaRecord, error) {
	record, err := s.repository.GetMedia(ctx, id)
	if err != nil {
		return nil, err
	}

	sp, err := spoolContent(s.hasher, reader)
	if err != nil {
		return nil, err
	}
	defer sp.Close()

	if sp.size == 0 {
		return nil, ErrEmptyContent
	}

	// Same bytes as before: nothing to swap.
	if sp.digest == record.ContentHash {
		return record, nil
	}

	// The new content matches a different existing record: merge the edited
	// record into it. The edited row and its blob are removed; callers
	// continue with the surviving record.
	if winner, err := s.repository.GetMediaByHash(ctx, sp.digest); err == nil && winner.ID != record.ID {
		oldKey := record.StorageKey
		if err := s.repository.DeleteMedia(ctx, record.ID); err != nil {
			return nil, &MediaError{MediaID: record.ID, Op: "replace_merge", Err: err}
		}
		s.deleteBlob(ctx, oldKey)
		slog.Info("replace merged into existing record",
			"media_id", record.ID, "merged_into", winner.ID)
		return winner, nil
	} else if err != nil && !errors.Is(err, ErrMediaNotFound) {
		return nil, fmt.Errorf("dedup lookup failed: %w", err)
	}

	newKey := s.keys.GenerateKey(time.Now().UTC(), fileName)
	content, err := sp.Reader()
	if err != nil {
		return nil, err
	}
	if err := s.store.Upload(ctx, newKey, content); err != nil {
		return nil, &StorageError{Backend: s.backendName, Key: newKey, Op: "upload", Err: err}
	}

	oldKey := record.StorageKey
	record.ContentHash = sp.digest
	record.StorageKey = newKey
	if record.Title == "" {
		record.Title = fileName
	}

	if err := s.repository.UpdateMedia(ctx, record); err != nil {
		if errors.Is(err, ErrDuplicateContentHash) {
			// Raced with a concurrent upload of the same new content.
			s.deleteBlob(ctx, newKey)
			return s.repository.GetMediaByHash(ctx, sp.digest)
		}
		s.deleteBlob(ctx, newKey)
		return nil, &MediaError{MediaID: record.ID, Op: "replace", Err: err}
	}

	s.deleteBlob(ctx, oldKey)
	return record, nil
}

func (s *service) GetMedia(ctx context.Context, id uuid.UUID) (*MediaRecord, error) {
	return s.repository.GetMedia(ctx, id)
}

func (s *service) FindByHash(ctx context.Context, hash string) (*MediaRecord, error) {
	return s.repository.GetMediaByHash(ctx, hash)
}

func (s *service) ListMedia(ctx context.Context, filters MediaListFilters) ([]*MediaRecord, error) {
	return s.repository.ListMedia(ctx, filters)
}

func (s *service) UpdateTitle(ctx context.Context, id uuid.UUID, title string) (*MediaRecord, error) {
	record, err := s.repository.GetMedia(ctx, id)
	if err != nil {
		return nil, err
	}
	record.Title = title
	if err := s.repository.UpdateMedia(ctx, record); err != nil {
		return nil, &MediaError{MediaID: id, Op: "update_title", Err: err}
	}
	return record, nil
}

func (s *service) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	record, err := s.repository.GetMedia(ctx, id)
	if err != nil {
		if errors.Is(err, ErrMediaNotFound) {
			return nil
		}
		return err
	}

	// Row removal comes first: a failed physical delete must never block
	// garbage collection. The orphaned blob is logged for manual cleanup.
	if err := s.repository.DeleteMedia(ctx, id); err != nil {
		return &MediaError{MediaID: id, Op: "delete", Err: err}
	}
	s.deleteBlob(ctx, record.StorageKey)
	return nil
}

func (s *service) URLFor(record *MediaRecord) string {
	return s.store.URLFor(record.StorageKey)
}

// deleteBlob removes an object best-effort. Failures leave an orphaned
// blob, which is accepted and logged rather than retried inline.
func (s *service) deleteBlob(ctx context.Context, key string) {
	if err := s.store.Delete(ctx, key); err != nil {
		slog.Warn("blob delete failed, object orphaned",
			"backend", s.backendName, "key", key, "error", err)
	}
}
