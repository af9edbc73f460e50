// Package postgres implements mediastore.Repository using PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wavecms/mediastore/pkg/mediastore"
)

// DBTX is an interface that allows us to use either a database
// connection or a transaction.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Repository implements mediastore.Repository using PostgreSQL.
type Repository struct {
	db DBTX
}

// New creates a new PostgreSQL repository.
func New(db DBTX) mediastore.Repository {
	return &Repository{db: db}
}

// NewWithPool creates a new PostgreSQL repository with a connection pool.
func NewWithPool(pool *pgxpool.Pool) mediastore.Repository {
	return &Repository{db: pool}
}

const mediaColumns = "id, content_hash, storage_key, title, uploaded_at, is_used_cached"

// CreateMedia inserts a record. A content_hash collision maps to
// ErrDuplicateContentHash so the service can resolve the dedup race.
func (r *Repository) CreateMedia(ctx context.Context, record *mediastore.MediaRecord) error {
	query := `
		INSERT INTO media (id, content_hash, storage_key, title, uploaded_at, is_used_cached)
		VALUES ($1, $2, $3, $4, $5, $6)`

	_, err := r.db.Exec(ctx, query,
		record.ID, record.ContentHash, record.StorageKey,
		record.Title, record.UploadedAt, record.IsUsedCached)
	if err != nil {
		return r.handlePostgresError("create media", err)
	}
	return nil
}

// GetMedia looks up a record by id.
func (r *Repository) GetMedia(ctx context.Context, id uuid.UUID) (*mediastore.MediaRecord, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE id = $1`

	record, err := r.scanMedia(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mediastore.ErrMediaNotFound
		}
		return nil, err
	}
	return record, nil
}

// GetMediaByHash looks up a record by content hash.
func (r *Repository) GetMediaByHash(ctx context.Context, contentHash string) (*mediastore.MediaRecord, error) {
	query := `SELECT ` + mediaColumns + ` FROM media WHERE content_hash = $1`

	record, err := r.scanMedia(r.db.QueryRow(ctx, query, contentHash))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, mediastore.ErrMediaNotFound
		}
		return nil, err
	}
	return record, nil
}

// UpdateMedia rewrites the mutable fields of a record.
func (r *Repository) UpdateMedia(ctx context.Context, record *mediastore.MediaRecord) error {
	query := `
		UPDATE media SET content_hash = $2, storage_key = $3, title = $4,
			uploaded_at = $5, is_used_cached = $6
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query,
		record.ID, record.ContentHash, record.StorageKey,
		record.Title, record.UploadedAt, record.IsUsedCached)
	if err != nil {
		return r.handlePostgresError("update media", err)
	}
	if tag.RowsAffected() == 0 {
		return mediastore.ErrMediaNotFound
	}
	return nil
}

// SetUsageFlag writes the cached usage flag only when it differs from the
// stored value, and reports whether a write happened.
func (r *Repository) SetUsageFlag(ctx context.Context, id uuid.UUID, used bool) (bool, error) {
	query := `UPDATE media SET is_used_cached = $2 WHERE id = $1 AND is_used_cached <> $2`

	tag, err := r.db.Exec(ctx, query, id, used)
	if err != nil {
		return false, r.handlePostgresError("set usage flag", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// No write: either the flag already matched or the record is gone.
	var exists bool
	err = r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM media WHERE id = $1)`, id).Scan(&exists)
	if err != nil {
		return false, r.handlePostgresError("set usage flag", err)
	}
	if !exists {
		return false, mediastore.ErrMediaNotFound
	}
	return false, nil
}

// DeleteMedia removes a record. Deleting an absent id is a no-op.
func (r *Repository) DeleteMedia(ctx context.Context, id uuid.UUID) error {
	_, err := r.db.Exec(ctx, `DELETE FROM media WHERE id = $1`, id)
	if err != nil {
		return r.handlePostgresError("delete media", err)
	}
	return nil
}

// ListMedia returns records ordered by upload time, newest first.
func (r *Repository) ListMedia(ctx context.Context, filters mediastore.MediaListFilters) ([]*mediastore.MediaRecord, error) {
	query := `SELECT ` + mediaColumns + ` FROM media`
	var args []interface{}

	if filters.Used != nil {
		args = append(args, *filters.Used)
		query += ` WHERE is_used_cached = $` + strconv.Itoa(len(args))
	}
	query += ` ORDER BY uploaded_at DESC, id`
	if filters.Limit != nil {
		args = append(args, *filters.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
	}
	if filters.Offset != nil {
		args = append(args, *filters.Offset)
		query += ` OFFSET $` + strconv.Itoa(len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, r.handlePostgresError("list media", err)
	}
	defer rows.Close()

	var records []*mediastore.MediaRecord
	for rows.Next() {
		record, err := r.scanMedia(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func (r *Repository) scanMedia(row pgx.Row) (*mediastore.MediaRecord, error) {
	var record mediastore.MediaRecord
	err := row.Scan(
		&record.ID, &record.ContentHash, &record.StorageKey,
		&record.Title, &record.UploadedAt, &record.IsUsedCached)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// handlePostgresError maps database errors onto the package error
// taxonomy.
func (r *Repository) handlePostgresError(operation string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505": // unique_violation
			return mediastore.ErrDuplicateContentHash
		case "23502": // not_null_violation
			return fmt.Errorf("required field %s is missing", pgErr.ColumnName)
		case "42P01": // undefined_table
			return fmt.Errorf("table does not exist - database migration required")
		default:
			return fmt.Errorf("database error in %s: %s (code: %s)", operation, pgErr.Message, pgErr.Code)
		}
	}
	return fmt.Errorf("database error in %s: %w", operation, err)
}
