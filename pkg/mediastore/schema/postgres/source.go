// Package postgres implements schema.Source over the content database
// using the SQL mappings declared in the schema description.
package postgres

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wavecms/mediastore/pkg/mediastore/schema"
)

// DBTX is satisfied by both a pgx pool and a transaction.
type DBTX interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Source reads entity relation and rich-text data with plain SQL built
// from the declared descriptors. Table and column names come from the
// trusted schema description, never from request input; they are still
// quoted defensively.
type Source struct {
	db DBTX
}

// New creates a postgres-backed entity source.
func New(db DBTX) *Source {
	return &Source{db: db}
}

// NewWithPool creates a postgres-backed entity source from a pool.
func NewWithPool(pool *pgxpool.Pool) *Source {
	return &Source{db: pool}
}

// CountRelationRefs implements schema.Source.
func (s *Source) CountRelationRefs(ctx context.Context, entityType string, field schema.RelationField, mediaID uuid.UUID) (int64, error) {
	var query string
	switch field.Cardinality {
	case schema.Single:
		if field.Table == "" || field.Column == "" {
			return 0, fmt.Errorf("entity type %q: field %q has no table/column mapping", entityType, field.Name)
		}
		query = fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1",
			pgx.Identifier{field.Table}.Sanitize(), pgx.Identifier{field.Column}.Sanitize())
	case schema.Multi:
		if field.JoinTable == "" || field.JoinMediaColumn == "" {
			return 0, fmt.Errorf("entity type %q: field %q has no join table mapping", entityType, field.Name)
		}
		query = fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1",
			pgx.Identifier{field.JoinTable}.Sanitize(), pgx.Identifier{field.JoinMediaColumn}.Sanitize())
	default:
		return 0, fmt.Errorf("entity type %q: field %q: unknown cardinality %q", entityType, field.Name, field.Cardinality)
	}

	var count int64
	if err := s.db.QueryRow(ctx, query, mediaID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count %s.%s refs: %w", entityType, field.Name, err)
	}
	return count, nil
}

// RichTextValues implements schema.Source. Localized fields live in
// translation tables holding one row per locale, so a plain column scan
// already covers every variant.
func (s *Source) RichTextValues(ctx context.Context, entityType string, field schema.RichTextField, fn func(text string) error) error {
	if field.Table == "" || field.Column == "" {
		return fmt.Errorf("entity type %q: rich-text field %q has no table/column mapping", entityType, field.Name)
	}

	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IS NOT NULL AND %s <> ''",
		pgx.Identifier{field.Column}.Sanitize(), pgx.Identifier{field.Table}.Sanitize(),
		pgx.Identifier{field.Column}.Sanitize(), pgx.Identifier{field.Column}.Sanitize())

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to read %s.%s values: %w", entityType, field.Name, err)
	}
	defer rows.Close()

	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return fmt.Errorf("failed to scan %s.%s value: %w", entityType, field.Name, err)
		}
		if err := fn(text); err != nil {
			return err
		}
	}
	return rows.Err()
}
