// Package scan implements the reference scanner: the authoritative (but
// expensive) answer to "is this media record referenced anywhere?".
//
// The scanner walks the relation and rich-text fields declared in the
// schema registry. It never mutates anything; read failures against one
// entity type are logged and that type is skipped, so a partially broken
// schema still yields a best-available answer.
package scan

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	"github.com/wavecms/mediastore/pkg/mediastore"
	"github.com/wavecms/mediastore/pkg/mediastore/schema"
)

// errFound short-circuits rich-text iteration on the first match.
var errFound = errors.New("reference found")

// RichTextUsageField is the pseudo field name reported in usage listings
// for matches embedded in rich-text bodies.
const RichTextUsageField = "rich_text"

// Scanner evaluates media references against the declared schema.
type Scanner struct {
	registry *schema.Registry
	source   schema.Source
	repo     mediastore.Repository
	store    mediastore.BlobStore
}

// New creates a scanner.
func New(registry *schema.Registry, source schema.Source, repo mediastore.Repository, store mediastore.BlobStore) *Scanner {
	return &Scanner{registry: registry, source: source, repo: repo, store: store}
}

// IsReferenced reports whether any entity currently references the record,
// through a direct relation or an embedded rich-text URL. Direct relations
// are checked first and short-circuit; the rich-text sweep only runs when
// no direct reference exists.
func (s *Scanner) IsReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	direct, err := s.DirectlyReferenced(ctx, id)
	if err != nil || direct {
		return direct, err
	}

	record, err := s.repo.GetMedia(ctx, id)
	if err != nil {
		return false, err
	}
	return s.richTextReferenced(ctx, URLPath(s.store.URLFor(record.StorageKey))), nil
}

// DirectlyReferenced checks only FK/M2M relations, short-circuiting on the
// first hit. The full-catalog recompute uses this together with a single
// shared rich-text sweep instead of calling IsReferenced per record.
func (s *Scanner) DirectlyReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	for _, et := range s.registry.Types() {
		for _, rel := range et.Relations {
			count, err := s.source.CountRelationRefs(ctx, et.Name, rel, id)
			if err != nil {
				slog.Warn("reference scan skipping entity type",
					"entity_type", et.Name, "field", rel.Name, "error", err)
				continue
			}
			if count > 0 {
				return true, nil
			}
		}
	}
	return false, nil
}

// UsageDetails lists every place the record is referenced from, with
// per-field counts. Rich-text matches are reported under the
// RichTextUsageField pseudo field.
func (s *Scanner) UsageDetails(ctx context.Context, id uuid.UUID) ([]mediastore.Usage, error) {
	record, err := s.repo.GetMedia(ctx, id)
	if err != nil {
		return nil, err
	}
	blobPath := URLPath(s.store.URLFor(record.StorageKey))

	var usage []mediastore.Usage
	for _, et := range s.registry.Types() {
		for _, rel := range et.Relations {
			count, err := s.source.CountRelationRefs(ctx, et.Name, rel, id)
			if err != nil {
				slog.Warn("usage listing skipping entity type",
					"entity_type", et.Name, "field", rel.Name, "error", err)
				continue
			}
			if count > 0 {
				usage = append(usage, mediastore.Usage{EntityType: et.Name, Field: rel.Name, Count: count})
			}
		}

		var richCount int64
		for _, rt := range et.RichText {
			err := s.source.RichTextValues(ctx, et.Name, rt, func(text string) error {
				for _, p := range extractPaths(text) {
					if p == blobPath {
						richCount++
						break
					}
				}
				return nil
			})
			if err != nil {
				slog.Warn("usage listing skipping rich-text field",
					"entity_type", et.Name, "field", rt.Name, "error", err)
			}
		}
		if richCount > 0 {
			usage = append(usage, mediastore.Usage{EntityType: et.Name, Field: RichTextUsageField, Count: richCount})
		}
	}
	return usage, nil
}

// UsedPaths sweeps every rich-text field once and returns the set of
// embedded URL paths. This feeds the full-catalog recompute, which then
// needs only one membership test per record.
func (s *Scanner) UsedPaths(ctx context.Context) map[string]struct{} {
	used := make(map[string]struct{})
	for _, et := range s.registry.Types() {
		for _, rt := range et.RichText {
			err := s.source.RichTextValues(ctx, et.Name, rt, func(text string) error {
				for _, p := range extractPaths(text) {
					used[p] = struct{}{}
				}
				return nil
			})
			if err != nil {
				slog.Warn("rich-text sweep skipping field",
					"entity_type", et.Name, "field", rt.Name, "error", err)
			}
		}
	}
	return used
}

// richTextReferenced reports whether the blob path appears in any
// rich-text body, stopping at the first match.
func (s *Scanner) richTextReferenced(ctx context.Context, blobPath string) bool {
	for _, et := range s.registry.Types() {
		for _, rt := range et.RichText {
			err := s.source.RichTextValues(ctx, et.Name, rt, func(text string) error {
				for _, p := range extractPaths(text) {
					if p == blobPath {
						return errFound
					}
				}
				return nil
			})
			if errors.Is(err, errFound) {
				return true
			}
			if err != nil {
				slog.Warn("rich-text scan skipping field",
					"entity_type", et.Name, "field", rt.Name, "error", err)
			}
		}
	}
	return false
}
