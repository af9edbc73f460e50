// Package schema describes which entity types hold references to media
// records.
//
// Instead of reflecting over a model registry at call time, the set of
// media-bearing relations is declared once at startup: each entity type
// registers a descriptor listing its relation fields (single- or
// multi-valued) and its rich-text fields. The reference scanner walks
// these descriptors generically; adding a new content type means
// registering one more descriptor, never touching scanner code.
package schema

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Cardinality classifies a relation field.
type Cardinality string

const (
	// Single is a foreign-key / one-to-one relation holding at most one
	// media id.
	Single Cardinality = "single"

	// Multi is a many-to-many relation holding a set of media ids.
	Multi Cardinality = "multi"
)

// RelationField describes one media-bearing relation of an entity type.
//
// The SQL mapping fields are consumed by the postgres source only; the
// in-memory source resolves fields by name.
type RelationField struct {
	Name        string      `yaml:"name"`
	Cardinality Cardinality `yaml:"cardinality"`

	// Single-valued mapping: media id column on the entity table.
	Table  string `yaml:"table,omitempty"`
	Column string `yaml:"column,omitempty"`

	// Multi-valued mapping: join table with a media id column.
	JoinTable       string `yaml:"join_table,omitempty"`
	JoinMediaColumn string `yaml:"join_media_column,omitempty"`
}

// RichTextField describes a rich-text field whose body may embed media
// URLs. Localized fields store one value per locale.
type RichTextField struct {
	Name      string `yaml:"name"`
	Localized bool   `yaml:"localized,omitempty"`

	// SQL mapping: for localized fields Table names the translation table,
	// which holds one row per locale.
	Table  string `yaml:"table,omitempty"`
	Column string `yaml:"column,omitempty"`
}

// EntityType is the declared descriptor of one content type.
type EntityType struct {
	Name      string          `yaml:"name"`
	Relations []RelationField `yaml:"relations,omitempty"`
	RichText  []RichTextField `yaml:"rich_text,omitempty"`
}

// Validate checks the descriptor for internal consistency.
func (et EntityType) Validate() error {
	if et.Name == "" {
		return fmt.Errorf("entity type name is required")
	}
	seen := make(map[string]bool)
	for _, rel := range et.Relations {
		if rel.Name == "" {
			return fmt.Errorf("entity type %q: relation field name is required", et.Name)
		}
		if seen[rel.Name] {
			return fmt.Errorf("entity type %q: duplicate field %q", et.Name, rel.Name)
		}
		seen[rel.Name] = true
		if rel.Cardinality != Single && rel.Cardinality != Multi {
			return fmt.Errorf("entity type %q: field %q: invalid cardinality %q", et.Name, rel.Name, rel.Cardinality)
		}
	}
	for _, rt := range et.RichText {
		if rt.Name == "" {
			return fmt.Errorf("entity type %q: rich-text field name is required", et.Name)
		}
		if seen[rt.Name] {
			return fmt.Errorf("entity type %q: duplicate field %q", et.Name, rt.Name)
		}
		seen[rt.Name] = true
	}
	return nil
}

// Registry holds every declared entity type plus the observers subscribed
// to relation events. Both sets are fixed at startup; reads at scan time
// take no per-type locks beyond the registry's RWMutex.
type Registry struct {
	mu        sync.RWMutex
	types     map[string]EntityType
	order     []string
	observers []Observer
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]EntityType)}
}

// Register adds an entity type descriptor. Registering the same name twice
// is an error.
func (r *Registry) Register(et EntityType) error {
	if err := et.Validate(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.types[et.Name]; exists {
		return fmt.Errorf("entity type %q already registered", et.Name)
	}
	r.types[et.Name] = et
	r.order = append(r.order, et.Name)
	return nil
}

// Type returns the descriptor for a registered entity type.
func (r *Registry) Type(name string) (EntityType, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	et, ok := r.types[name]
	return et, ok
}

// Types returns all descriptors in registration order.
func (r *Registry) Types() []EntityType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]EntityType, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.types[name])
	}
	return out
}

// Subscribe attaches an observer for relation events. Subscription happens
// once at schema build time, not per save.
func (r *Registry) Subscribe(o Observer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.observers = append(r.observers, o)
}

// Publish delivers a relation event to every subscribed observer.
// Observers are expected to be fast: they enqueue async work rather than
// scanning inline.
func (r *Registry) Publish(ctx context.Context, ev RelationEvent) {
	r.mu.RLock()
	observers := r.observers
	r.mu.RUnlock()

	for _, o := range observers {
		o.RelationChanged(ctx, ev)
	}
}

// EventKind classifies a relation event.
type EventKind string

const (
	// EntitySaved fires after an entity create or update touching a
	// single-valued media relation.
	EntitySaved EventKind = "entity_saved"

	// EntityDeleted fires after an entity holding media relations is
	// deleted.
	EntityDeleted EventKind = "entity_deleted"

	// RelationAdded / RelationRemoved fire on multi-valued relation edits.
	RelationAdded   EventKind = "relation_added"
	RelationRemoved EventKind = "relation_removed"
)

// RelationEvent describes a mutation of a media-bearing relation.
type RelationEvent struct {
	Kind       EventKind `json:"kind"`
	EntityType string    `json:"entity_type"`
	Field      string    `json:"field"`

	// Previous and Current carry the old and new values of a single-valued
	// relation; either may be nil.
	Previous *uuid.UUID `json:"previous,omitempty"`
	Current  *uuid.UUID `json:"current,omitempty"`

	// MediaIDs carries the ids affected by a multi-valued edit or an
	// entity deletion.
	MediaIDs []uuid.UUID `json:"media_ids,omitempty"`
}

// AffectedMedia returns the deduplicated set of media ids whose usage may
// have changed.
func (e RelationEvent) AffectedMedia() []uuid.UUID {
	set := make(map[uuid.UUID]struct{})
	if e.Previous != nil {
		set[*e.Previous] = struct{}{}
	}
	if e.Current != nil {
		set[*e.Current] = struct{}{}
	}
	for _, id := range e.MediaIDs {
		set[id] = struct{}{}
	}

	out := make([]uuid.UUID, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// Observer receives relation events. The usage tracker implements this.
type Observer interface {
	RelationChanged(ctx context.Context, ev RelationEvent)
}

// Source reads entity data for the reference scanner. Implementations are
// pure readers; they never mutate entities or media.
type Source interface {
	// CountRelationRefs returns how many instances of the entity type hold
	// the media id in the given relation field.
	CountRelationRefs(ctx context.Context, entityType string, field RelationField, mediaID uuid.UUID) (int64, error)

	// RichTextValues streams every value of the rich-text field across all
	// instances, including every localized variant. Iteration stops at the
	// first error returned by fn, which is propagated.
	RichTextValues(ctx context.Context, entityType string, field RichTextField, fn func(text string) error) error
}
