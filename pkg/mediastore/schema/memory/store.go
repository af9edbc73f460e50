// Package memory provides an in-memory entity store implementing
// schema.Source. It backs tests and the development server; production
// deployments read entity data through the postgres source.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/wavecms/mediastore/pkg/mediastore/schema"
)

// Entity is one content instance with its media relations and rich-text
// bodies. RichText maps field name to locale ("" for non-localized) to
// raw text.
type Entity struct {
	ID       uuid.UUID
	Type     string
	Single   map[string]*uuid.UUID
	Multi    map[string][]uuid.UUID
	RichText map[string]map[string]string
}

// NewEntity creates an empty entity of the given type.
func NewEntity(entityType string) *Entity {
	return &Entity{
		ID:       uuid.New(),
		Type:     entityType,
		Single:   make(map[string]*uuid.UUID),
		Multi:    make(map[string][]uuid.UUID),
		RichText: make(map[string]map[string]string),
	}
}

// SetRichText sets a rich-text value for a locale ("" for the default).
func (e *Entity) SetRichText(field, locale, text string) {
	if e.RichText[field] == nil {
		e.RichText[field] = make(map[string]string)
	}
	e.RichText[field][locale] = text
}

// Store holds entities and publishes relation events to the schema
// registry on every mutation, mirroring save/delete/m2m hooks.
type Store struct {
	registry *schema.Registry

	mu       sync.RWMutex
	entities map[string]map[uuid.UUID]*Entity
	readErr  map[string]error
}

// New creates an empty entity store bound to the registry.
func New(registry *schema.Registry) *Store {
	return &Store{
		registry: registry,
		entities: make(map[string]map[uuid.UUID]*Entity),
		readErr:  make(map[string]error),
	}
}

// Save inserts or updates an entity and publishes one event per changed
// single-valued relation. Multi-valued relations are edited through
// AddToRelation / RemoveFromRelation.
func (s *Store) Save(ctx context.Context, entity *Entity) error {
	et, ok := s.registry.Type(entity.Type)
	if !ok {
		return fmt.Errorf("unknown entity type %q", entity.Type)
	}

	s.mu.Lock()
	var old *Entity
	if byID := s.entities[entity.Type]; byID != nil {
		old = byID[entity.ID]
	} else {
		s.entities[entity.Type] = make(map[uuid.UUID]*Entity)
	}
	stored := cloneEntity(entity)
	s.entities[entity.Type][entity.ID] = stored
	s.mu.Unlock()

	for _, rel := range et.Relations {
		if rel.Cardinality != schema.Single {
			continue
		}
		var prev *uuid.UUID
		if old != nil {
			prev = old.Single[rel.Name]
		}
		curr := entity.Single[rel.Name]
		if uuidPtrEqual(prev, curr) {
			continue
		}
		s.registry.Publish(ctx, schema.RelationEvent{
			Kind:       schema.EntitySaved,
			EntityType: entity.Type,
			Field:      rel.Name,
			Previous:   prev,
			Current:    curr,
		})
	}
	return nil
}

// Delete removes an entity and publishes events for every media id it
// referenced.
func (s *Store) Delete(ctx context.Context, entityType string, id uuid.UUID) error {
	et, ok := s.registry.Type(entityType)
	if !ok {
		return fmt.Errorf("unknown entity type %q", entityType)
	}

	s.mu.Lock()
	byID := s.entities[entityType]
	entity := byID[id]
	if entity != nil {
		delete(byID, id)
	}
	s.mu.Unlock()

	if entity == nil {
		return nil
	}

	for _, rel := range et.Relations {
		switch rel.Cardinality {
		case schema.Single:
			if prev := entity.Single[rel.Name]; prev != nil {
				s.registry.Publish(ctx, schema.RelationEvent{
					Kind:       schema.EntityDeleted,
					EntityType: entityType,
					Field:      rel.Name,
					Previous:   prev,
				})
			}
		case schema.Multi:
			if ids := entity.Multi[rel.Name]; len(ids) > 0 {
				s.registry.Publish(ctx, schema.RelationEvent{
					Kind:       schema.EntityDeleted,
					EntityType: entityType,
					Field:      rel.Name,
					MediaIDs:   ids,
				})
			}
		}
	}
	return nil
}

// AddToRelation appends media ids to a multi-valued relation.
func (s *Store) AddToRelation(ctx context.Context, entityType string, id uuid.UUID, field string, mediaIDs ...uuid.UUID) error {
	entity, err := s.lookup(entityType, id)
	if err != nil {
		return err
	}

	s.mu.Lock()
	entity.Multi[field] = append(entity.Multi[field], mediaIDs...)
	s.mu.Unlock()

	s.registry.Publish(ctx, schema.RelationEvent{
		Kind:       schema.RelationAdded,
		EntityType: entityType,
		Field:      field,
		MediaIDs:   mediaIDs,
	})
	return nil
}

// RemoveFromRelation removes media ids from a multi-valued relation.
func (s *Store) RemoveFromRelation(ctx context.Context, entityType string, id uuid.UUID, field string, mediaIDs ...uuid.UUID) error {
	entity, err := s.lookup(entityType, id)
	if err != nil {
		return err
	}

	remove := make(map[uuid.UUID]struct{}, len(mediaIDs))
	for _, mid := range mediaIDs {
		remove[mid] = struct{}{}
	}

	s.mu.Lock()
	kept := entity.Multi[field][:0]
	for _, mid := range entity.Multi[field] {
		if _, drop := remove[mid]; !drop {
			kept = append(kept, mid)
		}
	}
	entity.Multi[field] = kept
	s.mu.Unlock()

	s.registry.Publish(ctx, schema.RelationEvent{
		Kind:       schema.RelationRemoved,
		EntityType: entityType,
		Field:      field,
		MediaIDs:   mediaIDs,
	})
	return nil
}

// FailReads makes every read of the entity type return err. Used to
// exercise partial-failure tolerance in scans; pass nil to clear.
func (s *Store) FailReads(entityType string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.readErr, entityType)
		return
	}
	s.readErr[entityType] = err
}

// CountRelationRefs implements schema.Source.
func (s *Store) CountRelationRefs(ctx context.Context, entityType string, field schema.RelationField, mediaID uuid.UUID) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.readErr[entityType]; err != nil {
		return 0, err
	}

	var count int64
	for _, entity := range s.entities[entityType] {
		switch field.Cardinality {
		case schema.Single:
			if v := entity.Single[field.Name]; v != nil && *v == mediaID {
				count++
			}
		case schema.Multi:
			for _, mid := range entity.Multi[field.Name] {
				if mid == mediaID {
					count++
					break
				}
			}
		}
	}
	return count, nil
}

// RichTextValues implements schema.Source.
func (s *Store) RichTextValues(ctx context.Context, entityType string, field schema.RichTextField, fn func(text string) error) error {
	s.mu.RLock()
	if err := s.readErr[entityType]; err != nil {
		s.mu.RUnlock()
		return err
	}

	var values []string
	for _, entity := range s.entities[entityType] {
		for _, text := range entity.RichText[field.Name] {
			if text != "" {
				values = append(values, text)
			}
		}
	}
	s.mu.RUnlock()

	for _, text := range values {
		if err := fn(text); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) lookup(entityType string, id uuid.UUID) (*Entity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entity := s.entities[entityType][id]
	if entity == nil {
		return nil, fmt.Errorf("entity %s/%s not found", entityType, id)
	}
	return entity, nil
}

func cloneEntity(e *Entity) *Entity {
	clone := NewEntity(e.Type)
	clone.ID = e.ID
	for k, v := range e.Single {
		if v != nil {
			id := *v
			clone.Single[k] = &id
		}
	}
	for k, ids := range e.Multi {
		clone.Multi[k] = append([]uuid.UUID(nil), ids...)
	}
	for field, byLocale := range e.RichText {
		for locale, text := range byLocale {
			clone.SetRichText(field, locale, text)
		}
	}
	return clone
}

func uuidPtrEqual(a, b *uuid.UUID) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
