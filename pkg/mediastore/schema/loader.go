package schema

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Description is the on-disk schema declaration consumed at startup.
//
// Example:
//
//	entity_types:
//	  - name: event
//	    relations:
//	      - {name: main_image, cardinality: single, table: events, column: main_image_id}
//	      - {name: gallery, cardinality: multi, join_table: event_gallery, join_media_column: media_id}
//	    rich_text:
//	      - {name: body, localized: true, table: event_translations, column: body}
type Description struct {
	EntityTypes []EntityType `yaml:"entity_types"`
}

// LoadFile reads a schema description from a YAML file and builds a
// registry from it.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema description: %w", err)
	}
	return Parse(data)
}

// Parse builds a registry from raw YAML.
func Parse(data []byte) (*Registry, error) {
	var desc Description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, fmt.Errorf("failed to parse schema description: %w", err)
	}

	registry := NewRegistry()
	for _, et := range desc.EntityTypes {
		if err := registry.Register(et); err != nil {
			return nil, err
		}
	}
	return registry, nil
}
