package schema

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Document is the YAML representation of a schema:
//
//	kinds:
//	  - label: User
//	    required: [name]
//	    relations:
//	      - {name: roles, type: has_many, target: Role, edge: PERMITTED}
type Document struct {
	Kinds []KindDocument `yaml:"kinds"`
}

type KindDocument struct {
	Label     string             `yaml:"label"`
	Required  []string           `yaml:"required"`
	Relations []RelationDocument `yaml:"relations"`
}

type RelationDocument struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Target string `yaml:"target"`
	Edge   string `yaml:"edge"`
	// Cardinality and Direction are only read when Type is "custom".
	Cardinality Cardinality `yaml:"cardinality"`
	Direction   Direction   `yaml:"direction"`
}

// LoadYAML builds a registry from a schema document. Kinds are registered
// before relations so declarations may reference kinds defined later.
func LoadYAML(r io.Reader) (*Registry, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("schema.LoadYAML - failed to decode schema: %w", err)
	}

	registry := NewRegistry()
	for _, k := range doc.Kinds {
		if err := registry.Register(Kind{Label: k.Label, Required: k.Required}); err != nil {
			return nil, err
		}
	}

	for _, k := range doc.Kinds {
		for _, rel := range k.Relations {
			cardinality, direction, err := rel.shape()
			if err != nil {
				return nil, fmt.Errorf("schema.LoadYAML - %s.%s: %w", k.Label, rel.Name, err)
			}
			if _, err := registry.Describe(rel.Name, k.Label, rel.Target, rel.Edge, cardinality, direction); err != nil {
				return nil, err
			}
		}
	}

	return registry, nil
}

func (rel RelationDocument) shape() (Cardinality, Direction, error) {
	switch rel.Type {
	case "has_many":
		return Many, Outgoing, nil
	case "has_one":
		return One, Outgoing, nil
	case "belongs_to":
		return One, Incoming, nil
	case "belongs_to_many":
		return Many, Incoming, nil
	case "custom":
		return rel.Cardinality, rel.Direction, nil
	}
	return "", "", fmt.Errorf("unsupported relation type %q", rel.Type)
}
