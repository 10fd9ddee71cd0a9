package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"storygraph/internal/story"
)

// Schema declares the custom attributes each entity kind carries beyond the
// relationship containers every entity has.
type Schema struct {
	Version int          `yaml:"version"`
	Kinds   []KindSchema `yaml:"kinds"`

	index map[story.Kind]map[string]*Attribute
}

type KindSchema struct {
	Name       string      `yaml:"name"`
	Attributes []Attribute `yaml:"attributes"`
}

type Attribute struct {
	Name     string   `yaml:"name"`
	Shape    string   `yaml:"shape"`
	Values   []string `yaml:"values"`
	Default  string   `yaml:"default"`
	Required bool     `yaml:"required"`
}

func LoadSchema(path string) (*Schema, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	var schema Schema
	if err := yaml.Unmarshal(data, &schema); err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	if err := validateSchema(&schema); err != nil {
		return nil, fmt.Errorf("loading schema: %w", err)
	}

	schema.buildIndex()
	return &schema, nil
}

func (s *Schema) buildIndex() {
	s.index = make(map[story.Kind]map[string]*Attribute)
	for i := range s.Kinds {
		ks := &s.Kinds[i]
		kind, _ := story.ParseKind(ks.Name)
		attrs := make(map[string]*Attribute)
		for j := range ks.Attributes {
			attr := &ks.Attributes[j]
			attrs[strings.ToLower(attr.Name)] = attr
		}
		s.index[kind] = attrs
	}
}

func validateSchema(s *Schema) error {
	if s.Version != 1 {
		return fmt.Errorf("unsupported version: %d", s.Version)
	}
	if len(s.Kinds) == 0 {
		return fmt.Errorf("at least one kind is required")
	}

	kinds := make(map[story.Kind]struct{})
	for i, ks := range s.Kinds {
		if strings.TrimSpace(ks.Name) == "" {
			return fmt.Errorf("kind %d name is required", i)
		}
		kind, err := story.ParseKind(ks.Name)
		if err != nil {
			return err
		}
		if _, exists := kinds[kind]; exists {
			return fmt.Errorf("duplicate kind: %s", ks.Name)
		}
		kinds[kind] = struct{}{}

		names := make(map[string]struct{})
		for _, attr := range ks.Attributes {
			name := strings.ToLower(strings.TrimSpace(attr.Name))
			if name == "" {
				return fmt.Errorf("kind %s has attribute with empty name", ks.Name)
			}
			if _, exists := names[name]; exists {
				return fmt.Errorf("kind %s has duplicate attribute: %s", ks.Name, attr.Name)
			}
			names[name] = struct{}{}

			shape, ok := story.ParseShape(attr.Shape)
			if !ok {
				return fmt.Errorf("kind %s attribute %s has unknown shape: %q", ks.Name, attr.Name, attr.Shape)
			}
			if known, reserved := story.WellKnownShape(kind, attr.Name); reserved && known != shape {
				return fmt.Errorf("kind %s attribute %s must be %s", ks.Name, attr.Name, known)
			}
			if len(attr.Values) > 0 && shape != story.ShapeScalar && shape != story.ShapeScalarList {
				return fmt.Errorf("kind %s attribute %s: values only apply to scalars", ks.Name, attr.Name)
			}
			if attr.Default != "" && len(attr.Values) > 0 && !containsFold(attr.Values, attr.Default) {
				return fmt.Errorf("kind %s attribute %s default %q is not an allowed value", ks.Name, attr.Name, attr.Default)
			}
		}
	}

	return nil
}

func containsFold(values []string, v string) bool {
	for _, candidate := range values {
		if strings.EqualFold(candidate, v) {
			return true
		}
	}
	return false
}

func (s *Schema) Attribute(kind story.Kind, name string) (*Attribute, bool) {
	if s == nil {
		return nil, false
	}
	attr, ok := s.index[kind][strings.ToLower(name)]
	return attr, ok
}

func (s *Schema) Attributes(kind story.Kind) []Attribute {
	if s == nil {
		return nil
	}
	for _, ks := range s.Kinds {
		if k, err := story.ParseKind(ks.Name); err == nil && k == kind {
			return ks.Attributes
		}
	}
	return nil
}

// AttributeShape resolves the declared shape of a custom attribute. It has
// the signature the codec expects for decode hints.
func (s *Schema) AttributeShape(kind story.Kind, name string) (story.Shape, bool) {
	attr, ok := s.Attribute(kind, name)
	if !ok {
		return 0, false
	}
	shape, ok := story.ParseShape(attr.Shape)
	return shape, ok
}

func (s *Schema) HasKind(kind story.Kind) bool {
	if s == nil {
		return false
	}
	_, ok := s.index[kind]
	return ok
}

// Allows reports whether v is an accepted value for the attribute. Attributes
// without a value list accept anything.
func (a *Attribute) Allows(v string) bool {
	if len(a.Values) == 0 {
		return true
	}
	return containsFold(a.Values, v)
}
