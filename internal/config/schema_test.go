package config

import (
	"os"
	"path/filepath"
	"testing"

	"storygraph/internal/story"
)

func TestLoadSchema(t *testing.T) {
	t.Run("valid schema loads", func(t *testing.T) {
		schema, err := LoadSchema(filepath.Join("testdata", "valid_schema.yaml"))
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !schema.HasKind(story.Character) {
			t.Fatalf("expected character kind to be declared")
		}
	})

	t.Run("missing kinds", func(t *testing.T) {
		path := writeTempSchema(t, "version: 1\nkinds: []\n")
		if _, err := LoadSchema(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("unknown kind", func(t *testing.T) {
		path := writeTempSchema(t, "version: 1\nkinds:\n  - name: dragon\n")
		if _, err := LoadSchema(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("duplicate kinds", func(t *testing.T) {
		path := writeTempSchema(t, "version: 1\nkinds:\n  - name: character\n  - name: Character\n")
		if _, err := LoadSchema(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("unknown shape", func(t *testing.T) {
		path := writeTempSchema(t, "version: 1\nkinds:\n  - name: item\n    attributes:\n      - { name: Weight, shape: tensor }\n")
		if _, err := LoadSchema(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("reserved key with another shape", func(t *testing.T) {
		path := writeTempSchema(t, "version: 1\nkinds:\n  - name: item\n    attributes:\n      - { name: Host, shape: scalar }\n")
		if _, err := LoadSchema(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("values on a reference", func(t *testing.T) {
		path := writeTempSchema(t, "version: 1\nkinds:\n  - name: character\n    attributes:\n      - { name: Mentor, shape: entity_ref, values: [a] }\n")
		if _, err := LoadSchema(path); err == nil {
			t.Fatalf("expected error")
		}
	})

	t.Run("default outside values", func(t *testing.T) {
		path := writeTempSchema(t, "version: 1\nkinds:\n  - name: character\n    attributes:\n      - { name: Mood, shape: scalar, values: [calm], default: angry }\n")
		if _, err := LoadSchema(path); err == nil {
			t.Fatalf("expected error")
		}
	})
}

func TestSchemaHelpers(t *testing.T) {
	schema, err := LoadSchema(filepath.Join("testdata", "valid_schema.yaml"))
	if err != nil {
		t.Fatalf("loading schema: %v", err)
	}

	t.Run("Attribute case-insensitive", func(t *testing.T) {
		if _, ok := schema.Attribute(story.Character, "traits"); !ok {
			t.Fatalf("expected to find Traits")
		}
	})

	t.Run("AttributeShape", func(t *testing.T) {
		shape, ok := schema.AttributeShape(story.Character, "Rival")
		if !ok || shape != story.ShapeEntityRef {
			t.Fatalf("expected entity_ref, got %s (%v)", shape, ok)
		}
		if _, ok := schema.AttributeShape(story.Item, "Traits"); ok {
			t.Fatalf("expected Traits to be undeclared on items")
		}
	})

	t.Run("Allows", func(t *testing.T) {
		attr, _ := schema.Attribute(story.Character, "Status")
		if !attr.Allows("Dead") || attr.Allows("undead") {
			t.Fatalf("expected case-insensitive enum check")
		}
	})

	t.Run("nil schema", func(t *testing.T) {
		var s *Schema
		if _, ok := s.AttributeShape(story.Event, "Date"); ok {
			t.Fatalf("expected nil schema to declare nothing")
		}
	})
}

func writeTempSchema(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing temp schema: %v", err)
	}
	return path
}
