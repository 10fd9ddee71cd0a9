package ingest

import (
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"storygraph/internal/config"
	"storygraph/internal/parser"
	"storygraph/internal/story"
)

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02"}

// applyFields copies the plain frontmatter fields onto e as scalar
// attributes. Fields the schema declares as references are left for the
// link phase. Declared defaults fill in what the file omits.
func applyFields(e *story.Entity, fields []parser.Field, schema *config.Schema) error {
	for _, f := range fields {
		key := attributeKey(e.Kind, f.Key, schema)
		shape, declared := schema.AttributeShape(e.Kind, key)
		if declared && isReference(shape) {
			continue
		}
		if declared && shape == story.ShapeRelationList {
			return fmt.Errorf("field %s: relation lists come from the relations field", f.Key)
		}

		v, err := toValue(f.Value)
		if err != nil {
			return fmt.Errorf("field %s: %w", f.Key, err)
		}
		if declared && shape == story.ShapeScalarList && v.Shape == story.ShapeScalar {
			if v.Scalar.IsBlank() {
				v = story.ScalarListValue()
			} else {
				v = story.ScalarListValue(v.Scalar)
			}
		}
		if declared && shape == story.ShapeScalar && v.Shape != story.ShapeScalar {
			return fmt.Errorf("field %s: expected a single value", f.Key)
		}
		e.Attributes.Set(key, v)
	}

	for _, attr := range schema.Attributes(e.Kind) {
		if attr.Default == "" {
			continue
		}
		if _, ok := e.Attr(attr.Name); !ok {
			e.SetScalar(attr.Name, story.String(attr.Default))
		}
	}
	return nil
}

func isReference(shape story.Shape) bool {
	return shape == story.ShapeEntityRef || shape == story.ShapeEntityRefList
}

// attributeKey maps a frontmatter key to the attribute name: the schema's
// spelling when declared, otherwise the key with its first letter upper-cased.
func attributeKey(kind story.Kind, field string, schema *config.Schema) string {
	if attr, ok := schema.Attribute(kind, field); ok {
		return attr.Name
	}
	r, size := utf8.DecodeRuneInString(field)
	if r == utf8.RuneError {
		return field
	}
	return string(unicode.ToUpper(r)) + field[size:]
}

func toValue(raw any) (*story.Value, error) {
	switch v := raw.(type) {
	case []any:
		items := make([]story.Scalar, 0, len(v))
		for _, item := range v {
			s, err := toScalar(item)
			if err != nil {
				return nil, err
			}
			items = append(items, s)
		}
		return story.ScalarListValue(items...), nil
	case map[string]any:
		return nil, fmt.Errorf("nested maps are not supported")
	default:
		s, err := toScalar(v)
		if err != nil {
			return nil, err
		}
		return story.ScalarValue(s), nil
	}
}

func toScalar(raw any) (story.Scalar, error) {
	switch v := raw.(type) {
	case nil:
		return story.Null(), nil
	case string:
		if t, ok := parseDate(v); ok {
			return story.Date(t), nil
		}
		return story.String(v), nil
	case int:
		return story.Number(float64(v)), nil
	case int64:
		return story.Number(float64(v)), nil
	case uint64:
		return story.Number(float64(v)), nil
	case float64:
		return story.Number(v), nil
	case bool:
		return story.Bool(v), nil
	case time.Time:
		return story.Date(v), nil
	default:
		return story.Null(), fmt.Errorf("unsupported value %T", raw)
	}
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func resolveNames(value any) []string {
	var names []string
	switch v := value.(type) {
	case string:
		names = []string{v}
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				names = append(names, s)
			}
		}
	}
	out := names[:0]
	for _, name := range names {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}
