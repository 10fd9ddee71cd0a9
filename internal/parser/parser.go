package parser

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"storygraph/internal/story"
)

// Frontmatter fields that describe links to other entities. The target kind
// of each is fixed; the Binder decides which side lists what.
var linkFields = []struct {
	field string
	kind  story.Kind
}{
	{"characters", story.Character},
	{"host", story.Character},
	{"items", story.Item},
	{"locations", story.Location},
	{"location", story.Location},
	{"events", story.Event},
}

var reserved = map[string]bool{
	"title":       true,
	"type":        true,
	"description": true,
	"tags":        true,
	"relations":   true,
	"sequence":    true,
}

type Document struct {
	Frontmatter map[string]any
	Title       string
	Kind        string
	Description string
	Tags        []string
	Relations   []Relation
	Links       []Link
	Fields      []Field
	Sequence    *int
	Body        string
	SourceFile  string
}

// Relation is one weighted entry of the relations field.
type Relation struct {
	Target string
	Weight float64
}

type Link struct {
	Field  string
	Kind   story.Kind
	Target string
}

// Field is any other frontmatter key, in file order.
type Field struct {
	Key   string
	Value any
}

var (
	ErrNoFrontmatter   = errors.New("no frontmatter found")
	ErrInvalidYAML     = errors.New("invalid YAML in frontmatter")
	ErrMissingTitle    = errors.New("frontmatter missing required 'title' field")
	ErrMissingType     = errors.New("frontmatter missing required 'type' field")
	ErrInvalidRelation = errors.New("invalid 'relations' field")
)

func ParseFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	doc.SourceFile = path
	return doc, nil
}

func Parse(content []byte) (*Document, error) {
	trimmed := bytes.TrimLeft(content, "\ufeff\n\r\t ")
	trimmed = bytes.ReplaceAll(trimmed, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(trimmed, []byte("---\n")) {
		return nil, ErrNoFrontmatter
	}

	rest := trimmed[len("---\n"):]
	end := bytes.Index(rest, []byte("---\n"))
	if end == -1 {
		return nil, ErrNoFrontmatter
	}

	yamlBytes := rest[:end]
	body := string(rest[end+len("---\n"):])

	var root yaml.Node
	if err := yaml.Unmarshal(yamlBytes, &root); err != nil {
		return nil, ErrInvalidYAML
	}
	if len(root.Content) == 0 {
		return nil, ErrMissingTitle
	}
	if root.Content[0].Kind != yaml.MappingNode {
		return nil, ErrInvalidYAML
	}
	mapping := root.Content[0]

	var frontmatter map[string]any
	if err := mapping.Decode(&frontmatter); err != nil {
		return nil, ErrInvalidYAML
	}

	title, ok := frontmatter["title"].(string)
	if !ok || strings.TrimSpace(title) == "" {
		return nil, ErrMissingTitle
	}

	kind, ok := frontmatter["type"].(string)
	if !ok || strings.TrimSpace(kind) == "" {
		return nil, ErrMissingType
	}

	tags, err := parseTags(frontmatter["tags"])
	if err != nil {
		return nil, err
	}

	description, _ := frontmatter["description"].(string)
	if strings.TrimSpace(description) == "" {
		description = strings.TrimSpace(body)
	}

	doc := &Document{
		Frontmatter: frontmatter,
		Title:       strings.TrimSpace(title),
		Kind:        strings.TrimSpace(kind),
		Description: strings.TrimSpace(description),
		Tags:        tags,
		Body:        body,
	}

	if seq, ok := frontmatter["sequence"]; ok {
		n, ok := seq.(int)
		if !ok {
			return nil, fmt.Errorf("sequence must be an integer")
		}
		doc.Sequence = &n
	}

	if node := valueNode(mapping, "relations"); node != nil {
		doc.Relations, err = parseRelations(node)
		if err != nil {
			return nil, err
		}
	}

	for _, lf := range linkFields {
		for _, target := range resolveFieldValue(frontmatter[lf.field]) {
			if strings.TrimSpace(target) == "" {
				continue
			}
			doc.Links = append(doc.Links, Link{Field: lf.field, Kind: lf.kind, Target: strings.TrimSpace(target)})
		}
	}

	for i := 0; i+1 < len(mapping.Content); i += 2 {
		key := mapping.Content[i].Value
		if reserved[key] || isLinkField(key) {
			continue
		}
		doc.Fields = append(doc.Fields, Field{Key: key, Value: frontmatter[key]})
	}

	return doc, nil
}

func valueNode(mapping *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(mapping.Content); i += 2 {
		if mapping.Content[i].Value == key {
			return mapping.Content[i+1]
		}
	}
	return nil
}

func isLinkField(key string) bool {
	for _, lf := range linkFields {
		if lf.field == key {
			return true
		}
	}
	return false
}

// parseRelations accepts a map of name to weight, a list of names, or a list
// of {name, weight} maps. A missing weight means story.DefaultWeight.
func parseRelations(node *yaml.Node) ([]Relation, error) {
	var relations []Relation
	switch node.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(node.Content); i += 2 {
			weight, err := parseWeight(node.Content[i+1])
			if err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrInvalidRelation, node.Content[i].Value, err)
			}
			relations = append(relations, Relation{Target: node.Content[i].Value, Weight: weight})
		}
	case yaml.SequenceNode:
		for _, item := range node.Content {
			switch item.Kind {
			case yaml.ScalarNode:
				relations = append(relations, Relation{Target: item.Value, Weight: story.DefaultWeight})
			case yaml.MappingNode:
				var entry struct {
					Name   string   `yaml:"name"`
					Weight *float64 `yaml:"weight"`
				}
				if err := item.Decode(&entry); err != nil || strings.TrimSpace(entry.Name) == "" {
					return nil, fmt.Errorf("%w: entries need a name", ErrInvalidRelation)
				}
				rel := Relation{Target: entry.Name, Weight: story.DefaultWeight}
				if entry.Weight != nil {
					rel.Weight = *entry.Weight
				}
				relations = append(relations, rel)
			default:
				return nil, ErrInvalidRelation
			}
		}
	case yaml.ScalarNode:
		if node.Tag == "!!null" {
			return nil, nil
		}
		relations = append(relations, Relation{Target: node.Value, Weight: story.DefaultWeight})
	default:
		return nil, ErrInvalidRelation
	}

	out := relations[:0]
	for _, rel := range relations {
		rel.Target = strings.TrimSpace(rel.Target)
		if rel.Target != "" {
			out = append(out, rel)
		}
	}
	return out, nil
}

func parseWeight(node *yaml.Node) (float64, error) {
	if node.Kind == yaml.ScalarNode && node.Tag == "!!null" {
		return story.DefaultWeight, nil
	}
	var w float64
	if err := node.Decode(&w); err != nil {
		return 0, fmt.Errorf("weight must be a number")
	}
	return w, nil
}

func parseTags(value any) ([]string, error) {
	if value == nil {
		return nil, nil
	}
	switch v := value.(type) {
	case string:
		if strings.TrimSpace(v) == "" {
			return nil, nil
		}
		return []string{v}, nil
	case []any:
		tags := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("tags must be strings")
			}
			if strings.TrimSpace(s) == "" {
				continue
			}
			tags = append(tags, s)
		}
		if len(tags) == 0 {
			return nil, nil
		}
		return tags, nil
	default:
		return nil, fmt.Errorf("tags must be string or list of strings")
	}
}

func resolveFieldValue(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []any:
		values := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				values = append(values, s)
			}
		}
		return values
	default:
		return nil
	}
}
