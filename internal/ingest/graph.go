package ingest

import (
	"fmt"

	"github.com/charmbracelet/log"

	"storygraph/internal/config"
	"storygraph/internal/story"
)

// bindLinks wires one imported entity to the entities its file names.
func bindLinks(p *story.Plot, item processedDoc, schema *config.Schema, result *Result, logger *log.Logger) {
	doc := item.doc

	for _, rel := range doc.Relations {
		target := resolve(p, story.Character, rel.Target, result, logger)
		p.BindWeighted(item.handle, target, rel.Weight)
		result.Bound++
	}

	for _, link := range doc.Links {
		target := resolve(p, link.Kind, link.Target, result, logger)
		p.Bind(item.handle, target)
		result.Bound++
	}

	kind := story.Character
	_ = p.View(func(r *story.Registry) error {
		kind = r.MustGet(item.handle).Kind
		return nil
	})

	for _, f := range doc.Fields {
		key := attributeKey(kind, f.Key, schema)
		shape, declared := schema.AttributeShape(kind, key)
		if !declared || !isReference(shape) {
			continue
		}

		var targets []story.Handle
		for _, name := range resolveNames(f.Value) {
			h, ok := findAnyKind(p, name)
			if !ok {
				result.Errors = append(result.Errors, fmt.Errorf("%s: %s names unknown entity %q", doc.Title, f.Key, name))
				continue
			}
			targets = append(targets, h)
		}

		v := story.RefListValue(targets...)
		if shape == story.ShapeEntityRef {
			if len(targets) > 1 {
				result.Errors = append(result.Errors, fmt.Errorf("%s: %s takes a single entity", doc.Title, f.Key))
			}
			v = story.EmptyValue(story.ShapeEntityRef)
			if len(targets) > 0 {
				v = story.RefValue(targets[0])
			}
		}
		_ = p.Update(func(r *story.Registry) error {
			r.MustGet(item.handle).Attributes.Set(key, v)
			return nil
		})
		result.Bound += len(targets)
	}
}

// resolve finds the plot member of kind called name, creating a placeholder
// when there is none.
func resolve(p *story.Plot, kind story.Kind, name string, result *Result, logger *log.Logger) story.Handle {
	if h, ok := p.Find(kind, name); ok {
		return h
	}
	h := p.Create(kind, name)
	_ = p.Update(func(r *story.Registry) error {
		r.MustGet(h).SetScalar(PlaceholderKey, story.Bool(true))
		return nil
	})
	result.Placeholders = append(result.Placeholders, kind.String()+":"+name)
	logger.Warn("created placeholder", "kind", kind, "name", name)
	return h
}

func findAnyKind(p *story.Plot, name string) (story.Handle, bool) {
	for _, kind := range story.Kinds() {
		if h, ok := p.Find(kind, name); ok {
			return h, true
		}
	}
	return story.NoHandle, false
}
