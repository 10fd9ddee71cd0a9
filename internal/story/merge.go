package story

import (
	"errors"
	"fmt"
)

var (
	ErrNullInput    = errors.New("null input")
	ErrTypeMismatch = errors.New("type mismatch")
)

// Merge folds incoming into base. Relationships held by incoming are moved
// to base; scalar fields and attributes are reconciled with basePriority
// deciding conflicts. incoming stays in the registry stripped of its
// relationships.
func (r *Registry) Merge(base, incoming Handle, basePriority bool) error {
	eb, ok := r.Get(base)
	if !ok {
		return fmt.Errorf("merging base %d: %w", base, ErrNullInput)
	}
	ei, ok := r.Get(incoming)
	if !ok {
		return fmt.Errorf("merging incoming %d: %w", incoming, ErrNullInput)
	}
	if eb.Kind != ei.Kind {
		return fmt.Errorf("merging %s into %s: %w", ei.Kind, eb.Kind, ErrTypeMismatch)
	}
	if base == incoming {
		return nil
	}

	if eb.Name == "" || !basePriority {
		eb.Name = ei.Name
	}
	if eb.Description == "" || !basePriority {
		eb.Description = ei.Description
	}
	if ei.Sequence > eb.Sequence {
		eb.Sequence = ei.Sequence
	}

	// Transfers below mutate incoming's lists.
	for _, key := range ei.Attributes.Keys() {
		v, ok := ei.Attributes.Get(key)
		if !ok || v == nil {
			continue
		}
		_, wellKnown := WellKnownShape(ei.Kind, key)
		switch v.Shape {
		case ShapeEntityRef, ShapeEntityRefList:
			if !wellKnown {
				mergeRefs(eb, base, key, v, basePriority)
				ei.Attributes.Set(key, EmptyValue(v.Shape))
				continue
			}
			for _, h := range v.Handles() {
				r.Bind(base, h)
				r.Unbind(incoming, h)
			}
		case ShapeRelationList:
			for _, rel := range append([]Relation(nil), v.Relations...) {
				r.BindWeighted(base, rel.Character, rel.Weight)
				r.Unbind(incoming, rel.Character)
			}
		case ShapeScalarList:
			mergeScalarList(eb, key, v, basePriority)
		default:
			mergeScalar(eb, key, v, basePriority)
		}
	}
	return nil
}

func mergeScalarList(eb *Entity, key string, v *Value, basePriority bool) {
	current, ok := eb.Attributes.Get(key)
	if !ok {
		eb.Attributes.Set(key, v.Clone())
		return
	}
	if current.Shape != ShapeScalarList {
		if !basePriority || current.IsBlank() {
			eb.Attributes.Set(key, v.Clone())
		}
		return
	}
	for _, s := range v.Scalars {
		if !current.containsScalar(s) {
			current.Scalars = append(current.Scalars, s)
		}
	}
}

func mergeScalar(eb *Entity, key string, v *Value, basePriority bool) {
	current, ok := eb.Attributes.Get(key)
	if !ok || current.IsBlank() || !basePriority {
		eb.Attributes.Set(key, v.Clone())
	}
}

// mergeRefs moves a custom reference attribute onto base. Custom references
// are not mirrored on the target, so they bypass the binder: a single
// reference follows the scalar rule and a list is unioned.
func mergeRefs(eb *Entity, base Handle, key string, v *Value, basePriority bool) {
	current, ok := eb.Attributes.Get(key)
	switch {
	case v.Shape == ShapeEntityRef:
		if v.Ref == base || v.Ref == NoHandle {
			return
		}
		if !ok || current.IsBlank() || !basePriority {
			eb.Attributes.Set(key, RefValue(v.Ref))
		}
	case !ok || current.Shape != ShapeEntityRefList:
		if ok && basePriority && !current.IsBlank() {
			return
		}
		list := EmptyValue(ShapeEntityRefList)
		for _, h := range v.Refs {
			if h != base {
				addRef(list, h)
			}
		}
		eb.Attributes.Set(key, list)
	default:
		for _, h := range v.Refs {
			if h != base {
				addRef(current, h)
			}
		}
	}
}
