package story

import (
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Handle addresses an entity inside a Registry.
type Handle int

const NoHandle Handle = -1

const Unplaced = -1

const (
	KeyRelations  = "Relations"
	KeyCharacters = "Characters"
	KeyItems      = "Items"
	KeyLocations  = "Locations"
	KeyEvents     = "Events"
	KeyHost       = "Host"
	KeyLocation   = "Location"
)

type wellKnown struct {
	key   string
	shape Shape
}

// containers lists the attributes every entity of a kind starts with, in
// insertion order.
var containers = map[Kind][]wellKnown{
	Character: {
		{KeyRelations, ShapeRelationList},
		{KeyItems, ShapeEntityRefList},
		{KeyLocations, ShapeEntityRefList},
		{KeyEvents, ShapeEntityRefList},
	},
	Item: {
		{KeyHost, ShapeEntityRef},
		{KeyLocation, ShapeEntityRef},
		{KeyEvents, ShapeEntityRefList},
	},
	Location: {
		{KeyCharacters, ShapeEntityRefList},
		{KeyItems, ShapeEntityRefList},
		{KeyEvents, ShapeEntityRefList},
	},
	Event: {
		{KeyCharacters, ShapeEntityRefList},
		{KeyLocations, ShapeEntityRefList},
		{KeyItems, ShapeEntityRefList},
	},
}

// WellKnownShape reports the fixed shape of a reserved attribute key for a
// kind.
func WellKnownShape(kind Kind, key string) (Shape, bool) {
	for _, wk := range containers[kind] {
		if wk.key == key {
			return wk.shape, true
		}
	}
	return 0, false
}

func IsWellKnownKey(key string) bool {
	switch key {
	case KeyRelations, KeyCharacters, KeyItems, KeyLocations, KeyEvents, KeyHost, KeyLocation:
		return true
	}
	return false
}

type Entity struct {
	Kind        Kind
	Name        string
	Description string
	Attributes  *Attributes
	Sequence    int
}

// Attributes is an insertion-ordered attribute bag.
type Attributes struct {
	m *orderedmap.OrderedMap[string, *Value]
}

func NewAttributes() *Attributes {
	return &Attributes{m: orderedmap.New[string, *Value]()}
}

func (a *Attributes) Get(key string) (*Value, bool) {
	if a == nil {
		return nil, false
	}
	return a.m.Get(key)
}

func (a *Attributes) Set(key string, v *Value) {
	a.m.Set(key, v)
}

func (a *Attributes) Delete(key string) {
	a.m.Delete(key)
}

func (a *Attributes) Len() int {
	if a == nil {
		return 0
	}
	return a.m.Len()
}

func (a *Attributes) Keys() []string {
	if a == nil {
		return nil
	}
	keys := make([]string, 0, a.m.Len())
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Each visits attributes in insertion order until fn returns false.
func (a *Attributes) Each(fn func(key string, v *Value) bool) {
	if a == nil {
		return
	}
	for pair := a.m.Oldest(); pair != nil; pair = pair.Next() {
		if !fn(pair.Key, pair.Value) {
			return
		}
	}
}

func (e *Entity) Attr(key string) (*Value, bool) {
	return e.Attributes.Get(key)
}

// ScalarAttr returns the scalar stored under key, or Null.
func (e *Entity) ScalarAttr(key string) Scalar {
	v, ok := e.Attributes.Get(key)
	if !ok || v.Shape != ShapeScalar {
		return Null()
	}
	return v.Scalar
}

func (e *Entity) SetScalar(key string, s Scalar) {
	e.Attributes.Set(key, ScalarValue(s))
}

func (e *Entity) SetScalarList(key string, items ...Scalar) {
	e.Attributes.Set(key, ScalarListValue(items...))
}

// container returns the value under key, creating it with the given shape
// when missing.
func (e *Entity) container(key string, shape Shape) *Value {
	if v, ok := e.Attributes.Get(key); ok && v.Shape == shape {
		return v
	}
	v := EmptyValue(shape)
	e.Attributes.Set(key, v)
	return v
}

func (e *Entity) existing(key string, shape Shape) *Value {
	v, ok := e.Attributes.Get(key)
	if !ok || v.Shape != shape {
		return nil
	}
	return v
}
