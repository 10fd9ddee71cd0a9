package story

import "strings"

// Registry is the arena every entity of a story lives in. It is not safe for
// concurrent use; Plot serializes access to the registry it owns.
type Registry struct {
	entities []*Entity
}

func NewRegistry() *Registry {
	return &Registry{}
}

// New creates an entity of kind with its empty containers in place.
func (r *Registry) New(kind Kind) Handle {
	e := &Entity{
		Kind:       kind,
		Attributes: NewAttributes(),
		Sequence:   Unplaced,
	}
	for _, wk := range containers[kind] {
		e.Attributes.Set(wk.key, EmptyValue(wk.shape))
	}
	return r.insert(e)
}

// NewNamed is New followed by a name assignment.
func (r *Registry) NewNamed(kind Kind, name string) Handle {
	h := r.New(kind)
	r.entities[h].Name = name
	return h
}

// Insert adds a pre-built entity without touching its attributes. Decoders
// use it to rebuild a stored graph verbatim.
func (r *Registry) Insert(e *Entity) Handle {
	if e.Attributes == nil {
		e.Attributes = NewAttributes()
	}
	return r.insert(e)
}

func (r *Registry) insert(e *Entity) Handle {
	r.entities = append(r.entities, e)
	return Handle(len(r.entities) - 1)
}

func (r *Registry) Get(h Handle) (*Entity, bool) {
	if r == nil || h < 0 || int(h) >= len(r.entities) {
		return nil, false
	}
	return r.entities[h], true
}

func (r *Registry) MustGet(h Handle) *Entity {
	e, ok := r.Get(h)
	if !ok {
		panic("story: unknown handle")
	}
	return e
}

func (r *Registry) Valid(h Handle) bool {
	_, ok := r.Get(h)
	return ok
}

func (r *Registry) Len() int {
	return len(r.entities)
}

func (r *Registry) Handles() []Handle {
	out := make([]Handle, len(r.entities))
	for i := range r.entities {
		out[i] = Handle(i)
	}
	return out
}

// FindByName returns the first entity of kind whose name matches,
// ignoring case.
func (r *Registry) FindByName(kind Kind, name string) (Handle, bool) {
	needle := strings.TrimSpace(name)
	for i, e := range r.entities {
		if e.Kind == kind && strings.EqualFold(e.Name, needle) {
			return Handle(i), true
		}
	}
	return NoHandle, false
}

// Partners lists every distinct entity referenced from h's attributes, in
// attribute order.
func (r *Registry) Partners(h Handle) []Handle {
	e, ok := r.Get(h)
	if !ok {
		return nil
	}
	seen := make(map[Handle]struct{})
	var out []Handle
	e.Attributes.Each(func(_ string, v *Value) bool {
		for _, p := range v.Handles() {
			if _, dup := seen[p]; dup {
				continue
			}
			seen[p] = struct{}{}
			out = append(out, p)
		}
		return true
	})
	return out
}
