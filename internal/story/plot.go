package story

import (
	"strings"
	"sync"
)

// Plot is the ordered set of entities making up one story, plus the clock
// that stamps their sequence. All methods are safe for concurrent use.
type Plot struct {
	mu       sync.Mutex
	registry *Registry
	entities []Handle
	clock    int
}

func NewPlot() *Plot {
	return &Plot{registry: NewRegistry()}
}

// RestorePlot wraps an already populated registry. The entity order and
// clock are taken as given; sequences are not restamped.
func RestorePlot(r *Registry, entities []Handle, clock int) *Plot {
	return &Plot{
		registry: r,
		entities: append([]Handle(nil), entities...),
		clock:    clock,
	}
}

// Registry exposes the arena for callers that already hold exclusive
// access, such as a freshly decoded plot.
func (p *Plot) Registry() *Registry {
	return p.registry
}

func (p *Plot) Create(kind Kind, name string) Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	h := p.registry.NewNamed(kind, name)
	p.add(h)
	return h
}

// Add appends h and stamps its sequence from the clock if it has none.
func (p *Plot) Add(h Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.add(h)
}

func (p *Plot) add(h Handle) {
	e, ok := p.registry.Get(h)
	if !ok || p.index(h) >= 0 {
		return
	}
	p.entities = append(p.entities, h)
	if e.Sequence == Unplaced {
		e.Sequence = p.clock
	}
	p.clock++
}

// Remove drops h from the plot. Relationships pointing at h are left in
// place; use Discard to sever them as well.
func (p *Plot) Remove(h Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.remove(h)
}

// Discard unbinds h from every partner and then removes it.
func (p *Plot) Discard(h Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, partner := range p.registry.Partners(h) {
		p.registry.Unbind(h, partner)
	}
	return p.remove(h)
}

func (p *Plot) remove(h Handle) bool {
	i := p.index(h)
	if i < 0 {
		return false
	}
	p.entities = append(p.entities[:i], p.entities[i+1:]...)
	return true
}

func (p *Plot) index(h Handle) int {
	for i, existing := range p.entities {
		if existing == h {
			return i
		}
	}
	return -1
}

func (p *Plot) Contains(h Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.index(h) >= 0
}

func (p *Plot) Clock() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clock
}

func (p *Plot) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entities)
}

func (p *Plot) Entities() []Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Handle{}, p.entities...)
}

func (p *Plot) Characters() []Handle { return p.ofKind(Character) }

func (p *Plot) Items() []Handle { return p.ofKind(Item) }

func (p *Plot) Locations() []Handle { return p.ofKind(Location) }

func (p *Plot) Events() []Handle { return p.ofKind(Event) }

func (p *Plot) ofKind(kind Kind) []Handle {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []Handle{}
	for _, h := range p.entities {
		if e, ok := p.registry.Get(h); ok && e.Kind == kind {
			out = append(out, h)
		}
	}
	return out
}

// Find looks up a plot member by kind and name, ignoring case.
func (p *Plot) Find(kind Kind, name string) (Handle, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, h := range p.entities {
		e, _ := p.registry.Get(h)
		if e != nil && e.Kind == kind && strings.EqualFold(e.Name, strings.TrimSpace(name)) {
			return h, true
		}
	}
	return NoHandle, false
}

func (p *Plot) Bind(a, b Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registry.Bind(a, b)
}

func (p *Plot) BindWeighted(a, b Handle, weight float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registry.BindWeighted(a, b, weight)
}

func (p *Plot) Unbind(a, b Handle) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.registry.Unbind(a, b)
}

func (p *Plot) Merge(base, incoming Handle, basePriority bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.registry.Merge(base, incoming, basePriority)
}

// Update runs fn with exclusive access to the registry.
func (p *Plot) Update(fn func(r *Registry) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.registry)
}

// View is Update for callers that only read. It takes the same lock.
func (p *Plot) View(fn func(r *Registry) error) error {
	return p.Update(fn)
}

// Snapshot runs fn under the plot lock with the registry, the entity order
// and the clock.
func (p *Plot) Snapshot(fn func(r *Registry, entities []Handle, clock int) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return fn(p.registry, append([]Handle{}, p.entities...), p.clock)
}
