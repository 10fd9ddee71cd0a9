package story

import (
	"sync"
	"testing"
)

func TestPlotAdd(t *testing.T) {
	t.Run("stamps sequence from clock", func(t *testing.T) {
		p := NewPlot()
		a := p.Create(Character, "Alice")
		b := p.Create(Location, "Castle")

		r := p.Registry()
		if r.MustGet(a).Sequence != 0 || r.MustGet(b).Sequence != 1 {
			t.Fatalf("expected sequences 0 and 1, got %d and %d", r.MustGet(a).Sequence, r.MustGet(b).Sequence)
		}
		if p.Clock() != 2 {
			t.Fatalf("expected clock 2, got %d", p.Clock())
		}
	})

	t.Run("keeps an existing sequence", func(t *testing.T) {
		p := NewPlot()
		r := p.Registry()
		h := r.New(Event)
		r.MustGet(h).Sequence = 12
		p.Add(h)

		if r.MustGet(h).Sequence != 12 {
			t.Fatalf("expected sequence 12, got %d", r.MustGet(h).Sequence)
		}
		if p.Clock() != 1 {
			t.Fatalf("expected clock 1, got %d", p.Clock())
		}
	})

	t.Run("adding twice is a no-op", func(t *testing.T) {
		p := NewPlot()
		h := p.Create(Item, "Sword")
		p.Add(h)

		if p.Len() != 1 || p.Clock() != 1 {
			t.Fatalf("expected one entity and clock 1, got %d and %d", p.Len(), p.Clock())
		}
	})
}

func TestPlotViews(t *testing.T) {
	p := NewPlot()
	alice := p.Create(Character, "Alice")
	castle := p.Create(Location, "Castle")
	bob := p.Create(Character, "Bob")
	p.Create(Event, "Siege")

	chars := p.Characters()
	if len(chars) != 2 || chars[0] != alice || chars[1] != bob {
		t.Fatalf("expected Alice and Bob in order, got %v", chars)
	}
	if locs := p.Locations(); len(locs) != 1 || locs[0] != castle {
		t.Fatalf("expected Castle, got %v", locs)
	}
	if items := p.Items(); len(items) != 0 {
		t.Fatalf("expected no items, got %v", items)
	}
	if len(p.Events()) != 1 {
		t.Fatalf("expected one event")
	}

	if h, ok := p.Find(Character, "  bob "); !ok || h != bob {
		t.Fatalf("expected to find Bob, got %d (%v)", h, ok)
	}
}

func TestPlotRemoval(t *testing.T) {
	t.Run("remove leaves references behind", func(t *testing.T) {
		p := NewPlot()
		alice := p.Create(Character, "Alice")
		castle := p.Create(Location, "Castle")
		p.Bind(alice, castle)

		if !p.Remove(castle) {
			t.Fatalf("expected castle removed")
		}
		if p.Contains(castle) {
			t.Fatalf("expected castle gone from plot")
		}
		if got := refs(t, p.Registry(), alice, KeyLocations); len(got) != 1 {
			t.Fatalf("expected Alice to still reference castle, got %v", got)
		}
	})

	t.Run("discard severs references", func(t *testing.T) {
		p := NewPlot()
		alice := p.Create(Character, "Alice")
		bob := p.Create(Character, "Bob")
		sword := p.Create(Item, "Sword")
		p.BindWeighted(alice, bob, 3)
		p.Bind(alice, sword)

		if !p.Discard(alice) {
			t.Fatalf("expected alice discarded")
		}
		r := p.Registry()
		if _, ok := relationWeight(t, r, bob, alice); ok {
			t.Fatalf("expected Bob's relation to Alice severed")
		}
		host, _ := r.MustGet(sword).Attr(KeyHost)
		if host.Ref != NoHandle {
			t.Fatalf("expected sword without host, got %d", host.Ref)
		}
	})

	t.Run("remove unknown", func(t *testing.T) {
		p := NewPlot()
		if p.Remove(Handle(3)) {
			t.Fatalf("expected false for unknown handle")
		}
	})
}

func TestPlotConcurrentBinds(t *testing.T) {
	p := NewPlot()
	hub := p.Create(Character, "Hub")
	var spokes []Handle
	for i := 0; i < 32; i++ {
		spokes = append(spokes, p.Create(Character, "spoke"))
	}

	var wg sync.WaitGroup
	for i, s := range spokes {
		wg.Add(1)
		go func(s Handle, w float64) {
			defer wg.Done()
			p.BindWeighted(hub, s, w)
		}(s, float64(i+1))
	}
	wg.Wait()

	err := p.View(func(r *Registry) error {
		v, _ := r.MustGet(hub).Attr(KeyRelations)
		if len(v.Relations) != len(spokes) {
			t.Fatalf("expected %d relations, got %d", len(spokes), len(v.Relations))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
