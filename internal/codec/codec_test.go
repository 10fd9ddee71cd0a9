package codec

import (
	"errors"
	"strings"
	"testing"
	"time"

	"storygraph/internal/story"
)

type scenario struct {
	reg    *story.Registry
	alice  story.Handle
	bob    story.Handle
	sword  story.Handle
	castle story.Handle
}

func buildScenario() scenario {
	r := story.NewRegistry()
	s := scenario{reg: r}
	s.alice = r.NewNamed(story.Character, "Alice")
	s.bob = r.NewNamed(story.Character, "Bob")
	r.BindWeighted(s.alice, s.bob, 5)
	s.sword = r.NewNamed(story.Item, "Sword")
	r.Bind(s.alice, s.sword)
	s.castle = r.NewNamed(story.Location, "Castle")
	r.Bind(s.castle, s.alice)
	return s
}

const aliceDocument = `{"$id":"1","kind":0,"name":"Alice","description":"","attributes":{"$id":"2",` +
	`"Relations":{"$id":"3","$values":[{"$id":"4","character":{"$id":"5","kind":0,"name":"Bob","description":"","attributes":{"$id":"6",` +
	`"Relations":{"$id":"7","$values":[{"$id":"8","character":{"$ref":"1"},"weight":5}]},` +
	`"Items":{"$id":"9","$values":[]},"Locations":{"$id":"10","$values":[]},"Events":{"$id":"11","$values":[]}},"sequence":-1},"weight":5}]},` +
	`"Items":{"$id":"12","$values":[{"$id":"13","kind":1,"name":"Sword","description":"","attributes":{"$id":"14",` +
	`"Host":{"$ref":"1"},"Location":null,"Events":{"$id":"15","$values":[]}},"sequence":-1}]},` +
	`"Locations":{"$id":"16","$values":[{"$id":"17","kind":2,"name":"Castle","description":"","attributes":{"$id":"18",` +
	`"Characters":{"$id":"19","$values":[{"$ref":"1"}]},"Items":{"$id":"20","$values":[]},"Events":{"$id":"21","$values":[]}},"sequence":-1}]},` +
	`"Events":{"$id":"22","$values":[]}},"sequence":-1}`

func TestEncodeEntityScenario(t *testing.T) {
	s := buildScenario()

	data, err := EncodeEntity(s.reg, s.alice)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(data) != aliceDocument {
		t.Fatalf("unexpected document:\n got: %s\nwant: %s", data, aliceDocument)
	}

	again, err := EncodeEntity(s.reg, s.alice)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if string(again) != string(data) {
		t.Fatalf("expected reproducible output")
	}
}

func TestEncodeReferenceDedup(t *testing.T) {
	s := buildScenario()
	data, err := EncodeEntity(s.reg, s.alice)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	if n := strings.Count(string(data), `"name":"Alice"`); n != 1 {
		t.Fatalf("expected one body for Alice, got %d", n)
	}
	if n := strings.Count(string(data), `{"$ref":"1"}`); n != 3 {
		t.Fatalf("expected three back-references to Alice, got %d", n)
	}
}

func TestDecodeEntityScenario(t *testing.T) {
	r, alice, err := DecodeEntity([]byte(aliceDocument))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if r.Len() != 4 {
		t.Fatalf("expected 4 entities, got %d", r.Len())
	}

	ea := r.MustGet(alice)
	rels, _ := ea.Attr(story.KeyRelations)
	if len(rels.Relations) != 1 || rels.Relations[0].Weight != 5 {
		t.Fatalf("expected one relation of weight 5, got %+v", rels.Relations)
	}
	bob := rels.Relations[0].Character
	if r.MustGet(bob).Name != "Bob" {
		t.Fatalf("expected Bob, got %q", r.MustGet(bob).Name)
	}
	back, _ := r.MustGet(bob).Attr(story.KeyRelations)
	if len(back.Relations) != 1 || back.Relations[0].Character != alice {
		t.Fatalf("expected Bob to point back at Alice, got %+v", back.Relations)
	}

	items, _ := ea.Attr(story.KeyItems)
	if len(items.Refs) != 1 {
		t.Fatalf("expected one item, got %d", len(items.Refs))
	}
	host, _ := r.MustGet(items.Refs[0]).Attr(story.KeyHost)
	if host.Ref != alice {
		t.Fatalf("expected sword host to be Alice, got %d", host.Ref)
	}
	loc, _ := r.MustGet(items.Refs[0]).Attr(story.KeyLocation)
	if loc.Shape != story.ShapeEntityRef || loc.Ref != story.NoHandle {
		t.Fatalf("expected empty location slot, got %+v", loc)
	}

	locations, _ := ea.Attr(story.KeyLocations)
	if len(locations.Refs) != 1 || r.MustGet(locations.Refs[0]).Name != "Castle" {
		t.Fatalf("expected Alice to list Castle, got %v", locations.Refs)
	}
}

func TestPlotRoundTrip(t *testing.T) {
	p := story.NewPlot()
	alice := p.Create(story.Character, "Alice")
	bob := p.Create(story.Character, "Bob")
	castle := p.Create(story.Location, "Castle")
	siege := p.Create(story.Event, "Siege")
	crown := p.Create(story.Item, "Crown")

	p.BindWeighted(alice, bob, -1.5)
	p.Bind(alice, castle)
	p.Bind(castle, siege)
	p.Bind(siege, alice)
	p.Bind(crown, castle)
	p.Bind(bob, crown)
	err := p.Update(func(r *story.Registry) error {
		e := r.MustGet(alice)
		e.Description = "heir \"apparent\""
		e.SetScalar("Age", story.Number(19))
		e.SetScalar("Crowned", story.Bool(false))
		e.SetScalar("Born", story.Date(time.Date(1201, 3, 4, 0, 0, 0, 0, time.UTC)))
		e.SetScalar("Motto", story.Null())
		e.SetScalarList("Traits", story.String("brave"), story.String("rash"))
		return nil
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	first, err := EncodePlot(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(string(first), `{"$id":"1","entities":{"$id":"2","$values":[{"$id":"3","kind":0`) {
		t.Fatalf("unexpected plot header: %.80s", first)
	}

	restored, err := DecodePlot(first)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if restored.Clock() != p.Clock() || restored.Len() != p.Len() {
		t.Fatalf("expected clock %d and %d entities, got %d and %d", p.Clock(), p.Len(), restored.Clock(), restored.Len())
	}

	second, err := EncodePlot(restored)
	if err != nil {
		t.Fatalf("re-encode: %v", err)
	}
	if string(first) != string(second) {
		t.Fatalf("expected identical documents after round trip:\n%s\n%s", first, second)
	}

	r := restored.Registry()
	ra, _ := restored.Find(story.Character, "Alice")
	ea := r.MustGet(ra)
	if ea.Description != "heir \"apparent\"" {
		t.Fatalf("expected description preserved, got %q", ea.Description)
	}
	if born := ea.ScalarAttr("Born"); born.Kind != story.ScalarDate || born.Time.Year() != 1201 {
		t.Fatalf("expected date preserved, got %+v", born)
	}
	if age := ea.ScalarAttr("Age"); age.Num != 19 {
		t.Fatalf("expected age 19, got %v", age.Num)
	}
	traits, _ := ea.Attr("Traits")
	if traits.Shape != story.ShapeScalarList || len(traits.Scalars) != 2 {
		t.Fatalf("expected two traits, got %+v", traits)
	}
	rc, _ := restored.Find(story.Item, "Crown")
	host, _ := r.MustGet(rc).Attr(story.KeyHost)
	if r.MustGet(host.Ref).Name != "Bob" {
		t.Fatalf("expected crown host Bob, got %q", r.MustGet(host.Ref).Name)
	}
}

func TestPlotRoundTripKeepsRemovedEntities(t *testing.T) {
	p := story.NewPlot()
	alice := p.Create(story.Character, "Alice")
	tower := p.Create(story.Location, "Tower")
	p.Bind(alice, tower)
	p.Remove(tower)

	data, err := EncodePlot(p)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	restored, err := DecodePlot(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if restored.Len() != 1 {
		t.Fatalf("expected one plot member, got %d", restored.Len())
	}
	if restored.Registry().Len() != 2 {
		t.Fatalf("expected the removed tower to survive as a referenced entity, got %d", restored.Registry().Len())
	}
}

func TestDecodeHints(t *testing.T) {
	doc := `{"$id":"1","kind":0,"name":"Ann","description":"","attributes":{"$id":"2","Rival":null,"Tags":{"$id":"3","$values":[]}},"sequence":-1}`

	t.Run("without hints", func(t *testing.T) {
		r, h, err := DecodeEntity([]byte(doc))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		v, _ := r.MustGet(h).Attr("Rival")
		if v.Shape != story.ShapeScalar {
			t.Fatalf("expected scalar, got %s", v.Shape)
		}
		tags, _ := r.MustGet(h).Attr("Tags")
		if tags.Shape != story.ShapeScalarList {
			t.Fatalf("expected scalar list, got %s", tags.Shape)
		}
	})

	t.Run("with hints", func(t *testing.T) {
		dec := Decoder{Hints: func(kind story.Kind, key string) (story.Shape, bool) {
			if kind == story.Character && key == "Rival" {
				return story.ShapeEntityRef, true
			}
			return 0, false
		}}
		r, h, err := dec.DecodeEntity([]byte(doc))
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		v, _ := r.MustGet(h).Attr("Rival")
		if v.Shape != story.ShapeEntityRef || v.Ref != story.NoHandle {
			t.Fatalf("expected empty entity ref, got %+v", v)
		}
	})
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		doc  string
		want error
	}{
		{"not json", `{"$id":`, ErrMalformed},
		{"not an object", `[1,2]`, ErrMalformed},
		{"missing kind", `{"$id":"1","name":"x"}`, ErrMalformed},
		{"bad kind", `{"$id":"1","kind":9}`, ErrMalformed},
		{"dangling ref", `{"$id":"1","kind":0,"attributes":{"$id":"2","Items":{"$id":"3","$values":[{"$ref":"42"}]}}}`, ErrReferenceResolution},
		{"ref to wrong object", `{"$id":"1","kind":0,"attributes":{"$id":"2","Items":{"$id":"3","$values":[{"$ref":"2"}]}}}`, ErrReferenceResolution},
		{"duplicate id", `{"$id":"1","kind":0,"attributes":{"$id":"1"}}`, ErrMalformed},
		{"relation without weight", `{"$id":"1","kind":0,"attributes":{"$id":"2","Relations":{"$id":"3","$values":[{"$id":"4","character":{"$ref":"1"}}]}}}`, ErrMalformed},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := DecodeEntity([]byte(tc.doc))
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}

	t.Run("plot without entities", func(t *testing.T) {
		if _, err := DecodePlot([]byte(`{"$id":"1","clock":0}`)); !errors.Is(err, ErrMalformed) {
			t.Fatalf("expected ErrMalformed, got %v", err)
		}
	})

	t.Run("plot with dangling ref", func(t *testing.T) {
		doc := `{"$id":"1","entities":{"$id":"2","$values":[{"$ref":"7"}]},"clock":1}`
		if _, err := DecodePlot([]byte(doc)); !errors.Is(err, ErrReferenceResolution) {
			t.Fatalf("expected ErrReferenceResolution, got %v", err)
		}
	})
}

func TestIndentRoundTrips(t *testing.T) {
	s := buildScenario()
	data, err := EncodeEntity(s.reg, s.alice)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	pretty := Indent(data)
	if !strings.Contains(string(pretty), "\n") {
		t.Fatalf("expected indented output")
	}
	if string(Compact(pretty)) != string(data) {
		t.Fatalf("expected compact form to match the original")
	}
}
