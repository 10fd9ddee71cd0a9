package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"storygraph/internal/codec"
	"storygraph/internal/store"
	"storygraph/internal/story"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()
	dsn := "sqlite://" + filepath.Join(t.TempDir(), "story.db")
	c, err := New(ctx, dsn)
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { c.Close(ctx) })
	if err := c.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensuring schema: %v", err)
	}
	return c
}

func samplePlot() *story.Plot {
	p := story.NewPlot()
	alice := p.Create(story.Character, "Alice")
	bob := p.Create(story.Character, "Bob")
	castle := p.Create(story.Location, "Castle")
	p.BindWeighted(alice, bob, 5)
	p.Bind(castle, alice)
	_ = p.Update(func(r *story.Registry) error {
		e := r.MustGet(castle)
		e.Description = "A drafty fortress above the red dragon's valley"
		e.SetScalarList("Tags", story.String("ruin"), story.String("north"))
		return nil
	})
	return p
}

func TestPlotLifecycle(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	first, err := store.Save(ctx, c, "Saga", samplePlot())
	if err != nil {
		t.Fatalf("saving: %v", err)
	}
	if first.ID == "" || first.EntityCount != 3 {
		t.Fatalf("expected id and 3 entities, got %+v", first)
	}

	again, err := store.Save(ctx, c, "saga", samplePlot())
	if err != nil {
		t.Fatalf("re-saving: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("expected stable id %s, got %s", first.ID, again.ID)
	}

	t.Run("load decodes", func(t *testing.T) {
		p, err := store.Load(ctx, c, "SAGA", codec.Decoder{})
		if err != nil {
			t.Fatalf("loading: %v", err)
		}
		if p.Len() != 3 || p.Clock() != 3 {
			t.Fatalf("expected 3 entities and clock 3, got %d and %d", p.Len(), p.Clock())
		}
	})

	t.Run("list plots", func(t *testing.T) {
		plots, err := c.ListPlots(ctx)
		if err != nil {
			t.Fatalf("listing: %v", err)
		}
		if len(plots) != 1 {
			t.Fatalf("expected one plot, got %d", len(plots))
		}
	})

	t.Run("list entities by kind", func(t *testing.T) {
		rows, err := c.ListEntities(ctx, "saga", "character", "")
		if err != nil {
			t.Fatalf("listing: %v", err)
		}
		if len(rows) != 2 || rows[0].Name != "Alice" || rows[1].Name != "Bob" {
			t.Fatalf("expected Alice and Bob, got %+v", rows)
		}
		if rows[0].Partners != 2 {
			t.Fatalf("expected Alice to have 2 partners, got %d", rows[0].Partners)
		}
	})

	t.Run("list entities by tag", func(t *testing.T) {
		rows, err := c.ListEntities(ctx, "", "", "North")
		if err != nil {
			t.Fatalf("listing: %v", err)
		}
		if len(rows) != 1 || rows[0].Name != "Castle" {
			t.Fatalf("expected Castle, got %+v", rows)
		}
	})

	t.Run("search", func(t *testing.T) {
		results, err := c.Search(ctx, "saga", "dragon", "")
		if err != nil {
			t.Fatalf("searching: %v", err)
		}
		if len(results) != 1 || results[0].Name != "Castle" {
			t.Fatalf("expected Castle, got %+v", results)
		}
	})

	t.Run("run sql", func(t *testing.T) {
		rows, err := c.RunSQL(ctx, "SELECT name FROM entities WHERE kind = ? ORDER BY position", map[string]any{"1": "location"})
		if err != nil {
			t.Fatalf("running sql: %v", err)
		}
		if len(rows) != 1 || rows[0]["name"] != "Castle" {
			t.Fatalf("expected Castle row, got %v", rows)
		}
		if _, err := c.RunSQL(ctx, "DELETE FROM plots", nil); err == nil {
			t.Fatalf("expected write to be rejected")
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := c.DeletePlot(ctx, "Saga"); err != nil {
			t.Fatalf("deleting: %v", err)
		}
		if _, err := c.LoadPlot(ctx, "Saga"); !errors.Is(err, store.ErrPlotNotFound) {
			t.Fatalf("expected ErrPlotNotFound, got %v", err)
		}
		rows, err := c.ListEntities(ctx, "", "", "")
		if err != nil {
			t.Fatalf("listing: %v", err)
		}
		if len(rows) != 0 {
			t.Fatalf("expected entity rows gone, got %d", len(rows))
		}
		if err := c.DeletePlot(ctx, "Saga"); !errors.Is(err, store.ErrPlotNotFound) {
			t.Fatalf("expected ErrPlotNotFound on second delete, got %v", err)
		}
	})
}

func TestSplitStatements(t *testing.T) {
	stmts := splitStatements(ddl)
	triggers := 0
	for _, s := range stmts {
		if strings.Contains(s, "CREATE TRIGGER") {
			triggers++
			if !strings.Contains(s, "END;") {
				t.Fatalf("expected trigger body kept whole, got %q", s)
			}
		}
	}
	if triggers != 3 {
		t.Fatalf("expected 3 triggers, got %d", triggers)
	}
}
