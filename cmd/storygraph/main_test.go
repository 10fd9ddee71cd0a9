package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"storygraph/internal/config"
	"storygraph/internal/story"
)

func TestParseParamPairs(t *testing.T) {
	params, err := parseParamPairs([]string{"kind=character", " name = Alice ", ""})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if params["kind"] != "character" || params["name"] != "Alice" {
		t.Fatalf("unexpected params: %v", params)
	}

	for _, bad := range []string{"novalue", "=x"} {
		if _, err := parseParamPairs([]string{bad}); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestOpenStore(t *testing.T) {
	ctx := context.Background()

	t.Run("sqlite", func(t *testing.T) {
		cfg := &config.ProjectConfig{Store: config.StoreConfig{
			Driver: "sqlite",
			DSN:    "sqlite://" + t.TempDir() + "/story.db",
		}}
		db, err := openStore(ctx, cfg)
		if err != nil {
			t.Fatalf("opening store: %v", err)
		}
		defer db.Close(ctx)

		plots, err := db.ListPlots(ctx)
		if err != nil {
			t.Fatalf("listing plots: %v", err)
		}
		if len(plots) != 0 {
			t.Fatalf("expected no plots, got %d", len(plots))
		}
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := &config.ProjectConfig{Store: config.StoreConfig{Driver: "mysql", DSN: "x"}}
		if _, err := openStore(ctx, cfg); err == nil {
			t.Fatalf("expected error for unknown driver")
		}
	})
}

func TestPrintEntity(t *testing.T) {
	p := story.NewPlot()
	alice := p.Create(story.Character, "Alice")
	bob := p.Create(story.Character, "Bob")
	sword := p.Create(story.Item, "Sword")
	p.BindWeighted(alice, bob, 2)
	p.Bind(alice, sword)

	var out bytes.Buffer
	_ = p.View(func(r *story.Registry) error {
		e := r.MustGet(alice)
		e.Description = "A knight"
		e.SetScalarList("Traits", story.String("brave"), story.String("loyal"))
		printEntity(&out, r, e)
		return nil
	})

	for _, want := range []string{
		"Name: Alice\n",
		"Kind: character\n",
		"Description: A knight\n",
		"Relations: Bob (2)\n",
		"Items: Sword\n",
		"Traits: brave, loyal\n",
	} {
		if !strings.Contains(out.String(), want) {
			t.Fatalf("expected output to contain %q, got:\n%s", want, out.String())
		}
	}
}

func TestFindEntity(t *testing.T) {
	p := story.NewPlot()
	castle := p.Create(story.Location, "Castle")

	h, ok, err := findEntity(p, "castle", "")
	if err != nil || !ok || h != castle {
		t.Fatalf("expected castle, got %d %v %v", h, ok, err)
	}
	if _, ok, _ := findEntity(p, "Castle", "item"); ok {
		t.Fatalf("expected no item named Castle")
	}
	if _, _, err := findEntity(p, "Castle", "faction"); err == nil {
		t.Fatalf("expected error for unknown kind")
	}
}
