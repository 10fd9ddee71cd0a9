package sqlite

import (
	"context"
	"strings"
	"testing"

	"storygraph/internal/store"
	"storygraph/internal/story"
)

func TestConvertWebsearchToFTS5(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"single word", "castle", "castle"},
		{"implicit conjunction", "drafty castle", "drafty AND castle"},
		{"lowercase or", "castle or keep", "castle OR keep"},
		{"lowercase not", "dragon not rider", "dragon NOT rider"},
		{"excluded word", "dragon -ruin", "dragon AND NOT ruin"},
		{"leading exclusion", "-ruin castle", "NOT ruin AND castle"},
		{"lone dash stays literal", "castle -", "castle AND -"},
		{"quoted name", `"dragon keep"`, `"dragon keep"`},
		{"quoted name then word", `"dragon keep" north`, `"dragon keep" AND north`},
		{"empty quotes", `"" castle`, "castle"},
		{"prefix", "drag*", "drag*"},
		{"tabs separate words", "red\tdragon", "red AND dragon"},
		{"mixed", `"red dragon" -ruin keep OR castle`, `"red dragon" AND NOT ruin AND keep OR castle`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := convertWebsearchToFTS5(tt.input); got != tt.expected {
				t.Fatalf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func seedSearchPlots(t *testing.T, c *Client) {
	t.Helper()
	ctx := context.Background()

	if _, err := store.Save(ctx, c, "Saga", samplePlot()); err != nil {
		t.Fatalf("saving saga: %v", err)
	}

	chronicle := story.NewPlot()
	rider := chronicle.Create(story.Character, "Dragon Rider")
	keep := chronicle.Create(story.Location, "Dragon Keep")
	chronicle.Bind(rider, keep)
	if _, err := store.Save(ctx, c, "Chronicle", chronicle); err != nil {
		t.Fatalf("saving chronicle: %v", err)
	}
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	seedSearchPlots(t, c)

	t.Run("filters", func(t *testing.T) {
		tests := []struct {
			name  string
			plot  string
			kind  string
			names []string
		}{
			{"all plots", "", "", []string{"Castle", "Dragon Keep", "Dragon Rider"}},
			{"one plot", "chronicle", "", []string{"Dragon Keep", "Dragon Rider"}},
			{"one kind", "", "Location", []string{"Castle", "Dragon Keep"}},
			{"plot and kind", "Chronicle", "character", []string{"Dragon Rider"}},
			{"unknown plot", "epic", "", nil},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				results, err := c.Search(ctx, tt.plot, "dragon", tt.kind)
				if err != nil {
					t.Fatalf("searching: %v", err)
				}
				got := make(map[string]bool, len(results))
				for _, r := range results {
					got[r.Name] = true
				}
				if len(results) != len(tt.names) {
					t.Fatalf("expected %v, got %+v", tt.names, results)
				}
				for _, name := range tt.names {
					if !got[name] {
						t.Fatalf("expected %s in %+v", name, results)
					}
				}
			})
		}
	})

	t.Run("scores are positive and descending", func(t *testing.T) {
		results, err := c.Search(ctx, "", "dragon", "")
		if err != nil {
			t.Fatalf("searching: %v", err)
		}
		for i, r := range results {
			if r.Score <= 0 {
				t.Fatalf("expected positive score, got %+v", r)
			}
			if i > 0 && r.Score > results[i-1].Score {
				t.Fatalf("expected descending scores, got %+v", results)
			}
		}
		if !strings.HasPrefix(results[0].Name, "Dragon") {
			t.Fatalf("expected a name match first, got %s", results[0].Name)
		}
	})

	t.Run("description snippet and tags", func(t *testing.T) {
		results, err := c.Search(ctx, "saga", "dragon", "")
		if err != nil {
			t.Fatalf("searching: %v", err)
		}
		if len(results) != 1 {
			t.Fatalf("expected 1 result, got %+v", results)
		}
		r := results[0]
		if r.Plot != "Saga" || r.Kind != "location" {
			t.Fatalf("expected Saga location, got %+v", r)
		}
		if !strings.Contains(r.Snippet, "**dragon**") {
			t.Fatalf("expected highlighted snippet, got %q", r.Snippet)
		}
		if len(r.Tags) != 2 || r.Tags[0] != "ruin" || r.Tags[1] != "north" {
			t.Fatalf("expected tags [ruin north], got %v", r.Tags)
		}
	})

	t.Run("exclusion drops tagged entity", func(t *testing.T) {
		results, err := c.Search(ctx, "", "dragon -ruin", "")
		if err != nil {
			t.Fatalf("searching: %v", err)
		}
		for _, r := range results {
			if r.Name == "Castle" {
				t.Fatalf("expected Castle to be excluded, got %+v", results)
			}
		}
		if len(results) != 2 {
			t.Fatalf("expected 2 results, got %+v", results)
		}
	})

	t.Run("empty query", func(t *testing.T) {
		if _, err := c.Search(ctx, "", "   ", ""); err == nil {
			t.Fatalf("expected error for empty query")
		}
	})
}
