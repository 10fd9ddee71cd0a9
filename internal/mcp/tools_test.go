package mcp

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"storygraph/internal/codec"
	"storygraph/internal/config"
	"storygraph/internal/store"
	"storygraph/internal/story"
)

type mockStore struct {
	plots map[string]*store.PlotRecord
	saves int

	searchResult []store.SearchResult
	searchErr    error
	listResult   []store.EntitySummary
	listErr      error

	lastSearchQuery string
	lastSearchPlot  string
	lastSearchKind  string
	lastListPlot    string
	lastListKind    string
	lastListTag     string
}

func newMockStore() *mockStore {
	return &mockStore{plots: make(map[string]*store.PlotRecord)}
}

func (m *mockStore) Close(ctx context.Context) error        { return nil }
func (m *mockStore) EnsureSchema(ctx context.Context) error { return nil }

func (m *mockStore) SavePlot(ctx context.Context, p store.PlotInput) (*store.PlotSummary, error) {
	m.saves++
	summary := store.PlotSummary{ID: p.Name, Name: p.Name, Clock: p.Clock, EntityCount: len(p.Entities)}
	m.plots[store.NormalizeName(p.Name)] = &store.PlotRecord{
		PlotSummary: summary,
		Document:    append([]byte{}, p.Document...),
	}
	return &summary, nil
}

func (m *mockStore) LoadPlot(ctx context.Context, name string) (*store.PlotRecord, error) {
	rec, ok := m.plots[store.NormalizeName(name)]
	if !ok {
		return nil, store.ErrPlotNotFound
	}
	return rec, nil
}

func (m *mockStore) ListPlots(ctx context.Context) ([]store.PlotSummary, error) {
	out := make([]store.PlotSummary, 0, len(m.plots))
	for _, rec := range m.plots {
		out = append(out, rec.PlotSummary)
	}
	return out, nil
}

func (m *mockStore) DeletePlot(ctx context.Context, name string) error {
	if _, ok := m.plots[store.NormalizeName(name)]; !ok {
		return store.ErrPlotNotFound
	}
	delete(m.plots, store.NormalizeName(name))
	return nil
}

func (m *mockStore) ListEntities(ctx context.Context, plot, kind, tag string) ([]store.EntitySummary, error) {
	m.lastListPlot = plot
	m.lastListKind = kind
	m.lastListTag = tag
	return m.listResult, m.listErr
}

func (m *mockStore) Search(ctx context.Context, plot, query, kind string) ([]store.SearchResult, error) {
	m.lastSearchPlot = plot
	m.lastSearchQuery = query
	m.lastSearchKind = kind
	return m.searchResult, m.searchErr
}

func (m *mockStore) RunSQL(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, *mockStore) {
	t.Helper()
	db := newMockStore()
	return NewServer(&config.Schema{Version: 1}, db, nil, "test"), db
}

func createEntity(t *testing.T, s *Server, kind, name string) {
	t.Helper()
	_, _, err := s.handleCreateEntity(context.Background(), nil, CreateEntityInput{Plot: "Saga", Kind: kind, Name: name})
	if err != nil {
		t.Fatalf("creating %s %s: %v", kind, name, err)
	}
}

func TestCreateEntity(t *testing.T) {
	ctx := context.Background()

	t.Run("creates plot lazily", func(t *testing.T) {
		s, db := newTestServer(t)
		_, out, err := s.handleCreateEntity(ctx, nil, CreateEntityInput{
			Plot:        "Saga",
			Kind:        "character",
			Name:        "Alice",
			Description: "A knight",
			Attributes:  map[string]any{"Age": float64(30), "Traits": []any{"brave", "loyal"}},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if out.Name != "Alice" || out.Kind != "character" || !out.InPlot {
			t.Fatalf("unexpected output: %+v", out)
		}
		if out.Attributes["Age"] != float64(30) {
			t.Fatalf("expected age 30, got %v", out.Attributes["Age"])
		}
		traits, ok := out.Attributes["Traits"].([]any)
		if !ok || len(traits) != 2 || traits[0] != "brave" {
			t.Fatalf("expected traits [brave loyal], got %v", out.Attributes["Traits"])
		}
		if db.saves != 1 {
			t.Fatalf("expected 1 save, got %d", db.saves)
		}
	})

	t.Run("rejects duplicate", func(t *testing.T) {
		s, _ := newTestServer(t)
		createEntity(t, s, "character", "Alice")
		_, _, err := s.handleCreateEntity(ctx, nil, CreateEntityInput{Plot: "Saga", Kind: "character", Name: "alice"})
		if err == nil {
			t.Fatalf("expected error for duplicate entity")
		}
	})

	t.Run("rejects unknown kind", func(t *testing.T) {
		s, _ := newTestServer(t)
		_, _, err := s.handleCreateEntity(ctx, nil, CreateEntityInput{Plot: "Saga", Kind: "faction", Name: "Guild"})
		if err == nil {
			t.Fatalf("expected error for unknown kind")
		}
	})

	t.Run("rejects relationship keys", func(t *testing.T) {
		s, db := newTestServer(t)
		_, _, err := s.handleCreateEntity(ctx, nil, CreateEntityInput{
			Plot:       "Saga",
			Kind:       "character",
			Name:       "Alice",
			Attributes: map[string]any{story.KeyItems: "Sword"},
		})
		if err == nil {
			t.Fatalf("expected error for relationship key")
		}
		if db.saves != 0 {
			t.Fatalf("expected failed create not to save, got %d saves", db.saves)
		}
	})

	t.Run("requires plot", func(t *testing.T) {
		s, _ := newTestServer(t)
		_, _, err := s.handleCreateEntity(ctx, nil, CreateEntityInput{Kind: "character", Name: "Alice"})
		if err == nil {
			t.Fatalf("expected error without plot")
		}
	})
}

func TestBindAndUnbind(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)
	createEntity(t, s, "character", "Alice")
	createEntity(t, s, "character", "Bob")
	createEntity(t, s, "item", "Sword")

	weight := 3.0
	_, out, err := s.handleBind(ctx, nil, BindInput{
		Plot:   "Saga",
		From:   EntityRefInput{Name: "Alice"},
		To:     EntityRefInput{Name: "Bob"},
		Weight: &weight,
	})
	if err != nil {
		t.Fatalf("binding characters: %v", err)
	}
	rels, ok := out.Attributes[story.KeyRelations].([]RelationOutput)
	if !ok || len(rels) != 1 || rels[0] != (RelationOutput{Name: "Bob", Weight: 3}) {
		t.Fatalf("expected relation to Bob weight 3, got %v", out.Attributes[story.KeyRelations])
	}

	if _, _, err := s.handleBind(ctx, nil, BindInput{
		Plot: "Saga",
		From: EntityRefInput{Name: "Sword", Kind: "item"},
		To:   EntityRefInput{Name: "Alice", Kind: "character"},
	}); err != nil {
		t.Fatalf("binding item: %v", err)
	}

	_, sword, err := s.handleGetEntity(ctx, nil, GetEntityInput{Plot: "Saga", Name: "Sword"})
	if err != nil {
		t.Fatalf("getting sword: %v", err)
	}
	if sword.Attributes[story.KeyHost] != "Alice" {
		t.Fatalf("expected host Alice, got %v", sword.Attributes[story.KeyHost])
	}

	_, out, err = s.handleUnbind(ctx, nil, UnbindInput{
		Plot: "Saga",
		From: EntityRefInput{Name: "Alice"},
		To:   EntityRefInput{Name: "Sword"},
	})
	if err != nil {
		t.Fatalf("unbinding: %v", err)
	}
	items, _ := out.Attributes[story.KeyItems].([]string)
	if len(items) != 0 {
		t.Fatalf("expected no items after unbind, got %v", items)
	}

	_, _, err = s.handleBind(ctx, nil, BindInput{
		Plot: "Saga",
		From: EntityRefInput{Name: "Alice"},
		To:   EntityRefInput{Name: "Nobody"},
	})
	if err == nil {
		t.Fatalf("expected error for unknown entity")
	}
}

func TestMerge(t *testing.T) {
	ctx := context.Background()
	s, db := newTestServer(t)
	createEntity(t, s, "character", "Alice")
	createEntity(t, s, "character", "Alicia")
	createEntity(t, s, "location", "Castle")

	if _, _, err := s.handleBind(ctx, nil, BindInput{
		Plot: "Saga",
		From: EntityRefInput{Name: "Alicia"},
		To:   EntityRefInput{Name: "Castle"},
	}); err != nil {
		t.Fatalf("binding: %v", err)
	}

	_, out, err := s.handleMerge(ctx, nil, MergeInput{
		Plot:     "Saga",
		Base:     EntityRefInput{Name: "Alice"},
		Incoming: EntityRefInput{Name: "Alicia"},
	})
	if err != nil {
		t.Fatalf("merging: %v", err)
	}
	if out.Name != "Alice" {
		t.Fatalf("expected base name to win, got %q", out.Name)
	}
	locations, _ := out.Attributes[story.KeyLocations].([]string)
	if len(locations) != 1 || locations[0] != "Castle" {
		t.Fatalf("expected locations [Castle], got %v", out.Attributes[story.KeyLocations])
	}

	_, _, err = s.handleGetEntity(ctx, nil, GetEntityInput{Plot: "Saga", Name: "Alicia"})
	if err == nil {
		t.Fatalf("expected merged entity to leave the plot")
	}

	rec, err := db.LoadPlot(ctx, "Saga")
	if err != nil {
		t.Fatalf("loading plot: %v", err)
	}
	if !strings.Contains(string(rec.Document), `"Alice"`) {
		t.Fatalf("expected saved document to hold Alice, got %s", rec.Document)
	}

	t.Run("different kinds", func(t *testing.T) {
		_, _, err := s.handleMerge(ctx, nil, MergeInput{
			Plot:     "Saga",
			Base:     EntityRefInput{Name: "Alice"},
			Incoming: EntityRefInput{Name: "Castle"},
		})
		if err == nil {
			t.Fatalf("expected error merging different kinds")
		}
	})

	t.Run("into itself", func(t *testing.T) {
		_, _, err := s.handleMerge(ctx, nil, MergeInput{
			Plot:     "Saga",
			Base:     EntityRefInput{Name: "Alice"},
			Incoming: EntityRefInput{Name: "Alice"},
		})
		if err == nil {
			t.Fatalf("expected error merging into itself")
		}
	})
}

func TestGetEntity_NotFound(t *testing.T) {
	s, _ := newTestServer(t)

	_, _, err := s.handleGetEntity(context.Background(), nil, GetEntityInput{Plot: "Saga", Name: "Missing"})
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestRemoveEntity(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) *Server {
		s, _ := newTestServer(t)
		createEntity(t, s, "character", "Alice")
		createEntity(t, s, "location", "Castle")
		if _, _, err := s.handleBind(ctx, nil, BindInput{
			Plot: "Saga",
			From: EntityRefInput{Name: "Alice"},
			To:   EntityRefInput{Name: "Castle"},
		}); err != nil {
			t.Fatalf("binding: %v", err)
		}
		return s
	}

	t.Run("keeps references", func(t *testing.T) {
		s := setup(t)
		_, out, err := s.handleRemoveEntity(ctx, nil, RemoveEntityInput{Plot: "Saga", Name: "Castle"})
		if err != nil || !out.Removed {
			t.Fatalf("expected removal, got %+v, %v", out, err)
		}
		_, alice, err := s.handleGetEntity(ctx, nil, GetEntityInput{Plot: "Saga", Name: "Alice"})
		if err != nil {
			t.Fatalf("getting alice: %v", err)
		}
		locations, _ := alice.Attributes[story.KeyLocations].([]string)
		if len(locations) != 1 || locations[0] != "Castle" {
			t.Fatalf("expected Alice to keep Castle, got %v", alice.Attributes[story.KeyLocations])
		}
	})

	t.Run("cascade unbinds", func(t *testing.T) {
		s := setup(t)
		_, out, err := s.handleRemoveEntity(ctx, nil, RemoveEntityInput{Plot: "Saga", Name: "Castle", Cascade: true})
		if err != nil || !out.Removed {
			t.Fatalf("expected removal, got %+v, %v", out, err)
		}
		_, alice, err := s.handleGetEntity(ctx, nil, GetEntityInput{Plot: "Saga", Name: "Alice"})
		if err != nil {
			t.Fatalf("getting alice: %v", err)
		}
		locations, _ := alice.Attributes[story.KeyLocations].([]string)
		if len(locations) != 0 {
			t.Fatalf("expected no locations, got %v", locations)
		}
	})
}

func TestExportPlot(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestServer(t)
	createEntity(t, s, "character", "Alice")

	_, compact, err := s.handleExportPlot(ctx, nil, ExportPlotInput{Plot: "Saga"})
	if err != nil {
		t.Fatalf("exporting: %v", err)
	}
	_, pretty, err := s.handleExportPlot(ctx, nil, ExportPlotInput{Plot: "Saga", Pretty: true})
	if err != nil {
		t.Fatalf("exporting pretty: %v", err)
	}
	if !strings.Contains(pretty.Document, "\n") {
		t.Fatalf("expected indented document, got %s", pretty.Document)
	}
	if string(codec.Compact([]byte(pretty.Document))) != string(codec.Compact([]byte(compact.Document))) {
		t.Fatalf("expected pretty and compact exports to match")
	}

	if _, _, err := s.handleExportPlot(ctx, nil, ExportPlotInput{Plot: "Missing"}); err == nil {
		t.Fatalf("expected error for missing plot")
	}
}

func TestSearchEntities(t *testing.T) {
	s, db := newTestServer(t)
	db.searchResult = []store.SearchResult{
		{Plot: "Saga", Name: "Castle", Kind: "location", Tags: []string{"ruin"}, Score: 1.0},
	}

	_, output, err := s.handleSearchEntities(context.Background(), nil, SearchEntitiesInput{Query: "castle", Plot: "Saga", Kind: "location"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.lastSearchQuery != "castle" || db.lastSearchPlot != "Saga" || db.lastSearchKind != "location" {
		t.Fatalf("unexpected search args: %q %q %q", db.lastSearchQuery, db.lastSearchPlot, db.lastSearchKind)
	}
	if len(output.Results) != 1 || output.Results[0].Name != "Castle" {
		t.Fatalf("unexpected results: %+v", output.Results)
	}

	if _, _, err := s.handleSearchEntities(context.Background(), nil, SearchEntitiesInput{}); err == nil {
		t.Fatalf("expected error for empty query")
	}
}

func TestListEntities(t *testing.T) {
	s, db := newTestServer(t)
	db.listResult = []store.EntitySummary{
		{Plot: "Saga", Name: "Alice", Kind: "character", Tags: []string{"hero"}, Partners: 2},
	}

	_, output, err := s.handleListEntities(context.Background(), nil, ListEntitiesInput{Plot: "Saga", Kind: "character", Tag: "hero"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if db.lastListPlot != "Saga" || db.lastListKind != "character" || db.lastListTag != "hero" {
		t.Fatalf("unexpected list args: %q %q %q", db.lastListPlot, db.lastListKind, db.lastListTag)
	}
	if len(output.Entities) != 1 || output.Entities[0].Partners != 2 {
		t.Fatalf("unexpected entities: %+v", output.Entities)
	}
}

func TestGetSchema(t *testing.T) {
	schema := &config.Schema{
		Version: 1,
		Kinds: []config.KindSchema{
			{
				Name: "character",
				Attributes: []config.Attribute{
					{Name: "Status", Shape: "scalar", Values: []string{"alive", "dead"}, Default: "alive"},
				},
			},
		},
	}
	s := NewServer(schema, newMockStore(), nil, "test")

	_, output, err := s.handleGetSchema(context.Background(), nil, GetSchemaInput{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if output.Version != 1 || len(output.Kinds) != 1 {
		t.Fatalf("unexpected schema output: %+v", output)
	}
	attr := output.Kinds[0].Attributes[0]
	if attr.Name != "Status" || attr.Default != "alive" || len(attr.Values) != 2 {
		t.Fatalf("unexpected attribute: %+v", attr)
	}
}

func TestMergePriority(t *testing.T) {
	ctx := context.Background()

	for _, tc := range []struct {
		name    string
		payload string
		want    string
	}{
		{"omitted keeps base", `{"plot":"Saga","base":{"name":"Alice"},"incoming":{"name":"Alicia"}}`, "Alice"},
		{"true keeps base", `{"plot":"Saga","base":{"name":"Alice"},"incoming":{"name":"Alicia"},"base_priority":true}`, "Alice"},
		{"false takes incoming", `{"plot":"Saga","base":{"name":"Alice"},"incoming":{"name":"Alicia"},"base_priority":false}`, "Alicia"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			s, _ := newTestServer(t)
			createEntity(t, s, "character", "Alice")
			createEntity(t, s, "character", "Alicia")

			var input MergeInput
			if err := json.Unmarshal([]byte(tc.payload), &input); err != nil {
				t.Fatalf("decoding input: %v", err)
			}
			_, out, err := s.handleMerge(ctx, nil, input)
			if err != nil {
				t.Fatalf("merging: %v", err)
			}
			if out.Name != tc.want {
				t.Fatalf("expected surviving name %q, got %q", tc.want, out.Name)
			}
		})
	}
}
