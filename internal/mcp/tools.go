package mcp

import (
	"context"
	"fmt"
	"strings"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"storygraph/internal/codec"
	"storygraph/internal/config"
	"storygraph/internal/store"
	"storygraph/internal/story"
)

type EntityRefInput struct {
	Name string `json:"name" jsonschema:"entity name"`
	Kind string `json:"kind,omitempty" jsonschema:"character, item, location or event; searched in that order when omitted"`
}

type CreateEntityInput struct {
	Plot        string         `json:"plot" jsonschema:"plot name; created when missing"`
	Kind        string         `json:"kind" jsonschema:"character, item, location or event"`
	Name        string         `json:"name" jsonschema:"entity name"`
	Description string         `json:"description,omitempty" jsonschema:"free text description"`
	Attributes  map[string]any `json:"attributes,omitempty" jsonschema:"scalar attributes; lists become scalar lists"`
}

type BindInput struct {
	Plot   string         `json:"plot" jsonschema:"plot name"`
	From   EntityRefInput `json:"from" jsonschema:"first entity"`
	To     EntityRefInput `json:"to" jsonschema:"second entity"`
	Weight *float64       `json:"weight,omitempty" jsonschema:"relation weight between two characters; 0 removes the relation"`
}

type UnbindInput struct {
	Plot string         `json:"plot" jsonschema:"plot name"`
	From EntityRefInput `json:"from" jsonschema:"first entity"`
	To   EntityRefInput `json:"to" jsonschema:"second entity"`
}

type MergeInput struct {
	Plot         string         `json:"plot" jsonschema:"plot name"`
	Base         EntityRefInput `json:"base" jsonschema:"entity that survives"`
	Incoming     EntityRefInput `json:"incoming" jsonschema:"entity folded into base and removed from the plot"`
	BasePriority *bool          `json:"base_priority,omitempty" jsonschema:"keep base values on conflict; defaults to true"`
}

type GetEntityInput struct {
	Plot string `json:"plot" jsonschema:"plot name"`
	Name string `json:"name" jsonschema:"entity name"`
	Kind string `json:"kind,omitempty" jsonschema:"optional entity kind"`
}

type ListEntitiesInput struct {
	Plot string `json:"plot,omitempty" jsonschema:"plot filter"`
	Kind string `json:"kind,omitempty" jsonschema:"entity kind filter"`
	Tag  string `json:"tag,omitempty" jsonschema:"tag filter"`
}

type SearchEntitiesInput struct {
	Query string `json:"query" jsonschema:"search terms"`
	Plot  string `json:"plot,omitempty" jsonschema:"restrict to a plot"`
	Kind  string `json:"kind,omitempty" jsonschema:"restrict to an entity kind"`
}

type RemoveEntityInput struct {
	Plot    string `json:"plot" jsonschema:"plot name"`
	Name    string `json:"name" jsonschema:"entity name"`
	Kind    string `json:"kind,omitempty" jsonschema:"optional entity kind"`
	Cascade bool   `json:"cascade,omitempty" jsonschema:"also unbind the entity from every partner"`
}

type ExportPlotInput struct {
	Plot   string `json:"plot" jsonschema:"plot name"`
	Pretty bool   `json:"pretty,omitempty" jsonschema:"indent the document"`
}

type GetSchemaInput struct{}

type EntityOutput struct {
	Name        string         `json:"name"`
	Kind        string         `json:"kind"`
	Description string         `json:"description"`
	Sequence    int            `json:"sequence"`
	InPlot      bool           `json:"in_plot"`
	Attributes  map[string]any `json:"attributes"`
}

type RelationOutput struct {
	Name   string  `json:"name"`
	Weight float64 `json:"weight"`
}

type EntitySummaryOutput struct {
	Plot     string   `json:"plot"`
	Name     string   `json:"name"`
	Kind     string   `json:"kind"`
	Sequence int      `json:"sequence"`
	Tags     []string `json:"tags"`
	Partners int      `json:"partners"`
}

type ListEntitiesOutput struct {
	Entities []EntitySummaryOutput `json:"entities"`
}

type SearchResultOutput struct {
	Plot    string   `json:"plot"`
	Name    string   `json:"name"`
	Kind    string   `json:"kind"`
	Tags    []string `json:"tags"`
	Score   float64  `json:"score"`
	Snippet string   `json:"snippet,omitempty"`
}

type SearchEntitiesOutput struct {
	Results []SearchResultOutput `json:"results"`
}

type RemoveEntityOutput struct {
	Removed bool `json:"removed"`
}

type ExportPlotOutput struct {
	Document string `json:"document"`
}

type SchemaOutput struct {
	Version int                `json:"version"`
	Kinds   []KindSchemaOutput `json:"kinds"`
}

type KindSchemaOutput struct {
	Name       string            `json:"name"`
	Attributes []AttributeOutput `json:"attributes"`
}

type AttributeOutput struct {
	Name     string   `json:"name"`
	Shape    string   `json:"shape"`
	Values   []string `json:"values,omitempty"`
	Default  string   `json:"default,omitempty"`
	Required bool     `json:"required,omitempty"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "create_entity",
		Description: "Create an entity in a plot",
	}, s.handleCreateEntity)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "bind",
		Description: "Connect two entities; the kinds decide which relationship is recorded",
	}, s.handleBind)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "unbind",
		Description: "Remove the relationship between two entities",
	}, s.handleUnbind)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "merge",
		Description: "Fold one entity into another of the same kind",
	}, s.handleMerge)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_entity",
		Description: "Retrieve an entity with its attributes and relationships",
	}, s.handleGetEntity)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_entities",
		Description: "List entities with optional filters",
	}, s.handleListEntities)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "search_entities",
		Description: "Search entities by name, tags, and description",
	}, s.handleSearchEntities)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "remove_entity",
		Description: "Remove an entity from a plot",
	}, s.handleRemoveEntity)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "export_plot",
		Description: "Return the serialized plot document",
	}, s.handleExportPlot)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_schema",
		Description: "Return the declared attributes per kind",
	}, s.handleGetSchema)
}

func (s *Server) handleCreateEntity(ctx context.Context, req *sdk.CallToolRequest, input CreateEntityInput) (*sdk.CallToolResult, EntityOutput, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, EntityOutput{}, fmt.Errorf("name is required")
	}
	kind, err := story.ParseKind(input.Kind)
	if err != nil {
		return nil, EntityOutput{}, err
	}

	var h story.Handle
	p, err := s.mutate(ctx, input.Plot, true, func(p *story.Plot) error {
		if _, exists := p.Find(kind, input.Name); exists {
			return fmt.Errorf("%s %q already exists", kind, input.Name)
		}
		h = p.Create(kind, strings.TrimSpace(input.Name))
		return p.Update(func(r *story.Registry) error {
			e := r.MustGet(h)
			e.Description = input.Description
			return setAttributes(e, input.Attributes)
		})
	})
	if err != nil {
		return nil, EntityOutput{}, err
	}
	return nil, entityOutput(p, h), nil
}

func (s *Server) handleBind(ctx context.Context, req *sdk.CallToolRequest, input BindInput) (*sdk.CallToolResult, EntityOutput, error) {
	var from story.Handle
	p, err := s.mutate(ctx, input.Plot, false, func(p *story.Plot) error {
		a, b, err := resolvePair(p, input.From, input.To)
		if err != nil {
			return err
		}
		from = a
		if input.Weight != nil {
			p.BindWeighted(a, b, *input.Weight)
		} else {
			p.Bind(a, b)
		}
		return nil
	})
	if err != nil {
		return nil, EntityOutput{}, err
	}
	return nil, entityOutput(p, from), nil
}

func (s *Server) handleUnbind(ctx context.Context, req *sdk.CallToolRequest, input UnbindInput) (*sdk.CallToolResult, EntityOutput, error) {
	var from story.Handle
	p, err := s.mutate(ctx, input.Plot, false, func(p *story.Plot) error {
		a, b, err := resolvePair(p, input.From, input.To)
		if err != nil {
			return err
		}
		from = a
		p.Unbind(a, b)
		return nil
	})
	if err != nil {
		return nil, EntityOutput{}, err
	}
	return nil, entityOutput(p, from), nil
}

func (s *Server) handleMerge(ctx context.Context, req *sdk.CallToolRequest, input MergeInput) (*sdk.CallToolResult, EntityOutput, error) {
	var base story.Handle
	p, err := s.mutate(ctx, input.Plot, false, func(p *story.Plot) error {
		b, incoming, err := resolvePair(p, input.Base, input.Incoming)
		if err != nil {
			return err
		}
		if b == incoming {
			return fmt.Errorf("cannot merge %q into itself", input.Base.Name)
		}
		basePriority := input.BasePriority == nil || *input.BasePriority
		if err := p.Merge(b, incoming, basePriority); err != nil {
			return err
		}
		base = b
		p.Remove(incoming)
		return nil
	})
	if err != nil {
		return nil, EntityOutput{}, err
	}
	return nil, entityOutput(p, base), nil
}

func (s *Server) handleGetEntity(ctx context.Context, req *sdk.CallToolRequest, input GetEntityInput) (*sdk.CallToolResult, EntityOutput, error) {
	if input.Name == "" {
		return nil, EntityOutput{}, fmt.Errorf("name is required")
	}
	p, err := s.view(ctx, input.Plot)
	if err != nil {
		return nil, EntityOutput{}, err
	}
	h, err := resolve(p, EntityRefInput{Name: input.Name, Kind: input.Kind})
	if err != nil {
		return nil, EntityOutput{}, err
	}
	return nil, entityOutput(p, h), nil
}

func (s *Server) handleListEntities(ctx context.Context, req *sdk.CallToolRequest, input ListEntitiesInput) (*sdk.CallToolResult, ListEntitiesOutput, error) {
	items, err := s.db.ListEntities(ctx, input.Plot, input.Kind, input.Tag)
	if err != nil {
		return nil, ListEntitiesOutput{}, err
	}

	output := make([]EntitySummaryOutput, 0, len(items))
	for _, item := range items {
		output = append(output, EntitySummaryOutput{
			Plot:     item.Plot,
			Name:     item.Name,
			Kind:     item.Kind,
			Sequence: item.Sequence,
			Tags:     append([]string{}, item.Tags...),
			Partners: item.Partners,
		})
	}
	return nil, ListEntitiesOutput{Entities: output}, nil
}

func (s *Server) handleSearchEntities(ctx context.Context, req *sdk.CallToolRequest, input SearchEntitiesInput) (*sdk.CallToolResult, SearchEntitiesOutput, error) {
	if input.Query == "" {
		return nil, SearchEntitiesOutput{}, fmt.Errorf("query is required")
	}
	results, err := s.db.Search(ctx, input.Plot, input.Query, input.Kind)
	if err != nil {
		return nil, SearchEntitiesOutput{}, err
	}

	output := make([]SearchResultOutput, 0, len(results))
	for _, result := range results {
		output = append(output, searchResultOutput(result))
	}
	return nil, SearchEntitiesOutput{Results: output}, nil
}

func (s *Server) handleRemoveEntity(ctx context.Context, req *sdk.CallToolRequest, input RemoveEntityInput) (*sdk.CallToolResult, RemoveEntityOutput, error) {
	removed := false
	_, err := s.mutate(ctx, input.Plot, false, func(p *story.Plot) error {
		h, err := resolve(p, EntityRefInput{Name: input.Name, Kind: input.Kind})
		if err != nil {
			return err
		}
		if input.Cascade {
			removed = p.Discard(h)
		} else {
			removed = p.Remove(h)
		}
		return nil
	})
	if err != nil {
		return nil, RemoveEntityOutput{}, err
	}
	return nil, RemoveEntityOutput{Removed: removed}, nil
}

func (s *Server) handleExportPlot(ctx context.Context, req *sdk.CallToolRequest, input ExportPlotInput) (*sdk.CallToolResult, ExportPlotOutput, error) {
	p, err := s.view(ctx, input.Plot)
	if err != nil {
		return nil, ExportPlotOutput{}, err
	}
	doc, err := codec.EncodePlot(p)
	if err != nil {
		return nil, ExportPlotOutput{}, err
	}
	if input.Pretty {
		doc = codec.Indent(doc)
	}
	return nil, ExportPlotOutput{Document: string(doc)}, nil
}

func (s *Server) handleGetSchema(ctx context.Context, req *sdk.CallToolRequest, input GetSchemaInput) (*sdk.CallToolResult, SchemaOutput, error) {
	return nil, schemaOutputFromConfig(s.schema), nil
}

func resolvePair(p *story.Plot, a, b EntityRefInput) (story.Handle, story.Handle, error) {
	ha, err := resolve(p, a)
	if err != nil {
		return story.NoHandle, story.NoHandle, err
	}
	hb, err := resolve(p, b)
	if err != nil {
		return story.NoHandle, story.NoHandle, err
	}
	return ha, hb, nil
}

func resolve(p *story.Plot, ref EntityRefInput) (story.Handle, error) {
	if strings.TrimSpace(ref.Name) == "" {
		return story.NoHandle, fmt.Errorf("entity name is required")
	}
	kinds := story.Kinds()
	if ref.Kind != "" {
		kind, err := story.ParseKind(ref.Kind)
		if err != nil {
			return story.NoHandle, err
		}
		kinds = []story.Kind{kind}
	}
	for _, kind := range kinds {
		if h, ok := p.Find(kind, ref.Name); ok {
			return h, nil
		}
	}
	return story.NoHandle, fmt.Errorf("entity %q not found", ref.Name)
}

func setAttributes(e *story.Entity, attrs map[string]any) error {
	for key, raw := range attrs {
		if story.IsWellKnownKey(key) {
			return fmt.Errorf("%s is managed through bind", key)
		}
		switch v := raw.(type) {
		case []any:
			items := make([]story.Scalar, 0, len(v))
			for _, item := range v {
				s, err := toScalar(item)
				if err != nil {
					return fmt.Errorf("attribute %s: %w", key, err)
				}
				items = append(items, s)
			}
			e.SetScalarList(key, items...)
		default:
			s, err := toScalar(v)
			if err != nil {
				return fmt.Errorf("attribute %s: %w", key, err)
			}
			e.SetScalar(key, s)
		}
	}
	return nil
}

func toScalar(raw any) (story.Scalar, error) {
	switch v := raw.(type) {
	case nil:
		return story.Null(), nil
	case string:
		return story.String(v), nil
	case float64:
		return story.Number(v), nil
	case int:
		return story.Number(float64(v)), nil
	case bool:
		return story.Bool(v), nil
	default:
		return story.Null(), fmt.Errorf("unsupported value %T", raw)
	}
}

func entityOutput(p *story.Plot, h story.Handle) EntityOutput {
	var out EntityOutput
	_ = p.Snapshot(func(r *story.Registry, entities []story.Handle, _ int) error {
		e, ok := r.Get(h)
		if !ok {
			return nil
		}
		out = EntityOutput{
			Name:        e.Name,
			Kind:        e.Kind.String(),
			Description: e.Description,
			Sequence:    e.Sequence,
			Attributes:  map[string]any{},
		}
		for _, member := range entities {
			if member == h {
				out.InPlot = true
				break
			}
		}
		name := func(h story.Handle) string {
			if target, ok := r.Get(h); ok {
				return target.Name
			}
			return ""
		}
		e.Attributes.Each(func(key string, v *story.Value) bool {
			out.Attributes[key] = valueOutput(v, name)
			return true
		})
		return nil
	})
	return out
}

func valueOutput(v *story.Value, name func(story.Handle) string) any {
	switch v.Shape {
	case story.ShapeScalarList:
		items := make([]any, 0, len(v.Scalars))
		for _, s := range v.Scalars {
			items = append(items, scalarOutput(s))
		}
		return items
	case story.ShapeRelationList:
		rels := make([]RelationOutput, 0, len(v.Relations))
		for _, rel := range v.Relations {
			rels = append(rels, RelationOutput{Name: name(rel.Character), Weight: rel.Weight})
		}
		return rels
	case story.ShapeEntityRef:
		if v.Ref == story.NoHandle {
			return nil
		}
		return name(v.Ref)
	case story.ShapeEntityRefList:
		names := make([]string, 0, len(v.Refs))
		for _, h := range v.Refs {
			names = append(names, name(h))
		}
		return names
	}
	return scalarOutput(v.Scalar)
}

func scalarOutput(s story.Scalar) any {
	switch s.Kind {
	case story.ScalarString, story.ScalarDate:
		return s.String()
	case story.ScalarNumber:
		return s.Num
	case story.ScalarBool:
		return s.Bool
	}
	return nil
}

func searchResultOutput(result store.SearchResult) SearchResultOutput {
	return SearchResultOutput{
		Plot:    result.Plot,
		Name:    result.Name,
		Kind:    result.Kind,
		Tags:    append([]string{}, result.Tags...),
		Score:   result.Score,
		Snippet: result.Snippet,
	}
}

func schemaOutputFromConfig(schema *config.Schema) SchemaOutput {
	if schema == nil {
		return SchemaOutput{Kinds: []KindSchemaOutput{}}
	}

	out := SchemaOutput{
		Version: schema.Version,
		Kinds:   make([]KindSchemaOutput, 0, len(schema.Kinds)),
	}
	for _, ks := range schema.Kinds {
		kindOut := KindSchemaOutput{
			Name:       ks.Name,
			Attributes: make([]AttributeOutput, 0, len(ks.Attributes)),
		}
		for _, attr := range ks.Attributes {
			kindOut.Attributes = append(kindOut.Attributes, AttributeOutput{
				Name:     attr.Name,
				Shape:    attr.Shape,
				Values:   attr.Values,
				Default:  attr.Default,
				Required: attr.Required,
			})
		}
		out.Kinds = append(out.Kinds, kindOut)
	}
	return out
}
