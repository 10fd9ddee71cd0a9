package store

import (
	"context"
	"fmt"
	"strings"

	"storygraph/internal/codec"
	"storygraph/internal/story"
)

const tagsKey = "Tags"

// Save encodes p and writes it under name together with its entity rows.
func Save(ctx context.Context, s Store, name string, p *story.Plot) (*PlotSummary, error) {
	doc, err := codec.EncodePlot(p)
	if err != nil {
		return nil, fmt.Errorf("saving plot %s: %w", name, err)
	}
	input := PlotInput{
		Name:     strings.TrimSpace(name),
		Document: doc,
		Clock:    p.Clock(),
		Entities: Summarize(p),
	}
	summary, err := s.SavePlot(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("saving plot %s: %w", name, err)
	}
	return summary, nil
}

// Load reads and decodes the plot stored under name.
func Load(ctx context.Context, s Store, name string, dec codec.Decoder) (*story.Plot, error) {
	rec, err := s.LoadPlot(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("loading plot %s: %w", name, err)
	}
	p, err := dec.DecodePlot(rec.Document)
	if err != nil {
		return nil, fmt.Errorf("loading plot %s: %w", name, err)
	}
	return p, nil
}

// Summarize flattens the plot members into rows, in plot order.
func Summarize(p *story.Plot) []EntityInput {
	var rows []EntityInput
	_ = p.Snapshot(func(r *story.Registry, entities []story.Handle, _ int) error {
		rows = make([]EntityInput, 0, len(entities))
		for i, h := range entities {
			e, ok := r.Get(h)
			if !ok {
				continue
			}
			rows = append(rows, EntityInput{
				Position:    i,
				Kind:        e.Kind.String(),
				Name:        e.Name,
				Description: e.Description,
				Sequence:    e.Sequence,
				Tags:        tagsOf(e),
				Partners:    len(r.Partners(h)),
			})
		}
		return nil
	})
	return rows
}

func tagsOf(e *story.Entity) []string {
	tags := []string{}
	v, ok := e.Attr(tagsKey)
	if !ok || v.Shape != story.ShapeScalarList {
		return tags
	}
	for _, s := range v.Scalars {
		if !s.IsBlank() {
			tags = append(tags, s.String())
		}
	}
	return tags
}

func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
