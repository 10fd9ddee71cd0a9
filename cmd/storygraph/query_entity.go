package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"storygraph/internal/codec"
	"storygraph/internal/store"
	"storygraph/internal/story"
)

func queryEntityCmd() *cobra.Command {
	var kind string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "entity <plot> <name>",
		Short: "Display an entity and its attributes",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryEntity(args[0], args[1], kind, asJSON)
		},
	}
	cmd.Flags().StringVar(&kind, "kind", "", "Entity kind to disambiguate")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the entity document with its reachable graph")
	return cmd
}

func runQueryEntity(plot, name, kind string, asJSON bool) error {
	ctx := context.Background()

	proj, err := loadProject()
	if err != nil {
		return err
	}

	db, err := openStore(ctx, proj.cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	p, err := store.Load(ctx, db, plot, codec.Decoder{Hints: proj.schema.AttributeShape})
	if err != nil {
		return err
	}

	h, ok, err := findEntity(p, name, kind)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintf(os.Stdout, "No entity found for %q.\n", name)
		return nil
	}

	return p.View(func(r *story.Registry) error {
		if asJSON {
			doc, err := codec.EncodeEntity(r, h)
			if err != nil {
				return err
			}
			os.Stdout.Write(codec.Indent(doc))
			return nil
		}
		printEntity(os.Stdout, r, r.MustGet(h))
		return nil
	})
}

func findEntity(p *story.Plot, name, kind string) (story.Handle, bool, error) {
	kinds := story.Kinds()
	if kind != "" {
		k, err := story.ParseKind(kind)
		if err != nil {
			return story.NoHandle, false, err
		}
		kinds = []story.Kind{k}
	}
	for _, k := range kinds {
		if h, ok := p.Find(k, name); ok {
			return h, true, nil
		}
	}
	return story.NoHandle, false, nil
}

func printEntity(out io.Writer, r *story.Registry, e *story.Entity) {
	fmt.Fprintf(out, "Name: %s\n", e.Name)
	fmt.Fprintf(out, "Kind: %s\n", e.Kind)
	if e.Description != "" {
		fmt.Fprintf(out, "Description: %s\n", e.Description)
	}
	if e.Sequence != story.Unplaced {
		fmt.Fprintf(out, "Sequence: %d\n", e.Sequence)
	}

	if e.Attributes.Len() == 0 {
		return
	}
	fmt.Fprintln(out, "Attributes:")
	e.Attributes.Each(func(key string, v *story.Value) bool {
		fmt.Fprintf(out, "  %s: %s\n", key, formatValue(r, v))
		return true
	})
}

func formatValue(r *story.Registry, v *story.Value) string {
	name := func(h story.Handle) string {
		if e, ok := r.Get(h); ok {
			return e.Name
		}
		return fmt.Sprintf("#%d", h)
	}

	switch v.Shape {
	case story.ShapeScalarList:
		items := make([]string, 0, len(v.Scalars))
		for _, s := range v.Scalars {
			items = append(items, s.String())
		}
		return joinValues(items)
	case story.ShapeRelationList:
		items := make([]string, 0, len(v.Relations))
		for _, rel := range v.Relations {
			items = append(items, fmt.Sprintf("%s (%g)", name(rel.Character), rel.Weight))
		}
		return joinValues(items)
	case story.ShapeEntityRef:
		if v.Ref == story.NoHandle {
			return "-"
		}
		return name(v.Ref)
	case story.ShapeEntityRefList:
		items := make([]string, 0, len(v.Refs))
		for _, h := range v.Refs {
			items = append(items, name(h))
		}
		return joinValues(items)
	}
	return v.Scalar.String()
}

func joinValues(values []string) string {
	if len(values) == 0 {
		return "-"
	}
	return strings.Join(values, ", ")
}
