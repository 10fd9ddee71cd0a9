package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storygraph/internal/codec"
	"storygraph/internal/ingest"
	"storygraph/internal/store"
	"storygraph/internal/story"
)

func importCmd() *cobra.Command {
	var paths []string
	cmd := &cobra.Command{
		Use:   "import <plot>",
		Short: "Import markdown source files into a plot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(args[0], paths)
		},
	}
	cmd.Flags().StringArrayVar(&paths, "path", nil, "Source directory (repeatable, overrides import.paths)")
	return cmd
}

func runImport(name string, paths []string) error {
	ctx := context.Background()

	proj, err := loadProject()
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		paths = proj.cfg.Import.Paths
	}
	if len(paths) == 0 {
		return fmt.Errorf("no import paths configured")
	}

	db, err := openStore(ctx, proj.cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	p, err := store.Load(ctx, db, name, codec.Decoder{Hints: proj.schema.AttributeShape})
	if errors.Is(err, store.ErrPlotNotFound) {
		p, err = story.NewPlot(), nil
	}
	if err != nil {
		return err
	}

	result, err := ingest.Run(ctx, p, ingest.Options{
		Paths:   paths,
		Exclude: proj.cfg.Import.Exclude,
		Schema:  proj.schema,
		Logger:  proj.logger,
	})
	if err != nil {
		return err
	}

	summary, err := store.Save(ctx, db, name, p)
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, "Import complete.")
	fmt.Fprintf(os.Stdout, "  Entities created: %d\n", result.Created)
	fmt.Fprintf(os.Stdout, "  Entities merged:  %d\n", result.Merged)
	fmt.Fprintf(os.Stdout, "  Bindings:         %d\n", result.Bound)
	fmt.Fprintf(os.Stdout, "  Placeholders:     %d\n", len(result.Placeholders))
	fmt.Fprintf(os.Stdout, "  Files skipped:    %d\n", result.FilesSkipped)
	fmt.Fprintf(os.Stdout, "  Plot size:        %d\n", summary.EntityCount)

	if len(result.Errors) > 0 {
		fmt.Fprintf(os.Stdout, "\nErrors (%d):\n", len(result.Errors))
		for _, item := range result.Errors {
			fmt.Fprintf(os.Stdout, "  - %v\n", item)
		}
		return fmt.Errorf("import completed with errors")
	}

	return nil
}
