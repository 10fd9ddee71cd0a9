package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storygraph/internal/codec"
	"storygraph/internal/snapshot"
	"storygraph/internal/store"
)

func restoreCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "restore <key> <plot>",
		Short: "Load a snapshot into a plot, replacing its contents",
		Long:  "Load a snapshot into a plot. Pass \"latest\" as the key to use the newest snapshot of the plot.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRestore(args[0], args[1])
		},
	}
}

func runRestore(key, name string) error {
	ctx := context.Background()

	proj, err := loadProject()
	if err != nil {
		return err
	}

	snaps, err := snapshot.Open(ctx, proj.cfg.Snapshots)
	if err != nil {
		return err
	}
	if key == "latest" {
		info, err := snapshot.Latest(ctx, snaps, name)
		if err != nil {
			return err
		}
		key = info.Key
	}

	doc, err := snapshot.Import(ctx, snaps, key)
	if err != nil {
		return err
	}

	p, err := codec.Decoder{Hints: proj.schema.AttributeShape}.DecodePlot(doc)
	if err != nil {
		return fmt.Errorf("restoring %s: %w", key, err)
	}

	db, err := openStore(ctx, proj.cfg)
	if err != nil {
		return err
	}
	defer db.Close(ctx)

	summary, err := store.Save(ctx, db, name, p)
	if err != nil {
		return err
	}
	proj.logger.Info("restored snapshot", "key", key, "plot", summary.Name, "entities", summary.EntityCount)
	fmt.Fprintf(os.Stdout, "Restored %s into %s (%d entities).\n", key, summary.Name, summary.EntityCount)
	return nil
}
