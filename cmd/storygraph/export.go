package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storygraph/internal/codec"
	"storygraph/internal/snapshot"
)

func exportCmd() *cobra.Command {
	var pretty bool
	var toSnapshot bool
	var output string
	cmd := &cobra.Command{
		Use:   "export <plot>",
		Short: "Serialize a plot to JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(args[0], pretty, toSnapshot, output)
		},
	}
	cmd.Flags().BoolVar(&pretty, "pretty", false, "Indent the document")
	cmd.Flags().BoolVar(&toSnapshot, "snapshot", false, "Write the document to the snapshot store")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the document to a file instead of stdout")
	return cmd
}

func runExport(name string, pretty, toSnapshot bool, output string) error {
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

	rec, err := db.LoadPlot(ctx, name)
	if err != nil {
		return err
	}
	doc := rec.Document
	if pretty {
		doc = codec.Indent(doc)
	}

	switch {
	case toSnapshot:
		snaps, err := snapshot.Open(ctx, proj.cfg.Snapshots)
		if err != nil {
			return err
		}
		info, err := snapshot.Export(ctx, snaps, rec.Name, doc, proj.cfg.Snapshots.Compress)
		if err != nil {
			return err
		}
		proj.logger.Info("exported snapshot", "plot", rec.Name, "driver", snaps.Driver(), "key", info.Key, "bytes", info.Size)
		fmt.Fprintln(os.Stdout, info.Key)
	case output != "":
		if err := os.WriteFile(output, doc, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
	default:
		os.Stdout.Write(doc)
		fmt.Fprintln(os.Stdout)
	}
	return nil
}
