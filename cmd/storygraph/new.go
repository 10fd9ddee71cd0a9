package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"storygraph/internal/store"
	"storygraph/internal/story"
)

func newCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "new <plot>",
		Short: "Create an empty plot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNew(args[0])
		},
	}
}

func runNew(name string) error {
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

	_, err = db.LoadPlot(ctx, name)
	switch {
	case err == nil:
		return fmt.Errorf("plot %q already exists", name)
	case !errors.Is(err, store.ErrPlotNotFound):
		return err
	}

	summary, err := store.Save(ctx, db, name, story.NewPlot())
	if err != nil {
		return err
	}
	proj.logger.Info("created plot", "plot", summary.Name, "id", summary.ID)
	fmt.Fprintf(os.Stdout, "Created plot %s (%s).\n", summary.Name, summary.ID)
	return nil
}
