package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func queryPlotsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "plots",
		Short: "List stored plots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryPlots()
		},
	}
}

func runQueryPlots() error {
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

	plots, err := db.ListPlots(ctx)
	if err != nil {
		return err
	}
	if len(plots) == 0 {
		fmt.Fprintln(os.Stdout, "No plots found.")
		return nil
	}

	for _, plot := range plots {
		fmt.Fprintf(os.Stdout, "%s entities=%d clock=%d updated=%s\n", plot.Name, plot.EntityCount, plot.Clock, plot.UpdatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}
