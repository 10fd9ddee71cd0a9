package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func querySearchCmd() *cobra.Command {
	var plot string
	var kind string
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search entities using the full-text index",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuerySearch(strings.Join(args, " "), plot, kind)
		},
	}
	cmd.Flags().StringVar(&plot, "plot", "", "Plot to filter")
	cmd.Flags().StringVar(&kind, "kind", "", "Entity kind to filter")
	return cmd
}

func runQuerySearch(query, plot, kind string) error {
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

	results, err := db.Search(ctx, plot, query, kind)
	if err != nil {
		return err
	}
	if len(results) == 0 {
		fmt.Fprintln(os.Stdout, "No matches found.")
		return nil
	}

	for _, result := range results {
		fmt.Fprintf(os.Stdout, "%s (%s) [%s] score=%.2f\n", result.Name, result.Kind, result.Plot, result.Score)
		if result.Snippet != "" {
			fmt.Fprintf(os.Stdout, "  %s\n", result.Snippet)
		}
	}
	return nil
}
