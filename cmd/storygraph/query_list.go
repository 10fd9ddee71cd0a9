package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func queryListCmd() *cobra.Command {
	var plot string
	var kind string
	var tag string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List entities in the database",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueryList(plot, kind, tag)
		},
	}
	cmd.Flags().StringVar(&plot, "plot", "", "Plot to filter")
	cmd.Flags().StringVar(&kind, "kind", "", "Entity kind to filter")
	cmd.Flags().StringVar(&tag, "tag", "", "Tag to filter")
	return cmd
}

func runQueryList(plot, kind, tag string) error {
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

	entities, err := db.ListEntities(ctx, plot, kind, tag)
	if err != nil {
		return err
	}
	if len(entities) == 0 {
		fmt.Fprintln(os.Stdout, "No entities found.")
		return nil
	}

	for _, entity := range entities {
		line := fmt.Sprintf("%s (%s) [%s]", entity.Name, entity.Kind, entity.Plot)
		if len(entity.Tags) > 0 {
			line += " #" + strings.Join(entity.Tags, " #")
		}
		fmt.Fprintln(os.Stdout, line)
	}
	return nil
}
