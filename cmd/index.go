package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newIndexCmd() *cobra.Command {
	var (
		projectID string
		doReset   bool
	)

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Embed a project's chunks and push them into its vector collection",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), projectID, doReset)
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id (required)")
	cmd.Flags().BoolVar(&doReset, "reset", false, "drop the collection before indexing")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runIndex(ctx context.Context, projectID string, doReset bool) error {
	a, logger, err := setupApp(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	result, err := a.Pipeline.IndexProject(ctx, projectID, doReset)
	if err != nil {
		// Committed pages survive a mid-run failure; say so.
		if result != nil && result.Inserted > 0 {
			logger.Warn("indexing failed after partial progress",
				"project", projectID, "pages", result.Pages, "inserted", result.Inserted)
		}
		return err
	}

	fmt.Printf("Indexed %d records over %d pages into %s", result.Inserted, result.Pages, result.Collection)
	if result.IndexCreated {
		fmt.Print(" (vector index built)")
	}
	fmt.Println()
	return nil
}
