package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ragforge/ragforge/internal/nlp"
)

func newSearchCmd() *cobra.Command {
	var (
		projectID string
		limit     int
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search a project's collection by semantic similarity",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSearch(cmd.Context(), projectID, strings.Join(args, " "), limit)
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id (required)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum results (0 = configured default)")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runSearch(ctx context.Context, projectID, query string, limit int) error {
	a, _, err := setupApp(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	results, err := a.Pipeline.Search(ctx, projectID, query, limit)
	if err != nil {
		if errors.Is(err, nlp.ErrNoResults) {
			fmt.Println("No relevant documents found.")
			return nil
		}
		return err
	}

	for i, doc := range results {
		fmt.Printf("%2d. score=%.4f\n%s\n\n", i+1, doc.Score, doc.Text)
	}
	return nil
}
