package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ragforge/ragforge/internal/nlp"
)

func newAskCmd() *cobra.Command {
	var (
		projectID  string
		limit      int
		showPrompt bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Answer a question grounded in a project's indexed documents",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd.Context(), projectID, strings.Join(args, " "), limit, showPrompt)
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id (required)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "documents to retrieve (0 = configured default)")
	cmd.Flags().BoolVar(&showPrompt, "show-prompt", false, "print the assembled prompt before the answer")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runAsk(ctx context.Context, projectID, question string, limit int, showPrompt bool) error {
	a, _, err := setupApp(ctx, true)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	result, err := a.Pipeline.Answer(ctx, projectID, question, limit)
	if err != nil {
		if errors.Is(err, nlp.ErrNoResults) {
			fmt.Println("No relevant documents found; nothing to answer from.")
			return nil
		}
		return err
	}

	if showPrompt {
		fmt.Println("--- prompt ---")
		fmt.Println(result.FullPrompt)
		fmt.Println("--- answer ---")
	}
	fmt.Println(result.Answer)
	return nil
}
