package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ragforge/ragforge/internal/chunker"
)

func newProcessCmd() *cobra.Command {
	var (
		projectID string
		chunkSize int
		doReset   bool
	)

	cmd := &cobra.Command{
		Use:   "process [files...]",
		Short: "Split text files into chunks and store them for a project",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProcess(cmd.Context(), projectID, args, chunkSize, doReset)
		},
	}

	cmd.Flags().StringVarP(&projectID, "project", "p", "", "project id (required)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "target chunk size in bytes (0 = configured default)")
	cmd.Flags().BoolVar(&doReset, "reset", false, "delete the project's existing chunks first")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runProcess(ctx context.Context, projectID string, files []string, chunkSize int, doReset bool) error {
	a, logger, err := setupApp(ctx, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(context.Background()) }()

	if _, err := a.Projects.GetOrCreate(ctx, projectID); err != nil {
		return err
	}

	docs := make([]chunker.Document, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", file, err)
		}
		docs = append(docs, chunker.Document{
			Text:     string(data),
			Metadata: map[string]string{"source": file},
		})
	}

	if chunkSize <= 0 {
		chunkSize = a.Config.ChunkSize
	}

	result, err := a.Pipeline.Process(ctx, projectID, docs, chunkSize, doReset)
	if err != nil {
		return err
	}

	logger.Info("processing complete",
		"project", projectID, "files", len(files),
		"chunks", result.Chunks, "deleted", result.Deleted)
	fmt.Printf("Stored %d chunks for project %s\n", result.Chunks, projectID)
	return nil
}
