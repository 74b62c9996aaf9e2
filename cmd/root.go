// Package cmd contains the ragforge CLI. Each subcommand is defined in its
// own file and registered on the root command here.
package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ragforge/ragforge/internal/app"
	"github.com/ragforge/ragforge/internal/config"
	"github.com/ragforge/ragforge/internal/log"
)

var (
	flagVerbose bool
	flagJSONLog bool
)

var rootCmd = &cobra.Command{
	Use:   "ragforge",
	Short: "ragforge - retrieval pipeline over pluggable vector backends",
	Long: `ragforge chunks documents, indexes them into a vector store, and answers
questions grounded in the retrieved context.

The vector backend is configurable: an embedded file-based engine for
single-process deployments, or PostgreSQL with pgvector for shared ones.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&flagJSONLog, "json-log", false, "log in JSON format")

	rootCmd.AddCommand(
		newServeCmd(),
		newProcessCmd(),
		newIndexCmd(),
		newSearchCmd(),
		newAskCmd(),
		newMigrateCmd(),
		newVersionCmd(),
	)
}

func newLogger() log.Logger {
	level := slog.LevelInfo
	if flagVerbose {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: flagJSONLog})
}

// setupApp loads configuration and wires the application. Commands that only
// touch storage pass withProvider=false and run without API credentials.
func setupApp(ctx context.Context, withProvider bool) (*app.App, log.Logger, error) {
	logger := newLogger()
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	a, err := app.New(ctx, cfg, logger, app.Options{WithProvider: withProvider})
	if err != nil {
		return nil, nil, err
	}
	return a, logger, nil
}
