package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ragforge/ragforge/db"
	"github.com/ragforge/ragforge/internal/config"
)

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run pending database migrations (pgvector backend)",
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			if cfg.VectorBackend != config.BackendPGVector {
				return fmt.Errorf("migrations only apply to the %s backend (configured: %s)",
					config.BackendPGVector, cfg.VectorBackend)
			}
			return db.Migrate(cfg.PostgresURL())
		},
	}
}
