package main

import (
	"fmt"
	"slices"

	"github.com/phrazzld/docgen/internal/platform/logger"
	"github.com/phrazzld/docgen/internal/platform/postgres"
	"github.com/spf13/cobra"
)

var migrateCommands = []string{"up", "down", "status", "version", "reset", "redo"}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [up|down|status|version|reset|redo]",
		Short: "Run database migrations",
		Long: `Run the embedded goose migrations against DOCGEN_DATABASE_URL.

Examples:
  # Apply all pending migrations
  docgen migrate up

  # Show applied and pending migrations
  docgen migrate status`,
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: migrateCommands,
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) == 1 {
				command = args[0]
			}
			if !slices.Contains(migrateCommands, command) {
				return fmt.Errorf("unknown migrate command %q", command)
			}

			opts.store = "postgres"
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			log, err := logger.Setup(cfg.Server)
			if err != nil {
				return fmt.Errorf("failed to set up logger: %w", err)
			}

			db, err := openDatabase(cmd.Context(), cfg.Database.URL, log)
			if err != nil {
				return err
			}
			defer func() {
				if err := db.Close(); err != nil {
					log.Error("failed to close database connection", "error", err)
				}
			}()

			log.Info("running migrations", "command", command)
			return postgres.Migrate(cmd.Context(), db, command, log)
		},
	}
}
