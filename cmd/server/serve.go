package main

import (
	"context"
	"fmt"

	"github.com/phrazzld/docgen/internal/platform/logger"
	"github.com/spf13/cobra"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the generation workers",
		Long: `Run the HTTP API and the generation workers until interrupted.

Unfinished generation tasks left by a previous run are recovered on start.

Examples:
  # Run against Postgres configured via DOCGEN_DATABASE_URL
  docgen serve

  # Run fully in memory, reading template sources from ./templates
  DOCGEN_AUTHORING_SOURCE_DIR=./templates docgen serve --store memory`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
}

func runServe(ctx context.Context, opts *rootOptions) error {
	cfg, err := opts.load()
	if err != nil {
		return err
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}
	log.Info("server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"store", cfg.Database.Store,
		"nats_enabled", cfg.Events.NATSURL != "",
		"google_docs_enabled", cfg.Authoring.CredentialsFile != "")

	app, err := newApplication(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.cleanup()

	return app.Run(ctx)
}
