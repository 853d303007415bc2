package main

import (
	"fmt"

	"github.com/phrazzld/docgen/internal/service/auth"
	"github.com/spf13/cobra"
)

func newTokenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "token <requester-id>",
		Short: "Issue an API token for a requester",
		Long: `Issue a signed API token whose subject is the requester id recorded on
every generation task the token submits.

Examples:
  docgen token escritorio-centro`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			// Tokens need only the auth section; skip the database requirement.
			if opts.store == "" {
				opts.store = "memory"
			}
			cfg, err := opts.load()
			if err != nil {
				return err
			}

			svc, err := auth.NewJWTService(cfg.Auth)
			if err != nil {
				return fmt.Errorf("failed to initialize JWT service: %w", err)
			}
			token, err := svc.GenerateToken(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("failed to generate token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
}
