package main

import (
	"fmt"

	"github.com/phrazzld/docgen/internal/config"
	"github.com/spf13/cobra"
)

// version is set at build time.
var version = "dev"

// rootOptions are the flags shared by every command.
type rootOptions struct {
	configFile string
	envFiles   []string
	store      string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "docgen",
		Short: "Legal document generation server",
		Long: `docgen fills published legal document templates with submitted form data,
resolves the client the document is for and stores the generated artifact.

Without a subcommand it runs the HTTP server.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), opts)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.configFile, "config", "", "config file (default ./config.yaml when present)")
	flags.StringSliceVar(&opts.envFiles, "env-file", []string{".env"}, "dotenv files loaded before reading the environment")
	flags.StringVar(&opts.store, "store", "", "persistence backend, postgres or memory (overrides configuration)")

	cmd.AddCommand(newServeCmd(opts), newMigrateCmd(opts), newTokenCmd(opts))
	return cmd
}

// load reads configuration, applying flag overrides.
func (o *rootOptions) load() (*config.Config, error) {
	overrides := map[string]any{}
	if o.store != "" {
		overrides["database.store"] = o.store
	}

	cfg, err := config.LoadWithOptions(config.Options{
		ConfigFile: o.configFile,
		EnvFiles:   o.envFiles,
		Overrides:  overrides,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}
