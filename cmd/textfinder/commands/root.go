// Package commands defines all Cobra CLI commands for the textfinder binary.
package commands

import (
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/shahzaibkhangakhar/Textfinder/internal/audit"
	"github.com/shahzaibkhangakhar/Textfinder/internal/config"
	"github.com/shahzaibkhangakhar/Textfinder/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "textfinder",
		Short: "Textfinder — question answering over your own documents",
		Long: `Textfinder answers natural-language questions over a private document
corpus. Documents are chunked, embedded, and indexed for nearest-neighbor
search; at query time the most relevant passages are retrieved and handed to
a text-generation model that answers strictly from that context.

Model providers are selected via the MODEL_PROVIDER and EMBEDDING_PROVIDER
environment variables or a YAML config file (textfinder.yaml).
See 'textfinder --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// .env is a development convenience; absence is fine.
			_ = godotenv.Load()

			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Rebuild the logger now that the config may have set
			// LOG_LEVEL / LOG_FORMAT.
			log = logging.New()
			slog.SetDefault(log)

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ./textfinder.yaml)")

	root.AddCommand(
		NewIngestCmd(),
		NewAskCmd(),
		NewSearchCmd(),
		NewServeCmd(),
		NewLogsCmd(),
		NewVersionCmd(),
	)

	return root
}
