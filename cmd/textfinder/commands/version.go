package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shahzaibkhangakhar/Textfinder/internal/version"
)

// NewVersionCmd constructs the `textfinder version` subcommand.
// It prints the binary version, git commit, and build date injected at
// build time via -ldflags. Falls back to "dev"/"unknown" for local builds.
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the textfinder version, git commit, and build date",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("textfinder %s (commit: %s, built: %s)\n",
				version.Version, version.Commit, version.BuildDate)
		},
	}
}
