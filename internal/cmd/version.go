package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lihan0705/lead-agent/internal/build"
)

// CmdVersion creates the version command.
func CmdVersion() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (commit %s)\n", build.Slug, build.Version, build.Commit)
		},
	}
}
