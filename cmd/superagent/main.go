package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/lihan0705/lead-agent/internal/build"
	"github.com/lihan0705/lead-agent/internal/cmd"
)

var rootCmd = &cobra.Command{
	Use:   build.Slug,
	Short: "superagent is a conversational coding agent for the terminal",
	Long: `Superagent runs an LLM-backed agent with filesystem tools, shell access,
hierarchical agent.md memory and optional subagent delegation.

Configuration comes from $XDG_CONFIG_HOME/superagent/config.yaml,
SUPERAGENT_* environment variables and command-line flags, in rising
precedence.
`,
	SilenceUsage: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringP("config", "c", "",
		"config file (default is $XDG_CONFIG_HOME/superagent/config.yaml)")

	rootCmd.AddCommand(cmd.CmdRun())
	rootCmd.AddCommand(cmd.CmdChat())
	rootCmd.AddCommand(cmd.CmdEval())
	rootCmd.AddCommand(cmd.CmdDownload())
	rootCmd.AddCommand(cmd.CmdVersion())
}
