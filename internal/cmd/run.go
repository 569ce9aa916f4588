package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	leadagent "github.com/lihan0705/lead-agent"
	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/trace"
)

// CmdRun creates the one-shot run command.
func CmdRun() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [flags] <prompt>",
		Short: "Run a single prompt to completion",
		Long: `Run sends one prompt through the agent loop and streams the reply.

After the run finishes, the full execution flow recorded on the session
(model turns, tool calls, tool output) is printed.

Example:
  superagent run "count the lines of every .go file in this directory"
`,
		Args: cobra.MinimumNArgs(1),
	}
	registerAgentFlags(cmd)
	return NewCommand(cmd, runRun)
}

func runRun(ctx *Context, args []string) error {
	flags := readAgentFlags(ctx.Command)

	agent, err := buildAgent(ctx, flags)
	if err != nil {
		return err
	}

	sessionID := flags.session
	if sessionID == "" {
		sessionID = core.NewID()
	}

	events, errs, err := agent.Invoke(ctx, sessionID, strings.Join(args, " "))
	if err != nil {
		return err
	}

	out := ctx.Command.OutOrStdout()
	if err := leadagent.StreamText(out, events, errs); err != nil {
		return err
	}
	fmt.Fprintln(out)

	sess, err := agent.Session(sessionID)
	if err != nil {
		return fmt.Errorf("load session for execution log: %w", err)
	}
	fmt.Fprintln(out)
	trace.Print(out, sess)
	return nil
}
