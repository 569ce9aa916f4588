package cmd

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	leadagent "github.com/lihan0705/lead-agent"
	"github.com/lihan0705/lead-agent/core"
)

// CmdChat creates the interactive chat command.
func CmdChat() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the agent in an interactive session",
		Long: `Chat starts a read-eval-print loop against a single session.

With the sqlite session store configured, --session resumes an earlier
conversation with its full history. Type "exit" or "quit" to leave.
`,
		Args: cobra.NoArgs,
	}
	registerAgentFlags(cmd)
	return NewCommand(cmd, runChat)
}

func runChat(ctx *Context, _ []string) error {
	flags := readAgentFlags(ctx.Command)

	agent, err := buildAgent(ctx, flags)
	if err != nil {
		return err
	}

	sessionID := flags.session
	if sessionID == "" {
		sessionID = core.NewID()
	}

	in := ctx.Command.InOrStdin()
	out := ctx.Command.OutOrStdout()

	fmt.Fprintf(out, "Session %s. Type 'exit' or 'quit' to leave.\n", sessionID)

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}

		events, errs, err := agent.Invoke(ctx, sessionID, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		if err := leadagent.StreamText(out, events, errs); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		fmt.Fprintln(out)
	}

	fmt.Fprintln(out, "Bye.")
	return scanner.Err()
}
