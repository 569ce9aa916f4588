package approval

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/lihan0705/lead-agent/core"
)

// Request carries everything a prompter needs to ask for a decision.
type Request struct {
	// Call is the pending tool call.
	Call core.FunctionCall

	// Description is the rendered summary from the tool's DescribeFunc.
	Description string

	// AllowedDecisions lists the decisions the gate will accept.
	AllowedDecisions []Decision
}

// Prompter asks a human (or a policy) to decide on a gated tool call.
type Prompter interface {
	Prompt(ctx context.Context, req Request) (Decision, error)
}

// Func adapts a plain function to the Prompter interface.
type Func func(ctx context.Context, req Request) (Decision, error)

// Prompt implements the Prompter interface.
func (f Func) Prompt(ctx context.Context, req Request) (Decision, error) {
	return f(ctx, req)
}

// Compile-time interface checks.
var (
	_ Prompter = (Func)(nil)
	_ Prompter = (*AutoApprove)(nil)
	_ Prompter = (*ConsolePrompter)(nil)
)

// AutoApprove approves every request without asking. Use for unattended runs
// such as evaluations.
type AutoApprove struct{}

// Prompt implements the Prompter interface.
func (AutoApprove) Prompt(_ context.Context, _ Request) (Decision, error) {
	return DecisionApprove, nil
}

// ConsolePrompterOptions configure the terminal prompter.
type ConsolePrompterOptions struct {
	// In is the stream answers are read from. Defaults to os.Stdin.
	In io.Reader

	// Out is the stream the prompt is written to. Defaults to os.Stdout.
	Out io.Writer
}

// ConsolePrompter asks for approval on a terminal with a y/N question.
// Anything other than "y"/"yes" rejects.
type ConsolePrompter struct {
	in  *bufio.Reader
	out io.Writer
}

// NewConsolePrompter creates a terminal prompter.
func NewConsolePrompter(optFns ...func(o *ConsolePrompterOptions)) *ConsolePrompter {
	opts := ConsolePrompterOptions{
		In:  os.Stdin,
		Out: os.Stdout,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &ConsolePrompter{
		in:  bufio.NewReader(opts.In),
		out: opts.Out,
	}
}

// Prompt implements the Prompter interface. The read runs in a goroutine so
// context cancellation interrupts the wait.
func (p *ConsolePrompter) Prompt(ctx context.Context, req Request) (Decision, error) {
	fmt.Fprintf(p.out, "\nTool approval required: %s\n\n%s\n\n", req.Call.Name, req.Description)
	fmt.Fprint(p.out, "Approve? [y/N]: ")

	type answer struct {
		line string
		err  error
	}

	ch := make(chan answer, 1)
	go func() {
		line, err := p.in.ReadString('\n')
		ch <- answer{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		return DecisionReject, ctx.Err()
	case a := <-ch:
		if a.err != nil && a.line == "" {
			return DecisionReject, fmt.Errorf("read approval answer: %w", a.err)
		}
		switch strings.ToLower(strings.TrimSpace(a.line)) {
		case "y", "yes":
			return DecisionApprove, nil
		default:
			return DecisionReject, nil
		}
	}
}
