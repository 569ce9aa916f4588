package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	leadagent "github.com/lihan0705/lead-agent"
	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/evaluation/gaia"
)

// CmdEval creates the eval command group.
func CmdEval() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Run benchmark evaluations",
	}
	cmd.AddCommand(evalGAIACmd())
	return cmd
}

func evalGAIACmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gaia",
		Short: "Evaluate the agent against the GAIA benchmark",
		Long: `Evaluate runs every selected question through the agent and scores the
replies with quasi-exact matching against the ground truth.

The agent is rooted in the dataset split directory so tools can open the
attachment files, and runs with approval and memory injection disabled.
Download the dataset first with "superagent download gaia".
`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().String("model", "", `model kind, "qwen" or "gemini" (default from config)`)
	cmd.Flags().Int("level", 0, "only questions of this difficulty level (0 = all)")
	cmd.Flags().Int("max-samples", 0, "cap the number of questions (0 = all)")
	cmd.Flags().String("split", gaia.DefaultSplit, "dataset split to evaluate")
	cmd.Flags().String("data-dir", "", "dataset snapshot directory (default from config)")
	cmd.Flags().Bool("report", true, "print the per-question result table")
	cmd.Flags().Bool("export", false, "write a JSON report")
	cmd.Flags().String("output-dir", ".", "directory for exported reports")
	return NewCommand(cmd, runEvalGAIA)
}

func runEvalGAIA(ctx *Context, _ []string) error {
	flags := ctx.Command.Flags()
	modelKind, _ := flags.GetString("model")
	level, _ := flags.GetInt("level")
	maxSamples, _ := flags.GetInt("max-samples")
	split, _ := flags.GetString("split")
	dataDir, _ := flags.GetString("data-dir")
	printReport, _ := flags.GetBool("report")
	export, _ := flags.GetBool("export")
	outputDir, _ := flags.GetString("output-dir")

	if dataDir == "" {
		dataDir = ctx.Config.GAIA.DataDir
	}

	questions, err := gaia.LoadDataset(dataDir, func(o *gaia.LoadOptions) {
		o.Split = split
		o.Level = level
		o.MaxSamples = maxSamples
	})
	if err != nil {
		return err
	}
	if len(questions) == 0 {
		return fmt.Errorf("no questions in %s match split %q level %d", dataDir, split, level)
	}

	m, err := buildModel(ctx.Config, modelKind)
	if err != nil {
		return err
	}

	// Benchmark runs are unattended and must not pick up local agent.md
	// content, so approval and memory injection are off regardless of the
	// config. The working directory is the split directory, putting the
	// attachment files within reach of the file tools and the shell.
	agent, err := leadagent.New(m, func(o *leadagent.Options) {
		o.WorkingDir = gaia.SplitDir(dataDir, split)
		o.SystemPrompt = gaia.SystemPrompt
		o.AutoApprove = true
		o.EnableMemory = false
		o.Logger = ctx.Logger
		if ctx.Config.Agent.MaxModelCalls > 0 {
			o.MaxModelCalls = ctx.Config.Agent.MaxModelCalls
		}
	})
	if err != nil {
		return err
	}

	runner := gaia.RunnerFunc(func(runCtx context.Context, q gaia.Question) (string, error) {
		text := q.Question
		if q.FileName != "" {
			text += "\n\nAttached file: " + q.FileName
		}

		final, err := agent.InvokeSync(runCtx, core.NewID(), text)
		if err != nil {
			return "", err
		}
		if final.Content == nil {
			return "", nil
		}
		return final.Content.Text(), nil
	})

	report, evalErr := gaia.Evaluate(ctx, runner, questions, func(o *gaia.EvaluateOptions) {
		o.Logger = ctx.Logger
	})

	out := ctx.Command.OutOrStdout()
	if len(report.Results) > 0 {
		if printReport {
			report.Render(out)
		}
		if export {
			path, err := report.WriteJSON(outputDir)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Report written to %s\n", path)
		}
	}

	// A cancelled sweep still rendered its partial results above.
	return evalErr
}
