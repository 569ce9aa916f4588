package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lihan0705/lead-agent/evaluation/gaia"
)

// CmdDownload creates the download command group.
func CmdDownload() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Fetch benchmark datasets",
	}
	cmd.AddCommand(downloadGAIACmd())
	return cmd
}

func downloadGAIACmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gaia",
		Short: "Download the GAIA dataset snapshot from Hugging Face",
		Long: `Download fetches metadata.jsonl and the attachment files for one split.

GAIA is a gated dataset: accept its terms on huggingface.co and provide an
access token via gaia.hf_token in the config, SUPERAGENT_GAIA_HF_TOKEN or
HF_TOKEN. Files already present with the expected size are skipped.
`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().String("data-dir", "", "target directory (default from config)")
	cmd.Flags().String("split", gaia.DefaultSplit, "dataset split to download")
	return NewCommand(cmd, runDownloadGAIA)
}

func runDownloadGAIA(ctx *Context, _ []string) error {
	dataDir, _ := ctx.Command.Flags().GetString("data-dir")
	split, _ := ctx.Command.Flags().GetString("split")

	if dataDir == "" {
		dataDir = ctx.Config.GAIA.DataDir
	}
	token := ctx.Config.GAIA.HFToken
	if token == "" {
		token = os.Getenv("HF_TOKEN")
	}

	if err := gaia.DownloadDataset(ctx, dataDir, func(o *gaia.DownloadOptions) {
		o.Split = split
		o.Token = token
		o.Logger = ctx.Logger
	}); err != nil {
		return err
	}

	fmt.Fprintf(ctx.Command.OutOrStdout(), "Dataset ready under %s\n", dataDir)
	return nil
}
