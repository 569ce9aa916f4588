// Package cmd implements the superagent command tree: one-shot runs, the
// interactive chat loop, GAIA evaluation and dataset download.
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lihan0705/lead-agent/internal/config"
	"github.com/lihan0705/lead-agent/logging"
)

// Context carries what a command run needs: a caller context wired to
// SIGINT/SIGTERM, the loaded configuration and the CLI logger.
type Context struct {
	context.Context

	Command *cobra.Command
	Config  *config.Config
	Logger  logging.Logger

	stop    context.CancelFunc
	closers []func() error
}

// NewCommand wires a cobra command to a run function that receives a fully
// initialized Context.
func NewCommand(cmd *cobra.Command, runFunc func(ctx *Context, args []string) error) *cobra.Command {
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		ctx, err := NewContext(cmd)
		if err != nil {
			return err
		}
		defer ctx.Close()

		if err := runFunc(ctx, args); err != nil {
			ctx.Logger.Error("command.failed", "command", cmd.Name(), "error", err)
			return err
		}
		return nil
	}
	return cmd
}

// NewContext loads the configuration, builds the logger and installs signal
// handling. Close must be called when the command finishes.
func NewContext(cmd *cobra.Command) (*Context, error) {
	var loaderOpts []config.Option
	if cfgPath, _ := cmd.Flags().GetString("config"); cfgPath != "" {
		loaderOpts = append(loaderOpts, config.WithConfigFile(cfgPath))
	}

	cfg, err := config.Load(loaderOpts...)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)

	c := &Context{Context: ctx, Command: cmd, Config: cfg, stop: stop}
	c.Logger = c.newLogger()
	return c, nil
}

// newLogger builds the dual file+console logger, falling back to console
// only when the log directory cannot be used.
func (c *Context) newLogger() logging.Logger {
	level := logging.ParseLevel(c.Config.Log.Level)

	if dir := c.Config.Log.Dir; dir != "" {
		logger, closeFn, err := logging.NewFileConsoleLogger(level, c.Config.Log.Format, dir)
		if err == nil {
			c.closers = append(c.closers, closeFn)
			return logger
		}
		fmt.Fprintf(os.Stderr, "warning: %v, logging to console only\n", err)
	}

	return logging.NewSlogLogger(level, c.Config.Log.Format, false)
}

// OnClose registers a cleanup function to run when the command finishes.
func (c *Context) OnClose(fn func() error) {
	c.closers = append(c.closers, fn)
}

// Close releases registered resources in reverse order and restores the
// default signal handlers.
func (c *Context) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			fmt.Fprintf(os.Stderr, "warning: cleanup failed: %v\n", err)
		}
	}
	c.closers = nil
	c.stop()
}
