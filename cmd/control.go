package cmd

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

// stopCmd represents the stop command
var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the acpipe daemon",
	Long: `Stop the acpipe daemon gracefully.

This command sends SIGTERM to the process recorded in the PID file and
waits for it to exit. The daemon closes the report channel, flushes its
sinks and removes the PID file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := controller()
		if err != nil {
			return err
		}
		return runStop(cmd.Context(), ctrl, cmd.OutOrStdout())
	},
}

var reloadCmd = &cobra.Command{
	Use:   "reload",
	Short: "Reload configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := controller()
		if err != nil {
			return err
		}
		return runReload(cmd.Context(), ctrl, cmd.OutOrStdout())
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctrl, err := controller()
		if err != nil {
			return err
		}
		return runStatus(ctrl, cmd.OutOrStdout())
	},
}

var stopTimeout time.Duration

func init() {
	stopCmd.Flags().DurationVar(&stopTimeout, "timeout", 10*time.Second, "how long to wait for the daemon to exit")
}

func controller() (DaemonController, error) {
	path, err := resolvePIDFile()
	if err != nil {
		return nil, err
	}
	return newController(path), nil
}

func runStop(ctx context.Context, ctrl DaemonController, out io.Writer) error {
	if stopTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, stopTimeout)
		defer cancel()
	}
	if err := ctrl.Stop(ctx); err != nil {
		return fmt.Errorf("failed to stop daemon: %w", err)
	}
	fmt.Fprintln(out, "✓ Daemon stopped")
	return nil
}

func runReload(ctx context.Context, ctrl DaemonController, out io.Writer) error {
	if err := ctrl.Reload(ctx); err != nil {
		return fmt.Errorf("failed to reload: %w", err)
	}
	fmt.Fprintln(out, "✓ Configuration reload requested")
	return nil
}

func runStatus(ctrl DaemonController, out io.Writer) error {
	pid, err := ctrl.PID()
	if err != nil {
		return err
	}
	if !ctrl.Running() {
		return fmt.Errorf("daemon (pid %d) is not running, stale PID file", pid)
	}
	fmt.Fprintf(out, "acpipe daemon is running (pid %d)\n", pid)
	return nil
}
