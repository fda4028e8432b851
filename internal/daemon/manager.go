package daemon

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// Controller signals a running daemon through the PID file it wrote.
type Controller struct {
	pidFile      string
	pollInterval time.Duration
}

// NewController creates a controller for the daemon recorded in pidFile.
func NewController(pidFile string) *Controller {
	return &Controller{pidFile: pidFile, pollInterval: 100 * time.Millisecond}
}

// PID returns the process ID recorded in the PID file.
func (c *Controller) PID() (int, error) {
	data, err := os.ReadFile(c.pidFile)
	if err != nil {
		return 0, fmt.Errorf("daemon not running: %w", err)
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid PID file %s: %q", c.pidFile, data)
	}
	return pid, nil
}

// Running reports whether the recorded process exists.
func (c *Controller) Running() bool {
	pid, err := c.PID()
	if err != nil {
		return false
	}
	return processAlive(pid)
}

// Stop sends SIGTERM and waits until the process exits or ctx is done.
func (c *Controller) Stop(ctx context.Context) error {
	pid, err := c.signal(syscall.SIGTERM)
	if err != nil {
		return err
	}

	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()
	for {
		if !processAlive(pid) {
			return nil
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("daemon (pid %d) still running: %w", pid, ctx.Err())
		case <-ticker.C:
		}
	}
}

// Reload sends SIGHUP.
func (c *Controller) Reload(ctx context.Context) error {
	_, err := c.signal(syscall.SIGHUP)
	return err
}

func (c *Controller) signal(sig syscall.Signal) (int, error) {
	pid, err := c.PID()
	if err != nil {
		return 0, err
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return pid, err
	}
	if err := process.Signal(sig); err != nil {
		return pid, fmt.Errorf("failed to signal pid %d: %w", pid, err)
	}
	return pid, nil
}

func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}
