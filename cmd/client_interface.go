package cmd

import (
	"context"
	"encoding/binary"
	"time"

	"firestige.xyz/acpipe/internal/channel"
	"firestige.xyz/acpipe/internal/daemon"
	"firestige.xyz/acpipe/internal/protocol"
)

// DaemonController is what stop, reload and status need from a running daemon.
type DaemonController interface {
	PID() (int, error)
	Running() bool
	Stop(ctx context.Context) error
	Reload(ctx context.Context) error
}

// ReportSender is the peer side of the report channel.
type ReportSender interface {
	SendReport(ctx context.Context, r protocol.Report) error
	SendRequest(ctx context.Context) error
	Close() error
}

// Replaced in tests.
var (
	newController = func(pidFile string) DaemonController {
		return daemon.NewController(pidFile)
	}
	dialSender = func(ctx context.Context, socket string, order binary.ByteOrder, timeout time.Duration) (ReportSender, error) {
		return channel.Dial(ctx, socket, order, timeout)
	}
)
