// Package sink delivers decoded report events to their consumers.
package sink

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"firestige.xyz/acpipe/internal/core"
	"firestige.xyz/acpipe/internal/protocol"
)

// Event is the outcome of handling one REPORT message: either a decoded
// Report or the error that prevented decoding.
type Event struct {
	Session  string
	PeerPID  uint32
	Received time.Time
	Report   protocol.Report
	Err      error
}

// Sink consumes events. Publish must not retain ev past the call unless it
// copies what it needs; reports are plain values so copying ev is enough.
type Sink interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// LogSink writes one line per event.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a log sink. A nil logger follows slog.Default(), so
// the sink picks up a logger re-initialised on reload.
func NewLogSink(logger *slog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) log() *slog.Logger {
	if s.logger == nil {
		return slog.Default()
	}
	return s.logger
}

func (s *LogSink) Publish(ctx context.Context, ev Event) error {
	attrs := []slog.Attr{
		slog.String("session", ev.Session),
		slog.Uint64("peer_pid", uint64(ev.PeerPID)),
	}

	if ev.Err != nil {
		attrs = append(attrs,
			slog.String("reason", core.Reason(ev.Err)),
			slog.Any("error", ev.Err),
		)
		s.log().LogAttrs(ctx, slog.LevelError, "report rejected", attrs...)
		return nil
	}

	attrs = append(attrs, slog.Uint64("report_code", uint64(ev.Report.Code())))
	attrs = append(attrs, protocol.Attrs(ev.Report)...)
	s.log().LogAttrs(ctx, slog.LevelInfo, "report decoded", attrs...)
	return nil
}

func (s *LogSink) Close() error { return nil }

// Multi fans an event out to every sink. A failing sink does not stop
// delivery to the others.
type Multi []Sink

func (m Multi) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, s := range m {
		if err := s.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
