package channel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"time"

	"firestige.xyz/acpipe/internal/core"
	"firestige.xyz/acpipe/internal/metrics"
	"firestige.xyz/acpipe/internal/protocol"
	"firestige.xyz/acpipe/internal/sink"
)

// Session is the read loop for one connected peer.
type Session struct {
	id      string
	conn    net.Conn
	peerPID uint32
	framer  *Framer
	decoder *protocol.Decoder
	sink    sink.Sink
	logger  *slog.Logger

	readTimeout time.Duration
	maxErrors   int
}

func newSession(id string, conn net.Conn, peerPID uint32, decoder *protocol.Decoder, s sink.Sink, opts Options) *Session {
	maxErrors := opts.MaxConsecutiveErrors
	if maxErrors <= 0 {
		maxErrors = defaultMaxConsecutiveErrors
	}
	return &Session{
		id:          id,
		conn:        conn,
		peerPID:     peerPID,
		framer:      NewFramer(conn, decoder),
		decoder:     decoder,
		sink:        s,
		logger:      slog.With("session", id, "peer_pid", peerPID),
		readTimeout: opts.ReadTimeout,
		maxErrors:   maxErrors,
	}
}

// Run reads and handles messages until ctx is cancelled, the peer
// disconnects, a read times out, or too many consecutive messages fail.
// Cancellation interrupts a blocked read.
func (s *Session) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() {
		s.conn.SetReadDeadline(time.Unix(1, 0))
	})
	defer stop()

	failures := 0
	for {
		if ctx.Err() != nil {
			return nil
		}
		if s.readTimeout > 0 {
			s.conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		}

		err := s.next(ctx)
		switch {
		case err == nil:
			failures = 0
		case ctx.Err() != nil:
			return nil
		case isClosed(err):
			return nil
		case errors.Is(err, os.ErrDeadlineExceeded):
			return fmt.Errorf("read timed out after %s: %w", s.readTimeout, err)
		default:
			failures++
			metrics.ReadErrorsTotal.Inc()
			s.logger.Error("reading message from channel failed",
				"error", err,
				"reason", core.Reason(err),
				"consecutive_failures", failures,
			)
			if failures >= s.maxErrors {
				return fmt.Errorf("giving up after %d consecutive failures: %w", failures, err)
			}
		}
	}
}

// next handles exactly one message. The buffer is zeroed on every return
// path. Decode failures are published as events and do not return an
// error; transport and framing failures do.
func (s *Session) next(ctx context.Context) error {
	defer s.framer.Reset()

	hdr, err := s.framer.ReadHeader()
	if err != nil {
		return err
	}

	s.logger.Info("message received", "message_type", hdr.MessageType.String())
	metrics.MessagesTotal.WithLabelValues(messageLabel(hdr.MessageType)).Inc()

	switch hdr.MessageType {
	case protocol.MessageReport:
		payload, err := s.framer.ReadPayload()
		if err != nil {
			return err
		}
		report, err := s.decoder.Decode(payload)
		s.publish(ctx, report, err)
		return nil

	case protocol.MessageRequest:
		s.logger.Debug("request acknowledged")
		return nil

	default:
		return fmt.Errorf("%w: %d", core.ErrUnknownMessageType, uint32(hdr.MessageType))
	}
}

func (s *Session) publish(ctx context.Context, report protocol.Report, decodeErr error) {
	if decodeErr != nil {
		metrics.DecodeErrorsTotal.WithLabelValues(core.Reason(decodeErr)).Inc()
	} else {
		metrics.ReportsTotal.WithLabelValues(report.Code().String()).Inc()
	}

	ev := sink.Event{
		Session:  s.id,
		PeerPID:  s.peerPID,
		Received: time.Now(),
		Report:   report,
		Err:      decodeErr,
	}
	if err := s.sink.Publish(ctx, ev); err != nil {
		s.logger.Warn("publishing report event failed", "error", err)
	}
}

func messageLabel(t protocol.MessageType) string {
	switch t {
	case protocol.MessageReport, protocol.MessageRequest:
		return t.String()
	default:
		return "unknown"
	}
}

func isClosed(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.ErrClosedPipe)
}
