package channel

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	"firestige.xyz/acpipe/internal/config"
	"firestige.xyz/acpipe/internal/core"
	"firestige.xyz/acpipe/internal/metrics"
	"firestige.xyz/acpipe/internal/protocol"
	"firestige.xyz/acpipe/internal/sink"
)

const (
	defaultMaxPeers             = 1
	defaultMaxConsecutiveErrors = 8
)

// Options configures a Server.
type Options struct {
	SocketPath           string
	MaxPeers             int
	ReadTimeout          time.Duration
	MaxConsecutiveErrors int
	ByteOrder            binary.ByteOrder
}

// OptionsFromConfig maps the channel section of the config onto Options.
func OptionsFromConfig(cfg config.ChannelConfig, order binary.ByteOrder) Options {
	return Options{
		SocketPath:           cfg.Socket,
		MaxPeers:             cfg.MaxPeers,
		ReadTimeout:          cfg.ReadTimeoutDuration(),
		MaxConsecutiveErrors: cfg.MaxConsecutiveErrors,
		ByteOrder:            order,
	}
}

// Server listens on a Unix domain socket and runs one Session per peer.
type Server struct {
	opts     Options
	decoder  *protocol.Decoder
	sink     sink.Sink
	listener net.Listener
	slots    chan struct{}

	mu      sync.Mutex
	conns   map[net.Conn]struct{}
	wg      sync.WaitGroup
	stopped bool
}

// NewServer creates a server delivering every decoded or rejected report
// to s.
func NewServer(opts Options, s sink.Sink) *Server {
	if opts.MaxPeers <= 0 {
		opts.MaxPeers = defaultMaxPeers
	}
	if opts.MaxConsecutiveErrors <= 0 {
		opts.MaxConsecutiveErrors = defaultMaxConsecutiveErrors
	}
	return &Server{
		opts:    opts,
		decoder: protocol.NewDecoder(opts.ByteOrder),
		sink:    s,
		slots:   make(chan struct{}, opts.MaxPeers),
		conns:   make(map[net.Conn]struct{}),
	}
}

// Listen creates the socket. Failures wrap core.ErrConnection.
func (s *Server) Listen() error {
	if err := os.RemoveAll(s.opts.SocketPath); err != nil {
		return fmt.Errorf("%w: remove stale socket %s: %w", core.ErrConnection, s.opts.SocketPath, err)
	}

	listener, err := net.Listen("unix", s.opts.SocketPath)
	if err != nil {
		return fmt.Errorf("%w: listen on socket %s: %w", core.ErrConnection, s.opts.SocketPath, err)
	}

	if err := os.Chmod(s.opts.SocketPath, 0600); err != nil {
		listener.Close()
		return fmt.Errorf("%w: set socket permissions: %w", core.ErrConnection, err)
	}

	s.listener = listener
	slog.Info("report channel listening",
		"socket", s.opts.SocketPath,
		"max_peers", s.opts.MaxPeers,
	)
	return nil
}

// Start accepts peers until ctx is cancelled, then stops the server.
// It calls Listen first if the socket is not open yet.
func (s *Server) Start(ctx context.Context) error {
	if s.listener == nil {
		if err := s.Listen(); err != nil {
			return err
		}
	}

	go s.acceptLoop(ctx)

	<-ctx.Done()
	slog.Info("report channel stopping", "reason", ctx.Err())

	return s.Stop()
}

// Peers returns the number of connected peers.
func (s *Server) Peers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if s.isStopped() || errors.Is(err, net.ErrClosed) {
				return
			}
			slog.Error("failed to accept connection", "error", err)
			continue
		}

		select {
		case s.slots <- struct{}{}:
		default:
			s.reject(conn)
			continue
		}

		s.mu.Lock()
		if s.stopped {
			s.mu.Unlock()
			<-s.slots
			conn.Close()
			return
		}
		s.conns[conn] = struct{}{}
		s.wg.Add(1)
		s.mu.Unlock()

		go s.handleConnection(ctx, conn)
	}
}

func (s *Server) reject(conn net.Conn) {
	metrics.RejectedPeersTotal.Inc()
	slog.Warn("rejecting peer",
		"error", core.ErrTooManyPeers,
		"peer_pid", PeerPID(conn),
		"max_peers", s.opts.MaxPeers,
	)
	conn.Close()
}

func (s *Server) handleConnection(ctx context.Context, conn net.Conn) {
	defer s.wg.Done()
	defer func() {
		s.mu.Lock()
		delete(s.conns, conn)
		s.mu.Unlock()
		conn.Close()
		metrics.ActivePeers.Dec()
		<-s.slots
	}()
	metrics.ActivePeers.Inc()

	session := newSession(uuid.NewString(), conn, PeerPID(conn), s.decoder, s.sink, s.opts)
	session.logger.Info("peer connected to report channel")

	if err := session.Run(ctx); err != nil {
		session.logger.Warn("session ended", "error", err)
		return
	}
	session.logger.Info("peer disconnected from report channel")
}

func (s *Server) isStopped() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped
}

// Stop closes the listener and every open connection, waits for the
// sessions to return and removes the socket file.
func (s *Server) Stop() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	s.stopped = true

	if s.listener != nil {
		s.listener.Close()
	}
	for conn := range s.conns {
		conn.Close()
	}
	s.mu.Unlock()

	s.wg.Wait()

	if s.listener != nil {
		os.RemoveAll(s.opts.SocketPath)
	}

	slog.Info("report channel stopped")
	return nil
}
