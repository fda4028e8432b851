package channel

import (
	"context"
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/acpipe/internal/config"
	"firestige.xyz/acpipe/internal/core"
	"firestige.xyz/acpipe/internal/protocol"
)

func startServer(t *testing.T, rec *recordingSink, opts Options) (*Server, string) {
	t.Helper()

	socketPath := filepath.Join(t.TempDir(), "acpipe.sock")
	opts.SocketPath = socketPath

	srv := NewServer(opts, rec)
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	t.Cleanup(func() {
		cancel()
		select {
		case err := <-errCh:
			assert.NoError(t, err)
		case <-time.After(5 * time.Second):
			t.Error("server did not stop")
		}
	})
	return srv, socketPath
}

func dial(t *testing.T, socketPath string) *Client {
	t.Helper()
	c, err := Dial(context.Background(), socketPath, binary.LittleEndian, 2*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c
}

func TestServerDeliversReports(t *testing.T) {
	rec := &recordingSink{}
	_, socketPath := startServer(t, rec, Options{})

	info, err := os.Stat(socketPath)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

	c := dial(t, socketPath)
	ctx := context.Background()

	nmi := protocol.NMICallbackFailure{
		WereNMIsDisabled: true,
		KThreadAddress:   0xFFFFA00012345678,
		InvalidRIP:       0xFFFFF80011112222,
	}
	handle := protocol.OpenHandleFailure{ProcessID: 1000, ThreadID: 1004, DesiredAccess: 0x40}

	require.NoError(t, c.SendReport(ctx, nmi))
	require.NoError(t, c.SendRequest(ctx))
	require.NoError(t, c.SendReport(ctx, handle))

	require.Eventually(t, func() bool { return len(rec.Events()) == 2 }, 2*time.Second, 10*time.Millisecond)

	events := rec.Events()
	assert.Equal(t, nmi, events[0].Report)
	assert.Equal(t, handle, events[1].Report)
	assert.NotEmpty(t, events[0].Session)
	assert.Equal(t, events[0].Session, events[1].Session)
	if runtime.GOOS == "linux" {
		assert.Equal(t, uint32(os.Getpid()), events[0].PeerPID)
	}
}

func TestServerBigEndian(t *testing.T) {
	rec := &recordingSink{}
	_, socketPath := startServer(t, rec, Options{ByteOrder: binary.BigEndian})

	c, err := Dial(context.Background(), socketPath, binary.BigEndian, time.Second)
	require.NoError(t, err)
	defer c.Close()

	want := protocol.KernelModuleValidationFailure{ReportType: 2, DriverBase: 0xFFFFF80000400000, DriverSize: 0x8000}
	require.NoError(t, c.SendReport(context.Background(), want))

	require.Eventually(t, func() bool { return len(rec.Events()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, want, rec.Events()[0].Report)
}

func TestServerRejectsPeersOverLimit(t *testing.T) {
	rec := &recordingSink{}
	srv, socketPath := startServer(t, rec, Options{MaxPeers: 1})

	first, err := Dial(context.Background(), socketPath, nil, time.Second)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return srv.Peers() == 1 }, 2*time.Second, 10*time.Millisecond)

	second, err := net.Dial("unix", socketPath)
	require.NoError(t, err)
	defer second.Close()

	second.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, err = second.Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF, "extra peer should be disconnected")

	// The slot is released once the first peer leaves.
	require.NoError(t, first.Close())
	require.Eventually(t, func() bool { return srv.Peers() == 0 }, 2*time.Second, 10*time.Millisecond)

	third := dial(t, socketPath)
	require.NoError(t, third.SendReport(context.Background(), protocol.ThreadStartAddressFailure{ThreadID: 9, StartAddress: 0x1000}))
	require.Eventually(t, func() bool { return len(rec.Events()) == 1 }, 2*time.Second, 10*time.Millisecond)
}

func TestServerStopWithSilentPeer(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "acpipe.sock")
	srv := NewServer(Options{SocketPath: socketPath}, &recordingSink{})
	require.NoError(t, srv.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start(ctx) }()

	dial(t, socketPath)
	require.Eventually(t, func() bool { return srv.Peers() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server blocked on a silent peer")
	}

	assert.NoFileExists(t, socketPath)
	assert.NoError(t, srv.Stop(), "stop is idempotent")
}

func TestServerListenFailure(t *testing.T) {
	srv := NewServer(Options{SocketPath: filepath.Join(t.TempDir(), "missing", "acpipe.sock")}, &recordingSink{})
	err := srv.Listen()
	assert.ErrorIs(t, err, core.ErrConnection)
}

func TestDialFailure(t *testing.T) {
	_, err := Dial(context.Background(), filepath.Join(t.TempDir(), "nobody.sock"), nil, time.Second)
	assert.ErrorIs(t, err, core.ErrConnection)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(config.ChannelConfig{
		Socket:               "/tmp/x.sock",
		MaxPeers:             2,
		ReadTimeout:          "3s",
		MaxConsecutiveErrors: 4,
	}, binary.BigEndian)

	assert.Equal(t, "/tmp/x.sock", opts.SocketPath)
	assert.Equal(t, 2, opts.MaxPeers)
	assert.Equal(t, 3*time.Second, opts.ReadTimeout)
	assert.Equal(t, 4, opts.MaxConsecutiveErrors)
	assert.Equal(t, binary.BigEndian, opts.ByteOrder)
}
