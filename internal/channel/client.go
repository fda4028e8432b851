package channel

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"time"

	"firestige.xyz/acpipe/internal/core"
	"firestige.xyz/acpipe/internal/protocol"
)

// Client writes messages to a report channel. It is used by the send
// command and by tests to play the peer's role.
type Client struct {
	conn    net.Conn
	order   binary.ByteOrder
	timeout time.Duration
}

// Dial connects to the socket at path. A zero timeout defaults to 10s and
// a nil order to little-endian.
func Dial(ctx context.Context, path string, order binary.ByteOrder, timeout time.Duration) (*Client, error) {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	if order == nil {
		order = binary.LittleEndian
	}

	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return nil, fmt.Errorf("%w: connect to socket %s: %w", core.ErrConnection, path, err)
	}
	return &Client{conn: conn, order: order, timeout: timeout}, nil
}

// SendReport writes a REPORT header followed by the full payload envelope.
func (c *Client) SendReport(ctx context.Context, r protocol.Report) error {
	msg := make([]byte, 0, protocol.BufferSize)
	msg = append(msg, protocol.EncodeHeader(c.order, protocol.MessageReport)...)
	msg = append(msg, protocol.EncodeReport(c.order, r)...)
	return c.SendRaw(ctx, msg)
}

// SendRequest writes a bare REQUEST header.
func (c *Client) SendRequest(ctx context.Context) error {
	return c.SendRaw(ctx, protocol.EncodeHeader(c.order, protocol.MessageRequest))
}

// SendRaw writes b as-is.
func (c *Client) SendRaw(ctx context.Context, b []byte) error {
	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	c.conn.SetWriteDeadline(deadline)

	if _, err := c.conn.Write(b); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	return nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
