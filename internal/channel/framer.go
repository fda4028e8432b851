// Package channel implements the local report channel: the listener, the
// per-peer read loop and the message framing on top of a byte stream.
package channel

import (
	"errors"
	"fmt"
	"io"

	"firestige.xyz/acpipe/internal/core"
	"firestige.xyz/acpipe/internal/protocol"
)

// Framer splits a byte stream into header and payload reads over a single
// reusable buffer. A Framer belongs to one connection and is not safe for
// concurrent use.
type Framer struct {
	r       io.Reader
	decoder *protocol.Decoder
	buf     [protocol.BufferSize]byte
}

// NewFramer creates a framer reading from r.
func NewFramer(r io.Reader, decoder *protocol.Decoder) *Framer {
	return &Framer{r: r, decoder: decoder}
}

// ReadHeader blocks until a full header is read. It returns io.EOF if the
// stream ends before the first byte, and core.ErrShortRead if it ends
// inside the header.
func (f *Framer) ReadHeader() (protocol.Header, error) {
	hdr := f.buf[:protocol.HeaderSize]
	n, err := io.ReadFull(f.r, hdr)
	if err != nil {
		if errors.Is(err, io.ErrUnexpectedEOF) {
			return protocol.Header{}, fmt.Errorf("header: got %d of %d bytes: %w", n, protocol.HeaderSize, core.ErrShortRead)
		}
		return protocol.Header{}, err
	}
	return f.decoder.DecodeHeader(hdr)
}

// ReadPayload reads the fixed-size envelope that follows a REPORT header.
// The returned slice aliases the framer's buffer and is valid until Reset.
func (f *Framer) ReadPayload() ([]byte, error) {
	payload := f.buf[protocol.HeaderSize:]
	n, err := io.ReadFull(f.r, payload)
	if err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, fmt.Errorf("payload: got %d of %d bytes: %w", n, protocol.PayloadSize, core.ErrShortRead)
		}
		return nil, err
	}
	return payload, nil
}

// Reset zeroes the whole buffer.
func (f *Framer) Reset() {
	clear(f.buf[:])
}
