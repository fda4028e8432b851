package channel

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"firestige.xyz/acpipe/internal/core"
	"firestige.xyz/acpipe/internal/protocol"
)

func TestFramerReadHeader(t *testing.T) {
	tests := []struct {
		name    string
		input   []byte
		want    protocol.MessageType
		wantErr error
	}{
		{name: "report", input: []byte{0x01, 0x00, 0x00, 0x00}, want: protocol.MessageReport},
		{name: "request", input: []byte{0x02, 0x00, 0x00, 0x00}, want: protocol.MessageRequest},
		{name: "empty stream", input: nil, wantErr: io.EOF},
		{name: "partial header", input: []byte{0x01, 0x00, 0x00}, wantErr: core.ErrShortRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFramer(bytes.NewReader(tt.input), protocol.NewDecoder(nil))
			hdr, err := f.ReadHeader()
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, hdr.MessageType)
		})
	}
}

func TestFramerReadPayload(t *testing.T) {
	stream := append([]byte{0x01, 0x00, 0x00, 0x00}, bytes.Repeat([]byte{0xAB}, protocol.PayloadSize)...)
	f := NewFramer(bytes.NewReader(stream), protocol.NewDecoder(nil))

	_, err := f.ReadHeader()
	require.NoError(t, err)

	payload, err := f.ReadPayload()
	require.NoError(t, err)
	assert.Len(t, payload, protocol.PayloadSize)
	assert.Equal(t, byte(0xAB), payload[0])
	assert.Equal(t, byte(0xAB), payload[protocol.PayloadSize-1])

	f.Reset()
	assert.Equal(t, make([]byte, protocol.BufferSize), f.buf[:])
}

func TestFramerShortPayload(t *testing.T) {
	stream := append([]byte{0x01, 0x00, 0x00, 0x00}, make([]byte, 100)...)
	f := NewFramer(bytes.NewReader(stream), protocol.NewDecoder(nil))

	_, err := f.ReadHeader()
	require.NoError(t, err)

	_, err = f.ReadPayload()
	assert.ErrorIs(t, err, core.ErrShortRead)
}

func TestFramerMissingPayload(t *testing.T) {
	f := NewFramer(bytes.NewReader([]byte{0x01, 0x00, 0x00, 0x00}), protocol.NewDecoder(nil))

	_, err := f.ReadHeader()
	require.NoError(t, err)

	_, err = f.ReadPayload()
	assert.ErrorIs(t, err, core.ErrShortRead)
}
