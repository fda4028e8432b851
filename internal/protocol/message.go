// Package protocol implements the report channel wire contract.
//
// Every message starts with a fixed header carrying the message type. A
// REPORT header is followed by a fixed-size envelope whose first field is
// the report code; the code selects one fixed-layout report variant.
package protocol

import (
	"encoding/binary"
	"fmt"
	"strings"
)

const (
	// HeaderSize is the size of the message header on the wire.
	HeaderSize = 4
	// BufferSize is the transport read buffer capacity shared with the peer.
	BufferSize = 1024
	// PayloadSize is the number of bytes read after a REPORT header,
	// regardless of which variant the envelope carries.
	PayloadSize = BufferSize - HeaderSize
	// CodeSize is the size of the leading report code field.
	CodeSize = 4
)

// MessageType is the header discriminant.
type MessageType uint32

const (
	MessageReport  MessageType = 1
	MessageRequest MessageType = 2
)

func (t MessageType) String() string {
	switch t {
	case MessageReport:
		return "report"
	case MessageRequest:
		return "request"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}

// Header is the fixed message header.
type Header struct {
	MessageType MessageType
}

// ParseByteOrder maps a config value to a byte order.
func ParseByteOrder(s string) (binary.ByteOrder, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "little", "le":
		return binary.LittleEndian, nil
	case "big", "be":
		return binary.BigEndian, nil
	default:
		return nil, fmt.Errorf("unsupported byte order: %s (must be little/big)", s)
	}
}
