package protocol

import (
	"encoding/binary"
	"fmt"

	"firestige.xyz/acpipe/internal/core"
)

// UnknownReportCodeError is returned for an envelope whose code selects no
// known variant. It matches core.ErrUnknownReportCode.
type UnknownReportCodeError struct {
	Code ReportCode
}

func (e *UnknownReportCodeError) Error() string {
	return fmt.Sprintf("acpipe: unknown report code %d", uint32(e.Code))
}

func (e *UnknownReportCodeError) Is(target error) bool {
	return target == core.ErrUnknownReportCode
}

// Decoder interprets headers and report envelopes in the byte order agreed
// with the peer. It holds no state besides the byte order and is safe for
// concurrent use.
type Decoder struct {
	order binary.ByteOrder
}

// NewDecoder creates a decoder. A nil order means little-endian.
func NewDecoder(order binary.ByteOrder) *Decoder {
	if order == nil {
		order = binary.LittleEndian
	}
	return &Decoder{order: order}
}

// DecodeHeader decodes a message header. It never interprets a partial
// header.
func (d *Decoder) DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("header: need %d bytes, got %d: %w", HeaderSize, len(b), core.ErrShortRead)
	}
	return Header{MessageType: MessageType(d.order.Uint32(b[:HeaderSize]))}, nil
}

// Decode interprets payload as one report variant. Only the selected
// variant's record is read; trailing bytes are ignored. The returned
// report holds copies of the field values and does not reference payload.
func (d *Decoder) Decode(payload []byte) (Report, error) {
	if len(payload) < CodeSize {
		return nil, fmt.Errorf("report code: need %d bytes, got %d: %w", CodeSize, len(payload), core.ErrTruncatedPayload)
	}
	code := ReportCode(d.order.Uint32(payload[:CodeSize]))

	l, ok := layouts[code]
	if !ok {
		return nil, &UnknownReportCodeError{Code: code}
	}
	if len(payload) < l.size {
		return nil, fmt.Errorf("%s: need %d bytes, got %d: %w", l.kind, l.size, len(payload), core.ErrTruncatedPayload)
	}

	record := payload[:l.size]
	vals := make([]uint64, len(l.fields))
	for i, f := range l.fields {
		b := record[f.offset : f.offset+f.width]
		if f.width == 8 {
			vals[i] = d.order.Uint64(b)
		} else {
			vals[i] = uint64(d.order.Uint32(b))
		}
	}
	return l.build(vals), nil
}
