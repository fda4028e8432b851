package protocol

import "encoding/binary"

// EncodeHeader returns the wire form of a header.
func EncodeHeader(order binary.ByteOrder, t MessageType) []byte {
	buf := make([]byte, HeaderSize)
	order.PutUint32(buf, uint32(t))
	return buf
}

// EncodeReport returns a full PayloadSize envelope carrying r. Bytes past
// the variant's record are zero.
func EncodeReport(order binary.ByteOrder, r Report) []byte {
	buf := make([]byte, PayloadSize)
	l := layouts[r.Code()]
	order.PutUint32(buf[:CodeSize], uint32(r.Code()))
	for i, v := range r.values() {
		f := l.fields[i]
		if f.width == 8 {
			order.PutUint64(buf[f.offset:f.offset+8], v)
		} else {
			order.PutUint32(buf[f.offset:f.offset+4], uint32(v))
		}
	}
	return buf
}
