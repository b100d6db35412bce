package xdr

import (
	"bytes"
	"fmt"
)

// writeUint32 appends one big-endian uint32 directly, the same
// fixed-size-array idiom readUint32 decodes with, rather than going
// through encoding/binary's reflective Write.
func writeUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
	buf.Write(b[:])
}

// WriteXDROpaque appends an XDR variable-length opaque field: a uint32
// length, the data itself, then zero padding back to a 4-byte boundary
// (RFC 4506 Section 4.10). Used for ONC/RPC opaque payloads such as
// device_write/device_read data blocks.
func WriteXDROpaque(buf *bytes.Buffer, data []byte) error {
	length := uint32(len(data))
	writeUint32(buf, length)
	if _, err := buf.Write(data); err != nil {
		return fmt.Errorf("opaque data: %w", err)
	}
	return WriteXDRPadding(buf, length)
}

// WriteXDRString appends an XDR string, wire-identical to opaque data
// (RFC 4506 Section 4.11).
func WriteXDRString(buf *bytes.Buffer, s string) error {
	return WriteXDROpaque(buf, []byte(s))
}

// WriteXDRPadding appends the zero bytes needed to bring a field of
// dataLen bytes back to a 4-byte boundary.
func WriteXDRPadding(buf *bytes.Buffer, dataLen uint32) error {
	pad := padLen(dataLen)
	if pad == 0 {
		return nil
	}
	var zero [3]byte
	if _, err := buf.Write(zero[:pad]); err != nil {
		return fmt.Errorf("padding: %w", err)
	}
	return nil
}

// WriteUint32 appends a big-endian unsigned 32-bit integer.
func WriteUint32(buf *bytes.Buffer, v uint32) error {
	writeUint32(buf, v)
	return nil
}

// WriteUint64 appends an XDR hyper integer (RFC 4506 Section 4.5): the
// high then low big-endian uint32 halves.
func WriteUint64(buf *bytes.Buffer, v uint64) error {
	writeUint32(buf, uint32(v>>32))
	writeUint32(buf, uint32(v))
	return nil
}

// WriteInt32 appends a signed 32-bit integer, two's complement.
func WriteInt32(buf *bytes.Buffer, v int32) error {
	writeUint32(buf, uint32(v))
	return nil
}

// WriteUint16 encodes a 16-bit-wide protocol value padded out to the
// 4-byte XDR unsigned integer representation, mirroring DecodeUint16.
func WriteUint16(buf *bytes.Buffer, v uint16) error {
	return WriteUint32(buf, uint32(v))
}

// WriteBool appends a boolean: 0 for false, 1 for true (RFC 4506
// Section 4.4).
func WriteBool(buf *bytes.Buffer, v bool) error {
	var val uint32
	if v {
		val = 1
	}
	return WriteUint32(buf, val)
}
