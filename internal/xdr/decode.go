package xdr

import (
	"fmt"
	"io"
)

// maxOpaqueLength bounds a single DecodeOpaque call. VXI-11 waveform
// transfers and device_read payloads are bounded by max_recv_size well
// below this ceiling; this guards only against a corrupt or hostile
// length field.
const maxOpaqueLength = 16 * 1024 * 1024

// padLen returns the number of zero padding bytes following an n-byte
// opaque/string field so the next field starts on a 4-byte boundary
// (RFC 4506 Section 3).
func padLen(n uint32) uint32 {
	return (4 - n%4) % 4
}

// readUint32 reads one big-endian uint32 directly off the wire, the
// same fixed-size-array-plus-BigEndian idiom this module's ONC/RPC
// record marking uses, rather than going through encoding/binary's
// reflective Read.
func readUint32(r io.Reader) (uint32, error) {
	var buf [4]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3]), nil
}

// DecodeOpaque reads an XDR variable-length opaque field: a uint32
// length, that many data bytes, then 0-3 zero padding bytes bringing
// the stream back to a 4-byte boundary (RFC 4506 Section 4.10).
func DecodeOpaque(r io.Reader) ([]byte, error) {
	length, err := readUint32(r)
	if err != nil {
		return nil, fmt.Errorf("opaque length: %w", err)
	}
	if length > maxOpaqueLength {
		return nil, fmt.Errorf("opaque length %d exceeds maximum %d", length, maxOpaqueLength)
	}

	data := make([]byte, length)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("opaque data: %w", err)
	}

	if pad := padLen(length); pad > 0 {
		var discard [3]byte
		if _, err := io.ReadFull(r, discard[:pad]); err != nil {
			return nil, fmt.Errorf("opaque padding: %w", err)
		}
	}

	return data, nil
}

// DecodeString decodes an XDR string, which is wire-identical to opaque
// data and only differs in being interpreted as UTF-8 (RFC 4506 Section
// 4.11).
func DecodeString(r io.Reader) (string, error) {
	data, err := DecodeOpaque(r)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// DecodeUint32 decodes a big-endian unsigned 32-bit integer.
func DecodeUint32(r io.Reader) (uint32, error) {
	v, err := readUint32(r)
	if err != nil {
		return 0, fmt.Errorf("uint32: %w", err)
	}
	return v, nil
}

// DecodeUint64 decodes an XDR hyper integer (RFC 4506 Section 4.5): two
// back-to-back big-endian uint32 halves, high word first.
func DecodeUint64(r io.Reader) (uint64, error) {
	high, err := readUint32(r)
	if err != nil {
		return 0, fmt.Errorf("uint64 high word: %w", err)
	}
	low, err := readUint32(r)
	if err != nil {
		return 0, fmt.Errorf("uint64 low word: %w", err)
	}
	return uint64(high)<<32 | uint64(low), nil
}

// DecodeInt32 decodes a signed 32-bit integer, two's complement.
func DecodeInt32(r io.Reader) (int32, error) {
	v, err := readUint32(r)
	if err != nil {
		return 0, fmt.Errorf("int32: %w", err)
	}
	return int32(v), nil
}

// DecodeUint16 decodes a value the XDR wire format carries as a
// 4-byte-aligned unsigned integer but whose protocol meaning is 16 bits
// wide (e.g. VXI-11's abort_port). Returns an error if the decoded value
// does not fit in 16 bits.
func DecodeUint16(r io.Reader) (uint16, error) {
	v, err := DecodeUint32(r)
	if err != nil {
		return 0, err
	}
	if v > 0xFFFF {
		return 0, fmt.Errorf("value %d does not fit in 16 bits", v)
	}
	return uint16(v), nil
}

// DecodeBool decodes an XDR boolean: 0 is false, anything else is true
// (RFC 4506 Section 4.4).
func DecodeBool(r io.Reader) (bool, error) {
	v, err := DecodeUint32(r)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}
