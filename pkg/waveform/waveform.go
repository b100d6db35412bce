// Package waveform decodes the binary block framing and WAVEDESC header
// an oscilloscope uses to return captured analog waveform data over
// SCPI's :WAV subsystem.
//
// The wire format is IEEE 488.2 definite-length arbitrary block data
// (#<N><N digits of length><payload>) wrapping a 346-byte little-endian
// descriptor, itself followed by the raw sample bytes.
package waveform

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"math"
)

// DescLength is the fixed size of the WAVEDESC header in bytes.
const DescLength = 346

// ReadBlockHeader reads an IEEE 488.2 definite-length block header
// "#N<N digits>" from r and returns the payload length it announces. The
// leading '#' must already have been consumed by the caller (typically
// via a recv_until(',#', ...) style read of the preceding query echo).
func ReadBlockHeader(r io.Reader) (int, error) {
	digitCountBuf := make([]byte, 1)
	if _, err := io.ReadFull(r, digitCountBuf); err != nil {
		return 0, fmt.Errorf("read digit count: %w", err)
	}
	digitCount := int(digitCountBuf[0] - '0')
	if digitCount < 0 || digitCount > 9 {
		return 0, fmt.Errorf("invalid block header digit count byte %q", digitCountBuf[0])
	}

	digits := make([]byte, digitCount)
	if _, err := io.ReadFull(r, digits); err != nil {
		return 0, fmt.Errorf("read length digits: %w", err)
	}

	length := 0
	for _, d := range digits {
		if d < '0' || d > '9' {
			return 0, fmt.Errorf("invalid length digit %q", d)
		}
		length = length*10 + int(d-'0')
	}
	return length, nil
}

// ReadUntil reads bytes from r one at a time until delim is seen, per
// the reference driver's recv_until helper used to skip the '#' marker
// introducing a block header. The delimiter itself is consumed but not
// returned.
func ReadUntil(r io.Reader, delim byte) error {
	br, ok := r.(io.ByteReader)
	if !ok {
		br = bufio.NewReader(r)
	}
	for {
		b, err := br.ReadByte()
		if err != nil {
			return err
		}
		if b == delim {
			return nil
		}
	}
}

// CommType identifies the WAVEDESC sample width: 0 = 1 byte/sample
// (int8), 1 = 2 bytes/sample (little-endian int16).
type CommType uint16

const (
	CommType8Bit  CommType = 0
	CommType16Bit CommType = 1
)

// Desc is the subset of WAVEDESC fields needed to interpret a sample
// block, decoded at the exact byte offsets of the on-wire struct.
type Desc struct {
	CommType      CommType
	CommOrder     uint16
	NPoints       uint32
	VertGain      float32
	VertOffset    float32
	CodePerDiv    float32
	HorizInterval float32
	HorizOffset   float64
	Attenuation   float32
}

// Field byte offsets within the 346-byte WAVEDESC header.
const (
	offCommType      = 32
	offCommOrder     = 34
	offNPoints       = 116
	offVertGain      = 156
	offVertOffset    = 160
	offCodePerDiv    = 164
	offHorizInterval = 176
	offHorizOffset   = 180
	offAttenuation   = 328
)

// ParseDesc decodes a WAVEDESC header from exactly DescLength bytes.
func ParseDesc(data []byte) (Desc, error) {
	if len(data) != DescLength {
		return Desc{}, fmt.Errorf("wavedesc must be %d bytes, got %d", DescLength, len(data))
	}

	le := binary.LittleEndian
	return Desc{
		CommType:      CommType(le.Uint16(data[offCommType:])),
		CommOrder:     le.Uint16(data[offCommOrder:]),
		NPoints:       le.Uint32(data[offNPoints:]),
		VertGain:      math.Float32frombits(le.Uint32(data[offVertGain:])),
		VertOffset:    math.Float32frombits(le.Uint32(data[offVertOffset:])),
		CodePerDiv:    math.Float32frombits(le.Uint32(data[offCodePerDiv:])),
		HorizInterval: math.Float32frombits(le.Uint32(data[offHorizInterval:])),
		HorizOffset:   math.Float64frombits(le.Uint64(data[offHorizOffset:])),
		Attenuation:   math.Float32frombits(le.Uint32(data[offAttenuation:])),
	}, nil
}

// BytesPerSample returns the number of raw bytes each sample occupies
// for this descriptor's comm_type.
func (d Desc) BytesPerSample() int {
	if d.CommType == CommType16Bit {
		return 2
	}
	return 1
}

// DecodeSamples converts a raw sample block into scaled voltage values,
// using value = raw*scale - offset where scale = attenuation*vert_gain/code_per_div.
func DecodeSamples(raw []byte, desc Desc) ([]float64, error) {
	width := desc.BytesPerSample()
	if len(raw)%width != 0 {
		return nil, fmt.Errorf("sample block of %d bytes is not a multiple of sample width %d", len(raw), width)
	}

	scale := float64(desc.Attenuation) * float64(desc.VertGain) / float64(desc.CodePerDiv)
	offset := float64(desc.VertOffset)

	count := len(raw) / width
	values := make([]float64, count)

	if desc.CommType == CommType8Bit {
		for i, b := range raw {
			values[i] = float64(int8(b))*scale - offset
		}
		return values, nil
	}

	for i := 0; i < count; i++ {
		sample := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		values[i] = float64(sample)*scale - offset
	}
	return values, nil
}
