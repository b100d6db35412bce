package waveform

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadBlockHeaderParsesLengthDigits(t *testing.T) {
	buf := bytes.NewBufferString("3346")
	payload := make([]byte, DescLength)
	buf.Write(payload)

	length, err := ReadBlockHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, DescLength, length)

	got := make([]byte, length)
	_, err = buf.Read(got)
	require.NoError(t, err)
}

func TestReadUntilConsumesDelimiter(t *testing.T) {
	buf := bytes.NewBufferString("WAV:DATA?,#3346rest")
	require.NoError(t, ReadUntil(buf, '#'))

	length, err := ReadBlockHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, DescLength, length)
}

func buildDesc(t *testing.T, commType uint16, vertGain, vertOffset, codePerDiv, attenuation float32) []byte {
	t.Helper()
	data := make([]byte, DescLength)
	le := binary.LittleEndian
	le.PutUint16(data[offCommType:], commType)
	le.PutUint32(data[offVertGain:], math.Float32bits(vertGain))
	le.PutUint32(data[offVertOffset:], math.Float32bits(vertOffset))
	le.PutUint32(data[offCodePerDiv:], math.Float32bits(codePerDiv))
	le.PutUint32(data[offAttenuation:], math.Float32bits(attenuation))
	return data
}

func TestParseDescRejectsWrongLength(t *testing.T) {
	_, err := ParseDesc(make([]byte, 10))
	assert.Error(t, err)
}

func TestDecodeSamples16BitScale(t *testing.T) {
	data := buildDesc(t, uint16(CommType16Bit), 8e-4, 0, 8.0, 1.0)
	desc, err := ParseDesc(data)
	require.NoError(t, err)
	assert.InDelta(t, 8e-4, float64(desc.VertGain), 1e-9)

	raw := make([]byte, 4)
	binary.LittleEndian.PutUint16(raw[0:], uint16(int16(4)))
	binary.LittleEndian.PutUint16(raw[2:], uint16(int16(-4)))

	values, err := DecodeSamples(raw, desc)
	require.NoError(t, err)
	require.Len(t, values, 2)
	assert.InDelta(t, 4.0e-4, values[0], 1e-9)
	assert.InDelta(t, -4.0e-4, values[1], 1e-9)
}

func TestDecodeSamples8Bit(t *testing.T) {
	data := buildDesc(t, uint16(CommType8Bit), 1.0, 0, 1.0, 1.0)
	desc, err := ParseDesc(data)
	require.NoError(t, err)

	raw := []byte{10, 0xF6} // 10, -10
	values, err := DecodeSamples(raw, desc)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, -10}, values)
}

func TestDecodeSamplesRejectsMisalignedBlock(t *testing.T) {
	data := buildDesc(t, uint16(CommType16Bit), 1.0, 0, 1.0, 1.0)
	desc, err := ParseDesc(data)
	require.NoError(t, err)

	_, err = DecodeSamples([]byte{0x01, 0x02, 0x03}, desc)
	assert.Error(t, err)
}
