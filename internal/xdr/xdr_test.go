package xdr

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpaqueRoundTrip(t *testing.T) {
	cases := [][]byte{
		{},
		{0x01},
		{0x01, 0x02, 0x03},
		{0x01, 0x02, 0x03, 0x04},
		bytes.Repeat([]byte{0xAB}, 1500),
	}

	for _, data := range cases {
		var buf bytes.Buffer
		require.NoError(t, WriteXDROpaque(&buf, data))
		assert.Equal(t, 0, buf.Len()%4, "encoded opaque must be 4-byte aligned")

		got, err := DecodeOpaque(&buf)
		require.NoError(t, err)
		assert.Equal(t, data, got)
		assert.Equal(t, 0, buf.Len(), "decode must consume the full padded record")
	}
}

func TestOpaqueTooLarge(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUint32(&buf, 32*1024*1024))

	_, err := DecodeOpaque(&buf)
	assert.Error(t, err)
}

func TestStringRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteXDRString(&buf, "*IDN?"))

	got, err := DecodeString(&buf)
	require.NoError(t, err)
	assert.Equal(t, "*IDN?", got)
}

func TestUint32RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUint32(&buf, 0xDEADBEEF))

	got, err := DecodeUint32(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xDEADBEEF), got)
}

func TestInt32RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteInt32(&buf, -1))

	got, err := DecodeInt32(&buf)
	require.NoError(t, err)
	assert.Equal(t, int32(-1), got)
}

func TestBoolRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteBool(&buf, true))
	require.NoError(t, WriteBool(&buf, false))

	got1, err := DecodeBool(&buf)
	require.NoError(t, err)
	assert.True(t, got1)

	got2, err := DecodeBool(&buf)
	require.NoError(t, err)
	assert.False(t, got2)
}

func TestUint16RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUint16(&buf, 111))

	got, err := DecodeUint16(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint16(111), got)
}

func TestUint16Overflow(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteUint32(&buf, 0x10000))

	_, err := DecodeUint16(&buf)
	assert.Error(t, err)
}

func TestPaddingBoundaries(t *testing.T) {
	for length := uint32(0); length < 8; length++ {
		var buf bytes.Buffer
		require.NoError(t, WriteXDRPadding(&buf, length))
		want := (4 - (length % 4)) % 4
		assert.EqualValues(t, want, buf.Len())
	}
}
