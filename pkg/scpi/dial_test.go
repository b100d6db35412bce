package scpi

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDialRejectsUnknownScheme(t *testing.T) {
	_, err := Dial("http://example.com")
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestDialRejectsMalformedURI(t *testing.T) {
	_, err := Dial("not-a-uri-at-all")
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestDialTCPRequiresHostPort(t *testing.T) {
	_, err := Dial("tcp://justahostname")
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestDialSerialRejectsUnknownQueryKey(t *testing.T) {
	_, err := Dial("serial:/dev/ttyUSB0?parity=N")
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestDialSerialRejectsNonIntegerBaud(t *testing.T) {
	_, err := Dial("serial:/dev/ttyUSB0?baud=fast")
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestDialVXIRejectsUnknownQueryKey(t *testing.T) {
	_, err := Dial("vxi11://192.0.2.1?lock=true")
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}

func TestDialVXIRejectsMalformedReadSize(t *testing.T) {
	_, err := Dial("vxi11://192.0.2.1?read_size=not-a-size")
	require.Error(t, err)
	assert.True(t, IsKind(err, InvalidArgument))
}
