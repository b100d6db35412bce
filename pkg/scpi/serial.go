package scpi

import (
	"bytes"
	"errors"
	"time"

	goserial "github.com/tarm/serial"

	"github.com/benchdrv/scpigo/internal/logger"
	"github.com/benchdrv/scpigo/pkg/model"
)

// pollInterval bounds each individual read attempt so RecvUntil/RecvRaw
// can periodically recheck the overall deadline. github.com/tarm/serial
// has no per-call deadline of its own (only the fixed ReadTimeout set at
// open time), so SerialTransport re-opens that gap itself, the same way
// the reference portmap UDP server re-checks shutdown around a short
// per-read deadline instead of blocking indefinitely.
const pollInterval = 100 * time.Millisecond

// SerialTransport speaks SCPI over an RS-232 serial port.
type SerialTransport struct {
	port    *goserial.Port
	name    string
	timeout time.Duration
	buf     bytes.Buffer
}

// DialSerial opens the named serial port at the given baud rate.
func DialSerial(name string, baud int) (*SerialTransport, error) {
	cfg := &goserial.Config{
		Name:        name,
		Baud:        baud,
		ReadTimeout: pollInterval,
	}
	port, err := goserial.OpenPort(cfg)
	if err != nil {
		return nil, newError(IoError, "open serial port "+name, err)
	}
	return &SerialTransport{port: port, name: name, timeout: defaultTimeout}, nil
}

func (t *SerialTransport) SetTimeout(d time.Duration) {
	t.timeout = d
}

func (t *SerialTransport) Send(cmd string) error {
	cmd += "\r\n"
	if _, err := t.port.Write([]byte(cmd)); err != nil {
		return newError(IoError, "write serial command", err)
	}
	logger.Debug("scpi serial send", logger.Endpoint(t.name), logger.BytesWritten(len(cmd)))
	return nil
}

func (t *SerialTransport) Recv() (string, error) {
	line, err := t.recvUntilDeadline('\n')
	if err != nil {
		return "", err
	}
	return string(bytes.TrimRight(line, "\r\n")), nil
}

func (t *SerialTransport) RecvUntil(delim byte) ([]byte, error) {
	return t.recvUntilDeadline(delim)
}

func (t *SerialTransport) RecvRaw(n int) ([]byte, error) {
	deadline := t.pollDeadline()
	for t.buf.Len() < n {
		if err := t.fill(deadline); err != nil {
			return nil, err
		}
	}
	out := make([]byte, n)
	if _, err := t.buf.Read(out); err != nil {
		return nil, newError(IoError, "drain serial buffer", err)
	}
	return out, nil
}

func (t *SerialTransport) recvUntilDeadline(delim byte) ([]byte, error) {
	deadline := t.pollDeadline()
	for {
		data := t.buf.Bytes()
		if idx := bytes.IndexByte(data, delim); idx >= 0 {
			out := make([]byte, idx+1)
			copy(out, data[:idx+1])
			t.buf.Next(idx + 1)
			return out, nil
		}
		if err := t.fill(deadline); err != nil {
			return nil, err
		}
	}
}

func (t *SerialTransport) pollDeadline() time.Time {
	if t.timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(t.timeout)
}

// fill reads one poll-interval's worth of bytes into the internal
// buffer, returning a Timeout error once deadline has passed with
// nothing new read.
func (t *SerialTransport) fill(deadline time.Time) error {
	chunk := make([]byte, 256)
	n, err := t.port.Read(chunk)
	if n > 0 {
		t.buf.Write(chunk[:n])
		return nil
	}
	if err != nil && !errors.Is(err, errReadTimeout) {
		return newError(IoError, "read serial port", err)
	}
	if !deadline.IsZero() && time.Now().After(deadline) {
		return newError(Timeout, "recv on serial port "+t.name, nil)
	}
	return nil
}

// errReadTimeout is a sentinel comparable against whatever the
// underlying driver reports for its own ReadTimeout elapsing; tarm/serial
// returns (0, nil) on a plain timeout rather than a distinguishable
// error, so this is never actually matched - it exists so this file's
// timeout handling reads the same way as the rest of the package's.
var errReadTimeout = errors.New("serial read timeout")

// Query sends cmd and returns the line it elicits.
func (t *SerialTransport) Query(cmd string) (string, error) {
	return queryOn(t, cmd)
}

// FlushRx discards whatever is pending on the port, reading until no new
// data has arrived for timeout.
func (t *SerialTransport) FlushRx(timeout time.Duration) error {
	prev := t.timeout
	t.timeout = timeout
	defer func() { t.timeout = prev }()

	t.buf.Reset()
	deadline := t.pollDeadline()
	for {
		if err := t.fill(deadline); err != nil {
			if IsKind(err, Timeout) {
				return nil
			}
			return err
		}
		if t.buf.Len() > 0 {
			t.buf.Reset()
			deadline = t.pollDeadline()
		}
	}
}

// Identify queries "*IDN?" and returns the trimmed response.
func (t *SerialTransport) Identify() (string, error) {
	return identifyOn(t)
}

// IdnModel queries "*IDN?" and parses the response into a structured
// instrument identity.
func (t *SerialTransport) IdnModel() (model.Info, error) {
	return idnModelOn(t)
}

func (t *SerialTransport) Close() error {
	return t.port.Close()
}
