package scpi

import (
	"bufio"
	"io"
	"net"
	"strings"
	"time"

	"github.com/benchdrv/scpigo/internal/logger"
	"github.com/benchdrv/scpigo/pkg/model"
)

// defaultTimeout is used when a TCPTransport's SetTimeout has never been
// called.
const defaultTimeout = 5 * time.Second

// TCPTransport speaks SCPI directly over a raw TCP socket, the simplest
// of the three wire protocols: no framing beyond newline-terminated
// ASCII lines and definite-length binary blocks.
type TCPTransport struct {
	conn    net.Conn
	r       *bufio.Reader
	timeout time.Duration
}

// DialTCP connects to addr (host:port) and returns a ready-to-use
// TCPTransport.
func DialTCP(addr string) (*TCPTransport, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, newError(IoError, "dial tcp transport", err)
	}
	return &TCPTransport{
		conn:    conn,
		r:       bufio.NewReader(conn),
		timeout: defaultTimeout,
	}, nil
}

func (t *TCPTransport) SetTimeout(d time.Duration) {
	t.timeout = d
}

func (t *TCPTransport) deadline() time.Time {
	if t.timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(t.timeout)
}

func (t *TCPTransport) Send(cmd string) error {
	cmd += "\r\n"
	if err := t.conn.SetWriteDeadline(t.deadline()); err != nil {
		return newError(IoError, "set write deadline", err)
	}
	if _, err := io.WriteString(t.conn, cmd); err != nil {
		return newError(IoError, "write command", err)
	}
	logger.Debug("scpi tcp send", logger.Endpoint(t.conn.RemoteAddr().String()), logger.BytesWritten(len(cmd)))
	return nil
}

func (t *TCPTransport) Recv() (string, error) {
	if err := t.conn.SetReadDeadline(t.deadline()); err != nil {
		return "", newError(IoError, "set read deadline", err)
	}
	line, err := t.r.ReadString('\n')
	if err != nil {
		if isTimeout(err) {
			return "", newError(Timeout, "recv line", err)
		}
		return "", newError(IoError, "recv line", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (t *TCPTransport) RecvUntil(delim byte) ([]byte, error) {
	if err := t.conn.SetReadDeadline(t.deadline()); err != nil {
		return nil, newError(IoError, "set read deadline", err)
	}
	data, err := t.r.ReadBytes(delim)
	if err != nil {
		if isTimeout(err) {
			return nil, newError(Timeout, "recv until delimiter", err)
		}
		return nil, newError(IoError, "recv until delimiter", err)
	}
	return data, nil
}

func (t *TCPTransport) RecvRaw(n int) ([]byte, error) {
	if err := t.conn.SetReadDeadline(t.deadline()); err != nil {
		return nil, newError(IoError, "set read deadline", err)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(t.r, buf); err != nil {
		if isTimeout(err) {
			return nil, newError(Timeout, "recv raw", err)
		}
		return nil, newError(IoError, "recv raw", err)
	}
	return buf, nil
}

// Query sends cmd and returns the line it elicits.
func (t *TCPTransport) Query(cmd string) (string, error) {
	return queryOn(t, cmd)
}

// FlushRx discards whatever is pending on the socket, reading until a
// read attempt times out with nothing received.
func (t *TCPTransport) FlushRx(timeout time.Duration) error {
	prev := t.timeout
	t.timeout = timeout
	defer func() { t.timeout = prev }()

	for {
		if err := t.conn.SetReadDeadline(t.deadline()); err != nil {
			return newError(IoError, "set read deadline", err)
		}
		buf := make([]byte, 4096)
		n, err := t.r.Read(buf)
		if n == 0 && err != nil {
			if isTimeout(err) {
				return nil
			}
			return newError(IoError, "flush rx", err)
		}
	}
}

// Identify queries "*IDN?" and returns the trimmed response.
func (t *TCPTransport) Identify() (string, error) {
	return identifyOn(t)
}

// IdnModel queries "*IDN?" and parses the response into a structured
// instrument identity.
func (t *TCPTransport) IdnModel() (model.Info, error) {
	return idnModelOn(t)
}

func (t *TCPTransport) Close() error {
	return t.conn.Close()
}

func isTimeout(err error) bool {
	ne, ok := err.(net.Error)
	return ok && ne.Timeout()
}
