// Package scpi provides a transport-agnostic handle for talking SCPI to
// lab instruments over raw TCP, VXI-11, or a serial port, and a URI
// dispatcher that picks the right one.
//
// Per-vendor command composition, unit scaling, and a CLI are built on
// top of this package elsewhere; scpi itself only moves bytes.
package scpi

import (
	"fmt"
	"strings"
	"time"

	"github.com/benchdrv/scpigo/pkg/model"
)

// Transport is the common handle every SCPI wire protocol implements.
// Send writes a command string with a trailing "\r\n" appended. Recv
// reads a single response, and RecvUntil/RecvRaw support the binary
// block-data and streaming cases SCPI's query responses sometimes need.
//
// A Transport is not safe for concurrent Send/Recv calls from multiple
// goroutines; callers that share one across goroutines must serialize
// their own access.
type Transport interface {
	// Send writes cmd to the instrument, appending "\r\n".
	Send(cmd string) error

	// Recv reads a single response with any trailing "\r\n" removed: one
	// newline-terminated line on TCP and serial, one device_read sequence
	// up to END on VXI-11.
	Recv() (string, error)

	// RecvUntil reads until delim is seen (inclusive) or the deadline
	// passed to SetTimeout elapses. VXITransport returns Unimplemented.
	RecvUntil(delim byte) ([]byte, error)

	// RecvRaw reads exactly n bytes. VXITransport returns Unimplemented.
	RecvRaw(n int) ([]byte, error)

	// Query sends cmd and returns the single response it elicits,
	// preserving the send-then-recv ordering against any other
	// traffic on this Transport.
	Query(cmd string) (string, error)

	// FlushRx discards whatever is pending on the receive side,
	// reading until no further data arrives within timeout. VXITransport
	// instead issues one device_read and discards it, ignoring timeout.
	FlushRx(timeout time.Duration) error

	// Identify queries "*IDN?" and returns the trimmed response.
	Identify() (string, error)

	// IdnModel queries "*IDN?" and parses the response into a
	// structured instrument identity.
	IdnModel() (model.Info, error)

	// SetTimeout bounds subsequent Recv/RecvUntil/RecvRaw calls. It has no
	// effect on VXITransport.
	SetTimeout(d time.Duration)

	// Close releases the underlying connection/link.
	Close() error
}

// queryOn implements Query in terms of a Transport's own Send/Recv, the
// shared behavior every wire protocol gives Query for free.
func queryOn(t Transport, cmd string) (string, error) {
	if err := t.Send(cmd); err != nil {
		return "", err
	}
	return t.Recv()
}

// identifyOn implements Identify as a "*IDN?" query with the response
// trimmed of surrounding whitespace.
func identifyOn(t Transport) (string, error) {
	resp, err := t.Query("*IDN?")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// idnModelOn implements IdnModel by running Identify and parsing the
// result with model.FromIDN.
func idnModelOn(t Transport) (model.Info, error) {
	idn, err := t.Identify()
	if err != nil {
		return model.Info{}, err
	}
	info, err := model.FromIDN(idn)
	if err != nil {
		return model.Info{}, newError(BadResponse, "parse *IDN? response", err)
	}
	return info, nil
}

// ErrorKind classifies why a Transport operation failed.
type ErrorKind int

const (
	Unspecified ErrorKind = iota
	InvalidArgument
	IoError
	Timeout
	BadResponse
	NotSupported
	Unimplemented
	Unhandled
)

func (k ErrorKind) String() string {
	switch k {
	case InvalidArgument:
		return "InvalidArgument"
	case IoError:
		return "IoError"
	case Timeout:
		return "Timeout"
	case BadResponse:
		return "BadResponse"
	case NotSupported:
		return "NotSupported"
	case Unimplemented:
		return "Unimplemented"
	case Unhandled:
		return "Unhandled"
	default:
		return "Unspecified"
	}
}

// Error is the error type every Transport implementation returns.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind ErrorKind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	if scpiErr, ok := err.(*Error); ok {
		return scpiErr.Kind == kind
	}
	return false
}
