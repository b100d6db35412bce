package scpi

import (
	"strings"
	"time"

	"github.com/benchdrv/scpigo/internal/vxi11"
	"github.com/benchdrv/scpigo/pkg/model"
)

// VXITransport speaks SCPI over a VXI-11 core channel device link. Each
// Send is one device_write, each Recv is one device_read loop to END;
// there's no underlying byte stream to partially drain the way
// RecvUntil/RecvRaw do on TCP and serial, so this transport only
// supports whole-response Recv, matching the reference driver's
// ScpiVxiProtocol (which never implements recv_until/recv_raw either).
type VXITransport struct {
	link *vxi11.Link
}

// DialVXI resolves the VXI-11 core channel on host via the portmapper
// and creates a device link for the named device (conventionally
// "inst0"), using the default link options.
func DialVXI(host, device string) (*VXITransport, error) {
	return DialVXIOptions(host, device, vxi11.DefaultOptions())
}

// DialVXIOptions is DialVXI with caller-supplied link options, e.g. a
// non-default device_read request size.
func DialVXIOptions(host, device string, opts vxi11.Options) (*VXITransport, error) {
	link, err := vxi11.Dial(host, device, opts)
	if err != nil {
		return nil, newError(IoError, "dial vxi-11 transport", err)
	}
	return &VXITransport{link: link}, nil
}

// SetTimeout is a no-op: internal/vxi11 bakes its I/O timeout into the
// device_write/device_read requests themselves via vxi11.Options,
// decided at Dial time rather than adjustable per call.
func (t *VXITransport) SetTimeout(time.Duration) {}

func (t *VXITransport) Send(cmd string) error {
	cmd += "\r\n"
	if err := t.link.Write([]byte(cmd)); err != nil {
		return newError(IoError, "vxi-11 device_write", err)
	}
	return nil
}

func (t *VXITransport) Recv() (string, error) {
	data, err := t.link.Read()
	if err != nil {
		return "", newError(IoError, "vxi-11 device_read", err)
	}
	return strings.TrimRight(string(data), "\r\n"), nil
}

func (t *VXITransport) RecvUntil(byte) ([]byte, error) {
	return nil, newError(Unimplemented, "RecvUntil is not supported over the vxi-11 transport", nil)
}

func (t *VXITransport) RecvRaw(int) ([]byte, error) {
	return nil, newError(Unimplemented, "RecvRaw is not supported over the vxi-11 transport", nil)
}

// Query sends cmd and returns the response it elicits.
func (t *VXITransport) Query(cmd string) (string, error) {
	return queryOn(t, cmd)
}

// FlushRx issues a single device_read and discards whatever it
// returns; VXI-11 has no underlying byte stream to drain incrementally,
// so one Recv is all there is to flush.
func (t *VXITransport) FlushRx(time.Duration) error {
	if _, err := t.link.Read(); err != nil {
		return newError(IoError, "vxi-11 device_read", err)
	}
	return nil
}

// Identify queries "*IDN?" and returns the trimmed response.
func (t *VXITransport) Identify() (string, error) {
	return identifyOn(t)
}

// IdnModel queries "*IDN?" and parses the response into a structured
// instrument identity.
func (t *VXITransport) IdnModel() (model.Info, error) {
	return idnModelOn(t)
}

func (t *VXITransport) Close() error {
	return t.link.Close()
}
