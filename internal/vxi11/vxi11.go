// Package vxi11 implements the VXI-11.3 core device-link client: the RPC
// program that a LAN-connected instrument exposes for creating a link,
// writing/reading SCPI data, and tearing the link down again.
//
// This sits on top of internal/onc (ONC/RPC framing) and internal/portmap
// (resolving the core channel's TCP port); pkg/scpi's vxi transport is the
// only consumer.
package vxi11

import (
	"bytes"
	"fmt"

	"github.com/benchdrv/scpigo/internal/bytesize"
	"github.com/benchdrv/scpigo/internal/logger"
	"github.com/benchdrv/scpigo/internal/onc"
	"github.com/benchdrv/scpigo/internal/portmap"
	"github.com/benchdrv/scpigo/internal/xdr"
)

// Core, abort, and interrupt channel program/version numbers
// (VXI-11.3 Section B, core vs. async channels).
const (
	CoreProg      = 395183
	CoreVers      = 1
	AbortProg     = 395184
	AbortVers     = 1
	InterruptProg = 395185
	InterruptVers = 1
)

// Procedure numbers within the core device program. Several of these
// (abort/trigger/clear/lock/unlock/enable_srq/do_cmd, intr channel
// create/destroy, intr_srq) are enumerated here for completeness and
// correct wire framing even though this client only exercises
// create_link/device_write/device_read/destroy_link.
const (
	procDeviceAbort        = 1
	procCreateLink         = 10
	procDeviceWrite        = 11
	procDeviceRead         = 12
	procDeviceReadStb      = 13
	procDeviceTrigger      = 14
	procDeviceClear        = 15
	procDeviceRemote       = 16
	procDeviceLocal        = 17
	procDeviceLock         = 18
	procDeviceUnlock       = 19
	procDeviceEnableSRQ    = 20
	procDeviceDoCmd        = 22
	procDestroyLink        = 23
	procCreateIntrChan     = 25
	procDestroyIntrChan    = 26
	procDeviceIntrSRQ      = 30
)

// ErrorCode is the VXI-11 device_error code returned in every response
// (VXI-11.3 Table B.2).
type ErrorCode uint32

const (
	NoError                 ErrorCode = 0
	SyntaxError             ErrorCode = 1
	DeviceNotAccessible     ErrorCode = 3
	InvalidLinkIdentifier   ErrorCode = 4
	ParameterError          ErrorCode = 5
	ChannelNotEstablished   ErrorCode = 6
	OperationNotSupported   ErrorCode = 8
	OutOfResources          ErrorCode = 9
	DeviceLockedByAnother   ErrorCode = 11
	NoLockHeldByThisLink    ErrorCode = 12
	IOTimeoutError          ErrorCode = 15
	IOError                 ErrorCode = 17
	InvalidAddress          ErrorCode = 21
	AbortError              ErrorCode = 23
	ChannelAlreadyEstablished ErrorCode = 29
)

func (c ErrorCode) String() string {
	switch c {
	case NoError:
		return "no error"
	case SyntaxError:
		return "syntax error"
	case DeviceNotAccessible:
		return "device not accessible"
	case InvalidLinkIdentifier:
		return "invalid link identifier"
	case ParameterError:
		return "parameter error"
	case ChannelNotEstablished:
		return "channel not established"
	case OperationNotSupported:
		return "operation not supported"
	case OutOfResources:
		return "out of resources"
	case DeviceLockedByAnother:
		return "device locked by another link"
	case NoLockHeldByThisLink:
		return "no lock held by this link"
	case IOTimeoutError:
		return "I/O timeout"
	case IOError:
		return "I/O error"
	case InvalidAddress:
		return "invalid address"
	case AbortError:
		return "abort"
	case ChannelAlreadyEstablished:
		return "channel already established"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(c))
	}
}

// operationFlags are the bit-packed flags sent with device_write and
// device_read requests (VXI-11.3 Table B.3). Note this layout is
// distinct from ReadReason below despite sharing a "flags" shape.
type operationFlags struct {
	waitLock  bool // bit 0
	end       bool // bit 3
	termCharSet bool // bit 7
}

func (f operationFlags) encode() uint32 {
	var v uint32
	if f.waitLock {
		v |= 1 << 0
	}
	if f.end {
		v |= 1 << 3
	}
	if f.termCharSet {
		v |= 1 << 7
	}
	return v
}

// ReadReason reports why a device_read response ended (VXI-11.3 Table B.5):
// the requested byte count was satisfied, a termination character was
// seen, or an END indicator arrived with the data.
type ReadReason struct {
	ReqCountReached bool // bit 0
	TermCharSeen    bool // bit 1
	End             bool // bit 2
}

func decodeReadReason(v uint32) ReadReason {
	return ReadReason{
		ReqCountReached: v&(1<<0) != 0,
		TermCharSeen:    v&(1<<1) != 0,
		End:             v&(1<<2) != 0,
	}
}

// maxWriteChunk is the fallback write chunk size used when create_link
// reported a max_recv_size of 0.
const maxWriteChunk = 1 << 16

// Options configures a Client.
type Options struct {
	ClientID    int32             // client_id sent in create_link; default 1
	LockTimeout uint32            // milliseconds; default 10000
	IOTimeout   uint32            // milliseconds; default 10000
	ReadSize    bytesize.ByteSize // device_read request_size; default 64KiB
	LockDevice  bool              // request exclusive lock on create_link
}

// DefaultOptions matches the reference client's constants.
func DefaultOptions() Options {
	return Options{
		ClientID:    1,
		LockTimeout: 10000,
		IOTimeout:   10000,
		ReadSize:    64 * bytesize.KiB,
	}
}

// Link is an established VXI-11 device link: the handle returned by
// create_link, bound to the core channel's ONC/RPC client.
type Link struct {
	core   *onc.Client
	opts   Options
	lid    int32
	maxRecv uint32
}

// Dial resolves the VXI-11 core channel's port via the portmapper at
// host, opens it, and creates a device link for the named device
// (conventionally "inst0").
func Dial(host, device string, opts Options) (*Link, error) {
	port, err := portmap.GetPort(host, CoreProg, CoreVers, portmap.ProtoTCP)
	if err != nil {
		return nil, fmt.Errorf("resolve vxi-11 core port: %w", err)
	}
	if port == 0 {
		return nil, fmt.Errorf("vxi-11 core channel not registered on %s", host)
	}

	core, err := onc.Dial("tcp", fmt.Sprintf("%s:%d", host, port))
	if err != nil {
		return nil, fmt.Errorf("dial vxi-11 core channel: %w", err)
	}

	link, err := createLink(core, device, opts)
	if err != nil {
		core.Close()
		return nil, err
	}
	return link, nil
}

func createLink(core *onc.Client, device string, opts Options) (*Link, error) {
	var args bytes.Buffer
	if err := xdr.WriteInt32(&args, opts.ClientID); err != nil {
		return nil, err
	}
	if err := xdr.WriteBool(&args, opts.LockDevice); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&args, opts.LockTimeout); err != nil {
		return nil, err
	}
	if err := xdr.WriteXDRString(&args, device); err != nil {
		return nil, err
	}

	reply, err := core.Call(CoreProg, CoreVers, procCreateLink, args.Bytes())
	if err != nil {
		return nil, fmt.Errorf("create_link call: %w", err)
	}
	result, err := reply.SuccessResult()
	if err != nil {
		return nil, fmt.Errorf("create_link: %w", err)
	}

	r := bytes.NewReader(result)
	errCode, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("create_link error code: %w", err)
	}
	if ErrorCode(errCode) != NoError {
		return nil, fmt.Errorf("create_link failed: %s", ErrorCode(errCode))
	}
	lid, err := xdr.DecodeInt32(r)
	if err != nil {
		return nil, fmt.Errorf("create_link lid: %w", err)
	}
	_, err = xdr.DecodeUint16(r) // abort_port, unused: this client never sends DEVICE_ABORT
	if err != nil {
		return nil, fmt.Errorf("create_link abort_port: %w", err)
	}
	maxRecv, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("create_link max_recv_size: %w", err)
	}

	logger.Debug("vxi-11 link created", logger.LinkID(lid), logger.DeviceName(device))

	return &Link{core: core, opts: opts, lid: lid, maxRecv: maxRecv}, nil
}

// Write sends data to the device, chunking at maxRecv (or maxWriteChunk
// if the instrument reported 0) and setting the END flag only on the
// final chunk, per VXI-11.3 Section B.1.3.
func (l *Link) Write(data []byte) error {
	chunkSize := int(l.maxRecv)
	if chunkSize <= 0 {
		chunkSize = maxWriteChunk
	}

	if len(data) == 0 {
		return l.writeChunk(nil, true)
	}

	for offset := 0; offset < len(data); offset += chunkSize {
		end := offset + chunkSize
		isLast := end >= len(data)
		if end > len(data) {
			end = len(data)
		}
		if err := l.writeChunk(data[offset:end], isLast); err != nil {
			return err
		}
	}
	return nil
}

func (l *Link) writeChunk(chunk []byte, end bool) error {
	var args bytes.Buffer
	if err := xdr.WriteInt32(&args, l.lid); err != nil {
		return err
	}
	if err := xdr.WriteUint32(&args, l.opts.IOTimeout); err != nil {
		return err
	}
	if err := xdr.WriteUint32(&args, l.opts.LockTimeout); err != nil {
		return err
	}
	flags := operationFlags{end: end}
	if err := xdr.WriteUint32(&args, flags.encode()); err != nil {
		return err
	}
	if err := xdr.WriteXDROpaque(&args, chunk); err != nil {
		return err
	}

	reply, err := l.core.Call(CoreProg, CoreVers, procDeviceWrite, args.Bytes())
	if err != nil {
		return fmt.Errorf("device_write call: %w", err)
	}
	result, err := reply.SuccessResult()
	if err != nil {
		return fmt.Errorf("device_write: %w", err)
	}

	r := bytes.NewReader(result)
	errCode, err := xdr.DecodeUint32(r)
	if err != nil {
		return fmt.Errorf("device_write error code: %w", err)
	}
	if ErrorCode(errCode) != NoError {
		return fmt.Errorf("device_write failed: %s", ErrorCode(errCode))
	}
	if _, err := xdr.DecodeUint32(r); err != nil { // size, not currently surfaced
		return fmt.Errorf("device_write size: %w", err)
	}

	logger.Debug("vxi-11 device_write", logger.LinkID(l.lid), logger.BytesWritten(len(chunk)), logger.End(end))
	return nil
}

// Read reads response data from the device, repeating device_read calls
// until a response carries the END reason, and concatenating the
// payloads in order.
func (l *Link) Read() ([]byte, error) {
	var out bytes.Buffer
	for {
		chunk, reason, err := l.readOnce()
		if err != nil {
			return nil, err
		}
		out.Write(chunk)
		if reason.End {
			return out.Bytes(), nil
		}
	}
}

func (l *Link) readOnce() ([]byte, ReadReason, error) {
	requestSize := l.opts.ReadSize
	if requestSize == 0 {
		requestSize = DefaultOptions().ReadSize
	}
	if requestSize.Uint64() > 0xFFFFFFFF {
		return nil, ReadReason{}, fmt.Errorf("read size %s exceeds uint32 range", requestSize)
	}

	var args bytes.Buffer
	if err := xdr.WriteInt32(&args, l.lid); err != nil {
		return nil, ReadReason{}, err
	}
	if err := xdr.WriteUint32(&args, uint32(requestSize)); err != nil {
		return nil, ReadReason{}, err
	}
	if err := xdr.WriteUint32(&args, l.opts.IOTimeout); err != nil {
		return nil, ReadReason{}, err
	}
	if err := xdr.WriteUint32(&args, l.opts.LockTimeout); err != nil {
		return nil, ReadReason{}, err
	}
	flags := operationFlags{} // no termchr requested
	if err := xdr.WriteUint32(&args, flags.encode()); err != nil {
		return nil, ReadReason{}, err
	}
	if err := xdr.WriteUint32(&args, 0); err != nil { // termChar, unused since termCharSet is false
		return nil, ReadReason{}, err
	}

	reply, err := l.core.Call(CoreProg, CoreVers, procDeviceRead, args.Bytes())
	if err != nil {
		return nil, ReadReason{}, fmt.Errorf("device_read call: %w", err)
	}
	result, err := reply.SuccessResult()
	if err != nil {
		return nil, ReadReason{}, fmt.Errorf("device_read: %w", err)
	}

	r := bytes.NewReader(result)
	errCode, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, ReadReason{}, fmt.Errorf("device_read error code: %w", err)
	}
	if ErrorCode(errCode) != NoError {
		return nil, ReadReason{}, fmt.Errorf("device_read failed: %s", ErrorCode(errCode))
	}
	rawReason, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, ReadReason{}, fmt.Errorf("device_read reason: %w", err)
	}
	data, err := xdr.DecodeOpaque(r)
	if err != nil {
		return nil, ReadReason{}, fmt.Errorf("device_read data: %w", err)
	}

	reason := decodeReadReason(rawReason)
	logger.Debug("vxi-11 device_read", logger.LinkID(l.lid), logger.BytesRead(len(data)), logger.End(reason.End))
	return data, reason, nil
}

// Close destroys the device link and closes the underlying connection.
// destroy_link is best-effort: failures are logged, not returned, since
// the caller is tearing the connection down regardless.
func (l *Link) Close() error {
	var args bytes.Buffer
	if err := xdr.WriteInt32(&args, l.lid); err == nil {
		if reply, err := l.core.Call(CoreProg, CoreVers, procDestroyLink, args.Bytes()); err != nil {
			logger.Warn("destroy_link call failed", logger.Err(err))
		} else if _, err := reply.SuccessResult(); err != nil {
			logger.Warn("destroy_link rejected", logger.Err(err))
		}
	}
	return l.core.Close()
}
