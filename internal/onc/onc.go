// Package onc implements a client for Sun ONC/RPC (RFC 5531) over a
// stream transport, with the record-marking fragmentation defined for
// RPC over TCP/"byte stream" transports.
//
// This is the transport layer VXI-11 and Portmap/rpcbind are both built
// on: a CALL message is sent as one or more record-marked fragments, and
// the matching REPLY is read back by transaction id (xid). Only one RPC
// may be outstanding per Client at a time.
package onc

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"sync"

	"github.com/benchdrv/scpigo/internal/logger"
	"github.com/benchdrv/scpigo/internal/xdr"
	"github.com/benchdrv/scpigo/pkg/bufpool"
)

// RPCVersion is the ONC/RPC protocol version this client speaks.
const RPCVersion = 2

// lastFragmentBit marks the final fragment of an RPC record in the
// 4-byte record-marking header (RFC 5531 Section 11).
const lastFragmentBit = 0x80000000

// maxFragmentSize bounds a single record-marking fragment. VXI-11 and
// Portmap replies are always small; this guards against a misbehaving
// peer claiming an enormous length.
const maxFragmentSize = 4 * 1024 * 1024

// AuthFlavor identifies an ONC/RPC authentication flavor (RFC 5531
// Section 8.2). Numbering here matches what this module's device-link
// peers actually send: AuthNull is the only flavor exercised end to end.
type AuthFlavor uint32

const (
	AuthNull      AuthFlavor = 0
	AuthSys       AuthFlavor = 1
	AuthShort     AuthFlavor = 2
	AuthDH        AuthFlavor = 3
	AuthRPCSecGSS AuthFlavor = 6
)

// OpaqueAuth is the credential/verifier structure carried in every CALL
// and REPLY (RFC 5531 Section 8.1).
type OpaqueAuth struct {
	Flavor AuthFlavor
	Body   []byte
}

// NullAuth returns the zero-length AUTH_NONE credential/verifier used by
// every call this client makes; the instruments this module targets
// accept anonymous ONC/RPC auth.
func NullAuth() OpaqueAuth {
	return OpaqueAuth{Flavor: AuthNull}
}

func (a OpaqueAuth) encode(buf *bytes.Buffer) error {
	if err := xdr.WriteUint32(buf, uint32(a.Flavor)); err != nil {
		return err
	}
	return xdr.WriteXDROpaque(buf, a.Body)
}

func decodeOpaqueAuth(r io.Reader) (OpaqueAuth, error) {
	flavor, err := xdr.DecodeUint32(r)
	if err != nil {
		return OpaqueAuth{}, fmt.Errorf("auth flavor: %w", err)
	}
	body, err := xdr.DecodeOpaque(r)
	if err != nil {
		return OpaqueAuth{}, fmt.Errorf("auth body: %w", err)
	}
	return OpaqueAuth{Flavor: AuthFlavor(flavor), Body: body}, nil
}

// AcceptStat is the accept_stat discriminant of an accepted reply
// (RFC 5531 Section 12.12.3).
type AcceptStat uint32

const (
	Success      AcceptStat = 0
	ProgUnavail  AcceptStat = 1
	ProgMismatch AcceptStat = 2
	ProcUnavail  AcceptStat = 3
	GarbageArgs  AcceptStat = 4
	SystemErr    AcceptStat = 5
)

func (s AcceptStat) String() string {
	switch s {
	case Success:
		return "SUCCESS"
	case ProgUnavail:
		return "PROG_UNAVAIL"
	case ProgMismatch:
		return "PROG_MISMATCH"
	case ProcUnavail:
		return "PROC_UNAVAIL"
	case GarbageArgs:
		return "GARBAGE_ARGS"
	case SystemErr:
		return "SYSTEM_ERR"
	default:
		return fmt.Sprintf("AcceptStat(%d)", uint32(s))
	}
}

// RejectStat is the reject_stat discriminant of a rejected reply
// (RFC 5531 Section 12.12.4).
type RejectStat uint32

const (
	RPCMismatch RejectStat = 0
	AuthError   RejectStat = 1
)

// AuthStat is the auth_stat enumeration carried by a rejected reply whose
// RejectStat is AuthError (RFC 5531 Section 12.12.4).
type AuthStat uint32

const (
	AuthOk                AuthStat = 0
	AuthBadCred           AuthStat = 1
	AuthRejectedCred      AuthStat = 2
	AuthBadVerf           AuthStat = 3
	AuthRejectedVerf      AuthStat = 4
	AuthTooWeak           AuthStat = 5
	AuthInvalidResp       AuthStat = 6
	AuthFailed            AuthStat = 7
	AuthKerbGeneric       AuthStat = 8
	AuthTimeExpire        AuthStat = 9
	AuthTktFile           AuthStat = 10
	AuthDecode            AuthStat = 11
	AuthNetAddr           AuthStat = 12
	RpcSecGSSCredProblem  AuthStat = 13
	RpcSecGSSCtxProblem   AuthStat = 14
)

func (s AuthStat) String() string {
	switch s {
	case AuthOk:
		return "AUTH_OK"
	case AuthBadCred:
		return "AUTH_BADCRED"
	case AuthRejectedCred:
		return "AUTH_REJECTEDCRED"
	case AuthBadVerf:
		return "AUTH_BADVERF"
	case AuthRejectedVerf:
		return "AUTH_REJECTEDVERF"
	case AuthTooWeak:
		return "AUTH_TOOWEAK"
	case AuthInvalidResp:
		return "AUTH_INVALIDRESP"
	case AuthFailed:
		return "AUTH_FAILED"
	case AuthKerbGeneric:
		return "AUTH_KERB_GENERIC"
	case AuthTimeExpire:
		return "AUTH_TIMEEXPIRE"
	case AuthTktFile:
		return "AUTH_TKTFILE"
	case AuthDecode:
		return "AUTH_DECODE"
	case AuthNetAddr:
		return "AUTH_NETADDR"
	case RpcSecGSSCredProblem:
		return "RPCSEC_GSS_CREDPROBLEM"
	case RpcSecGSSCtxProblem:
		return "RPCSEC_GSS_CTXPROBLEM"
	default:
		return fmt.Sprintf("AuthStat(%d)", uint32(s))
	}
}

// Reply is a fully decoded ONC/RPC reply message.
type Reply struct {
	XID uint32

	Rejected   bool
	RejectStat RejectStat // valid when Rejected
	AuthStat   AuthStat   // valid when Rejected && RejectStat == AuthError

	AcceptStat AcceptStat // valid when !Rejected
	Low, High  uint32     // valid when AcceptStat == ProgMismatch, or Rejected && RejectStat == RPCMismatch
	Verifier   OpaqueAuth

	// Results holds the still-encoded procedure-specific result payload.
	// Valid only when AcceptStat == Success.
	Results []byte
}

// SuccessResult returns the procedure result payload, or an error
// describing why the call did not succeed.
func (r *Reply) SuccessResult() ([]byte, error) {
	if r.Rejected {
		if r.RejectStat == AuthError {
			return nil, fmt.Errorf("rpc call rejected: auth error (%s)", r.AuthStat)
		}
		return nil, fmt.Errorf("rpc call rejected: rpc version mismatch (%d-%d)", r.Low, r.High)
	}
	if r.AcceptStat != Success {
		if r.AcceptStat == ProgMismatch {
			return nil, fmt.Errorf("rpc call failed: %s (%d-%d)", r.AcceptStat, r.Low, r.High)
		}
		return nil, fmt.Errorf("rpc call failed: %s", r.AcceptStat)
	}
	return r.Results, nil
}

// Client is a single ONC/RPC connection. It serializes request/response
// pairs with a mutex: writing the CALL and reading the matching REPLY
// happen under the same lock, exactly as on the wire only one call may
// be outstanding at a time.
type Client struct {
	conn net.Conn

	mu      sync.Mutex
	lastXID uint32
}

// NewClient wraps an already-connected net.Conn. The caller owns conn's
// lifetime; Close closes it.
func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

// Dial opens a TCP connection to addr and wraps it as a Client.
func Dial(network, addr string) (*Client, error) {
	conn, err := net.Dial(network, addr)
	if err != nil {
		return nil, err
	}
	return NewClient(conn), nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Call issues an ONC/RPC CALL for (prog, vers, proc) with args already
// XDR-encoded, and returns the decoded reply. xid is chosen by the
// client and incremented after each call whose matching reply was read;
// a call that fails leaves it unchanged.
func (c *Client) Call(prog, vers, proc uint32, args []byte) (*Reply, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	xid := c.lastXID
	packet, err := buildCallPacket(xid, prog, vers, proc, args)
	if err != nil {
		return nil, fmt.Errorf("build call: %w", err)
	}

	if err := writeFragment(c.conn, packet); err != nil {
		return nil, fmt.Errorf("write call: %w", err)
	}

	reply, err := c.readMatchingReply(xid)
	if err != nil {
		return nil, err
	}

	c.lastXID++
	return reply, nil
}

func buildCallPacket(xid, prog, vers, proc uint32, args []byte) ([]byte, error) {
	var buf bytes.Buffer
	if err := xdr.WriteUint32(&buf, xid); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, 0); err != nil { // msg_type = CALL
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, RPCVersion); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, prog); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, vers); err != nil {
		return nil, err
	}
	if err := xdr.WriteUint32(&buf, proc); err != nil {
		return nil, err
	}
	if err := NullAuth().encode(&buf); err != nil { // cred
		return nil, err
	}
	if err := NullAuth().encode(&buf); err != nil { // verf
		return nil, err
	}
	buf.Write(args)
	return buf.Bytes(), nil
}

// readMatchingReply reads fragments until a last-fragment reply with the
// expected xid is seen, discarding and logging replies with any other
// xid. A message that cannot be decoded as a reply fails the call. This
// mirrors how the reference client tolerates a stray reply to a
// previous, already-abandoned call.
func (c *Client) readMatchingReply(xid uint32) (*Reply, error) {
	for {
		body, err := readFragmentedMessage(c.conn)
		if err != nil {
			return nil, fmt.Errorf("read reply: %w", err)
		}

		reply, err := decodeReply(body)
		if err != nil {
			return nil, fmt.Errorf("decode reply: %w", err)
		}

		if reply.XID != xid {
			logger.Warn("discarding rpc reply with unexpected xid",
				logger.XID(reply.XID))
			continue
		}

		return reply, nil
	}
}

// writeFragment sends data as a single last-fragment record-marked
// message (RFC 5531 Section 11). Callers never need more than one
// fragment: VXI-11 request bodies are small even for maximum-size
// device_write payloads, since those are chunked at the VXI-11 layer
// instead of at the RPC record-marking layer.
func writeFragment(w io.Writer, data []byte) error {
	if len(data) > maxFragmentSize {
		return fmt.Errorf("fragment of %d bytes exceeds maximum %d", len(data), maxFragmentSize)
	}
	header := make([]byte, 4)
	binary.BigEndian.PutUint32(header, uint32(len(data))|lastFragmentBit)
	if _, err := w.Write(header); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

// readFragmentedMessage reads one or more record-marking fragments and
// concatenates them into a single RPC message body.
func readFragmentedMessage(r io.Reader) ([]byte, error) {
	var body bytes.Buffer
	for {
		var header [4]byte
		if _, err := io.ReadFull(r, header[:]); err != nil {
			return nil, err
		}
		raw := binary.BigEndian.Uint32(header[:])
		isLast := raw&lastFragmentBit != 0
		length := raw &^ lastFragmentBit

		if length > maxFragmentSize {
			return nil, fmt.Errorf("fragment length %d exceeds maximum %d", length, maxFragmentSize)
		}

		chunk := bufpool.GetUint32(length)
		_, err := io.ReadFull(r, chunk)
		if err == nil {
			body.Write(chunk)
		}
		bufpool.Put(chunk)
		if err != nil {
			return nil, err
		}

		if isLast {
			return body.Bytes(), nil
		}
	}
}

func decodeReply(body []byte) (*Reply, error) {
	r := bytes.NewReader(body)

	xid, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("xid: %w", err)
	}
	msgType, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("msg_type: %w", err)
	}
	if msgType != 1 {
		return nil, fmt.Errorf("expected REPLY (1), got msg_type %d", msgType)
	}

	replyStat, err := xdr.DecodeUint32(r)
	if err != nil {
		return nil, fmt.Errorf("reply_stat: %w", err)
	}

	reply := &Reply{XID: xid}

	switch replyStat {
	case 0: // MSG_ACCEPTED
		verf, err := decodeOpaqueAuth(r)
		if err != nil {
			return nil, fmt.Errorf("verf: %w", err)
		}
		reply.Verifier = verf

		stat, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("accept_stat: %w", err)
		}
		reply.AcceptStat = AcceptStat(stat)

		switch reply.AcceptStat {
		case Success:
			rest, err := io.ReadAll(r)
			if err != nil {
				return nil, fmt.Errorf("results: %w", err)
			}
			reply.Results = rest
		case ProgMismatch:
			low, err := xdr.DecodeUint32(r)
			if err != nil {
				return nil, fmt.Errorf("mismatch_info.low: %w", err)
			}
			high, err := xdr.DecodeUint32(r)
			if err != nil {
				return nil, fmt.Errorf("mismatch_info.high: %w", err)
			}
			reply.Low, reply.High = low, high
		}

	case 1: // MSG_DENIED
		reply.Rejected = true
		stat, err := xdr.DecodeUint32(r)
		if err != nil {
			return nil, fmt.Errorf("reject_stat: %w", err)
		}
		reply.RejectStat = RejectStat(stat)

		switch reply.RejectStat {
		case RPCMismatch:
			low, err := xdr.DecodeUint32(r)
			if err != nil {
				return nil, fmt.Errorf("mismatch_info.low: %w", err)
			}
			high, err := xdr.DecodeUint32(r)
			if err != nil {
				return nil, fmt.Errorf("mismatch_info.high: %w", err)
			}
			reply.Low, reply.High = low, high
		case AuthError:
			authStat, err := xdr.DecodeUint32(r)
			if err != nil {
				return nil, fmt.Errorf("auth_stat: %w", err)
			}
			reply.AuthStat = AuthStat(authStat)
		}

	default:
		return nil, fmt.Errorf("unknown reply_stat %d", replyStat)
	}

	return reply, nil
}
