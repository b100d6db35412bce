// Package portmap implements the client side of the RPC portmapper
// (rpcbind, RFC 1833 / the older RFC 1057 Appendix A), used by VXI-11 to
// resolve the TCP port a given (program, version) pair is listening on
// before opening the real device-link connection.
package portmap

import (
	"bytes"
	"fmt"

	"github.com/benchdrv/scpigo/internal/logger"
	"github.com/benchdrv/scpigo/internal/onc"
	"github.com/benchdrv/scpigo/internal/xdr"
)

// Program, version, and well-known port of the portmapper itself.
const (
	Program = 100000
	Version = 2
	Port    = 111
)

// Procedure numbers within the portmapper program (RFC 1057 Appendix A).
const (
	procNull    = 0
	procSet     = 1
	procUnset   = 2
	procGetPort = 3
	procDump    = 4
)

// Protocol identifies the transport a registered service listens on.
type Protocol uint32

const (
	ProtoTCP Protocol = 6
	ProtoUDP Protocol = 17
)

// Mapping is the (program, version, protocol, port) tuple the
// portmapper maps programs to.
type Mapping struct {
	Program  uint32
	Version  uint32
	Protocol Protocol
	Port     uint32
}

func (m Mapping) encode(buf *bytes.Buffer) error {
	if err := xdr.WriteUint32(buf, m.Program); err != nil {
		return err
	}
	if err := xdr.WriteUint32(buf, m.Version); err != nil {
		return err
	}
	if err := xdr.WriteUint32(buf, uint32(m.Protocol)); err != nil {
		return err
	}
	return xdr.WriteUint32(buf, m.Port)
}

// GetPort resolves the TCP port that (program, version) listens on at
// host, by dialing the portmapper at host:111, issuing GETPORT, and
// closing the connection. A result of 0 means the program is not
// registered.
func GetPort(host string, program, version uint32, proto Protocol) (uint32, error) {
	client, err := onc.Dial("tcp", fmt.Sprintf("%s:%d", host, Port))
	if err != nil {
		return 0, fmt.Errorf("dial portmapper: %w", err)
	}
	defer client.Close()

	port, err := getPortOn(client, program, version, proto)
	if err != nil {
		return 0, err
	}

	logger.Debug("resolved port via portmapper",
		logger.Program(program), logger.Version(version), logger.Endpoint(host))

	return port, nil
}

// getPortOn issues GETPORT over an already-connected client. Split out
// from GetPort so tests can point it at a loopback portmapper bound to
// an arbitrary port instead of the fixed well-known port 111.
func getPortOn(client *onc.Client, program, version uint32, proto Protocol) (uint32, error) {
	var args bytes.Buffer
	req := Mapping{Program: program, Version: version, Protocol: proto}
	if err := req.encode(&args); err != nil {
		return 0, fmt.Errorf("encode getport args: %w", err)
	}

	reply, err := client.Call(Program, Version, procGetPort, args.Bytes())
	if err != nil {
		return 0, fmt.Errorf("getport call: %w", err)
	}

	result, err := reply.SuccessResult()
	if err != nil {
		return 0, fmt.Errorf("getport: %w", err)
	}

	port, err := xdr.DecodeUint32(bytes.NewReader(result))
	if err != nil {
		return 0, fmt.Errorf("decode port: %w", err)
	}

	return port, nil
}
