package scpi

import (
	"net"
	"net/url"
	"strconv"
	"strings"

	"github.com/benchdrv/scpigo/internal/bytesize"
	"github.com/benchdrv/scpigo/internal/vxi11"
)

// defaultVXIPort is the well-known portmapper port VXI-11 resolution
// starts from.
const defaultVXIPort = 111

// defaultSerialBaud is used when a serial:// URI carries no ?baud=.
const defaultSerialBaud = 9600

// Dial opens a Transport for one of three URI schemes:
//
//	tcp://host:port
//	vxi11://host[:port][?read_size=64Ki]  (port is informational only;
//	                              the real core-channel port comes from
//	                              the portmapper, but is accepted for
//	                              symmetry; read_size overrides the
//	                              default device_read request size)
//	serial:/dev/ttyUSB0?baud=9600
//
// Any other scheme, or an unknown query parameter, is InvalidArgument.
func Dial(rawURI string) (Transport, error) {
	scheme, rest, ok := strings.Cut(rawURI, "://")
	if !ok {
		// serial:/path?baud=N uses a single colon, not "://".
		scheme, rest, ok = strings.Cut(rawURI, ":")
		if !ok || scheme != "serial" {
			return nil, newError(InvalidArgument, "malformed transport uri "+rawURI, nil)
		}
	}

	switch scheme {
	case "tcp":
		return dialTCPURI(rest)
	case "vxi11":
		return dialVXIURI(rest)
	case "serial":
		return dialSerialURI(rest)
	default:
		return nil, newError(InvalidArgument, "unknown transport scheme "+scheme, nil)
	}
}

func dialTCPURI(hostport string) (Transport, error) {
	if _, _, err := net.SplitHostPort(hostport); err != nil {
		return nil, newError(InvalidArgument, "tcp uri must be host:port", err)
	}
	return DialTCP(hostport)
}

func dialVXIURI(hostportAndQuery string) (Transport, error) {
	hostport, query, _ := strings.Cut(hostportAndQuery, "?")

	host := hostport
	if h, _, err := net.SplitHostPort(hostport); err == nil {
		host = h
	}

	opts := vxi11.DefaultOptions()
	if query != "" {
		values, err := url.ParseQuery(query)
		if err != nil {
			return nil, newError(InvalidArgument, "malformed vxi11 uri query", err)
		}
		for key, vals := range values {
			if key != "read_size" {
				return nil, newError(InvalidArgument, "unknown vxi11 uri parameter "+key, nil)
			}
			size, err := bytesize.ParseByteSize(vals[0])
			if err != nil {
				return nil, newError(InvalidArgument, "read_size must be a byte size", err)
			}
			opts.ReadSize = size
		}
	}

	return DialVXIOptions(host, "inst0", opts)
}

func dialSerialURI(pathAndQuery string) (Transport, error) {
	path, query, _ := strings.Cut(pathAndQuery, "?")

	baud := defaultSerialBaud
	if query != "" {
		values, err := url.ParseQuery(query)
		if err != nil {
			return nil, newError(InvalidArgument, "malformed serial uri query", err)
		}
		for key, vals := range values {
			if key != "baud" {
				return nil, newError(InvalidArgument, "unknown serial uri parameter "+key, nil)
			}
			parsed, err := strconv.Atoi(vals[0])
			if err != nil {
				return nil, newError(InvalidArgument, "baud must be an integer", err)
			}
			baud = parsed
		}
	}

	return DialSerial(path, baud)
}
