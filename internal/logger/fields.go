package logger

import (
	"fmt"
	"log/slog"
)

// Standard field keys for structured logging.
// These keys are designed to be transport-agnostic, supporting TCP, VXI-11, and serial.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id" // OpenTelemetry trace ID for request correlation
	KeySpanID  = "span_id"  // OpenTelemetry span ID for operation tracking

	// ========================================================================
	// Transport & Endpoint
	// ========================================================================
	KeyTransport = "transport" // Transport kind: tcp, vxi11, serial
	KeyEndpoint  = "endpoint"  // Dialed address or device path
	KeyBaud      = "baud"      // Serial baud rate

	// ========================================================================
	// ONC/RPC
	// ========================================================================
	KeyXID        = "xid"        // RPC transaction id
	KeyProgram    = "program"    // RPC program number
	KeyVersion    = "version"    // RPC program version
	KeyProcedure  = "procedure"  // RPC procedure number
	KeyAcceptStat = "accept_stat"

	// ========================================================================
	// VXI-11 device link
	// ========================================================================
	KeyLinkID     = "link_id"
	KeyDeviceName = "device_name"
	KeyErrorCode  = "vxi11_error_code"

	// ========================================================================
	// I/O Operations
	// ========================================================================
	KeyBytesRead    = "bytes_read"    // Actual bytes read
	KeyBytesWritten = "bytes_written" // Actual bytes written
	KeyEnd          = "end"           // END terminator indicator
	KeyFragment     = "fragment"      // Record-marker fragment length

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms" // Operation duration in milliseconds
	KeyError      = "error"       // Error message
)

// ============================================================================
// Field constructors for type safety
// ============================================================================

// TraceID returns a slog.Attr for OpenTelemetry trace ID
func TraceID(id string) slog.Attr {
	return slog.String(KeyTraceID, id)
}

// SpanID returns a slog.Attr for OpenTelemetry span ID
func SpanID(id string) slog.Attr {
	return slog.String(KeySpanID, id)
}

// Transport returns a slog.Attr for transport kind
func Transport(kind string) slog.Attr {
	return slog.String(KeyTransport, kind)
}

// Endpoint returns a slog.Attr for the dialed address or device path
func Endpoint(addr string) slog.Attr {
	return slog.String(KeyEndpoint, addr)
}

// Baud returns a slog.Attr for serial baud rate
func Baud(rate int) slog.Attr {
	return slog.Int(KeyBaud, rate)
}

// XID returns a slog.Attr for an RPC transaction id
func XID(xid uint32) slog.Attr {
	return slog.Any(KeyXID, xid)
}

// Program returns a slog.Attr for an RPC program number
func Program(prog uint32) slog.Attr {
	return slog.Any(KeyProgram, prog)
}

// Version returns a slog.Attr for an RPC program version
func Version(vers uint32) slog.Attr {
	return slog.Any(KeyVersion, vers)
}

// Procedure returns a slog.Attr for an RPC procedure number
func Procedure(proc uint32) slog.Attr {
	return slog.Any(KeyProcedure, proc)
}

// AcceptStat returns a slog.Attr for an RPC accept_stat value
func AcceptStat(stat uint32) slog.Attr {
	return slog.Any(KeyAcceptStat, stat)
}

// LinkID returns a slog.Attr for a VXI-11 device link id
func LinkID(lid int32) slog.Attr {
	return slog.Any(KeyLinkID, lid)
}

// DeviceName returns a slog.Attr for a VXI-11 device name (e.g. "inst0")
func DeviceName(name string) slog.Attr {
	return slog.String(KeyDeviceName, name)
}

// VXIErrorCode returns a slog.Attr for a VXI-11 device error code
func VXIErrorCode(code uint32) slog.Attr {
	return slog.Any(KeyErrorCode, code)
}

// BytesRead returns a slog.Attr for actual bytes read
func BytesRead(n int) slog.Attr {
	return slog.Int(KeyBytesRead, n)
}

// BytesWritten returns a slog.Attr for actual bytes written
func BytesWritten(n int) slog.Attr {
	return slog.Int(KeyBytesWritten, n)
}

// End returns a slog.Attr for an END terminator indicator
func End(end bool) slog.Attr {
	return slog.Bool(KeyEnd, end)
}

// Fragment returns a slog.Attr for a record-marker fragment length
func Fragment(n uint32) slog.Attr {
	return slog.Any(KeyFragment, n)
}

// DurationMs returns a slog.Attr for duration in milliseconds
func DurationMs(ms float64) slog.Attr {
	return slog.Float64(KeyDurationMs, ms)
}

// Err returns a slog.Attr for an error
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}

// hexString renders bytes as a lowercase hex string.
func hexString(b []byte) string {
	return fmt.Sprintf("%x", b)
}
