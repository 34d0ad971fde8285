package sui

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Cause is the structured reason an RPC call failed. Callers branch on it
// instead of inspecting messages.
type Cause int

const (
	CauseUnknown Cause = iota
	CauseInvalidParams
	CauseUnknownEventType
	CauseObjectNotFound
	CauseObjectConsumed
	CauseTransport
	CauseRateLimited
	CauseServer
	CauseCircuitOpen
)

func (c Cause) String() string {
	switch c {
	case CauseInvalidParams:
		return "invalid_params"
	case CauseUnknownEventType:
		return "unknown_event_type"
	case CauseObjectNotFound:
		return "object_not_found"
	case CauseObjectConsumed:
		return "object_consumed"
	case CauseTransport:
		return "transport"
	case CauseRateLimited:
		return "rate_limited"
	case CauseServer:
		return "server"
	case CauseCircuitOpen:
		return "circuit_open"
	default:
		return "unknown"
	}
}

// Error is returned by every failing Client call.
type Error struct {
	Method     string
	Cause      Cause
	Code       int // JSON-RPC code, zero for transport failures
	StatusCode int // HTTP status, zero when no response was read
	Message    string
	Data       json.RawMessage
	Err        error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("sui rpc %s [%d]: %s (cause: %s)", e.Method, e.Code, e.Message, e.Cause)
	}
	if e.Err != nil {
		return fmt.Sprintf("sui rpc %s: %v (cause: %s)", e.Method, e.Err, e.Cause)
	}
	return fmt.Sprintf("sui rpc %s: %s (cause: %s)", e.Method, e.Message, e.Cause)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CauseOf extracts the Cause from err, or CauseUnknown.
func CauseOf(err error) Cause {
	var rpcErr *Error
	if errors.As(err, &rpcErr) {
		return rpcErr.Cause
	}
	return CauseUnknown
}

// IsApplicationError reports whether the node answered with a JSON-RPC error,
// as opposed to the call failing in transit. Application errors do not trip
// the circuit breaker.
func IsApplicationError(err error) bool {
	var rpcErr *Error
	if !errors.As(err, &rpcErr) {
		return false
	}
	switch rpcErr.Cause {
	case CauseInvalidParams, CauseUnknownEventType, CauseObjectNotFound, CauseObjectConsumed:
		return true
	}
	return false
}

// consumedMarkers are substrings the node uses when a transaction references
// an owned object version that is gone, locked by another transaction, or deleted.
var consumedMarkers = []string{
	"objectversionunavailableforconsumption",
	"not available for consumption",
	"objectlockconflict",
	"already locked",
	"equivocat",
	"deleted",
	"could not find the referenced object",
}

// classify maps a JSON-RPC error to a Cause. This is the only place in the
// service that looks at error text.
func classify(method string, body *RPCErrorBody) Cause {
	msg := strings.ToLower(body.Message + " " + string(body.Data))

	if body.Code == codeInvalidParams && method == MethodQueryEvents {
		return CauseUnknownEventType
	}

	if method == MethodMoveCall || method == MethodExecuteTxBlock {
		for _, marker := range consumedMarkers {
			if strings.Contains(msg, marker) {
				return CauseObjectConsumed
			}
		}
	}

	if strings.Contains(msg, "not found") || strings.Contains(msg, "notexists") {
		return CauseObjectNotFound
	}

	switch {
	case body.Code == codeInvalidParams:
		return CauseInvalidParams
	case body.Code <= codeServerError && body.Code > -32100:
		return CauseServer
	case body.Code == -32603:
		return CauseServer
	}
	return CauseUnknown
}
