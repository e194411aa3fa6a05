package rpc

import "github.com/memscribe/memscribe/pkg/core"

// kindToCode maps a canonical error Kind to a JSON-RPC error code plus
// the machine-readable data.reason the spec requires alongside it.
// Kinds with no entry fall back to CodeInternalError.
var kindToCode = map[core.Kind]int{
	core.KindUnauthenticated:    -32001,
	core.KindUnauthorized:       -32002,
	core.KindInvalidArgument:    CodeInvalidParams,
	core.KindNotFound:           -32004,
	core.KindConflict:           -32005,
	core.KindQuotaExceeded:      -32006,
	core.KindRateLimited:        -32007,
	core.KindDependencyUnavail:  -32008,
	core.KindTimeout:            CodeTimeout,
	core.KindInvariantViolation: -32009,
}

// toRPCError translates a failed Envelope's (kind, message) pair into
// a well-formed JSON-RPC error object. This is the one place internal
// failures are ever allowed to become a response — nothing upstream of
// here should panic or return a bare error to the transport.
func toRPCError(kind, message string) *Error {
	code, ok := kindToCode[core.Kind(kind)]
	if !ok {
		code = CodeInternalError
	}

	reason := kind
	if reason == "" {
		reason = "internal_error"
	}

	return &Error{
		Code:    code,
		Message: message,
		Data:    map[string]any{"reason": reason},
	}
}

// toRPCErrorFromErr translates a raw error directly, picking the code
// from core.KindOf. Nothing in this package calls it: argument
// validation failures at the dispatcher boundary build their
// CodeInvalidParams Error themselves.
func toRPCErrorFromErr(err error) *Error {
	return toRPCError(string(core.KindOf(err)), err.Error())
}
