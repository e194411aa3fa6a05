package core

import (
	"errors"
	"fmt"
)

// Kind is one of the canonical error kinds understood across memscribe.
// The protocol dispatcher (pkg/rpc) maps each Kind to a JSON-RPC error
// code; every other layer only needs to set the right Kind.
type Kind string

const (
	KindUnauthenticated    Kind = "unauthenticated"
	KindUnauthorized       Kind = "unauthorized"
	KindInvalidArgument    Kind = "invalid_argument"
	KindNotFound           Kind = "not_found"
	KindConflict           Kind = "conflict"
	KindQuotaExceeded      Kind = "quota_exceeded"
	KindRateLimited        Kind = "rate_limited"
	KindDependencyUnavail  Kind = "dependency_unavailable"
	KindTimeout            Kind = "timeout"
	KindInvariantViolation Kind = "invariant_violation"
)

// Error wraps an underlying error with an operation name and a canonical
// Kind. It plays the same role as the teacher's MemoryError, extended with
// Kind since the protocol layer must translate failures into JSON-RPC error
// codes + machine-readable data.reason without string-matching messages.
type Error struct {
	Op      string
	Kind    Kind
	Err     error
	Message string // human-readable message; defaults to Err.Error()
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("memscribe: %s: %s: %s", e.Op, e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an *Error. If err is nil, err defaults to errors.New(message).
func New(op string, kind Kind, message string, err error) error {
	if err == nil {
		err = errors.New(message)
	}
	return &Error{Op: op, Kind: kind, Err: err, Message: message}
}

// Wrap tags an existing error with an operation and kind, preserving it as
// the unwrap target. Returns nil if err is nil.
func Wrap(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf extracts the Kind from err, walking the unwrap chain. Falls back to
// matching the bare sentinels below directly, since callers at the store
// boundary return those unwrapped rather than through New/Wrap. Returns ""
// if err (or nothing in its chain) carries a recognizable Kind.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrNotOwner):
		return KindUnauthorized
	case errors.Is(err, ErrIDCollision):
		return KindConflict
	case errors.Is(err, ErrInvalidConfig), errors.Is(err, ErrInvalidInput):
		return KindInvalidArgument
	case errors.Is(err, ErrConnectionFailed):
		return KindDependencyUnavail
	case errors.Is(err, ErrEmbeddingFailed):
		return KindDependencyUnavail
	}
	return ""
}

// IsRetryable reports whether a Kind is retryable at the Worker / dependency
// wrapper boundary (never at the Memory Core boundary).
func (k Kind) IsRetryable() bool {
	switch k {
	case KindDependencyUnavail, KindTimeout:
		return true
	default:
		return false
	}
}

// Sentinel errors kept for direct comparison in lower-level packages that
// predate the Kind taxonomy (store backends, embedder clients). KindOf
// recognizes each of these directly, so they carry their Kind correctly
// even when returned bare across a component boundary.
var (
	ErrNotFound         = errors.New("not found")
	ErrIDCollision      = errors.New("id collision")
	ErrNotOwner         = errors.New("not owner")
	ErrInvalidConfig    = errors.New("invalid configuration")
	ErrConnectionFailed = errors.New("connection failed")
	ErrEmbeddingFailed  = errors.New("embedding generation failed")
	ErrInvalidInput     = errors.New("invalid input")
)
