// Package memory implements the user-facing facade (C5): add/get/update
// /delete/search memories and entities, statistics, and daily costs,
// wiring together the Store, Embedder Gateway, Search Engine, and
// Write Buffer behind one common response envelope.
package memory

import "github.com/memscribe/memscribe/pkg/core"

// Status is the outer discriminant of every Envelope.
type Status string

const (
	StatusOK    Status = "ok"
	StatusError Status = "error"
)

// Envelope is the common {status, data|error, message} response shape
// every Core operation returns.
type Envelope struct {
	Status  Status `json:"status"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message,omitempty"`
}

// OK wraps a successful result.
func OK(data any) Envelope {
	return Envelope{Status: StatusOK, Data: data}
}

// Fail wraps a failure, preferring the canonical Kind-tagged message
// when err carries one.
func Fail(err error) Envelope {
	if kind := core.KindOf(err); kind != "" {
		return Envelope{Status: StatusError, Error: string(kind), Message: err.Error()}
	}
	return Envelope{Status: StatusError, Error: string(core.KindInvariantViolation), Message: err.Error()}
}
