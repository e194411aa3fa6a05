// Package buffer durably accepts writes ahead of the Store, flushing
// them asynchronously through a circuit-broken worker loop, and keeps
// memory embeddings current via a periodic backfill scan.
package buffer

import (
	"time"

	"github.com/memscribe/memscribe/pkg/core"
)

// Quota bounds how much of the Store a single tenant may occupy before
// buffering a new write is refused.
type Quota struct {
	MaxMemories int
	MaxEntities int
}

// DefaultQuota is generous enough not to bite in tests or small
// deployments while still giving every tenant a ceiling.
var DefaultQuota = Quota{MaxMemories: 100_000, MaxEntities: 50_000}

// Receipt is returned immediately by Buffer once a write is durable,
// before it has been flushed to the Store.
type Receipt struct {
	WriteID    string
	MemoryID   string
	EnqueuedAt time.Time
}

// FailureEvent is published to the failure channel for writes that
// exhausted their attempt ceiling and for backfill rows with a null id
// — both cases the worker must never drop silently.
type FailureEvent struct {
	Kind     FailureKind
	WriteID  string
	MemoryID string
	Err      error
	At       time.Time
}

type FailureKind string

const (
	FailureKindWriteFailed       FailureKind = "write_failed"
	FailureKindBackfillNullID    FailureKind = "backfill_null_id"
	FailureKindBackfillEmbedFail FailureKind = "backfill_embed_failed"
)

// AddMemoryPayload is the JSON body of a PayloadAddMemory buffered
// write.
type AddMemoryPayload struct {
	Memory *core.Memory `json:"memory"`
}

// UpdateMemoryPayload is the JSON body of a PayloadUpdateMemory
// buffered write.
type UpdateMemoryPayload struct {
	MemoryID string  `json:"memory_id"`
	Title    *string `json:"title,omitempty"`
	Content  *string `json:"content,omitempty"`
}
