// Package store defines the persistence contract (C1) shared by every
// backend: create/get/update/delete per record kind, filtered listing,
// and the missing-embedding scan the write buffer's backfill loop drives.
// Every read and write is scoped by user_id; cross-tenant access is a
// fatal invariant violation, never a soft filter.
package store

import (
	"context"
	"time"

	"github.com/memscribe/memscribe/pkg/core"
)

// MemoryFilter narrows list_memories. Zero-valued fields are unset.
type MemoryFilter struct {
	Type         core.MemoryType
	TagsAnyOf    []string
	Archived     *bool
	CreatedAfter *time.Time
	HasEmbedding *bool
	Limit        int
	Offset       int
}

// MemoryPatch carries only the fields of a Memory being updated. A nil
// field leaves the stored value unchanged. Embedding is deliberately not
// settable here: embeddings are only ever (re)computed by the write
// buffer from Title/Content, never overwritten directly by a caller.
type MemoryPatch struct {
	Title         *string
	Content       *string
	Type          *core.MemoryType
	Importance    *float64
	Tags          []string
	TagsSet       bool
	EntityRefs    []string
	EntityRefsSet bool
	Metadata      map[string]any
	MetadataSet   bool
	IsArchived    *bool
}

// EntityPatch carries only the fields of an Entity being updated.
type EntityPatch struct {
	Name        *string
	PersonType  *string
	FirstName   *string
	LastName    *string
	Company     *string
	Title       *string
	Email       *string
	Phone       *string
	Address     *string
	Website     *string
	Notes       *string
	Tags        []string
	TagsSet     bool
	Importance  *float64
	Metadata    map[string]any
	MetadataSet bool
}

// EmbeddingCandidate is one row of a missing-embeddings scan: id plus one
// extra column, to defeat single-column-NULL driver quirks some SQL
// drivers exhibit when a query selects only an id column.
type EmbeddingCandidate struct {
	ID    string
	Title string
}

// Store is the persistence contract every backend (sqlite, postgres,
// mysql) implements identically.
type Store interface {
	// Users
	CreateUser(ctx context.Context, u *core.User) (string, error)
	GetUser(ctx context.Context, id string) (*core.User, error)
	GetUserByEmail(ctx context.Context, email string) (*core.User, error)
	DeleteUser(ctx context.Context, id string) error

	// Memories
	CreateMemory(ctx context.Context, userID string, m *core.Memory) (string, error)
	GetMemory(ctx context.Context, id, userID string) (*core.Memory, error)
	UpdateMemory(ctx context.Context, id, userID string, patch *MemoryPatch) (*core.Memory, error)
	DeleteMemory(ctx context.Context, id, userID string) error
	ListMemories(ctx context.Context, userID string, filter *MemoryFilter) ([]*core.Memory, error)
	ScanMissingEmbeddings(ctx context.Context, userID string, batchSize int) ([]EmbeddingCandidate, error)
	SetMemoryEmbedding(ctx context.Context, id, userID string, embedding []float32) error
	CountMemories(ctx context.Context, userID string) (int, error)

	// Entities
	CreateEntity(ctx context.Context, userID string, e *core.Entity) (string, error)
	GetEntity(ctx context.Context, id, userID string) (*core.Entity, error)
	GetEntityByExternalUID(ctx context.Context, userID, uid string) (*core.Entity, error)
	UpdateEntity(ctx context.Context, id, userID string, patch *EntityPatch) (*core.Entity, error)
	DeleteEntity(ctx context.Context, id, userID string) error
	ListEntities(ctx context.Context, userID string) ([]*core.Entity, error)
	CountEntities(ctx context.Context, userID string) (int, error)

	// Interactions
	CreateInteraction(ctx context.Context, userID string, in *core.Interaction) (string, error)
	ListInteractions(ctx context.Context, userID string, entityID string) ([]*core.Interaction, error)

	// Calendar events
	CreateCalendarEvent(ctx context.Context, userID string, ev *core.CalendarEvent) (string, error)
	ListCalendarEvents(ctx context.Context, userID string) ([]*core.CalendarEvent, error)

	// Usage records
	RecordUsage(ctx context.Context, rec *core.UsageRecord) error
	DailyCosts(ctx context.Context, userID string, days int) ([]DailyCost, error)

	// Buffered writes (durable queue backing C4)
	EnqueueWrite(ctx context.Context, bw *core.BufferedWrite) (string, error)
	NextPendingWrite(ctx context.Context, now time.Time) (*core.BufferedWrite, error)
	UpdateWriteState(ctx context.Context, id string, bw *core.BufferedWrite) error
	DeleteWrite(ctx context.Context, id string) error

	// Close releases underlying connections.
	Close() error
}

// DailyCost is one bucket of the usage-by-day report behind get_daily_costs.
type DailyCost struct {
	Day    string
	Cost   float64
	Tokens int
}
