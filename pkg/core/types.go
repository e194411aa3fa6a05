// Package core defines the persistent record types shared across memscribe:
// users (tenants), memories, entities, interactions, usage records,
// buffered writes, sessions, and calendar events.
package core

import "time"

// User is a tenant. Every Memory, Entity, Interaction, and UsageRecord is
// owned by exactly one User; deleting a User logically cascades to all its
// data (see store.Store.DeleteUser).
type User struct {
	ID          string    `json:"id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
}

// MemoryType enumerates the kinds of memory a tenant can store.
type MemoryType string

const (
	MemoryTypeSystem    MemoryType = "SYSTEM"
	MemoryTypeLearned   MemoryType = "LEARNED"
	MemoryTypeMemory    MemoryType = "MEMORY"
	MemoryTypeSemantic  MemoryType = "semantic"
	MemoryTypeEpisodic  MemoryType = "episodic"
	MemoryTypeProcedual MemoryType = "procedural"
	MemoryTypeFact      MemoryType = "fact"
)

// Memory is a typed textual record with an optional dense embedding.
//
// ID is assigned client-side before the first write and is never null;
// Embedding, when present, always has the tenant's fixed dimension D.
type Memory struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	Title      string         `json:"title"`
	Content    string         `json:"content"`
	Type       MemoryType     `json:"type"`
	Importance float64        `json:"importance"`
	Tags       []string       `json:"tags,omitempty"`
	EntityRefs []string       `json:"entity_refs,omitempty"`
	Embedding  []float32      `json:"embedding,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	IsArchived bool           `json:"is_archived"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`

	// RetentionStrength and LastAccessedAt are carried from the teacher's
	// Ebbinghaus-curve fields. They are informational only (surfaced via
	// get_statistics as avg_retention) and never gate retrieval.
	RetentionStrength float64    `json:"retention_strength,omitempty"`
	LastAccessedAt    *time.Time `json:"last_accessed_at,omitempty"`
}

// HasEmbedding reports whether m carries a non-empty embedding vector.
func (m *Memory) HasEmbedding() bool {
	return m != nil && len(m.Embedding) > 0
}

// EntityType enumerates the kinds of entity a tenant can store.
type EntityType string

const (
	EntityTypePerson       EntityType = "person"
	EntityTypeOrganization EntityType = "organization"
	EntityTypeProject      EntityType = "project"
	EntityTypeConcept      EntityType = "concept"
	EntityTypeLocation     EntityType = "location"
	EntityTypeEvent        EntityType = "event"
)

// Entity is a structured record for a person, organization, or project.
// Entities carry no vector embedding. Metadata may carry an external
// provider uid (X-MCP-UUID) used by the contact synchronizer (C6) to match
// a local entity against a remote contact.
type Entity struct {
	ID         string         `json:"id"`
	UserID     string         `json:"user_id"`
	EntityType EntityType     `json:"entity_type"`
	Name       string         `json:"name"`
	PersonType string         `json:"person_type,omitempty"`
	FirstName  string         `json:"first_name,omitempty"`
	LastName   string         `json:"last_name,omitempty"`
	Company    string         `json:"company,omitempty"`
	Title      string         `json:"title,omitempty"`
	Email      string         `json:"email,omitempty"`
	Phone      string         `json:"phone,omitempty"`
	Address    string         `json:"address,omitempty"`
	Website    string         `json:"website,omitempty"`
	Notes      string         `json:"notes,omitempty"`
	Tags       []string       `json:"tags,omitempty"`
	Importance float64        `json:"importance,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

// ExternalUID returns the provider uid stamped in Metadata["X-MCP-UUID"],
// or "" if the entity has never been round-tripped through a contact
// provider.
func (e *Entity) ExternalUID() string {
	if e == nil || e.Metadata == nil {
		return ""
	}
	if v, ok := e.Metadata["X-MCP-UUID"].(string); ok {
		return v
	}
	return ""
}

// InteractionDirection describes which side originated an Interaction.
type InteractionDirection string

const (
	DirectionIncoming InteractionDirection = "incoming"
	DirectionOutgoing InteractionDirection = "outgoing"
	DirectionNone     InteractionDirection = "none"
)

// Interaction records a single exchange linked to one or more entities.
type Interaction struct {
	ID         string               `json:"id"`
	UserID     string               `json:"user_id"`
	EntityRefs []string             `json:"entity_refs,omitempty"`
	Content    string               `json:"content"`
	Direction  InteractionDirection `json:"direction"`
	OccurredAt time.Time            `json:"occurred_at"`
}

// CalendarEvent is a minimal calendar record owned by a tenant. It is
// stored and filtered like Interaction; the search engine (C3) has no
// integration with calendar events, since hybrid search is scoped to
// memories only.
type CalendarEvent struct {
	ID         string    `json:"id"`
	UserID     string    `json:"user_id"`
	Title      string    `json:"title"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	EntityRefs []string  `json:"entity_refs,omitempty"`
}

// UsageRecord is an append-only accounting entry for a dependency call
// (embedder or LLM) attributed to a tenant.
type UsageRecord struct {
	UserID    string    `json:"user_id"`
	Provider  string    `json:"provider"`
	Operation string    `json:"operation"`
	Tokens    int       `json:"tokens"`
	Cost      float64   `json:"cost"`
	Timestamp time.Time `json:"timestamp"`
}

// BufferedWriteState is the state machine position of a BufferedWrite.
type BufferedWriteState string

const (
	BufferStatePending  BufferedWriteState = "pending"
	BufferStateInFlight BufferedWriteState = "in_flight"
	BufferStateFailed   BufferedWriteState = "failed"
)

// BufferedWritePayloadKind distinguishes what kind of mutation a
// BufferedWrite carries.
type BufferedWritePayloadKind string

const (
	PayloadAddMemory    BufferedWritePayloadKind = "add_memory"
	PayloadUpdateMemory BufferedWritePayloadKind = "update_memory"
)

// BufferedWrite is a durable, queued mutation awaiting flush to the Store.
type BufferedWrite struct {
	ID            string                   `json:"id"`
	UserID        string                   `json:"user_id"`
	MemoryID      string                   `json:"memory_id,omitempty"`
	Kind          BufferedWritePayloadKind `json:"kind"`
	Payload       []byte                   `json:"payload"`
	Attempts      int                      `json:"attempts"`
	NextAttemptAt time.Time                `json:"next_attempt_at"`
	State         BufferedWriteState       `json:"state"`
	EnqueuedAt    time.Time                `json:"enqueued_at"`
	LastError     string                   `json:"last_error,omitempty"`
}

// Session is a volatile, short-lived (token_hash -> identity) cache entry
// created after the identity provider verifies a bearer token.
type Session struct {
	TokenHash string    `json:"token_hash"`
	UserID    string    `json:"user_id"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at t.
func (s *Session) Expired(t time.Time) bool {
	return s == nil || !t.Before(s.ExpiresAt)
}
