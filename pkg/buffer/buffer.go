package buffer

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/store"
)

// Buffer durably accepts writes ahead of the Store. Enqueue returns
// once the write is committed to the buffered_writes table — the
// Worker flushes it to the Store asynchronously.
type Buffer struct {
	Store store.Store
	Quota Quota
}

func NewBuffer(s store.Store) *Buffer {
	return &Buffer{Store: s, Quota: DefaultQuota}
}

// EnqueueAddMemory durably buffers a new memory write, rejecting it if
// the tenant is already at quota.
func (b *Buffer) EnqueueAddMemory(ctx context.Context, userID string, m *core.Memory) (*Receipt, error) {
	if err := b.checkQuota(ctx, userID); err != nil {
		return nil, err
	}

	payload, err := json.Marshal(AddMemoryPayload{Memory: m})
	if err != nil {
		return nil, fmt.Errorf("buffer: marshal add_memory payload: %w", err)
	}

	now := time.Now()
	bw := &core.BufferedWrite{
		UserID:        userID,
		MemoryID:      m.ID,
		Kind:          core.PayloadAddMemory,
		Payload:       payload,
		NextAttemptAt: now,
		State:         core.BufferStatePending,
		EnqueuedAt:    now,
	}
	id, err := b.Store.EnqueueWrite(ctx, bw)
	if err != nil {
		return nil, fmt.Errorf("buffer: enqueue add_memory: %w", err)
	}
	return &Receipt{WriteID: id, MemoryID: m.ID, EnqueuedAt: now}, nil
}

// EnqueueUpdateMemory durably buffers a title/content patch that needs
// re-embedding.
func (b *Buffer) EnqueueUpdateMemory(ctx context.Context, userID, memoryID string, title, content *string) (*Receipt, error) {
	payload, err := json.Marshal(UpdateMemoryPayload{MemoryID: memoryID, Title: title, Content: content})
	if err != nil {
		return nil, fmt.Errorf("buffer: marshal update_memory payload: %w", err)
	}

	now := time.Now()
	bw := &core.BufferedWrite{
		UserID:        userID,
		MemoryID:      memoryID,
		Kind:          core.PayloadUpdateMemory,
		Payload:       payload,
		NextAttemptAt: now,
		State:         core.BufferStatePending,
		EnqueuedAt:    now,
	}
	id, err := b.Store.EnqueueWrite(ctx, bw)
	if err != nil {
		return nil, fmt.Errorf("buffer: enqueue update_memory: %w", err)
	}
	return &Receipt{WriteID: id, MemoryID: memoryID, EnqueuedAt: now}, nil
}

func (b *Buffer) checkQuota(ctx context.Context, userID string) error {
	count, err := b.Store.CountMemories(ctx, userID)
	if err != nil {
		return fmt.Errorf("buffer: quota check: %w", err)
	}
	if count >= b.Quota.MaxMemories {
		return core.New("buffer.Enqueue", core.KindQuotaExceeded,
			fmt.Sprintf("tenant has reached its memory quota of %d", b.Quota.MaxMemories), nil)
	}
	return nil
}
