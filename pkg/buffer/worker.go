package buffer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/embedder"
	"github.com/memscribe/memscribe/pkg/store"
)

// DefaultMaxAttempts is the attempt ceiling after which a BufferedWrite
// moves to the failed state instead of being rescheduled.
const DefaultMaxAttempts = 10

// DefaultPollInterval is how often the worker checks for the next
// pending write when the queue is empty.
const DefaultPollInterval = 500 * time.Millisecond

// Worker drains the buffered_writes queue: claim the oldest eligible
// pending write, attempt it against the Store (and the Embedder, for
// writes that need a fresh vector), and reschedule or fail it per the
// BufferedWrite state machine.
type Worker struct {
	Store        store.Store
	Embedder     *embedder.Gateway
	Breakers     *Breakers
	MaxAttempts  int
	PollInterval time.Duration
	Failures     chan FailureEvent
	Log          *zap.Logger
}

func NewWorker(s store.Store, e *embedder.Gateway, failures chan FailureEvent, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		Store:        s,
		Embedder:     e,
		Breakers:     NewBreakers(),
		MaxAttempts:  DefaultMaxAttempts,
		PollInterval: DefaultPollInterval,
		Failures:     failures,
		Log:          log,
	}
}

// Run blocks, polling for work until ctx is canceled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for w.tick(ctx) {
				// drain back-to-back while work is available
			}
		}
	}
}

// tick claims and processes a single pending write. It returns true if
// a write was claimed (so the caller can keep draining without
// waiting for the next poll tick).
func (w *Worker) tick(ctx context.Context) bool {
	result, err := w.Breakers.Store.Execute(func() (interface{}, error) {
		return w.Store.NextPendingWrite(ctx, time.Now())
	})
	if err != nil {
		if !errors.Is(err, gobreaker.ErrOpenState) {
			w.Log.Warn("buffer worker: claim failed", zap.Error(err))
		}
		return false
	}
	bw, _ := result.(*core.BufferedWrite)
	if bw == nil {
		return false
	}

	if err := w.process(ctx, bw); err != nil {
		w.reschedule(ctx, bw, err)
	} else {
		if err := w.Store.DeleteWrite(ctx, bw.ID); err != nil {
			w.Log.Warn("buffer worker: delete completed write failed", zap.String("write_id", bw.ID), zap.Error(err))
		}
	}
	return true
}

func (w *Worker) process(ctx context.Context, bw *core.BufferedWrite) error {
	switch bw.Kind {
	case core.PayloadAddMemory:
		return w.processAddMemory(ctx, bw)
	case core.PayloadUpdateMemory:
		return w.processUpdateMemory(ctx, bw)
	default:
		return fmt.Errorf("buffer worker: unknown payload kind %q", bw.Kind)
	}
}

func (w *Worker) processAddMemory(ctx context.Context, bw *core.BufferedWrite) error {
	var payload AddMemoryPayload
	if err := json.Unmarshal(bw.Payload, &payload); err != nil {
		return fmt.Errorf("buffer worker: decode add_memory payload: %w", err)
	}

	_, err := w.Breakers.Store.Execute(func() (interface{}, error) {
		return w.Store.CreateMemory(ctx, bw.UserID, payload.Memory)
	})
	if err != nil {
		return err
	}

	if payload.Memory.HasEmbedding() || w.Embedder == nil {
		return nil
	}
	return w.embedAndStore(ctx, bw.UserID, payload.Memory.ID, payload.Memory.Title, payload.Memory.Content)
}

func (w *Worker) processUpdateMemory(ctx context.Context, bw *core.BufferedWrite) error {
	var payload UpdateMemoryPayload
	if err := json.Unmarshal(bw.Payload, &payload); err != nil {
		return fmt.Errorf("buffer worker: decode update_memory payload: %w", err)
	}

	patch := &store.MemoryPatch{Title: payload.Title, Content: payload.Content}
	_, err := w.Breakers.Store.Execute(func() (interface{}, error) {
		return w.Store.UpdateMemory(ctx, payload.MemoryID, bw.UserID, patch)
	})
	if err != nil {
		return err
	}

	if w.Embedder == nil {
		return nil
	}
	m, err := w.Store.GetMemory(ctx, payload.MemoryID, bw.UserID)
	if err != nil {
		return fmt.Errorf("buffer worker: reload memory after update: %w", err)
	}
	return w.embedAndStore(ctx, bw.UserID, m.ID, m.Title, m.Content)
}

func (w *Worker) embedAndStore(ctx context.Context, userID, memoryID, title, content string) error {
	result, err := w.Breakers.Embedder.Execute(func() (interface{}, error) {
		vectors, err := w.Embedder.Embed(ctx, userID, []string{title + "\n" + content})
		return vectors, err
	})
	if err != nil {
		return fmt.Errorf("buffer worker: embed: %w", err)
	}
	vectors, _ := result.([][]float32)
	if len(vectors) != 1 {
		return fmt.Errorf("buffer worker: embedder returned %d vectors, expected 1", len(vectors))
	}

	_, err = w.Breakers.Store.Execute(func() (interface{}, error) {
		return nil, w.Store.SetMemoryEmbedding(ctx, memoryID, userID, vectors[0])
	})
	return err
}

// reschedule applies the exponential backoff schedule to a failed
// write, moving it to the failed state once the attempt ceiling is
// reached and always notifying the failure channel on the terminal
// transition.
func (w *Worker) reschedule(ctx context.Context, bw *core.BufferedWrite, cause error) {
	bw.Attempts++
	bw.LastError = cause.Error()

	if bw.Attempts >= w.MaxAttempts {
		bw.State = core.BufferStateFailed
		if err := w.Store.UpdateWriteState(ctx, bw.ID, bw); err != nil {
			w.Log.Error("buffer worker: mark failed", zap.String("write_id", bw.ID), zap.Error(err))
		}
		w.notify(FailureEvent{
			Kind:     FailureKindWriteFailed,
			WriteID:  bw.ID,
			MemoryID: bw.MemoryID,
			Err:      cause,
			At:       time.Now(),
		})
		return
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 1 * time.Second
	b.MaxInterval = 5 * time.Minute
	b.MaxElapsedTime = 0 // attempt ceiling governs termination, not elapsed time
	b.Reset()

	var delay time.Duration
	for i := 0; i < bw.Attempts; i++ {
		delay = b.NextBackOff()
	}

	bw.State = core.BufferStatePending
	bw.NextAttemptAt = time.Now().Add(delay)
	if err := w.Store.UpdateWriteState(ctx, bw.ID, bw); err != nil {
		w.Log.Warn("buffer worker: reschedule failed", zap.String("write_id", bw.ID), zap.Error(err))
	}
}

func (w *Worker) notify(ev FailureEvent) {
	if w.Failures == nil {
		return
	}
	select {
	case w.Failures <- ev:
	default:
		w.Log.Warn("buffer worker: failure channel full, dropping event", zap.String("write_id", ev.WriteID))
	}
}
