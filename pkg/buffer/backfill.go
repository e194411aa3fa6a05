package buffer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/memscribe/memscribe/pkg/embedder"
	"github.com/memscribe/memscribe/pkg/store"
)

// DefaultBackfillInterval is how often the worker sweeps for memories
// with no embedding.
const DefaultBackfillInterval = 1 * time.Minute

// DefaultBackfillBatchSize bounds how many candidates a single sweep
// embeds, matching the embedder's own per-call batching bound.
const DefaultBackfillBatchSize = 64

// Backfiller periodically scans for memories missing an embedding and
// fills them in, batching calls to the embedder.
type Backfiller struct {
	Store     store.Store
	Embedder  *embedder.Gateway
	Interval  time.Duration
	BatchSize int
	Failures  chan FailureEvent
	Log       *zap.Logger
}

func NewBackfiller(s store.Store, e *embedder.Gateway, failures chan FailureEvent, log *zap.Logger) *Backfiller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Backfiller{
		Store:     s,
		Embedder:  e,
		Interval:  DefaultBackfillInterval,
		BatchSize: DefaultBackfillBatchSize,
		Failures:  failures,
		Log:       log,
	}
}

// Run blocks, sweeping on Interval until ctx is canceled.
func (b *Backfiller) Run(ctx context.Context, userIDs func() []string) {
	ticker := time.NewTicker(b.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, userID := range userIDs() {
				if err := b.SweepOnce(ctx, userID); err != nil {
					b.Log.Warn("backfill: sweep failed", zap.String("user_id", userID), zap.Error(err))
				}
			}
		}
	}
}

// SweepOnce runs a single backfill pass for one tenant: scan, embed in
// batches, write back. Candidates with an empty id are reported to the
// failure channel and never processed, per the backfill contract.
func (b *Backfiller) SweepOnce(ctx context.Context, userID string) error {
	candidates, err := b.Store.ScanMissingEmbeddings(ctx, userID, b.BatchSize)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		return nil
	}

	var valid []store.EmbeddingCandidate
	for _, c := range candidates {
		if c.ID == "" {
			b.notify(FailureEvent{
				Kind: FailureKindBackfillNullID,
				At:   time.Now(),
			})
			continue
		}
		valid = append(valid, c)
	}
	if len(valid) == 0 {
		return nil
	}

	texts := make([]string, len(valid))
	for i, c := range valid {
		texts[i] = c.Title
	}

	vectors, err := b.Embedder.Embed(ctx, userID, texts)
	if err != nil {
		for _, c := range valid {
			b.notify(FailureEvent{
				Kind:     FailureKindBackfillEmbedFail,
				MemoryID: c.ID,
				Err:      err,
				At:       time.Now(),
			})
		}
		return err
	}

	for i, c := range valid {
		if i >= len(vectors) {
			break
		}
		if err := b.Store.SetMemoryEmbedding(ctx, c.ID, userID, vectors[i]); err != nil {
			b.notify(FailureEvent{
				Kind:     FailureKindBackfillEmbedFail,
				MemoryID: c.ID,
				Err:      err,
				At:       time.Now(),
			})
		}
	}
	return nil
}

func (b *Backfiller) notify(ev FailureEvent) {
	if b.Failures == nil {
		return
	}
	select {
	case b.Failures <- ev:
	default:
		b.Log.Warn("backfill: failure channel full, dropping event")
	}
}
