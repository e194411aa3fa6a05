package buffer_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/memscribe/memscribe/pkg/buffer"
	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/embedder"
	"github.com/memscribe/memscribe/pkg/store"
	"github.com/memscribe/memscribe/pkg/store/sqlite"
)

// nullIDStore embeds a real Store and overrides only ScanMissingEmbeddings,
// to simulate a backend returning a row with an empty id — every real
// backend filters that case out at the SQL layer before the Backfiller
// ever sees it, so this is the only way to exercise the null-id guard.
type nullIDStore struct {
	store.Store
	candidates []store.EmbeddingCandidate
	setCalls   int
}

func (s *nullIDStore) ScanMissingEmbeddings(ctx context.Context, userID string, batchSize int) ([]store.EmbeddingCandidate, error) {
	return s.candidates, nil
}

func (s *nullIDStore) SetMemoryEmbedding(ctx context.Context, id, userID string, embedding []float32) error {
	s.setCalls++
	return s.Store.SetMemoryEmbedding(ctx, id, userID, embedding)
}

func newNullIDStore(t *testing.T, candidates []store.EmbeddingCandidate) *nullIDStore {
	t.Helper()
	c, err := sqlite.NewClient(&sqlite.Config{DBPath: ":memory:", NodeID: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return &nullIDStore{Store: c, candidates: candidates}
}

type backfillFakeProvider struct{ dim int }

func (p *backfillFakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, int, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = make([]float32, p.dim)
	}
	return vectors, len(texts), nil
}

func (p *backfillFakeProvider) Dimension() int    { return p.dim }
func (p *backfillFakeProvider) ModelName() string { return "fake-model" }
func (p *backfillFakeProvider) Close() error      { return nil }

// TestSweepOnceReportsNullIDCandidatesWithoutEmbedding is S5: a scan row
// with an empty id must never reach the embedder, and must surface on
// the failure channel instead of being silently dropped.
func TestSweepOnceReportsNullIDCandidatesWithoutEmbedding(t *testing.T) {
	st := newNullIDStore(t, []store.EmbeddingCandidate{
		{ID: "", Title: "orphaned row"},
	})
	gw := embedder.NewGateway(&backfillFakeProvider{dim: 4}, nil)
	failures := make(chan buffer.FailureEvent, 4)
	b := buffer.NewBackfiller(st, gw, failures, nil)

	err := b.SweepOnce(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 0, st.setCalls, "a null-id candidate must never be embedded or written back")

	select {
	case ev := <-failures:
		require.Equal(t, buffer.FailureKindBackfillNullID, ev.Kind)
	default:
		t.Fatal("expected a backfill_null_id failure event")
	}
}

// TestSweepOnceSkipsNullIDButEmbedsValidCandidatesInSameBatch confirms
// the null-id guard only drops the offending row, not the whole batch.
func TestSweepOnceSkipsNullIDButEmbedsValidCandidatesInSameBatch(t *testing.T) {
	ctx := context.Background()
	st := newNullIDStore(t, nil)

	id, err := st.CreateMemory(ctx, "u1", &core.Memory{Title: "valid", Content: "c", Type: core.MemoryTypeFact})
	require.NoError(t, err)

	st.candidates = []store.EmbeddingCandidate{
		{ID: "", Title: "orphaned"},
		{ID: id, Title: "valid"},
	}

	gw := embedder.NewGateway(&backfillFakeProvider{dim: 4}, nil)
	failures := make(chan buffer.FailureEvent, 4)
	b := buffer.NewBackfiller(st, gw, failures, nil)

	require.NoError(t, b.SweepOnce(ctx, "u1"))
	require.Equal(t, 1, st.setCalls, "the valid candidate must still be embedded despite the null-id row")

	select {
	case ev := <-failures:
		require.Equal(t, buffer.FailureKindBackfillNullID, ev.Kind)
	default:
		t.Fatal("expected a backfill_null_id failure event")
	}
}
