// Package-internal test: tick is unexported, and exercising the
// claim-process-reschedule loop directly is the point of these tests.
package buffer

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/embedder"
	"github.com/memscribe/memscribe/pkg/store/sqlite"
)

// soleMemory fetches the only memory a test tenant owns. The worker
// decodes each buffered write into its own *core.Memory, so the id the
// caller's original struct carries (still empty at enqueue time) is
// never the one the store assigns.
func soleMemory(t *testing.T, c *sqlite.Client, userID string) *core.Memory {
	t.Helper()
	mems, err := c.ListMemories(context.Background(), userID, nil)
	require.NoError(t, err)
	require.Len(t, mems, 1)
	return mems[0]
}

// fakeProvider is a deterministic embedder.Provider stand-in: every text
// gets the same fixed-dimension vector, so tests never depend on a real
// model being reachable.
type fakeProvider struct {
	dim   int
	calls int
}

func (p *fakeProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, int, error) {
	p.calls++
	vectors := make([][]float32, len(texts))
	for i := range texts {
		v := make([]float32, p.dim)
		v[0] = 1
		vectors[i] = v
	}
	return vectors, len(texts), nil
}

func (p *fakeProvider) Dimension() int    { return p.dim }
func (p *fakeProvider) ModelName() string { return "fake-model" }
func (p *fakeProvider) Close() error      { return nil }

func newTestWorker(t *testing.T) (*Worker, *sqlite.Client, *fakeProvider) {
	t.Helper()
	c, err := sqlite.NewClient(&sqlite.Config{DBPath: ":memory:", NodeID: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	provider := &fakeProvider{dim: 4}
	gw := embedder.NewGateway(provider, nil)

	w := NewWorker(c, gw, make(chan FailureEvent, 4), nil)
	return w, c, provider
}

func TestWorkerProcessAddMemoryEmbedsAndStores(t *testing.T) {
	w, c, provider := newTestWorker(t)
	ctx := context.Background()
	buf := NewBuffer(c)

	m := &core.Memory{Title: "t", Content: "c", Type: core.MemoryTypeFact}
	receipt, err := buf.EnqueueAddMemory(ctx, "u1", m)
	require.NoError(t, err)

	bw, err := c.NextPendingWrite(ctx, time.Now())
	require.NoError(t, err)
	require.NotNil(t, bw)
	require.Equal(t, receipt.WriteID, bw.ID)

	require.True(t, w.tick(ctx))

	got := soleMemory(t, c, "u1")
	require.True(t, got.HasEmbedding())
	require.Equal(t, 1, provider.calls)

	_, err = c.NextPendingWrite(ctx, time.Now())
	require.Error(t, err, "completed write must be removed from the queue")
}

func TestWorkerProcessUpdateMemoryReEmbeds(t *testing.T) {
	w, c, provider := newTestWorker(t)
	ctx := context.Background()
	buf := NewBuffer(c)

	m := &core.Memory{Title: "old", Content: "old content", Type: core.MemoryTypeFact}
	_, err := buf.EnqueueAddMemory(ctx, "u1", m)
	require.NoError(t, err)
	require.True(t, w.tick(ctx))
	require.Equal(t, 1, provider.calls)

	created := soleMemory(t, c, "u1")

	newTitle := "new"
	_, err = buf.EnqueueUpdateMemory(ctx, "u1", created.ID, &newTitle, nil)
	require.NoError(t, err)
	require.True(t, w.tick(ctx))

	got, err := c.GetMemory(ctx, created.ID, "u1")
	require.NoError(t, err)
	require.Equal(t, "new", got.Title)
	require.Equal(t, 2, provider.calls, "an update must re-embed the memory")
}

func TestWorkerTickFalseWhenQueueEmpty(t *testing.T) {
	w, _, _ := newTestWorker(t)
	require.False(t, w.tick(context.Background()))
}

// failingProvider always errors, to exercise the reschedule/failure path.
type failingProvider struct{ fakeProvider }

func (p *failingProvider) EmbedBatch(ctx context.Context, texts []string) ([][]float32, int, error) {
	return nil, 0, &embedder.UnavailableError{Retryable: true, Err: context.DeadlineExceeded}
}

func TestWorkerRescheduleMovesToFailedAfterMaxAttemptsAndNotifies(t *testing.T) {
	c, err := sqlite.NewClient(&sqlite.Config{DBPath: ":memory:", NodeID: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	provider := &failingProvider{fakeProvider{dim: 4}}
	gw := embedder.NewGateway(provider, nil)
	failures := make(chan FailureEvent, 4)
	w := NewWorker(c, gw, failures, nil)
	w.MaxAttempts = 1

	buf := NewBuffer(c)
	m := &core.Memory{Title: "t", Content: "c", Type: core.MemoryTypeFact}
	_, err = buf.EnqueueAddMemory(context.Background(), "u1", m)
	require.NoError(t, err)

	require.True(t, w.tick(context.Background()))

	select {
	case ev := <-failures:
		require.Equal(t, FailureKindWriteFailed, ev.Kind)
	default:
		t.Fatal("expected a failure event once the attempt ceiling was reached")
	}
}
