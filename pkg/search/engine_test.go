package search_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/search"
	"github.com/memscribe/memscribe/pkg/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Client {
	t.Helper()
	c, err := sqlite.NewClient(&sqlite.Config{DBPath: ":memory:", NodeID: 1})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func seedMemory(t *testing.T, c *sqlite.Client, userID, title, content string, metadata map[string]any) {
	t.Helper()
	now := time.Now()
	m := &core.Memory{
		Title:     title,
		Content:   content,
		Type:      core.MemoryTypeEpisodic,
		Metadata:  metadata,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := c.CreateMemory(context.Background(), userID, m)
	require.NoError(t, err)
}

func floatPtr(v float64) *float64 { return &v }

// TestSearchMultiWordKeywordORSemantics is S1: an OR across keyword
// terms returns every memory matching at least one of them, and an
// explicit threshold=0 must not be treated as "unset".
func TestSearchMultiWordKeywordORSemantics(t *testing.T) {
	c := newTestStore(t)
	ctx := context.Background()
	const user = "u1"

	seedMemory(t, c, user, "episodic A", "first episodic memory", nil)
	seedMemory(t, c, user, "episodic B", "second episodic memory", nil)
	seedMemory(t, c, user, "semantic C", "a semantic memory", nil)

	engine := search.NewEngine(c, nil)

	result, err := engine.Search(ctx, user, "episodic semantic", search.Options{Threshold: floatPtr(0)})
	require.NoError(t, err)
	require.Len(t, result.Memories, 3, "OR semantics across keyword terms must return every match")

	result, err = engine.Search(ctx, user, "episodic", search.Options{Threshold: floatPtr(0)})
	require.NoError(t, err)
	require.Len(t, result.Memories, 2)
}

// TestSearchMetadataPredicate is S3: a bare key:value predicate and its
// metadata.-prefixed spelling must both scope to the matching record
// only.
func TestSearchMetadataPredicate(t *testing.T) {
	c := newTestStore(t)
	ctx := context.Background()
	const user = "u1"

	seedMemory(t, c, user, "alpha project notes", "notes", map[string]any{"project": "alpha"})
	seedMemory(t, c, user, "beta project notes", "notes", map[string]any{"project": "beta"})

	engine := search.NewEngine(c, nil)

	result, err := engine.Search(ctx, user, "project:alpha", search.Options{})
	require.NoError(t, err)
	require.Len(t, result.Memories, 1)
	require.Equal(t, "alpha project notes", result.Memories[0].Memory.Title)

	result, err = engine.Search(ctx, user, "metadata.project:alpha", search.Options{})
	require.NoError(t, err)
	require.Len(t, result.Memories, 1)
	require.Equal(t, "alpha project notes", result.Memories[0].Memory.Title)
}

// TestSearchExplicitZeroThresholdDiffersFromUnset guards the
// *float64 Threshold plumbing: an explicit 0 must not silently become
// the default threshold.
func TestSearchExplicitZeroThresholdDiffersFromUnset(t *testing.T) {
	c := newTestStore(t)
	ctx := context.Background()
	const user = "u1"

	seedMemory(t, c, user, "only match", "keyword appears here", nil)

	engine := search.NewEngine(c, nil)

	withZero, err := engine.Search(ctx, user, "keyword", search.Options{Threshold: floatPtr(0)})
	require.NoError(t, err)
	require.Len(t, withZero.Memories, 1)
	require.Equal(t, 0.0, withZero.Memories[0].Similarity, "an explicit 0 threshold must be used as-is for keyword hits")

	unset, err := engine.Search(ctx, user, "keyword", search.Options{})
	require.NoError(t, err)
	require.Len(t, unset.Memories, 1, "keyword pass is unaffected by threshold either way, but both must take the same path without panicking on a nil pointer")
	require.Equal(t, search.DefaultThreshold, unset.Memories[0].Similarity, "an unset threshold falls back to DefaultThreshold")
}

func TestSearchEmptyQueryReturnsNoneWithoutScanning(t *testing.T) {
	c := newTestStore(t)
	ctx := context.Background()
	engine := search.NewEngine(c, nil)

	result, err := engine.Search(ctx, "u1", "   ", search.Options{})
	require.NoError(t, err)
	require.Empty(t, result.Memories)
	require.Equal(t, "none", result.Mode)
}
