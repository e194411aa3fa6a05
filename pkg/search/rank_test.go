package search_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/search"
)

func scored(id string, sim float64) search.ScoredMemory {
	return search.ScoredMemory{
		Memory: &core.Memory{
			ID:         id,
			Importance: 0.5,
			CreatedAt:  time.Now().Add(-time.Hour),
			UpdatedAt:  time.Now().Add(-time.Hour),
		},
		Similarity: sim,
	}
}

func TestRankSimilarityIsMonotonicNonIncreasing(t *testing.T) {
	candidates := []search.ScoredMemory{
		scored("a", 0.1),
		scored("b", 0.9),
		scored("c", 0.5),
		scored("d", 0.9),
		scored("e", 0.3),
	}
	ranked := search.Rank(candidates, search.StrategySimilarity, time.Now())
	require.Len(t, ranked, 5)
	for i := 1; i < len(ranked); i++ {
		assert.GreaterOrEqualf(t, ranked[i-1].Similarity, ranked[i].Similarity,
			"result %d (%s, %.2f) ranks above %d (%s, %.2f) but scores lower",
			i-1, ranked[i-1].Memory.ID, ranked[i-1].Similarity, i, ranked[i].Memory.ID, ranked[i].Similarity)
	}
}

// TestRankTieBreakIsSecondaryNotFullResort guards against re-introducing a
// tie-break pass that independently re-sorts the whole set (which would
// discard the primary strategy order for any pair that doesn't tie).
func TestRankTieBreakIsSecondaryNotFullResort(t *testing.T) {
	now := time.Now()
	high := search.ScoredMemory{
		Memory:     &core.Memory{ID: "high", Importance: 0.1, UpdatedAt: now.Add(-time.Hour)},
		Similarity: 0.9,
	}
	low := search.ScoredMemory{
		Memory:     &core.Memory{ID: "low", Importance: 0.9, UpdatedAt: now},
		Similarity: 0.2,
	}
	ranked := search.Rank([]search.ScoredMemory{low, high}, search.StrategySimilarity, now)
	require.Len(t, ranked, 2)
	assert.Equal(t, "high", ranked[0].Memory.ID,
		"similarity strategy must order by similarity; importance/recency only break exact ties")
}

func TestRankTieBreakOrdersExactTiesByImportanceThenRecencyThenID(t *testing.T) {
	now := time.Now()
	a := search.ScoredMemory{
		Memory:     &core.Memory{ID: "a", Importance: 0.3, UpdatedAt: now.Add(-time.Hour)},
		Similarity: 0.5,
	}
	b := search.ScoredMemory{
		Memory:     &core.Memory{ID: "b", Importance: 0.8, UpdatedAt: now.Add(-time.Hour)},
		Similarity: 0.5,
	}
	c := search.ScoredMemory{
		Memory:     &core.Memory{ID: "c", Importance: 0.8, UpdatedAt: now},
		Similarity: 0.5,
	}
	ranked := search.Rank([]search.ScoredMemory{a, b, c}, search.StrategySimilarity, now)
	require.Len(t, ranked, 3)
	// b and c tie a on similarity and beat it on importance; c beats b on
	// recency since both tie on importance.
	assert.Equal(t, []string{"c", "b", "a"}, []string{ranked[0].Memory.ID, ranked[1].Memory.ID, ranked[2].Memory.ID})
}

func TestRankRecencyStrategy(t *testing.T) {
	now := time.Now()
	older := search.ScoredMemory{Memory: &core.Memory{ID: "older", UpdatedAt: now.Add(-48 * time.Hour)}}
	newer := search.ScoredMemory{Memory: &core.Memory{ID: "newer", UpdatedAt: now}}
	ranked := search.Rank([]search.ScoredMemory{older, newer}, search.StrategyRecency, now)
	require.Len(t, ranked, 2)
	assert.Equal(t, "newer", ranked[0].Memory.ID)
}

func TestRankImportanceStrategy(t *testing.T) {
	lo := search.ScoredMemory{Memory: &core.Memory{ID: "lo", Importance: 0.2}}
	hi := search.ScoredMemory{Memory: &core.Memory{ID: "hi", Importance: 0.9}}
	ranked := search.Rank([]search.ScoredMemory{lo, hi}, search.StrategyImportance, time.Now())
	require.Len(t, ranked, 2)
	assert.Equal(t, "hi", ranked[0].Memory.ID)
}
