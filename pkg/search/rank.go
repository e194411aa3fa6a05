package search

import (
	"math"
	"sort"
	"time"

	"github.com/memscribe/memscribe/pkg/core"
)

// Strategy selects how ScoredMemory results are ordered.
type Strategy string

const (
	StrategyRecency    Strategy = "recency"
	StrategyImportance Strategy = "importance"
	StrategySimilarity Strategy = "similarity"
	StrategyComposite  Strategy = "composite"
)

// ScoredMemory pairs a Memory with the similarity the vector/keyword
// pass assigned it and the composite rank score computed for the
// requested strategy.
type ScoredMemory struct {
	Memory     *core.Memory
	Similarity float64
	Score      float64
}

// decay implements the Ebbinghaus-style floor: memories never fully
// expire, so the decay score never drops below 0.1.
func decay(ageDays float64) float64 {
	d := 1 / (1 + math.Log(1+ageDays))
	if d < 0.1 {
		return 0.1
	}
	return d
}

// linkBoost is the normalized count of other memories in the same
// candidate set sharing at least one tag with m, capped at 1.0.
func linkBoost(m *core.Memory, all []*core.Memory) float64 {
	if len(m.Tags) == 0 {
		return 0
	}
	tagSet := make(map[string]struct{}, len(m.Tags))
	for _, t := range m.Tags {
		tagSet[t] = struct{}{}
	}

	var shared int
	for _, other := range all {
		if other.ID == m.ID {
			continue
		}
		for _, t := range other.Tags {
			if _, ok := tagSet[t]; ok {
				shared++
				break
			}
		}
	}

	boost := float64(shared) / 10.0
	if boost > 1.0 {
		return 1.0
	}
	return boost
}

// Rank orders candidates in place according to strategy, populating
// Score for the composite strategy, and returns the reordered slice.
func Rank(candidates []ScoredMemory, strategy Strategy, now time.Time) []ScoredMemory {
	if strategy == "" {
		strategy = StrategyComposite
	}

	memories := make([]*core.Memory, len(candidates))
	for i := range candidates {
		memories[i] = candidates[i].Memory
	}

	for i := range candidates {
		m := candidates[i].Memory
		switch strategy {
		case StrategyComposite:
			ageDays := now.Sub(m.CreatedAt).Hours() / 24
			if ageDays < 0 {
				ageDays = 0
			}
			candidates[i].Score = 0.5*candidates[i].Similarity +
				0.2*m.Importance +
				0.2*decay(ageDays) +
				0.1*linkBoost(m, memories)
		default:
			candidates[i].Score = candidates[i].Similarity
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		var primary int
		switch strategy {
		case StrategyRecency:
			primary = compareTime(a.Memory.UpdatedAt, b.Memory.UpdatedAt)
		case StrategyImportance:
			primary = compareFloat(a.Memory.Importance, b.Memory.Importance)
		case StrategySimilarity:
			primary = compareFloat(a.Similarity, b.Similarity)
		default:
			primary = compareFloat(a.Score, b.Score)
		}
		if primary != 0 {
			return primary > 0
		}
		return tieBreakLess(a.Memory, b.Memory)
	})
	return candidates
}

// compareFloat returns >0 if a>b, <0 if a<b, 0 if equal.
func compareFloat(a, b float64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

// compareTime returns >0 if a is after b, <0 if before, 0 if equal.
func compareTime(a, b time.Time) int {
	switch {
	case a.After(b):
		return 1
	case a.Before(b):
		return -1
	default:
		return 0
	}
}

// tieBreakLess orders two candidates that tied on the requested
// strategy's primary score: importance desc, then updated_at desc,
// then lexicographic id, so the result order is fully deterministic
// regardless of truncation point.
func tieBreakLess(a, b *core.Memory) bool {
	if a.Importance != b.Importance {
		return a.Importance > b.Importance
	}
	if !a.UpdatedAt.Equal(b.UpdatedAt) {
		return a.UpdatedAt.After(b.UpdatedAt)
	}
	return a.ID < b.ID
}
