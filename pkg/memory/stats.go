package memory

import (
	"context"
	"fmt"

	"github.com/memscribe/memscribe/pkg/store"
)

// Statistics is the get_statistics response shape: per-tenant counts,
// embedding coverage, and a plain-language vector-search health
// recommendation.
type Statistics struct {
	MemoryCount          int     `json:"memory_count"`
	EntityCount          int     `json:"entity_count"`
	EmbeddingCoveragePct float64 `json:"embedding_coverage_pct"`
	AvgRetention         float64 `json:"avg_retention"`
	Recommendation       string  `json:"recommendation"`
}

func (svc *Service) GetStatistics(ctx context.Context, userID string) Envelope {
	if err := svc.requireUserID(userID); err != nil {
		return Fail(err)
	}

	memoryCount, err := svc.Store.CountMemories(ctx, userID)
	if err != nil {
		return Fail(err)
	}
	entityCount, err := svc.Store.CountEntities(ctx, userID)
	if err != nil {
		return Fail(err)
	}

	hasEmbedding := true
	embedded, err := svc.Store.ListMemories(ctx, userID, &store.MemoryFilter{HasEmbedding: &hasEmbedding})
	if err != nil {
		return Fail(err)
	}

	var coverage float64
	if memoryCount > 0 {
		coverage = float64(len(embedded)) / float64(memoryCount) * 100
	}

	all, err := svc.Store.ListMemories(ctx, userID, &store.MemoryFilter{})
	if err != nil {
		return Fail(err)
	}
	var avgRetention float64
	if len(all) > 0 {
		var sum float64
		for _, m := range all {
			sum += Retention(m.CreatedAt, m.LastAccessedAt)
		}
		avgRetention = sum / float64(len(all))
	}

	stats := Statistics{
		MemoryCount:          memoryCount,
		EntityCount:          entityCount,
		EmbeddingCoveragePct: coverage,
		AvgRetention:         avgRetention,
		Recommendation:       recommend(memoryCount, coverage),
	}
	return OK(stats)
}

func recommend(memoryCount int, coveragePct float64) string {
	switch {
	case memoryCount == 0:
		return "no memories stored yet"
	case coveragePct >= 99:
		return "vector search is fully available"
	case coveragePct >= 50:
		return "vector search is partially degraded; run update_missing_embeddings to backfill"
	default:
		return "vector search is largely unavailable; most memories lack embeddings"
	}
}

// GetDailyCosts aggregates usage records over the trailing window.
func (svc *Service) GetDailyCosts(ctx context.Context, userID string, days int) Envelope {
	if err := svc.requireUserID(userID); err != nil {
		return Fail(err)
	}
	if days <= 0 {
		days = 30
	}

	costs, err := svc.Store.DailyCosts(ctx, userID, days)
	if err != nil {
		return Fail(fmt.Errorf("memory.get_daily_costs: %w", err))
	}
	return OK(costs)
}
