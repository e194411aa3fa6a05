// Package search implements the hybrid vector/keyword/metadata search
// engine: parse the query, run whichever passes the query shape and
// embedder availability allow, union and de-duplicate the candidate
// pool by memory id, rank it by the requested strategy, and report
// which search modes actually ran.
package search

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/embedder"
	"github.com/memscribe/memscribe/pkg/store"
)

// DefaultThreshold is the similarity floor applied to the vector pass
// and the base relevance assigned to keyword hits, when the caller does
// not specify one.
const DefaultThreshold = 0.3

// Options configures a single Search call. Zero values take the
// documented defaults.
type Options struct {
	Limit       int
	Threshold   *float64
	Strategy    Strategy
	MemoryTypes []core.MemoryType
	TagsAnyOf   []string
}

// Result is the envelope the search engine hands back to the memory
// facade: the ranked, truncated memories plus which mode(s) actually
// produced them and why the vector pass may have been skipped.
type Result struct {
	Memories       []ScoredMemory
	Mode           string
	EmbeddingError string
}

// Engine runs hybrid search over a Store, optionally embedding the
// query text via the Embedder Gateway.
type Engine struct {
	Store    store.Store
	Embedder *embedder.Gateway
}

func NewEngine(s store.Store, e *embedder.Gateway) *Engine {
	return &Engine{Store: s, Embedder: e}
}

// Search runs the algorithm and returns a ranked, bounded result set
// scoped to userID. An empty query (no keywords, no predicates) always
// returns an empty result without scanning the tenant's memories.
func (e *Engine) Search(ctx context.Context, userID, query string, opts Options) (*Result, error) {
	if opts.Limit <= 0 {
		opts.Limit = 20
	}
	threshold := DefaultThreshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if opts.Strategy == "" {
		opts.Strategy = StrategyComposite
	}

	parsed := ParseQuery(query)
	if parsed.IsEmpty() {
		return &Result{Memories: nil, Mode: "none"}, nil
	}

	filter := &store.MemoryFilter{TagsAnyOf: opts.TagsAnyOf}
	if len(opts.MemoryTypes) == 1 {
		filter.Type = opts.MemoryTypes[0]
	}

	candidates := make(map[string]ScoredMemory)
	var modes []string
	var embeddingErr string

	// 2. Vector pass.
	if e.Embedder != nil && len(parsed.Keywords) > 0 {
		hasEmbedding := true
		vecFilter := *filter
		vecFilter.HasEmbedding = &hasEmbedding

		vectors, err := e.Embedder.Embed(ctx, userID, []string{strings.Join(parsed.Keywords, " ")})
		if err != nil {
			embeddingErr = err.Error()
		} else if len(vectors) == 1 {
			queryVec := vectors[0]
			pool, err := e.Store.ListMemories(ctx, userID, &vecFilter)
			if err != nil {
				return nil, fmt.Errorf("search: vector pass: %w", err)
			}
			var hit bool
			for _, m := range pool {
				if !matchesMemoryTypes(m, opts.MemoryTypes) {
					continue
				}
				sim := CosineSimilarity(queryVec, m.Embedding)
				if sim >= threshold {
					candidates[m.ID] = ScoredMemory{Memory: m, Similarity: sim}
					hit = true
				}
			}
			if hit {
				modes = append(modes, "vector")
			}
		}
	} else if e.Embedder == nil {
		embeddingErr = "embedder unavailable"
	}

	// 3. Keyword pass — always evaluated.
	if len(parsed.Keywords) > 0 {
		pool, err := e.Store.ListMemories(ctx, userID, filter)
		if err != nil {
			return nil, fmt.Errorf("search: keyword pass: %w", err)
		}
		var hit bool
		for _, m := range pool {
			if !matchesMemoryTypes(m, opts.MemoryTypes) {
				continue
			}
			if matchesAnyKeyword(m, parsed.Keywords) {
				if existing, ok := candidates[m.ID]; !ok || threshold > existing.Similarity {
					candidates[m.ID] = ScoredMemory{Memory: m, Similarity: threshold}
				}
				hit = true
			}
		}
		if hit {
			modes = append(modes, "keyword")
		}
	}

	// 4. Metadata pass — AND-combined with whatever the vector/keyword
	// passes already produced. A pure-metadata query (no keywords) scans
	// the tenant fresh and filters by predicate alone.
	if len(parsed.Predicates) > 0 {
		if len(parsed.Keywords) == 0 {
			pool, err := e.Store.ListMemories(ctx, userID, filter)
			if err != nil {
				return nil, fmt.Errorf("search: metadata pass: %w", err)
			}
			var hit bool
			for _, m := range pool {
				if !matchesMemoryTypes(m, opts.MemoryTypes) {
					continue
				}
				if matchesAllPredicates(m, parsed.Predicates) {
					candidates[m.ID] = ScoredMemory{Memory: m, Similarity: threshold}
					hit = true
				}
			}
			if hit {
				modes = append(modes, "metadata")
			}
		} else {
			for id, c := range candidates {
				if !matchesAllPredicates(c.Memory, parsed.Predicates) {
					delete(candidates, id)
				}
			}
			modes = append(modes, "metadata")
		}
	}

	// 5. Union & de-duplicate already happened via the map keyed by id;
	// flatten to a slice.
	pool := make([]ScoredMemory, 0, len(candidates))
	for _, c := range candidates {
		pool = append(pool, c)
	}

	// 6. Re-rank by strategy.
	ranked := Rank(pool, opts.Strategy, time.Now())

	// 7. Truncate. Rank already applied the tie-break comparator as a
	// secondary key for ties on the requested strategy, so truncating
	// here preserves strategy order instead of re-sorting it away.
	if len(ranked) > opts.Limit {
		ranked = ranked[:opts.Limit]
	}

	// 8. Report mode.
	mode := strings.Join(dedupeModes(modes), "+")
	if mode == "" {
		mode = "none"
	}

	return &Result{Memories: ranked, Mode: mode, EmbeddingError: embeddingErr}, nil
}

func matchesMemoryTypes(m *core.Memory, types []core.MemoryType) bool {
	if len(types) == 0 {
		return true
	}
	for _, t := range types {
		if m.Type == t {
			return true
		}
	}
	return false
}

func matchesAnyKeyword(m *core.Memory, keywords []string) bool {
	haystack := strings.ToLower(m.Title + " " + m.Content)
	for _, kw := range keywords {
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func matchesAllPredicates(m *core.Memory, predicates []Predicate) bool {
	for _, p := range predicates {
		v, ok := m.Metadata[p.Key]
		if !ok {
			return false
		}
		if !strings.EqualFold(stringifyMetadataValue(v), p.Value) {
			return false
		}
	}
	return true
}

func stringifyMetadataValue(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprintf("%v", t)
	}
}

func dedupeModes(modes []string) []string {
	seen := make(map[string]struct{}, len(modes))
	var out []string
	for _, m := range modes {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		out = append(out, m)
	}
	return out
}
