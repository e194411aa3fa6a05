package embedder

import (
	"context"
	"time"

	"github.com/memscribe/memscribe/pkg/core"
)

// MaxBatch is the implementation-defined batching bound B from §4.2.
const MaxBatch = 64

// UsageRecorder is the narrow slice of store.Store the Gateway needs: the
// ability to append a UsageRecord. Kept as its own interface so pkg/embedder
// never imports pkg/store (avoids a dependency cycle, since pkg/store never
// needs to know about embedders).
type UsageRecorder interface {
	RecordUsage(ctx context.Context, rec *core.UsageRecord) error
}

// Gateway is the Embedder Gateway (C2): it wraps a Provider, enforces the
// batching bound, and records a UsageRecord per successful call.
type Gateway struct {
	provider Provider
	usage    UsageRecorder
}

func NewGateway(provider Provider, usage UsageRecorder) *Gateway {
	return &Gateway{provider: provider, usage: usage}
}

// Embed embeds 1..MaxBatch texts for userID, recording usage on success.
func (g *Gateway) Embed(ctx context.Context, userID string, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if len(texts) > MaxBatch {
		texts = texts[:MaxBatch]
	}

	vectors, tokens, err := g.provider.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, translateErr(err)
	}
	if len(vectors) != len(texts) {
		return nil, core.New("Gateway.Embed", core.KindDependencyUnavail,
			"embedder returned a mismatched vector count", nil)
	}

	if g.usage != nil {
		_ = g.usage.RecordUsage(ctx, &core.UsageRecord{
			UserID:    userID,
			Provider:  "embedder:" + g.provider.ModelName(),
			Operation: "embed",
			Tokens:    tokens,
			Cost:      CostForTokens(g.provider.ModelName(), tokens),
			Timestamp: time.Now(),
		})
	}
	return vectors, nil
}

// Dimension exposes the provider's fixed output dimension.
func (g *Gateway) Dimension() int { return g.provider.Dimension() }

func (g *Gateway) Close() error { return g.provider.Close() }

func translateErr(err error) error {
	switch e := err.(type) {
	case *UnavailableError:
		return core.New("Gateway.Embed", core.KindDependencyUnavail, e.Error(), err)
	case *QuotaExceededError:
		return core.New("Gateway.Embed", core.KindRateLimited, e.Error(), err)
	default:
		return core.New("Gateway.Embed", core.KindDependencyUnavail, err.Error(), err)
	}
}
