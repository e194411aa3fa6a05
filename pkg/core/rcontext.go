package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Context bundles the tenant, a deadline-bearing context.Context and a
// user-bound logger for one call. The HTTP /mcp handler builds one per
// request with NewContext. The Memory Core and Contact Sync services do
// not take a Context; they receive a context.Context and the user id as
// separate arguments. Context carries no circuit-breaker set.
type Context struct {
	// UserID is the authenticated tenant this call is scoped to. Every
	// downstream Store/Search/Buffer call is parameterized by it; there is
	// no global/ambient user state.
	UserID string

	// Ctx carries cancellation and deadline. NewContext applies a 30s
	// deadline; BackgroundContext uses context.Background() with none.
	Ctx context.Context

	// Log is a structured logger, always pre-bound with user_id. Never
	// nil — callers use zap.NewNop() in tests that don't care about logs.
	Log *zap.Logger
}

// NewContext builds a Context for a user-serving call with the standard
// 30-second deadline (§5). The returned cancel func must be called by the
// caller once the operation completes.
func NewContext(parent context.Context, userID string, log *zap.Logger) (*Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(parent, 30*time.Second)
	if log == nil {
		log = zap.NewNop()
	}
	return &Context{
		UserID: userID,
		Ctx:    ctx,
		Log:    log.With(zap.String("user_id", userID)),
	}, cancel
}

// BackgroundContext builds a Context with no deadline. The buffer worker
// does not use it; it runs on the context.Context passed to Worker.Run.
func BackgroundContext(userID string, log *zap.Logger) *Context {
	if log == nil {
		log = zap.NewNop()
	}
	return &Context{
		UserID: userID,
		Ctx:    context.Background(),
		Log:    log.With(zap.String("user_id", userID)),
	}
}
