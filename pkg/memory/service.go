package memory

import (
	"github.com/memscribe/memscribe/pkg/buffer"
	"github.com/memscribe/memscribe/pkg/core"
	"github.com/memscribe/memscribe/pkg/embedder"
	"github.com/memscribe/memscribe/pkg/search"
	"github.com/memscribe/memscribe/pkg/store"
)

// Service is the Memory Core facade: every public method takes an
// explicit user_id and enforces tenant ownership before touching the
// Store.
type Service struct {
	Store    store.Store
	Embedder *embedder.Gateway
	Search   *search.Engine
	Buffer   *buffer.Buffer
	IDs      *core.IDGenerator
}

// NewService wires the facade from its already-constructed
// dependencies. Embedder and Buffer may be nil — a nil Embedder skips
// embedding generation and degrades search to keyword+metadata; a nil
// Buffer makes use_buffer requests fail with a clear error instead of
// panicking.
func NewService(s store.Store, e *embedder.Gateway, eng *search.Engine, buf *buffer.Buffer, ids *core.IDGenerator) *Service {
	return &Service{Store: s, Embedder: e, Search: eng, Buffer: buf, IDs: ids}
}

func (svc *Service) requireUserID(userID string) error {
	if userID == "" {
		return core.New("memory", core.KindUnauthenticated, "user_id is required", nil)
	}
	return nil
}
