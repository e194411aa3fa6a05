package session

import (
	"context"
	"sync"
	"time"

	"github.com/memscribe/memscribe/pkg/core"
)

// MemStore is the default SessionStore: an in-process sync.Map with a
// periodic TTL sweep. Suitable for a single-process deployment; use
// RedisStore when sessions must be shared across processes.
type MemStore struct {
	sessions sync.Map // tokenHash -> *core.Session
}

func NewMemStore() *MemStore {
	return &MemStore{}
}

func (m *MemStore) Get(ctx context.Context, tokenHash string) (*core.Session, error) {
	v, ok := m.sessions.Load(tokenHash)
	if !ok {
		return nil, core.ErrNotFound
	}
	return v.(*core.Session), nil
}

func (m *MemStore) Put(ctx context.Context, s *core.Session) error {
	m.sessions.Store(s.TokenHash, s)
	return nil
}

func (m *MemStore) Delete(ctx context.Context, tokenHash string) error {
	m.sessions.Delete(tokenHash)
	return nil
}

func (m *MemStore) Sweep(ctx context.Context, now time.Time) (int, error) {
	var evicted int
	m.sessions.Range(func(key, value interface{}) bool {
		s := value.(*core.Session)
		if s.Expired(now) {
			m.sessions.Delete(key)
			evicted++
		}
		return true
	})
	return evicted, nil
}

// RunSweeper blocks, sweeping on interval until ctx is canceled.
func (m *MemStore) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = m.Sweep(ctx, time.Now())
		}
	}
}
