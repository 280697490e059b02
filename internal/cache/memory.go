package cache

import (
	"context"
	"sync"
	"time"

	"github.com/bilgisen/wastewatch/internal/utils"
)

// MemoryCache is used when no REDIS_URL is configured.
type MemoryCache struct {
	mu   sync.Mutex
	data map[string]time.Time
	ttl  time.Duration
	now  func() time.Time
}

func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		data: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func (m *MemoryCache) Close() error {
	return nil
}

func (m *MemoryCache) IsSeen(ctx context.Context, url string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := utils.Hash(url)
	expires, ok := m.data[key]
	if !ok {
		return false, nil
	}
	if m.ttl > 0 && m.now().After(expires) {
		delete(m.data, key)
		return false, nil
	}
	return true, nil
}

func (m *MemoryCache) MarkSeen(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[utils.Hash(url)] = m.now().Add(m.ttl)
	return nil
}

func (m *MemoryCache) Forget(ctx context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, utils.Hash(url))
	return nil
}

func (m *MemoryCache) Clear(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = make(map[string]time.Time)
	return nil
}
