package cache

import (
	"context"
	"sync"
	"time"

	"github.com/quilpalta/alpalo/news"
)

// Memory caches the listing in process for ttl. Only inserts made through
// the same process invalidate it.
type Memory struct {
	mu      sync.RWMutex
	items   []news.Item
	fetched time.Time
	gen     uint64
	ttl     time.Duration
	now     func() time.Time
}

// NewMemory returns an empty in-process cache.
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now}
}

func (m *Memory) valid() bool {
	return m.items != nil && m.now().Sub(m.fetched) < m.ttl
}

// Load implements Backend.
func (m *Memory) Load(ctx context.Context) ([]news.Item, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.valid() {
		return nil, false, nil
	}
	out := make([]news.Item, len(m.items))
	copy(out, m.items)
	return out, true, nil
}

// Generation implements Backend.
func (m *Memory) Generation(ctx context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gen, nil
}

// Save implements Backend.
func (m *Memory) Save(ctx context.Context, items []news.Item, gen uint64) (bool, error) {
	stored := make([]news.Item, len(items))
	copy(stored, items)
	m.mu.Lock()
	defer m.mu.Unlock()
	if gen != m.gen {
		return false, nil
	}
	m.items = stored
	m.fetched = m.now()
	return true, nil
}

// Clear implements Backend.
func (m *Memory) Clear(ctx context.Context) error {
	m.mu.Lock()
	m.items = nil
	m.gen++
	m.mu.Unlock()
	return nil
}
