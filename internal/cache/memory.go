package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// memoryClient implementa Client sobre go-cache.
type memoryClient struct {
	prefix string
	c      *gocache.Cache

	// mu serializa TrackWindow.
	mu sync.Mutex
}

// NewMemory crea un cliente de cache en memoria. Las entradas expiradas se
// limpian cada minuto.
func NewMemory(prefix string) *memoryClient {
	return &memoryClient{
		prefix: prefix,
		c:      gocache.New(gocache.NoExpiration, time.Minute),
	}
}

func (m *memoryClient) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(prefixed(m.prefix, key))
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *memoryClient) Set(_ context.Context, key, value string, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(prefixed(m.prefix, key), value, ttl)
	return nil
}

func (m *memoryClient) Delete(_ context.Context, key string) error {
	m.c.Delete(prefixed(m.prefix, key))
	return nil
}

func (m *memoryClient) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	k := prefixed(m.prefix, key)
	// Add falla si existe; entre Add e Increment la key puede expirar.
	for i := 0; i < 2; i++ {
		if err := m.c.Add(k, int64(1), ttl); err == nil {
			return 1, nil
		}
		if n, err := m.c.IncrementInt64(k, 1); err == nil {
			return n, nil
		}
	}
	return 0, fmt.Errorf("cache: incr %q: concurrent expiry", key)
}

func (m *memoryClient) TrackWindow(_ context.Context, key, member string, at time.Time, window time.Duration, limit int) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	k := prefixed(m.prefix, key)
	set := map[string]int64{}
	if v, ok := m.c.Get(k); ok {
		if prev, ok := v.(map[string]int64); ok {
			set = prev
		}
	}

	cutoff := at.Add(-window).Unix()
	for mem, ts := range set {
		if ts <= cutoff {
			delete(set, mem)
		}
	}
	set[member] = at.Unix()
	for limit > 0 && len(set) > limit {
		delete(set, oldest(set))
	}

	ttl := window
	if ttl <= 0 {
		ttl = gocache.NoExpiration
	}
	m.c.Set(k, set, ttl)
	return int64(len(set)), nil
}

func oldest(set map[string]int64) string {
	var key string
	var oldestTS int64
	for k, ts := range set {
		if key == "" || ts < oldestTS {
			key, oldestTS = k, ts
		}
	}
	return key
}

func (m *memoryClient) Ping(context.Context) error { return nil }

func (m *memoryClient) Close() error {
	m.c.Flush()
	return nil
}
