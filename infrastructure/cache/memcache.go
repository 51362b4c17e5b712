package cache

import (
	"sync"
	"time"
)

// MemCache is a simple in-memory cache backed by sync.Map.
// Items can have optional TTL. A background cleanup goroutine
// runs when NewMemCache is given a positive cleanupInterval.
type MemCache struct {
	items sync.Map
	stop  chan struct{}
	once  sync.Once
	wg    sync.WaitGroup
	now   func() time.Time
}

type item struct {
	mu         sync.Mutex
	value      any
	expiration int64 // unix nano; 0 means no expiration
}

// NewMemCache creates a new MemCache. If cleanupInterval > 0,
// a background goroutine will periodically remove expired items.
func NewMemCache(cleanupInterval time.Duration) *MemCache {
	m := &MemCache{
		stop: make(chan struct{}),
		now:  time.Now,
	}
	if cleanupInterval > 0 {
		m.wg.Add(1)
		go func() {
			ticker := time.NewTicker(cleanupInterval)
			defer ticker.Stop()
			defer m.wg.Done()
			for {
				select {
				case <-ticker.C:
					m.cleanup()
				case <-m.stop:
					return
				}
			}
		}()
	}
	return m
}

func (m *MemCache) Set(key string, value any, ttl time.Duration) {
	m.items.Store(key, &item{
		value:      value,
		expiration: m.expiry(ttl),
	})
}

func (m *MemCache) Get(key string) (any, bool) {
	v, ok := m.items.Load(key)
	if !ok {
		return nil, false
	}
	it := v.(*item)
	it.mu.Lock()
	defer it.mu.Unlock()
	if it.isExpired(m.now()) {
		m.items.CompareAndDelete(key, it)
		return nil, false
	}
	return it.value, true
}

// GetOrCreate returns the live value at key, creating it with create when missing or expired.
// Every call pushes the expiration ttl into the future, so idle keys expire and busy keys stay.
func (m *MemCache) GetOrCreate(key string, ttl time.Duration, create func() any) any {
	for {
		actual, _ := m.items.LoadOrStore(key, &item{})
		it := actual.(*item)

		it.mu.Lock()
		if it.value != nil && it.isExpired(m.now()) {
			// expired entries are replaced, not revived
			it.mu.Unlock()
			m.items.CompareAndDelete(key, it)
			continue
		}
		if it.value == nil {
			it.value = create()
		}
		it.expiration = m.expiry(ttl)
		v := it.value
		it.mu.Unlock()
		return v
	}
}

func (m *MemCache) Delete(key string) {
	m.items.Delete(key)
}

func (m *MemCache) Len() int {
	n := 0
	now := m.now()
	m.items.Range(func(_, v any) bool {
		it := v.(*item)
		it.mu.Lock()
		if !it.isExpired(now) {
			n++
		}
		it.mu.Unlock()
		return true
	})
	return n
}

func (m *MemCache) Close() {
	m.once.Do(func() {
		close(m.stop)
	})
	m.wg.Wait()
}

func (m *MemCache) expiry(ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return m.now().Add(ttl).UnixNano()
}

func (it *item) isExpired(now time.Time) bool {
	if it == nil || it.expiration == 0 {
		return false
	}
	return now.UnixNano() > it.expiration
}

func (m *MemCache) cleanup() {
	now := m.now()
	m.items.Range(func(k, v any) bool {
		it := v.(*item)
		it.mu.Lock()
		expired := it.isExpired(now)
		it.mu.Unlock()
		if expired {
			m.items.CompareAndDelete(k, it)
		}
		return true
	})
}
