// Package cache implements the keyed backing store of the page cache: raw
// byte providers with expiry, and a Cache recording dependencies next to the
// stored values.
package cache

import (
	"context"
	"sync"
	"time"
)

// Provider is an interface for a cache provider.
// It stores and retrieves []byte values, which represent stored pages.
// It also keeps track of expiration times of cache entries.
// A zero expiration time means the entry never expires.
//
// Implementations must be thread-safe!
type Provider interface {
	// Get returns the cached value for the given key, if it exists.
	// It also returns a boolean indicating whether retrieval was successful.
	// If the cache entry has expired, the boolean should be false.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	// Put stores the given value in the cache under the given key.
	// It also sets an expiration time for the entry.
	Put(ctx context.Context, key string, expires time.Time, bytes []byte) error
	// Purge removes the cache entry for the given key.
	// Purging a key that does not exist is not an error.
	Purge(ctx context.Context, key string) error
}

func expired(expires time.Time, now time.Time) bool {
	return !expires.IsZero() && !now.Before(expires)
}

type memCacheEntry struct {
	expires time.Time
	bytes   []byte
}

// MemCache is a Provider keeping entries in process memory.
type MemCache struct {
	mutex *sync.RWMutex
	db    map[string]memCacheEntry
	now   func() time.Time
}

func NewMemCache() MemCache {
	return MemCache{
		mutex: &sync.RWMutex{},
		db:    make(map[string]memCacheEntry),
		now:   time.Now,
	}
}

func (m MemCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	m.mutex.RLock()
	entry, ok := m.db[key]
	m.mutex.RUnlock()
	if !ok {
		return nil, false, nil
	}
	if expired(entry.expires, m.now()) {
		m.Purge(ctx, key)
		return nil, false, nil
	}
	return entry.bytes, true, nil
}

func (m MemCache) Put(ctx context.Context, key string, expires time.Time, bytes []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.db[key] = memCacheEntry{expires, append([]byte(nil), bytes...)}
	return nil
}

func (m MemCache) Purge(ctx context.Context, key string) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	delete(m.db, key)
	return nil
}

// Len returns the number of entries, expired ones included.
func (m MemCache) Len() int {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return len(m.db)
}
