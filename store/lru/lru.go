// Package lru is the in-process cache backend. It keeps values in an
// ARC cache and ignores TTLs; capacity eviction is the only expiry.
package lru

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru"
)

// Cache is an in-memory ARC-backed store
type Cache struct {
	arc *lru.ARCCache
}

// New creates a cache holding at most size entries
func New(size int) (*Cache, error) {
	arc, err := lru.NewARC(size)
	if err != nil {
		return nil, err
	}
	return &Cache{arc: arc}, nil
}

// Get looks up a key's value
func (cache *Cache) Get(key string) (value interface{}, ok bool) {
	return cache.arc.Get(key)
}

// Set adds a value. The TTL is ignored.
func (cache *Cache) Set(key string, value interface{}, ttl time.Duration) error {
	cache.arc.Add(key, value)
	return nil
}

// Del purges a key
func (cache *Cache) Del(key string) error {
	cache.arc.Remove(key)
	return nil
}

// Has checks for a key without updating recency
func (cache *Cache) Has(key string) bool {
	_, has := cache.arc.Peek(key)
	return has
}

// Len returns the number of cached entries
func (cache *Cache) Len() int {
	return cache.arc.Len()
}

// Keys returns all cached keys
func (cache *Cache) Keys() []string {
	keys := cache.arc.Keys()
	res := make([]string, 0, len(keys))
	for _, key := range keys {
		str, ok := key.(string)
		if !ok {
			str = fmt.Sprintf("%v", key)
		}
		res = append(res, str)
	}
	return res
}

// Clear drops every entry
func (cache *Cache) Clear() {
	cache.arc.Purge()
}

// GetSet returns the cached value, computing and storing it on a miss
func (cache *Cache) GetSet(key string, ttl time.Duration, getValue func(key string) (interface{}, error)) (interface{}, error) {
	value, ok := cache.arc.Get(key)
	if !ok {
		var err error
		value, err = getValue(key)
		if err != nil {
			return nil, err
		}
		cache.arc.Add(key, value)
	}
	return value, nil
}

// GetDel returns the cached value and removes it
func (cache *Cache) GetDel(key string) (value interface{}, ok bool) {
	value, ok = cache.arc.Get(key)
	if !ok {
		return nil, false
	}
	cache.arc.Remove(key)
	return value, true
}

// GetMulti looks up several keys; missing keys map to nil
func (cache *Cache) GetMulti(keys []string) map[string]interface{} {
	values := map[string]interface{}{}
	for _, key := range keys {
		value, _ := cache.arc.Get(key)
		values[key] = value
	}
	return values
}

// SetMulti stores several values
func (cache *Cache) SetMulti(values map[string]interface{}, ttl time.Duration) {
	for key, value := range values {
		cache.arc.Add(key, value)
	}
}

// DelMulti purges several keys
func (cache *Cache) DelMulti(keys []string) {
	for _, key := range keys {
		cache.arc.Remove(key)
	}
}

// Close is a no-op; the cache has no external resources
func (cache *Cache) Close() error {
	return nil
}
