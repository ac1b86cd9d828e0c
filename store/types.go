package store

import "time"

// Store is the key-value surface shared by every cache backend. TTLs
// are honored by the redis and badger backends; the in-process LRU
// store ignores them and relies on eviction.
type Store interface {
	Get(key string) (value interface{}, ok bool)
	Set(key string, value interface{}, ttl time.Duration) error
	Del(key string) error
	Has(key string) bool
	Len() int
	Keys() []string
	Clear()
	GetSet(key string, ttl time.Duration, getValue func(key string) (interface{}, error)) (interface{}, error)
	GetDel(key string) (value interface{}, ok bool)
	GetMulti(keys []string) map[string]interface{}
	SetMulti(values map[string]interface{}, ttl time.Duration)
	DelMulti(keys []string)
	Close() error
}

// Backend names accepted by New
const (
	BackendAuto   = "auto"
	BackendRedis  = "redis"
	BackendBadger = "badger"
	BackendLRU    = "lru"
)

// Options select and configure a backend
type Options struct {
	Backend string // auto, redis, badger or lru

	// Redis
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string

	// Badger
	Dir string

	// LRU
	Size int
}
