package store

import (
	"fmt"

	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/store/badger"
	"github.com/ragent-io/ragent/store/lru"
	"github.com/ragent-io/ragent/store/redis"
)

// DefaultLRUSize bounds the in-process fallback store
const DefaultLRUSize = 10240

// New creates a store for the selected backend. The auto backend
// prefers Redis, falls back to Badger when a data directory is
// configured, and ends at the in-process LRU store so the service
// always has a cache.
func New(options Options) (Store, error) {
	switch options.Backend {
	case BackendRedis:
		return redis.New(redisOptions(options))

	case BackendBadger:
		return badger.New(options.Dir)

	case BackendLRU:
		return lru.New(lruSize(options))

	case BackendAuto, "":
		if options.Addr != "" {
			kv, err := redis.New(redisOptions(options))
			if err == nil {
				return kv, nil
			}
			log.Warn("store: redis %s unreachable, falling back: %s", options.Addr, err.Error())
		}
		if options.Dir != "" {
			kv, err := badger.New(options.Dir)
			if err == nil {
				return kv, nil
			}
			log.Warn("store: badger open %s failed, falling back: %s", options.Dir, err.Error())
		}
		return lru.New(lruSize(options))

	default:
		return nil, fmt.Errorf("unknown store backend %q", options.Backend)
	}
}

func redisOptions(options Options) redis.Options {
	return redis.Options{
		Addr:     options.Addr,
		Username: options.Username,
		Password: options.Password,
		DB:       options.DB,
		Prefix:   options.Prefix,
	}
}

func lruSize(options Options) int {
	if options.Size > 0 {
		return options.Size
	}
	return DefaultLRUSize
}
