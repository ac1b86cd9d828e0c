// Package redis is the Redis cache backend. Values are stored as JSON
// under a configurable key prefix so several services can share one
// database.
package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"
	"github.com/yaoapp/kun/log"
)

// DefaultPrefix namespaces keys when none is configured
const DefaultPrefix = "ragent:"

// Options configure the client and key namespace
type Options struct {
	Addr     string
	Username string
	Password string
	DB       int
	Prefix   string
	Timeout  int // Dial timeout in seconds
}

// Store is a Redis-backed KV store
type Store struct {
	rdb    *redis.Client
	prefix string
}

// New dials Redis and verifies the connection
func New(options Options) (*Store, error) {
	if options.Addr == "" {
		return nil, fmt.Errorf("redis addr is required")
	}
	if options.Timeout <= 0 {
		options.Timeout = 5
	}
	if options.Prefix == "" {
		options.Prefix = DefaultPrefix
	}

	opts := &redis.Options{Addr: options.Addr, DB: options.DB}
	if options.Username != "" {
		opts.Username = options.Username
	}
	if options.Password != "" {
		opts.Password = options.Password
	}

	client := redis.NewClient(opts).WithTimeout(time.Duration(options.Timeout) * time.Second)
	if _, err := client.Ping(context.Background()).Result(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect redis %s: %w", options.Addr, err)
	}

	return &Store{rdb: client, prefix: options.Prefix}, nil
}

// Get looks up a key's value
func (store *Store) Get(key string) (value interface{}, ok bool) {
	key = store.prefix + key
	val, err := store.rdb.Get(context.Background(), key).Result()
	if err != nil {
		if err != redis.Nil {
			log.Error("Store redis Get %s: %s", key, err.Error())
		}
		return nil, false
	}

	if err := jsoniter.Unmarshal([]byte(val), &value); err != nil {
		log.Error("Store redis Get %s: %s val: %s", key, err.Error(), val)
		return nil, false
	}
	return value, true
}

// Set adds a value with a TTL; zero means no expiry
func (store *Store) Set(key string, value interface{}, ttl time.Duration) error {
	key = store.prefix + key
	bytes, err := jsoniter.Marshal(value)
	if err != nil {
		log.Error("Store redis Set %s: %s", key, err.Error())
		return err
	}

	if err := store.rdb.Set(context.Background(), key, bytes, ttl).Err(); err != nil {
		log.Error("Store redis Set %s: %s", key, err.Error())
		return err
	}
	return nil
}

// Del purges a key
func (store *Store) Del(key string) error {
	return store.rdb.Del(context.Background(), store.prefix+key).Err()
}

// Has checks if a key exists
func (store *Store) Has(key string) bool {
	n, _ := store.rdb.Exists(context.Background(), store.prefix+key).Result()
	return n == 1
}

// Len returns the number of stored entries (not O(1))
func (store *Store) Len() int {
	return len(store.Keys())
}

// Keys returns all stored keys with the prefix stripped
func (store *Store) Keys() []string {
	keys, err := store.rdb.Keys(context.Background(), store.prefix+"*").Result()
	if err != nil {
		log.Error("Store redis Keys: %s", err.Error())
		return []string{}
	}
	for i := range keys {
		keys[i] = strings.TrimPrefix(keys[i], store.prefix)
	}
	return keys
}

// Clear removes every key under the prefix
func (store *Store) Clear() {
	for _, key := range store.Keys() {
		store.Del(key)
	}
}

// GetSet returns the stored value, computing and storing it on a miss
func (store *Store) GetSet(key string, ttl time.Duration, getValue func(key string) (interface{}, error)) (interface{}, error) {
	value, ok := store.Get(key)
	if !ok {
		var err error
		value, err = getValue(key)
		if err != nil {
			return nil, err
		}
		store.Set(key, value, ttl)
	}
	return value, nil
}

// GetDel returns the stored value and removes it
func (store *Store) GetDel(key string) (value interface{}, ok bool) {
	value, ok = store.Get(key)
	if !ok {
		return nil, false
	}
	if err := store.Del(key); err != nil {
		return value, false
	}
	return value, true
}

// GetMulti looks up several keys; missing keys map to nil
func (store *Store) GetMulti(keys []string) map[string]interface{} {
	values := map[string]interface{}{}
	for _, key := range keys {
		value, _ := store.Get(key)
		values[key] = value
	}
	return values
}

// SetMulti stores several values
func (store *Store) SetMulti(values map[string]interface{}, ttl time.Duration) {
	for key, value := range values {
		store.Set(key, value, ttl)
	}
}

// DelMulti purges several keys
func (store *Store) DelMulti(keys []string) {
	for _, key := range keys {
		store.Del(key)
	}
}

// Close releases the client
func (store *Store) Close() error {
	return store.rdb.Close()
}
