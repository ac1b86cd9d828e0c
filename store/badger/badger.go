// Package badger is the embedded persistent cache backend, used when
// Redis is not available but cache entries should survive restarts.
// Values are stored as JSON; TTLs map onto Badger entry TTLs.
package badger

import (
	"fmt"
	"os"
	"time"

	"github.com/dgraph-io/badger/v4"
	jsoniter "github.com/json-iterator/go"
	"github.com/yaoapp/kun/log"
)

// Store is a Badger-backed KV store
type Store struct {
	db *badger.DB
}

// New opens (or creates) the database directory
func New(dir string) (*Store, error) {
	if dir == "" {
		return nil, fmt.Errorf("badger dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	opts := badger.DefaultOptions(dir)
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Get looks up a key's value
func (store *Store) Get(key string) (value interface{}, ok bool) {
	err := store.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return jsoniter.Unmarshal(val, &value)
		})
	})
	if err != nil {
		if err != badger.ErrKeyNotFound {
			log.Error("Store badger Get %s: %s", key, err.Error())
		}
		return nil, false
	}
	return value, true
}

// Set adds a value with a TTL; zero means no expiry
func (store *Store) Set(key string, value interface{}, ttl time.Duration) error {
	bytes, err := jsoniter.Marshal(value)
	if err != nil {
		log.Error("Store badger Set %s: %s", key, err.Error())
		return err
	}

	return store.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), bytes)
		if ttl > 0 {
			entry = entry.WithTTL(ttl)
		}
		return txn.SetEntry(entry)
	})
}

// Del purges a key
func (store *Store) Del(key string) error {
	return store.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
}

// Has checks if a key exists
func (store *Store) Has(key string) bool {
	err := store.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get([]byte(key))
		return err
	})
	return err == nil
}

// Len returns the number of stored entries (scans the keyspace)
func (store *Store) Len() int {
	return len(store.Keys())
}

// Keys returns all stored keys
func (store *Store) Keys() []string {
	keys := []string{}
	store.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			keys = append(keys, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	return keys
}

// Clear drops every entry
func (store *Store) Clear() {
	err := store.db.Update(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := txn.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		log.Error("Store badger Clear: %s", err.Error())
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

// Close flushes and closes the database
func (store *Store) Close() error {
	return store.db.Close()
}
