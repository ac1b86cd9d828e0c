package store

import (
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yaoapp/kun/any"

	"github.com/ragent-io/ragent/store/badger"
	"github.com/ragent-io/ragent/store/lru"
	"github.com/ragent-io/ragent/store/redis"
)

func TestLRU(t *testing.T) {
	kv, err := lru.New(20480)
	assert.Nil(t, err)
	testBasic(t, kv)
	testMulti(t, kv)
}

func TestBadger(t *testing.T) {
	kv, err := badger.New(t.TempDir())
	assert.Nil(t, err)
	defer kv.Close()
	testBasic(t, kv)
	testMulti(t, kv)
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	kv, err := redis.New(redis.Options{Addr: addr, Prefix: "ragent-test:"})
	assert.Nil(t, err)
	defer kv.Close()
	testBasic(t, kv)
	testMulti(t, kv)
}

func TestNewBackendSelection(t *testing.T) {
	kv, err := New(Options{Backend: BackendLRU})
	assert.Nil(t, err)
	assert.NotNil(t, kv)

	kv, err = New(Options{Backend: BackendBadger, Dir: t.TempDir()})
	assert.Nil(t, err)
	assert.NotNil(t, kv)
	kv.Close()

	// Auto with neither redis nor a directory lands on the LRU store
	kv, err = New(Options{Backend: BackendAuto})
	assert.Nil(t, err)
	assert.NotNil(t, kv)

	_, err = New(Options{Backend: "bogus"})
	assert.NotNil(t, err)

	_, err = New(Options{Backend: BackendBadger})
	assert.NotNil(t, err)
}

func testBasic(t *testing.T, kv Store) {
	kv.Clear()
	kv.Set("key1", "bar", 0)
	kv.Set("key2", 1024, 0)
	kv.Set("key3", 0.618, 0)

	value, ok := kv.Get("key1")
	assert.True(t, ok)
	assert.Equal(t, "bar", value)

	value, ok = kv.Get("key2")
	assert.True(t, ok)
	assert.Equal(t, 1024, any.Of(value).CInt())

	value, ok = kv.Get("key3")
	assert.True(t, ok)
	assert.Equal(t, 0.618, any.Of(value).CFloat())

	kv.Set("key1", "foo", 0)
	value, ok = kv.Get("key1")
	assert.True(t, ok)
	assert.Equal(t, "foo", value)
	assert.True(t, kv.Has("key1"))

	kv.Del("key1")
	_, ok = kv.Get("key1")
	assert.False(t, ok)
	assert.False(t, kv.Has("key1"))

	assert.Equal(t, 2, kv.Len())
	assert.Contains(t, kv.Keys(), "key2")
	assert.Contains(t, kv.Keys(), "key3")

	kv.Clear()
	assert.Equal(t, 0, kv.Len())

	value, err := kv.GetSet("key1", 0, func(key string) (interface{}, error) {
		return "bar", nil
	})
	assert.Nil(t, err)
	assert.Equal(t, "bar", value)

	value, err = kv.GetSet("key1", 0, func(key string) (interface{}, error) {
		return nil, fmt.Errorf("error test")
	})
	assert.Nil(t, err)
	assert.Equal(t, "bar", value)

	value, err = kv.GetSet("key2", 0, func(key string) (interface{}, error) {
		return nil, fmt.Errorf("error test")
	})
	assert.NotNil(t, err)
	assert.Equal(t, "error test", err.Error())
	assert.Nil(t, value)

	value, ok = kv.GetDel("key1")
	assert.True(t, ok)
	assert.Equal(t, "bar", value)
	assert.Equal(t, 0, kv.Len())
}

func testMulti(t *testing.T, kv Store) {
	kv.SetMulti(map[string]interface{}{"key1": "foo", "key2": 1024, "key3": 0.618}, 0)
	assert.Equal(t, 3, kv.Len())

	values := kv.GetMulti([]string{"key1", "key2", "key3", "key4"})
	assert.Equal(t, "foo", values["key1"])
	assert.Equal(t, 1024, any.Of(values["key2"]).CInt())
	assert.Equal(t, nil, values["key4"])

	kv.DelMulti([]string{"key1", "key2", "key3"})
	assert.Equal(t, 0, kv.Len())
}
