package store

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/types"
)

// Default TTLs for the cache conventions
const (
	DefaultResponseTTL   = time.Hour
	DefaultHistoryTTL    = 24 * time.Hour
	DefaultProcessingTTL = time.Hour
)

// Key patterns
const (
	responseKey   = "cache:response:%s"
	historyKey    = "chat:%s:history:%s"
	processingKey = "processing:%s"
)

// CacheOptions tune TTLs and the response-cache toggle
type CacheOptions struct {
	ResponseEnabled bool
	ResponseTTL     time.Duration
	HistoryTTL      time.Duration
	ProcessingTTL   time.Duration
}

// Cache layers the service's cache conventions over a Store: the
// response fingerprint cache, the per-branch chat history hot cache
// and the document processing status tracker.
type Cache struct {
	kv              Store
	responseEnabled bool
	responseTTL     time.Duration
	historyTTL      time.Duration
	processingTTL   time.Duration
}

// NewCache wraps a store, fixing zero TTLs to the defaults
func NewCache(kv Store, options CacheOptions) *Cache {
	if options.ResponseTTL <= 0 {
		options.ResponseTTL = DefaultResponseTTL
	}
	if options.HistoryTTL <= 0 {
		options.HistoryTTL = DefaultHistoryTTL
	}
	if options.ProcessingTTL <= 0 {
		options.ProcessingTTL = DefaultProcessingTTL
	}
	return &Cache{
		kv:              kv,
		responseEnabled: options.ResponseEnabled,
		responseTTL:     options.ResponseTTL,
		historyTTL:      options.HistoryTTL,
		processingTTL:   options.ProcessingTTL,
	}
}

// QueryHash fingerprints a query together with the chunk ids that
// answered it. The id order does not affect the hash.
func QueryHash(query string, chunkIDs []string) string {
	ids := append([]string(nil), chunkIDs...)
	sort.Strings(ids)
	sum := sha256.Sum256([]byte(query + strings.Join(ids, "")))
	return hex.EncodeToString(sum[:])[:16]
}

// GetResponse returns a cached agent result for the fingerprint. A miss
// is never an error. Always misses when the response cache is disabled.
func (cache *Cache) GetResponse(hash string) (*types.AgentResult, bool) {
	if !cache.responseEnabled {
		return nil, false
	}
	var result types.AgentResult
	if !cache.get(fmt.Sprintf(responseKey, hash), &result) {
		return nil, false
	}
	return &result, true
}

// SetResponse caches an agent result under the fingerprint. A no-op
// when the response cache is disabled.
func (cache *Cache) SetResponse(hash string, result *types.AgentResult) error {
	if !cache.responseEnabled {
		return nil
	}
	return cache.set(fmt.Sprintf(responseKey, hash), result, cache.responseTTL)
}

// GetHistory returns the hot-cached history of one chat branch
func (cache *Cache) GetHistory(chatID string, branch string) ([]types.Message, bool) {
	var history []types.Message
	if !cache.get(fmt.Sprintf(historyKey, chatID, branch), &history) {
		return nil, false
	}
	return history, true
}

// SetHistory caches the history of one chat branch
func (cache *Cache) SetHistory(chatID string, branch string, history []types.Message) error {
	return cache.set(fmt.Sprintf(historyKey, chatID, branch), history, cache.historyTTL)
}

// InvalidateHistory drops the hot-cache entries for the given branches
// of a chat. Callers pass every branch name after writes that can move
// the branch views.
func (cache *Cache) InvalidateHistory(chatID string, branches ...string) {
	if len(branches) == 0 {
		return
	}
	keys := make([]string, 0, len(branches))
	for _, branch := range branches {
		keys = append(keys, fmt.Sprintf(historyKey, chatID, branch))
	}
	cache.kv.DelMulti(keys)
}

// SetProcessingStatus records the pipeline snapshot for a document
func (cache *Cache) SetProcessingStatus(documentID string, progress types.ProcessingProgress) error {
	return cache.set(fmt.Sprintf(processingKey, documentID), progress, cache.processingTTL)
}

// GetProcessingStatus returns the pipeline snapshot for a document
func (cache *Cache) GetProcessingStatus(documentID string) (*types.ProcessingProgress, bool) {
	var progress types.ProcessingProgress
	if !cache.get(fmt.Sprintf(processingKey, documentID), &progress) {
		return nil, false
	}
	return &progress, true
}

// DeleteProcessingStatus drops the pipeline snapshot for a document
func (cache *Cache) DeleteProcessingStatus(documentID string) error {
	return cache.kv.Del(fmt.Sprintf(processingKey, documentID))
}

// get and set marshal values through JSON strings so every backend
// stores the same representation
func (cache *Cache) get(key string, out interface{}) bool {
	value, ok := cache.kv.Get(key)
	if !ok {
		return false
	}
	raw, ok := value.(string)
	if !ok {
		return false
	}
	if err := jsoniter.UnmarshalFromString(raw, out); err != nil {
		log.Warn("cache: decode %s: %s", key, err.Error())
		return false
	}
	return true
}

func (cache *Cache) set(key string, value interface{}, ttl time.Duration) error {
	raw, err := jsoniter.MarshalToString(value)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry %s: %w", key, err)
	}
	return cache.kv.Set(key, raw, ttl)
}
