package config

import (
	"encoding/json"
	"os"
	"strconv"
	"strings"
)

// applyEnv overlays environment variables onto the settings. Names match
// the original deployment environment, so existing .env files keep working.
func (s *Settings) applyEnv() {
	s.AppName = envString("APP_NAME", s.AppName)
	s.Debug = envBool("DEBUG", s.Debug)

	s.API.Host = envString("API_HOST", s.API.Host)
	s.API.Port = envInt("API_PORT", s.API.Port)
	s.API.CORSOrigins = envStrings("API_CORS_ORIGINS", s.API.CORSOrigins)

	s.Database.Host = envString("POSTGRES_HOST", s.Database.Host)
	s.Database.Port = envInt("POSTGRES_PORT", s.Database.Port)
	s.Database.User = envString("POSTGRES_USER", s.Database.User)
	s.Database.Password = envString("POSTGRES_PASSWORD", s.Database.Password)
	s.Database.DB = envString("POSTGRES_DB", s.Database.DB)
	s.Database.PoolSize = envInt("POSTGRES_POOL_SIZE", s.Database.PoolSize)

	s.Redis.Host = envString("REDIS_HOST", s.Redis.Host)
	s.Redis.Port = envInt("REDIS_PORT", s.Redis.Port)
	s.Redis.DB = envInt("REDIS_DB", s.Redis.DB)
	s.Redis.Password = envString("REDIS_PASSWORD", s.Redis.Password)
	s.Redis.ChatHistoryTTLSecs = envInt("CHAT_HISTORY_TTL_SECONDS", s.Redis.ChatHistoryTTLSecs)
	s.Redis.ProcessingJobTTLSecs = envInt("PROCESSING_JOB_TTL_SECONDS", s.Redis.ProcessingJobTTLSecs)

	s.Cache.Backend = envString("CACHE_BACKEND", s.Cache.Backend)
	s.Cache.Dir = envString("CACHE_DIR", s.Cache.Dir)

	s.Ollama.BaseURL = envString("OLLAMA_BASE_URL", s.Ollama.BaseURL)
	s.Ollama.TextModel = envString("OLLAMA_TEXT_MODEL", s.Ollama.TextModel)
	s.Ollama.VisionModel = envString("OLLAMA_VISION_MODEL", s.Ollama.VisionModel)
	s.Ollama.EmbeddingModel = envString("OLLAMA_EMBEDDING_MODEL", s.Ollama.EmbeddingModel)
	s.Ollama.EmbeddingDimension = envInt("OLLAMA_EMBEDDING_DIMENSION", s.Ollama.EmbeddingDimension)
	s.Ollama.KeepAlive = envString("OLLAMA_KEEP_ALIVE", s.Ollama.KeepAlive)
	s.Ollama.Temperature = envFloat("OLLAMA_TEMPERATURE", s.Ollama.Temperature)
	s.Ollama.TopP = envFloat("OLLAMA_TOP_P", s.Ollama.TopP)
	s.Ollama.MaxTokens = envInt("OLLAMA_MAX_TOKENS", s.Ollama.MaxTokens)
	s.Ollama.GenerationTimeout = envInt("GENERATION_TIMEOUT_SECONDS", s.Ollama.GenerationTimeout)
	s.Ollama.EmbeddingTimeout = envInt("EMBEDDING_TIMEOUT_SECONDS", s.Ollama.EmbeddingTimeout)

	s.Performance.EmbeddingBatchSize = envInt("EMBEDDING_BATCH_SIZE", s.Performance.EmbeddingBatchSize)
	s.Performance.VisionGatingEnabled = envBool("VISION_GATING_ENABLED", s.Performance.VisionGatingEnabled)
	s.Performance.VisionGatingMinImageRatio = envFloat("VISION_GATING_MIN_IMAGE_RATIO", s.Performance.VisionGatingMinImageRatio)
	s.Performance.ResponseCacheEnabled = envBool("RESPONSE_CACHE_ENABLED", s.Performance.ResponseCacheEnabled)
	s.Performance.ResponseCacheTTLSecs = envInt("RESPONSE_CACHE_TTL_SECONDS", s.Performance.ResponseCacheTTLSecs)
	s.Performance.MaxHistoryTokens = envInt("MAX_HISTORY_TOKENS", s.Performance.MaxHistoryTokens)
	s.Performance.SummarizeAfterMessages = envInt("SUMMARIZE_AFTER_MESSAGES", s.Performance.SummarizeAfterMessages)

	s.Document.ChunkSize = envInt("CHUNK_SIZE", s.Document.ChunkSize)
	s.Document.ChunkOverlap = envInt("CHUNK_OVERLAP", s.Document.ChunkOverlap)
	s.Document.MaxUploadSizeMB = envInt64("MAX_UPLOAD_SIZE_MB", s.Document.MaxUploadSizeMB)
	s.Document.UploadDir = envString("UPLOAD_DIR", s.Document.UploadDir)
	s.Document.WatchDir = envString("WATCH_DIR", s.Document.WatchDir)

	s.Search.DefaultTopK = envInt("SEARCH_DEFAULT_TOP_K", s.Search.DefaultTopK)
	s.Search.MaxTopK = envInt("SEARCH_MAX_TOP_K", s.Search.MaxTopK)
	s.Search.MinSimilarity = envFloat("SEARCH_MIN_SIMILARITY", s.Search.MinSimilarity)
	s.Search.VectorWeight = envFloat("SEARCH_VECTOR_WEIGHT", s.Search.VectorWeight)
	s.Search.KeywordWeight = envFloat("SEARCH_KEYWORD_WEIGHT", s.Search.KeywordWeight)

	s.Agent.MaxIterations = envInt("AGENT_MAX_ITERATIONS", s.Agent.MaxIterations)
	s.Agent.WebSearchTimeout = envInt("WEB_SEARCH_TIMEOUT_SECONDS", s.Agent.WebSearchTimeout)
	s.Agent.WebSearchMaxResults = envInt("WEB_SEARCH_MAX_RESULTS", s.Agent.WebSearchMaxResults)
}

func envString(key, fallback string) string {
	if v, has := os.LookupEnv(key); has && v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v, has := os.LookupEnv(key); has && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v, has := os.LookupEnv(key); has && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v, has := os.LookupEnv(key); has && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v, has := os.LookupEnv(key); has && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

// envStrings accepts either a JSON array or a comma-separated list
func envStrings(key string, fallback []string) []string {
	v, has := os.LookupEnv(key)
	if !has || v == "" {
		return fallback
	}
	if strings.HasPrefix(strings.TrimSpace(v), "[") {
		var list []string
		if err := json.Unmarshal([]byte(v), &list); err == nil {
			return list
		}
	}
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
