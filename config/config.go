package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Chunk size bounds enforced at load time
const (
	MinChunkSize = 100
	MaxChunkSize = 4000
)

// Settings aggregates every runtime knob. Values are resolved in order:
// built-in defaults, optional YAML file, environment (env wins).
type Settings struct {
	AppName    string `yaml:"app_name"`
	AppVersion string `yaml:"app_version"`
	Debug      bool   `yaml:"debug"`

	API         APISettings         `yaml:"api"`
	Database    DatabaseSettings    `yaml:"database"`
	Redis       RedisSettings       `yaml:"redis"`
	Cache       CacheSettings       `yaml:"cache"`
	Ollama      OllamaSettings      `yaml:"ollama"`
	Performance PerformanceSettings `yaml:"performance"`
	Document    DocumentSettings    `yaml:"document"`
	Search      SearchSettings      `yaml:"search"`
	Agent       AgentSettings       `yaml:"agent"`
}

// APISettings configure the HTTP server
type APISettings struct {
	Host        string   `yaml:"host"`
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Addr returns the listen address
func (s APISettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// DatabaseSettings configure the PostgreSQL pool
type DatabaseSettings struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DB       string `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// URL returns the pgx connection string
func (s DatabaseSettings) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s",
		s.User, s.Password, s.Host, s.Port, s.DB)
}

// RedisSettings configure the Redis client and cache TTLs
type RedisSettings struct {
	Host                 string `yaml:"host"`
	Port                 int    `yaml:"port"`
	DB                   int    `yaml:"db"`
	Password             string `yaml:"password"`
	ChatHistoryTTLSecs   int    `yaml:"chat_history_ttl_seconds"`
	ProcessingJobTTLSecs int    `yaml:"processing_job_ttl_seconds"`
}

// Addr returns the host:port address
func (s RedisSettings) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// ChatHistoryTTL returns the hot-cache TTL for chat history
func (s RedisSettings) ChatHistoryTTL() time.Duration {
	return time.Duration(s.ChatHistoryTTLSecs) * time.Second
}

// ProcessingJobTTL returns the TTL for processing-status entries
func (s RedisSettings) ProcessingJobTTL() time.Duration {
	return time.Duration(s.ProcessingJobTTLSecs) * time.Second
}

// CacheSettings select the KV store backend
type CacheSettings struct {
	// Backend is one of "auto", "redis", "badger", "lru". Auto prefers
	// Redis when reachable and falls back to the embedded store.
	Backend string `yaml:"backend"`
	Dir     string `yaml:"dir"` // Badger data directory
}

// OllamaSettings configure the model backend endpoints and generation knobs
type OllamaSettings struct {
	BaseURL            string  `yaml:"base_url"`
	TextModel          string  `yaml:"text_model"`
	VisionModel        string  `yaml:"vision_model"`
	EmbeddingModel     string  `yaml:"embedding_model"`
	EmbeddingDimension int     `yaml:"embedding_dimension"`
	KeepAlive          string  `yaml:"keep_alive"`
	Temperature        float64 `yaml:"temperature"`
	TopP               float64 `yaml:"top_p"`
	MaxTokens          int     `yaml:"max_tokens"`
	GenerationTimeout  int     `yaml:"generation_timeout_seconds"`
	EmbeddingTimeout   int     `yaml:"embedding_timeout_seconds"`
}

// PerformanceSettings tune batching, caching and context management
type PerformanceSettings struct {
	EmbeddingBatchSize        int     `yaml:"embedding_batch_size"`
	VisionGatingEnabled       bool    `yaml:"vision_gating_enabled"`
	VisionGatingMinImageRatio float64 `yaml:"vision_gating_min_image_ratio"`
	ResponseCacheEnabled      bool    `yaml:"response_cache_enabled"`
	ResponseCacheTTLSecs      int     `yaml:"response_cache_ttl_seconds"`
	MaxHistoryTokens          int     `yaml:"max_history_tokens"`
	SummarizeAfterMessages    int     `yaml:"summarize_after_messages"`
}

// ResponseCacheTTL returns the response cache TTL
func (s PerformanceSettings) ResponseCacheTTL() time.Duration {
	return time.Duration(s.ResponseCacheTTLSecs) * time.Second
}

// DocumentSettings configure upload handling and chunking
type DocumentSettings struct {
	ChunkSize         int      `yaml:"chunk_size"`
	ChunkOverlap      int      `yaml:"chunk_overlap"`
	MaxUploadSizeMB   int64    `yaml:"max_upload_size_mb"`
	UploadDir         string   `yaml:"upload_dir"`
	WatchDir          string   `yaml:"watch_dir"` // Optional auto-ingest directory
	AllowedExtensions []string `yaml:"allowed_extensions"`
}

// MaxUploadSizeBytes returns the upload cap in bytes
func (s DocumentSettings) MaxUploadSizeBytes() int64 {
	return s.MaxUploadSizeMB * 1024 * 1024
}

// SearchSettings configure retrieval defaults
type SearchSettings struct {
	DefaultTopK   int     `yaml:"default_top_k"`
	MaxTopK       int     `yaml:"max_top_k"`
	MinSimilarity float64 `yaml:"min_similarity_threshold"`
	VectorWeight  float64 `yaml:"vector_weight"`
	KeywordWeight float64 `yaml:"keyword_weight"`
}

// AgentSettings configure the think-act loop and its tools
type AgentSettings struct {
	MaxIterations       int `yaml:"max_iterations"`
	WebSearchTimeout    int `yaml:"web_search_timeout_seconds"`
	WebSearchMaxResults int `yaml:"web_search_max_results"`
}

// Default returns settings populated with the built-in defaults
func Default() *Settings {
	return &Settings{
		AppName:    "RAGent",
		AppVersion: "0.1.0",
		API: APISettings{
			Host:        "0.0.0.0",
			Port:        8000,
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Database: DatabaseSettings{
			Host:     "localhost",
			Port:     5432,
			User:     "ragent",
			Password: "ragent_secret",
			DB:       "ragent",
			PoolSize: 20,
		},
		Redis: RedisSettings{
			Host:                 "localhost",
			Port:                 6379,
			ChatHistoryTTLSecs:   86400,
			ProcessingJobTTLSecs: 3600,
		},
		Cache: CacheSettings{
			Backend: "auto",
			Dir:     "data/cache",
		},
		Ollama: OllamaSettings{
			BaseURL:            "http://localhost:11434",
			TextModel:          "qwen2.5:7b-instruct-q4_K_M",
			VisionModel:        "qwen2-vl:7b-instruct-q4_K_M",
			EmbeddingModel:     "nomic-embed-text",
			EmbeddingDimension: 768,
			KeepAlive:          "60m",
			Temperature:        0.7,
			TopP:               0.9,
			MaxTokens:          2048,
			GenerationTimeout:  300,
			EmbeddingTimeout:   60,
		},
		Performance: PerformanceSettings{
			EmbeddingBatchSize:        16,
			VisionGatingEnabled:       true,
			VisionGatingMinImageRatio: 0.05,
			ResponseCacheEnabled:      true,
			ResponseCacheTTLSecs:      3600,
			MaxHistoryTokens:          2048,
			SummarizeAfterMessages:    10,
		},
		Document: DocumentSettings{
			ChunkSize:         1000,
			ChunkOverlap:      200,
			MaxUploadSizeMB:   50,
			UploadDir:         "data/uploads",
			AllowedExtensions: []string{".pdf"},
		},
		Search: SearchSettings{
			DefaultTopK:   5,
			MaxTopK:       20,
			MinSimilarity: 0.3,
			VectorWeight:  0.7,
			KeywordWeight: 0.3,
		},
		Agent: AgentSettings{
			MaxIterations:       5,
			WebSearchTimeout:    10,
			WebSearchMaxResults: 10,
		},
	}
}

// Load resolves settings from defaults, an optional YAML file and the
// environment. A `.env` file in the working directory is honored. The
// file argument (or RAGENT_CONFIG) names the YAML file; missing files
// are not an error.
func Load(file ...string) (*Settings, error) {
	// Ignore a missing .env, any other read failure is not fatal either
	_ = godotenv.Load()

	settings := Default()

	path := os.Getenv("RAGENT_CONFIG")
	if len(file) > 0 && file[0] != "" {
		path = file[0]
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	settings.applyEnv()

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Validate checks cross-field constraints
func (s *Settings) Validate() error {
	if s.Document.ChunkSize < MinChunkSize || s.Document.ChunkSize > MaxChunkSize {
		return fmt.Errorf("chunk_size must be in [%d, %d], got %d",
			MinChunkSize, MaxChunkSize, s.Document.ChunkSize)
	}
	if s.Document.ChunkOverlap < 0 || s.Document.ChunkOverlap >= s.Document.ChunkSize {
		return fmt.Errorf("chunk_overlap must be in [0, chunk_size), got %d", s.Document.ChunkOverlap)
	}
	if s.Ollama.EmbeddingDimension <= 0 {
		return fmt.Errorf("embedding_dimension must be positive, got %d", s.Ollama.EmbeddingDimension)
	}
	if s.Performance.EmbeddingBatchSize <= 0 {
		return fmt.Errorf("embedding_batch_size must be positive, got %d", s.Performance.EmbeddingBatchSize)
	}
	if s.Search.MaxTopK <= 0 || s.Search.DefaultTopK <= 0 || s.Search.DefaultTopK > s.Search.MaxTopK {
		return fmt.Errorf("search top_k defaults out of range: default %d, max %d",
			s.Search.DefaultTopK, s.Search.MaxTopK)
	}
	if s.Search.MinSimilarity < 0 || s.Search.MinSimilarity > 1 {
		return fmt.Errorf("min_similarity_threshold must be in [0, 1], got %f", s.Search.MinSimilarity)
	}
	if s.Agent.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be positive, got %d", s.Agent.MaxIterations)
	}
	return nil
}
