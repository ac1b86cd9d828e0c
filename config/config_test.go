package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	s := Default()

	assert.Equal(t, "RAGent", s.AppName)
	assert.Equal(t, 8000, s.API.Port)
	assert.Equal(t, 1000, s.Document.ChunkSize)
	assert.Equal(t, 200, s.Document.ChunkOverlap)
	assert.Equal(t, int64(50), s.Document.MaxUploadSizeMB)
	assert.Equal(t, int64(50*1024*1024), s.Document.MaxUploadSizeBytes())
	assert.Equal(t, 768, s.Ollama.EmbeddingDimension)
	assert.Equal(t, 16, s.Performance.EmbeddingBatchSize)
	assert.Equal(t, 2048, s.Performance.MaxHistoryTokens)
	assert.Equal(t, 10, s.Performance.SummarizeAfterMessages)
	assert.Equal(t, 5, s.Search.DefaultTopK)
	assert.Equal(t, 20, s.Search.MaxTopK)
	assert.InDelta(t, 0.3, s.Search.MinSimilarity, 1e-9)
	assert.InDelta(t, 0.7, s.Search.VectorWeight, 1e-9)
	assert.Equal(t, 5, s.Agent.MaxIterations)
	assert.NoError(t, s.Validate())
}

func TestEnvOverride(t *testing.T) {
	t.Setenv("CHUNK_SIZE", "500")
	t.Setenv("CHUNK_OVERLAP", "50")
	t.Setenv("OLLAMA_BASE_URL", "http://models:11434")
	t.Setenv("RESPONSE_CACHE_ENABLED", "false")
	t.Setenv("API_CORS_ORIGINS", `["https://app.example.com"]`)
	t.Setenv("SEARCH_MIN_SIMILARITY", "0.5")

	s, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500, s.Document.ChunkSize)
	assert.Equal(t, 50, s.Document.ChunkOverlap)
	assert.Equal(t, "http://models:11434", s.Ollama.BaseURL)
	assert.False(t, s.Performance.ResponseCacheEnabled)
	assert.Equal(t, []string{"https://app.example.com"}, s.API.CORSOrigins)
	assert.InDelta(t, 0.5, s.Search.MinSimilarity, 1e-9)
}

func TestCORSCommaList(t *testing.T) {
	t.Setenv("API_CORS_ORIGINS", "http://a.local, http://b.local")
	s, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, s.API.CORSOrigins)
}

func TestYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ragent.yml")
	content := []byte("document:\n  chunk_size: 800\nollama:\n  text_model: llama3\n")
	require.NoError(t, os.WriteFile(path, content, 0644))

	s, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 800, s.Document.ChunkSize)
	assert.Equal(t, "llama3", s.Ollama.TextModel)

	// Env still wins over the file
	t.Setenv("CHUNK_SIZE", "600")
	s, err = Load(path)
	require.NoError(t, err)
	assert.Equal(t, 600, s.Document.ChunkSize)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"chunk size too small", func(s *Settings) { s.Document.ChunkSize = 10 }},
		{"chunk size too large", func(s *Settings) { s.Document.ChunkSize = 5000 }},
		{"overlap >= size", func(s *Settings) { s.Document.ChunkOverlap = s.Document.ChunkSize }},
		{"zero dimension", func(s *Settings) { s.Ollama.EmbeddingDimension = 0 }},
		{"zero batch", func(s *Settings) { s.Performance.EmbeddingBatchSize = 0 }},
		{"top_k above max", func(s *Settings) { s.Search.DefaultTopK = 50 }},
		{"similarity above 1", func(s *Settings) { s.Search.MinSimilarity = 1.5 }},
		{"zero iterations", func(s *Settings) { s.Agent.MaxIterations = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(s)
			assert.Error(t, s.Validate())
		})
	}
}
