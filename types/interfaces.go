package types

import "context"

// Embedder turns texts into fixed-dimension vectors. Implementations must
// return vectors in input order regardless of internal batching.
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string, callback ...EmbeddingProgress) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	Dimension() int
}

// TextModel is the text-generation backend contract
type TextModel interface {
	Generate(ctx context.Context, prompt string, system string, opts ...GenerateOption) (string, error)
	Chat(ctx context.Context, messages []ChatMessage, system string, opts ...GenerateOption) (string, error)
	ChatStream(ctx context.Context, messages []ChatMessage, system string, onDelta func(delta string) error, opts ...GenerateOption) (string, error)
}

// Retriever is the chunk search contract used by the agent tools
type Retriever interface {
	Search(ctx context.Context, query string, opts SearchOptions) (*SearchResponse, error)
}

// SearchOptions bound one retrieval call
type SearchOptions struct {
	TopK          int        // Result cap after filtering, <= 20
	MinSimilarity float64    // Floor on the vector similarity component
	DocumentIDs   []string   // Optional per-document restriction
	Type          SearchType // dense or hybrid
}

// GenerateOption adjusts one generation call
type GenerateOption func(*GenerateParams)

// GenerateParams are the per-call generation knobs forwarded to the backend
type GenerateParams struct {
	Temperature float64
	TopP        float64
	MaxTokens   int
}

// WithTemperature sets the sampling temperature for one call
func WithTemperature(t float64) GenerateOption {
	return func(p *GenerateParams) { p.Temperature = t }
}

// WithTopP sets nucleus sampling for one call
func WithTopP(topP float64) GenerateOption {
	return func(p *GenerateParams) { p.TopP = topP }
}

// WithMaxTokens caps the generated token count for one call
func WithMaxTokens(n int) GenerateOption {
	return func(p *GenerateParams) { p.MaxTokens = n }
}
