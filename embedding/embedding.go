package embedding

import (
	"context"
	"fmt"

	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/types"
)

// DefaultBatchSize is the number of texts sent per backend call
const DefaultBatchSize = 16

// Backend is the raw embedding transport, one batch per call
type Backend interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Options configure the embedding service
type Options struct {
	Backend   Backend
	BatchSize int // Texts per backend call, default 16
}

// Service batches texts through an embedding backend. Batches run
// sequentially and results keep input order, so callers can zip vectors
// back onto their source chunks by index.
type Service struct {
	backend   Backend
	batchSize int
}

// New creates an embedding service, applying defaults to unset options
func New(options Options) (*Service, error) {
	if options.Backend == nil {
		return nil, fmt.Errorf("embedding backend is not set")
	}
	if options.BatchSize <= 0 {
		options.BatchSize = DefaultBatchSize
	}
	return &Service{backend: options.Backend, batchSize: options.BatchSize}, nil
}

// Dimension returns the vector width of the backend
func (s *Service) Dimension() int {
	return s.backend.Dimension()
}

// EmbedDocuments embeds texts in batches with optional progress reporting.
// A batch failure aborts the whole run; the returned error names the
// failing batch.
func (s *Service) EmbedDocuments(ctx context.Context, texts []string, callback ...types.EmbeddingProgress) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var cb types.EmbeddingProgress
	if len(callback) > 0 && callback[0] != nil {
		cb = callback[0]
	}

	if cb != nil {
		cb(types.EmbeddingStarting, types.EmbeddingPayload{
			Current: 0,
			Total:   len(texts),
			Message: "Starting document embedding...",
		})
	}

	vectors := make([][]float32, 0, len(texts))
	batches := (len(texts) + s.batchSize - 1) / s.batchSize

	for batch := 0; batch < batches; batch++ {
		start := batch * s.batchSize
		end := start + s.batchSize
		if end > len(texts) {
			end = len(texts)
		}

		if err := ctx.Err(); err != nil {
			return nil, errs.Embedding(batch, err)
		}

		result, err := s.backend.Embed(ctx, texts[start:end])
		if err != nil {
			if cb != nil {
				cb(types.EmbeddingError, types.EmbeddingPayload{
					Current:    len(vectors),
					Total:      len(texts),
					Message:    fmt.Sprintf("Error embedding batch %d of %d", batch+1, batches),
					BatchIndex: &batch,
					Error:      err,
				})
			}
			log.Error("embedding batch %d/%d failed: %s", batch+1, batches, err.Error())
			return nil, errs.Embedding(batch, err)
		}
		vectors = append(vectors, result...)

		if cb != nil {
			cb(types.EmbeddingProcessing, types.EmbeddingPayload{
				Current:    len(vectors),
				Total:      len(texts),
				Message:    fmt.Sprintf("Embedded batch %d of %d", batch+1, batches),
				BatchIndex: &batch,
			})
		}
	}

	if cb != nil {
		cb(types.EmbeddingCompleted, types.EmbeddingPayload{
			Current: len(vectors),
			Total:   len(texts),
			Message: "Document embedding completed",
		})
	}
	return vectors, nil
}

// EmbedQuery embeds a single query text
func (s *Service) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if text == "" {
		return nil, errs.Validation("query text is empty")
	}
	result, err := s.backend.Embed(ctx, []string{text})
	if err != nil {
		return nil, errs.Embedding(0, err)
	}
	if len(result) != 1 {
		return nil, errs.Embedding(0, fmt.Errorf("backend returned %d vectors for one input", len(result)))
	}
	return result[0], nil
}
