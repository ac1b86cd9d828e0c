package llm

import (
	"context"
	"fmt"

	"github.com/ragent-io/ragent/errs"
)

// embedResponse is the embedding reply
type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed turns texts into vectors in a single backend call. Callers that
// need batching sit above this; the reply preserves input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	if c.embedModel == "" {
		return nil, errs.ModelNotFound("embedding model is not configured")
	}

	payload := map[string]interface{}{
		"model": c.embedModel,
		"input": texts,
	}

	ctx, cancel := context.WithTimeout(ctx, c.embedTimeout)
	defer cancel()

	var parsed embedResponse
	if err := c.post(ctx, "/api/embed", payload, &parsed); err != nil {
		return nil, err
	}

	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("backend returned %d vectors for %d inputs",
			len(parsed.Embeddings), len(texts))
	}
	for i, vector := range parsed.Embeddings {
		if len(vector) != c.dimension {
			return nil, fmt.Errorf("vector %d has dimension %d, expected %d",
				i, len(vector), c.dimension)
		}
	}
	return parsed.Embeddings, nil
}
