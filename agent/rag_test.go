package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragent-io/ragent/types"
)

type fakeRetriever struct {
	response *types.SearchResponse
	err      error
	query    string
	opts     types.SearchOptions
	calls    int
}

func (f *fakeRetriever) Search(ctx context.Context, query string, opts types.SearchOptions) (*types.SearchResponse, error) {
	f.calls++
	f.query = query
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	if f.response == nil {
		return &types.SearchResponse{Query: query, Results: []types.SearchResult{}}, nil
	}
	return f.response, nil
}

func TestRAGSearchFormatsSources(t *testing.T) {
	page := 3
	retriever := &fakeRetriever{response: &types.SearchResponse{
		Query: "rate limit",
		Results: []types.SearchResult{
			{
				ChunkID:          "c1",
				DocumentFilename: "plan.pdf",
				Content:          "The API rate limit is 100 requests per minute.",
				PageNumber:       &page,
				SimilarityScore:  0.91,
			},
			{
				ChunkID:          "c2",
				DocumentFilename: "notes.pdf",
				Content:          "Back off on 429 responses.",
				SimilarityScore:  0.74,
			},
		},
		SearchTimeMs: 12,
	}}

	result, err := NewRAGSearchTool(retriever).Execute(context.Background(),
		map[string]interface{}{"query": "rate limit"})
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Contains(t, result.Output, "[Source 1: plan.pdf, Page 3]\nThe API rate limit is 100 requests per minute.")
	assert.Contains(t, result.Output, "[Source 2: notes.pdf]\nBack off on 429 responses.")
	assert.Contains(t, result.Output, "\n\n---\n\n")

	assert.Equal(t, "rate limit", retriever.query)
	assert.Equal(t, ragDefaultTopK, retriever.opts.TopK)

	sources := result.Sources()
	require.Len(t, sources, 2)
	assert.Equal(t, "rag", sources[0]["type"])
	assert.Equal(t, 1, sources[0]["index"])
	assert.Equal(t, "plan.pdf", sources[0]["document"])
	assert.Equal(t, "c1", sources[0]["chunk_id"])
	assert.Equal(t, 0.91, sources[0]["similarity"])
	assert.Equal(t, 3, sources[0]["page"])
	_, hasPage := sources[1]["page"]
	assert.False(t, hasPage)

	assert.Equal(t, 2, result.Metadata["num_results"])
	assert.Equal(t, float64(12), result.Metadata["search_time_ms"])
}

func TestRAGSearchClampsTopK(t *testing.T) {
	retriever := &fakeRetriever{}
	_, err := NewRAGSearchTool(retriever).Execute(context.Background(),
		map[string]interface{}{"query": "x", "top_k": float64(50)})
	require.NoError(t, err)
	assert.Equal(t, ragMaxTopK, retriever.opts.TopK)
}

func TestRAGSearchFiltersByDocument(t *testing.T) {
	retriever := &fakeRetriever{}
	id := "c1093b6a-9f62-4b5c-8f26-aee1d2d1b0f1"
	_, err := NewRAGSearchTool(retriever).Execute(context.Background(),
		map[string]interface{}{"query": "x", "document_ids": []interface{}{id}})
	require.NoError(t, err)
	assert.Equal(t, []string{id}, retriever.opts.DocumentIDs)
}

func TestRAGSearchRejectsInvalidDocumentID(t *testing.T) {
	retriever := &fakeRetriever{}
	result, err := NewRAGSearchTool(retriever).Execute(context.Background(),
		map[string]interface{}{"query": "x", "document_ids": []interface{}{"not-a-uuid"}})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Invalid document ID format: not-a-uuid", result.Error)
	assert.Equal(t, 0, retriever.calls)
}

func TestRAGSearchNoResults(t *testing.T) {
	result, err := NewRAGSearchTool(&fakeRetriever{}).Execute(context.Background(),
		map[string]interface{}{"query": "unknown topic"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "No relevant documents found for this query.", result.Output)
	assert.Equal(t, 0, result.Metadata["num_results"])
	assert.Nil(t, result.Sources())
}

func TestRAGSearchFailure(t *testing.T) {
	retriever := &fakeRetriever{err: errors.New("connection refused")}
	result, err := NewRAGSearchTool(retriever).Execute(context.Background(),
		map[string]interface{}{"query": "x"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Search failed: connection refused", result.Error)
}
