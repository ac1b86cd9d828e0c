package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/types"
)

// Knowledge-base search bounds, matching the retrieval defaults
const (
	ragDefaultTopK = 5
	ragMaxTopK     = 20
)

// RAGSearchTool searches the document knowledge base by vector
// similarity and formats the hits as numbered citation sources.
type RAGSearchTool struct {
	retriever types.Retriever
}

// NewRAGSearchTool creates the knowledge-base search tool
func NewRAGSearchTool(retriever types.Retriever) *RAGSearchTool {
	return &RAGSearchTool{retriever: retriever}
}

// Name implements Tool
func (t *RAGSearchTool) Name() string { return "rag_search" }

// Definition implements Tool
func (t *RAGSearchTool) Definition() Definition {
	return Definition{
		Name: t.Name(),
		Description: "Search through uploaded documents to find relevant information. " +
			"Use this tool when the user asks questions that might be answered " +
			"by the documents in the knowledge base. Returns the most relevant " +
			"text passages from the documents.",
		Parameters: []Parameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "The search query to find relevant documents",
				Required:    true,
			},
			{
				Name:        "top_k",
				Type:        "number",
				Description: fmt.Sprintf("Number of results to return (1-%d)", ragMaxTopK),
				Default:     ragDefaultTopK,
			},
			{
				Name:        "document_ids",
				Type:        "array",
				Description: "Optional list of document IDs to search within",
			},
		},
	}
}

// Execute implements Tool
func (t *RAGSearchTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	query := paramString(params, "query")
	topK := paramInt(params, "top_k", ragDefaultTopK)
	documentIDs := paramStrings(params, "document_ids")

	for _, id := range documentIDs {
		if _, err := uuid.Parse(id); err != nil {
			return Fail("Invalid document ID format: %s", id), nil
		}
	}

	response, err := t.retriever.Search(ctx, query, types.SearchOptions{
		TopK:        topK,
		DocumentIDs: documentIDs,
	})
	if err != nil {
		log.Error("[Agent] rag_search %q: %s", truncate(query, 50), err.Error())
		return Fail("Search failed: %s", err.Error()), nil
	}

	if len(response.Results) == 0 {
		return Succeed("No relevant documents found for this query.").
			WithMeta("query", query).
			WithMeta("num_results", 0), nil
	}

	parts := make([]string, 0, len(response.Results))
	sources := make([]map[string]interface{}, 0, len(response.Results))
	for i, result := range response.Results {
		header := fmt.Sprintf("[Source %d: %s", i+1, result.DocumentFilename)
		if result.PageNumber != nil {
			header += fmt.Sprintf(", Page %d", *result.PageNumber)
		}
		parts = append(parts, fmt.Sprintf("%s]\n%s", header, result.Content))

		source := map[string]interface{}{
			"type":       string(types.SourceTypeRAG),
			"index":      i + 1,
			"document":   result.DocumentFilename,
			"chunk_id":   result.ChunkID,
			"similarity": result.SimilarityScore,
		}
		if result.PageNumber != nil {
			source["page"] = *result.PageNumber
		}
		sources = append(sources, source)
	}

	log.Info("[Agent] rag_search %q: %d results", truncate(query, 50), len(response.Results))

	return Succeed(strings.Join(parts, "\n\n---\n\n")).
		WithMeta("query", query).
		WithMeta("num_results", len(response.Results)).
		WithMeta("sources", sources).
		WithMeta("search_time_ms", response.SearchTimeMs), nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
