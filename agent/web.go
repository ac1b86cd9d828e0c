package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/types"
	"github.com/ragent-io/ragent/websearch"
)

const webDefaultResults = 5

// WebSearcher runs one web search query
type WebSearcher interface {
	Search(ctx context.Context, query string, maxResults int) (*websearch.Response, error)
}

// WebSearchTool searches the web for information outside the knowledge
// base and formats the hits as title/URL/snippet triples.
type WebSearchTool struct {
	searcher WebSearcher
}

// NewWebSearchTool creates the web search tool
func NewWebSearchTool(searcher WebSearcher) *WebSearchTool {
	return &WebSearchTool{searcher: searcher}
}

// Name implements Tool
func (t *WebSearchTool) Name() string { return "web_search" }

// Definition implements Tool
func (t *WebSearchTool) Definition() Definition {
	return Definition{
		Name: t.Name(),
		Description: "Search the web for current information. Use this tool when you need " +
			"to find information that might not be in the uploaded documents, " +
			"such as recent news, general knowledge, or external references. " +
			"Returns titles, URLs, and snippets from web pages.",
		Parameters: []Parameter{
			{
				Name:        "query",
				Type:        "string",
				Description: "The search query",
				Required:    true,
			},
			{
				Name:        "max_results",
				Type:        "number",
				Description: fmt.Sprintf("Maximum number of results (1-%d)", websearch.MaxResults),
				Default:     webDefaultResults,
			},
		},
	}
}

// Execute implements Tool
func (t *WebSearchTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	query := paramString(params, "query")
	maxResults := paramInt(params, "max_results", webDefaultResults)
	if maxResults > websearch.MaxResults {
		maxResults = websearch.MaxResults
	}

	response, err := t.searcher.Search(ctx, query, maxResults)
	if err != nil {
		log.Error("[Agent] web_search %q: %s", truncate(query, 50), err.Error())
		return Fail("Web search failed: %s", err.Error()), nil
	}

	if len(response.Results) == 0 {
		return Succeed("No web results found for this query.").
			WithMeta("query", query).
			WithMeta("num_results", 0), nil
	}

	parts := make([]string, 0, len(response.Results))
	sources := make([]map[string]interface{}, 0, len(response.Results))
	for i, result := range response.Results {
		parts = append(parts, fmt.Sprintf("[%d] %s\nURL: %s\n%s",
			i+1, result.Title, result.URL, result.Snippet))
		sources = append(sources, map[string]interface{}{
			"type":  string(types.SourceTypeWeb),
			"index": i + 1,
			"title": result.Title,
			"url":   result.URL,
		})
	}

	log.Info("[Agent] web_search %q: %d results", truncate(query, 50), len(response.Results))

	return Succeed(strings.Join(parts, "\n\n")).
		WithMeta("query", query).
		WithMeta("num_results", len(response.Results)).
		WithMeta("sources", sources), nil
}
