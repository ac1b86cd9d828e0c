package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragent-io/ragent/websearch"
)

type fakeSearcher struct {
	response *websearch.Response
	err      error
	query    string
	max      int
}

func (f *fakeSearcher) Search(ctx context.Context, query string, maxResults int) (*websearch.Response, error) {
	f.query = query
	f.max = maxResults
	if f.err != nil {
		return nil, f.err
	}
	if f.response == nil {
		return &websearch.Response{Query: query}, nil
	}
	return f.response, nil
}

func TestWebSearchFormatsResults(t *testing.T) {
	searcher := &fakeSearcher{response: &websearch.Response{
		Query: "go 1.25",
		Results: []websearch.Result{
			{Title: "Go 1.25 Release Notes", URL: "https://go.dev/doc/go1.25", Snippet: "The latest Go release."},
			{Title: "Go Blog", URL: "https://go.dev/blog", Snippet: "News from the Go team."},
		},
	}}

	result, err := NewWebSearchTool(searcher).Execute(context.Background(),
		map[string]interface{}{"query": "go 1.25"})
	require.NoError(t, err)
	require.True(t, result.Success)

	assert.Contains(t, result.Output, "[1] Go 1.25 Release Notes\nURL: https://go.dev/doc/go1.25\nThe latest Go release.")
	assert.Contains(t, result.Output, "[2] Go Blog\nURL: https://go.dev/blog\nNews from the Go team.")
	assert.Equal(t, webDefaultResults, searcher.max)

	sources := result.Sources()
	require.Len(t, sources, 2)
	assert.Equal(t, "web", sources[0]["type"])
	assert.Equal(t, 1, sources[0]["index"])
	assert.Equal(t, "Go 1.25 Release Notes", sources[0]["title"])
	assert.Equal(t, "https://go.dev/doc/go1.25", sources[0]["url"])
}

func TestWebSearchClampsMaxResults(t *testing.T) {
	searcher := &fakeSearcher{}
	_, err := NewWebSearchTool(searcher).Execute(context.Background(),
		map[string]interface{}{"query": "x", "max_results": float64(50)})
	require.NoError(t, err)
	assert.Equal(t, websearch.MaxResults, searcher.max)
}

func TestWebSearchNoResults(t *testing.T) {
	result, err := NewWebSearchTool(&fakeSearcher{}).Execute(context.Background(),
		map[string]interface{}{"query": "x"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.Equal(t, "No web results found for this query.", result.Output)
	assert.Equal(t, 0, result.Metadata["num_results"])
}

func TestWebSearchFailure(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("blocked")}
	result, err := NewWebSearchTool(searcher).Execute(context.Background(),
		map[string]interface{}{"query": "x"})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Web search failed: blocked", result.Error)
}
