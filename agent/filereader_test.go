package agent

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragent-io/ragent/types"
)

func TestFileReaderRequiresIdentifier(t *testing.T) {
	result, err := NewFileReaderTool(nil).Execute(context.Background(), map[string]interface{}{})
	require.NoError(t, err)
	assert.False(t, result.Success)
	assert.Equal(t, "Must provide either 'document_id' or 'filename'", result.Error)
}

func pageChunks() []*types.Chunk {
	one, two := 1, 2
	return []*types.Chunk{
		{ChunkIndex: 0, PageNumber: &one, Content: "Intro paragraph."},
		{ChunkIndex: 1, PageNumber: &one, Content: "More of page one."},
		{ChunkIndex: 2, PageNumber: &two, Content: "Conclusion."},
	}
}

func TestAssembleContentMarksPages(t *testing.T) {
	content := assembleContent(&types.Document{}, pageChunks(), nil)

	assert.Equal(t,
		"\n--- Page 1 ---\n\nIntro paragraph.\nMore of page one.\n\n--- Page 2 ---\n\nConclusion.",
		content)
}

func TestAssembleContentFiltersPages(t *testing.T) {
	content := assembleContent(&types.Document{}, pageChunks(), []int{2})

	assert.NotContains(t, content, "Intro paragraph.")
	assert.Contains(t, content, "--- Page 2 ---")
	assert.Contains(t, content, "Conclusion.")
}

func TestAssembleContentFallsBackToSummary(t *testing.T) {
	document := &types.Document{Summary: "A short plan."}
	assert.Equal(t, "A short plan.", assembleContent(document, nil, nil))
	assert.Equal(t, "No content available.", assembleContent(&types.Document{}, nil, nil))

	// Filter that matches nothing also falls through
	assert.Equal(t, "A short plan.", assembleContent(document, pageChunks(), []int{9}))
}
