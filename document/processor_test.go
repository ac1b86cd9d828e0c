package document

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragent-io/ragent/chunking"
	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/pdf"
	"github.com/ragent-io/ragent/types"
	"github.com/ragent-io/ragent/vision"
)

type fakeExtractor struct {
	result *pdf.Result
	err    error
}

func (f *fakeExtractor) Extract(ctx context.Context, filePath string) (*pdf.Result, error) {
	return f.result, f.err
}

// fakeDescriber treats payloads shorter than 4 bytes as decoration and
// describes the rest as "image on page N"
type fakeDescriber struct {
	batches [][]vision.DocumentImage
}

func (f *fakeDescriber) Meaningful(imageData []byte) bool { return len(imageData) >= 4 }
func (f *fakeDescriber) BatchSize() int                   { return 4 }

func (f *fakeDescriber) DescribeBatch(ctx context.Context, images []vision.DocumentImage, textContext string) []vision.Description {
	f.batches = append(f.batches, images)
	out := make([]vision.Description, 0, len(images))
	for _, img := range images {
		out = append(out, vision.Description{
			PageNumber: img.PageNumber,
			ImageIndex: img.ImageIndex,
			Text:       fmt.Sprintf("image on page %d", img.PageNumber),
		})
	}
	return out
}

type fakeEmbedder struct {
	calls [][]string
	err   error
}

func (f *fakeEmbedder) EmbedDocuments(ctx context.Context, texts []string, callback ...types.EmbeddingProgress) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.calls = append(f.calls, texts)
	for _, cb := range callback {
		cb(types.EmbeddingProcessing, types.EmbeddingPayload{Current: len(texts), Total: len(texts)})
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []float32{9, 9}, nil
}

type fakeSummarizer struct {
	summary string
	err     error
	chunks  []string
}

func (f *fakeSummarizer) SummarizeDocument(ctx context.Context, chunks []string, filename string) (string, error) {
	f.chunks = chunks
	return f.summary, f.err
}

func pagesResult(pages ...*types.PageContent) *pdf.Result {
	return &pdf.Result{PageCount: len(pages), Pages: pages, Metadata: map[string]string{"Title": "Fixture"}}
}

// tempFile writes fixture bytes for the hashing stage
func tempFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.pdf")
	require.Nil(t, os.WriteFile(path, []byte("%PDF-1.4 fixture bytes"), 0o644))
	return path
}

func textPage(n int, text string) *types.PageContent {
	return &types.PageContent{PageNumber: n, Text: text, Width: 612, Height: 792}
}

func testProcessor(t *testing.T, extractor Extractor, describer Describer) (*Processor, *fakeEmbedder, *fakeSummarizer) {
	t.Helper()
	embedder := &fakeEmbedder{}
	summarizer := &fakeSummarizer{summary: "A fixture document."}
	processor, err := NewProcessor(ProcessorOptions{
		Extractor:  extractor,
		Vision:     describer,
		Chunker:    chunking.New(chunking.Options{Size: 200, Overlap: 20}),
		Embedder:   embedder,
		Summarizer: summarizer,
	})
	require.Nil(t, err)
	return processor, embedder, summarizer
}

func TestNewProcessorValidatesOptions(t *testing.T) {
	_, err := NewProcessor(ProcessorOptions{})
	assert.NotNil(t, err)

	_, err = NewProcessor(ProcessorOptions{Extractor: &fakeExtractor{}})
	assert.NotNil(t, err)

	_, err = NewProcessor(ProcessorOptions{Extractor: &fakeExtractor{}, Embedder: &fakeEmbedder{}})
	assert.NotNil(t, err)
}

func TestProcessPipeline(t *testing.T) {
	extractor := &fakeExtractor{result: pagesResult(
		textPage(1, strings.Repeat("First page sentence. ", 20)),
		textPage(2, strings.Repeat("Second page sentence. ", 20)),
	)}
	processor, embedder, summarizer := testProcessor(t, extractor, nil)

	stages := []types.ProcessingStage{}
	percents := []int{}
	processed, err := processor.Process(context.Background(), "doc-1", tempFile(t), "fixture.pdf",
		func(p types.ProcessingProgress) {
			stages = append(stages, p.Stage)
			percents = append(percents, p.Percent)
			assert.Equal(t, "doc-1", p.DocumentID)
		})
	require.Nil(t, err)

	assert.Equal(t, "doc-1", processed.DocumentID)
	assert.Equal(t, 2, processed.PageCount)
	assert.NotEmpty(t, processed.FileHash)
	assert.Equal(t, "A fixture document.", processed.Summary)
	assert.Equal(t, []float32{9, 9}, processed.SummaryEmbedding)
	assert.Equal(t, "Fixture", processed.Metadata["Title"])

	// Stage order and the fixed report points
	assert.Equal(t, types.StageHashing, stages[0])
	assert.Equal(t, types.StageExtraction, stages[1])
	assert.Equal(t, types.StageCompleted, stages[len(stages)-1])
	assert.Equal(t, 5, percents[0])
	assert.Equal(t, 100, percents[len(percents)-1])
	for i := 1; i < len(percents); i++ {
		assert.GreaterOrEqual(t, percents[i], percents[i-1])
	}

	// Dense indices, embeddings paired in order, ids assigned
	require.NotEmpty(t, processed.Chunks)
	require.Len(t, embedder.calls, 1)
	assert.Len(t, embedder.calls[0], len(processed.Chunks))
	for i, chunk := range processed.Chunks {
		assert.Equal(t, i, chunk.ChunkIndex)
		assert.NotEmpty(t, chunk.ID)
		assert.Equal(t, "doc-1", chunk.DocumentID)
		assert.Equal(t, []float32{float32(i), 1}, chunk.Embedding)
		assert.Greater(t, chunk.TokenCount, 0)
	}

	// Summary saw at most the first 10 chunks
	assert.LessOrEqual(t, len(summarizer.chunks), SummaryChunkCount)
	assert.Equal(t, processed.Chunks[0].Content, summarizer.chunks[0])
}

func TestProcessDescribesMeaningfulImages(t *testing.T) {
	page := textPage(1, "A page with figures.")
	page.Images = [][]byte{[]byte("big image"), []byte("x")} // second is decoration
	extractor := &fakeExtractor{result: pagesResult(page)}
	describer := &fakeDescriber{}
	processor, _, _ := testProcessor(t, extractor, describer)

	processed, err := processor.Process(context.Background(), "doc-2", tempFile(t), "fig.pdf", nil)
	require.Nil(t, err)

	assert.Equal(t, 1, processed.ImagesDescribed)
	assert.Equal(t, 1, processed.ImagesSkipped)
	require.Len(t, describer.batches, 1)
	assert.Len(t, describer.batches[0], 1)

	merged := ""
	for _, chunk := range processed.Chunks {
		merged += chunk.Content
	}
	assert.Contains(t, merged, "image on page 1")
}

func TestProcessExtractionFailure(t *testing.T) {
	extractor := &fakeExtractor{err: fmt.Errorf("broken xref table")}
	processor, _, _ := testProcessor(t, extractor, nil)

	_, err := processor.Process(context.Background(), "doc-3", tempFile(t), "bad.pdf", nil)
	require.NotNil(t, err)
	assert.True(t, errs.IsKind(err, errs.KindDocumentProcessing))
	assert.Contains(t, err.Error(), "broken xref table")
}

func TestProcessEmptyContentFails(t *testing.T) {
	extractor := &fakeExtractor{result: pagesResult(textPage(1, "   \n\t  "))}
	processor, _, _ := testProcessor(t, extractor, nil)

	_, err := processor.Process(context.Background(), "doc-4", tempFile(t), "empty.pdf", nil)
	require.NotNil(t, err)
	assert.True(t, errs.IsKind(err, errs.KindDocumentProcessing))
}

func TestProcessEmbeddingFailure(t *testing.T) {
	extractor := &fakeExtractor{result: pagesResult(textPage(1, "Some content."))}
	processor, embedder, _ := testProcessor(t, extractor, nil)
	embedder.err = fmt.Errorf("backend gone")

	_, err := processor.Process(context.Background(), "doc-5", tempFile(t), "x.pdf", nil)
	require.NotNil(t, err)
	assert.True(t, errs.IsKind(err, errs.KindDocumentProcessing))
}

func TestProcessCancelled(t *testing.T) {
	extractor := &fakeExtractor{result: pagesResult(textPage(1, "Some content."))}
	processor, _, _ := testProcessor(t, extractor, nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := processor.Process(ctx, "doc-6", tempFile(t), "x.pdf", nil)
	require.NotNil(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessSanitizesChunks(t *testing.T) {
	extractor := &fakeExtractor{result: pagesResult(textPage(1, "Clean\x00 text\x01 with junk."))}
	processor, _, _ := testProcessor(t, extractor, nil)

	processed, err := processor.Process(context.Background(), "doc-7", tempFile(t), "junk.pdf", nil)
	require.Nil(t, err)
	for _, chunk := range processed.Chunks {
		assert.NotContains(t, chunk.Content, "\x00")
		assert.NotContains(t, chunk.Content, "\x01")
	}
}
