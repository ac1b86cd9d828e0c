// Package document runs the ingestion side of the service: the
// processing pipeline from PDF bytes to embedded chunks, the upload
// flow with hash deduplication, the drop-directory watcher and the
// storage maintenance sweeps.
package document

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/chunking"
	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/pdf"
	"github.com/ragent-io/ragent/types"
	"github.com/ragent-io/ragent/vision"
)

// SummaryChunkCount caps how many leading chunks feed the document summary
const SummaryChunkCount = 10

// Extractor reads a PDF file into pages
type Extractor interface {
	Extract(ctx context.Context, filePath string) (*pdf.Result, error)
}

// Describer filters and describes page images
type Describer interface {
	Meaningful(imageData []byte) bool
	DescribeBatch(ctx context.Context, images []vision.DocumentImage, textContext string) []vision.Description
	BatchSize() int
}

// Embedder produces chunk and summary vectors
type Embedder interface {
	EmbedDocuments(ctx context.Context, texts []string, callback ...types.EmbeddingProgress) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Summarizer produces document summaries
type Summarizer interface {
	SummarizeDocument(ctx context.Context, chunks []string, filename string) (string, error)
}

// ProcessorOptions wire the pipeline stages together
type ProcessorOptions struct {
	Extractor  Extractor
	Vision     Describer // optional, nil skips image description
	Chunker    *chunking.Chunker
	Embedder   Embedder
	Summarizer Summarizer
}

// Processor turns a stored PDF into a ProcessedDocument: extracted
// pages, described images merged into the text, embedded chunks and a
// document summary. Any stage failure is fatal for the document.
type Processor struct {
	extractor  Extractor
	vision     Describer
	chunker    *chunking.Chunker
	embedder   Embedder
	summarizer Summarizer
}

// NewProcessor creates a processor
func NewProcessor(options ProcessorOptions) (*Processor, error) {
	if options.Extractor == nil {
		return nil, fmt.Errorf("processor requires an extractor")
	}
	if options.Embedder == nil {
		return nil, fmt.Errorf("processor requires an embedder")
	}
	if options.Summarizer == nil {
		return nil, fmt.Errorf("processor requires a summarizer")
	}
	if options.Chunker == nil {
		options.Chunker = chunking.New(chunking.Options{})
	}
	return &Processor{
		extractor:  options.Extractor,
		vision:     options.Vision,
		chunker:    options.Chunker,
		embedder:   options.Embedder,
		summarizer: options.Summarizer,
	}, nil
}

// Process runs the full pipeline over a stored file. Progress lands on
// the sink per stage; within vision and embedding it moves linearly
// with the work done. Cancellation is honored at stage boundaries.
func (p *Processor) Process(ctx context.Context, documentID string, filePath string, filename string, sink types.ProgressSink) (*types.ProcessedDocument, error) {
	started := time.Now()

	report := func(stage types.ProcessingStage, percent int, format string, args ...interface{}) {
		if sink == nil {
			return
		}
		sink(types.ProcessingProgress{
			DocumentID: documentID,
			Stage:      stage,
			Percent:    percent,
			Message:    fmt.Sprintf(format, args...),
		})
	}

	fail := func(err error) (*types.ProcessedDocument, error) {
		log.Error("[Processor] %s failed: %s", documentID, err.Error())
		return nil, errs.DocumentProcessing(documentID, err.Error())
	}

	report(types.StageHashing, 5, "Calculating file hash")
	fileHash, err := hashFile(filePath)
	if err != nil {
		return fail(err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(types.StageExtraction, 10, "Extracting text and images")
	content, err := p.extractor.Extract(ctx, filePath)
	if err != nil {
		return fail(err)
	}

	totalImages := 0
	for _, page := range content.Pages {
		totalImages += len(page.Images)
	}
	log.Info("[Processor] %s extracted, %d pages %d images", documentID, content.PageCount, totalImages)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(types.StageVision, 20, "Analyzing %d images", totalImages)
	descriptions, described, skipped := p.describeImages(ctx, content, report)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(types.StageChunking, 55, "Chunking content")
	chunks := p.chunker.MergePages(content.Pages, descriptions)
	if len(chunks) == 0 {
		return fail(fmt.Errorf("document produced no content"))
	}
	log.Info("[Processor] %s chunked into %d chunks", documentID, len(chunks))

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(types.StageEmbedding, 65, "Generating embeddings for %d chunks", len(chunks))
	texts := make([]string, 0, len(chunks))
	for i := range chunks {
		texts = append(texts, chunks[i].Content)
	}
	embeddings, err := p.embedder.EmbedDocuments(ctx, texts,
		func(status types.EmbeddingStatus, payload types.EmbeddingPayload) {
			if status == types.EmbeddingProcessing && payload.Total > 0 {
				report(types.StageEmbedding, 65+20*payload.Current/payload.Total,
					"Embedding chunks %d/%d", payload.Current, payload.Total)
			}
		})
	if err != nil {
		return fail(err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	report(types.StageSummary, 90, "Generating document summary")
	sample := texts
	if len(sample) > SummaryChunkCount {
		sample = sample[:SummaryChunkCount]
	}
	summary, err := p.summarizer.SummarizeDocument(ctx, sample, filename)
	if err != nil {
		return fail(err)
	}
	summary = chunking.Sanitize(summary)

	summaryEmbedding, err := p.embedder.EmbedQuery(ctx, summary)
	if err != nil {
		return fail(err)
	}

	processed := &types.ProcessedDocument{
		DocumentID:       documentID,
		FileHash:         fileHash,
		PageCount:        content.PageCount,
		Chunks:           assembleChunks(documentID, chunks, embeddings),
		Summary:          summary,
		SummaryEmbedding: summaryEmbedding,
		Metadata:         documentMetadata(content.Metadata),
		ImagesDescribed:  described,
		ImagesSkipped:    skipped,
	}

	report(types.StageCompleted, 100, "Processing complete")
	log.Info("[Processor] %s complete, %d chunks %d images in %.1fs",
		documentID, len(processed.Chunks), described, time.Since(started).Seconds())
	return processed, nil
}

// describeImages flattens the meaningful images of every page, sends
// them through the describer batch by batch and groups the results
// per page. Never fatal: failures become skipped descriptions.
func (p *Processor) describeImages(ctx context.Context, content *pdf.Result, report func(types.ProcessingStage, int, string, ...interface{})) (map[int][]string, int, int) {
	descriptions := map[int][]string{}
	if p.vision == nil {
		return descriptions, 0, 0
	}

	images := []vision.DocumentImage{}
	skipped := 0
	for _, page := range content.Pages {
		for i, data := range page.Images {
			if !p.vision.Meaningful(data) {
				skipped++
				continue
			}
			images = append(images, vision.DocumentImage{
				Data:       data,
				PageNumber: page.PageNumber,
				ImageIndex: i + 1,
			})
		}
	}
	if len(images) == 0 {
		log.Info("[Processor] no meaningful images, %d skipped", skipped)
		return descriptions, 0, skipped
	}

	// Page-one text anchors every batch prompt
	textContext := ""
	if len(content.Pages) > 0 {
		textContext = content.Pages[0].Text
		if len(textContext) > 500 {
			textContext = textContext[:500]
		}
	}

	batchSize := p.vision.BatchSize()
	described := 0
	processed := 0
	for start := 0; start < len(images); start += batchSize {
		end := start + batchSize
		if end > len(images) {
			end = len(images)
		}

		for _, result := range p.vision.DescribeBatch(ctx, images[start:end], textContext) {
			text := chunking.Sanitize(strings.TrimSpace(result.Text))
			if text == "" {
				continue
			}
			descriptions[result.PageNumber] = append(descriptions[result.PageNumber], text)
			described++
		}

		processed += end - start
		report(types.StageVision, 20+30*processed/len(images),
			"Analyzing images %d/%d", processed, len(images))
	}

	log.Info("[Processor] described %d images on %d pages, %d skipped",
		described, len(descriptions), skipped)
	return descriptions, described, skipped
}

// assembleChunks pairs chunk content with its embedding and runs the
// final sanitization pass before persistence
func assembleChunks(documentID string, chunks []chunking.Chunk, embeddings [][]float32) []*types.Chunk {
	out := make([]*types.Chunk, 0, len(chunks))
	for i := range chunks {
		var embedding []float32
		if i < len(embeddings) {
			embedding = embeddings[i]
		}
		out = append(out, &types.Chunk{
			ID:          uuid.NewString(),
			DocumentID:  documentID,
			ChunkIndex:  chunks[i].Index,
			PageNumber:  chunks[i].PageNumber,
			Content:     chunking.Sanitize(chunks[i].Content),
			ContentKind: chunks[i].Kind,
			TokenCount:  chunks[i].EstimateTokens(),
			Embedding:   embedding,
			Metadata:    chunks[i].Metadata,
		})
	}
	return out
}

func documentMetadata(meta map[string]string) map[string]interface{} {
	if len(meta) == 0 {
		return nil
	}
	out := make(map[string]interface{}, len(meta))
	for k, v := range meta {
		out[k] = v
	}
	return out
}

// hashFile streams a file through SHA-256
func hashFile(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", fmt.Errorf("failed to hash file: %w", err)
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
