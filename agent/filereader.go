package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/storage"
	"github.com/ragent-io/ragent/types"
)

// FileReaderTool returns the full text of one processed document,
// rebuilt from its chunks in index order with page markers.
type FileReaderTool struct {
	storage *storage.Storage
}

// NewFileReaderTool creates the document reader tool
func NewFileReaderTool(s *storage.Storage) *FileReaderTool {
	return &FileReaderTool{storage: s}
}

// Name implements Tool
func (t *FileReaderTool) Name() string { return "file_reader" }

// Definition implements Tool
func (t *FileReaderTool) Definition() Definition {
	return Definition{
		Name: t.Name(),
		Description: "Read the full content of an uploaded document. Use this when you need " +
			"to see the complete text of a specific document rather than just " +
			"searching for relevant passages. Provide either the document ID or filename.",
		Parameters: []Parameter{
			{
				Name:        "document_id",
				Type:        "string",
				Description: "The UUID of the document to read",
			},
			{
				Name:        "filename",
				Type:        "string",
				Description: "The filename of the document to read",
			},
			{
				Name:        "page_numbers",
				Type:        "array",
				Description: "Optional list of specific page numbers to read",
			},
		},
	}
}

// Execute implements Tool
func (t *FileReaderTool) Execute(ctx context.Context, params map[string]interface{}) (*Result, error) {
	documentID := paramString(params, "document_id")
	filename := paramString(params, "filename")
	pages := paramInts(params, "page_numbers")

	if documentID == "" && filename == "" {
		return Fail("Must provide either 'document_id' or 'filename'"), nil
	}

	document, err := t.find(ctx, documentID, filename)
	if err != nil {
		log.Error("[Agent] file_reader: %s", err.Error())
		return Fail("Failed to read file: %s", err.Error()), nil
	}
	if document == nil {
		identifier := documentID
		if identifier == "" {
			identifier = filename
		}
		return Fail("Document not found: %s", identifier), nil
	}
	if document.Status != types.DocumentStatusCompleted {
		return Fail("Document is not ready (status: %s)", document.Status), nil
	}

	chunks, err := t.storage.Chunks.ListByDocument(ctx, document.ID, 0, 0)
	if err != nil {
		log.Error("[Agent] file_reader %s: %s", document.ID, err.Error())
		return Fail("Failed to read file: %s", err.Error()), nil
	}

	content := assembleContent(document, chunks, pages)
	log.Info("[Agent] file_reader: %s (%d chunks)", document.OriginalFilename, len(chunks))

	return Succeed(content).
		WithMeta("document_id", document.ID).
		WithMeta("filename", document.OriginalFilename).
		WithMeta("page_count", document.PageCount), nil
}

// find resolves the document by id first, then by filename. An id that
// is not a UUID reads as not found rather than a storage error.
func (t *FileReaderTool) find(ctx context.Context, documentID, filename string) (*types.Document, error) {
	if documentID != "" {
		if _, err := uuid.Parse(documentID); err != nil {
			return nil, nil
		}
		document, err := t.storage.Documents.Get(ctx, documentID)
		if err != nil {
			if errs.IsKind(err, errs.KindDocumentNotFound) {
				return nil, nil
			}
			return nil, err
		}
		return document, nil
	}
	return t.storage.Documents.GetByFilename(ctx, filename)
}

// assembleContent joins the chunks in index order, marking page
// transitions. Without chunks the summary stands in.
func assembleContent(document *types.Document, chunks []*types.Chunk, pages []int) string {
	wanted := map[int]bool{}
	for _, page := range pages {
		wanted[page] = true
	}

	parts := []string{}
	currentPage := 0
	for _, chunk := range chunks {
		if len(wanted) > 0 && (chunk.PageNumber == nil || !wanted[*chunk.PageNumber]) {
			continue
		}
		if chunk.PageNumber != nil && *chunk.PageNumber != currentPage {
			parts = append(parts, fmt.Sprintf("\n--- Page %d ---\n", *chunk.PageNumber))
			currentPage = *chunk.PageNumber
		}
		parts = append(parts, chunk.Content)
	}

	if len(parts) == 0 {
		if document.Summary != "" {
			return document.Summary
		}
		return "No content available."
	}
	return strings.Join(parts, "\n")
}
