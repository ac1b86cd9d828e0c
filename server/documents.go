package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/ragent-io/ragent/document"
	"github.com/ragent-io/ragent/errs"
	"github.com/ragent-io/ragent/retrieval"
	"github.com/ragent-io/ragent/types"
)

func (s *Server) uploadDocument(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		fail(c, errs.Validation("file field is required"))
		return
	}

	reader, err := file.Open()
	if err != nil {
		fail(c, errs.Validation("cannot read uploaded file: %s", err))
		return
	}
	defer reader.Close()

	receipt, err := s.documents.Upload(c.Request.Context(), document.UploadInput{
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		Reader:      reader,
	})
	if err != nil {
		fail(c, err)
		return
	}

	message := "Document uploaded and processing started"
	if receipt.Duplicate {
		message = "Document already exists"
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":                receipt.Document.ID,
		"filename":          receipt.Document.Filename,
		"original_filename": receipt.Document.OriginalFilename,
		"status":            receipt.Document.Status,
		"message":           message,
	})
}

func (s *Server) listDocuments(c *gin.Context) {
	page, pageSize, err := pagination(c)
	if err != nil {
		fail(c, err)
		return
	}

	var status types.DocumentStatus
	if raw := c.Query("status"); raw != "" {
		switch types.DocumentStatus(raw) {
		case types.DocumentStatusPending, types.DocumentStatusProcessing,
			types.DocumentStatusCompleted, types.DocumentStatusFailed:
			status = types.DocumentStatus(raw)
		default:
			fail(c, errs.Validation("invalid status filter: %s", raw))
			return
		}
	}

	documents, total, err := s.documents.List(c.Request.Context(), status, page, pageSize)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, listPayload("documents", documents, total, page, pageSize))
}

func (s *Server) getDocument(c *gin.Context) {
	id := c.Param("id")
	doc, err := s.documents.Get(c.Request.Context(), id)
	if err != nil {
		fail(c, err)
		return
	}
	chunks, err := s.documents.Chunks(c.Request.Context(), id, 0, 0)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, documentDetail{Document: doc, Chunks: chunks})
}

// documentDetail is the single-document view: the row plus its chunks.
type documentDetail struct {
	*types.Document
	Chunks []*types.Chunk `json:"chunks"`
}

func (s *Server) deleteDocument(c *gin.Context) {
	if err := s.documents.Delete(c.Request.Context(), c.Param("id")); err != nil {
		fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) documentStatus(c *gin.Context) {
	status, err := s.documents.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, status)
}

func (s *Server) searchChunks(c *gin.Context) {
	query := c.Query("query")
	if strings.TrimSpace(query) == "" {
		fail(c, errs.Validation("query parameter is required"))
		return
	}

	topK, err := topKParam(c)
	if err != nil {
		fail(c, err)
		return
	}

	var documentIDs []string
	if raw := c.Query("document_ids"); raw != "" {
		for _, id := range strings.Split(raw, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if _, err := uuid.Parse(id); err != nil {
				fail(c, errs.Validation("Invalid document ID format: %s", id))
				return
			}
			documentIDs = append(documentIDs, id)
		}
	}

	searchType := types.SearchTypeDense
	if raw := c.Query("search_type"); raw != "" {
		switch types.SearchType(raw) {
		case types.SearchTypeDense, types.SearchTypeHybrid:
			searchType = types.SearchType(raw)
		default:
			fail(c, errs.Validation("invalid search_type: %s", raw))
			return
		}
	}

	response, err := s.retrieval.Search(c.Request.Context(), query, types.SearchOptions{
		TopK:        topK,
		DocumentIDs: documentIDs,
		Type:        searchType,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, response)
}

// topKParam reads top_k and enforces the 1..20 search window.
func topKParam(c *gin.Context) (int, error) {
	topK, err := queryInt(c, "top_k", retrieval.DefaultTopK)
	if err != nil {
		return 0, err
	}
	if topK < 1 || topK > retrieval.DefaultMaxTopK {
		return 0, errs.Validation("top_k must be between 1 and %d", retrieval.DefaultMaxTopK)
	}
	return topK, nil
}

func (s *Server) searchDocuments(c *gin.Context) {
	query := c.Query("query")
	if strings.TrimSpace(query) == "" {
		fail(c, errs.Validation("query parameter is required"))
		return
	}
	topK, err := topKParam(c)
	if err != nil {
		fail(c, err)
		return
	}

	matches, err := s.retrieval.SearchDocuments(c.Request.Context(), query, topK)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"query":         query,
		"results":       matches,
		"total_results": len(matches),
	})
}
