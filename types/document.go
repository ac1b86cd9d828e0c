package types

import "time"

// DocumentStatus is the processing lifecycle state of a document
type DocumentStatus string

// Document lifecycle states
const (
	DocumentStatusPending    DocumentStatus = "pending"    // Uploaded, waiting for processing
	DocumentStatusProcessing DocumentStatus = "processing" // Processing pipeline running
	DocumentStatusCompleted  DocumentStatus = "completed"  // Chunks and summary persisted
	DocumentStatusFailed     DocumentStatus = "failed"     // Terminal failure, see ProcessingError
)

// Terminal reports whether the status allows no further transitions
func (s DocumentStatus) Terminal() bool {
	return s == DocumentStatusFailed
}

// Document is one uploaded file and its processing state
type Document struct {
	ID                    string                 `json:"id"`
	Filename              string                 `json:"filename"`          // Stored name: {uuid}{ext}
	OriginalFilename      string                 `json:"original_filename"` // Name as uploaded
	ContentType           string                 `json:"content_type"`
	FileSize              int64                  `json:"file_size"`
	FileHash              string                 `json:"file_hash"` // SHA-256 hex, unique among live documents
	Status                DocumentStatus         `json:"status"`
	ProcessingError       string                 `json:"processing_error,omitempty"`
	PageCount             int                    `json:"page_count"`
	ChunkCount            int                    `json:"chunk_count"`
	Summary               string                 `json:"summary,omitempty"`
	SummaryEmbedding      []float32              `json:"-"`
	Metadata              map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt             time.Time              `json:"created_at"`
	UpdatedAt             time.Time              `json:"updated_at"`
	ProcessingStartedAt   *time.Time             `json:"processing_started_at,omitempty"`
	ProcessingCompletedAt *time.Time             `json:"processing_completed_at,omitempty"`
	IsDeleted             bool                   `json:"is_deleted"`
	DeletedAt             *time.Time             `json:"deleted_at,omitempty"`
}

// MarkProcessing transitions the document into the processing state
func (d *Document) MarkProcessing() {
	now := time.Now().UTC()
	d.Status = DocumentStatusProcessing
	d.ProcessingStartedAt = &now
	d.ProcessingError = ""
}

// MarkCompleted transitions the document into the completed state
func (d *Document) MarkCompleted(pageCount, chunkCount int) {
	now := time.Now().UTC()
	d.Status = DocumentStatusCompleted
	d.PageCount = pageCount
	d.ChunkCount = chunkCount
	d.ProcessingCompletedAt = &now
	d.ProcessingError = ""
}

// MarkFailed transitions the document into the terminal failed state
func (d *Document) MarkFailed(reason string) {
	now := time.Now().UTC()
	d.Status = DocumentStatusFailed
	d.ProcessingError = reason
	d.ProcessingCompletedAt = &now
}

// ProcessedDocument is the in-memory result of a successful processing run,
// ready to be persisted in a single transaction
type ProcessedDocument struct {
	DocumentID       string                 `json:"document_id"`
	FileHash         string                 `json:"file_hash"`
	PageCount        int                    `json:"page_count"`
	Chunks           []*Chunk               `json:"chunks"`
	Summary          string                 `json:"summary"`
	SummaryEmbedding []float32              `json:"-"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
	ImagesDescribed  int                    `json:"images_described"`
	ImagesSkipped    int                    `json:"images_skipped"`
}
