package types

// EmbeddingStatus tracks the state of one embedding run
type EmbeddingStatus string

// Embedding run states
const (
	EmbeddingStarting   EmbeddingStatus = "starting"
	EmbeddingProcessing EmbeddingStatus = "processing"
	EmbeddingCompleted  EmbeddingStatus = "completed"
	EmbeddingError      EmbeddingStatus = "error"
)

// EmbeddingPayload carries progress data for one embedding callback
type EmbeddingPayload struct {
	Current    int    `json:"current"`               // Texts embedded so far
	Total      int    `json:"total"`                 // Total texts in the run
	Message    string `json:"message"`               // Status message
	BatchIndex *int   `json:"batch_index,omitempty"` // Batch being processed
	Error      error  `json:"error,omitempty"`       // Set when status is error
}

// EmbeddingProgress receives progress updates during an embedding run
type EmbeddingProgress func(status EmbeddingStatus, payload EmbeddingPayload)

// ProcessingStage identifies one step of the document pipeline
type ProcessingStage string

// Document pipeline stages in execution order
const (
	StageHashing    ProcessingStage = "hashing"
	StageExtraction ProcessingStage = "extraction"
	StageVision     ProcessingStage = "vision"
	StageChunking   ProcessingStage = "chunking"
	StageEmbedding  ProcessingStage = "embedding"
	StageSummary    ProcessingStage = "summary"
	StageCompleted  ProcessingStage = "completed"
	StageFailed     ProcessingStage = "failed"
)

// ProcessingProgress is a point-in-time snapshot of one document's pipeline
type ProcessingProgress struct {
	DocumentID string          `json:"document_id"`
	Stage      ProcessingStage `json:"stage"`
	Percent    int             `json:"percent"` // 0-100
	Message    string          `json:"message,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// ProgressSink receives document pipeline updates. Implementations must be
// safe for concurrent use; the pipeline reports from worker goroutines.
type ProgressSink func(progress ProcessingProgress)
