package types

// SearchType selects the ranking strategy for chunk search
type SearchType string

// Search types
const (
	SearchTypeDense  SearchType = "dense"  // Cosine similarity only
	SearchTypeHybrid SearchType = "hybrid" // Weighted vector + full-text rank
)

// SearchResult is one retrieved chunk with its ranking score
type SearchResult struct {
	ChunkID          string                 `json:"chunk_id"`
	DocumentID       string                 `json:"document_id"`
	DocumentFilename string                 `json:"document_filename"`
	Content          string                 `json:"content"`
	PageNumber       *int                   `json:"page_number,omitempty"`
	SimilarityScore  float64                `json:"similarity_score"`
	Metadata         map[string]interface{} `json:"metadata,omitempty"`
}

// SearchResponse is the full result set for one query
type SearchResponse struct {
	Query        string         `json:"query"`
	Results      []SearchResult `json:"results"`
	TotalResults int            `json:"total_results"`
	SearchTimeMs float64        `json:"search_time_ms"`
}

// DocumentMatch is one document-level search hit over summary embeddings
type DocumentMatch struct {
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Summary    string  `json:"summary"`
	Similarity float64 `json:"similarity"`
}
