package types

import "time"

// ContentKind tags what a chunk's content was assembled from
type ContentKind string

// Chunk content kinds
const (
	ContentKindText   ContentKind = "text"   // Plain extracted text
	ContentKindVision ContentKind = "vision" // Image descriptions only
	ContentKindMerged ContentKind = "merged" // Text merged with image descriptions
)

// Chunk is a persisted, indexed slice of a document's merged content
type Chunk struct {
	ID          string                 `json:"id"`
	DocumentID  string                 `json:"document_id"`
	ChunkIndex  int                    `json:"chunk_index"` // Zero-based, dense within the document
	PageNumber  *int                   `json:"page_number,omitempty"`
	Content     string                 `json:"content"`
	ContentKind ContentKind            `json:"content_kind"`
	TokenCount  int                    `json:"token_count"`
	Embedding   []float32              `json:"-"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
}

// Rect is an axis-aligned bounding rectangle in page coordinates
type Rect struct {
	X0 float64 `json:"x0"`
	Y0 float64 `json:"y0"`
	X1 float64 `json:"x1"`
	Y1 float64 `json:"y1"`
}

// Area returns the rectangle area, zero for degenerate rects
func (r Rect) Area() float64 {
	w := r.X1 - r.X0
	h := r.Y1 - r.Y0
	if w <= 0 || h <= 0 {
		return 0
	}
	return w * h
}

// PageContent is one extracted PDF page: its text, embedded images and
// their placement, and the page dimensions
type PageContent struct {
	PageNumber int      `json:"page_number"` // 1-based
	Text       string   `json:"text"`
	Images     [][]byte `json:"-"`
	ImageRects []Rect   `json:"image_rects,omitempty"`
	Width      float64  `json:"width"`
	Height     float64  `json:"height"`
}

// HasImages reports whether the page carries at least one embedded image
func (p *PageContent) HasImages() bool {
	return len(p.Images) > 0
}

// ImageCoverageRatio returns the fraction of the page area covered by
// image rects, clamped to [0, 1]
func (p *PageContent) ImageCoverageRatio() float64 {
	pageArea := p.Width * p.Height
	if pageArea <= 0 {
		return 0
	}
	var covered float64
	for _, r := range p.ImageRects {
		covered += r.Area()
	}
	ratio := covered / pageArea
	if ratio > 1 {
		return 1
	}
	return ratio
}
