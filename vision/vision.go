package vision

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/types"
)

// DefaultBatchSize is the number of images described per model call
const DefaultBatchSize = 4

// SystemPrompt steers all vision calls
const SystemPrompt = `You are an expert at analyzing images and documents.
Your task is to describe the visual content in detail, including:
- Any text visible in the image
- Diagrams, charts, or figures with their meaning
- Tables with their structure and data
- Any other relevant visual elements

Be thorough but concise. Focus on information that would be useful for understanding the document.`

// FigureDescriptionPrompt is the default prompt for standalone images
const FigureDescriptionPrompt = `Analyze this image from a document page. Describe:
1. What type of visual element this is (chart, diagram, photo, table, etc.)
2. The key information it conveys
3. Any text or labels present
4. How it relates to document content

Provide a clear, searchable description.`

// documentImagePrompt is the template for images extracted from PDF pages
const documentImagePrompt = `You are analyzing an image extracted from a PDF document.

Page: %d
Image: %d of %d on this page
%s

Please provide a detailed description of this image that captures:

1. **Type**: What kind of visual element is this? (chart, graph, diagram, photo, screenshot, table, logo, illustration, etc.)

2. **Content**: What does the image show? Be specific about:
   - Any text, labels, or captions visible in the image
   - Data values, numbers, or measurements shown
   - Names, titles, or identifiers
   - Colors, patterns, or visual distinctions that carry meaning

3. **Information**: What information or message does this image convey?
   - Key takeaways or insights
   - Relationships or comparisons shown
   - Trends or patterns (for charts/graphs)

4. **Structure** (if applicable):
   - For tables: describe rows, columns, and notable data
   - For diagrams: describe components and their connections
   - For charts: describe axes, legends, and data series

Provide a clear, detailed description that would allow someone to understand this image without seeing it.
Focus on factual content rather than aesthetic qualities.`

// imageMarker splits a batched reply into per-image descriptions
var imageMarker = regexp.MustCompile(`(?i)\[IMAGE\s*\d+\]`)

// Backend is the multimodal model contract the service talks to
type Backend interface {
	ChatVision(ctx context.Context, prompt string, system string, images []string, opts ...types.GenerateOption) (string, error)
}

// DocumentImage is one extracted image queued for description
type DocumentImage struct {
	Data       []byte
	PageNumber int // 1-based source page
	ImageIndex int // 1-based position on the page
}

// Description is one described image
type Description struct {
	PageNumber int
	ImageIndex int
	Text       string // Empty when description failed
}

// Options configure the vision service
type Options struct {
	Backend   Backend
	BatchSize int // Images per model call, default 4
	MinPixels int // Meaningful-image area floor, default 1000
}

// Service describes document images through a multimodal model
type Service struct {
	backend   Backend
	batchSize int
	minPixels int
}

// New creates a vision service, applying defaults to unset options
func New(options Options) (*Service, error) {
	if options.Backend == nil {
		return nil, fmt.Errorf("vision backend is not set")
	}
	if options.BatchSize <= 0 {
		options.BatchSize = DefaultBatchSize
	}
	if options.MinPixels <= 0 {
		options.MinPixels = MinMeaningfulPixels
	}
	return &Service{
		backend:   options.Backend,
		batchSize: options.BatchSize,
		minPixels: options.MinPixels,
	}, nil
}

// Meaningful reports whether an image passes the decoration filter
func (s *Service) Meaningful(imageData []byte) bool {
	return IsMeaningful(imageData, s.minPixels)
}

// BatchSize returns the number of images sent per model call
func (s *Service) BatchSize() int {
	return s.batchSize
}

// DescribeImage describes one image with an optional custom prompt and
// context hint
func (s *Service) DescribeImage(ctx context.Context, imageData []byte, prompt string, contextHint string) (string, error) {
	encoded := encodeBase64(Preprocess(imageData))

	if prompt == "" {
		prompt = FigureDescriptionPrompt
	}
	if contextHint != "" {
		prompt = fmt.Sprintf("Context: %s\n\n%s", contextHint, prompt)
	}

	response, err := s.backend.ChatVision(ctx, prompt, SystemPrompt, []string{encoded},
		types.WithTemperature(0.3))
	if err != nil {
		return "", err
	}
	log.Debug("image described, %d chars", len(response))
	return response, nil
}

// DescribeDocumentImage describes one image extracted from a PDF page,
// anchored by its page position and nearby text
func (s *Service) DescribeDocumentImage(ctx context.Context, imageData []byte, pageNumber, imageIndex, totalOnPage int, textContext string) (string, error) {
	encoded := encodeBase64(Preprocess(imageData))

	contextSection := ""
	if strings.TrimSpace(textContext) != "" {
		truncated := textContext
		if len(truncated) > 500 {
			truncated = truncated[:500] + "..."
		}
		contextSection = fmt.Sprintf("\nSurrounding text context:\n\"\"\"\n%s\n\"\"\"\n", truncated)
	}

	prompt := fmt.Sprintf(documentImagePrompt, pageNumber, imageIndex, totalOnPage, contextSection)

	response, err := s.backend.ChatVision(ctx, prompt, SystemPrompt, []string{encoded},
		types.WithTemperature(0.2))
	if err != nil {
		return "", err
	}

	log.Debug("document image described, page %d image %d, %d chars",
		pageNumber, imageIndex, len(response))
	return response, nil
}

// DescribeBatch describes images a few at a time. A failed batch falls
// back to one call per image; an image that still fails yields an empty
// description rather than aborting the run.
func (s *Service) DescribeBatch(ctx context.Context, images []DocumentImage, textContext string) []Description {
	results := make([]Description, 0, len(images))

	for start := 0; start < len(images); start += s.batchSize {
		end := start + s.batchSize
		if end > len(images) {
			end = len(images)
		}
		batch := images[start:end]

		batchResults, err := s.describeBatchCall(ctx, batch, textContext)
		if err != nil {
			log.Warn("batch description failed, falling back to individual: %s", err.Error())
			for _, img := range batch {
				desc, err := s.DescribeDocumentImage(ctx, img.Data, img.PageNumber, img.ImageIndex, 1, textContext)
				if err != nil {
					log.Warn("individual image description failed, page %d image %d: %s",
						img.PageNumber, img.ImageIndex, err.Error())
					desc = ""
				}
				results = append(results, Description{
					PageNumber: img.PageNumber,
					ImageIndex: img.ImageIndex,
					Text:       desc,
				})
			}
			continue
		}
		results = append(results, batchResults...)
	}
	return results
}

// describeBatchCall sends one batch of images in a single model call
func (s *Service) describeBatchCall(ctx context.Context, batch []DocumentImage, textContext string) ([]Description, error) {
	if len(batch) == 0 {
		return []Description{}, nil
	}

	encoded := make([]string, 0, len(batch))
	for _, img := range batch {
		encoded = append(encoded, encodeBase64(Preprocess(img.Data)))
	}

	contextSection := ""
	if strings.TrimSpace(textContext) != "" {
		truncated := textContext
		if len(truncated) > 300 {
			truncated = truncated[:300] + "..."
		}
		contextSection = fmt.Sprintf("\nDocument context: %s\n", truncated)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are analyzing %d images extracted from a PDF document.\n", len(batch))
	b.WriteString(contextSection)
	fmt.Fprintf(&b, "For EACH image (numbered 1 to %d), provide a brief but informative description.\n\n", len(batch))
	b.WriteString("Format your response EXACTLY as follows:\n")
	b.WriteString("[IMAGE 1]\n(description of first image)\n\n")
	b.WriteString("[IMAGE 2]\n(description of second image)\n\n")
	if len(batch) > 2 {
		b.WriteString("[IMAGE 3]\n(description of third image)\n\n")
	}
	if len(batch) > 3 {
		b.WriteString("[IMAGE 4]\n(description of fourth image)\n\n")
	}
	b.WriteString("For each image, describe:\n")
	b.WriteString("- Type (chart, diagram, photo, table, equation, etc.)\n")
	b.WriteString("- Key content and information conveyed\n")
	b.WriteString("- Any text, labels, or data shown")

	response, err := s.backend.ChatVision(ctx, b.String(), SystemPrompt, encoded,
		types.WithTemperature(0.2))
	if err != nil {
		return nil, err
	}

	descriptions, err := parseBatchResponse(response, len(batch))
	if err != nil {
		return nil, err
	}

	results := make([]Description, 0, len(batch))
	for i, img := range batch {
		results = append(results, Description{
			PageNumber: img.PageNumber,
			ImageIndex: img.ImageIndex,
			Text:       descriptions[i],
		})
	}

	log.Debug("batch processed, %d images %d chars", len(batch), len(response))
	return results, nil
}

// parseBatchResponse splits a batched reply on its [IMAGE N] markers.
// A reply carrying fewer sections than images asked for is an error so
// the caller can retry image by image. A single-image batch accepts a
// marker-free reply as the description.
func parseBatchResponse(response string, expected int) ([]string, error) {
	parts := imageMarker.Split(response, -1)

	descriptions := make([]string, 0, expected)
	for _, part := range parts[1:] {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			descriptions = append(descriptions, trimmed)
		}
	}

	if len(descriptions) >= expected {
		return descriptions[:expected], nil
	}

	if expected == 1 {
		if whole := strings.TrimSpace(response); whole != "" {
			return []string{whole}, nil
		}
	}

	return nil, fmt.Errorf("batch reply has %d image sections, expected %d", len(descriptions), expected)
}
