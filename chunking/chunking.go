package chunking

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/ragent-io/ragent/types"
)

// Strategy selects how text is split
type Strategy string

// Chunking strategies
const (
	StrategyFixedSize Strategy = "fixed_size"
	StrategyParagraph Strategy = "paragraph"
	StrategySemantic  Strategy = "semantic"
)

// Size bounds for one chunk in bytes
const (
	MinSize     = 100
	MaxSize     = 4000
	DefaultSize = 1000

	// DefaultOverlap is carried between adjacent fixed-size chunks
	DefaultOverlap = 200
)

// sentenceBreaks are preferred chunk boundaries, searched in the trailing
// window of each fixed-size slice
var sentenceBreaks = []string{". ", ".\n", "? ", "?\n", "! ", "!\n"}

// headerLine matches markdown headers, title-case labels ending with a
// colon, and numbered items
var headerLine = regexp.MustCompile(`^(?:#{1,6}\s+.+|[A-Z][A-Za-z\s]+:|\d+\.\s+.+)$`)

// paragraphGap splits on blank lines
var paragraphGap = regexp.MustCompile(`\n\s*\n`)

// Chunk is one split-out slice of input text. Offsets are byte positions
// into the input.
type Chunk struct {
	Content    string
	Index      int
	PageNumber *int
	StartChar  int
	EndChar    int
	Kind       types.ContentKind
	Metadata   map[string]interface{}
}

// EstimateTokens returns the chunk's rough token count
func (c *Chunk) EstimateTokens() int {
	return types.EstimateTokens(c.Content)
}

// Options configure a chunker
type Options struct {
	Size     int // Target chunk size in bytes, clamped to [100, 4000]
	Overlap  int // Bytes carried between adjacent chunks, < Size
	Strategy Strategy
}

// Chunker splits text into ordered, indexed chunks
type Chunker struct {
	size     int
	overlap  int
	strategy Strategy
}

// New creates a chunker, fixing out-of-range options to sane values
func New(options Options) *Chunker {
	if options.Size <= 0 {
		options.Size = DefaultSize
	}
	if options.Size < MinSize {
		options.Size = MinSize
	}
	if options.Size > MaxSize {
		options.Size = MaxSize
	}
	if options.Overlap <= 0 {
		options.Overlap = DefaultOverlap
	}
	if options.Overlap >= options.Size {
		options.Overlap = options.Size / 5
	}
	if options.Strategy == "" {
		options.Strategy = StrategyFixedSize
	}
	return &Chunker{
		size:     options.Size,
		overlap:  options.Overlap,
		strategy: options.Strategy,
	}
}

// Size returns the effective chunk size
func (c *Chunker) Size() int { return c.size }

// Overlap returns the effective overlap
func (c *Chunker) Overlap() int { return c.overlap }

// ChunkText splits text with the configured strategy. Whitespace-only
// input yields no chunks. Chunk indexes are dense from zero within one
// call; callers merging multiple pages reindex afterwards.
func (c *Chunker) ChunkText(text string, pageNumber *int, kind types.ContentKind) []Chunk {
	if strings.TrimSpace(text) == "" {
		return []Chunk{}
	}
	switch c.strategy {
	case StrategyParagraph:
		return c.chunkByParagraph(text, pageNumber, kind)
	case StrategySemantic:
		return c.chunkSemantic(text, pageNumber, kind)
	default:
		return c.chunkFixedSize(text, pageNumber, kind)
	}
}

// chunkFixedSize walks the text in size-byte windows, preferring to end
// each chunk just past the last sentence break in the window's trailing
// 20%
func (c *Chunker) chunkFixedSize(text string, pageNumber *int, kind types.ContentKind) []Chunk {
	chunks := []Chunk{}
	start := 0
	index := 0

	for start < len(text) {
		end := start + c.size
		if end >= len(text) {
			end = len(text)
		} else {
			searchStart := alignRune(text, end-c.size/5)
			window := text[searchStart:end]

			best := -1
			for _, sep := range sentenceBreaks {
				if idx := strings.LastIndex(window, sep); idx > best {
					best = idx
				}
			}
			if best != -1 {
				end = searchStart + best + 2
			}
			end = alignRune(text, end)
		}

		content := strings.TrimSpace(text[start:end])
		if content != "" {
			chunks = append(chunks, Chunk{
				Content:    content,
				Index:      index,
				PageNumber: pageNumber,
				StartChar:  start,
				EndChar:    end,
				Kind:       kind,
			})
			index++
		}

		if end >= len(text) {
			break
		}
		next := alignRune(text, end-c.overlap)
		if next <= start {
			// Boundary search shrank the chunk below the overlap; fall
			// forward without overlap so the walk always advances
			next = end
		}
		start = next
	}
	return chunks
}

// chunkByParagraph accumulates blank-line-separated paragraphs until the
// next one would push the chunk past the target size
func (c *Chunker) chunkByParagraph(text string, pageNumber *int, kind types.ContentKind) []Chunk {
	paragraphs := paragraphGap.Split(text, -1)

	chunks := []Chunk{}
	var current strings.Builder
	currentStart := 0
	index := 0
	pos := 0

	flush := func(end int) {
		if current.Len() == 0 {
			return
		}
		chunks = append(chunks, Chunk{
			Content:    current.String(),
			Index:      index,
			PageNumber: pageNumber,
			StartChar:  currentStart,
			EndChar:    end,
			Kind:       kind,
		})
		index++
		current.Reset()
	}

	for _, para := range paragraphs {
		para = strings.TrimSpace(para)
		if para == "" {
			pos += 2
			continue
		}

		if current.Len() > 0 && current.Len()+len(para) > c.size {
			flush(pos)
			current.WriteString(para)
			currentStart = pos
		} else {
			if current.Len() > 0 {
				current.WriteString("\n\n")
				current.WriteString(para)
			} else {
				current.WriteString(para)
				currentStart = pos
			}
		}
		pos += len(para) + 2
	}

	flush(len(text))
	return chunks
}

// chunkSemantic splits at header-like lines, then re-splits any section
// larger than 1.5x the target size with the fixed-size walker
func (c *Chunker) chunkSemantic(text string, pageNumber *int, kind types.ContentKind) []Chunk {
	lines := strings.Split(text, "\n")

	sections := []Chunk{}
	var current []string
	currentStart := 0
	pos := 0

	emit := func(end int) {
		sectionText := strings.TrimSpace(strings.Join(current, "\n"))
		if sectionText != "" {
			sections = append(sections, Chunk{
				Content:    sectionText,
				PageNumber: pageNumber,
				StartChar:  currentStart,
				EndChar:    end,
				Kind:       kind,
			})
		}
	}

	for _, line := range lines {
		if headerLine.MatchString(strings.TrimSpace(line)) && len(current) > 0 {
			emit(pos)
			current = []string{line}
			currentStart = pos
		} else {
			current = append(current, line)
		}
		pos += len(line) + 1
	}
	if len(current) > 0 {
		emit(len(text))
	}

	// Oversized sections fall back to the fixed-size walker
	final := []Chunk{}
	for _, section := range sections {
		if len(section.Content) > c.size*3/2 {
			for _, sub := range c.chunkFixedSize(section.Content, section.PageNumber, section.Kind) {
				sub.Index = len(final)
				final = append(final, sub)
			}
		} else {
			section.Index = len(final)
			final = append(final, section)
		}
	}
	return final
}

// alignRune snaps a byte offset forward onto a rune boundary so slices
// never split a multi-byte character
func alignRune(text string, i int) int {
	if i <= 0 {
		return 0
	}
	if i >= len(text) {
		return len(text)
	}
	for i < len(text) && !utf8.RuneStart(text[i]) {
		i++
	}
	return i
}
