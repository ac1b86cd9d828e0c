package pdf

import (
	"context"
	"fmt"
	"os"
	"sort"

	dslipak "github.com/dslipak/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/yaoapp/kun/log"

	"github.com/ragent-io/ragent/types"
)

// Default page geometry when a PDF omits an inheritable MediaBox (US Letter)
const (
	defaultPageWidth  = 612.0
	defaultPageHeight = 792.0
)

// Options configure the extractor
type Options struct {
	SkipImages bool // Text and metadata only
}

// Extractor pulls per-page text, embedded images and document metadata
// out of PDF files
type Extractor struct {
	skipImages bool
}

// New creates a PDF extractor
func New(options Options) *Extractor {
	return &Extractor{skipImages: options.SkipImages}
}

// Result is one fully extracted PDF
type Result struct {
	PageCount int
	Pages     []*types.PageContent
	Metadata  map[string]string
	FileSize  int64
}

// Extract reads a PDF from disk. Pages whose text cannot be decoded are
// kept with empty text and a warning so page numbering stays stable;
// an unreadable file is a hard error.
func (e *Extractor) Extract(ctx context.Context, filePath string) (*Result, error) {
	fileInfo, err := os.Stat(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	pageCount, err := api.PageCountFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to get page count: %w", err)
	}

	result := &Result{
		PageCount: pageCount,
		Pages:     make([]*types.PageContent, 0, pageCount),
		Metadata:  make(map[string]string),
		FileSize:  fileInfo.Size(),
	}

	reader, err := dslipak.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}

	for i := 1; i <= reader.NumPage(); i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		content := &types.PageContent{PageNumber: i}

		if page.V.IsNull() {
			log.Warn("page %d of %s is missing, keeping empty placeholder", i, filePath)
			content.Width, content.Height = defaultPageWidth, defaultPageHeight
			result.Pages = append(result.Pages, content)
			continue
		}

		content.Width, content.Height = pageSize(page)

		text, err := pageText(page)
		if err != nil {
			log.Warn("failed to extract text from page %d of %s: %s", i, filePath, err.Error())
		} else {
			content.Text = text
		}
		result.Pages = append(result.Pages, content)
	}

	// Metadata extraction is best effort, never fatal
	if file, err := os.Open(filePath); err == nil {
		properties, err := api.Properties(file, nil)
		if err != nil {
			log.Warn("failed to extract metadata from %s: %s", filePath, err.Error())
		} else {
			for key, value := range properties {
				result.Metadata[key] = value
			}
		}
		file.Close()
	}

	if !e.skipImages {
		if err := e.attachImages(filePath, result); err != nil {
			// Image extraction failures degrade to text-only processing
			log.Warn("failed to extract images from %s: %s", filePath, err.Error())
		}
	}

	return result, nil
}

// pageText guards GetPlainText, which panics on some malformed content
// streams
func pageText(page dslipak.Page) (text string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("text decoding panicked: %v", r)
		}
	}()
	return page.GetPlainText(nil)
}

// pageSize resolves the page MediaBox, walking up the page tree for
// inherited values
func pageSize(page dslipak.Page) (float64, float64) {
	box := page.V.Key("MediaBox")
	parent := page.V.Key("Parent")
	for box.IsNull() && !parent.IsNull() {
		box = parent.Key("MediaBox")
		parent = parent.Key("Parent")
	}
	if box.IsNull() || box.Len() < 4 {
		return defaultPageWidth, defaultPageHeight
	}

	width := box.Index(2).Float64() - box.Index(0).Float64()
	height := box.Index(3).Float64() - box.Index(1).Float64()
	if width <= 0 || height <= 0 {
		return defaultPageWidth, defaultPageHeight
	}
	return width, height
}

// attachImages extracts embedded images and assigns them to their pages
// in a stable object order
func (e *Extractor) attachImages(filePath string, result *Result) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open file for image extraction: %w", err)
	}
	defer file.Close()

	raw, err := api.ExtractImagesRaw(file, nil, nil)
	if err != nil {
		return fmt.Errorf("failed to extract images: %w", err)
	}

	byPage := make(map[int][][]byte)
	for _, pageImages := range raw {
		objNrs := make([]int, 0, len(pageImages))
		for objNr := range pageImages {
			objNrs = append(objNrs, objNr)
		}
		sort.Ints(objNrs)

		for _, objNr := range objNrs {
			img := pageImages[objNr]
			data, err := readImage(img.Reader)
			if err != nil {
				log.Warn("failed to read image object %d on page %d of %s: %s",
					objNr, img.PageNr, filePath, err.Error())
				continue
			}
			byPage[img.PageNr] = append(byPage[img.PageNr], data)
		}
	}

	for _, page := range result.Pages {
		images, ok := byPage[page.PageNumber]
		if !ok {
			continue
		}
		page.Images = images
		page.ImageRects = make([]types.Rect, 0, len(images))
		for _, data := range images {
			page.ImageRects = append(page.ImageRects, imageRect(data))
		}
	}
	return nil
}
