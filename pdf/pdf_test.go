package pdf

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

// pdfBuilder assembles a minimal valid PDF with a correct xref table
type pdfBuilder struct {
	buf     bytes.Buffer
	offsets []int
}

func newPDFBuilder() *pdfBuilder {
	b := &pdfBuilder{}
	b.buf.WriteString("%PDF-1.4\n")
	return b
}

func (b *pdfBuilder) object(body string) int {
	b.offsets = append(b.offsets, b.buf.Len())
	n := len(b.offsets)
	fmt.Fprintf(&b.buf, "%d 0 obj\n%s\nendobj\n", n, body)
	return n
}

func (b *pdfBuilder) streamObject(dict, content string) int {
	body := fmt.Sprintf("<< %s /Length %d >>\nstream\n%s\nendstream", dict, len(content), content)
	return b.object(body)
}

func (b *pdfBuilder) finish(trailerExtra string) []byte {
	xrefOffset := b.buf.Len()
	fmt.Fprintf(&b.buf, "xref\n0 %d\n", len(b.offsets)+1)
	b.buf.WriteString("0000000000 65535 f \n")
	for _, offset := range b.offsets {
		fmt.Fprintf(&b.buf, "%010d 00000 n \n", offset)
	}
	fmt.Fprintf(&b.buf, "trailer\n<< /Size %d /Root 1 0 R %s >>\nstartxref\n%d\n%%%%EOF\n",
		len(b.offsets)+1, trailerExtra, xrefOffset)
	return b.buf.Bytes()
}

// writeTestPDF builds a two-page text PDF with an inherited MediaBox and
// one custom Info property
func writeTestPDF(t *testing.T) string {
	t.Helper()
	b := newPDFBuilder()
	b.object("<< /Type /Catalog /Pages 2 0 R >>")
	b.object("<< /Type /Pages /Kids [3 0 R 4 0 R] /Count 2 /MediaBox [0 0 612 792] >>")
	b.object("<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 5 0 R >> >> /Contents 6 0 R >>")
	b.object("<< /Type /Page /Parent 2 0 R /Resources << /Font << /F1 5 0 R >> >> /Contents 7 0 R >>")
	b.object("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica /Encoding /WinAnsiEncoding >>")
	b.streamObject("", "BT /F1 24 Tf 72 720 Td (Deductions reduce taxable income.) Tj ET")
	b.streamObject("", "BT /F1 24 Tf 72 720 Td (Tax credits offset tax owed directly.) Tj ET")
	b.object("<< /Category (Tax) >>")

	path := filepath.Join(t.TempDir(), "guide.pdf")
	assert.Nil(t, os.WriteFile(path, b.finish("/Info 8 0 R"), 0644))
	return path
}

func TestExtractTextPages(t *testing.T) {
	path := writeTestPDF(t)
	extractor := New(Options{SkipImages: true})

	result, err := extractor.Extract(context.Background(), path)
	assert.Nil(t, err)
	assert.Equal(t, 2, result.PageCount)
	assert.Len(t, result.Pages, 2)

	assert.Equal(t, 1, result.Pages[0].PageNumber)
	assert.Contains(t, result.Pages[0].Text, "Deductions")
	assert.Equal(t, 2, result.Pages[1].PageNumber)
	assert.Contains(t, result.Pages[1].Text, "credits")

	// MediaBox is inherited from the page tree root
	assert.Equal(t, 612.0, result.Pages[0].Width)
	assert.Equal(t, 792.0, result.Pages[0].Height)
	assert.False(t, result.Pages[0].HasImages())
	assert.True(t, result.FileSize > 0)
}

func TestExtractCustomProperties(t *testing.T) {
	path := writeTestPDF(t)
	extractor := New(Options{SkipImages: true})

	result, err := extractor.Extract(context.Background(), path)
	assert.Nil(t, err)
	assert.Equal(t, "Tax", result.Metadata["Category"])
}

func TestExtractMissingFile(t *testing.T) {
	extractor := New(Options{})
	_, err := extractor.Extract(context.Background(), "/nonexistent/file.pdf")
	assert.NotNil(t, err)
}

func TestExtractUnreadableFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	assert.Nil(t, os.WriteFile(path, []byte("this is not a pdf"), 0644))

	extractor := New(Options{})
	_, err := extractor.Extract(context.Background(), path)
	assert.NotNil(t, err)
}

func TestExtractCancelled(t *testing.T) {
	path := writeTestPDF(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	extractor := New(Options{SkipImages: true})
	_, err := extractor.Extract(ctx, path)
	assert.NotNil(t, err)
	assert.Equal(t, context.Canceled, err)
}

func TestImageRect(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 30, 40))
	for y := 0; y < 40; y++ {
		for x := 0; x < 30; x++ {
			img.Set(x, y, color.RGBA{A: 255})
		}
	}
	var buf bytes.Buffer
	assert.Nil(t, png.Encode(&buf, img))

	rect := imageRect(buf.Bytes())
	assert.Equal(t, 30.0, rect.X1)
	assert.Equal(t, 40.0, rect.Y1)
	assert.Equal(t, 1200.0, rect.Area())

	assert.Equal(t, 0.0, imageRect([]byte("garbage")).Area())
}
