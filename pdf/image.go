package pdf

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/ragent-io/ragent/types"
)

// maxImageBytes bounds one embedded image read (32MB)
const maxImageBytes = 32 << 20

// readImage drains one extracted image stream
func readImage(r io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(r, maxImageBytes))
}

// imageRect approximates an image's page footprint from its intrinsic
// pixel size at 72dpi. Embedded images carry no placement geometry once
// extracted, so coverage gating works off this estimate.
func imageRect(data []byte) types.Rect {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return types.Rect{}
	}
	return types.Rect{X1: float64(cfg.Width), Y1: float64(cfg.Height)}
}
