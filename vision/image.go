package vision

import (
	"bytes"
	"encoding/base64"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	_ "image/jpeg"
	"image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/yaoapp/kun/log"
)

// MinImageSize is the smallest width or height the vision model accepts;
// smaller images are padded onto a white canvas
const MinImageSize = 32

// MinMeaningfulPixels is the default area floor below which an image is
// treated as decoration (icons, bullets) and skipped
const MinMeaningfulPixels = 1000

// minMeaningfulDim filters out separator lines and thin rules
const minMeaningfulDim = 20

// Preprocess normalizes an image for the vision model. Images smaller
// than MinImageSize on either side are centered on a white canvas of at
// least that size; everything is re-encoded as PNG. Undecodable input is
// returned unchanged so the model can still try it.
func Preprocess(imageData []byte) []byte {
	img, _, err := image.Decode(bytes.NewReader(imageData))
	if err != nil {
		log.Warn("image preprocessing failed: %s, using original image", err.Error())
		return imageData
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	if width < MinImageSize || height < MinImageSize {
		newWidth, newHeight := width, height
		if newWidth < MinImageSize {
			newWidth = MinImageSize
		}
		if newHeight < MinImageSize {
			newHeight = MinImageSize
		}

		canvas := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
		draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)

		pasteX := (newWidth - width) / 2
		pasteY := (newHeight - height) / 2
		target := image.Rect(pasteX, pasteY, pasteX+width, pasteY+height)
		draw.Draw(canvas, target, img, bounds.Min, draw.Over)

		log.Debug("padded small image from %dx%d to %dx%d", width, height, newWidth, newHeight)
		img = canvas
	}

	var out bytes.Buffer
	if err := png.Encode(&out, img); err != nil {
		log.Warn("image re-encoding failed: %s, using original image", err.Error())
		return imageData
	}
	return out.Bytes()
}

// Dimensions returns an image's width and height, or zeros when the
// format cannot be decoded
func Dimensions(imageData []byte) (int, int) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(imageData))
	if err != nil {
		return 0, 0
	}
	return cfg.Width, cfg.Height
}

// IsMeaningful reports whether an image likely carries document content.
// Tiny images and very thin strips are decorations; undecodable images
// pass through so the model gets a chance at them.
func IsMeaningful(imageData []byte, minPixels int) bool {
	if minPixels <= 0 {
		minPixels = MinMeaningfulPixels
	}
	width, height := Dimensions(imageData)
	if width == 0 && height == 0 {
		return true
	}
	if width*height < minPixels {
		return false
	}
	if width < minMeaningfulDim || height < minMeaningfulDim {
		return false
	}
	return true
}

// encodeBase64 prepares one preprocessed image for the wire
func encodeBase64(imageData []byte) string {
	return base64.StdEncoding.EncodeToString(imageData)
}
