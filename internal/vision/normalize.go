package vision

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	// Register decoders for the formats reporters actually upload.
	_ "image/gif"
	_ "image/png"

	"golang.org/x/image/draw"
)

const (
	// DefaultMaxWidth bounds the re-encoded image width. Matches what the
	// captioning models were trained on; anything larger is wasted upload.
	DefaultMaxWidth = 960

	jpegQuality = 85
)

// Normalize decodes an uploaded image, scales it down to at most maxWidth
// (never enlarging), and re-encodes as JPEG. All bytes sent to external
// services go through this re-encode so upstream never sees the original file.
func Normalize(img []byte, maxWidth int) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(img))
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return nil, fmt.Errorf("empty image %dx%d", w, h)
	}

	if w > maxWidth {
		scaled := image.NewRGBA(image.Rect(0, 0, maxWidth, h*maxWidth/w))
		draw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), src, bounds, draw.Src, nil)
		src = scaled
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, src, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}
	return buf.Bytes(), nil
}
