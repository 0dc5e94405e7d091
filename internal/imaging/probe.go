package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	_ "image/png"  // register PNG decoder

	_ "golang.org/x/image/webp" // register WebP decoder
)

// maxImagePixels caps the number of pixels to prevent memory bombs.
// 10000x10000 = 100 million pixels, ~400 MB decoded in RGBA.
const maxImagePixels = 100_000_000

// ErrTooLarge is returned for images above maxImagePixels.
var ErrTooLarge = errors.New("imaging: image too large")

// Info describes an encoded image without decoding its pixels.
type Info struct {
	Width       int
	Height      int
	ContentType string // e.g. "image/png"
}

// Probe reads the image header and returns its dimensions and type.
func Probe(data []byte) (*Info, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode config: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > maxImagePixels {
		return nil, fmt.Errorf("%w: %dx%d exceeds %d pixels", ErrTooLarge, cfg.Width, cfg.Height, maxImagePixels)
	}
	return &Info{Width: cfg.Width, Height: cfg.Height, ContentType: "image/" + format}, nil
}

// IsRaster reports whether contentType is a format this package can decode.
func IsRaster(contentType string) bool {
	switch contentType {
	case "image/png", "image/jpeg", "image/gif", "image/webp":
		return true
	}
	return false
}

// decode fully decodes data after checking its size.
func decode(data []byte) (image.Image, error) {
	if _, err := Probe(data); err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("imaging: decode: %w", err)
	}
	return img, nil
}
