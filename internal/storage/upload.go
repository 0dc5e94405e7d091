package storage

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"eventcraft/internal/imaging"
)

// ImageOptions controls how UploadImage stores an image.
type ImageOptions struct {
	WebP    bool // convert raster images to WebP
	Quality int  // WebP quality 1-100, 0 means imaging.DefaultQuality
}

// UploadResult describes a stored image.
type UploadResult struct {
	Key              string  `json:"key"`
	URL              string  `json:"url"`
	ContentType      string  `json:"content_type"`
	Width            int     `json:"width,omitempty"`
	Height           int     `json:"height,omitempty"`
	OriginalSize     int64   `json:"original_size"`
	StoredSize       int64   `json:"stored_size"`
	CompressionRatio float64 `json:"compression_ratio"` // stored / original
	Converted        bool    `json:"converted"`
}

// UploadImage stores an image under key. With WebP enabled, raster images
// are converted first and the key's extension becomes ".webp". If the
// conversion fails, or does not make the file smaller, the original bytes
// are stored instead with an extension matching contentType.
func (c *Client) UploadImage(ctx context.Context, key string, data []byte, contentType string, opts ImageOptions) (*UploadResult, error) {
	res := &UploadResult{
		OriginalSize: int64(len(data)),
		ContentType:  contentType,
	}
	body := data

	if opts.WebP && imaging.IsRaster(contentType) && contentType != "image/webp" {
		conv, err := c.convert(data, opts.Quality)
		switch {
		case err != nil:
			slog.Warn("webp conversion failed, storing original", "key", key, "error", err)
		case len(conv.Data) >= len(data):
			slog.Debug("webp not smaller than original, storing original",
				"key", key, "original", len(data), "webp", len(conv.Data))
		default:
			body = conv.Data
			res.ContentType = conv.ContentType
			res.Width = conv.Width
			res.Height = conv.Height
			res.Converted = true
		}
	}

	res.Key = WithExtension(key, ExtensionFor(res.ContentType))
	if err := c.UploadBytes(ctx, res.Key, res.ContentType, body); err != nil {
		return nil, err
	}

	res.URL = c.FileURL(res.Key)
	res.StoredSize = int64(len(body))
	if res.OriginalSize > 0 {
		res.CompressionRatio = float64(res.StoredSize) / float64(res.OriginalSize)
	} else {
		res.CompressionRatio = 1
	}
	return res, nil
}

// ExtensionFor returns a file extension for known image MIME types.
func ExtensionFor(contentType string) string {
	switch contentType {
	case "image/webp":
		return ".webp"
	case "image/jpeg":
		return ".jpg"
	case "image/png":
		return ".png"
	case "image/gif":
		return ".gif"
	default:
		return ""
	}
}

// WithExtension replaces key's extension with ext. An empty ext leaves
// key unchanged.
func WithExtension(key, ext string) string {
	if ext == "" {
		return key
	}
	return strings.TrimSuffix(key, path.Ext(key)) + ext
}
