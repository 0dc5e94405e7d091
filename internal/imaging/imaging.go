// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package imaging prepares generated images for storage. It converts them
// to WebP with libvips, stamps an optional watermark, and probes their
// dimensions. Decoding is guarded against decompression bombs.
package imaging

import (
	"fmt"
	"log/slog"

	"github.com/davidbyttow/govips/v2/vips"
)

// DefaultQuality is the WebP quality used when none is configured.
const DefaultQuality = 82

// Converted holds a WebP encoding of an image.
type Converted struct {
	Data        []byte // WebP-encoded image bytes
	Width       int
	Height      int
	ContentType string // always "image/webp"
}

// Startup initialises the libvips library. Call once at application start.
// concurrency controls the number of libvips worker threads (0 = auto).
func Startup(concurrency int) {
	cfg := &vips.Config{
		ConcurrencyLevel: concurrency,
		MaxCacheSize:     100,
		MaxCacheMem:      50 * 1024 * 1024, // 50 MB
	}
	vips.LoggingSettings(nil, vips.LogLevelWarning)
	vips.Startup(cfg)
	slog.Info("libvips started", "version", vips.Version)
}

// Shutdown releases libvips resources. Call at application shutdown.
func Shutdown() {
	vips.Shutdown()
}

// ToWebP re-encodes a raster image as lossy WebP at the given quality
// (1-100, 0 means DefaultQuality). EXIF orientation is applied and
// metadata stripped.
func ToWebP(data []byte, quality int) (*Converted, error) {
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	if _, err := Probe(data); err != nil {
		return nil, err
	}

	img, err := vips.NewImageFromBuffer(data)
	if err != nil {
		return nil, fmt.Errorf("imaging: load failed: %w", err)
	}
	defer img.Close()

	if err := img.AutoRotate(); err != nil {
		return nil, fmt.Errorf("imaging: autorotate: %w", err)
	}

	params := vips.NewWebpExportParams()
	params.Quality = quality
	params.Lossless = false
	params.StripMetadata = true

	buf, meta, err := img.ExportWebp(params)
	if err != nil {
		return nil, fmt.Errorf("imaging: export webp: %w", err)
	}

	return &Converted{
		Data:        buf,
		Width:       meta.Width,
		Height:      meta.Height,
		ContentType: "image/webp",
	}, nil
}
