// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package providers provides a unified interface over third-party
// text-to-image APIs (Ideogram, Fal.ai, HuggingFace). Each client implements
// the Provider interface, the Registry holds the configured ones and the
// default, and the Manager wraps them with circuit breakers and fallback.
package providers

import (
	"context"
	"errors"
	"slices"
)

// Provider defines the interface that all image providers must implement.
// Each provider handles its own HTTP communication and response parsing.
type Provider interface {
	// Name returns the provider identifier (e.g., "ideogram", "fal-qwen").
	Name() string

	// Model returns the upstream model the provider calls.
	Model() string

	// Capabilities describes which request options the provider honours.
	Capabilities() Capabilities

	// Generate creates one image from the request.
	Generate(ctx context.Context, req Request) (*Image, error)
}

// Pinger is implemented by providers that can report whether their API is
// reachable without spending credits.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Capabilities flags what a provider supports.
type Capabilities struct {
	AspectRatios   []string // empty means any supported ratio
	NegativePrompt bool
	Styles         bool
	Seed           bool
	RemoteURL      bool // output is a URL that must be downloaded
	MaxImages      int  // images the API can return per call; one is requested
}

// SupportsAspectRatio reports whether ratio can be requested. An empty
// ratio is always supported and means square.
func (c Capabilities) SupportsAspectRatio(ratio string) bool {
	if ratio == "" || len(c.AspectRatios) == 0 {
		return true
	}
	return slices.Contains(c.AspectRatios, ratio)
}

// Request is the provider-neutral generation request.
type Request struct {
	Prompt         string
	NegativePrompt string
	AspectRatio    string // "1:1", "4:5", "9:16", "16:9", "3:2", "2:3"
	Style          string // style preset name; providers map it to their own enum
	Seed           int64  // 0 lets the provider pick
}

// Image is a generated image returned by a provider.
type Image struct {
	Data        []byte
	ContentType string
	Width       int // 0 when the provider does not report it
	Height      int
	Provider    string
	Model       string
	Seed        int64
}

var (
	// ErrNoProvider is returned when no provider is configured at all.
	ErrNoProvider = errors.New("providers: no image provider configured")

	// ErrUnknownProvider is returned when a caller asks for a provider by
	// a name that is not configured.
	ErrUnknownProvider = errors.New("providers: unknown provider")

	// ErrAllProvidersFailed wraps the last error after every candidate
	// provider has failed or been skipped.
	ErrAllProvidersFailed = errors.New("providers: all providers failed")

	// ErrContentFiltered is returned when the provider refused the prompt
	// or flagged its own output as unsafe.
	ErrContentFiltered = errors.New("providers: content filtered")

	// ErrCircuitOpen is returned by a breaker that is rejecting calls.
	ErrCircuitOpen = errors.New("providers: circuit open")
)

// Dimensions returns the pixel size used for an aspect ratio by providers
// that take explicit width and height. Sizes are roughly one megapixel and
// multiples of 64.
func Dimensions(ratio string) (int, int) {
	switch ratio {
	case "4:5":
		return 896, 1152
	case "9:16":
		return 768, 1344
	case "16:9":
		return 1344, 768
	case "3:2":
		return 1216, 832
	case "2:3":
		return 832, 1216
	default:
		return 1024, 1024
	}
}

// AllAspectRatios lists every ratio the service accepts.
var AllAspectRatios = []string{"1:1", "4:5", "9:16", "16:9", "3:2", "2:3"}
