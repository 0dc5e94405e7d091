// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package providers

import (
	"context"
	"fmt"
	"strings"
)

// ideogramProvider implements the Provider interface using the Ideogram
// REST API (POST /generate). Ideogram returns short-lived image URLs that
// are downloaded before returning.
type ideogramProvider struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	http    *httpClient
}

// newIdeogram creates an Ideogram provider from a catalog definition.
func newIdeogram(def Definition, apiKey string, rps float64) *ideogramProvider {
	if def.Model == "" {
		def.Model = "V_2"
	}
	if def.BaseURL == "" {
		def.BaseURL = "https://api.ideogram.ai"
	}
	return &ideogramProvider{
		name:    def.Name,
		model:   def.Model,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(def.BaseURL, "/"),
		http:    newHTTPClient(def.Name, def.Timeout, rps),
	}
}

func (p *ideogramProvider) Name() string  { return p.name }
func (p *ideogramProvider) Model() string { return p.model }

func (p *ideogramProvider) Capabilities() Capabilities {
	return Capabilities{
		AspectRatios:   AllAspectRatios,
		NegativePrompt: true,
		Styles:         true,
		Seed:           true,
		MaxImages:      4,
		RemoteURL:      true,
	}
}

// Generate sends a generate request and downloads the first image.
func (p *ideogramProvider) Generate(ctx context.Context, req Request) (*Image, error) {
	body := ideogramRequest{
		ImageRequest: ideogramImageRequest{
			Prompt:            req.Prompt,
			AspectRatio:       ideogramAspect(req.AspectRatio),
			Model:             p.model,
			MagicPromptOption: "AUTO",
			StyleType:         ideogramStyleType(req.Style),
			NegativePrompt:    req.NegativePrompt,
		},
	}
	if req.Seed > 0 {
		seed := req.Seed
		body.ImageRequest.Seed = &seed
	}

	var result ideogramResponse
	headers := map[string]string{"Api-Key": p.apiKey}
	if err := p.http.postJSON(ctx, p.baseURL+"/generate", headers, body, &result); err != nil {
		return nil, err
	}

	if len(result.Data) == 0 {
		return nil, fmt.Errorf("%s: no images returned", p.name)
	}
	first := result.Data[0]
	if first.IsImageSafe != nil && !*first.IsImageSafe {
		return nil, fmt.Errorf("%s: %w", p.name, ErrContentFiltered)
	}
	if first.URL == "" {
		return nil, fmt.Errorf("%s: image has no url", p.name)
	}

	data, contentType, err := p.http.download(ctx, first.URL)
	if err != nil {
		return nil, err
	}

	w, h := parseResolution(first.Resolution)
	return &Image{
		Data:        data,
		ContentType: contentType,
		Width:       w,
		Height:      h,
		Provider:    p.name,
		Model:       p.model,
		Seed:        first.Seed,
	}, nil
}

// Ping checks that the Ideogram API host answers.
func (p *ideogramProvider) Ping(ctx context.Context) error {
	return p.http.ping(ctx, p.baseURL, map[string]string{"Api-Key": p.apiKey})
}

// ideogramAspect maps "16:9" to Ideogram's "ASPECT_16_9" enum.
func ideogramAspect(ratio string) string {
	if ratio == "" {
		ratio = "1:1"
	}
	return "ASPECT_" + strings.ReplaceAll(ratio, ":", "_")
}

// ideogramStyleType maps a style preset to Ideogram's style_type enum.
func ideogramStyleType(style string) string {
	switch style {
	case "":
		return "AUTO"
	case "photographic":
		return "REALISTIC"
	case "illustration", "watercolor":
		return "GENERAL"
	case "3d":
		return "RENDER_3D"
	default:
		return "DESIGN"
	}
}

// parseResolution parses "1024x768" into width and height.
func parseResolution(s string) (int, int) {
	var w, h int
	if _, err := fmt.Sscanf(s, "%dx%d", &w, &h); err != nil {
		return 0, 0
	}
	return w, h
}

// --- Ideogram API types ---

type ideogramRequest struct {
	ImageRequest ideogramImageRequest `json:"image_request"`
}

type ideogramImageRequest struct {
	Prompt            string `json:"prompt"`
	AspectRatio       string `json:"aspect_ratio"`
	Model             string `json:"model"`
	MagicPromptOption string `json:"magic_prompt_option"`
	StyleType         string `json:"style_type,omitempty"`
	NegativePrompt    string `json:"negative_prompt,omitempty"`
	Seed              *int64 `json:"seed,omitempty"`
}

type ideogramResponse struct {
	Data []ideogramImage `json:"data"`
}

type ideogramImage struct {
	URL         string `json:"url"`
	Prompt      string `json:"prompt"`
	Resolution  string `json:"resolution"`
	Seed        int64  `json:"seed"`
	IsImageSafe *bool  `json:"is_image_safe"`
}
