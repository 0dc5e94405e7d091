package providers

import (
	"context"
	"fmt"
	"strings"
)

// falProvider implements the Provider interface for models hosted on
// Fal.ai (POST https://fal.run/<model>). The same client serves Qwen-Image
// and Ideogram v3; they differ in how image size and style are passed.
type falProvider struct {
	name    string
	model   string
	apiKey  string
	baseURL string
	http    *httpClient
}

// newFal creates a Fal.ai provider from a catalog definition.
func newFal(def Definition, apiKey string, rps float64) *falProvider {
	if def.Model == "" {
		def.Model = "fal-ai/qwen-image"
	}
	if def.BaseURL == "" {
		def.BaseURL = "https://fal.run"
	}
	return &falProvider{
		name:    def.Name,
		model:   def.Model,
		apiKey:  apiKey,
		baseURL: strings.TrimRight(def.BaseURL, "/"),
		http:    newHTTPClient(def.Name, def.Timeout, rps),
	}
}

func (p *falProvider) Name() string  { return p.name }
func (p *falProvider) Model() string { return p.model }

// isIdeogram reports whether the hosted model is Ideogram, which only
// accepts named image sizes.
func (p *falProvider) isIdeogram() bool {
	return strings.Contains(p.model, "ideogram")
}

func (p *falProvider) Capabilities() Capabilities {
	c := Capabilities{
		AspectRatios:   AllAspectRatios,
		NegativePrompt: true,
		Seed:           true,
		MaxImages:      4,
		RemoteURL:      true,
	}
	if p.isIdeogram() {
		c.AspectRatios = []string{"1:1", "9:16", "16:9"}
		c.Styles = true
	}
	return c
}

// Generate calls the hosted model synchronously and downloads the result.
func (p *falProvider) Generate(ctx context.Context, req Request) (*Image, error) {
	body := falRequest{
		Prompt:              req.Prompt,
		NegativePrompt:      req.NegativePrompt,
		NumImages:           1,
		EnableSafetyChecker: true,
	}
	if req.Seed > 0 {
		seed := req.Seed
		body.Seed = &seed
	}
	if p.isIdeogram() {
		body.ImageSize = falNamedSize(req.AspectRatio)
		body.Style = ideogramStyleType(req.Style)
	} else {
		w, h := Dimensions(req.AspectRatio)
		body.ImageSize = falImageSize{Width: w, Height: h}
		body.OutputFormat = "png"
	}

	var result falResponse
	headers := map[string]string{"Authorization": "Key " + p.apiKey}
	if err := p.http.postJSON(ctx, p.baseURL+"/"+p.model, headers, body, &result); err != nil {
		return nil, err
	}

	if len(result.Images) == 0 {
		return nil, fmt.Errorf("%s: no images returned", p.name)
	}
	if len(result.HasNSFWConcepts) > 0 && result.HasNSFWConcepts[0] {
		return nil, fmt.Errorf("%s: %w", p.name, ErrContentFiltered)
	}
	first := result.Images[0]
	if first.URL == "" {
		return nil, fmt.Errorf("%s: image has no url", p.name)
	}

	data, contentType, err := p.http.download(ctx, first.URL)
	if err != nil {
		return nil, err
	}

	return &Image{
		Data:        data,
		ContentType: contentType,
		Width:       first.Width,
		Height:      first.Height,
		Provider:    p.name,
		Model:       p.model,
		Seed:        result.Seed,
	}, nil
}

// Ping checks that the Fal host answers.
func (p *falProvider) Ping(ctx context.Context) error {
	return p.http.ping(ctx, p.baseURL, map[string]string{"Authorization": "Key " + p.apiKey})
}

// falNamedSize maps an aspect ratio to Fal's named image sizes.
func falNamedSize(ratio string) string {
	switch ratio {
	case "9:16":
		return "portrait_16_9"
	case "16:9":
		return "landscape_16_9"
	default:
		return "square_hd"
	}
}

// --- Fal API types ---

type falImageSize struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type falRequest struct {
	Prompt              string `json:"prompt"`
	NegativePrompt      string `json:"negative_prompt,omitempty"`
	ImageSize           any    `json:"image_size"` // falImageSize or a named size
	NumImages           int    `json:"num_images"`
	Seed                *int64 `json:"seed,omitempty"`
	Style               string `json:"style,omitempty"`
	OutputFormat        string `json:"output_format,omitempty"`
	EnableSafetyChecker bool   `json:"enable_safety_checker"`
}

type falResponse struct {
	Images          []falImage `json:"images"`
	Seed            int64      `json:"seed"`
	HasNSFWConcepts []bool     `json:"has_nsfw_concepts"`
}

type falImage struct {
	URL         string `json:"url"`
	Width       int    `json:"width"`
	Height      int    `json:"height"`
	ContentType string `json:"content_type"`
}
