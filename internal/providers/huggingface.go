package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// huggingFaceProvider implements the Provider interface using the
// HuggingFace inference router. The response body is the raw image.
type huggingFaceProvider struct {
	name    string
	model   string
	token   string
	baseURL string
	http    *httpClient
}

// newHuggingFace creates a HuggingFace provider from a catalog definition.
func newHuggingFace(def Definition, token string, rps float64) *huggingFaceProvider {
	if def.Model == "" {
		def.Model = "black-forest-labs/FLUX.1-schnell"
	}
	if def.BaseURL == "" {
		def.BaseURL = "https://router.huggingface.co/hf-inference/models"
	}
	return &huggingFaceProvider{
		name:    def.Name,
		model:   def.Model,
		token:   token,
		baseURL: strings.TrimRight(def.BaseURL, "/"),
		http:    newHTTPClient(def.Name, def.Timeout, rps),
	}
}

func (p *huggingFaceProvider) Name() string  { return p.name }
func (p *huggingFaceProvider) Model() string { return p.model }

func (p *huggingFaceProvider) Capabilities() Capabilities {
	return Capabilities{
		AspectRatios:   AllAspectRatios,
		NegativePrompt: true,
		Seed:           true,
		MaxImages:      1,
	}
}

// Generate posts the prompt and returns the image bytes from the body.
func (p *huggingFaceProvider) Generate(ctx context.Context, req Request) (*Image, error) {
	w, h := Dimensions(req.AspectRatio)
	body := hfRequest{
		Inputs: req.Prompt,
		Parameters: hfParameters{
			NegativePrompt: req.NegativePrompt,
			Width:          w,
			Height:         h,
		},
	}
	if req.Seed > 0 {
		seed := req.Seed
		body.Parameters.Seed = &seed
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s marshal: %w", p.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/"+p.model, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s request: %w", p.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/png")
	httpReq.Header.Set("Authorization", "Bearer "+p.token)

	data, header, err := p.http.do(ctx, httpReq)
	if err != nil {
		return nil, err
	}

	contentType := detectImageType(header.Get("Content-Type"), data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, fmt.Errorf("%s: expected image, got %s", p.name, contentType)
	}

	return &Image{
		Data:        data,
		ContentType: contentType,
		Width:       w,
		Height:      h,
		Provider:    p.name,
		Model:       p.model,
		Seed:        req.Seed,
	}, nil
}

// Ping checks that the inference router answers.
func (p *huggingFaceProvider) Ping(ctx context.Context) error {
	return p.http.ping(ctx, p.baseURL+"/"+p.model, map[string]string{"Authorization": "Bearer " + p.token})
}

// --- HuggingFace API types ---

type hfRequest struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	NegativePrompt string `json:"negative_prompt,omitempty"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Seed           *int64 `json:"seed,omitempty"`
}
