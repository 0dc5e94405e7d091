// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package moderation screens image prompts through the OpenAI moderation
// endpoint before they reach an image provider.
package moderation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"
)

// ErrPromptRejected is matched by errors.Is on every *RejectedError.
var ErrPromptRejected = errors.New("moderation: prompt rejected")

// RejectedError lists the categories a prompt was flagged for.
type RejectedError struct {
	Categories []string
}

func (e *RejectedError) Error() string {
	return "prompt was flagged for: " + strings.Join(e.Categories, ", ")
}

func (e *RejectedError) Is(target error) bool {
	return target == ErrPromptRejected
}

// Result contains the outcome of a prompt safety check.
type Result struct {
	Safe       bool     // true if the prompt passes moderation
	Categories []string // flagged category names (empty when safe)
}

// Moderator checks prompts for policy violations.
type Moderator interface {
	CheckSafety(ctx context.Context, text string) (*Result, error)
}

// New returns the OpenAI moderator, or a Noop when apiKey is empty.
func New(apiKey, baseURL string) Moderator {
	if apiKey == "" {
		return Noop{}
	}
	return newOpenAIModerator(apiKey, baseURL)
}

// Noop passes every prompt.
type Noop struct{}

func (Noop) CheckSafety(context.Context, string) (*Result, error) {
	return &Result{Safe: true}, nil
}

// Screen runs text through m. A flagged prompt returns *RejectedError.
// If the moderation API itself fails the prompt is allowed, since
// providers still apply their own safety filters.
func Screen(ctx context.Context, m Moderator, text string) error {
	if m == nil {
		return nil
	}
	result, err := m.CheckSafety(ctx, text)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Warn("moderation check failed, allowing prompt", "error", err)
		return nil
	}
	if result.Safe {
		return nil
	}
	slog.Warn("prompt flagged by moderation", "categories", strings.Join(result.Categories, ", "))
	return &RejectedError{Categories: result.Categories}
}

// openAIModerator uses the OpenAI Moderation API (POST /v1/moderations),
// which is free for all OpenAI API key holders.
type openAIModerator struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

func newOpenAIModerator(apiKey, baseURL string) *openAIModerator {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &openAIModerator{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

func (m *openAIModerator) CheckSafety(ctx context.Context, text string) (*Result, error) {
	payload, err := json.Marshal(openAIModRequest{
		Model: "omni-moderation-latest",
		Input: text,
	})
	if err != nil {
		return nil, fmt.Errorf("moderation marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.baseURL+"/moderations", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("moderation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+m.apiKey)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("moderation http: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("moderation read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("moderation API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result openAIModResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("moderation unmarshal: %w", err)
	}
	if len(result.Results) == 0 || !result.Results[0].Flagged {
		return &Result{Safe: true}, nil
	}

	var flagged []string
	for cat, isFlagged := range result.Results[0].Categories {
		if isFlagged {
			flagged = append(flagged, displayCategory(cat))
		}
	}
	sort.Strings(flagged)

	return &Result{Safe: false, Categories: flagged}, nil
}

// displayCategory turns "hate/threatening" into "hate (threatening)" and
// "self_harm" into "self harm".
func displayCategory(cat string) string {
	display := cat
	if base, sub, ok := strings.Cut(cat, "/"); ok {
		display = base + " (" + sub + ")"
	}
	return strings.ReplaceAll(display, "_", " ")
}

type openAIModRequest struct {
	Model string `json:"model"`
	Input string `json:"input"`
}

type openAIModResponse struct {
	Results []openAIModResult `json:"results"`
}

type openAIModResult struct {
	Flagged    bool            `json:"flagged"`
	Categories map[string]bool `json:"categories"`
}
