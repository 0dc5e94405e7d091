// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"eventcraft/internal/imaging"
	"eventcraft/internal/models"
	"eventcraft/internal/prompt"
	"eventcraft/internal/providers"
	"eventcraft/internal/slug"
	"eventcraft/internal/storage"
)

// ImageRequest asks for one event image.
type ImageRequest struct {
	prompt.Brief
	Provider  string `json:"provider,omitempty"`  // preferred provider, default when empty
	Watermark bool   `json:"watermark,omitempty"` // force a watermark on any plan
	Seed      int64  `json:"seed,omitempty"`
}

// ImageResult is a completed image generation.
type ImageResult struct {
	Generation *models.Generation    `json:"generation"`
	Balance    int                   `json:"balance"`
	Attempts   []providers.Attempt   `json:"attempts"`
	Upload     *storage.UploadResult `json:"upload"`
}

// rendered is one generated, watermarked and uploaded image.
type rendered struct {
	image       *providers.Image
	upload      *storage.UploadResult
	width       int
	height      int
	watermarked bool
}

// produce generates one image and stores it under key. Attempts are
// returned even on error.
func (s *Service) produce(ctx context.Context, req providers.Request, preferred, watermark, key string) (*rendered, []providers.Attempt, error) {
	res, err := s.gen.Generate(ctx, req, preferred)
	var attempts []providers.Attempt
	if res != nil {
		attempts = res.Attempts
	}
	if err != nil {
		return nil, attempts, err
	}

	img := res.Image
	data := img.Data
	out := &rendered{image: img}

	if watermark != "" {
		if data, err = imaging.Watermark(data, watermark); err != nil {
			return nil, attempts, fmt.Errorf("watermark: %w", err)
		}
		out.watermarked = true
	}

	info, err := imaging.Probe(data)
	if err != nil {
		return nil, attempts, fmt.Errorf("%s returned an unreadable image: %w", img.Provider, err)
	}

	up, err := s.objects.UploadImage(ctx, key, data, info.ContentType, s.opts.Images)
	if err != nil {
		return nil, attempts, fmt.Errorf("upload image: %w", err)
	}
	s.rec.RecordUpload(up.OriginalSize, up.StoredSize, up.Converted)

	out.upload = up
	out.width, out.height = info.Width, info.Height
	if up.Width > 0 && up.Height > 0 {
		out.width, out.height = up.Width, up.Height
	}
	return out, attempts, nil
}

// apply copies the provider and storage details onto g.
func (r *rendered) apply(g *models.Generation) {
	g.Provider = r.image.Provider
	g.Model = r.image.Model
	g.S3Key = r.upload.Key
	g.URL = r.upload.URL
	g.ContentType = r.upload.ContentType
	g.Width = r.width
	g.Height = r.height
	g.OriginalBytes = r.upload.OriginalSize
	g.StoredBytes = r.upload.StoredSize
	g.Watermarked = r.watermarked
}

// imageKey is the object key of a standalone image, without extension.
// The title's slug is appended so stored objects are recognisable.
func imageKey(userID, genID uuid.UUID, title string) string {
	key := fmt.Sprintf("generations/%s/%s", userID, genID)
	if s := slug.Generate(title); s != "" {
		key += "-" + s
	}
	return key
}

// GenerateImage runs the full pipeline for one image and charges the
// user on success. Failures after validation are recorded with status
// failed and no charge.
func (s *Service) GenerateImage(ctx context.Context, user *models.User, req ImageRequest) (*ImageResult, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if s.objects == nil {
		return nil, ErrStorageUnavailable
	}

	cost := s.opts.Cost
	if err := s.checkBalance(ctx, user.ID, cost); err != nil {
		return nil, err
	}

	text := req.Build()
	if err := s.screen(ctx, text); err != nil {
		return nil, err
	}

	g := &models.Generation{
		ID:          uuid.New(),
		UserID:      user.ID,
		Kind:        models.KindImage,
		Prompt:      text,
		EventType:   req.EventType,
		Style:       req.Style,
		AspectRatio: req.AspectRatio,
		Cost:        cost,
	}

	preq := providers.Request{
		Prompt:         text,
		NegativePrompt: req.Negative(),
		AspectRatio:    req.AspectRatio,
		Style:          req.Style,
		Seed:           req.Seed,
	}
	out, attempts, err := s.produce(ctx, preq, req.Provider, s.watermarkText(user, req.Watermark), imageKey(user.ID, g.ID, req.Title))
	if err != nil {
		if errors.Is(err, providers.ErrUnknownProvider) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		s.recordFailed(ctx, g, attempts, err)
		return nil, err
	}
	out.apply(g)

	balance, err := s.gens.Complete(ctx, g)
	if err != nil {
		s.cleanup(ctx, g.S3Key)
		s.rec.RecordGeneration("image", models.StatusFailed, 0)
		return nil, translate(err)
	}
	s.rec.RecordGeneration("image", models.StatusCompleted, cost)

	slog.Info("image generated",
		"generation_id", g.ID,
		"user_id", user.ID,
		"provider", g.Provider,
		"attempts", len(attempts),
		"converted", out.upload.Converted,
		"compression_ratio", out.upload.CompressionRatio,
		"balance", balance,
	)
	return &ImageResult{Generation: g, Balance: balance, Attempts: attempts, Upload: out.upload}, nil
}

// recordFailed stores a failed generation, attributed to the last
// provider that was actually called. It runs detached from ctx so a
// cancelled request is still recorded.
func (s *Service) recordFailed(ctx context.Context, g *models.Generation, attempts []providers.Attempt, cause error) {
	g.Provider = lastCalled(attempts)
	if err := s.gens.RecordFailed(context.WithoutCancel(ctx), g, cause.Error()); err != nil {
		slog.Error("record failed generation", "generation_id", g.ID, "error", err)
	}
	s.rec.RecordGeneration(g.Kind, models.StatusFailed, 0)
	slog.Warn("generation failed", "generation_id", g.ID, "user_id", g.UserID, "error", cause)
}

// lastCalled returns the last provider in attempts that was not skipped.
func lastCalled(attempts []providers.Attempt) string {
	for i := len(attempts) - 1; i >= 0; i-- {
		if attempts[i].Outcome != "skipped" {
			return attempts[i].Provider
		}
	}
	return ""
}
