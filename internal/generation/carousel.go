// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"eventcraft/internal/models"
	"eventcraft/internal/prompt"
	"eventcraft/internal/providers"
)

// Carousel size limits.
const (
	MinSlides = 2
	MaxSlides = 10
)

// CarouselRequest asks for a set of slides sharing one visual identity.
type CarouselRequest struct {
	prompt.Brief
	Slides     int      `json:"slides"`                // defaults to len(SlideTexts)
	SlideTexts []string `json:"slide_texts,omitempty"` // per-slide overlay text
	Provider   string   `json:"provider,omitempty"`
	Watermark  bool     `json:"watermark,omitempty"`
	Seed       int64    `json:"seed,omitempty"` // shared by every slide; random when 0
}

// CarouselResult is a completed carousel.
type CarouselResult struct {
	Carousel *models.Carousel            `json:"carousel"`
	Balance  int                         `json:"balance"`
	Attempts map[int][]providers.Attempt `json:"attempts"` // by slide index
}

// validate normalises the request and fills Slides.
func (r *CarouselRequest) validate() error {
	if err := r.Brief.Validate(); err != nil {
		return err
	}
	if r.Slides == 0 {
		r.Slides = len(r.SlideTexts)
	}
	if r.Slides < MinSlides || r.Slides > MaxSlides {
		return fmt.Errorf("a carousel has %d to %d slides, got %d", MinSlides, MaxSlides, r.Slides)
	}
	if len(r.SlideTexts) > r.Slides {
		return fmt.Errorf("%d slide texts for %d slides", len(r.SlideTexts), r.Slides)
	}
	for i := range r.SlideTexts {
		r.SlideTexts[i] = strings.TrimSpace(r.SlideTexts[i])
	}
	return nil
}

// slideBrief returns the brief of slide i: the shared brief with that
// slide's overlay text.
func (r *CarouselRequest) slideBrief(i int) prompt.Brief {
	b := r.Brief
	if i < len(r.SlideTexts) && r.SlideTexts[i] != "" {
		b.OverlayText = r.SlideTexts[i]
	}
	return b
}

// carouselKey is the object key of one slide, without extension.
func carouselKey(userID, carouselID uuid.UUID, index int) string {
	return fmt.Sprintf("carousels/%s/%s/%02d", userID, carouselID, index+1)
}

// GenerateCarousel generates every slide concurrently and stores the
// carousel only if all of them succeed. The whole cost is checked up
// front and debited once. On failure the uploaded slides are deleted and
// a failed carousel is recorded without charge.
func (s *Service) GenerateCarousel(ctx context.Context, user *models.User, req CarouselRequest) (*CarouselResult, error) {
	if err := req.validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	if s.objects == nil {
		return nil, ErrStorageUnavailable
	}

	n := req.Slides
	prompts := make([]string, n)
	for i := range prompts {
		p, err := req.slideBrief(i).SlidePrompt(i, n)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		prompts[i] = p
	}
	cost := s.opts.Cost * n
	if err := s.checkBalance(ctx, user.ID, cost); err != nil {
		return nil, err
	}

	if err := s.screen(ctx, strings.Join(prompts, "\n")); err != nil {
		return nil, err
	}

	seed := req.Seed
	if seed == 0 {
		seed = rand.Int64N(1 << 31)
	}
	watermark := s.watermarkText(user, req.Watermark)

	c := &models.Carousel{
		ID:         uuid.New(),
		UserID:     user.ID,
		Title:      req.Title,
		SlideCount: n,
		Cost:       cost,
		Slides:     make([]models.Generation, n),
	}

	keys := make([]string, n)
	attempts := make([][]providers.Attempt, n)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.MaxParallel)
	for i := range n {
		g.Go(func() error {
			b := req.slideBrief(i)
			preq := providers.Request{
				Prompt:         prompts[i],
				NegativePrompt: b.Negative(),
				AspectRatio:    b.AspectRatio,
				Style:          b.Style,
				Seed:           seed,
			}
			out, tried, err := s.produce(gctx, preq, req.Provider, watermark, carouselKey(user.ID, c.ID, i))
			attempts[i] = tried
			if err != nil {
				return fmt.Errorf("slide %d: %w", i+1, err)
			}
			keys[i] = out.upload.Key

			slide := &c.Slides[i]
			slide.ID = uuid.New()
			slide.UserID = user.ID
			slide.Prompt = prompts[i]
			slide.EventType = b.EventType
			slide.Style = b.Style
			slide.AspectRatio = b.AspectRatio
			out.apply(slide)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.cleanup(ctx, keys...)
		if errors.Is(err, providers.ErrUnknownProvider) {
			return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
		}
		s.recordFailedCarousel(ctx, c, err)
		return nil, err
	}

	balance, err := s.gens.CompleteCarousel(ctx, c)
	if err != nil {
		s.cleanup(ctx, keys...)
		s.rec.RecordGeneration("carousel", models.StatusFailed, 0)
		return nil, translate(err)
	}
	s.rec.RecordGeneration("carousel", models.StatusCompleted, cost)

	byIndex := make(map[int][]providers.Attempt, n)
	for i, a := range attempts {
		byIndex[i] = a
	}
	slog.Info("carousel generated",
		"carousel_id", c.ID,
		"user_id", user.ID,
		"slides", n,
		"cost", cost,
		"balance", balance,
	)
	return &CarouselResult{Carousel: c, Balance: balance, Attempts: byIndex}, nil
}

// recordFailedCarousel stores a failed carousel detached from ctx.
func (s *Service) recordFailedCarousel(ctx context.Context, c *models.Carousel, cause error) {
	c.Slides = nil
	if err := s.gens.RecordFailedCarousel(context.WithoutCancel(ctx), c); err != nil {
		slog.Error("record failed carousel", "carousel_id", c.ID, "error", err)
	}
	s.rec.RecordGeneration("carousel", models.StatusFailed, 0)
	slog.Warn("carousel failed", "carousel_id", c.ID, "user_id", c.UserID, "error", cause)
}
