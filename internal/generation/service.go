// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package generation runs the image generation pipeline: validate the
// brief, check credits, screen the prompt, call the provider manager,
// watermark, upload to object storage, and persist the result while
// debiting the user.
package generation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"eventcraft/internal/models"
	"eventcraft/internal/moderation"
	"eventcraft/internal/providers"
	"eventcraft/internal/storage"
	"eventcraft/internal/store"
)

var (
	// ErrInvalidInput wraps every validation failure.
	ErrInvalidInput = errors.New("invalid input")

	// ErrInsufficientCredits is returned when the balance does not cover
	// the cost, either up front or at debit time.
	ErrInsufficientCredits = errors.New("insufficient credits")

	// ErrNotFound is returned for missing generations and carousels.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when a user touches another user's data.
	ErrForbidden = errors.New("forbidden")

	// ErrStorageUnavailable is returned when object storage is not configured.
	ErrStorageUnavailable = errors.New("object storage is not configured")
)

// DefaultWatermark is drawn when a caller asks for a watermark and none
// is configured.
const DefaultWatermark = "EventCraft"

// Generations is the persistence the service needs.
type Generations interface {
	Complete(ctx context.Context, g *models.Generation) (int, error)
	RecordFailed(ctx context.Context, g *models.Generation, reason string) error
	CompleteCarousel(ctx context.Context, c *models.Carousel) (int, error)
	RecordFailedCarousel(ctx context.Context, c *models.Carousel) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Generation, error)
	FindCarousel(ctx context.Context, id uuid.UUID) (*models.Carousel, error)
	List(ctx context.Context, f store.ListFilter) ([]models.Generation, int, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Balances reads a user's current credit balance.
type Balances interface {
	Balance(ctx context.Context, userID uuid.UUID) (int, error)
}

// Generator produces images, normally *providers.Manager.
type Generator interface {
	Generate(ctx context.Context, req providers.Request, preferred string) (*providers.Result, error)
}

// ObjectStore stores generated images, normally *storage.Client.
type ObjectStore interface {
	UploadImage(ctx context.Context, key string, data []byte, contentType string, opts storage.ImageOptions) (*storage.UploadResult, error)
	Delete(ctx context.Context, key string) error
}

// Recorder receives pipeline metrics, normally *metrics.Collector.
type Recorder interface {
	RecordGeneration(kind, status string, cost int)
	RecordRejection()
	RecordUpload(original, stored int64, converted bool)
}

type noopRecorder struct{}

func (noopRecorder) RecordGeneration(string, string, int) {}
func (noopRecorder) RecordRejection()                     {}
func (noopRecorder) RecordUpload(int64, int64, bool)      {}

// Options tunes the pipeline.
type Options struct {
	Cost          int                  // credits per image
	Images        storage.ImageOptions // WebP conversion
	WatermarkText string               // drawn on free-plan images; empty disables it
	MaxParallel   int                  // concurrent carousel slides, default 3
}

// Deps are the collaborators of a Service. Objects, Moderator and
// Recorder may be nil.
type Deps struct {
	Generations Generations
	Balances    Balances
	Generator   Generator
	Objects     ObjectStore
	Moderator   moderation.Moderator
	Recorder    Recorder
}

// Service runs generation requests.
type Service struct {
	gens     Generations
	balances Balances
	gen      Generator
	objects  ObjectStore
	mod      moderation.Moderator
	rec      Recorder
	opts     Options
}

// New creates a Service.
func New(deps Deps, opts Options) *Service {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 3
	}
	if opts.Cost < 0 {
		opts.Cost = 0
	}
	s := &Service{
		gens:     deps.Generations,
		balances: deps.Balances,
		gen:      deps.Generator,
		objects:  deps.Objects,
		mod:      deps.Moderator,
		rec:      deps.Recorder,
		opts:     opts,
	}
	if c, ok := s.objects.(*storage.Client); ok && c == nil {
		s.objects = nil
	}
	if s.mod == nil {
		s.mod = moderation.Noop{}
	}
	if s.rec == nil {
		s.rec = noopRecorder{}
	}
	return s
}

// Cost returns the credits charged per image.
func (s *Service) Cost() int {
	return s.opts.Cost
}

// checkBalance fails with ErrInsufficientCredits when the user cannot
// pay cost.
func (s *Service) checkBalance(ctx context.Context, userID uuid.UUID, cost int) error {
	balance, err := s.balances.Balance(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	if balance < cost {
		return &CreditError{Required: cost, Balance: balance}
	}
	return nil
}

// CreditError reports how far short a balance is. It matches
// ErrInsufficientCredits.
type CreditError struct {
	Required int
	Balance  int
}

func (e *CreditError) Error() string {
	return fmt.Sprintf("insufficient credits: need %d, have %d", e.Required, e.Balance)
}

func (e *CreditError) Is(target error) bool {
	return target == ErrInsufficientCredits
}

// screen runs the prompt through moderation and counts rejections.
func (s *Service) screen(ctx context.Context, text string) error {
	err := moderation.Screen(ctx, s.mod, text)
	if errors.Is(err, moderation.ErrPromptRejected) {
		s.rec.RecordRejection()
	}
	return err
}

// watermarkText returns the text to draw for user, or "" for none.
func (s *Service) watermarkText(user *models.User, requested bool) string {
	switch {
	case s.opts.WatermarkText != "" && (requested || user.Plan == models.PlanFree):
		return s.opts.WatermarkText
	case requested:
		return DefaultWatermark
	default:
		return ""
	}
}

// cleanup deletes uploaded objects after a failed request. It uses a
// context that survives cancellation of the request.
func (s *Service) cleanup(ctx context.Context, keys ...string) {
	ctx = context.WithoutCancel(ctx)
	for _, key := range keys {
		if key == "" {
			continue
		}
		if err := s.objects.Delete(ctx, key); err != nil {
			slog.Warn("delete orphaned object", "key", key, "error", err)
		}
	}
}

// translate maps store errors to the service's sentinels.
func translate(err error) error {
	switch {
	case errors.Is(err, store.ErrInsufficientCredits):
		return ErrInsufficientCredits
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	default:
		return err
	}
}
