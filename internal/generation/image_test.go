// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"eventcraft/internal/models"
	"eventcraft/internal/moderation"
	"eventcraft/internal/prompt"
	"eventcraft/internal/providers"
	"eventcraft/internal/store"
)

func concertRequest() ImageRequest {
	return ImageRequest{Brief: prompt.Brief{
		EventType:   "Concert",
		Title:       "Summer Nights",
		Style:       "neon",
		AspectRatio: "portrait",
	}}
}

func TestGenerateImage_Success(t *testing.T) {
	h := newHarness(t, Options{Cost: 2})
	user := h.user(models.PlanPro, 5)

	req := concertRequest()
	req.Seed = 42
	req.Provider = "fal-qwen"
	res, err := h.svc.GenerateImage(context.Background(), user, req)
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}

	g := res.Generation
	if res.Balance != 3 || h.store.balances[user.ID] != 3 {
		t.Errorf("balance: got %d (store %d), want 3", res.Balance, h.store.balances[user.ID])
	}
	if g.Status != models.StatusCompleted || g.Cost != 2 || g.Kind != models.KindImage {
		t.Errorf("generation: %+v", g)
	}
	if g.AspectRatio != "4:5" || g.Style != "neon" || g.EventType != "Concert" {
		t.Errorf("normalised brief not recorded: %+v", g)
	}
	wantKey := fmt.Sprintf("generations/%s/%s-summer-nights.webp", user.ID, g.ID)
	if g.S3Key != wantKey || !strings.HasSuffix(g.URL, wantKey) {
		t.Errorf("key: got %q, want %q", g.S3Key, wantKey)
	}
	if g.Provider != "ideogram" || g.Model != "V_2" {
		t.Errorf("provider: %q %q", g.Provider, g.Model)
	}
	if g.Width != 200 || g.Height != 120 {
		t.Errorf("dimensions from probe: %dx%d", g.Width, g.Height)
	}
	if g.Watermarked {
		t.Error("pro users are not watermarked by default")
	}
	if g.CompressionRatio() != 0.25 {
		t.Errorf("compression ratio: got %v", g.CompressionRatio())
	}

	call := h.gen.calls[0]
	if call.Seed != 42 || call.AspectRatio != "4:5" || call.Style != "neon" {
		t.Errorf("provider request: %+v", call)
	}
	if !strings.Contains(call.Prompt, `"Summer Nights"`) || !strings.Contains(call.NegativePrompt, "blurry") {
		t.Errorf("prompt: %q / %q", call.Prompt, call.NegativePrompt)
	}
	if h.gen.pref[0] != "fal-qwen" {
		t.Errorf("preferred provider: got %q", h.gen.pref[0])
	}
	if len(res.Attempts) != 1 || res.Upload == nil || !res.Upload.Converted {
		t.Errorf("result extras: %+v", res)
	}
	if h.rec.spent != 2 || h.rec.uploads != 1 || h.rec.outcomes[0] != "image/completed" {
		t.Errorf("metrics: %+v", h.rec)
	}
}

func TestGenerateImage_WatermarksFreePlan(t *testing.T) {
	h := newHarness(t, Options{Cost: 1, WatermarkText: "eventcraft.app"})
	user := h.user(models.PlanFree, 1)

	res, err := h.svc.GenerateImage(context.Background(), user, concertRequest())
	if err != nil {
		t.Fatalf("GenerateImage: %v", err)
	}
	if !res.Generation.Watermarked {
		t.Error("free plan image should be watermarked")
	}
	for _, ct := range h.objects.uploaded {
		if ct != "image/png" {
			t.Errorf("watermarked upload content type: got %q, want image/png", ct)
		}
	}
}

func TestWatermarkText(t *testing.T) {
	free := &models.User{Plan: models.PlanFree}
	pro := &models.User{Plan: models.PlanPro}

	tests := []struct {
		name       string
		configured string
		user       *models.User
		requested  bool
		want       string
	}{
		{name: "free plan with text", configured: "ec", user: free, want: "ec"},
		{name: "free plan without text", user: free, want: ""},
		{name: "pro plan", configured: "ec", user: pro, want: ""},
		{name: "pro plan requested", configured: "ec", user: pro, requested: true, want: "ec"},
		{name: "requested without text", user: pro, requested: true, want: DefaultWatermark},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(Deps{}, Options{WatermarkText: tt.configured})
			if got := s.watermarkText(tt.user, tt.requested); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGenerateImage_InvalidBrief(t *testing.T) {
	h := newHarness(t, Options{Cost: 1})
	user := h.user(models.PlanPro, 5)

	_, err := h.svc.GenerateImage(context.Background(), user, ImageRequest{Brief: prompt.Brief{AspectRatio: "5:7", Title: "x"}})
	if !errors.Is(err, ErrInvalidInput) || !errors.Is(err, prompt.ErrInvalidBrief) {
		t.Fatalf("expected ErrInvalidInput wrapping ErrInvalidBrief, got %v", err)
	}
	if h.gen.callCount() != 0 {
		t.Error("provider must not be called for an invalid brief")
	}
}

func TestGenerateImage_StorageUnavailable(t *testing.T) {
	h := newHarness(t, Options{Cost: 1})
	user := h.user(models.PlanPro, 5)
	svc := New(Deps{Generations: h.store, Balances: h.store, Generator: h.gen}, Options{Cost: 1})

	if _, err := svc.GenerateImage(context.Background(), user, concertRequest()); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if h.gen.callCount() != 0 {
		t.Error("provider must not be called without storage")
	}
}

func TestGenerateImage_InsufficientCreditsUpFront(t *testing.T) {
	h := newHarness(t, Options{Cost: 3})
	user := h.user(models.PlanPro, 2)

	_, err := h.svc.GenerateImage(context.Background(), user, concertRequest())
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	var ce *CreditError
	if !errors.As(err, &ce) || ce.Required != 3 || ce.Balance != 2 {
		t.Errorf("credit error details: %+v", ce)
	}
	if h.gen.callCount() != 0 {
		t.Error("provider must not be called without credits")
	}
}

func TestGenerateImage_PromptRejected(t *testing.T) {
	h := newHarness(t, Options{Cost: 1})
	h.svc.mod = fakeModerator{flag: "summer"}
	user := h.user(models.PlanPro, 5)

	_, err := h.svc.GenerateImage(context.Background(), user, concertRequest())
	if !errors.Is(err, moderation.ErrPromptRejected) {
		t.Fatalf("expected ErrPromptRejected, got %v", err)
	}
	if h.gen.callCount() != 0 {
		t.Error("provider must not be called for a rejected prompt")
	}
	if h.rec.rejections != 1 {
		t.Errorf("rejections: got %d", h.rec.rejections)
	}
}

func TestGenerateImage_ModerationOutageFailsOpen(t *testing.T) {
	h := newHarness(t, Options{Cost: 1})
	h.svc.mod = fakeModerator{err: errors.New("moderation down")}
	user := h.user(models.PlanPro, 5)

	if _, err := h.svc.GenerateImage(context.Background(), user, concertRequest()); err != nil {
		t.Fatalf("moderation outage should not block generation: %v", err)
	}
}

func TestGenerateImage_ProviderFailureRecordedWithoutCharge(t *testing.T) {
	h := newHarness(t, Options{Cost: 1})
	h.gen.fail = func(providers.Request) error {
		return fmt.Errorf("%w: %w", providers.ErrAllProvidersFailed, errProviderDown)
	}
	user := h.user(models.PlanPro, 5)

	_, err := h.svc.GenerateImage(context.Background(), user, concertRequest())
	if !errors.Is(err, providers.ErrAllProvidersFailed) {
		t.Fatalf("expected ErrAllProvidersFailed, got %v", err)
	}
	if h.store.balances[user.ID] != 5 {
		t.Errorf("balance changed: %d", h.store.balances[user.ID])
	}
	if len(h.store.failed) != 1 {
		t.Fatalf("expected one failed record, got %d", len(h.store.failed))
	}
	f := h.store.failed[0]
	if f.Status != models.StatusFailed || f.Cost != 0 || f.Error == nil || f.Provider != "ideogram" {
		t.Errorf("failed record: %+v", f)
	}
	if len(h.objects.uploaded) != 0 {
		t.Error("nothing should be uploaded")
	}
}

func TestGenerateImage_UnknownProviderIsInvalidInput(t *testing.T) {
	h := newHarness(t, Options{Cost: 1})
	h.gen.fail = func(providers.Request) error {
		return fmt.Errorf("%w: %q", providers.ErrUnknownProvider, "nope")
	}
	user := h.user(models.PlanPro, 5)

	_, err := h.svc.GenerateImage(context.Background(), user, concertRequest())
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(h.store.failed) != 0 {
		t.Error("unknown provider must not be recorded as a failed generation")
	}
}

func TestGenerateImage_UploadFailure(t *testing.T) {
	h := newHarness(t, Options{Cost: 1})
	h.objects.uploadErr = errors.New("r2 unavailable")
	user := h.user(models.PlanPro, 5)

	_, err := h.svc.GenerateImage(context.Background(), user, concertRequest())
	if err == nil || !strings.Contains(err.Error(), "upload image") {
		t.Fatalf("expected upload error, got %v", err)
	}
	if len(h.store.failed) != 1 || h.store.balances[user.ID] != 5 {
		t.Errorf("failed=%d balance=%d", len(h.store.failed), h.store.balances[user.ID])
	}
}

func TestGenerateImage_UnreadableProviderOutput(t *testing.T) {
	h := newHarness(t, Options{Cost: 1})
	h.gen.data = []byte("<html>rate limited</html>")
	user := h.user(models.PlanPro, 5)

	if _, err := h.svc.GenerateImage(context.Background(), user, concertRequest()); err == nil {
		t.Fatal("expected error for non-image output")
	}
	if len(h.store.failed) != 1 {
		t.Error("unreadable output should be recorded as failed")
	}
}

func TestGenerateImage_DebitRaceDeletesObject(t *testing.T) {
	h := newHarness(t, Options{Cost: 1})
	h.store.completeErr = store.ErrInsufficientCredits
	user := h.user(models.PlanPro, 5)

	_, err := h.svc.GenerateImage(context.Background(), user, concertRequest())
	if !errors.Is(err, ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if len(h.objects.deleted) != 1 || len(h.objects.uploaded) != 0 {
		t.Errorf("uploaded object should be deleted: deleted=%v left=%v", h.objects.deleted, h.objects.uploaded)
	}
}

func TestLastCalled(t *testing.T) {
	attempts := []providers.Attempt{
		{Provider: "a", Outcome: "failure"},
		{Provider: "b", Outcome: "skipped"},
	}
	if got := lastCalled(attempts); got != "a" {
		t.Errorf("got %q, want a", got)
	}
	if got := lastCalled(nil); got != "" {
		t.Errorf("got %q for no attempts", got)
	}
}
