// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

// Package handlers implements the EventCraft JSON API. Handlers decode
// the request, call the generation service or a store, and map domain
// errors to HTTP status codes.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"eventcraft/internal/cache"
	"eventcraft/internal/generation"
	"eventcraft/internal/middleware"
	"eventcraft/internal/models"
	"eventcraft/internal/moderation"
	"eventcraft/internal/prompt"
	"eventcraft/internal/providers"
	"eventcraft/internal/store"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Cache lifetimes for the admin views.
const (
	statsTTL  = time.Minute
	healthTTL = 30 * time.Second
)

// Service is the generation pipeline as the API uses it.
type Service interface {
	GenerateImage(ctx context.Context, user *models.User, req generation.ImageRequest) (*generation.ImageResult, error)
	GenerateCarousel(ctx context.Context, user *models.User, req generation.CarouselRequest) (*generation.CarouselResult, error)
	Get(ctx context.Context, user *models.User, id uuid.UUID) (*models.Generation, error)
	GetCarousel(ctx context.Context, user *models.User, id uuid.UUID) (*models.Carousel, error)
	List(ctx context.Context, user *models.User, opts generation.ListOptions) ([]models.Generation, int, error)
	Delete(ctx context.Context, user *models.User, id uuid.UUID) error
	Cost() int
}

// Accounts reads balances.
type Accounts interface {
	Balance(ctx context.Context, id uuid.UUID) (int, error)
}

// Credits reads the ledger and grants credits.
type Credits interface {
	Ledger(ctx context.Context, userID uuid.UUID, limit int) ([]models.LedgerEntry, error)
	Grant(ctx context.Context, userID uuid.UUID, amount int, reason string) (int, error)
}

// Stats computes the admin dashboard aggregates.
type Stats interface {
	Overview(ctx context.Context, days int) (*models.Stats, error)
}

// ProviderManager exposes provider health and control.
type ProviderManager interface {
	Registry() *providers.Registry
	Status() []providers.Health
	HealthCheck(ctx context.Context) []providers.Health
	Reset(name string) error
}

// Deps groups the API's collaborators. Valkey may be nil, in which case
// the admin views are computed on every request.
type Deps struct {
	Generations Service
	Accounts    Accounts
	Credits     Credits
	Stats       Stats
	Providers   ProviderManager
	Valkey      *redis.Client
}

// API holds the dependencies for every JSON endpoint.
type API struct {
	gens      Service
	accounts  Accounts
	credits   Credits
	stats     Stats
	providers ProviderManager

	statsCache  *cache.JSONCache
	healthCache *cache.JSONCache
}

// New creates an API.
func New(deps Deps) *API {
	return &API{
		gens:        deps.Generations,
		accounts:    deps.Accounts,
		credits:     deps.Credits,
		stats:       deps.Stats,
		providers:   deps.Providers,
		statsCache:  cache.NewJSONCache(deps.Valkey, "stats:", statsTTL),
		healthCache: cache.NewJSONCache(deps.Valkey, "provider-health:", healthTTL),
	}
}

// writeJSON sends a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// writeError sends {"error": msg}.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"error": msg})
}

// decodeJSON reads a JSON body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid JSON body: %w", err)
	}
	return nil
}

// currentUser returns the authenticated user or answers 401.
func currentUser(w http.ResponseWriter, r *http.Request) (*models.User, bool) {
	user := middleware.UserFromCtx(r.Context())
	if user == nil {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return nil, false
	}
	return user, true
}

// pathID parses a UUID route parameter or answers 400.
func pathID(w http.ResponseWriter, raw string) (uuid.UUID, bool) {
	id, err := uuid.Parse(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return uuid.Nil, false
	}
	return id, true
}

// queryInt reads a non-negative integer query parameter, returning def
// when it is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%s must be a non-negative integer", name)
	}
	return n, nil
}

// statusFor maps a domain error to a status code and client message.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, generation.ErrInvalidInput), errors.Is(err, prompt.ErrInvalidBrief):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, generation.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, generation.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "not found"
	case errors.Is(err, generation.ErrInsufficientCredits):
		return http.StatusPaymentRequired, "insufficient credits"
	case errors.Is(err, moderation.ErrPromptRejected):
		return http.StatusUnprocessableEntity, err.Error()
	case errors.Is(err, providers.ErrContentFiltered):
		return http.StatusUnprocessableEntity, "the image provider's safety filter rejected the prompt"
	case providers.IsUnavailable(err):
		return http.StatusBadGateway, "image generation is temporarily unavailable"
	case providers.IsRequestError(err):
		return http.StatusBadRequest, "the image provider rejected the request"
	case errors.Is(err, generation.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "image storage is not configured"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "generation timed out"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

// fail writes the error response for err, adding the details clients can
// act on (flagged categories, required credits).
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status, msg := statusFor(err)
	body := map[string]any{"error": msg}

	var rejected *moderation.RejectedError
	if errors.As(err, &rejected) {
		body["categories"] = rejected.Categories
	}
	var credit *generation.CreditError
	if errors.As(err, &credit) {
		body["required"] = credit.Required
		body["balance"] = credit.Balance
	}

	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	writeJSON(w, status, body)
}
