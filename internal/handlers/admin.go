// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package handlers

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"eventcraft/internal/middleware"
	"eventcraft/internal/models"
	"eventcraft/internal/providers"
)

// healthKey is the provider health cache entry.
const healthKey = "all"

// Stats handles GET /api/v1/admin/stats?days=N (default 30, max 365).
// Results are cached briefly in Valkey.
func (a *API) Stats(w http.ResponseWriter, r *http.Request) {
	days, err := queryInt(r, "days", 30)
	if err != nil || days < 1 || days > 365 {
		writeError(w, http.StatusBadRequest, "days must be between 1 and 365")
		return
	}

	key := fmt.Sprintf("overview:%d", days)
	var cached models.Stats
	if a.statsCache.Get(r.Context(), key, &cached) {
		writeJSON(w, http.StatusOK, &cached)
		return
	}

	st, err := a.stats.Overview(r.Context(), days)
	if err != nil {
		fail(w, r, err)
		return
	}
	a.statsCache.Set(r.Context(), key, st)
	writeJSON(w, http.StatusOK, st)
}

// healthView is the body of GET /api/v1/admin/providers/health.
type healthView struct {
	Default   string             `json:"default"`
	Providers []providers.Health `json:"providers"`
}

// ProvidersHealth handles GET /api/v1/admin/providers/health. Providers
// are pinged at most every 30 seconds; ?refresh=1 forces a new check.
func (a *API) ProvidersHealth(w http.ResponseWriter, r *http.Request) {
	refresh := r.URL.Query().Get("refresh")
	if refresh != "1" && refresh != "true" {
		var cached healthView
		if a.healthCache.Get(r.Context(), healthKey, &cached) {
			writeJSON(w, http.StatusOK, &cached)
			return
		}
	}

	view := healthView{
		Default:   a.providers.Registry().DefaultName(),
		Providers: a.providers.HealthCheck(r.Context()),
	}
	if view.Providers == nil {
		view.Providers = []providers.Health{}
	}
	a.healthCache.Set(r.Context(), healthKey, view)
	writeJSON(w, http.StatusOK, view)
}

// SetDefaultProvider handles POST /api/v1/admin/providers/default with
// body {"name": "..."}.
func (a *API) SetDefaultProvider(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name string `json:"name"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	name := strings.TrimSpace(body.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	if err := a.providers.Registry().SetDefault(name); err != nil {
		if errors.Is(err, providers.ErrUnknownProvider) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		fail(w, r, err)
		return
	}
	a.healthCache.Delete(r.Context(), healthKey)

	slog.Info("default provider changed", "provider", name, "by", adminEmail(r))
	writeJSON(w, http.StatusOK, map[string]string{"default": name})
}

// ResetProvider handles POST /api/v1/admin/providers/{name}/reset. It
// closes the provider's circuit and returns its state.
func (a *API) ResetProvider(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if err := a.providers.Reset(name); err != nil {
		if errors.Is(err, providers.ErrUnknownProvider) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		fail(w, r, err)
		return
	}
	a.healthCache.Delete(r.Context(), healthKey)

	slog.Info("provider circuit reset by admin", "provider", name, "by", adminEmail(r))
	for _, h := range a.providers.Status() {
		if h.Name == name {
			writeJSON(w, http.StatusOK, h)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name})
}

// grantView is the body of a successful credit grant.
type grantView struct {
	UserID  string `json:"user_id"`
	Granted int    `json:"granted"`
	Balance int    `json:"balance"`
}

// GrantCredits handles POST /api/v1/admin/users/{id}/credits with body
// {"amount": N, "reason": "..."}.
func (a *API) GrantCredits(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, chi.URLParam(r, "id"))
	if !ok {
		return
	}

	var body struct {
		Amount int    `json:"amount"`
		Reason string `json:"reason"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if body.Amount <= 0 {
		writeError(w, http.StatusBadRequest, "amount must be positive")
		return
	}

	balance, err := a.credits.Grant(r.Context(), id, body.Amount, strings.TrimSpace(body.Reason))
	if err != nil {
		fail(w, r, err)
		return
	}

	slog.Info("credits granted", "user_id", id, "amount", body.Amount, "balance", balance, "by", adminEmail(r))
	writeJSON(w, http.StatusOK, grantView{UserID: id.String(), Granted: body.Amount, Balance: balance})
}

// adminEmail names the acting admin in audit logs.
func adminEmail(r *http.Request) string {
	if u := middleware.UserFromCtx(r.Context()); u != nil {
		return u.Email
	}
	return ""
}
