// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package providers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// pingTimeout bounds each provider probe during a health check.
const pingTimeout = 5 * time.Second

// Observer receives one call per provider attempt. outcome is "success",
// "failure", "rejected" (request error) or "skipped".
type Observer interface {
	ObserveProviderAttempt(provider, outcome string, d time.Duration)
}

// Attempt records what happened with one provider during Generate.
type Attempt struct {
	Provider string        `json:"provider"`
	Outcome  string        `json:"outcome"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Result is the outcome of Manager.Generate.
type Result struct {
	Image    *Image
	Attempts []Attempt
}

// Manager runs generation requests against the registry, falling back
// across providers and keeping one circuit breaker per provider.
type Manager struct {
	registry *Registry
	cfg      BreakerConfig
	observer Observer

	mu       sync.Mutex
	breakers map[string]*Breaker
}

// NewManager creates a manager over reg. observer may be nil.
func NewManager(reg *Registry, cfg BreakerConfig, observer Observer) *Manager {
	return &Manager{
		registry: reg,
		cfg:      cfg,
		observer: observer,
		breakers: make(map[string]*Breaker),
	}
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *Registry {
	return m.registry
}

func (m *Manager) breaker(name string) *Breaker {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.breakers[name]
	if !ok {
		b = NewBreaker(m.cfg)
		m.breakers[name] = b
	}
	return b
}

func (m *Manager) observe(provider, outcome string, d time.Duration) {
	if m.observer != nil {
		m.observer.ObserveProviderAttempt(provider, outcome, d)
	}
}

// candidates returns preferred (or the default) first, then every other
// provider in priority order.
func (m *Manager) candidates(preferred string) ([]Provider, error) {
	var first Provider
	if preferred != "" {
		p, ok := m.registry.Get(preferred)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, preferred)
		}
		first = p
	} else {
		p, err := m.registry.Default()
		if err != nil {
			return nil, err
		}
		first = p
	}

	out := []Provider{first}
	for _, p := range m.registry.Ordered() {
		if p.Name() != first.Name() {
			out = append(out, p)
		}
	}
	return out, nil
}

// Generate produces one image. It tries the preferred provider (or the
// default when preferred is empty), then falls back through the others.
// Providers with an open circuit or without the requested aspect ratio
// are skipped. Request errors stop the chain immediately since another
// provider would reject the same prompt. The Result is returned even on
// error so callers can log the attempts.
func (m *Manager) Generate(ctx context.Context, req Request, preferred string) (*Result, error) {
	candidates, err := m.candidates(preferred)
	if err != nil {
		return nil, err
	}

	res := &Result{}
	var lastErr error

	for _, p := range candidates {
		name := p.Name()

		if !p.Capabilities().SupportsAspectRatio(req.AspectRatio) {
			res.Attempts = append(res.Attempts, Attempt{Provider: name, Outcome: "skipped", Error: "aspect ratio not supported"})
			m.observe(name, "skipped", 0)
			continue
		}

		br := m.breaker(name)
		if err := br.Allow(); err != nil {
			res.Attempts = append(res.Attempts, Attempt{Provider: name, Outcome: "skipped", Error: err.Error()})
			m.observe(name, "skipped", 0)
			continue
		}

		if err := ctx.Err(); err != nil {
			br.Cancel()
			return res, err
		}

		start := time.Now()
		img, err := p.Generate(ctx, req)
		elapsed := time.Since(start)

		if err == nil {
			br.Success()
			if img.Provider == "" {
				img.Provider = name
			}
			if img.Model == "" {
				img.Model = p.Model()
			}
			res.Image = img
			res.Attempts = append(res.Attempts, Attempt{Provider: name, Outcome: "success", Duration: elapsed})
			m.observe(name, "success", elapsed)
			return res, nil
		}

		if ctx.Err() != nil {
			br.Cancel()
			res.Attempts = append(res.Attempts, Attempt{Provider: name, Outcome: "failure", Error: err.Error(), Duration: elapsed})
			return res, ctx.Err()
		}

		if IsRequestError(err) {
			br.Cancel()
			res.Attempts = append(res.Attempts, Attempt{Provider: name, Outcome: "rejected", Error: err.Error(), Duration: elapsed})
			m.observe(name, "rejected", elapsed)
			return res, err
		}

		br.Failure(err)
		lastErr = err
		res.Attempts = append(res.Attempts, Attempt{Provider: name, Outcome: "failure", Error: err.Error(), Duration: elapsed})
		m.observe(name, "failure", elapsed)
		slog.Warn("image provider failed, trying next",
			"provider", name,
			"error", err,
			"duration", elapsed.String(),
		)
	}

	if lastErr == nil {
		return res, fmt.Errorf("%w: every provider was skipped", ErrAllProvidersFailed)
	}
	return res, fmt.Errorf("%w: %w", ErrAllProvidersFailed, lastErr)
}

// Health describes one provider for the admin view.
type Health struct {
	Name        string     `json:"name"`
	Model       string     `json:"model"`
	Default     bool       `json:"default"`
	Status      string     `json:"status"` // healthy, degraded, open
	Circuit     string     `json:"circuit"`
	Failures    int        `json:"failures"`
	LastError   string     `json:"last_error,omitempty"`
	LastFailure *time.Time `json:"last_failure,omitempty"`
	RetryAt     *time.Time `json:"retry_at,omitempty"`
	Reachable   *bool      `json:"reachable,omitempty"`
	PingError   string     `json:"ping_error,omitempty"`
	PingMillis  int64      `json:"ping_ms,omitempty"`
	CheckedAt   time.Time  `json:"checked_at"`
}

// Status reports every provider's breaker state without network calls.
func (m *Manager) Status() []Health {
	defaultName := m.registry.DefaultName()
	now := time.Now()

	var out []Health
	for _, p := range m.registry.Ordered() {
		out = append(out, m.health(p, defaultName, now))
	}
	return out
}

func (m *Manager) health(p Provider, defaultName string, now time.Time) Health {
	snap := m.breaker(p.Name()).Snapshot()
	h := Health{
		Name:      p.Name(),
		Model:     p.Model(),
		Default:   p.Name() == defaultName,
		Circuit:   snap.State.String(),
		Failures:  snap.Failures,
		LastError: snap.LastError,
		CheckedAt: now,
	}
	if !snap.LastFailure.IsZero() {
		t := snap.LastFailure
		h.LastFailure = &t
	}
	if !snap.RetryAt.IsZero() {
		t := snap.RetryAt
		h.RetryAt = &t
	}
	h.Status = healthStatus(snap.State, snap.Failures, true)
	return h
}

func healthStatus(state State, failures int, reachable bool) string {
	switch {
	case state == StateOpen:
		return "open"
	case state == StateHalfOpen || failures > 0 || !reachable:
		return "degraded"
	default:
		return "healthy"
	}
}

// HealthCheck probes every provider that implements Pinger concurrently
// and merges the result with its breaker state. Probes never change the
// breakers.
func (m *Manager) HealthCheck(ctx context.Context) []Health {
	out := m.Status()

	g, ctx := errgroup.WithContext(ctx)
	for i := range out {
		p, ok := m.registry.Get(out[i].Name)
		if !ok {
			continue
		}
		pinger, ok := p.(Pinger)
		if !ok {
			continue
		}
		h := &out[i]
		g.Go(func() error {
			pctx, cancel := context.WithTimeout(ctx, pingTimeout)
			defer cancel()

			start := time.Now()
			err := pinger.Ping(pctx)
			h.PingMillis = time.Since(start).Milliseconds()
			reachable := err == nil
			h.Reachable = &reachable
			if err != nil {
				h.PingError = err.Error()
			}
			snap := m.breaker(h.Name).Snapshot()
			h.Status = healthStatus(snap.State, snap.Failures, reachable)
			h.CheckedAt = time.Now()
			return nil
		})
	}
	_ = g.Wait()

	return out
}

// Reset force-closes the named provider's breaker.
func (m *Manager) Reset(name string) error {
	if !m.registry.HasProvider(name) {
		return fmt.Errorf("%w: %q", ErrUnknownProvider, name)
	}
	m.breaker(name).Reset()
	slog.Info("provider circuit reset", "provider", name)
	return nil
}

// IsUnavailable reports whether err means no provider could serve the
// request (as opposed to the request itself being bad).
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrAllProvidersFailed) || errors.Is(err, ErrNoProvider)
}
