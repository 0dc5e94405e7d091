// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package providers

import (
	"fmt"
	"sort"
	"sync"
)

// Credentials holds the API keys and base URLs per provider kind.
// A catalog entry's own BaseURL wins over the kind-wide one.
type Credentials struct {
	IdeogramKey        string
	IdeogramBaseURL    string
	FalKey             string
	FalBaseURL         string
	HuggingFaceToken   string
	HuggingFaceBaseURL string
}

// Registry manages available image providers and the default one.
// All methods are safe for concurrent use.
type Registry struct {
	mu          sync.RWMutex
	providers   map[string]Provider
	priority    map[string]int
	defaultName string
}

// NewRegistry creates a registry and initialises a provider for every
// enabled catalog entry whose kind has credentials. Entries without keys
// are silently skipped. rps is the outbound request rate per provider.
func NewRegistry(defaultName string, catalog []Definition, creds Credentials, rps float64) *Registry {
	r := &Registry{
		providers:   make(map[string]Provider),
		priority:    make(map[string]int),
		defaultName: defaultName,
	}

	for _, def := range catalog {
		if def.Disabled {
			continue
		}
		var p Provider
		switch def.Kind {
		case KindIdeogram:
			if creds.IdeogramKey == "" {
				continue
			}
			if def.BaseURL == "" {
				def.BaseURL = creds.IdeogramBaseURL
			}
			p = newIdeogram(def, creds.IdeogramKey, rps)
		case KindFal:
			if creds.FalKey == "" {
				continue
			}
			if def.BaseURL == "" {
				def.BaseURL = creds.FalBaseURL
			}
			p = newFal(def, creds.FalKey, rps)
		case KindHuggingFace:
			if creds.HuggingFaceToken == "" {
				continue
			}
			if def.BaseURL == "" {
				def.BaseURL = creds.HuggingFaceBaseURL
			}
			p = newHuggingFace(def, creds.HuggingFaceToken, rps)
		default:
			continue
		}
		r.providers[def.Name] = p
		r.priority[def.Name] = def.Priority
	}

	return r
}

// Register adds or replaces a provider in the registry. This allows injecting
// custom providers at runtime (e.g. for testing).
func (r *Registry) Register(p Provider, priority int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.Name()] = p
	r.priority[p.Name()] = priority
}

// Get returns a provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	return p, ok
}

// HasProvider checks whether a named provider is configured and available.
func (r *Registry) HasProvider(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Default returns the default provider. When the configured default has
// no credentials, the highest-priority configured provider is used.
func (r *Registry) Default() (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.providers[r.defaultName]; ok {
		return p, nil
	}
	ordered := r.orderedLocked()
	if len(ordered) == 0 {
		return nil, ErrNoProvider
	}
	return ordered[0], nil
}

// DefaultName returns the name of the provider Default would return, or
// the configured name when nothing is available.
func (r *Registry) DefaultName() string {
	p, err := r.Default()
	if err != nil {
		r.mu.RLock()
		defer r.mu.RUnlock()
		return r.defaultName
	}
	return p.Name()
}

// SetDefault switches the default provider at runtime. Returns an error if
// the named provider has no API key configured.
func (r *Registry) SetDefault(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.providers[name]; !ok {
		return fmt.Errorf("%w: %q is not configured (no API key?)", ErrUnknownProvider, name)
	}
	r.defaultName = name
	return nil
}

// Available returns the names of all configured providers in fallback order.
func (r *Registry) Available() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ordered := r.orderedLocked()
	names := make([]string, len(ordered))
	for i, p := range ordered {
		names[i] = p.Name()
	}
	return names
}

// Ordered returns all configured providers by ascending priority, ties
// broken by name.
func (r *Registry) Ordered() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.orderedLocked()
}

func (r *Registry) orderedLocked() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := r.priority[out[i].Name()], r.priority[out[j].Name()]
		if pi != pj {
			return pi < pj
		}
		return out[i].Name() < out[j].Name()
	})
	return out
}
