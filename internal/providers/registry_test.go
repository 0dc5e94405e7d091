// Copyright (c) 2026 Madalin Gabriel Ignisca <hi@madalin.me>
// Copyright (c) 2026 Vlah Software House SRL <contact@vlah.sh>
// All rights reserved. See LICENSE for details.

package providers

import (
	"errors"
	"testing"
)

func TestNewRegistry_SkipsProvidersWithoutKeys(t *testing.T) {
	reg := NewRegistry("ideogram", DefaultCatalog(), Credentials{FalKey: "fal"}, 0)

	if reg.HasProvider("ideogram") {
		t.Error("ideogram should be skipped without a key")
	}
	if reg.HasProvider("huggingface") {
		t.Error("huggingface should be skipped without a token")
	}
	want := []string{"fal-qwen", "fal-ideogram"}
	if got := reg.Available(); !equalStrings(got, want) {
		t.Errorf("Available: got %v, want %v", got, want)
	}
}

func TestNewRegistry_AllConfigured(t *testing.T) {
	reg := NewRegistry("fal-qwen", DefaultCatalog(), Credentials{
		IdeogramKey:      "i",
		FalKey:           "f",
		HuggingFaceToken: "h",
	}, 1)

	want := []string{"ideogram", "fal-qwen", "fal-ideogram", "huggingface"}
	if got := reg.Available(); !equalStrings(got, want) {
		t.Errorf("Available: got %v, want %v", got, want)
	}

	p, err := reg.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if p.Name() != "fal-qwen" || p.Model() != "fal-ai/qwen-image" {
		t.Errorf("Default: got %s/%s", p.Name(), p.Model())
	}
	if _, ok := p.(Pinger); !ok {
		t.Error("fal provider should implement Pinger")
	}
}

func TestNewRegistry_DisabledEntry(t *testing.T) {
	catalog := DefaultCatalog()
	catalog[0].Disabled = true
	reg := NewRegistry("ideogram", catalog, Credentials{IdeogramKey: "i"}, 0)

	if reg.HasProvider("ideogram") {
		t.Error("disabled entry should not be registered")
	}
	if _, err := reg.Default(); !errors.Is(err, ErrNoProvider) {
		t.Errorf("Default with no providers: got %v, want ErrNoProvider", err)
	}
	if got := reg.DefaultName(); got != "ideogram" {
		t.Errorf("DefaultName with no providers: got %q, want configured name", got)
	}
}

func TestRegistry_DefaultFallsBackToPriority(t *testing.T) {
	reg := NewRegistry("ideogram", nil, Credentials{}, 0)
	reg.Register(&fakeProvider{name: "late"}, 50)
	reg.Register(&fakeProvider{name: "early"}, 5)

	p, err := reg.Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if p.Name() != "early" {
		t.Errorf("Default: got %q, want early", p.Name())
	}
	if got := reg.DefaultName(); got != "early" {
		t.Errorf("DefaultName: got %q, want early", got)
	}
}

func TestRegistry_SetDefault(t *testing.T) {
	reg := NewRegistry("a", nil, Credentials{}, 0)
	reg.Register(&fakeProvider{name: "a"}, 1)
	reg.Register(&fakeProvider{name: "b"}, 2)

	if err := reg.SetDefault("b"); err != nil {
		t.Fatalf("SetDefault: %v", err)
	}
	if got := reg.DefaultName(); got != "b" {
		t.Errorf("DefaultName: got %q, want b", got)
	}

	err := reg.SetDefault("missing")
	if !errors.Is(err, ErrUnknownProvider) {
		t.Errorf("SetDefault(missing): got %v, want ErrUnknownProvider", err)
	}
	if got := reg.DefaultName(); got != "b" {
		t.Errorf("failed SetDefault should keep b, got %q", got)
	}
}

func TestRegistry_OrderedTiesByName(t *testing.T) {
	reg := NewRegistry("", nil, Credentials{}, 0)
	reg.Register(&fakeProvider{name: "zeta"}, 1)
	reg.Register(&fakeProvider{name: "alpha"}, 1)

	want := []string{"alpha", "zeta"}
	if got := reg.Available(); !equalStrings(got, want) {
		t.Errorf("Available: got %v, want %v", got, want)
	}
}

func TestCapabilities_SupportsAspectRatio(t *testing.T) {
	c := Capabilities{AspectRatios: []string{"1:1"}}
	if !c.SupportsAspectRatio("") || !c.SupportsAspectRatio("1:1") {
		t.Error("empty and listed ratios should be supported")
	}
	if c.SupportsAspectRatio("16:9") {
		t.Error("unlisted ratio should not be supported")
	}
	if !(Capabilities{}).SupportsAspectRatio("2:3") {
		t.Error("empty list means every ratio")
	}
}

func TestDimensions(t *testing.T) {
	for _, ratio := range AllAspectRatios {
		w, h := Dimensions(ratio)
		if w%64 != 0 || h%64 != 0 {
			t.Errorf("%s: %dx%d not multiples of 64", ratio, w, h)
		}
	}
	if w, h := Dimensions("bogus"); w != 1024 || h != 1024 {
		t.Errorf("unknown ratio: got %dx%d, want square", w, h)
	}
}
