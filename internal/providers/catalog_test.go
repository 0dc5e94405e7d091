package providers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseCatalog(t *testing.T) {
	data := []byte(`
providers:
  - name: fal-qwen
    kind: fal
    model: fal-ai/qwen-image
    priority: 10
    timeout: 90s
  - name: hf
    kind: huggingface
    model: stabilityai/sdxl
    priority: 20
    disabled: true
`)
	defs, err := ParseCatalog(data)
	if err != nil {
		t.Fatalf("ParseCatalog: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("expected 2 definitions, got %d", len(defs))
	}
	if defs[0].Timeout != 90*time.Second {
		t.Errorf("timeout: got %v, want 90s", defs[0].Timeout)
	}
	if !defs[1].Disabled || defs[1].Model != "stabilityai/sdxl" {
		t.Errorf("second entry: %+v", defs[1])
	}
}

func TestParseCatalog_Invalid(t *testing.T) {
	tests := []struct {
		name, yaml, wantErr string
	}{
		{"empty", "providers: []", "empty"},
		{"no name", "providers:\n  - kind: fal\n", "name is required"},
		{"duplicate", "providers:\n  - {name: a, kind: fal}\n  - {name: a, kind: fal}\n", "duplicate"},
		{"bad kind", "providers:\n  - {name: a, kind: dalle}\n", "unknown kind"},
		{"bad yaml", "providers: [", "parse provider catalog"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q should contain %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestLoadCatalog(t *testing.T) {
	defs, err := LoadCatalog("")
	if err != nil || len(defs) != len(DefaultCatalog()) {
		t.Fatalf("empty path should return built-in catalog: %v", err)
	}

	path := filepath.Join(t.TempDir(), "providers.yaml")
	os.WriteFile(path, []byte("providers:\n  - {name: only, kind: ideogram, priority: 1}\n"), 0o644)

	defs, err = LoadCatalog(path)
	if err != nil {
		t.Fatalf("LoadCatalog: %v", err)
	}
	if len(defs) != 1 || defs[0].Name != "only" {
		t.Errorf("got %+v", defs)
	}

	if _, err := LoadCatalog(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}
