package providers

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Provider kinds understood by NewRegistry.
const (
	KindIdeogram    = "ideogram"
	KindFal         = "fal"
	KindHuggingFace = "huggingface"
)

// Definition describes one provider entry in the catalog. Several entries
// may share a kind (two Fal-hosted models, for example).
type Definition struct {
	Name     string        `yaml:"name"`
	Kind     string        `yaml:"kind"`
	Model    string        `yaml:"model"`
	BaseURL  string        `yaml:"base_url,omitempty"`
	Priority int           `yaml:"priority"` // lower runs first during fallback
	Timeout  time.Duration `yaml:"timeout,omitempty"`
	Disabled bool          `yaml:"disabled,omitempty"`
}

type catalogFile struct {
	Providers []Definition `yaml:"providers"`
}

// DefaultCatalog returns the built-in provider list.
func DefaultCatalog() []Definition {
	return []Definition{
		{Name: "ideogram", Kind: KindIdeogram, Model: "V_2", Priority: 10},
		{Name: "fal-qwen", Kind: KindFal, Model: "fal-ai/qwen-image", Priority: 20},
		{Name: "fal-ideogram", Kind: KindFal, Model: "fal-ai/ideogram/v3", Priority: 30},
		{Name: "huggingface", Kind: KindHuggingFace, Model: "black-forest-labs/FLUX.1-schnell", Priority: 40},
	}
}

// LoadCatalog reads a YAML catalog file. An empty path returns the
// built-in catalog.
func LoadCatalog(path string) ([]Definition, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read provider catalog: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog decodes and validates a YAML catalog.
//
//	providers:
//	  - name: fal-qwen
//	    kind: fal
//	    model: fal-ai/qwen-image
//	    priority: 10
//	    timeout: 90s
func ParseCatalog(data []byte) ([]Definition, error) {
	var f catalogFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse provider catalog: %w", err)
	}
	if len(f.Providers) == 0 {
		return nil, fmt.Errorf("provider catalog is empty")
	}

	seen := make(map[string]bool, len(f.Providers))
	for i, d := range f.Providers {
		if d.Name == "" {
			return nil, fmt.Errorf("provider catalog entry %d: name is required", i)
		}
		if seen[d.Name] {
			return nil, fmt.Errorf("provider catalog: duplicate name %q", d.Name)
		}
		seen[d.Name] = true
		switch d.Kind {
		case KindIdeogram, KindFal, KindHuggingFace:
		default:
			return nil, fmt.Errorf("provider catalog entry %q: unknown kind %q", d.Name, d.Kind)
		}
	}
	return f.Providers, nil
}
