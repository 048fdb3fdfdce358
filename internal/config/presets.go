package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// MappingPreset is a known export layout: the header row a timing vendor
// produces and the column mapping that goes with it.
type MappingPreset struct {
	Name      string         `yaml:"name"`
	Separator string         `yaml:"separator"`
	Headers   []string       `yaml:"headers"`
	Mapping   map[string]int `yaml:"mapping"`
}

// MappingPresets is the content of the presets file.
type MappingPresets struct {
	Presets []MappingPreset `yaml:"presets"`
}

// LoadMappingPresets reads presets from a YAML file.
// An empty path yields an empty set.
func LoadMappingPresets(path string) (*MappingPresets, error) {
	if path == "" {
		return &MappingPresets{}, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read presets: %w", err)
	}
	return ParseMappingPresets(data)
}

// ParseMappingPresets decodes and validates presets from YAML.
func ParseMappingPresets(data []byte) (*MappingPresets, error) {
	var p MappingPresets
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("unmarshal presets: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks names are unique and every mapping points inside the header row.
func (p *MappingPresets) Validate() error {
	var errs []string
	seen := make(map[string]bool, len(p.Presets))

	for i, preset := range p.Presets {
		name := strings.TrimSpace(preset.Name)
		if name == "" {
			errs = append(errs, fmt.Sprintf("preset %d has no name", i))
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			errs = append(errs, fmt.Sprintf("preset %q is defined twice", name))
		}
		seen[key] = true

		if len(preset.Headers) == 0 {
			errs = append(errs, fmt.Sprintf("preset %q has no headers", name))
		}
		if len(preset.Mapping) == 0 {
			errs = append(errs, fmt.Sprintf("preset %q has no mapping", name))
		}
		for field, idx := range preset.Mapping {
			if idx < 0 || idx >= len(preset.Headers) {
				errs = append(errs, fmt.Sprintf("preset %q maps %s to column %d outside its %d headers",
					name, field, idx, len(preset.Headers)))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid presets:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
