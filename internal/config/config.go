// Package config holds the tunable parameters of extraction and spatial
// queries, loaded from an optional YAML file over built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	"github.com/StinkyLord/cad-bom-builder/internal/logging"
	"github.com/StinkyLord/cad-bom-builder/internal/material"
)

// Properties are the names of the native properties read from objects.
type Properties struct {
	Section  string `yaml:"section"`
	Material string `yaml:"material"`
	Length   string `yaml:"length"`
}

// Sections are the parts-list section values that drive classification.
type Sections struct {
	Details        string   `yaml:"details"`
	Standard       string   `yaml:"standard"`
	OtherPurchased string   `yaml:"other_purchased"`
	Purchased      []string `yaml:"purchased"` // additional sections treated as purchased
}

type Material struct {
	DefaultGrade string `yaml:"default_grade"`
}

type Traversal struct {
	// MaxDepth bounds the assembly nesting depth; deeper subtrees are skipped.
	MaxDepth int `yaml:"max_depth"`
}

type Focus struct {
	// ReferenceSize is divided by a box's largest extent to get the view scale.
	ReferenceSize float32 `yaml:"reference_size"`
}

type Occlusion struct {
	Samples      int     `yaml:"samples"`
	Distance     float32 `yaml:"distance"`      // synthetic camera distance from the target center
	Radius       float32 `yaml:"radius"`        // point query search radius
	TailFraction float32 `yaml:"tail_fraction"` // trailing part of the ray left unsampled
	SizeFactor   float32 `yaml:"size_factor"`   // accepted hit distance in target extents
}

// Config is the full tool configuration.
type Config struct {
	Properties Properties     `yaml:"properties"`
	Sections   Sections       `yaml:"sections"`
	Material   Material       `yaml:"material"`
	Traversal  Traversal      `yaml:"traversal"`
	Focus      Focus          `yaml:"focus"`
	Occlusion  Occlusion      `yaml:"occlusion"`
	Logging    logging.Config `yaml:"logging"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Properties: Properties{
			Section:  "Раздел спецификации",
			Material: "Материал",
			Length:   "Длина",
		},
		Sections: Sections{
			Details:        "Детали",
			Standard:       "Стандартные изделия",
			OtherPurchased: "Прочие изделия",
		},
		Material:  Material{DefaultGrade: material.DefaultGrade},
		Traversal: Traversal{MaxDepth: 64},
		Focus:     Focus{ReferenceSize: 100},
		Occlusion: Occlusion{
			Samples:      100,
			Distance:     5000,
			Radius:       50,
			TailFraction: 0.01,
			SizeFactor:   2,
		},
		Logging: logging.Config{Level: "info", Format: "console"},
	}
}

// Load reads path over the defaults. An empty path yields the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read the config file %q: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("failed to parse the config file %q: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid config %q: %w", path, err)
	}
	return cfg, nil
}

// Validate rejects parameters the algorithms cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.Properties.Section == "" {
		errs = append(errs, errors.New("properties.section must be set"))
	}
	if c.Traversal.MaxDepth <= 0 {
		errs = append(errs, errors.New("traversal.max_depth must be positive"))
	}
	if c.Focus.ReferenceSize <= 0 {
		errs = append(errs, errors.New("focus.reference_size must be positive"))
	}
	o := c.Occlusion
	if o.Samples <= 0 {
		errs = append(errs, errors.New("occlusion.samples must be positive"))
	}
	if o.Distance <= 0 || o.Radius <= 0 || o.SizeFactor <= 0 {
		errs = append(errs, errors.New("occlusion distance, radius and size_factor must be positive"))
	}
	if o.TailFraction < 0 || o.TailFraction >= 1 {
		errs = append(errs, errors.New("occlusion.tail_fraction must be in [0, 1)"))
	}
	return multierr.Combine(errs...)
}

// IsPurchased reports whether section is a purchased-items section.
func (s Sections) IsPurchased(section string) bool {
	if section == "" {
		return false
	}
	if section == s.Standard || section == s.OtherPurchased {
		return true
	}
	for _, p := range s.Purchased {
		if p == section {
			return true
		}
	}
	return false
}
