// Package config loads the render job's top-level configuration: image
// dimensions, antialiasing and sample counts, bounce/transmittance limits,
// the worker address roster, and the named image buffers a render
// produces. The scene description proper (cameras, meshes, materials)
// lives in package scene.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the root render configuration document.
type Config struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`

	Antialias   int     `yaml:"antialias"`
	Samples     int     `yaml:"samples"`
	BounceLimit int     `yaml:"bounce_limit"`
	Threshold   float64 `yaml:"threshold"`

	BufferNames []string `yaml:"buffers"`

	// Output names the render's persisted artifact; the final image is
	// written to "<output>.ppm" through imageio.PPMEncoder.
	Output string `yaml:"output"`

	Workers []WorkerEntry `yaml:"workers"`

	Jobs int `yaml:"jobs"`
}

// WorkerEntry names one cluster member's network address. Worker ids are
// assigned from the roster order, 1-based.
type WorkerEntry struct {
	Addr string `yaml:"addr"`
}

// Source produces a Config, abstracting over where it's stored. YAMLSource
// is the concrete default; tests can substitute a literal Source.
type Source interface {
	Load() (*Config, error)
}

// YAMLSource loads a Config from a YAML file on disk.
type YAMLSource struct {
	Path string
}

func (s YAMLSource) Load() (*Config, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", s.Path, err)
	}

	cfg := &Config{
		Antialias:   1,
		Samples:     1,
		BounceLimit: 4,
		Threshold:   1e-3,
		Jobs:        10,
		BufferNames: []string{"r", "g", "b"},
		Output:      "render",
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", s.Path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the invariants the rest of the pipeline assumes hold.
func (c *Config) Validate() error {
	if c.Width <= 0 || c.Height <= 0 {
		return fmt.Errorf("config: width/height must be positive, got %dx%d", c.Width, c.Height)
	}
	if c.Antialias < 1 {
		return fmt.Errorf("config: antialias must be >= 1, got %d", c.Antialias)
	}
	if c.Samples < 1 {
		return fmt.Errorf("config: samples must be >= 1, got %d", c.Samples)
	}
	if len(c.Workers) == 0 {
		return fmt.Errorf("config: at least one worker address is required")
	}
	return nil
}
