// Package config provides the settings shared by the command line tools.
package config

import (
	"fmt"
	"os"
	"time"

	"pcstream/pkg/cloud"
	"pcstream/pkg/stream"

	"gopkg.in/yaml.v3"
)

type Config struct {
	ChunkSize int            `yaml:"chunk_size"`
	Ranged    bool           `yaml:"ranged"` // use Range requests for http
	Timeout   string         `yaml:"timeout"`
	Rotation  RotationConfig `yaml:"rotation"`
	Color     string         `yaml:"color"` // rgb, x, y or z
	LogLevel  string         `yaml:"log_level"`
}

// RotationConfig is in radians.
type RotationConfig struct {
	Roll  float64 `yaml:"roll"`
	Pitch float64 `yaml:"pitch"`
	Yaw   float64 `yaml:"yaw"`
}

func Default() *Config {
	return &Config{
		ChunkSize: stream.DefaultChunkSize,
		Color:     "rgb",
		LogLevel:  "warn",
	}
}

// Load reads a YAML file on top of the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.ChunkSize <= 0 {
		return fmt.Errorf("chunk_size must be positive, got %d", c.ChunkSize)
	}
	switch c.Color {
	case "rgb", "x", "y", "z":
	default:
		return fmt.Errorf("color must be one of rgb, x, y, z, got %q", c.Color)
	}
	if _, err := c.TimeoutDuration(); err != nil {
		return err
	}
	return nil
}

// TimeoutDuration is zero when no timeout is set.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 0, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err)
	}
	return d, nil
}

func (c *Config) Transform() cloud.Transform {
	return cloud.NewTransform(c.Rotation.Roll, c.Rotation.Pitch, c.Rotation.Yaw)
}
