package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"

	"gopkg.in/yaml.v3"
)

// Load loads configuration with priority: defaults < file < flags.
func Load() (*Config, error) {
	cfg := Default()

	configPath := ConfigPath()
	if configPath == "" {
		configPath = findConfigFile()
	}

	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", configPath, err)
		}
	}

	applyFlags(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

// Validate checks settings that would break the engine and normalizes the rest.
func (c *Config) Validate() error {
	if c.Graphics.Width <= 0 || c.Graphics.Height <= 0 {
		return fmt.Errorf("graphics size %dx%d", c.Graphics.Width, c.Graphics.Height)
	}
	if c.Graphics.Near <= 0 || c.Graphics.Far <= c.Graphics.Near {
		return fmt.Errorf("clip range [%g, %g]", c.Graphics.Near, c.Graphics.Far)
	}
	if c.Audio.BufferCount < 1 {
		return fmt.Errorf("audio buffer_count %d", c.Audio.BufferCount)
	}
	if c.Audio.MaxQueueLength < 1 || c.Audio.MaxQueueLength > c.Audio.BufferCount {
		c.Audio.MaxQueueLength = c.Audio.BufferCount
	}
	if c.Engine.Workers < 1 {
		c.Engine.Workers = 1
	}
	if c.Render.LineCapacity < 0 {
		c.Render.LineCapacity = 0
	}

	thresholds := c.Render.LODThresholds[:0:0]
	for _, t := range c.Render.LODThresholds {
		if t <= 0 || t >= 1 {
			return fmt.Errorf("lod threshold %g outside (0,1)", t)
		}
		thresholds = append(thresholds, t)
	}
	sort.Slice(thresholds, func(i, j int) bool { return thresholds[i] > thresholds[j] })
	c.Render.LODThresholds = thresholds
	return nil
}

// findConfigFile looks for config in standard locations.
func findConfigFile() string {
	candidates := []string{
		"./lodestone.yaml",
		filepath.Join(ConfigDir(), "config.yaml"),
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ConfigDir returns the OS-appropriate config directory.
func ConfigDir() string {
	switch runtime.GOOS {
	case "darwin":
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "Library", "Application Support", "Lodestone")
	case "windows":
		return filepath.Join(os.Getenv("APPDATA"), "Lodestone")
	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			return filepath.Join(xdg, "lodestone")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "lodestone")
	}
}

// loadFromFile loads config from a YAML file, merging with existing values.
func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, cfg)
}
