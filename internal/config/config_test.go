package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Graphics.Width != 1280 || cfg.Graphics.Height != 720 {
		t.Errorf("expected 1280x720, got %dx%d", cfg.Graphics.Width, cfg.Graphics.Height)
	}
	if !cfg.Graphics.VSync {
		t.Error("expected vsync to be true by default")
	}
	if cfg.Render.EditorPass {
		t.Error("expected editor pass to be disabled by default")
	}

	want := []float32{0.8, 0.5, 0.3, 0.1}
	if len(cfg.Render.LODThresholds) != len(want) {
		t.Fatalf("expected %d lod thresholds, got %d", len(want), len(cfg.Render.LODThresholds))
	}
	for i, v := range want {
		if cfg.Render.LODThresholds[i] != v {
			t.Errorf("lod threshold %d: got %f, want %f", i, cfg.Render.LODThresholds[i], v)
		}
	}

	if cfg.Render.LineCapacity != 1000 {
		t.Errorf("expected line capacity 1000, got %d", cfg.Render.LineCapacity)
	}
	if cfg.Audio.BufferCount != 3 || cfg.Audio.MaxQueueLength != 3 {
		t.Errorf("expected 3/3 audio buffers, got %d/%d", cfg.Audio.BufferCount, cfg.Audio.MaxQueueLength)
	}
	if cfg.Assets.DefaultMaterial == "" {
		t.Error("expected a default material path")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("expected log level 'info', got %s", cfg.Logging.Level)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	yamlContent := `
graphics:
  width: 1920
  height: 1080
  fullscreen: true

render:
  editor_pass: true
  lod_thresholds: [0.25, 0.75]
  line_capacity: 64
  post_process:
    bloom: true
    sepia: true

audio:
  buffer_count: 4
  max_queue_length: 2

logging:
  level: "debug"
  log_file: "engine.log"
`
	if err := os.WriteFile(configPath, []byte(yamlContent), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg := Default()
	if err := loadFromFile(cfg, configPath); err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.Graphics.Width != 1920 || cfg.Graphics.Height != 1080 {
		t.Errorf("expected 1920x1080, got %dx%d", cfg.Graphics.Width, cfg.Graphics.Height)
	}
	if !cfg.Graphics.Fullscreen {
		t.Error("expected fullscreen to be true")
	}
	if !cfg.Render.EditorPass {
		t.Error("expected editor pass to be true")
	}
	if cfg.Render.LineCapacity != 64 {
		t.Errorf("expected line capacity 64, got %d", cfg.Render.LineCapacity)
	}
	if !cfg.Render.PostProcess.Bloom || !cfg.Render.PostProcess.Sepia || cfg.Render.PostProcess.Blur {
		t.Errorf("unexpected post process toggles: %+v", cfg.Render.PostProcess)
	}
	// Untouched nested values keep their defaults.
	if cfg.Render.PostProcess.Exposure != 1.0 {
		t.Errorf("expected default exposure, got %f", cfg.Render.PostProcess.Exposure)
	}
	if cfg.Audio.BufferCount != 4 || cfg.Audio.MaxQueueLength != 2 {
		t.Errorf("expected 4/2 audio buffers, got %d/%d", cfg.Audio.BufferCount, cfg.Audio.MaxQueueLength)
	}
	if cfg.Logging.LogFile != "engine.log" {
		t.Errorf("expected log file 'engine.log', got %s", cfg.Logging.LogFile)
	}

	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if cfg.Render.LODThresholds[0] != 0.75 || cfg.Render.LODThresholds[1] != 0.25 {
		t.Errorf("expected thresholds sorted descending, got %v", cfg.Render.LODThresholds)
	}
}

func TestLoadFromFileInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	if err := os.WriteFile(configPath, []byte("graphics:\n  width: wide\n  [broken"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	if err := loadFromFile(Default(), configPath); err == nil {
		t.Error("expected error loading invalid YAML, got nil")
	}
}

func TestLoadFromFileMissing(t *testing.T) {
	if err := loadFromFile(Default(), "/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error loading missing file, got nil")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name:    "zero width",
			mutate:  func(c *Config) { c.Graphics.Width = 0 },
			wantErr: true,
		},
		{
			name:    "far before near",
			mutate:  func(c *Config) { c.Graphics.Far = 0.1 },
			wantErr: true,
		},
		{
			name:    "full detail threshold is implicit",
			mutate:  func(c *Config) { c.Render.LODThresholds = []float32{1.0} },
			wantErr: true,
		},
		{
			name:   "queue clamped to buffer count",
			mutate: func(c *Config) { c.Audio.BufferCount = 2; c.Audio.MaxQueueLength = 8 },
			check: func(t *testing.T, c *Config) {
				if c.Audio.MaxQueueLength != 2 {
					t.Errorf("expected queue length 2, got %d", c.Audio.MaxQueueLength)
				}
			},
		},
		{
			name:   "workers at least one",
			mutate: func(c *Config) { c.Engine.Workers = 0 },
			check: func(t *testing.T, c *Config) {
				if c.Engine.Workers != 1 {
					t.Errorf("expected 1 worker, got %d", c.Engine.Workers)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestConfigDir(t *testing.T) {
	dir := ConfigDir()
	if dir == "" {
		t.Error("ConfigDir returned empty string")
	}
}

func TestApplyFlags(t *testing.T) {
	*flagDebug = true
	*flagEditor = true
	*flagWidth = 2560
	*flagAssets = "/srv/game"
	defer func() {
		*flagDebug = false
		*flagEditor = false
		*flagWidth = 0
		*flagAssets = ""
	}()

	cfg := Default()
	applyFlags(cfg)

	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level 'debug', got %s", cfg.Logging.Level)
	}
	if !cfg.Render.EditorPass {
		t.Error("expected editor pass enabled by flag")
	}
	if cfg.Graphics.Width != 2560 {
		t.Errorf("expected width 2560, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 720 {
		t.Errorf("expected default height, got %d", cfg.Graphics.Height)
	}
	if cfg.Assets.Root != "/srv/game" {
		t.Errorf("expected asset root /srv/game, got %s", cfg.Assets.Root)
	}
}

func TestLoadPriority(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("graphics:\n  width: 1600\n  height: 900\n"), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	*flagConfig = configPath
	*flagWidth = 1920
	defer func() {
		*flagConfig = ""
		*flagWidth = 0
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Graphics.Width != 1920 {
		t.Errorf("expected width 1920 from flag, got %d", cfg.Graphics.Width)
	}
	if cfg.Graphics.Height != 900 {
		t.Errorf("expected height 900 from file, got %d", cfg.Graphics.Height)
	}
}

func TestSaveTo(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg := Default()
	cfg.Render.PostProcess.Monochrome = true
	if err := cfg.SaveTo(path); err != nil {
		t.Fatalf("SaveTo: %v", err)
	}

	loaded := Default()
	if err := loadFromFile(loaded, path); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if !loaded.Render.PostProcess.Monochrome {
		t.Error("expected monochrome to survive save/load")
	}
}
