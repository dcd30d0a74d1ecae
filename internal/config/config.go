// Package config handles engine configuration loading and management.
package config

import "runtime"

// Config holds all engine settings.
type Config struct {
	Graphics GraphicsConfig `yaml:"graphics"`
	Render   RenderConfig   `yaml:"render"`
	Audio    AudioConfig    `yaml:"audio"`
	Assets   AssetsConfig   `yaml:"assets"`
	Engine   EngineConfig   `yaml:"engine"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// GraphicsConfig holds display and projection settings.
type GraphicsConfig struct {
	Width      int     `yaml:"width"`
	Height     int     `yaml:"height"`
	Fullscreen bool    `yaml:"fullscreen"`
	VSync      bool    `yaml:"vsync"`
	FOV        float32 `yaml:"fov"` // vertical, radians
	Near       float32 `yaml:"near"`
	Far        float32 `yaml:"far"`
}

// RenderConfig holds render pipeline settings.
type RenderConfig struct {
	EditorPass    bool              `yaml:"editor_pass"`
	LODThresholds []float32         `yaml:"lod_thresholds"`
	LineCapacity  int               `yaml:"line_capacity"`
	LineColor     [4]float32        `yaml:"line_color"`
	ClearColor    [4]float32        `yaml:"clear_color"`
	Fog           FogConfig         `yaml:"fog"`
	PostProcess   PostProcessConfig `yaml:"post_process"`
}

// FogConfig holds linear fog settings.
type FogConfig struct {
	Start float32    `yaml:"start"`
	End   float32    `yaml:"end"`
	Color [4]float32 `yaml:"color"`
}

// PostProcessConfig toggles and parameterizes the post-process stages.
// Tone mapping always runs.
type PostProcessConfig struct {
	Exposure       float32 `yaml:"exposure"`
	Bloom          bool    `yaml:"bloom"`
	BloomThreshold float32 `yaml:"bloom_threshold"`
	BloomIntensity float32 `yaml:"bloom_intensity"`
	BloomBlurSize  float32 `yaml:"bloom_blur_size"`
	Blur           bool    `yaml:"blur"`
	BlurRadius     float32 `yaml:"blur_radius"`
	Monochrome     bool    `yaml:"monochrome"`
	Sepia          bool    `yaml:"sepia"`
}

// AudioConfig holds audio device and streaming settings.
type AudioConfig struct {
	SampleRate     int     `yaml:"sample_rate"`
	Channels       int     `yaml:"channels"`
	BufferCount    int     `yaml:"buffer_count"`
	MaxQueueLength int     `yaml:"max_queue_length"`
	MasterVolume   float64 `yaml:"master_volume"`
	Muted          bool    `yaml:"muted"`
}

// AssetsConfig holds asset locations.
type AssetsConfig struct {
	Root            string `yaml:"root"`
	MaterialsDir    string `yaml:"materials_dir"`
	DefaultMaterial string `yaml:"default_material"`
	Watch           bool   `yaml:"watch"`
}

// EngineConfig holds engine-wide settings.
type EngineConfig struct {
	Workers int `yaml:"workers"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Graphics: GraphicsConfig{
			Width:  1280,
			Height: 720,
			VSync:  true,
			FOV:    0.785398,
			Near:   0.5,
			Far:    1000,
		},
		Render: RenderConfig{
			LODThresholds: []float32{0.8, 0.5, 0.3, 0.1},
			LineCapacity:  1000,
			LineColor:     [4]float32{0.2, 1.0, 0.2, 1.0},
			ClearColor:    [4]float32{0.1, 0.1, 0.15, 1.0},
			Fog: FogConfig{
				Start: 100,
				End:   900,
				Color: [4]float32{0.5, 0.5, 0.55, 1.0},
			},
			PostProcess: PostProcessConfig{
				Exposure:       1.0,
				BloomThreshold: 0.8,
				BloomIntensity: 1.2,
				BloomBlurSize:  2.0,
				BlurRadius:     1.5,
			},
		},
		Audio: AudioConfig{
			SampleRate:     44100,
			Channels:       2,
			BufferCount:    3,
			MaxQueueLength: 3,
			MasterVolume:   0.8,
		},
		Assets: AssetsConfig{
			Root:            ".",
			MaterialsDir:    "game/assets/materials",
			DefaultMaterial: "engine/assets/materials/default.basic.rmat",
		},
		Engine: EngineConfig{
			Workers: runtime.NumCPU(),
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}
