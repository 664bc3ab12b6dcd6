package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type contextKey string

const configKey contextKey = "config"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "INSTAVIDEO_"

// Config holds all application configuration
type Config struct {
	// Core settings
	WorkDir     string `yaml:"work_dir"`
	Concurrency int    `yaml:"concurrency"`

	// FFmpeg settings
	FFmpeg FFmpegConfig `yaml:"ffmpeg"`

	// Assembly defaults, overridable per command
	Assembly AssemblyConfig `yaml:"assembly"`

	Metrics MetricsConfig `yaml:"metrics"`
}

type FFmpegConfig struct {
	BinaryPath string `yaml:"binary_path"`
	// ProbePath defaults to the ffprobe next to BinaryPath.
	ProbePath string `yaml:"probe_path"`
	Threads   int    `yaml:"threads"`
	Preset    string `yaml:"preset"`
	CRF       int    `yaml:"crf"`
}

type AssemblyConfig struct {
	FrameRate       int    `yaml:"frame_rate"`
	AudioEnabled    bool   `yaml:"audio_enabled"`
	AudioPath       string `yaml:"audio_path"`
	Shuffle         bool   `yaml:"shuffle"`
	Seed            uint64 `yaml:"seed"` // 0 means unseeded
	BestEffortAudio bool   `yaml:"best_effort_audio"`
	SkipImages      bool   `yaml:"skip_images"`
	SkipVideos      bool   `yaml:"skip_videos"`
}

type MetricsConfig struct {
	// Textfile is a node_exporter textfile path; empty disables export.
	Textfile string `yaml:"textfile"`
}

var presets = map[string]bool{
	"ultrafast": true, "superfast": true, "veryfast": true, "faster": true, "fast": true,
	"medium": true, "slow": true, "slower": true, "veryslow": true, "placebo": true,
}

// Load reads configuration from file or returns defaults. A .env file in the
// working directory and INSTAVIDEO_* variables are applied on top.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		path = findConfigFile()
	}

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, err
		}
	}

	// Already-set variables win over .env.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes configuration to file
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	var errs []error
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must be >= 0, got %d", c.Concurrency))
	}
	if c.FFmpeg.Threads < 0 {
		errs = append(errs, fmt.Errorf("ffmpeg.threads must be >= 0, got %d", c.FFmpeg.Threads))
	}
	if c.FFmpeg.CRF < 0 || c.FFmpeg.CRF > 51 {
		errs = append(errs, fmt.Errorf("ffmpeg.crf must be within 0..51, got %d", c.FFmpeg.CRF))
	}
	if c.FFmpeg.Preset != "" && !presets[c.FFmpeg.Preset] {
		errs = append(errs, fmt.Errorf("ffmpeg.preset %q is not an x264 preset", c.FFmpeg.Preset))
	}
	if c.Assembly.FrameRate <= 0 {
		errs = append(errs, fmt.Errorf("assembly.frame_rate must be > 0, got %d", c.Assembly.FrameRate))
	}
	return errors.Join(errs...)
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		WorkDir:     "./work",
		Concurrency: 2,
		FFmpeg: FFmpegConfig{
			BinaryPath: "ffmpeg",
			Threads:    0,
			Preset:     "medium",
			CRF:        23,
		},
		Assembly: AssemblyConfig{
			FrameRate:    24,
			AudioEnabled: true,
		},
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = v
		}
	}
	integer := func(key string, dst *int) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = n
		return nil
	}
	boolean := func(key string, dst *bool) error {
		v, ok := lookup(EnvPrefix + key)
		if !ok {
			return nil
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s%s: %w", EnvPrefix, key, err)
		}
		*dst = b
		return nil
	}

	str("WORK_DIR", &c.WorkDir)
	str("FFMPEG_PATH", &c.FFmpeg.BinaryPath)
	str("FFPROBE_PATH", &c.FFmpeg.ProbePath)
	str("FFMPEG_PRESET", &c.FFmpeg.Preset)
	str("AUDIO_PATH", &c.Assembly.AudioPath)
	str("METRICS_TEXTFILE", &c.Metrics.Textfile)

	if v, ok := lookup(EnvPrefix + "SEED"); ok {
		seed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("%sSEED: %w", EnvPrefix, err)
		}
		c.Assembly.Seed = seed
	}

	return errors.Join(
		integer("CONCURRENCY", &c.Concurrency),
		integer("FFMPEG_THREADS", &c.FFmpeg.Threads),
		integer("FFMPEG_CRF", &c.FFmpeg.CRF),
		integer("FRAME_RATE", &c.Assembly.FrameRate),
		boolean("AUDIO_ENABLED", &c.Assembly.AudioEnabled),
		boolean("SHUFFLE", &c.Assembly.Shuffle),
		boolean("BEST_EFFORT_AUDIO", &c.Assembly.BestEffortAudio),
	)
}

func findConfigFile() string {
	candidates := []string{
		"./config.yaml",
		"./config.yml",
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates, filepath.Join(home, ".instavideo", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// WithConfig stores config in context
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey, cfg)
}

// FromContext retrieves config from context
func FromContext(ctx context.Context) *Config {
	if cfg, ok := ctx.Value(configKey).(*Config); ok {
		return cfg
	}
	return Default()
}
