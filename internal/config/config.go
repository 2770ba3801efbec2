package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	// Radar display
	MaxRange      = 8.0 // Default radar range in meters
	AspectRatio   = 0.5 // Terminal char aspect correction (chars are ~2:1 tall)
	RingCount     = 4   // Number of concentric rings
	SweepSpeedRPM = 30  // Sweep rotations per minute (1 rotation per 2 seconds)
	SweepTrailDeg = 60.0
	TargetFPS     = 30

	// Tag management
	TagStaleAfter  = 10 * time.Second // Tags not seen for this long are drawn dimmed
	HeightStep     = 0.1              // Meters per +/- keypress
	DemoTagCount   = 6
	DemoEmitPeriod = 200 * time.Millisecond

	// App
	AppName    = "ATR-RADAR"
	AppVersion = "1.0"

	EnvPrefix  = "ATR_RADAR_"
	EnvFile    = "ATR_RADAR_CONFIG"
	DefaultLog = "atr-radar.log"
)

// MaxAllPointsCeiling bounds the all-points log for offline batch analysis.
const MaxAllPointsCeiling = 10_000_000

// DefaultConfigPaths are searched in order when no file is given.
var DefaultConfigPaths = []string{
	"atr-radar.yaml",
	"atr-radar.yml",
}

// Config is the full runtime configuration.
type Config struct {
	Reader  ReaderConfig  `koanf:"reader"`
	Store   StoreConfig   `koanf:"store"`
	Heatmap HeatmapConfig `koanf:"heatmap"`
	Stream  StreamConfig  `koanf:"stream"`
	NATS    NATSConfig    `koanf:"nats"`
	Log     LogConfig     `koanf:"log"`
}

// ReaderConfig is the mounting geometry. Both heights can be changed at runtime.
type ReaderConfig struct {
	HeightM    float64 `koanf:"height_m"`
	TagHeightM float64 `koanf:"tag_height_m"`
}

// StoreConfig bounds the point store.
type StoreConfig struct {
	MaxSeries             int `koanf:"max_series"`
	MaxPointsPerSeries    int `koanf:"max_points_per_series"`
	MaxAllPointsPerSeries int `koanf:"max_all_points_per_series"`
}

// HeatmapConfig controls heatmap binning.
type HeatmapConfig struct {
	GridSize     int     `koanf:"grid_size"`
	MeterPerCell float64 `koanf:"meter_per_cell"`
}

// StreamConfig describes the reader's WebSocket event stream.
type StreamConfig struct {
	URL       string `koanf:"url"`
	Token     string `koanf:"token"`
	Workers   int    `koanf:"workers"`
	QueueSize int    `koanf:"queue_size"`
}

// NATSConfig enables forwarding of confirmed positions. Empty URL disables it.
type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject"`
}

// LogConfig selects log level, format and file.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	File   string `koanf:"file"`
}

// Default returns the stock configuration.
func Default() *Config {
	return &Config{
		Reader: ReaderConfig{
			HeightM:    3.0,
			TagHeightM: 1.0,
		},
		Store: StoreConfig{
			MaxSeries:             50,
			MaxPointsPerSeries:    100,
			MaxAllPointsPerSeries: 1000,
		},
		Heatmap: HeatmapConfig{
			GridSize:     13,
			MeterPerCell: 1.0,
		},
		Stream: StreamConfig{
			Workers:   2,
			QueueSize: 4096,
		},
		NATS: NATSConfig{
			Subject: "atr.positions",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
			File:   DefaultLog,
		},
	}
}

// Load layers defaults, an optional YAML file and ATR_RADAR_* environment
// variables (use "__" between section and key, e.g. ATR_RADAR_STORE__MAX_SERIES).
// An explicit path that does not exist is an error; the default paths are
// optional.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// envKey maps ATR_RADAR_STORE__MAX_SERIES to store.max_series.
func envKey(s string) string {
	if s == EnvFile {
		return ""
	}
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

func findConfigFile() string {
	if p := os.Getenv(EnvFile); p != "" {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	for _, p := range DefaultConfigPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Validate checks the capacities and heatmap parameters.
func (c *Config) Validate() error {
	var errs []error
	if c.Store.MaxSeries < 1 {
		errs = append(errs, fmt.Errorf("store.max_series must be positive, got %d", c.Store.MaxSeries))
	}
	if c.Store.MaxPointsPerSeries < 1 {
		errs = append(errs, fmt.Errorf("store.max_points_per_series must be positive, got %d", c.Store.MaxPointsPerSeries))
	}
	if c.Store.MaxAllPointsPerSeries < 1 || c.Store.MaxAllPointsPerSeries > MaxAllPointsCeiling {
		errs = append(errs, fmt.Errorf("store.max_all_points_per_series must be in [1, %d], got %d",
			MaxAllPointsCeiling, c.Store.MaxAllPointsPerSeries))
	}
	if c.Heatmap.GridSize < 1 {
		errs = append(errs, fmt.Errorf("heatmap.grid_size must be positive, got %d", c.Heatmap.GridSize))
	}
	if c.Heatmap.MeterPerCell <= 0 {
		errs = append(errs, fmt.Errorf("heatmap.meter_per_cell must be positive, got %g", c.Heatmap.MeterPerCell))
	}
	if c.Stream.Workers < 1 {
		errs = append(errs, fmt.Errorf("stream.workers must be positive, got %d", c.Stream.Workers))
	}
	if c.Stream.QueueSize < 1 {
		errs = append(errs, fmt.Errorf("stream.queue_size must be positive, got %d", c.Stream.QueueSize))
	}
	return errors.Join(errs...)
}
