// Package config handles geomtool configuration loading and management.
package config

import (
	"fmt"
	"time"

	"github.com/Faultbox/bimtiles/pkg/edges"
	"github.com/Faultbox/bimtiles/pkg/rtc"
)

// Output formats.
const (
	FormatArchive = "archive"
	FormatJSON    = "json"
)

// Config holds all tool settings.
type Config struct {
	Compression CompressionConfig `yaml:"compression"`
	RTC         RTCConfig         `yaml:"rtc"`
	Batch       BatchConfig       `yaml:"batch"`
	Output      OutputConfig      `yaml:"output"`
	Logging     LoggingConfig     `yaml:"logging"`

	// Source is the file the config was read from, empty for defaults.
	Source string `yaml:"-"`
}

// CompressionConfig holds geometry compression settings.
type CompressionConfig struct {
	EdgeThresholdDeg float64 `yaml:"edge_threshold_deg"` // Dihedral angle above which edges are kept
	QuantizeColors   bool    `yaml:"quantize_colors"`    // Keep vertex colors; false drops them
}

// RTCConfig holds relative-to-center tiling settings.
type RTCConfig struct {
	Enabled  bool    `yaml:"enabled"`
	CellSize float64 `yaml:"cell_size"`
}

// BatchConfig holds parallel compression settings.
type BatchConfig struct {
	Workers int           `yaml:"workers"` // 0 means one per CPU
	Timeout time.Duration `yaml:"timeout"` // 0 means no limit
}

// OutputConfig holds output settings.
type OutputConfig struct {
	Format           string `yaml:"format"`            // archive or json
	CompressionLevel int    `yaml:"compression_level"` // zlib level for archives
	Metrics          bool   `yaml:"metrics"`           // Print metrics after a run
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	LogFile string `yaml:"log_file"`
	JSON    bool   `yaml:"json"`
}

// Default returns a Config with sensible default values.
func Default() *Config {
	return &Config{
		Compression: CompressionConfig{
			EdgeThresholdDeg: edges.DefaultThreshold,
			QuantizeColors:   true,
		},
		RTC: RTCConfig{
			Enabled:  true,
			CellSize: rtc.DefaultCellSize,
		},
		Batch: BatchConfig{
			Workers: 0,
		},
		Output: OutputConfig{
			Format:           FormatArchive,
			CompressionLevel: 6,
		},
		Logging: LoggingConfig{
			Level:   "info",
			LogFile: "",
		},
	}
}

// Validate checks value ranges.
func (c *Config) Validate() error {
	if c.Compression.EdgeThresholdDeg < 0 || c.Compression.EdgeThresholdDeg > 180 {
		return fmt.Errorf("compression.edge_threshold_deg must be within [0, 180], got %v", c.Compression.EdgeThresholdDeg)
	}
	if c.RTC.CellSize <= 0 {
		return fmt.Errorf("rtc.cell_size must be positive, got %v", c.RTC.CellSize)
	}
	if c.Batch.Workers < 0 {
		return fmt.Errorf("batch.workers must not be negative, got %d", c.Batch.Workers)
	}
	switch c.Output.Format {
	case FormatArchive, FormatJSON:
	default:
		return fmt.Errorf("output.format must be %q or %q, got %q", FormatArchive, FormatJSON, c.Output.Format)
	}
	if c.Output.CompressionLevel < -2 || c.Output.CompressionLevel > 9 {
		return fmt.Errorf("output.compression_level must be within [-2, 9], got %d", c.Output.CompressionLevel)
	}
	return nil
}
