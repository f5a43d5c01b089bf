package config

import "flag"

var (
	flagConfig        = flag.String("config", "", "Path to config file")
	flagDebug         = flag.Bool("debug", false, "Enable debug logging")
	flagLogFile       = flag.String("log-file", "", "Also write logs to this file")
	flagWorkers       = flag.Int("workers", 0, "Parallel compression workers (0 = one per CPU)")
	flagEdgeThreshold = flag.Float64("edge-threshold", -1, "Edge angle threshold in degrees")
	flagCellSize      = flag.Float64("cell-size", 0, "RTC cell size")
	flagNoRTC         = flag.Bool("no-rtc", false, "Disable RTC tiling")
	flagNoColors      = flag.Bool("no-colors", false, "Drop vertex colors")
	flagFormat        = flag.String("format", "", "Output format: archive or json")
	flagMetrics       = flag.Bool("metrics", false, "Print metrics after the command")
)

// ParseFlags parses command-line flags. Call this early in main().
func ParseFlags() {
	flag.Parse()
}

// Args returns the arguments left after flag parsing.
func Args() []string {
	return flag.Args()
}

// ConfigPath returns the explicit config path if provided via --config flag.
func ConfigPath() string {
	return *flagConfig
}

// applyFlags applies CLI flag overrides to the config.
func applyFlags(cfg *Config) {
	if *flagDebug {
		cfg.Logging.Level = "debug"
	}
	if *flagLogFile != "" {
		cfg.Logging.LogFile = *flagLogFile
	}
	if *flagWorkers > 0 {
		cfg.Batch.Workers = *flagWorkers
	}
	if *flagEdgeThreshold >= 0 {
		cfg.Compression.EdgeThresholdDeg = *flagEdgeThreshold
	}
	if *flagCellSize > 0 {
		cfg.RTC.CellSize = *flagCellSize
	}
	if *flagNoRTC {
		cfg.RTC.Enabled = false
	}
	if *flagNoColors {
		cfg.Compression.QuantizeColors = false
	}
	if *flagFormat != "" {
		cfg.Output.Format = *flagFormat
	}
	if *flagMetrics {
		cfg.Output.Metrics = true
	}
}
