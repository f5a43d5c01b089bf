// geomtool is a CLI utility for compressing model geometry into XGC archives.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"go.uber.org/zap"

	"github.com/Faultbox/bimtiles/internal/config"
	"github.com/Faultbox/bimtiles/internal/logger"
)

func main() {
	config.ParseFlags()
	args := config.Args()

	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	opts := logger.Options{Level: cfg.Logging.Level, JSON: cfg.Logging.JSON, Console: true}
	if cfg.Logging.LogFile != "" {
		opts.File = logger.DefaultFileConfig(cfg.Logging.LogFile)
	}
	if err := logger.InitWithOptions(opts); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Source != "" {
		logger.Sugar.Debugf("Config loaded from %s", cfg.Source)
	}
	logger.Sugar.Debugf("Config: %+v", cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	command, rest := args[0], args[1:]
	t := &tool{cfg: cfg, out: os.Stdout}

	switch command {
	case "compress", "c":
		err = t.compress(ctx, rest)
	case "info":
		err = t.info(rest)
	case "extract", "x":
		err = t.extract(rest)
	case "tiles":
		err = t.tiles(rest)
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}

	if err == nil && cfg.Output.Metrics {
		err = writeMetrics(os.Stderr)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", command), zap.Error(err))
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		logger.Sync()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println(`geomtool - geometry compression and RTC tiling utility

Usage:
  geomtool [flags] <command> [args]

Commands:
  compress <in.json> <out>          Compress a JSON array of geometries
  info <file.xgc>                   Show archive contents
  extract <file.xgc> <id> [out]     Write one record as JSON (stdout by default)
  tiles <in.json>                   Show the RTC tile of every geometry

Flags:
  -config <path>        Config file (default ./bimtiles.yaml or user config dir)
  -workers <n>          Parallel compression workers
  -edge-threshold <deg> Edge angle threshold
  -cell-size <size>     RTC cell size
  -no-rtc               Disable RTC tiling
  -no-colors            Drop vertex colors
  -format archive|json  Output format for compress
  -metrics              Print metrics after the command
  -debug                Enable debug logging

Examples:
  geomtool compress building.json building.xgc
  geomtool -format json compress building.json building-records.json
  geomtool info building.xgc
  geomtool extract building.xgc wall-17 wall-17.json
  geomtool -cell-size 500 tiles building.json`)
}
