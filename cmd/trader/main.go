package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"trading-agent/internal/cli"
	"trading-agent/internal/config"
	apperrors "trading-agent/internal/errors"
	"trading-agent/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	configDir := os.Getenv("TRADING_CONFIG_DIR")
	if configDir == "" {
		configDir = config.DefaultConfigDir()
	}

	cfg, err := config.Load(configDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		return 1
	}

	logCfg := logging.DefaultLogConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Console = cfg.Logging.Console
	logCfg.JSON = cfg.Logging.JSON
	logCfg.File = cfg.Logging.File
	logCfg.FilePath = filepath.Join(configDir, "logs", "trader.log")
	logger := logging.NewLoggerWithConfig(logCfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCmd(cfg, configDir, logger)
	if err := root.ExecuteContext(ctx); err != nil {
		if apperrors.IsFatal(err) {
			logger.Error().Err(err).Msg("Fatal error, halting")
			return 2
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	return 0
}
