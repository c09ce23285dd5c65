// dbshuttle runs unattended MySQL backup and restore profiles.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"dbshuttle/cmd"
	"dbshuttle/internal/config"
	"dbshuttle/internal/exitcode"
	"dbshuttle/internal/logger"
)

// Build information (set by ldflags)
var (
	version   = "0.4.0"
	buildTime = "unknown"
	gitCommit = "unknown"
)

func main() {
	// Cancellation stops scheduling new profiles; a running dump is left to finish
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg := config.New()
	cfg.Version = version
	cfg.BuildTime = buildTime
	cfg.GitCommit = gitCommit

	if cfg.NoColor {
		logger.DisableColors()
	}
	log := logger.New(cfg.LogLevel, cfg.LogFormat)

	err := cmd.Execute(ctx, cfg, log)
	if err == nil {
		return
	}

	var exitErr *cmd.ExitError
	if errors.As(err, &exitErr) {
		cancel()
		os.Exit(exitErr.Code)
	}

	log.Error("Application failed", "error", err)
	cancel()
	os.Exit(exitcode.ExitWithCode(err))
}
