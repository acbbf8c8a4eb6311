package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/skobkin/amdgpu-metrics-web/internal/app"
	"github.com/skobkin/amdgpu-metrics-web/internal/config"
	"github.com/skobkin/amdgpu-metrics-web/internal/version"
)

// Overridden at build time with -ldflags "-X main.buildVersion=...".
var (
	buildVersion = "dev"
	buildCommit  = ""
	buildTime    = ""
)

func main() {
	os.Exit(run())
}

func run() int {
	version.Set(version.Resolve(version.Info{
		Version:   buildVersion,
		Commit:    buildCommit,
		BuildTime: buildTime,
	}))

	cfg, err := config.Load()
	if err != nil {
		newLogger(slog.LevelError).Error("failed to load configuration", "err", err)
		return 1
	}

	logger := newLogger(cfg.LogLevel)
	info := version.Current()
	logger.Info("starting",
		"version", info.Version,
		"commit", info.Commit,
		"go", info.GoVersion,
		"gpu_metrics", cfg.GPUMetrics.Enable,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := app.Run(ctx, logger, cfg); err != nil {
		logger.Error("application error", "err", err)
		return 1
	}
	return 0
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
