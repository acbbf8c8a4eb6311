// Package app wires up and runs the application services.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/skobkin/amdgpu-metrics-web/internal/config"
	"github.com/skobkin/amdgpu-metrics-web/internal/gpu"
	"github.com/skobkin/amdgpu-metrics-web/internal/gpumetrics"
	"github.com/skobkin/amdgpu-metrics-web/internal/httpserver"
	"github.com/skobkin/amdgpu-metrics-web/internal/sampler"
)

const shutdownTimeout = 10 * time.Second

// Run bootstraps the application lifecycle.
func Run(ctx context.Context, baseLogger *slog.Logger, cfg config.Config) error {
	appLogger := baseLogger.With("component", "app")

	gpus, err := gpu.Discover(cfg.SysfsRoot, baseLogger.With("component", "gpu_discovery"))
	if err != nil {
		return fmt.Errorf("discover gpus: %w", err)
	}
	appLogger.Info("discovered GPUs", "count", len(gpus))
	for _, info := range gpus {
		if info.GPUMetricsRevision != "" && !info.GPUMetricsSupported {
			appLogger.Warn("gpu_metrics revision not supported", "gpu_id", info.ID, "revision", info.GPUMetricsRevision)
		}
	}

	readers := newReaders(cfg, gpus, baseLogger)
	if len(gpus) > 0 && len(readers) == 0 {
		appLogger.Warn("no metrics readers initialised", "reason", "sysfs access failed")
	}

	samplerManager, err := sampler.NewManager(cfg.SampleInterval, readers, baseLogger.With("component", "sampler"))
	if err != nil {
		return fmt.Errorf("init sampler manager: %w", err)
	}
	defer func() {
		if err := samplerManager.Close(); err != nil {
			appLogger.Warn("sampler manager close", "err", err)
		}
	}()

	samplerCtx, samplerCancel := context.WithCancel(ctx)
	defer samplerCancel()

	samplerErrCh := make(chan error, 1)
	go func() {
		samplerErrCh <- samplerManager.Run(samplerCtx)
	}()

	srv := httpserver.New(cfg, baseLogger.With("component", "http"), gpus, samplerManager)

	appLogger.Info("starting HTTP server", "listen_addr", cfg.ListenAddr)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	waitSampler := func() error {
		samplerCancel()
		if samplerErrCh == nil {
			return nil
		}
		if err := <-samplerErrCh; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}

	for {
		select {
		case err := <-errCh:
			if err != nil {
				samplerCancel()
				return err
			}
			return waitSampler()
		case err := <-samplerErrCh:
			samplerErrCh = nil
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
		case <-ctx.Done():
			appLogger.Info("shutdown initiated", "reason", ctx.Err())

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := srv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, context.Canceled) {
				return fmt.Errorf("http shutdown: %w", err)
			}

			if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			if err := waitSampler(); err != nil {
				return err
			}

			appLogger.Info("shutdown complete")
			return nil
		}
	}
}

func newReaders(cfg config.Config, gpus []gpu.Info, baseLogger *slog.Logger) map[string]*sampler.Reader {
	opts := readerOptions(cfg.GPUMetrics)
	readers := make(map[string]*sampler.Reader, len(gpus))
	for _, info := range gpus {
		readerLogger := baseLogger.With("component", "sampler_reader", "gpu_id", info.ID)
		reader, err := sampler.NewReader(info.ID, cfg.SysfsRoot, cfg.DebugfsRoot, opts, readerLogger)
		if err != nil {
			baseLogger.Warn("failed to initialise metrics reader", "component", "app", "gpu_id", info.ID, "err", err)
			continue
		}
		readers[info.ID] = reader
	}
	return readers
}

// readerOptions shares one decoder across readers; a disabled table leaves
// the decoder nil so readers skip device/gpu_metrics.
func readerOptions(cfg config.GPUMetricsConfig) sampler.ReaderOptions {
	opts := sampler.ReaderOptions{AcceptSizeMismatch: cfg.AcceptSizeMismatch}
	if cfg.Enable {
		opts.Decoder = gpumetrics.NewDecoder(nil)
	}
	return opts
}
