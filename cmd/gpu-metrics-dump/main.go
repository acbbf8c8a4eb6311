// Command gpu-metrics-dump decodes amdgpu gpu_metrics tables from a captured
// file or from every card under sysfs and prints them as JSON or YAML.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/skobkin/amdgpu-metrics-web/internal/gpu"
	"github.com/skobkin/amdgpu-metrics-web/internal/gpumetrics"
)

type options struct {
	file      string
	sysfsRoot string
	gpuFilter string
	format    string
	strict    bool
	layouts   bool
	verbose   bool
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.file, "file", "", "Decode a captured gpu_metrics file instead of reading sysfs")
	flag.StringVar(&opts.sysfsRoot, "sysfs", envOrDefault("APP_SYSFS_ROOT", "/sys"), "Path to sysfs root")
	flag.StringVar(&opts.gpuFilter, "gpu", envOrDefault("APP_DEFAULT_GPU", ""), "Limit output to specific GPU id")
	flag.StringVar(&opts.format, "format", "json", "Output format: json or yaml")
	flag.BoolVar(&opts.strict, "strict", false, "Treat a structure size mismatch as an error")
	flag.BoolVar(&opts.layouts, "layouts", false, "Print the registered table layouts and exit")
	flag.BoolVar(&opts.verbose, "v", false, "Enable debug logging")
	flag.Parse()
	return opts
}

func main() {
	opts := parseFlags()

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	if err := run(opts, os.Stdout, logger); err != nil {
		logger.Error("gpu-metrics-dump failed", "err", err)
		os.Exit(1)
	}
}

func run(opts options, out io.Writer, logger *slog.Logger) error {
	format, err := parseFormat(opts.format)
	if err != nil {
		return err
	}

	decoder := gpumetrics.NewDecoder(nil)

	if opts.layouts {
		return writeOutput(out, format, layoutReports(decoder.Registry()))
	}

	var (
		reports []tableReport
		errs    []error
	)

	if opts.file != "" {
		report, err := reportFile(decoder, opts.file, "", opts.strict)
		reports = append(reports, report)
		if err != nil {
			errs = append(errs, err)
		}
	} else {
		infos, err := gpu.Discover(opts.sysfsRoot, logger.With("component", "gpu_discovery"))
		if err != nil {
			return fmt.Errorf("discover gpus: %w", err)
		}
		for _, info := range infos {
			if opts.gpuFilter != "" && opts.gpuFilter != info.ID {
				continue
			}
			path := filepath.Join(opts.sysfsRoot, "class", "drm", info.ID, "device", "gpu_metrics")
			report, err := reportFile(decoder, path, info.ID, opts.strict)
			if errors.Is(err, os.ErrNotExist) {
				logger.Debug("gpu_metrics not published", "gpu_id", info.ID)
				continue
			}
			reports = append(reports, report)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", info.ID, err))
			}
		}
		if len(reports) == 0 && len(errs) == 0 {
			logger.Warn("no gpu_metrics tables found", "sysfs", opts.sysfsRoot, "gpus", len(infos))
		}
	}

	if err := writeOutput(out, format, reports); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func reportFile(decoder *gpumetrics.Decoder, path, gpuID string, strict bool) (tableReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return tableReport{Source: path, GPUId: gpuID, Error: err.Error()}, err
	}
	return newTableReport(decoder, path, gpuID, data, strict)
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
