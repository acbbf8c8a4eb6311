package sampler

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/skobkin/amdgpu-metrics-web/internal/gpumetrics"
)

const drmClassPath = "class/drm"

// ReaderOptions tune how a Reader treats the gpu_metrics table.
type ReaderOptions struct {
	// Decoder decodes device/gpu_metrics. A nil Decoder disables the table.
	Decoder *gpumetrics.Decoder
	// AcceptSizeMismatch keeps tables whose header size disagrees with the layout.
	AcceptSizeMismatch bool
}

// DefaultReaderOptions decode gpu_metrics with the built-in layouts.
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{
		Decoder:            gpumetrics.NewDecoder(nil),
		AcceptSizeMismatch: true,
	}
}

// Reader fetches telemetry metrics for a single GPU. Sources are consulted in
// order: dedicated sysfs files, the gpu_metrics table, debugfs amdgpu_pm_info.
// A metric keeps the first value found.
type Reader struct {
	cardID       string
	devicePath   string
	debugCardDir string
	hwmonPath    string
	logger       *slog.Logger

	decoder            *gpumetrics.Decoder
	acceptSizeMismatch bool
	stats              decodeCounters

	warnedRead      atomic.Bool
	warnedSize      atomic.Bool
	warnedRevision  atomic.Bool
	warnedTruncated atomic.Bool
}

// NewReader constructs a Reader for the provided card identifier (e.g. "card0").
func NewReader(cardID, sysfsRoot, debugfsRoot string, opts ReaderOptions, logger *slog.Logger) (*Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cardIndex, err := parseCardIndex(cardID)
	if err != nil {
		return nil, err
	}

	devicePath := filepath.Join(sysfsRoot, drmClassPath, cardID, "device")
	if _, err := os.Stat(devicePath); err != nil {
		return nil, fmt.Errorf("stat device path: %w", err)
	}

	reader := &Reader{
		cardID:       cardID,
		devicePath:   devicePath,
		debugCardDir: filepath.Join(debugfsRoot, "dri", strconv.Itoa(cardIndex)),
		hwmonPath:    detectHwmon(devicePath),
		logger:       logger.With("card", cardID),

		decoder:            opts.Decoder,
		acceptSizeMismatch: opts.AcceptSizeMismatch,
	}
	reader.logger.Debug("reader initialised",
		"hwmon", reader.hwmonPath,
		"gpu_metrics", reader.decoder != nil,
	)
	return reader, nil
}

// Stats returns the gpu_metrics decode counters.
func (r *Reader) Stats() DecodeStats {
	return r.stats.snapshot()
}

// Close releases reader resources. Readers hold no open files between samples.
func (r *Reader) Close() error {
	return nil
}

// Sample collects metrics for the GPU. Non-fatal read errors result in nil fields.
func (r *Reader) Sample() Sample {
	sample := Sample{
		GPUId:     r.cardID,
		Timestamp: time.Now().UTC(),
	}

	metrics := r.readSysfs()

	snapshot, err := r.readGPUMetrics()
	if err != nil {
		sample.GPUMetricsError = err.Error()
	}
	if snapshot != nil {
		applyGPUMetrics(&metrics, snapshot)
		sample.GPUMetrics = snapshot
		sample.GPUMetricsRevision = snapshot.Revision().String()
	}

	if metrics.needsDebugFS() {
		r.readDebugFSInfo().apply(&metrics)
	}

	sample.Metrics = metrics
	return sample
}

func parseCardIndex(cardID string) (int, error) {
	indexStr, ok := strings.CutPrefix(cardID, "card")
	if !ok {
		return 0, fmt.Errorf("invalid card id %q", cardID)
	}
	index, err := strconv.Atoi(indexStr)
	if err != nil {
		return 0, fmt.Errorf("parse card index: %w", err)
	}
	return index, nil
}

func float64Ptr(value float64) *float64 {
	return &value
}

func uint64Ptr(value uint64) *uint64 {
	return &value
}
