package sampler

import (
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/skobkin/amdgpu-metrics-web/internal/gpumetrics"
)

const gpuMetricsFilename = "gpu_metrics"

// DecodeStats counts gpu_metrics read outcomes for one reader.
type DecodeStats struct {
	Decoded         uint64 `json:"decoded"`
	SizeMismatch    uint64 `json:"size_mismatch"`
	UnknownRevision uint64 `json:"unknown_revision"`
	Truncated       uint64 `json:"truncated"`
	ReadErrors      uint64 `json:"read_errors"`
}

type decodeCounters struct {
	decoded         atomic.Uint64
	sizeMismatch    atomic.Uint64
	unknownRevision atomic.Uint64
	truncated       atomic.Uint64
	readErrors      atomic.Uint64
}

func (c *decodeCounters) snapshot() DecodeStats {
	return DecodeStats{
		Decoded:         c.decoded.Load(),
		SizeMismatch:    c.sizeMismatch.Load(),
		UnknownRevision: c.unknownRevision.Load(),
		Truncated:       c.truncated.Load(),
		ReadErrors:      c.readErrors.Load(),
	}
}

// readGPUMetrics reads and decodes device/gpu_metrics. A nil snapshot with a
// nil error means the card does not publish the table.
func (r *Reader) readGPUMetrics() (*gpumetrics.Snapshot, error) {
	if r.decoder == nil {
		return nil, nil
	}

	data, err := os.ReadFile(filepath.Join(r.devicePath, gpuMetricsFilename))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		r.stats.readErrors.Add(1)
		r.warnOnce(&r.warnedRead, "failed to read gpu_metrics", "err", err)
		return nil, err
	}

	snapshot, err := r.decoder.Decode(data)
	switch {
	case err == nil:
		r.stats.decoded.Add(1)
		return snapshot, nil
	case errors.Is(err, gpumetrics.ErrSizeMismatch):
		r.stats.sizeMismatch.Add(1)
		r.warnOnce(&r.warnedSize, "gpu_metrics size mismatch", "err", err, "accepted", r.acceptSizeMismatch)
		if !r.acceptSizeMismatch {
			return nil, err
		}
		r.stats.decoded.Add(1)
		return snapshot, nil
	case errors.Is(err, gpumetrics.ErrUnknownRevision):
		r.stats.unknownRevision.Add(1)
		r.warnOnce(&r.warnedRevision, "unsupported gpu_metrics revision", "err", err)
	case errors.Is(err, gpumetrics.ErrTruncatedBuffer):
		r.stats.truncated.Add(1)
		r.warnOnce(&r.warnedTruncated, "truncated gpu_metrics table", "err", err)
	default:
		r.stats.readErrors.Add(1)
	}
	return nil, err
}

func (r *Reader) warnOnce(flag *atomic.Bool, msg string, args ...any) {
	if flag.CompareAndSwap(false, true) {
		r.logger.Warn(msg, args...)
		return
	}
	r.logger.Debug(msg, args...)
}

// applyGPUMetrics fills metrics from a decoded table. Values already read from
// the dedicated sysfs files take precedence.
func applyGPUMetrics(metrics *Metrics, snapshot *gpumetrics.Snapshot) {
	fill := func(dst **float64, m gpumetrics.Metric) {
		if *dst != nil {
			return
		}
		if reading, err := gpumetrics.Read(snapshot, m); err == nil {
			*dst = float64Ptr(reading.Value)
		}
	}

	fill(&metrics.GPUBusyPct, gpumetrics.MetricGFXActivity)
	fill(&metrics.MemBusyPct, gpumetrics.MetricMemActivity)
	fill(&metrics.MediaBusyPct, gpumetrics.MetricMediaActivity)
	fill(&metrics.SCLKMHz, gpumetrics.MetricGFXClock)
	fill(&metrics.MCLKMHz, gpumetrics.MetricMemClock)
	fill(&metrics.SOCCLKMHz, gpumetrics.MetricSoCClock)
	fill(&metrics.TempC, gpumetrics.MetricEdgeTemperature)
	fill(&metrics.HotspotTempC, gpumetrics.MetricHotspotTemperature)
	fill(&metrics.MemTempC, gpumetrics.MetricMemTemperature)
	fill(&metrics.FanRPM, gpumetrics.MetricFanSpeed)
	fill(&metrics.PowerW, gpumetrics.MetricSocketPower)
	fill(&metrics.GFXVoltageV, gpumetrics.MetricGFXVoltage)
	fill(&metrics.PCIeLinkWidth, gpumetrics.MetricPCIeLinkWidth)
	fill(&metrics.PCIeLinkSpeedGT, gpumetrics.MetricPCIeLinkSpeed)

	if reading, err := gpumetrics.Read(snapshot, gpumetrics.MetricEnergy); err == nil && reading.Unit == gpumetrics.UnitJoule {
		metrics.EnergyJ = float64Ptr(reading.Value)
	}

	if status, err := gpumetrics.IndependentThrottleStatus(snapshot); err == nil {
		metrics.Throttlers = status.Names()
	}
}
