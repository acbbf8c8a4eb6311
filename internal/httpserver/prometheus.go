package httpserver

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/skobkin/amdgpu-metrics-web/internal/gpu"
	"github.com/skobkin/amdgpu-metrics-web/internal/gpumetrics"
	"github.com/skobkin/amdgpu-metrics-web/internal/sampler"
)

type gpuMetricsCollector struct {
	sampler   *sampler.Manager
	gpus      []gpu.Info
	metrics   []gpuMetric
	exportRaw bool

	infoDesc      *prometheus.Desc
	throttlerDesc *prometheus.Desc
	decodeDesc    *prometheus.Desc
	rawDesc       *prometheus.Desc
}

type gpuMetric struct {
	desc      *prometheus.Desc
	valueType prometheus.ValueType
	extract   func(sample sampler.Sample) (float64, bool)
}

func newGPUMetricsCollector(gpus []gpu.Info, samplerManager *sampler.Manager, exportRaw bool) prometheus.Collector {
	if samplerManager == nil || len(gpus) == 0 {
		return nil
	}

	collector := &gpuMetricsCollector{
		sampler:   samplerManager,
		gpus:      append([]gpu.Info(nil), gpus...),
		exportRaw: exportRaw,
	}

	desc := func(name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(
			prometheus.BuildFQName(metricsNamespace, "gpu", name),
			help,
			append([]string{"gpu_id"}, labels...),
			nil,
		)
	}
	gauge := func(name, help string, pick func(m *sampler.Metrics) *float64) gpuMetric {
		return gpuMetric{
			desc:      desc(name, help),
			valueType: prometheus.GaugeValue,
			extract: func(sample sampler.Sample) (float64, bool) {
				v := pick(&sample.Metrics)
				if v == nil {
					return 0, false
				}
				return *v, true
			},
		}
	}
	bytesGauge := func(name, help string, pick func(m *sampler.Metrics) *uint64) gpuMetric {
		return gpuMetric{
			desc:      desc(name, help),
			valueType: prometheus.GaugeValue,
			extract: func(sample sampler.Sample) (float64, bool) {
				v := pick(&sample.Metrics)
				if v == nil {
					return 0, false
				}
				return float64(*v), true
			},
		}
	}

	collector.metrics = []gpuMetric{
		gauge("busy_percent", "Current graphics engine busy percentage.",
			func(m *sampler.Metrics) *float64 { return m.GPUBusyPct }),
		gauge("mem_busy_percent", "Current memory controller busy percentage.",
			func(m *sampler.Metrics) *float64 { return m.MemBusyPct }),
		gauge("media_busy_percent", "Current multimedia engine busy percentage.",
			func(m *sampler.Metrics) *float64 { return m.MediaBusyPct }),
		gauge("sclk_mhz", "Current shader clock in MHz.",
			func(m *sampler.Metrics) *float64 { return m.SCLKMHz }),
		gauge("mclk_mhz", "Current memory clock in MHz.",
			func(m *sampler.Metrics) *float64 { return m.MCLKMHz }),
		gauge("socclk_mhz", "Current SoC clock in MHz.",
			func(m *sampler.Metrics) *float64 { return m.SOCCLKMHz }),
		gauge("temperature_celsius", "Current GPU edge temperature in Celsius.",
			func(m *sampler.Metrics) *float64 { return m.TempC }),
		gauge("hotspot_temperature_celsius", "Current GPU hotspot temperature in Celsius.",
			func(m *sampler.Metrics) *float64 { return m.HotspotTempC }),
		gauge("mem_temperature_celsius", "Current memory temperature in Celsius.",
			func(m *sampler.Metrics) *float64 { return m.MemTempC }),
		gauge("fan_rpm", "Current fan speed in RPM.",
			func(m *sampler.Metrics) *float64 { return m.FanRPM }),
		gauge("power_watts", "Current GPU power draw in Watts.",
			func(m *sampler.Metrics) *float64 { return m.PowerW }),
		gauge("gfx_voltage_volts", "Current graphics rail voltage in Volts.",
			func(m *sampler.Metrics) *float64 { return m.GFXVoltageV }),
		gauge("pcie_link_width", "Current PCIe link width in lanes.",
			func(m *sampler.Metrics) *float64 { return m.PCIeLinkWidth }),
		gauge("pcie_link_speed_gts", "Current PCIe link speed in GT/s.",
			func(m *sampler.Metrics) *float64 { return m.PCIeLinkSpeedGT }),
		bytesGauge("vram_used_bytes", "Current VRAM usage in bytes.",
			func(m *sampler.Metrics) *uint64 { return m.VRAMUsedBytes }),
		bytesGauge("vram_total_bytes", "Total VRAM capacity in bytes.",
			func(m *sampler.Metrics) *uint64 { return m.VRAMTotalBytes }),
		bytesGauge("gtt_used_bytes", "Current GTT usage in bytes.",
			func(m *sampler.Metrics) *uint64 { return m.GTTUsedBytes }),
		bytesGauge("gtt_total_bytes", "Total GTT capacity in bytes.",
			func(m *sampler.Metrics) *uint64 { return m.GTTTotalBytes }),
		{
			desc:      desc("energy_joules_total", "Accumulated energy reported by the firmware in Joules."),
			valueType: prometheus.CounterValue,
			extract: func(sample sampler.Sample) (float64, bool) {
				if sample.Metrics.EnergyJ == nil {
					return 0, false
				}
				return *sample.Metrics.EnergyJ, true
			},
		},
		{
			desc:      desc("sample_timestamp_seconds", "Unix timestamp of the latest GPU sample."),
			valueType: prometheus.GaugeValue,
			extract: func(sample sampler.Sample) (float64, bool) {
				if sample.Timestamp.IsZero() {
					return 0, false
				}
				return float64(sample.Timestamp.Unix()), true
			},
		},
		{
			desc:      desc("sample_age_seconds", "Seconds elapsed since the latest GPU sample was collected."),
			valueType: prometheus.GaugeValue,
			extract: func(sample sampler.Sample) (float64, bool) {
				if sample.Timestamp.IsZero() {
					return 0, false
				}
				return max(time.Since(sample.Timestamp).Seconds(), 0), true
			},
		},
	}

	collector.infoDesc = desc("metrics_info", "Revision of the gpu_metrics table published by the GPU.", "revision", "deprecated")
	collector.throttlerDesc = desc("throttler_active", "Throttlers currently limiting the GPU.", "throttler", "type")
	collector.decodeDesc = desc("metrics_reads_total", "gpu_metrics reads by outcome.", "result")
	if exportRaw {
		collector.rawDesc = desc("metrics_raw", "Raw unscaled gpu_metrics field values.", "field", "index")
	}

	return collector
}

func (c *gpuMetricsCollector) Describe(ch chan<- *prometheus.Desc) {
	for _, metric := range c.metrics {
		ch <- metric.desc
	}
	ch <- c.infoDesc
	ch <- c.throttlerDesc
	ch <- c.decodeDesc
	if c.rawDesc != nil {
		ch <- c.rawDesc
	}
}

func (c *gpuMetricsCollector) Collect(ch chan<- prometheus.Metric) {
	if c.sampler == nil {
		return
	}
	for _, info := range c.gpus {
		if stats, ok := c.sampler.DecodeStats(info.ID); ok {
			c.collectDecodeStats(ch, info.ID, stats)
		}

		sample, ok := c.sampler.Latest(info.ID)
		if !ok {
			continue
		}
		for _, metric := range c.metrics {
			value, ok := metric.extract(sample)
			if !ok {
				continue
			}
			ch <- prometheus.MustNewConstMetric(metric.desc, metric.valueType, value, info.ID)
		}

		if sample.GPUMetrics != nil {
			c.collectTable(ch, info.ID, sample.GPUMetrics)
		}
	}
}

func (c *gpuMetricsCollector) collectDecodeStats(ch chan<- prometheus.Metric, gpuID string, stats sampler.DecodeStats) {
	results := []struct {
		result string
		count  uint64
	}{
		{"decoded", stats.Decoded},
		{"size_mismatch", stats.SizeMismatch},
		{"unknown_revision", stats.UnknownRevision},
		{"truncated", stats.Truncated},
		{"read_error", stats.ReadErrors},
	}
	for _, r := range results {
		ch <- prometheus.MustNewConstMetric(c.decodeDesc, prometheus.CounterValue, float64(r.count), gpuID, r.result)
	}
}

func (c *gpuMetricsCollector) collectTable(ch chan<- prometheus.Metric, gpuID string, snapshot *gpumetrics.Snapshot) {
	ch <- prometheus.MustNewConstMetric(c.infoDesc, prometheus.GaugeValue, 1,
		gpuID, snapshot.Revision().String(), strconv.FormatBool(snapshot.Deprecated()))

	if status, err := gpumetrics.IndependentThrottleStatus(snapshot); err == nil {
		for _, bit := range status.Active() {
			ch <- prometheus.MustNewConstMetric(c.throttlerDesc, prometheus.GaugeValue, 1,
				gpuID, bit.String(), string(bit.Type()))
		}
	}

	if c.rawDesc == nil {
		return
	}
	for _, value := range snapshot.Values() {
		for i, raw := range value.Array() {
			if value.IsSentinel(i) {
				continue
			}
			ch <- prometheus.MustNewConstMetric(c.rawDesc, prometheus.GaugeValue, float64(raw),
				gpuID, value.Name, strconv.Itoa(i))
		}
	}
}
