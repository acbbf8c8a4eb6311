package sampler

import (
	"time"

	"github.com/skobkin/amdgpu-metrics-web/internal/gpumetrics"
)

// Sample represents a single telemetry snapshot for a GPU.
type Sample struct {
	GPUId     string    `json:"gpu_id"`
	Timestamp time.Time `json:"ts"`
	Metrics   Metrics   `json:"metrics"`

	// GPUMetricsRevision is the gpu_metrics table revision the sample was decoded from.
	GPUMetricsRevision string `json:"gpu_metrics_revision,omitempty"`
	GPUMetricsError    string `json:"gpu_metrics_error,omitempty"`

	// GPUMetrics is the full decoded table, nil when the card publishes none
	// or it could not be decoded.
	GPUMetrics *gpumetrics.Snapshot `json:"-"`
}

// Metrics contains GPU telemetry values. Pointer fields serialize as null when unavailable.
type Metrics struct {
	GPUBusyPct      *float64 `json:"gpu_busy_pct"`
	MemBusyPct      *float64 `json:"mem_busy_pct"`
	MediaBusyPct    *float64 `json:"media_busy_pct"`
	SCLKMHz         *float64 `json:"sclk_mhz"`
	MCLKMHz         *float64 `json:"mclk_mhz"`
	SOCCLKMHz       *float64 `json:"socclk_mhz"`
	TempC           *float64 `json:"temp_c"`
	HotspotTempC    *float64 `json:"hotspot_temp_c"`
	MemTempC        *float64 `json:"mem_temp_c"`
	FanRPM          *float64 `json:"fan_rpm"`
	PowerW          *float64 `json:"power_w"`
	EnergyJ         *float64 `json:"energy_j"`
	GFXVoltageV     *float64 `json:"gfx_voltage_v"`
	PCIeLinkWidth   *float64 `json:"pcie_link_width"`
	PCIeLinkSpeedGT *float64 `json:"pcie_link_speed_gts"`
	VRAMUsedBytes   *uint64  `json:"vram_used_bytes"`
	VRAMTotalBytes  *uint64  `json:"vram_total_bytes"`
	GTTUsedBytes    *uint64  `json:"gtt_used_bytes"`
	GTTTotalBytes   *uint64  `json:"gtt_total_bytes"`
	Throttlers      []string `json:"throttlers,omitempty"`
}
