package api

import (
	"github.com/skobkin/amdgpu-metrics-web/internal/gpu"
	"github.com/skobkin/amdgpu-metrics-web/internal/gpumetrics"
	"github.com/skobkin/amdgpu-metrics-web/internal/sampler"
)

// HelloMessage is the initial payload sent on WebSocket connection.
type HelloMessage struct {
	Type       string          `json:"type"`
	IntervalMS int             `json:"interval_ms"`
	GPUs       []gpu.Info      `json:"gpus"`
	Features   map[string]bool `json:"features"`
}

// NewHelloMessage constructs a hello payload.
func NewHelloMessage(intervalMS int, gpus []gpu.Info, features map[string]bool) HelloMessage {
	return HelloMessage{
		Type:       "hello",
		IntervalMS: intervalMS,
		GPUs:       gpus,
		Features:   features,
	}
}

// StatsMessage wraps a sampler snapshot for transport.
type StatsMessage struct {
	Type string `json:"type"`
	sampler.Sample
}

// NewStatsMessage constructs a stats payload.
func NewStatsMessage(sample sampler.Sample) StatsMessage {
	return StatsMessage{
		Type:   "stats",
		Sample: sample,
	}
}

// GPUMetricsMessage carries the full decoded gpu_metrics table of a sample.
type GPUMetricsMessage struct {
	Type     string               `json:"type"`
	GPUId    string               `json:"gpu_id"`
	Snapshot *gpumetrics.Snapshot `json:"gpu_metrics"`
}

// NewGPUMetricsMessage returns false when the sample carries no decoded table.
func NewGPUMetricsMessage(sample sampler.Sample) (GPUMetricsMessage, bool) {
	if sample.GPUMetrics == nil {
		return GPUMetricsMessage{}, false
	}
	return GPUMetricsMessage{
		Type:     "gpu_metrics",
		GPUId:    sample.GPUId,
		Snapshot: sample.GPUMetrics,
	}, true
}

// ErrorMessage communicates an error condition to the client.
type ErrorMessage struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// ClientMessage is a generic envelope used for decoding inbound client messages.
type ClientMessage struct {
	Type string `json:"type"`
}

// SubscribeMessage requests subscription to GPU telemetry. GPUMetrics asks for
// the decoded table to follow every stats message.
type SubscribeMessage struct {
	Type       string `json:"type"`
	GPUId      string `json:"gpu_id"`
	GPUMetrics bool   `json:"gpu_metrics,omitempty"`
}

// PongMessage is the response to a ping.
type PongMessage struct {
	Type string `json:"type"`
}
