package httpserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/skobkin/amdgpu-metrics-web/internal/gpu"
	"github.com/skobkin/amdgpu-metrics-web/internal/gpumetrics"
)

func tableValues() map[string][]uint64 {
	return map[string][]uint64{
		"temperature_edge":      {42},
		"temperature_hotspot":   {61},
		"average_socket_power":  {55},
		"current_gfxclk":        {1850},
		"indep_throttle_status": {1},
	}
}

type snapshotPayload struct {
	Revision      string `json:"revision"`
	StructureSize int    `json:"structure_size"`
	LayoutSize    int    `json:"layout_size"`
	Metrics       []struct {
		Name  string          `json:"name"`
		Unit  string          `json:"unit"`
		Value json.RawMessage `json:"value"`
	} `json:"metrics"`
}

func TestAPIGPUMetricsTable(t *testing.T) {
	t.Parallel()

	manager := startSampler(t, tableValues())
	_, ts := newTestHTTPServer(t, defaultTestConfig(), []gpu.Info{{ID: "card0"}}, manager)

	resp, err := http.Get(ts.URL + "/api/gpus/card0/gpu_metrics")
	if err != nil {
		t.Fatalf("GET gpu_metrics failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var payload snapshotPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode gpu_metrics: %v", err)
	}
	if payload.Revision != "1.3" || payload.StructureSize != 120 || payload.LayoutSize != 120 {
		t.Fatalf("unexpected table header %+v", payload)
	}

	found := false
	for _, m := range payload.Metrics {
		if m.Name != "temperature_edge" {
			continue
		}
		found = true
		if string(m.Value) != "42" || m.Unit != "celsius" {
			t.Fatalf("unexpected temperature_edge %s %s", m.Value, m.Unit)
		}
	}
	if !found {
		t.Fatalf("temperature_edge missing from metrics")
	}
}

func TestAPIGPUMetricsTableUnavailable(t *testing.T) {
	t.Parallel()

	manager := startSampler(t, nil)
	gpus := []gpu.Info{{ID: "card0"}}

	_, ts := newTestHTTPServer(t, defaultTestConfig(), gpus, manager)
	assertStatus(t, ts.URL+"/api/gpus/card0/gpu_metrics", http.StatusNotFound)
	assertStatus(t, ts.URL+"/api/gpus/card9/gpu_metrics", http.StatusNotFound)

	cfg := defaultTestConfig()
	cfg.GPUMetrics.Enable = false
	_, tsDisabled := newTestHTTPServer(t, cfg, gpus, manager)
	assertStatus(t, tsDisabled.URL+"/api/gpus/card0/gpu_metrics", http.StatusNotFound)

	_, tsNoSampler := newTestHTTPServer(t, defaultTestConfig(), gpus, nil)
	assertStatus(t, tsNoSampler.URL+"/api/gpus/card0/gpu_metrics", http.StatusServiceUnavailable)
}

func TestSampleMetricsFromTable(t *testing.T) {
	t.Parallel()

	manager := startSampler(t, tableValues())
	sample, ok := manager.Latest("card0")
	if !ok {
		t.Fatalf("expected a sample")
	}

	if sample.GPUMetricsRevision != "1.3" {
		t.Fatalf("unexpected revision %q", sample.GPUMetricsRevision)
	}
	if sample.Metrics.TempC == nil || *sample.Metrics.TempC != 42 {
		t.Fatalf("expected edge temperature 42, got %v", sample.Metrics.TempC)
	}
	if sample.Metrics.PowerW == nil || *sample.Metrics.PowerW != 55 {
		t.Fatalf("expected socket power 55, got %v", sample.Metrics.PowerW)
	}
	if diff := cmp.Diff([]string{"PPT0"}, sample.Metrics.Throttlers); diff != "" {
		t.Fatalf("throttlers mismatch (-want +got):\n%s", diff)
	}
}

func TestGPUMetricsLayouts(t *testing.T) {
	t.Parallel()

	_, ts := newTestHTTPServer(t, defaultTestConfig(), nil, nil)

	resp, err := http.Get(ts.URL + "/api/gpu_metrics/layouts")
	if err != nil {
		t.Fatalf("GET layouts failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status 200, got %d", resp.StatusCode)
	}

	var layouts []struct {
		Revision   string `json:"revision"`
		Size       int    `json:"size"`
		Deprecated bool   `json:"deprecated"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&layouts); err != nil {
		t.Fatalf("decode layouts: %v", err)
	}

	var got []string
	deprecated := map[string]bool{}
	for _, l := range layouts {
		got = append(got, l.Revision)
		if l.Deprecated {
			deprecated[l.Revision] = true
		}
	}
	want := []string{"1.0", "1.1", "1.2", "1.3", "1.4", "1.5", "2.0", "2.1", "2.2", "2.3", "2.4", "3.0"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("revisions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]bool{"1.0": true, "2.0": true}, deprecated); diff != "" {
		t.Fatalf("deprecated mismatch (-want +got):\n%s", diff)
	}
}

func TestGPUMetricsLayoutByRevision(t *testing.T) {
	t.Parallel()

	_, ts := newTestHTTPServer(t, defaultTestConfig(), nil, nil)

	resp, err := http.Get(ts.URL + "/api/gpu_metrics/layouts?revision=1.3")
	if err != nil {
		t.Fatalf("GET layout failed: %v", err)
	}
	defer resp.Body.Close()

	var layout layoutResponse
	if err := json.NewDecoder(resp.Body).Decode(&layout); err != nil {
		t.Fatalf("decode layout: %v", err)
	}
	if layout.Revision != (gpumetrics.Revision{Format: 1, Content: 3}) || layout.Size != 120 {
		t.Fatalf("unexpected layout %+v", layout)
	}
	if len(layout.Fields) == 0 || layout.Fields[0].Name != "temperature_edge" || layout.Fields[0].Offset != 4 {
		t.Fatalf("unexpected first field %+v", layout.Fields)
	}
	if layout.Fields[0].Kind != gpumetrics.KindScalar {
		t.Fatalf("expected scalar temperature_edge, got %v", layout.Fields[0].Kind)
	}

	assertStatus(t, ts.URL+"/api/gpu_metrics/layouts?revision=9.9", http.StatusNotFound)
	assertStatus(t, ts.URL+"/api/gpu_metrics/layouts?revision=abc", http.StatusBadRequest)
}

func TestGPUMetricsCollector(t *testing.T) {
	t.Parallel()

	manager := startSampler(t, tableValues())
	gpus := []gpu.Info{{ID: "card0"}}

	collector := newGPUMetricsCollector(gpus, manager, false)
	if collector == nil {
		t.Fatalf("expected collector")
	}

	expected := `
# HELP amdgpu_gpu_temperature_celsius Current GPU edge temperature in Celsius.
# TYPE amdgpu_gpu_temperature_celsius gauge
amdgpu_gpu_temperature_celsius{gpu_id="card0"} 42
# HELP amdgpu_gpu_metrics_info Revision of the gpu_metrics table published by the GPU.
# TYPE amdgpu_gpu_metrics_info gauge
amdgpu_gpu_metrics_info{deprecated="false",gpu_id="card0",revision="1.3"} 1
# HELP amdgpu_gpu_throttler_active Throttlers currently limiting the GPU.
# TYPE amdgpu_gpu_throttler_active gauge
amdgpu_gpu_throttler_active{gpu_id="card0",throttler="PPT0",type="power"} 1
`
	if err := testutil.CollectAndCompare(collector, strings.NewReader(expected),
		"amdgpu_gpu_temperature_celsius",
		"amdgpu_gpu_metrics_info",
		"amdgpu_gpu_throttler_active",
	); err != nil {
		t.Fatalf("unexpected collector output: %v", err)
	}

	if n := testutil.CollectAndCount(collector, "amdgpu_gpu_metrics_reads_total"); n != 5 {
		t.Fatalf("expected 5 read outcome series, got %d", n)
	}
	if n := testutil.CollectAndCount(collector, "amdgpu_gpu_metrics_raw"); n != 0 {
		t.Fatalf("expected no raw series without export, got %d", n)
	}
}

func TestGPUMetricsCollectorRawExport(t *testing.T) {
	t.Parallel()

	manager := startSampler(t, tableValues())
	collector := newGPUMetricsCollector([]gpu.Info{{ID: "card0"}}, manager, true)

	layout, err := gpumetrics.DefaultRegistry().Resolve(1, 3)
	if err != nil {
		t.Fatalf("Resolve error: %v", err)
	}
	want := 0
	for _, field := range layout.Fields() {
		if !field.Padding {
			want += field.Count
		}
	}

	if n := testutil.CollectAndCount(collector, "amdgpu_gpu_metrics_raw"); n != want {
		t.Fatalf("expected %d raw series, got %d", want, n)
	}
}

func TestPrometheusEndpoint(t *testing.T) {
	t.Parallel()

	manager := startSampler(t, tableValues())
	cfg := defaultTestConfig()
	cfg.EnablePrometheus = true

	_, ts := newTestHTTPServer(t, cfg, []gpu.Info{{ID: "card0"}}, manager)

	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics failed: %v", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	for _, want := range []string{
		"amdgpu_ws_active_connections",
		`amdgpu_gpu_power_watts{gpu_id="card0"} 55`,
		`amdgpu_gpu_metrics_reads_total{gpu_id="card0",result="decoded"}`,
	} {
		if !strings.Contains(string(body), want) {
			t.Fatalf("expected %q in /metrics output", want)
		}
	}
}

func TestWebSocketGPUMetricsStream(t *testing.T) {
	t.Parallel()

	manager := startSampler(t, tableValues())
	cfg := defaultTestConfig()
	cfg.SampleInterval = 5 * time.Millisecond

	_, ts := newTestHTTPServer(t, cfg, []gpu.Info{{ID: "card0"}}, manager)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, toWebsocketURL(ts.URL+"/ws"), nil)
	if err != nil {
		t.Fatalf("websocket dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var hello map[string]any
	readJSON(t, ctx, conn, &hello)
	features, _ := hello["features"].(map[string]any)
	if features["gpu_metrics"] != true {
		t.Fatalf("expected gpu_metrics feature in hello, got %v", hello["features"])
	}

	subscribe := []byte(`{"type":"subscribe","gpu_id":"card0","gpu_metrics":true}`)
	if err := conn.Write(ctx, websocket.MessageText, subscribe); err != nil {
		t.Fatalf("write subscribe: %v", err)
	}

	for {
		var msg struct {
			Type       string          `json:"type"`
			GPUId      string          `json:"gpu_id"`
			GPUMetrics snapshotPayload `json:"gpu_metrics"`
		}
		readJSON(t, ctx, conn, &msg)
		if msg.Type != "gpu_metrics" {
			continue
		}
		if msg.GPUId != "card0" || msg.GPUMetrics.Revision != "1.3" {
			t.Fatalf("unexpected gpu_metrics message %+v", msg)
		}
		return
	}
}

func readJSON(t *testing.T, ctx context.Context, conn *websocket.Conn, dst any) {
	t.Helper()
	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("websocket read: %v", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		t.Fatalf("decode websocket message: %v", err)
	}
}

func assertStatus(t *testing.T, url string, expected int) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s failed: %v", url, err)
	}
	resp.Body.Close()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d for %s, got %d", expected, url, resp.StatusCode)
	}
}
