package gpumetrics

import (
	"encoding/json"
	"testing"
)

func TestSnapshotMarshalJSON(t *testing.T) {
	t.Parallel()

	snapshot := mustDecode(t, mustEncode(t, mustResolve(t, 1, 0), map[string][]uint64{
		"system_clock_counter": {1000},
		"temperature_edge":     {50},
	}))

	data, err := json.Marshal(snapshot)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}

	var decoded struct {
		Revision    string `json:"revision"`
		Deprecated  bool   `json:"deprecated"`
		TimestampNS uint64 `json:"timestamp_ns"`
		Metrics     []struct {
			Name  string `json:"name"`
			Kind  string `json:"kind"`
			Unit  string `json:"unit"`
			Value any    `json:"value"`
		} `json:"metrics"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}

	if decoded.Revision != "1.0" || !decoded.Deprecated || decoded.TimestampNS != 1000 {
		t.Fatalf("unexpected snapshot header %+v", decoded)
	}
	if len(decoded.Metrics) != snapshot.Len() {
		t.Fatalf("expected %d metrics, got %d", snapshot.Len(), len(decoded.Metrics))
	}
	if decoded.Metrics[0].Name != "system_clock_counter" || decoded.Metrics[1].Name != "temperature_edge" {
		t.Fatalf("metrics not in layout order: %s, %s", decoded.Metrics[0].Name, decoded.Metrics[1].Name)
	}
	edge := decoded.Metrics[1]
	if edge.Kind != "scalar" || edge.Unit != "celsius" || edge.Value.(float64) != 50 {
		t.Fatalf("unexpected temperature_edge %+v", edge)
	}
}

func TestSnapshotValueIsCopy(t *testing.T) {
	t.Parallel()

	snapshot := mustDecode(t, mustEncode(t, mustResolve(t, 1, 1), map[string][]uint64{
		"temperature_hbm": {40, 41, 42, 43},
	}))

	value, ok := snapshot.Value("temperature_hbm")
	if !ok {
		t.Fatalf("temperature_hbm missing")
	}
	raw := value.Array()
	raw[0] = 99

	again, _ := snapshot.Value("temperature_hbm")
	if again.Array()[0] != 40 {
		t.Fatalf("snapshot mutated through copy")
	}
}
