package gpumetrics

import (
	"errors"
	"math"
	"testing"
)

func TestGetScalar(t *testing.T) {
	t.Parallel()

	snapshot := mustDecode(t, mustEncode(t, mustResolve(t, 1, 3), map[string][]uint64{
		"temperature_edge":      {61},
		"energy_accumulator":    {1 << 40},
		"indep_throttle_status": {0},
	}))

	edge, err := Get[uint16](snapshot, "temperature_edge")
	if err != nil || edge != 61 {
		t.Fatalf("Get[uint16] = %d, %v", edge, err)
	}
	wide, err := Get[uint64](snapshot, "temperature_edge")
	if err != nil || wide != 61 {
		t.Fatalf("Get[uint64] = %d, %v", wide, err)
	}
	energy, err := Scalar(snapshot, "energy_accumulator")
	if err != nil || energy != 1<<40 {
		t.Fatalf("Scalar = %d, %v", energy, err)
	}
}

func TestGetTypeMismatch(t *testing.T) {
	t.Parallel()

	snapshot := mustDecode(t, mustEncode(t, mustResolve(t, 1, 3), nil))

	if _, err := Get[uint8](snapshot, "temperature_edge"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("narrow type: expected ErrTypeMismatch, got %v", err)
	}
	if _, err := Get[uint32](snapshot, "energy_accumulator"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("8-byte into uint32: expected ErrTypeMismatch, got %v", err)
	}
	if _, err := Get[uint16](snapshot, "temperature_hbm"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("array via Get: expected ErrTypeMismatch, got %v", err)
	}
	if _, err := GetArray[uint16](snapshot, "temperature_edge"); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("scalar via GetArray: expected ErrTypeMismatch, got %v", err)
	}
}

func TestGetNotPresent(t *testing.T) {
	t.Parallel()

	snapshot := mustDecode(t, mustEncode(t, mustResolve(t, 1, 0), nil))

	_, err := Get[uint16](snapshot, "xgmi_link_width")
	if !errors.Is(err, ErrNotPresent) {
		t.Fatalf("expected ErrNotPresent, got %v", err)
	}
	var notPresent *NotPresentError
	if !errors.As(err, &notPresent) || notPresent.Revision != (Revision{Format: 1, Content: 0}) {
		t.Fatalf("unexpected error detail %v", err)
	}
	if _, err := Physical(snapshot, "xgmi_link_width"); !errors.Is(err, ErrNotPresent) {
		t.Fatalf("Physical: expected ErrNotPresent, got %v", err)
	}
}

func TestGetArray(t *testing.T) {
	t.Parallel()

	snapshot := mustDecode(t, mustEncode(t, mustResolve(t, 1, 4), map[string][]uint64{
		"current_gfxclk": {100, 200, 300, 400, 500, 600, 700, 800},
	}))

	clocks, err := GetArray[uint16](snapshot, "current_gfxclk")
	if err != nil {
		t.Fatalf("GetArray returned error: %v", err)
	}
	if len(clocks) != 8 || clocks[0] != 100 || clocks[7] != 800 {
		t.Fatalf("unexpected clocks %v", clocks)
	}

	clocks[0] = 1
	again, err := Array(snapshot, "current_gfxclk")
	if err != nil || again[0] != 100 {
		t.Fatalf("snapshot mutated through returned slice: %v (%v)", again, err)
	}
}

func TestPhysicalAppliesScale(t *testing.T) {
	t.Parallel()

	snapshot := mustDecode(t, mustEncode(t, mustResolve(t, 2, 4), map[string][]uint64{
		"temperature_gfx":      {4550},
		"average_socket_power": {15250},
		"average_gfx_voltage":  {850},
	}))

	cases := map[string]Reading{
		"temperature_gfx":      {Value: 45.5, Unit: UnitCelsius},
		"average_socket_power": {Value: 15.25, Unit: UnitWatt},
		"average_gfx_voltage":  {Value: 0.85, Unit: UnitVolt},
	}
	for name, want := range cases {
		got, err := Physical(snapshot, name)
		if err != nil {
			t.Fatalf("%s: Physical returned error: %v", name, err)
		}
		if got.Unit != want.Unit || math.Abs(got.Value-want.Value) > 1e-9 {
			t.Fatalf("%s: got %s, want %s", name, got, want)
		}
	}

	raw, err := Get[uint16](snapshot, "temperature_gfx")
	if err != nil || raw != 4550 {
		t.Fatalf("raw value must stay unscaled, got %d (%v)", raw, err)
	}
}

func TestPhysicalNoReading(t *testing.T) {
	t.Parallel()

	snapshot := mustDecode(t, mustEncode(t, mustResolve(t, 2, 2), map[string][]uint64{
		"average_gfx_power": {0xFFFF},
		"temperature_core":  {3000, 0xFFFF, 3100, 0, 0, 0, 0, 0},
	}))

	if _, err := Physical(snapshot, "average_gfx_power"); !errors.Is(err, ErrNoReading) {
		t.Fatalf("expected ErrNoReading, got %v", err)
	}

	cores, unit, err := PhysicalArray(snapshot, "temperature_core")
	if err != nil {
		t.Fatalf("PhysicalArray returned error: %v", err)
	}
	if unit != UnitCelsius {
		t.Fatalf("unexpected unit %q", unit)
	}
	if !near(cores[0], 30) || !math.IsNaN(cores[1]) || !near(cores[2], 31) {
		t.Fatalf("unexpected cores %v", cores)
	}
}
