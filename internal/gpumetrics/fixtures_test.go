package gpumetrics

import (
	"math"
	"testing"
)

func mustResolve(t *testing.T, format, content uint8) *Layout {
	t.Helper()
	layout, err := DefaultRegistry().Resolve(format, content)
	if err != nil {
		t.Fatalf("Resolve(%d, %d) returned error: %v", format, content, err)
	}
	return layout
}

func mustEncode(t *testing.T, layout *Layout, values map[string][]uint64) []byte {
	t.Helper()
	buf, err := Encode(layout, values)
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	return buf
}

func mustDecode(t *testing.T, buf []byte) *Snapshot {
	t.Helper()
	snapshot, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode returned error: %v", err)
	}
	return snapshot
}

// patternValues fills every non-padding field with distinct values below the
// "no reading" marker.
func patternValues(layout *Layout) map[string][]uint64 {
	values := make(map[string][]uint64)
	for _, field := range layout.Fields() {
		if field.Padding {
			continue
		}
		limit := maxForWidth(field.Width)
		raw := make([]uint64, field.Count)
		for i := range raw {
			raw[i] = uint64(field.Offset*7+i*3+1) % limit
		}
		values[field.Name] = raw
	}
	return values
}

func near(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
