package gpumetrics

import "encoding/json"

// Value is one decoded field. Raw holds the unsigned little-endian integers
// exactly as the firmware wrote them; Scale and Unit describe how to turn
// them into physical quantities.
type Value struct {
	Name  string
	Kind  Kind
	Width int
	Unit  Unit
	Scale float64

	raw []uint64
}

func newValue(spec FieldSpec, raw []uint64) Value {
	return Value{
		Name:  spec.Name,
		Kind:  spec.Kind,
		Width: spec.Width,
		Unit:  spec.Unit,
		Scale: spec.Scale,
		raw:   raw,
	}
}

// Scalar returns the raw scalar value. ok is false for arrays.
func (v Value) Scalar() (uint64, bool) {
	if v.Kind != KindScalar || len(v.raw) != 1 {
		return 0, false
	}
	return v.raw[0], true
}

// Array returns a copy of the raw elements. Scalars yield a one-element slice.
func (v Value) Array() []uint64 {
	out := make([]uint64, len(v.raw))
	copy(out, v.raw)
	return out
}

// Len reports the number of elements.
func (v Value) Len() int {
	return len(v.raw)
}

// IsSentinel reports whether element i carries the firmware "no reading"
// marker: every bit of the field width set.
func (v Value) IsSentinel(i int) bool {
	if i < 0 || i >= len(v.raw) {
		return false
	}
	return v.raw[i] == maxForWidth(v.Width)
}

func maxForWidth(width int) uint64 {
	if width >= 8 {
		return ^uint64(0)
	}
	return uint64(1)<<(uint(width)*8) - 1
}

type valueJSON struct {
	Name  string  `json:"name"`
	Kind  Kind    `json:"kind"`
	Width int     `json:"width"`
	Unit  Unit    `json:"unit,omitempty"`
	Scale float64 `json:"scale"`
	Value any     `json:"value"`
}

// MarshalJSON renders scalars as numbers and arrays as lists of numbers.
func (v Value) MarshalJSON() ([]byte, error) {
	out := valueJSON{
		Name:  v.Name,
		Kind:  v.Kind,
		Width: v.Width,
		Unit:  v.Unit,
		Scale: v.Scale,
	}
	if raw, ok := v.Scalar(); ok {
		out.Value = raw
	} else {
		out.Value = v.Array()
	}
	return json.Marshal(out)
}
