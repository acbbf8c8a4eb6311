package gpumetrics

import "encoding/json"

// Snapshot is the decoded, version-tagged content of one table.
// It is immutable; accessors return copies.
type Snapshot struct {
	header   Header
	layout   *Layout
	values   map[string]Value
	order    []string
	mismatch *SizeMismatchError
}

func newSnapshot(header Header, layout *Layout, values map[string]Value, mismatch *SizeMismatchError) *Snapshot {
	order := make([]string, 0, len(values))
	for _, name := range layout.MetricNames() {
		if _, ok := values[name]; ok {
			order = append(order, name)
		}
	}
	return &Snapshot{
		header:   header,
		layout:   layout,
		values:   values,
		order:    order,
		mismatch: mismatch,
	}
}

// Header returns the header the table was decoded with.
func (s *Snapshot) Header() Header { return s.header }

// Revision returns the revision of the layout used for decoding.
func (s *Snapshot) Revision() Revision { return s.layout.Revision() }

// Layout returns the layout used for decoding.
func (s *Snapshot) Layout() *Layout { return s.layout }

// Deprecated reports whether the table used a deprecated layout.
func (s *Snapshot) Deprecated() bool { return s.layout.Deprecated() }

// Timestamp returns system_clock_counter in nanoseconds when the table has one.
func (s *Snapshot) Timestamp() (uint64, bool) {
	v, ok := s.values["system_clock_counter"]
	if !ok {
		return 0, false
	}
	return v.Scalar()
}

// SizeMismatch returns the recorded size mismatch, or nil.
func (s *Snapshot) SizeMismatch() *SizeMismatchError { return s.mismatch }

// Names lists decoded metric names in layout order.
func (s *Snapshot) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Len reports how many metrics were decoded.
func (s *Snapshot) Len() int { return len(s.order) }

// Has reports whether name was decoded.
func (s *Snapshot) Has(name string) bool {
	_, ok := s.values[name]
	return ok
}

// Value returns the decoded value for name. The raw slice is copied.
func (s *Snapshot) Value(name string) (Value, bool) {
	v, ok := s.values[name]
	if !ok {
		return Value{}, false
	}
	v.raw = v.Array()
	return v, true
}

// Values returns every decoded value in layout order.
func (s *Snapshot) Values() []Value {
	out := make([]Value, 0, len(s.order))
	for _, name := range s.order {
		v, _ := s.Value(name)
		out = append(out, v)
	}
	return out
}

// Equal reports whether two snapshots carry the same header, layout revision and values.
func (s *Snapshot) Equal(other *Snapshot) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.header != other.header || s.Revision() != other.Revision() || len(s.values) != len(other.values) {
		return false
	}
	for name, v := range s.values {
		o, ok := other.values[name]
		if !ok || v.Kind != o.Kind || v.Width != o.Width || len(v.raw) != len(o.raw) {
			return false
		}
		for i := range v.raw {
			if v.raw[i] != o.raw[i] {
				return false
			}
		}
	}
	return true
}

type snapshotJSON struct {
	Revision      Revision `json:"revision"`
	StructureSize uint16   `json:"structure_size"`
	LayoutSize    int      `json:"layout_size"`
	Deprecated    bool     `json:"deprecated,omitempty"`
	SizeMismatch  bool     `json:"size_mismatch,omitempty"`
	TimestampNS   *uint64  `json:"timestamp_ns,omitempty"`
	Metrics       []Value  `json:"metrics"`
}

// MarshalJSON renders the snapshot with metrics in layout order.
func (s *Snapshot) MarshalJSON() ([]byte, error) {
	out := snapshotJSON{
		Revision:      s.Revision(),
		StructureSize: s.header.StructureSize,
		LayoutSize:    s.layout.Size(),
		Deprecated:    s.Deprecated(),
		SizeMismatch:  s.mismatch != nil,
		Metrics:       s.Values(),
	}
	if ts, ok := s.Timestamp(); ok {
		out.TimestampNS = &ts
	}
	return json.Marshal(out)
}
