package gpumetrics

import "fmt"

// Kind distinguishes scalar fields from fixed-size arrays.
type Kind uint8

const (
	KindScalar Kind = iota + 1
	KindArray
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindArray:
		return "array"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// MarshalText encodes the kind name.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "scalar":
		*k = KindScalar
	case "array":
		*k = KindArray
	default:
		return fmt.Errorf("gpumetrics: unknown field kind %q", text)
	}
	return nil
}

// Unit is the physical unit a field reaches once its Scale is applied.
type Unit string

const (
	UnitNone       Unit = ""
	UnitCelsius    Unit = "celsius"
	UnitWatt       Unit = "watt"
	UnitJoule      Unit = "joule"
	UnitVolt       Unit = "volt"
	UnitAmpere     Unit = "ampere"
	UnitMHz        Unit = "mhz"
	UnitPercent    Unit = "percent"
	UnitRPM        Unit = "rpm"
	UnitNanosecond Unit = "nanosecond"
	UnitSecond     Unit = "second"
	UnitLanes      Unit = "lanes"
	UnitGTs        Unit = "gt_per_second"
	UnitGbps       Unit = "gbit_per_second"
	UnitGBps       Unit = "gbyte_per_second"
	UnitMBps       Unit = "mbyte_per_second"
	UnitKilobyte   Unit = "kilobyte"
	UnitCount      Unit = "count"
	UnitBitmask    Unit = "bitmask"
)

// FieldSpec locates one field inside a layout.
type FieldSpec struct {
	Name   string
	Offset int

	// Width is the size of one element in bytes: 1, 2, 4 or 8.
	Width int
	Count int
	Kind  Kind
	Unit  Unit

	// Scale converts one raw unit into Unit. It is metadata only; the
	// decoder never applies it.
	Scale float64

	Padding bool
}

// Size is the number of bytes the field occupies.
func (f FieldSpec) Size() int {
	return f.Width * f.Count
}

// End is the offset one past the last byte of the field.
func (f FieldSpec) End() int {
	return f.Offset + f.Size()
}

func (f FieldSpec) validate() error {
	if f.Name == "" {
		return fmt.Errorf("field at offset %d has no name", f.Offset)
	}
	switch f.Width {
	case 1, 2, 4, 8:
	default:
		return fmt.Errorf("field %q: unsupported width %d", f.Name, f.Width)
	}
	if f.Offset < HeaderSize {
		return fmt.Errorf("field %q: offset %d overlaps header", f.Name, f.Offset)
	}
	if f.Count < 1 {
		return fmt.Errorf("field %q: count must be >= 1", f.Name)
	}
	switch {
	case f.Kind == KindScalar && f.Count != 1:
		return fmt.Errorf("field %q: scalar with %d elements", f.Name, f.Count)
	case f.Kind == KindArray && f.Count < 2:
		return fmt.Errorf("field %q: array with %d elements", f.Name, f.Count)
	case f.Kind != KindScalar && f.Kind != KindArray:
		return fmt.Errorf("field %q: unknown kind %s", f.Name, f.Kind)
	}
	return nil
}

func scalar(name string, offset, width int, unit Unit, scale float64) FieldSpec {
	return FieldSpec{Name: name, Offset: offset, Width: width, Count: 1, Kind: KindScalar, Unit: unit, Scale: scale}
}

func array(name string, offset, width, count int, unit Unit, scale float64) FieldSpec {
	return FieldSpec{Name: name, Offset: offset, Width: width, Count: count, Kind: KindArray, Unit: unit, Scale: scale}
}

func padding(name string, offset, width, count int) FieldSpec {
	kind := KindScalar
	if count > 1 {
		kind = KindArray
	}
	return FieldSpec{Name: name, Offset: offset, Width: width, Count: count, Kind: kind, Padding: true}
}
