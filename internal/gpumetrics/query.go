package gpumetrics

import (
	"fmt"
	"math"
)

// Unsigned is the set of integer types raw values can be read into.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uint
}

// Reading is a value converted into its physical unit.
type Reading struct {
	Value float64 `json:"value"`
	Unit  Unit    `json:"unit,omitempty"`
}

func (r Reading) String() string {
	if r.Unit == UnitNone {
		return fmt.Sprintf("%g", r.Value)
	}
	return fmt.Sprintf("%g %s", r.Value, r.Unit)
}

func lookup(s *Snapshot, name string) (Value, error) {
	v, ok := s.values[name]
	if !ok {
		return Value{}, &NotPresentError{Name: name, Revision: s.Revision()}
	}
	return v, nil
}

func fits[T Unsigned](width int) bool {
	return uint64(^T(0)) >= maxForWidth(width)
}

// Get returns the raw scalar name as T. Arrays and fields wider than T fail
// with ErrTypeMismatch; fields the revision lacks fail with ErrNotPresent.
func Get[T Unsigned](s *Snapshot, name string) (T, error) {
	v, err := lookup(s, name)
	if err != nil {
		return 0, err
	}
	raw, ok := v.Scalar()
	if !ok {
		return 0, &TypeMismatchError{Name: name, Reason: fmt.Sprintf("is an array of %d elements", v.Len())}
	}
	if !fits[T](v.Width) {
		return 0, &TypeMismatchError{Name: name, Reason: fmt.Sprintf("%d-byte field does not fit requested type", v.Width)}
	}
	return T(raw), nil
}

// GetArray returns a copy of the raw array name converted to T.
func GetArray[T Unsigned](s *Snapshot, name string) ([]T, error) {
	v, err := lookup(s, name)
	if err != nil {
		return nil, err
	}
	if v.Kind != KindArray {
		return nil, &TypeMismatchError{Name: name, Reason: "is a scalar"}
	}
	if !fits[T](v.Width) {
		return nil, &TypeMismatchError{Name: name, Reason: fmt.Sprintf("%d-byte elements do not fit requested type", v.Width)}
	}
	out := make([]T, len(v.raw))
	for i, raw := range v.raw {
		out[i] = T(raw)
	}
	return out, nil
}

// Scalar is Get for uint64, which every field width fits.
func Scalar(s *Snapshot, name string) (uint64, error) {
	return Get[uint64](s, name)
}

// Array is GetArray for uint64.
func Array(s *Snapshot, name string) ([]uint64, error) {
	return GetArray[uint64](s, name)
}

// Physical converts the scalar name into its unit. The firmware "no reading"
// marker fails with ErrNoReading.
func Physical(s *Snapshot, name string) (Reading, error) {
	v, err := lookup(s, name)
	if err != nil {
		return Reading{}, err
	}
	if _, ok := v.Scalar(); !ok {
		return Reading{}, &TypeMismatchError{Name: name, Reason: "is an array"}
	}
	return physicalElement(v, 0)
}

// PhysicalArray converts every element of the array name. Elements carrying
// the "no reading" marker become NaN.
func PhysicalArray(s *Snapshot, name string) ([]float64, Unit, error) {
	v, err := lookup(s, name)
	if err != nil {
		return nil, UnitNone, err
	}
	if v.Kind != KindArray {
		return nil, UnitNone, &TypeMismatchError{Name: name, Reason: "is a scalar"}
	}
	out := make([]float64, len(v.raw))
	for i, raw := range v.raw {
		if v.IsSentinel(i) {
			out[i] = math.NaN()
			continue
		}
		out[i] = float64(raw) * v.Scale
	}
	return out, v.Unit, nil
}

func physicalElement(v Value, i int) (Reading, error) {
	if v.IsSentinel(i) {
		if v.Kind == KindScalar {
			return Reading{}, fmt.Errorf("%s: %w", v.Name, ErrNoReading)
		}
		return Reading{}, fmt.Errorf("%s[%d]: %w", v.Name, i, ErrNoReading)
	}
	return Reading{Value: float64(v.raw[i]) * v.Scale, Unit: v.Unit}, nil
}
