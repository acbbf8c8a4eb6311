package gpumetrics

import (
	"fmt"
	"sort"
)

// Layout is the authoritative byte layout of one table revision.
// Layouts are immutable once built.
type Layout struct {
	revision   Revision
	size       int
	deprecated bool
	fields     []FieldSpec
	index      map[string]int
}

// NewLayout validates fields against size and returns an immutable Layout.
// Fields must not overlap, must fit inside size and must have unique names.
func NewLayout(rev Revision, size int, deprecated bool, fields ...FieldSpec) (*Layout, error) {
	if size < HeaderSize || size > 0xFFFF {
		return nil, fmt.Errorf("layout %s: invalid size %d", rev, size)
	}

	sorted := make([]FieldSpec, len(fields))
	copy(sorted, fields)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Offset < sorted[j].Offset
	})

	index := make(map[string]int, len(sorted))
	prevEnd := HeaderSize
	prevName := "header"
	for i, field := range sorted {
		if err := field.validate(); err != nil {
			return nil, fmt.Errorf("layout %s: %w", rev, err)
		}
		if field.Offset < prevEnd {
			return nil, fmt.Errorf("layout %s: field %q overlaps %q", rev, field.Name, prevName)
		}
		if field.End() > size {
			return nil, fmt.Errorf("layout %s: field %q ends at %d past size %d", rev, field.Name, field.End(), size)
		}
		if _, dup := index[field.Name]; dup {
			return nil, fmt.Errorf("layout %s: duplicate field %q", rev, field.Name)
		}
		if field.Scale == 0 {
			sorted[i].Scale = 1
		}
		index[field.Name] = i
		prevEnd = field.End()
		prevName = field.Name
	}

	return &Layout{
		revision:   rev,
		size:       size,
		deprecated: deprecated,
		fields:     sorted,
		index:      index,
	}, nil
}

func mustLayout(format, content uint8, size int, deprecated bool, fields ...FieldSpec) *Layout {
	layout, err := NewLayout(Revision{Format: format, Content: content}, size, deprecated, fields...)
	if err != nil {
		panic(err)
	}
	return layout
}

// Revision returns the revision pair the layout describes.
func (l *Layout) Revision() Revision { return l.revision }

// Size returns the structure size in bytes, header included.
func (l *Layout) Size() int { return l.size }

// Deprecated reports revisions the driver marks as not naturally aligned.
func (l *Layout) Deprecated() bool { return l.deprecated }

// Fields returns a copy of the field specs in offset order, padding included.
func (l *Layout) Fields() []FieldSpec {
	out := make([]FieldSpec, len(l.fields))
	copy(out, l.fields)
	return out
}

// Field looks up a field spec by logical name.
func (l *Layout) Field(name string) (FieldSpec, bool) {
	i, ok := l.index[name]
	if !ok {
		return FieldSpec{}, false
	}
	return l.fields[i], true
}

// MetricNames lists the non-padding field names in offset order.
func (l *Layout) MetricNames() []string {
	names := make([]string, 0, len(l.fields))
	for _, field := range l.fields {
		if field.Padding {
			continue
		}
		names = append(names, field.Name)
	}
	return names
}

// Has reports whether the layout declares name.
func (l *Layout) Has(name string) bool {
	_, ok := l.index[name]
	return ok
}
