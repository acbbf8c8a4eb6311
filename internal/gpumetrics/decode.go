package gpumetrics

import (
	"encoding/binary"
	"errors"
)

// DecodeBody reads every non-padding field of layout from buf.
//
// buf must hold at least layout.Size bytes, otherwise DecodeBody fails with
// *TruncatedError and no values. Nothing past layout.Size or past the size
// the header declares is read: fields ending beyond a smaller declared size
// are left out. When header.StructureSize differs from the layout size the
// decoded values are returned together with a *SizeMismatchError.
func DecodeBody(buf []byte, header Header, layout *Layout) (map[string]Value, error) {
	if len(buf) < layout.Size() {
		return nil, &TruncatedError{Need: layout.Size(), Have: len(buf)}
	}
	declared := int(header.StructureSize)
	limit := min(layout.Size(), max(declared, HeaderSize))

	values := make(map[string]Value, len(layout.fields))
	for _, field := range layout.fields {
		if field.Padding || field.End() > limit {
			continue
		}
		values[field.Name] = newValue(field, readField(buf, field))
	}

	if declared != layout.Size() {
		return values, &SizeMismatchError{
			Revision: layout.Revision(),
			Declared: declared,
			Expected: layout.Size(),
		}
	}
	return values, nil
}

func readField(buf []byte, field FieldSpec) []uint64 {
	raw := make([]uint64, field.Count)
	for i := range raw {
		off := field.Offset + i*field.Width
		switch field.Width {
		case 1:
			raw[i] = uint64(buf[off])
		case 2:
			raw[i] = uint64(binary.LittleEndian.Uint16(buf[off:]))
		case 4:
			raw[i] = uint64(binary.LittleEndian.Uint32(buf[off:]))
		case 8:
			raw[i] = binary.LittleEndian.Uint64(buf[off:])
		}
	}
	return raw
}

// Decoder turns raw tables into snapshots using one registry.
// It holds no mutable state.
type Decoder struct {
	registry *Registry
}

// NewDecoder returns a decoder bound to registry, or to the default registry when nil.
func NewDecoder(registry *Registry) *Decoder {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &Decoder{registry: registry}
}

// Registry returns the registry the decoder resolves layouts from.
func (d *Decoder) Registry() *Registry {
	return d.registry
}

// Decode reads the header, resolves the layout and decodes the body.
//
// A size mismatch is recoverable: the snapshot is returned together with an
// error matching ErrSizeMismatch. Every other error yields a nil snapshot.
func (d *Decoder) Decode(buf []byte) (*Snapshot, error) {
	header, err := ReadHeader(buf)
	if err != nil {
		return nil, err
	}
	layout, err := d.registry.Resolve(header.FormatRevision, header.ContentRevision)
	if err != nil {
		return nil, err
	}

	values, err := DecodeBody(buf, header, layout)
	var mismatch *SizeMismatchError
	if err != nil && !errors.As(err, &mismatch) {
		return nil, err
	}

	snapshot := newSnapshot(header, layout, values, mismatch)
	if mismatch != nil {
		return snapshot, mismatch
	}
	return snapshot, nil
}

var defaultDecoder = NewDecoder(nil)

// Decode decodes buf against the default registry.
func Decode(buf []byte) (*Snapshot, error) {
	return defaultDecoder.Decode(buf)
}
