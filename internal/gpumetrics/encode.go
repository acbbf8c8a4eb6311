package gpumetrics

import (
	"encoding/binary"
	"fmt"
)

// Encode builds a table for layout carrying values, keyed by field name.
// Fields left out of values are zero. The header declares the layout size
// and revision.
//
// Encode is the inverse of Decode. It exists to build test fixtures and
// synthetic captures; nothing in the service path writes tables.
func Encode(layout *Layout, values map[string][]uint64) ([]byte, error) {
	buf := make([]byte, layout.Size())
	PutHeader(buf, Header{
		StructureSize:   uint16(layout.Size()),
		FormatRevision:  layout.Revision().Format,
		ContentRevision: layout.Revision().Content,
	})

	for name, raw := range values {
		field, ok := layout.Field(name)
		if !ok {
			return nil, fmt.Errorf("encode %s: unknown field %q", layout.Revision(), name)
		}
		if len(raw) != field.Count {
			return nil, fmt.Errorf("encode %s: field %q wants %d elements, got %d", layout.Revision(), name, field.Count, len(raw))
		}
		limit := maxForWidth(field.Width)
		for i, v := range raw {
			if v > limit {
				return nil, fmt.Errorf("encode %s: field %q[%d]: %d overflows %d bytes", layout.Revision(), name, i, v, field.Width)
			}
			off := field.Offset + i*field.Width
			switch field.Width {
			case 1:
				buf[off] = byte(v)
			case 2:
				binary.LittleEndian.PutUint16(buf[off:], uint16(v))
			case 4:
				binary.LittleEndian.PutUint32(buf[off:], uint32(v))
			case 8:
				binary.LittleEndian.PutUint64(buf[off:], v)
			}
		}
	}
	return buf, nil
}

// PutHeader writes h into the first HeaderSize bytes of buf. Like Encode it
// is a fixture helper, typically used to forge a header over an encoded table.
func PutHeader(buf []byte, h Header) {
	binary.LittleEndian.PutUint16(buf[0:2], h.StructureSize)
	buf[2] = h.FormatRevision
	buf[3] = h.ContentRevision
}
