package gpumetrics

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
)

// HeaderSize is the size of the common metrics table header in bytes.
const HeaderSize = 4

// Header is the common metrics_table_header every table starts with.
type Header struct {
	StructureSize   uint16 `json:"structure_size" yaml:"structure_size"`
	FormatRevision  uint8  `json:"format_revision" yaml:"format_revision"`
	ContentRevision uint8  `json:"content_revision" yaml:"content_revision"`
}

// Revision returns the (format, content) pair of the header.
func (h Header) Revision() Revision {
	return Revision{Format: h.FormatRevision, Content: h.ContentRevision}
}

// ReadHeader parses the common header from the start of buf.
func ReadHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize {
		return Header{}, &TruncatedError{Need: HeaderSize, Have: len(buf)}
	}
	return Header{
		StructureSize:   binary.LittleEndian.Uint16(buf[0:2]),
		FormatRevision:  buf[2],
		ContentRevision: buf[3],
	}, nil
}

// Revision identifies one table layout.
type Revision struct {
	Format  uint8
	Content uint8
}

func (r Revision) String() string {
	return strconv.Itoa(int(r.Format)) + "." + strconv.Itoa(int(r.Content))
}

// MarshalText renders the revision as "format.content".
func (r Revision) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText accepts anything ParseRevision does.
func (r *Revision) UnmarshalText(text []byte) error {
	parsed, err := ParseRevision(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRevision parses "format.content", e.g. "1.3" or "v2_4".
func ParseRevision(value string) (Revision, error) {
	raw := strings.TrimSpace(value)
	raw = strings.TrimPrefix(strings.TrimPrefix(raw, "v"), "V")
	raw = strings.ReplaceAll(raw, "_", ".")
	parts := strings.Split(raw, ".")
	if len(parts) != 2 {
		return Revision{}, fmt.Errorf("invalid revision %q", value)
	}
	format, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return Revision{}, fmt.Errorf("parse format revision: %w", err)
	}
	content, err := strconv.ParseUint(parts[1], 10, 8)
	if err != nil {
		return Revision{}, fmt.Errorf("parse content revision: %w", err)
	}
	return Revision{Format: uint8(format), Content: uint8(content)}, nil
}

func (r Revision) less(other Revision) bool {
	if r.Format != other.Format {
		return r.Format < other.Format
	}
	return r.Content < other.Content
}
