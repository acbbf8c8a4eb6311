package gpumetrics

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadHeader(t *testing.T) {
	t.Parallel()

	header, err := ReadHeader([]byte{0x78, 0x00, 0x01, 0x03, 0xff})
	if err != nil {
		t.Fatalf("ReadHeader returned error: %v", err)
	}
	want := Header{StructureSize: 120, FormatRevision: 1, ContentRevision: 3}
	if header != want {
		t.Fatalf("unexpected header %+v", header)
	}
	if header.Revision() != (Revision{Format: 1, Content: 3}) {
		t.Fatalf("unexpected revision %s", header.Revision())
	}
}

func TestReadHeaderLittleEndianSize(t *testing.T) {
	t.Parallel()

	header, err := ReadHeader([]byte{0x68, 0x01, 0x01, 0x05})
	if err != nil {
		t.Fatalf("ReadHeader returned error: %v", err)
	}
	if header.StructureSize != 360 {
		t.Fatalf("expected structure size 360, got %d", header.StructureSize)
	}
}

func TestReadHeaderTruncated(t *testing.T) {
	t.Parallel()

	for _, buf := range [][]byte{nil, {}, {0x38}, {0x38, 0x00, 0x01}} {
		_, err := ReadHeader(buf)
		if !errors.Is(err, ErrTruncatedBuffer) {
			t.Fatalf("len %d: expected ErrTruncatedBuffer, got %v", len(buf), err)
		}
		var truncated *TruncatedError
		if !errors.As(err, &truncated) {
			t.Fatalf("len %d: expected *TruncatedError, got %T", len(buf), err)
		}
		if truncated.Need != HeaderSize || truncated.Have != len(buf) {
			t.Fatalf("unexpected truncation detail %+v", truncated)
		}
	}
}

func TestParseRevision(t *testing.T) {
	t.Parallel()

	cases := map[string]Revision{
		"1.3":  {Format: 1, Content: 3},
		"v2_4": {Format: 2, Content: 4},
		" 3.0": {Format: 3, Content: 0},
	}
	for input, want := range cases {
		got, err := ParseRevision(input)
		if err != nil {
			t.Fatalf("ParseRevision(%q) returned error: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseRevision(%q) = %s, want %s", input, got, want)
		}
	}

	for _, input := range []string{"", "1", "1.2.3", "a.b", "256.0"} {
		if _, err := ParseRevision(input); err == nil {
			t.Fatalf("expected error for %q", input)
		}
	}
}

func TestRevisionMarshalText(t *testing.T) {
	t.Parallel()

	text, err := Revision{Format: 2, Content: 4}.MarshalText()
	if err != nil {
		t.Fatalf("MarshalText returned error: %v", err)
	}
	if string(text) != "2.4" {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestKindTextRoundTrip(t *testing.T) {
	t.Parallel()

	for _, kind := range []Kind{KindScalar, KindArray} {
		text, err := kind.MarshalText()
		if err != nil {
			t.Fatalf("MarshalText(%v) returned error: %v", kind, err)
		}
		var got Kind
		if err := got.UnmarshalText(text); err != nil {
			t.Fatalf("UnmarshalText(%q) returned error: %v", text, err)
		}
		if got != kind {
			t.Fatalf("round trip of %v gave %v", kind, got)
		}
	}

	for _, bad := range []string{"", "Scalar", "kind(3)", "matrix"} {
		var got Kind
		if err := got.UnmarshalText([]byte(bad)); err == nil {
			t.Fatalf("UnmarshalText(%q) accepted an unknown kind", bad)
		}
	}
}

func TestFieldSpecJSONRoundTrip(t *testing.T) {
	t.Parallel()

	want := mustResolve(t, 1, 3).Fields()
	data, err := json.Marshal(want)
	if err != nil {
		t.Fatalf("Marshal returned error: %v", err)
	}
	var got []FieldSpec
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal returned error: %v", err)
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("field specs differ after round trip (-want +got):\n%s", diff)
	}
}
