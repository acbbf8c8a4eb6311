package gpumetrics

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncatedBuffer reports a buffer shorter than the header or the selected layout.
	ErrTruncatedBuffer = errors.New("gpumetrics: truncated buffer")
	// ErrUnknownRevision reports a revision pair without a registered layout.
	ErrUnknownRevision = errors.New("gpumetrics: unknown revision")
	// ErrSizeMismatch reports a header structure size that disagrees with the layout.
	// Decoding still succeeds when this error is returned.
	ErrSizeMismatch = errors.New("gpumetrics: structure size mismatch")
	// ErrTypeMismatch reports an accessor used against a field of another kind or width.
	ErrTypeMismatch = errors.New("gpumetrics: field type mismatch")
	// ErrNotPresent reports a metric the decoded revision does not carry.
	ErrNotPresent = errors.New("gpumetrics: not present in this revision")
	// ErrNoReading reports the firmware "unsupported" marker (all bits set).
	ErrNoReading = errors.New("gpumetrics: no reading")
)

// TruncatedError carries the byte counts behind ErrTruncatedBuffer.
type TruncatedError struct {
	Need int
	Have int
}

func (e *TruncatedError) Error() string {
	return fmt.Sprintf("gpumetrics: truncated buffer: need %d bytes, have %d", e.Need, e.Have)
}

func (e *TruncatedError) Unwrap() error { return ErrTruncatedBuffer }

// RevisionError carries the header of a table with no registered layout.
type RevisionError struct {
	Header Header
}

func (e *RevisionError) Error() string {
	return fmt.Sprintf("gpumetrics: unknown revision %s (structure size %d)", e.Header.Revision(), e.Header.StructureSize)
}

func (e *RevisionError) Unwrap() error { return ErrUnknownRevision }

// SizeMismatchError carries the declared and expected structure sizes.
type SizeMismatchError struct {
	Revision Revision
	Declared int
	Expected int
}

func (e *SizeMismatchError) Error() string {
	return fmt.Sprintf("gpumetrics: revision %s declares %d bytes, layout has %d", e.Revision, e.Declared, e.Expected)
}

func (e *SizeMismatchError) Unwrap() error { return ErrSizeMismatch }

// TypeMismatchError describes an accessor/field mismatch.
type TypeMismatchError struct {
	Name   string
	Reason string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("gpumetrics: field %q: %s", e.Name, e.Reason)
}

func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }

// NotPresentError names the metric missing from a revision.
type NotPresentError struct {
	Name     string
	Revision Revision
}

func (e *NotPresentError) Error() string {
	return fmt.Sprintf("gpumetrics: %q not present in revision %s", e.Name, e.Revision)
}

func (e *NotPresentError) Unwrap() error { return ErrNotPresent }
