// Package gpumetrics decodes the versioned gpu_metrics tables published by the
// amdgpu driver.
//
// A table starts with a four byte header (structure size, format revision,
// content revision) followed by a revision specific body. Bodies are decoded
// using explicit per-revision offset tables into an immutable Snapshot keyed by
// the field names the driver declares. Query helpers read values from a
// Snapshot without caring which layout produced them.
//
// The package performs no I/O and keeps no mutable state; all functions are
// safe for concurrent use.
package gpumetrics
