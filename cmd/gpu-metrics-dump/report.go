package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/skobkin/amdgpu-metrics-web/internal/gpumetrics"
)

type outputFormat string

const (
	formatJSON outputFormat = "json"
	formatYAML outputFormat = "yaml"
)

func parseFormat(value string) (outputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "json":
		return formatJSON, nil
	case "yaml", "yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("unsupported format %q", value)
	}
}

type tableReport struct {
	Source        string          `json:"source" yaml:"source"`
	GPUId         string          `json:"gpu_id,omitempty" yaml:"gpu_id,omitempty"`
	Revision      string          `json:"revision,omitempty" yaml:"revision,omitempty"`
	StructureSize int             `json:"structure_size,omitempty" yaml:"structure_size,omitempty"`
	LayoutSize    int             `json:"layout_size,omitempty" yaml:"layout_size,omitempty"`
	Deprecated    bool            `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	Warning       string          `json:"warning,omitempty" yaml:"warning,omitempty"`
	Error         string          `json:"error,omitempty" yaml:"error,omitempty"`
	Throttlers    []string        `json:"throttlers,omitempty" yaml:"throttlers,omitempty,flow"`
	Canonical     []readingReport `json:"canonical,omitempty" yaml:"canonical,omitempty"`
	Fields        []fieldReport   `json:"fields,omitempty" yaml:"fields,omitempty"`
}

type readingReport struct {
	Name      string   `json:"name" yaml:"name"`
	Value     *float64 `json:"value" yaml:"value"`
	Unit      string   `json:"unit,omitempty" yaml:"unit,omitempty"`
	NoReading bool     `json:"no_reading,omitempty" yaml:"no_reading,omitempty"`
}

type fieldReport struct {
	Name     string     `json:"name" yaml:"name"`
	Unit     string     `json:"unit,omitempty" yaml:"unit,omitempty"`
	Raw      []uint64   `json:"raw" yaml:"raw,flow"`
	Physical []*float64 `json:"physical" yaml:"physical,flow"`
}

// newTableReport decodes data. A size mismatch becomes a warning unless
// strict is set; the report is filled either way.
func newTableReport(decoder *gpumetrics.Decoder, source, gpuID string, data []byte, strict bool) (tableReport, error) {
	report := tableReport{Source: source, GPUId: gpuID}

	snapshot, err := decoder.Decode(data)
	if snapshot == nil {
		report.Error = err.Error()
		return report, err
	}

	var reportErr error
	if err != nil {
		if strict {
			report.Error = err.Error()
			reportErr = err
		} else {
			report.Warning = err.Error()
		}
	}

	report.Revision = snapshot.Revision().String()
	report.StructureSize = int(snapshot.Header().StructureSize)
	report.LayoutSize = snapshot.Layout().Size()
	report.Deprecated = snapshot.Deprecated()

	if status, err := gpumetrics.IndependentThrottleStatus(snapshot); err == nil {
		report.Throttlers = status.Names()
	}

	for _, m := range gpumetrics.CanonicalMetrics() {
		reading, err := gpumetrics.Read(snapshot, m)
		switch {
		case err == nil:
			value := reading.Value
			report.Canonical = append(report.Canonical, readingReport{Name: m.Name, Value: &value, Unit: string(reading.Unit)})
		case errors.Is(err, gpumetrics.ErrNoReading):
			report.Canonical = append(report.Canonical, readingReport{Name: m.Name, NoReading: true})
		}
	}

	for _, v := range snapshot.Values() {
		field, err := newFieldReport(snapshot, v)
		if err != nil {
			return report, err
		}
		report.Fields = append(report.Fields, field)
	}

	return report, reportErr
}

func newFieldReport(snapshot *gpumetrics.Snapshot, v gpumetrics.Value) (fieldReport, error) {
	field := fieldReport{Name: v.Name, Unit: string(v.Unit), Raw: v.Array()}

	if v.Kind == gpumetrics.KindScalar {
		reading, err := gpumetrics.Physical(snapshot, v.Name)
		switch {
		case err == nil:
			value := reading.Value
			field.Physical = []*float64{&value}
		case errors.Is(err, gpumetrics.ErrNoReading):
			field.Physical = []*float64{nil}
		default:
			return field, err
		}
		return field, nil
	}

	values, _, err := gpumetrics.PhysicalArray(snapshot, v.Name)
	if err != nil {
		return field, err
	}
	field.Physical = make([]*float64, len(values))
	for i := range values {
		if math.IsNaN(values[i]) {
			continue
		}
		field.Physical[i] = &values[i]
	}
	return field, nil
}

type layoutReport struct {
	Revision   string        `json:"revision" yaml:"revision"`
	Size       int           `json:"size" yaml:"size"`
	Deprecated bool          `json:"deprecated,omitempty" yaml:"deprecated,omitempty"`
	Fields     []layoutField `json:"fields" yaml:"fields"`
}

type layoutField struct {
	Name   string `json:"name" yaml:"name"`
	Offset int    `json:"offset" yaml:"offset"`
	Width  int    `json:"width" yaml:"width"`
	Count  int    `json:"count,omitempty" yaml:"count,omitempty"`
	Unit   string `json:"unit,omitempty" yaml:"unit,omitempty"`
}

func layoutReports(registry *gpumetrics.Registry) []layoutReport {
	layouts := registry.Layouts()
	out := make([]layoutReport, 0, len(layouts))
	for _, layout := range layouts {
		report := layoutReport{
			Revision:   layout.Revision().String(),
			Size:       layout.Size(),
			Deprecated: layout.Deprecated(),
		}
		for _, spec := range layout.Fields() {
			if spec.Padding {
				continue
			}
			field := layoutField{Name: spec.Name, Offset: spec.Offset, Width: spec.Width, Unit: string(spec.Unit)}
			if spec.Kind == gpumetrics.KindArray {
				field.Count = spec.Count
			}
			report.Fields = append(report.Fields, field)
		}
		out = append(out, report)
	}
	return out
}

func writeOutput(w io.Writer, format outputFormat, payload any) error {
	switch format {
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(payload); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	default:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(payload); err != nil {
			return fmt.Errorf("encode json: %w", err)
		}
		return nil
	}
}
