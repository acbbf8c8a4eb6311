package httpserver

import (
	"net/http"

	"github.com/skobkin/amdgpu-metrics-web/internal/gpumetrics"
)

type layoutResponse struct {
	Revision   gpumetrics.Revision `json:"revision"`
	Size       int                 `json:"size"`
	Deprecated bool                `json:"deprecated"`
	Fields     []fieldResponse     `json:"fields"`
}

type fieldResponse struct {
	Name    string          `json:"name"`
	Offset  int             `json:"offset"`
	Width   int             `json:"width"`
	Count   int             `json:"count"`
	Kind    gpumetrics.Kind `json:"kind"`
	Unit    gpumetrics.Unit `json:"unit,omitempty"`
	Scale   float64         `json:"scale,omitempty"`
	Padding bool            `json:"padding,omitempty"`
}

func newLayoutResponse(layout *gpumetrics.Layout) layoutResponse {
	specs := layout.Fields()
	fields := make([]fieldResponse, 0, len(specs))
	for _, spec := range specs {
		field := fieldResponse{
			Name:    spec.Name,
			Offset:  spec.Offset,
			Width:   spec.Width,
			Count:   spec.Count,
			Kind:    spec.Kind,
			Unit:    spec.Unit,
			Padding: spec.Padding,
		}
		if !spec.Padding {
			field.Scale = spec.Scale
		}
		fields = append(fields, field)
	}
	return layoutResponse{
		Revision:   layout.Revision(),
		Size:       layout.Size(),
		Deprecated: layout.Deprecated(),
		Fields:     fields,
	}
}

// handleGPUMetricsLayouts lists the registered table layouts. A revision
// query parameter ("1.3") narrows the answer to one layout.
func (s *Server) handleGPUMetricsLayouts(w http.ResponseWriter, r *http.Request) {
	registry := gpumetrics.DefaultRegistry()

	if raw := r.URL.Query().Get("revision"); raw != "" {
		rev, err := gpumetrics.ParseRevision(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		layout, err := registry.Resolve(rev.Format, rev.Content)
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		s.writeJSON(w, r, newLayoutResponse(layout), "gpu_metrics layout")
		return
	}

	layouts := registry.Layouts()
	resp := make([]layoutResponse, 0, len(layouts))
	for _, layout := range layouts {
		resp = append(resp, newLayoutResponse(layout))
	}
	s.writeJSON(w, r, resp, "gpu_metrics layouts")
}

func (s *Server) serveGPUMetricsTable(w http.ResponseWriter, r *http.Request, gpuID string) {
	if !s.cfg.GPUMetrics.Enable {
		http.Error(w, "gpu_metrics decoding disabled", http.StatusNotFound)
		return
	}
	if s.sampler == nil {
		http.Error(w, "metrics sampler unavailable", http.StatusServiceUnavailable)
		return
	}

	sample, ok := s.sampler.Latest(gpuID)
	if !ok {
		http.Error(w, "no sample available", http.StatusServiceUnavailable)
		return
	}
	if sample.GPUMetrics == nil {
		msg := "gpu_metrics table unavailable"
		if sample.GPUMetricsError != "" {
			msg += ": " + sample.GPUMetricsError
		}
		http.Error(w, msg, http.StatusNotFound)
		return
	}

	s.writeJSON(w, r, sample.GPUMetrics, "gpu_metrics snapshot")
}
