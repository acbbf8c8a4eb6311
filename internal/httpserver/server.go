package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/skobkin/amdgpu-metrics-web/internal/config"
	"github.com/skobkin/amdgpu-metrics-web/internal/gpu"
	"github.com/skobkin/amdgpu-metrics-web/internal/sampler"
	"github.com/skobkin/amdgpu-metrics-web/internal/version"
)

const (
	readHeaderTimeout = 5 * time.Second
	metricsNamespace  = "amdgpu"
)

// Server wraps the HTTP surface area of the application.
type Server struct {
	cfg        config.Config
	logger     *slog.Logger
	httpServer *http.Server
	gpus       []gpu.Info
	gpuIndex   map[string]gpu.Info
	sampler    *sampler.Manager
	assets     fs.FS

	maxWSClients int64
	wsActive     atomic.Int64
	wsTotal      atomic.Uint64
	wsRejected   atomic.Uint64
	wsSent       atomic.Uint64
	wsDropped    atomic.Uint64
	wsConnIDs    atomic.Uint64
	requestIDs   atomic.Uint64
}

// New assembles a Server with its handlers.
func New(cfg config.Config, logger *slog.Logger, gpus []gpu.Info, samplerManager *sampler.Manager) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		cfg:      cfg,
		logger:   logger,
		gpus:     gpus,
		gpuIndex: make(map[string]gpu.Info, len(gpus)),
		sampler:  samplerManager,
		assets:   mustAssets(),
	}

	if cfg.WS.MaxClients > 0 {
		s.maxWSClients = int64(cfg.WS.MaxClients)
	}

	for _, info := range gpus {
		s.gpuIndex[info.ID] = info
	}

	mux := http.NewServeMux()
	for _, path := range []string{"/healthz", "/api/healthz"} {
		mux.HandleFunc("GET "+path, s.handleHealthz)
	}
	for _, path := range []string{"/readyz", "/api/readyz"} {
		mux.HandleFunc("GET "+path, s.handleReadyz)
	}
	for _, path := range []string{"/version", "/api/version"} {
		mux.HandleFunc("GET "+path, s.handleVersion)
	}
	mux.HandleFunc("GET /api", s.handleAPIDocs)
	mux.HandleFunc("GET /api/{$}", s.handleAPIDocs)
	mux.HandleFunc("GET /api/gpus", s.handleAPIGPUs)
	mux.HandleFunc("GET /api/gpus/{id}/metrics", s.withGPU(s.serveGPUMetrics))
	mux.HandleFunc("GET /api/gpus/{id}/gpu_metrics", s.withGPU(s.serveGPUMetricsTable))
	mux.HandleFunc("GET /api/gpu_metrics/layouts", s.handleGPUMetricsLayouts)
	mux.HandleFunc("GET /ws", s.handleWS)
	mux.Handle("GET /", s.staticHandler())

	if cfg.EnablePrometheus {
		s.registerPrometheus(mux)
	}
	if cfg.EnablePprof {
		registerPprof(mux)
	}

	handler := s.withRequestLogging(mux)

	s.httpServer = &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	return s
}

// Start begins serving HTTP until shutdown is requested.
func (s *Server) Start() error {
	s.logger.Info("listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	s.logger.Info("listener stopped")
	return nil
}

// Shutdown attempts a graceful shutdown within the supplied context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	info := s.readiness()
	status := http.StatusOK
	if info.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	s.writeJSONStatus(w, r, status, info, "readyz response")
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, version.Current(), "version response")
}

func (s *Server) handleAPIDocs(w http.ResponseWriter, r *http.Request) {
	s.serveAsset(w, r, s.assets, apiDocsAsset)
}

func (s *Server) handleAPIGPUs(w http.ResponseWriter, r *http.Request) {
	gpus := s.gpus
	if gpus == nil {
		gpus = []gpu.Info{}
	}
	s.writeJSON(w, r, gpus, "gpu list")
}

// withGPU resolves the {id} path value and rejects unknown GPUs.
func (s *Server) withGPU(next func(w http.ResponseWriter, r *http.Request, gpuID string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gpuID := r.PathValue("id")
		if _, ok := s.gpuIndex[gpuID]; !ok {
			http.NotFound(w, r)
			return
		}
		next(w, r, gpuID)
	}
}

func (s *Server) serveGPUMetrics(w http.ResponseWriter, r *http.Request, gpuID string) {
	if s.sampler == nil {
		http.Error(w, "metrics sampler unavailable", http.StatusServiceUnavailable)
		return
	}

	sample, ok := s.sampler.Latest(gpuID)
	if !ok {
		http.Error(w, "no sample available", http.StatusServiceUnavailable)
		return
	}
	s.writeJSON(w, r, sample, "gpu metrics")
}

// wsCounter describes one WebSocket statistic exported on /metrics.
type wsCounter struct {
	name, help string
	gauge      bool
	value      func() float64
}

func (s *Server) wsCounters() []wsCounter {
	load := func(v *atomic.Uint64) func() float64 {
		return func() float64 { return float64(v.Load()) }
	}
	return []wsCounter{
		{"active_connections", "Current number of active WebSocket clients.", true, func() float64 { return float64(s.wsActive.Load()) }},
		{"connections_total", "Total WebSocket connections accepted since start.", false, load(&s.wsTotal)},
		{"rejected_total", "Total WebSocket connection attempts rejected due to capacity.", false, load(&s.wsRejected)},
		{"messages_sent_total", "Total WebSocket messages sent to clients.", false, load(&s.wsSent)},
		{"messages_dropped_total", "Total WebSocket messages dropped due to backpressure.", false, load(&s.wsDropped)},
	}
}

func (s *Server) registerPrometheus(mux *http.ServeMux) {
	registry := prometheus.NewRegistry()
	for _, c := range s.wsCounters() {
		if c.gauge {
			registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
				Namespace: metricsNamespace, Subsystem: "ws", Name: c.name, Help: c.help,
			}, c.value))
			continue
		}
		registry.MustRegister(prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: metricsNamespace, Subsystem: "ws", Name: c.name, Help: c.help,
		}, c.value))
	}

	if collector := newGPUMetricsCollector(s.gpus, s.sampler, s.cfg.GPUMetrics.ExportRaw); collector != nil {
		registry.MustRegister(collector)
	}

	mux.Handle("GET /metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

func registerPprof(mux *http.ServeMux) {
	mux.HandleFunc("GET /debug/pprof/", pprof.Index)
	mux.HandleFunc("GET /debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("GET /debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("GET /debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("POST /debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("GET /debug/pprof/trace", pprof.Trace)
}

// originPatterns maps the configured origins onto websocket.AcceptOptions
// host patterns. "*" matches every origin host.
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, origin := range origins {
		if u, err := url.Parse(origin); err == nil && u.Host != "" {
			origin = u.Host
		}
		patterns = append(patterns, origin)
	}
	return patterns
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, payload any, what string) {
	s.writeJSONStatus(w, r, http.StatusOK, payload, what)
}

func (s *Server) writeJSONStatus(w http.ResponseWriter, r *http.Request, status int, payload any, what string) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.loggerFromContext(r.Context()).Error("failed to encode "+what, "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		s.loggerFromContext(r.Context()).Debug("failed to write "+what, "err", err)
	}
}

func (s *Server) readiness() readyResponse {
	resp := readyResponse{GPUs: len(s.gpus)}
	if s.sampler != nil {
		resp.Readers = len(s.sampler.GPUIDs())
		for _, info := range s.gpus {
			if _, ok := s.sampler.LatestGPUMetrics(info.ID); ok {
				resp.Tables++
			}
		}
	}

	switch {
	case len(s.gpus) == 0:
		resp.Status = "ok"
	case s.sampler == nil:
		resp.Status, resp.Reason = "degraded", "sampler_not_configured"
	case resp.Readers == 0:
		resp.Status, resp.Reason = "degraded", "no_metrics_readers"
	case s.sampler.Ready():
		resp.Status = "ok"
	default:
		resp.Status, resp.Reason = "initializing", "waiting_for_samples"
	}
	return resp
}

type readyResponse struct {
	Status  string `json:"status"`
	GPUs    int    `json:"gpus"`
	Readers int    `json:"metrics_readers"`
	Tables  int    `json:"gpu_metrics_tables"`
	Reason  string `json:"reason,omitempty"`
}

