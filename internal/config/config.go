package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents runtime configuration sourced from environment variables.
type Config struct {
	ListenAddr       string
	SampleInterval   time.Duration
	AllowedOrigins   []string
	DefaultGPU       string
	EnablePrometheus bool
	EnablePprof      bool
	LogLevel         slog.Level
	SysfsRoot        string
	DebugfsRoot      string
	WS               WebsocketConfig
	GPUMetrics       GPUMetricsConfig
}

// WebsocketConfig captures tunables for WebSocket handling.
type WebsocketConfig struct {
	MaxClients   int
	WriteTimeout time.Duration
	ReadTimeout  time.Duration
}

// GPUMetricsConfig controls decoding of the binary device/gpu_metrics table.
type GPUMetricsConfig struct {
	Enable bool
	// AcceptSizeMismatch keeps tables whose declared size disagrees with the
	// known layout instead of discarding them.
	AcceptSizeMismatch bool
	// ExportRaw publishes every decoded field on /metrics, not only the
	// cross-revision gauges.
	ExportRaw bool
}

// Defaults returns the configuration used when no variable is set.
func Defaults() Config {
	return Config{
		ListenAddr:     ":8080",
		SampleInterval: 2 * time.Second,
		AllowedOrigins: []string{"*"},
		DefaultGPU:     "auto",
		LogLevel:       slog.LevelInfo,
		SysfsRoot:      "/sys",
		DebugfsRoot:    "/sys/kernel/debug",
		WS: WebsocketConfig{
			MaxClients:   1024,
			WriteTimeout: 3 * time.Second,
			ReadTimeout:  30 * time.Second,
		},
		GPUMetrics: GPUMetricsConfig{
			Enable:             true,
			AcceptSizeMismatch: true,
		},
	}
}

// Load parses configuration from environment variables, applying defaults.
func Load() (Config, error) {
	return LoadFrom(os.LookupEnv)
}

// LoadFrom is Load with a custom variable source. Every invalid variable is
// reported, not only the first one.
func LoadFrom(lookup func(string) (string, bool)) (Config, error) {
	cfg := Defaults()
	env := envReader{lookup: lookup}

	env.str("APP_LISTEN_ADDR", &cfg.ListenAddr)
	env.positiveDuration("APP_SAMPLE_INTERVAL", &cfg.SampleInterval)
	env.list("APP_ALLOWED_ORIGINS", &cfg.AllowedOrigins)
	env.str("APP_DEFAULT_GPU", &cfg.DefaultGPU)
	env.boolean("APP_ENABLE_PROMETHEUS", &cfg.EnablePrometheus)
	env.boolean("APP_ENABLE_PPROF", &cfg.EnablePprof)
	env.logLevel("APP_LOG_LEVEL", &cfg.LogLevel)
	env.str("APP_SYSFS_ROOT", &cfg.SysfsRoot)
	env.str("APP_DEBUGFS_ROOT", &cfg.DebugfsRoot)

	env.positiveInt("APP_WS_MAX_CLIENTS", &cfg.WS.MaxClients)
	env.positiveDuration("APP_WS_WRITE_TIMEOUT", &cfg.WS.WriteTimeout)
	env.positiveDuration("APP_WS_READ_TIMEOUT", &cfg.WS.ReadTimeout)

	env.boolean("APP_GPU_METRICS_ENABLE", &cfg.GPUMetrics.Enable)
	env.boolean("APP_GPU_METRICS_ACCEPT_SIZE_MISMATCH", &cfg.GPUMetrics.AcceptSizeMismatch)
	env.boolean("APP_GPU_METRICS_EXPORT_RAW", &cfg.GPUMetrics.ExportRaw)

	if err := errors.Join(env.errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type envReader struct {
	lookup func(string) (string, bool)
	errs   []error
}

func (e *envReader) value(key string) (string, bool) {
	raw, ok := e.lookup(key)
	if !ok {
		return "", false
	}
	raw = strings.TrimSpace(raw)
	return raw, raw != ""
}

func (e *envReader) fail(key string, err error) {
	e.errs = append(e.errs, fmt.Errorf("parse %s: %w", key, err))
}

func (e *envReader) str(key string, dst *string) {
	if value, ok := e.value(key); ok {
		*dst = value
	}
}

func (e *envReader) list(key string, dst *[]string) {
	value, ok := e.value(key)
	if !ok {
		return
	}
	items := splitAndTrim(value, ",")
	if len(items) == 0 {
		e.fail(key, errors.New("must not be empty"))
		return
	}
	*dst = items
}

func (e *envReader) boolean(key string, dst *bool) {
	value, ok := e.value(key)
	if !ok {
		return
	}
	enabled, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = enabled
}

func (e *envReader) positiveInt(key string, dst *int) {
	value, ok := e.value(key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(value)
	switch {
	case err != nil:
		e.fail(key, err)
	case n <= 0:
		e.fail(key, errors.New("must be > 0"))
	default:
		*dst = n
	}
}

func (e *envReader) positiveDuration(key string, dst *time.Duration) {
	value, ok := e.value(key)
	if !ok {
		return
	}
	d, err := time.ParseDuration(value)
	switch {
	case err != nil:
		e.fail(key, err)
	case d <= 0:
		e.fail(key, errors.New("must be > 0"))
	default:
		*dst = d
	}
}

func (e *envReader) logLevel(key string, dst *slog.Level) {
	value, ok := e.value(key)
	if !ok {
		return
	}
	level, err := parseLogLevel(value)
	if err != nil {
		e.fail(key, err)
		return
	}
	*dst = level
}

func splitAndTrim(value, sep string) []string {
	var out []string
	for item := range strings.SplitSeq(value, sep) {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parseLogLevel(input string) (slog.Level, error) {
	switch strings.ToUpper(input) {
	case "DEBUG":
		return slog.LevelDebug, nil
	case "INFO":
		return slog.LevelInfo, nil
	case "WARN", "WARNING":
		return slog.LevelWarn, nil
	case "ERROR":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unsupported log level %q", input)
	}
}
