package sampler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/skobkin/amdgpu-metrics-web/internal/gpumetrics"
)

// Manager runs one sampling loop per GPU, keeps the latest sample of each and
// pushes new samples to subscribers.
type Manager struct {
	interval time.Duration
	readers  map[string]*Reader
	logger   *slog.Logger

	mu          sync.RWMutex
	latest      map[string]Sample
	subscribers map[string]map[*subscriber]struct{}
	closeOnce   sync.Once
	closeErr    error
}

// NewManager builds a Manager from pre-constructed readers.
func NewManager(interval time.Duration, readers map[string]*Reader, logger *slog.Logger) (*Manager, error) {
	if interval <= 0 {
		return nil, fmt.Errorf("interval must be > 0")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		interval:    interval,
		readers:     readers,
		logger:      logger.With("component", "sampler_manager"),
		latest:      make(map[string]Sample, len(readers)),
		subscribers: make(map[string]map[*subscriber]struct{}),
	}, nil
}

// Run samples every GPU until ctx is canceled, then closes the readers.
func (m *Manager) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for id, reader := range m.readers {
		wg.Go(func() { m.runReader(ctx, id, reader) })
	}

	<-ctx.Done()
	wg.Wait()
	return m.Close()
}

func (m *Manager) runReader(ctx context.Context, gpuID string, reader *Reader) {
	logger := m.logger.With("gpu_id", gpuID)
	logger.Info("sampler started", "interval", m.interval)

	m.storeSample(reader.Sample())

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("sampler stopping", "reason", ctx.Err(), "gpu_metrics", reader.Stats())
			return
		case <-ticker.C:
			m.storeSample(reader.Sample())
		}
	}
}

// Latest returns the most recent sample for the given GPU.
func (m *Manager) Latest(gpuID string) (Sample, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sample, ok := m.latest[gpuID]
	return sample, ok
}

// LatestGPUMetrics returns the most recent decoded gpu_metrics table of a GPU.
func (m *Manager) LatestGPUMetrics(gpuID string) (*gpumetrics.Snapshot, bool) {
	sample, ok := m.Latest(gpuID)
	if !ok || sample.GPUMetrics == nil {
		return nil, false
	}
	return sample.GPUMetrics, true
}

// Subscribe registers a listener for updates on the given GPU. The latest
// sample, when there is one, is delivered immediately.
func (m *Manager) Subscribe(gpuID string) (<-chan Sample, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.readers[gpuID]; !ok {
		return nil, nil, fmt.Errorf("unknown gpu %q", gpuID)
	}

	sub := newSubscriber()
	subs, ok := m.subscribers[gpuID]
	if !ok {
		subs = make(map[*subscriber]struct{})
		m.subscribers[gpuID] = subs
	}
	subs[sub] = struct{}{}

	if sample, ok := m.latest[gpuID]; ok {
		sub.send(sample)
	}

	return sub.channel(), func() { m.removeSubscriber(gpuID, sub) }, nil
}

// GPUIDs returns the sorted list of GPU ids managed by the sampler.
func (m *Manager) GPUIDs() []string {
	ids := make([]string, 0, len(m.readers))
	for id := range m.readers {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// DecodeStats returns the gpu_metrics decode counters of one GPU.
func (m *Manager) DecodeStats(gpuID string) (DecodeStats, bool) {
	reader, ok := m.readers[gpuID]
	if !ok || reader == nil {
		return DecodeStats{}, false
	}
	return reader.Stats(), true
}

// Ready reports whether every GPU has published at least one sample.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for id := range m.readers {
		if _, ok := m.latest[id]; !ok {
			return false
		}
	}
	return true
}

func (m *Manager) storeSample(sample Sample) {
	m.mu.Lock()
	prev, seen := m.latest[sample.GPUId]
	m.latest[sample.GPUId] = sample

	targets := make([]*subscriber, 0, len(m.subscribers[sample.GPUId]))
	for sub := range m.subscribers[sample.GPUId] {
		targets = append(targets, sub)
	}
	m.mu.Unlock()

	if !seen || prev.GPUMetricsRevision != sample.GPUMetricsRevision {
		m.logger.Info("gpu_metrics revision",
			"gpu_id", sample.GPUId,
			"revision", sample.GPUMetricsRevision,
			"previous", prev.GPUMetricsRevision,
		)
	}

	for _, sub := range targets {
		sub.send(sample)
	}
}

func (m *Manager) removeSubscriber(gpuID string, sub *subscriber) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if subs, ok := m.subscribers[gpuID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(m.subscribers, gpuID)
		}
	}
	sub.close()
}

// Close releases all reader resources. Safe for repeated use.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() {
		var errs []error
		for id, reader := range m.readers {
			if reader == nil {
				continue
			}
			if err := reader.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close reader %s: %w", id, err))
			}
		}
		m.closeErr = errors.Join(errs...)
	})
	return m.closeErr
}
