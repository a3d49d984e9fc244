package health

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/futurespeakai/sage-router/internal/observability"
	"github.com/futurespeakai/sage-router/internal/types"
)

const (
	// DefaultInterval is how often the background loop re-probes providers.
	DefaultInterval = 60 * time.Second
	// DefaultProbeTimeout bounds a single probe so routing never waits long
	// on a dead upstream.
	DefaultProbeTimeout = 5 * time.Second
)

// Prober is the slice of a provider client the monitor needs.
type Prober interface {
	Name() types.Provider
	HealthCheck(ctx context.Context) error
}

// Monitor maintains a best-effort, eventually-stale view of provider
// availability. The record table is the only shared mutable state in the
// service and is guarded by an RWMutex; readers never trigger a live probe.
type Monitor struct {
	mu      sync.RWMutex
	records map[types.Provider]*types.ProviderHealthRecord

	probers      map[types.Provider]Prober
	interval     time.Duration
	probeTimeout time.Duration
	logger       *logrus.Logger

	stop chan struct{}
	done chan struct{}
}

// NewMonitor creates a monitor with no records. Unknown providers report
// healthy until a probe or a recorded failure says otherwise.
func NewMonitor(interval, probeTimeout time.Duration, logger *logrus.Logger) *Monitor {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	return &Monitor{
		records:      make(map[types.Provider]*types.ProviderHealthRecord),
		probers:      make(map[types.Provider]Prober),
		interval:     interval,
		probeTimeout: probeTimeout,
		logger:       logger,
	}
}

// Register adds a provider to the periodic probe set.
func (m *Monitor) Register(p Prober) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.probers[p.Name()] = p
}

// Start launches the background probe loop. An immediate sweep runs first
// so the table is populated before the first tick.
func (m *Monitor) Start(ctx context.Context) {
	m.mu.Lock()
	if m.stop != nil {
		m.mu.Unlock()
		return
	}
	m.stop = make(chan struct{})
	m.done = make(chan struct{})
	stop, done := m.stop, m.done
	m.mu.Unlock()

	go func() {
		defer close(done)
		m.CheckAll(ctx)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.CheckAll(ctx)
			case <-stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop terminates the probe loop and waits for it to exit.
func (m *Monitor) Stop() {
	m.mu.Lock()
	stop, done := m.stop, m.done
	m.stop, m.done = nil, nil
	m.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

// CheckAll probes every registered provider once.
func (m *Monitor) CheckAll(ctx context.Context) {
	m.mu.RLock()
	probers := make([]Prober, 0, len(m.probers))
	for _, p := range m.probers {
		probers = append(probers, p)
	}
	m.mu.RUnlock()

	for _, p := range probers {
		m.CheckHealth(ctx, p)
	}
}

// CheckHealth issues one bounded probe and updates the provider's record.
// A probe failure is recorded, never returned to a routing caller.
func (m *Monitor) CheckHealth(ctx context.Context, p Prober) types.ProviderHealthRecord {
	probeCtx, cancel := context.WithTimeout(ctx, m.probeTimeout)
	defer cancel()

	start := time.Now()
	err := p.HealthCheck(probeCtx)
	latency := time.Since(start)

	if err != nil {
		probeErr := &types.HealthProbeError{Provider: p.Name(), Err: err}
		m.logger.WithError(probeErr).WithField("provider", p.Name()).Warn("Provider health probe failed")
		return m.RecordFailure(p.Name(), latency, probeErr)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.record(p.Name())
	rec.IsHealthy = true
	rec.LastChecked = time.Now()
	rec.ResponseTimeMs = latency.Milliseconds()
	rec.ErrorCount = 0
	rec.LastError = ""
	observability.ProviderHealthy.WithLabelValues(string(p.Name())).Set(1)
	return *rec
}

// IsHealthy returns the cached status without probing. Providers with no
// record yet are optimistically healthy so a cold start refuses nothing.
func (m *Monitor) IsHealthy(provider types.Provider) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.records[provider]
	if !ok {
		return true
	}
	return rec.IsHealthy
}

// HealthyProviders returns the providers currently considered healthy, in
// canonical order.
func (m *Monitor) HealthyProviders() []types.Provider {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Provider, 0, len(types.AllProviders))
	for _, p := range types.AllProviders {
		if rec, ok := m.records[p]; ok && !rec.IsHealthy {
			continue
		}
		out = append(out, p)
	}
	return out
}

// Records returns a snapshot of every known health record.
func (m *Monitor) Records() []types.ProviderHealthRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.ProviderHealthRecord, 0, len(m.records))
	for _, p := range types.AllProviders {
		if rec, ok := m.records[p]; ok {
			out = append(out, *rec)
		}
	}
	return out
}

// RecordSuccess notes a successful provider call made outside the probe
// loop. It marks the provider healthy but leaves the error count alone;
// only a probe or an explicit reset clears it.
func (m *Monitor) RecordSuccess(provider types.Provider, latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.record(provider)
	rec.IsHealthy = true
	rec.LastChecked = time.Now()
	rec.ResponseTimeMs = latency.Milliseconds()
	observability.ProviderHealthy.WithLabelValues(string(provider)).Set(1)
}

// RecordFailure notes a failed provider call and marks the provider
// unhealthy until white-listed again by a successful probe or call.
func (m *Monitor) RecordFailure(provider types.Provider, latency time.Duration, err error) types.ProviderHealthRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.record(provider)
	rec.IsHealthy = false
	rec.LastChecked = time.Now()
	rec.ResponseTimeMs = latency.Milliseconds()
	rec.ErrorCount++
	rec.LastError = err.Error()
	observability.ProviderHealthy.WithLabelValues(string(provider)).Set(0)
	return *rec
}

// ResetErrors clears a provider's error count. Admin action only.
func (m *Monitor) ResetErrors(provider types.Provider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.record(provider)
	rec.ErrorCount = 0
	rec.LastError = ""
}

// record returns the provider's record, creating an optimistic one if
// missing. Callers must hold the write lock.
func (m *Monitor) record(provider types.Provider) *types.ProviderHealthRecord {
	rec, ok := m.records[provider]
	if !ok {
		rec = &types.ProviderHealthRecord{Provider: provider, IsHealthy: true}
		m.records[provider] = rec
	}
	return rec
}
