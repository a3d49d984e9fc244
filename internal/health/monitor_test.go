package health

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"

	"github.com/futurespeakai/sage-router/internal/observability"
	"github.com/futurespeakai/sage-router/internal/types"
)

type fakeProber struct {
	name  types.Provider
	err   error
	calls int
}

func (f *fakeProber) Name() types.Provider { return f.name }

func (f *fakeProber) HealthCheck(ctx context.Context) error {
	f.calls++
	return f.err
}

func newTestMonitor() *Monitor {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	return NewMonitor(time.Minute, time.Second, logger)
}

func TestMonitor_OptimisticDefault(t *testing.T) {
	m := newTestMonitor()

	// No record yet: a cold system must not refuse any provider.
	if !m.IsHealthy(types.ProviderOpenAI) {
		t.Error("Unknown provider should default to healthy")
	}

	healthy := m.HealthyProviders()
	if len(healthy) != len(types.AllProviders) {
		t.Errorf("Expected all %d providers healthy on cold start, got %d", len(types.AllProviders), len(healthy))
	}
}

func TestMonitor_CheckHealth_Success(t *testing.T) {
	m := newTestMonitor()
	prober := &fakeProber{name: types.ProviderAnthropic}

	rec := m.CheckHealth(context.Background(), prober)

	if !rec.IsHealthy {
		t.Error("Expected healthy record after successful probe")
	}
	if rec.ErrorCount != 0 {
		t.Errorf("Expected error count 0, got %d", rec.ErrorCount)
	}
	if rec.LastChecked.IsZero() {
		t.Error("LastChecked should be set")
	}
	if prober.calls != 1 {
		t.Errorf("Expected 1 probe call, got %d", prober.calls)
	}
}

func TestMonitor_CheckHealth_Failure(t *testing.T) {
	m := newTestMonitor()
	prober := &fakeProber{name: types.ProviderGemini, err: errors.New("connection refused")}

	rec := m.CheckHealth(context.Background(), prober)

	if rec.IsHealthy {
		t.Error("Expected unhealthy record after failed probe")
	}
	if rec.ErrorCount != 1 {
		t.Errorf("Expected error count 1, got %d", rec.ErrorCount)
	}
	if rec.LastError == "" {
		t.Error("LastError should be recorded")
	}
	if m.IsHealthy(types.ProviderGemini) {
		t.Error("IsHealthy should reflect the failed probe")
	}

	// Error count accumulates across failures.
	rec = m.CheckHealth(context.Background(), prober)
	if rec.ErrorCount != 2 {
		t.Errorf("Expected error count 2 after second failure, got %d", rec.ErrorCount)
	}

	// Recovery resets the count.
	prober.err = nil
	rec = m.CheckHealth(context.Background(), prober)
	if !rec.IsHealthy || rec.ErrorCount != 0 {
		t.Errorf("Expected healthy record with reset count, got %+v", rec)
	}
}

func TestMonitor_RecordSuccessKeepsErrorCount(t *testing.T) {
	m := newTestMonitor()

	m.RecordFailure(types.ProviderOpenAI, 10*time.Millisecond, errors.New("timeout"))
	m.RecordFailure(types.ProviderOpenAI, 10*time.Millisecond, errors.New("timeout"))
	m.RecordSuccess(types.ProviderOpenAI, 20*time.Millisecond)

	if !m.IsHealthy(types.ProviderOpenAI) {
		t.Error("Provider should be healthy after a successful call")
	}

	recs := m.Records()
	if len(recs) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(recs))
	}
	if recs[0].ErrorCount != 2 {
		t.Errorf("Error count should survive a successful call, got %d", recs[0].ErrorCount)
	}
}

func TestMonitor_ResetErrors(t *testing.T) {
	m := newTestMonitor()

	m.RecordFailure(types.ProviderPerplexity, time.Millisecond, errors.New("boom"))
	m.ResetErrors(types.ProviderPerplexity)

	recs := m.Records()
	if len(recs) != 1 {
		t.Fatalf("Expected 1 record, got %d", len(recs))
	}
	if recs[0].ErrorCount != 0 || recs[0].LastError != "" {
		t.Errorf("Expected cleared errors, got %+v", recs[0])
	}
}

func TestMonitor_HealthyProvidersExcludesUnhealthy(t *testing.T) {
	m := newTestMonitor()

	m.RecordFailure(types.ProviderAnthropic, time.Millisecond, errors.New("down"))

	for _, p := range m.HealthyProviders() {
		if p == types.ProviderAnthropic {
			t.Error("Unhealthy provider should not appear in HealthyProviders")
		}
	}
}

func TestMonitor_StartStop(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	m := NewMonitor(10*time.Millisecond, time.Second, logger)

	prober := &fakeProber{name: types.ProviderOpenAI}
	m.Register(prober)

	m.Start(context.Background())
	time.Sleep(35 * time.Millisecond)
	m.Stop()

	// Initial sweep plus at least one tick.
	if prober.calls < 2 {
		t.Errorf("Expected at least 2 probe calls, got %d", prober.calls)
	}

	// Stop is idempotent.
	m.Stop()
}

func TestMonitor_HealthGaugeTracksRecords(t *testing.T) {
	m := newTestMonitor()
	gauge := observability.ProviderHealthy.WithLabelValues(string(types.ProviderPerplexity))

	m.RecordFailure(types.ProviderPerplexity, time.Millisecond, errors.New("boom"))
	if got := testutil.ToFloat64(gauge); got != 0 {
		t.Errorf("Expected gauge 0 after failure, got %v", got)
	}

	m.RecordSuccess(types.ProviderPerplexity, time.Millisecond)
	if got := testutil.ToFloat64(gauge); got != 1 {
		t.Errorf("Expected gauge 1 after success, got %v", got)
	}

	m.RecordFailure(types.ProviderPerplexity, time.Millisecond, errors.New("boom"))
	m.CheckHealth(context.Background(), &fakeProber{name: types.ProviderPerplexity})
	if got := testutil.ToFloat64(gauge); got != 1 {
		t.Errorf("Expected gauge 1 after successful probe, got %v", got)
	}
}
