package integration_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/futurespeakai/sage-router/internal/config"
	"github.com/futurespeakai/sage-router/internal/health"
	"github.com/futurespeakai/sage-router/internal/learning"
	"github.com/futurespeakai/sage-router/internal/providers"
	"github.com/futurespeakai/sage-router/internal/routing"
	"github.com/futurespeakai/sage-router/internal/types"
)

type stubProvider struct {
	name    types.Provider
	model   string
	failing bool
}

func (p *stubProvider) Name() types.Provider { return p.name }
func (p *stubProvider) DefaultModel() string { return p.model }

func (p *stubProvider) Generate(ctx context.Context, messages []types.Message, opts types.GenerateOptions) (*types.ProviderResult, error) {
	if p.failing {
		return nil, errors.New("upstream unavailable")
	}
	model := opts.Model
	if model == "" {
		model = p.model
	}
	return &types.ProviderResult{
		Content:  fmt.Sprintf("response from %s", p.name),
		Model:    model,
		Provider: p.name,
	}, nil
}

func (p *stubProvider) HealthCheck(ctx context.Context) error {
	if p.failing {
		return errors.New("upstream unavailable")
	}
	return nil
}

type pipeline struct {
	router  *routing.Router
	monitor *health.Monitor
	store   routing.ConfigStore
	engine  *learning.Engine
	openai  *stubProvider
}

func newPipeline(t *testing.T) *pipeline {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel) // Reduce noise during tests

	openaiStub := &stubProvider{name: types.ProviderOpenAI, model: "gpt-4o"}

	registry := providers.NewRegistry()
	registry.RegisterChat(openaiStub)
	registry.RegisterChat(&stubProvider{name: types.ProviderAnthropic, model: "claude-sonnet-4-20250514"})
	registry.RegisterChat(&stubProvider{name: types.ProviderGemini, model: "gemini-1.5-flash-002"})

	monitor := health.NewMonitor(time.Hour, time.Second, logger)
	store := routing.NewFileConfigStore(filepath.Join(t.TempDir(), "routing_config.json"), logger)

	router, err := routing.NewRouter(registry, monitor, store, logger)
	if err != nil {
		t.Fatalf("Failed to create router: %v", err)
	}

	engine := learning.NewEngine(&learning.Config{
		Enabled:       true,
		BufferSize:    100,
		FlushInterval: time.Hour,
	}, logger)
	t.Cleanup(engine.Stop)

	return &pipeline{
		router:  router,
		monitor: monitor,
		store:   store,
		engine:  engine,
		openai:  openaiStub,
	}
}

func TestRoutingPipeline(t *testing.T) {
	p := newPipeline(t)

	decision := p.router.Route("Write a blog post announcing our product launch", "")
	if decision.Provider != types.ProviderOpenAI {
		t.Fatalf("Expected creative query to route to openai, got %s", decision.Provider)
	}

	ctx := context.Background()
	messages := []types.Message{{Role: "user", Content: "Write a blog post announcing our product launch"}}

	result, err := p.router.Execute(ctx, decision, messages, types.GenerateOptions{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Provider != types.ProviderOpenAI {
		t.Fatalf("Expected result from openai, got %s", result.Provider)
	}

	// Feed the outcome back into the learning engine the way the server does.
	err = p.engine.Record(&learning.Event{
		SessionID: "session-1",
		Type:      learning.ContentGenerated,
		Data: learning.EventData{
			ContentGenerated: &learning.ContentGeneratedData{
				ContentType: "blog",
				Provider:    string(result.Provider),
				Model:       result.Model,
				Industry:    "saas",
			},
		},
	})
	if err != nil {
		t.Fatalf("Failed to record learning event: %v", err)
	}

	// Drain the async intake buffer before reading, as in
	// internal/learning/engine_test.go.
	p.engine.Stop()

	recs := p.engine.Recommendations(learning.RecommendationRequest{Industry: "saas"})
	if len(recs) == 0 {
		t.Fatal("Expected at least one recommendation after recording an event")
	}
}

func TestRoutingPipelineFallback(t *testing.T) {
	p := newPipeline(t)
	p.openai.failing = true

	decision := p.router.Route("Draft a catchy tagline for the campaign", "")
	if decision.Provider != types.ProviderOpenAI {
		t.Fatalf("Expected creative query to route to openai, got %s", decision.Provider)
	}

	result, err := p.router.Execute(context.Background(), decision, []types.Message{
		{Role: "user", Content: "Draft a catchy tagline for the campaign"},
	}, types.GenerateOptions{})
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if result.Provider != types.ProviderAnthropic {
		t.Fatalf("Expected fallback to anthropic, got %s", result.Provider)
	}

	// The failed attempt must show up in the health table.
	found := false
	for _, rec := range p.monitor.Records() {
		if rec.Provider == types.ProviderOpenAI {
			found = true
			if rec.ErrorCount == 0 {
				t.Fatal("Expected openai error count to be recorded")
			}
		}
	}
	if !found {
		t.Fatal("Expected a health record for openai")
	}
}

func TestRoutingPipelineManualOverride(t *testing.T) {
	p := newPipeline(t)

	manual := "gemini"
	if _, err := p.store.Update(routing.RoutingConfigUpdate{ManualProvider: &manual}); err != nil {
		t.Fatalf("Failed to update routing config: %v", err)
	}

	decision := p.router.Route("Write a blog post announcing our product launch", "")
	if decision.Provider != types.ProviderGemini {
		t.Fatalf("Expected manual override to gemini, got %s", decision.Provider)
	}
	if decision.Rationale != "manual override" {
		t.Fatalf("Expected manual override rationale, got %q", decision.Rationale)
	}

	if _, err := p.store.Reset(); err != nil {
		t.Fatalf("Failed to reset routing config: %v", err)
	}
	decision = p.router.Route("Write a blog post announcing our product launch", "")
	if decision.Provider != types.ProviderOpenAI {
		t.Fatalf("Expected classifier routing after reset, got %s", decision.Provider)
	}
}

func TestConfigurationLoading(t *testing.T) {
	// Test loading configuration with mock API keys set
	t.Setenv("OPENAI_API_KEY", "test-openai-key")
	t.Setenv("ANTHROPIC_API_KEY", "test-anthropic-key")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("PERPLEXITY_API_KEY", "")
	t.Setenv("PINECONE_API_KEY", "")

	// Test loading configuration with defaults (no file)
	cfg, err := config.LoadConfig("")
	if err != nil {
		t.Fatalf("Failed to load default config: %v", err)
	}

	// Verify defaults
	if cfg.Server.Port != "8080" {
		t.Fatalf("Expected default port '8080', got %s", cfg.Server.Port)
	}

	if cfg.Logging.Level != "info" {
		t.Fatalf("Expected default log level 'info', got %s", cfg.Logging.Level)
	}

	// Test server config conversion
	serverConfig := cfg.ToServerConfig()
	if serverConfig.Port != cfg.Server.Port {
		t.Fatalf("Server config conversion failed")
	}

	// Test enabled providers (should have both with API keys)
	enabledProviders := cfg.EnabledProviders()
	if len(enabledProviders) != 2 {
		t.Fatalf("Expected 2 enabled providers with API keys, got %d", len(enabledProviders))
	}
}

func BenchmarkRouting(b *testing.B) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel) // Minimal logging for benchmark

	registry := providers.NewRegistry()
	registry.RegisterChat(&stubProvider{name: types.ProviderOpenAI, model: "gpt-4o"})
	registry.RegisterChat(&stubProvider{name: types.ProviderAnthropic, model: "claude-sonnet-4-20250514"})
	registry.RegisterChat(&stubProvider{name: types.ProviderGemini, model: "gemini-1.5-flash-002"})

	monitor := health.NewMonitor(time.Hour, time.Second, logger)
	store := routing.NewFileConfigStore(filepath.Join(b.TempDir(), "routing_config.json"), logger)

	router, err := routing.NewRouter(registry, monitor, store, logger)
	if err != nil {
		b.Fatalf("Failed to create router: %v", err)
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		router.Route("Research the competitive landscape for our market entry", "")
	}
}
