package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/futurespeakai/sage-router/internal/health"
	"github.com/futurespeakai/sage-router/internal/learning"
	"github.com/futurespeakai/sage-router/internal/middleware"
	"github.com/futurespeakai/sage-router/internal/providers"
	"github.com/futurespeakai/sage-router/internal/routing"
	"github.com/futurespeakai/sage-router/internal/security"
	"github.com/futurespeakai/sage-router/internal/types"
)

type mockChatProvider struct {
	name  types.Provider
	model string
	err   error
}

func (m *mockChatProvider) Name() types.Provider { return m.name }
func (m *mockChatProvider) DefaultModel() string { return m.model }

func (m *mockChatProvider) Generate(ctx context.Context, messages []types.Message, opts types.GenerateOptions) (*types.ProviderResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	model := opts.Model
	if model == "" {
		model = m.model
	}
	return &types.ProviderResult{
		Content:  "generated by " + string(m.name),
		Model:    model,
		Provider: m.name,
	}, nil
}

func (m *mockChatProvider) HealthCheck(ctx context.Context) error { return m.err }

type mockImageProvider struct {
	name types.Provider
}

func (m *mockImageProvider) Name() types.Provider { return m.name }

func (m *mockImageProvider) GenerateImages(ctx context.Context, req types.ImageRequest) (*types.ImageResult, error) {
	return &types.ImageResult{
		Images:   []types.GeneratedImage{{URL: "https://img.example/1.png"}},
		Model:    "dall-e-3",
		Provider: m.name,
	}, nil
}

type serverFixture struct {
	server  *Server
	handler http.Handler
	engine  *learning.Engine
	monitor *health.Monitor
}

func newServerFixture(t *testing.T) *serverFixture {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	registry := providers.NewRegistry()
	registry.RegisterChat(&mockChatProvider{name: types.ProviderAnthropic, model: "claude-sonnet-4-20250514"})
	registry.RegisterChat(&mockChatProvider{name: types.ProviderOpenAI, model: "gpt-4o"})
	registry.RegisterChat(&mockChatProvider{name: types.ProviderGemini, model: "gemini-1.5-flash-002"})
	registry.RegisterImage(&mockImageProvider{name: types.ProviderOpenAI})

	monitor := health.NewMonitor(time.Hour, time.Second, logger)
	store := routing.NewFileConfigStore(filepath.Join(t.TempDir(), "routing.json"), logger)

	router, err := routing.NewRouter(registry, monitor, store, logger)
	require.NoError(t, err)

	engine := learning.NewEngine(&learning.Config{
		Enabled:       true,
		BufferSize:    100,
		FlushInterval: time.Hour,
	}, logger)
	t.Cleanup(engine.Stop)

	srv, err := NewServer(Deps{
		Router:   router,
		Registry: registry,
		Monitor:  monitor,
		Store:    store,
		Engine:   engine,
	}, &Config{Port: "0"}, logger)
	require.NoError(t, err)

	return &serverFixture{
		server:  srv,
		handler: srv.setupRoutes(),
		engine:  engine,
		monitor: monitor,
	}
}

func (f *serverFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Buffer
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewBuffer(data)
	} else {
		reader = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(rec.Body).Decode(v))
}

func TestHandleGenerate(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, "POST", "/api/generate", types.GenerateRequest{
		UserPrompt:   "Write a campaign headline for our product launch",
		SystemPrompt: "You are a copywriter.",
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.GenerateResponse
	decodeBody(t, rec, &resp)

	assert.Equal(t, types.ProviderOpenAI, resp.Provider)
	assert.Equal(t, "generated by openai", resp.Content)
	assert.True(t, resp.Routed)
}

func TestHandleGenerate_MissingPrompt(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, "POST", "/api/generate", types.GenerateRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp types.ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "invalid_request", resp.Error.Type)
}

func TestHandleGenerate_ManualOverrideNotRouted(t *testing.T) {
	f := newServerFixture(t)

	manual := "gemini"
	rec := f.do(t, "POST", "/api/routing-config", routing.RoutingConfigUpdate{
		ManualProvider: &manual,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, "POST", "/api/generate", types.GenerateRequest{
		UserPrompt: "Write a campaign headline",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp types.GenerateResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, types.ProviderGemini, resp.Provider)
	assert.False(t, resp.Routed)
}

func TestHandleGenerateImage(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, "POST", "/api/generate-image", types.ImageRequest{
		Prompt: "A mascot for a coffee brand",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result types.ImageResult
	decodeBody(t, rec, &result)
	assert.Len(t, result.Images, 1)
	assert.Equal(t, types.ProviderOpenAI, result.Provider)
}

func TestHandleTestRoutingDecision(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, "POST", "/api/test-routing-decision", routing.RouteRequest{
		Query: "Research our competitive landscape",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Decision       routing.Decision `json:"decision"`
		ResponseTimeMs float64          `json:"responseTimeMs"`
	}
	decodeBody(t, rec, &resp)

	assert.Equal(t, types.ProviderAnthropic, resp.Decision.Provider)
	assert.Equal(t, routing.CategoryResearch, resp.Decision.Category)
	assert.True(t, resp.Decision.UseReasoning)
}

func TestHandleTestRoutingDecision_RequestConfig(t *testing.T) {
	f := newServerFixture(t)

	// A config in the body applies to this request only.
	rec := f.do(t, "POST", "/api/test-routing-decision", routing.RouteRequest{
		Query: "Research our competitive landscape",
		Config: &routing.RoutingConfig{
			Enabled:        true,
			ManualProvider: types.ProviderGemini,
		},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Decision routing.Decision `json:"decision"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, types.ProviderGemini, resp.Decision.Provider)
	assert.Equal(t, "manual override", resp.Decision.Rationale)

	// The stored config is untouched.
	rec = f.do(t, "GET", "/api/routing-config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var stored routing.RoutingConfig
	decodeBody(t, rec, &stored)
	assert.Empty(t, stored.ManualProvider)
}

func TestRoutingConfigEndpoints(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, "GET", "/api/routing-config", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var cfg routing.RoutingConfig
	decodeBody(t, rec, &cfg)
	assert.True(t, cfg.Enabled)
	assert.Empty(t, cfg.ManualProvider)

	manual := "anthropic"
	model := "claude-sonnet-4-20250514"
	rec = f.do(t, "POST", "/api/routing-config", routing.RoutingConfigUpdate{
		ManualProvider: &manual,
		ManualModel:    &model,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	var updated routing.RoutingConfig
	decodeBody(t, rec, &updated)
	assert.Equal(t, types.ProviderAnthropic, updated.ManualProvider)
	assert.Equal(t, model, updated.ManualModel)

	rec = f.do(t, "DELETE", "/api/routing-config", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	// Cleared fields are omitted from the response, so decode fresh.
	var reset routing.RoutingConfig
	decodeBody(t, rec, &reset)
	assert.Empty(t, reset.ManualProvider)
	assert.True(t, reset.Enabled)
}

func TestRoutingConfig_InvalidUpdate(t *testing.T) {
	f := newServerFixture(t)

	// Model without a provider
	model := "gpt-4o"
	rec := f.do(t, "POST", "/api/routing-config", routing.RoutingConfigUpdate{
		ManualModel: &model,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp types.ErrorResponse
	decodeBody(t, rec, &resp)
	assert.Equal(t, "validation_error", resp.Error.Type)

	// Provider outside the manual set
	manual := "perplexity"
	rec = f.do(t, "POST", "/api/routing-config", routing.RoutingConfigUpdate{
		ManualProvider: &manual,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleProviderHealth(t *testing.T) {
	f := newServerFixture(t)

	f.monitor.RecordFailure(types.ProviderGemini, 10*time.Millisecond, assert.AnError)

	rec := f.do(t, "GET", "/api/provider-health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Providers        []types.ProviderHealthRecord `json:"providers"`
		HealthyProviders []types.Provider             `json:"healthyProviders"`
	}
	decodeBody(t, rec, &resp)

	assert.NotEmpty(t, resp.Providers)
	assert.NotContains(t, resp.HealthyProviders, types.ProviderGemini)
}

func TestHandleResetProviderErrors(t *testing.T) {
	f := newServerFixture(t)

	f.monitor.RecordFailure(types.ProviderOpenAI, 10*time.Millisecond, assert.AnError)

	rec := f.do(t, "POST", "/api/provider-health/openai/reset-errors", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	for _, record := range f.monitor.Records() {
		if record.Provider == types.ProviderOpenAI {
			assert.Equal(t, int64(0), record.ErrorCount)
		}
	}

	rec = f.do(t, "POST", "/api/provider-health/bogus/reset-errors", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleValidateRouting(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, "POST", "/api/validate-routing", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Summary routing.ValidationSummary `json:"summary"`
		Results []json.RawMessage         `json:"results"`
	}
	decodeBody(t, rec, &resp)

	assert.Equal(t, resp.Summary.TotalTests, resp.Summary.Passed)
	assert.Equal(t, 1.0, resp.Summary.SuccessRate)
	assert.Len(t, resp.Results, resp.Summary.TotalTests)
}

func TestLearningEndpoints(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, "GET", "/api/learning/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var healthResp learning.Health
	decodeBody(t, rec, &healthResp)
	assert.Equal(t, "ok", healthResp.Status)

	event := learning.Event{
		SessionID: "session-1",
		Type:      learning.ContentGenerated,
		Data: learning.EventData{
			ContentGenerated: &learning.ContentGeneratedData{
				ContentType: "blog_post",
				Provider:    "openai",
				Industry:    "saas",
			},
		},
	}
	rec = f.do(t, "POST", "/api/learning/events", event)
	require.Equal(t, http.StatusAccepted, rec.Code)

	var accepted map[string]interface{}
	decodeBody(t, rec, &accepted)
	assert.Equal(t, "accepted", accepted["status"])
	assert.NotEmpty(t, accepted["id"])

	// Event with mismatched data is rejected
	bad := learning.Event{
		Type: learning.ResearchQuery,
		Data: learning.EventData{
			ContentGenerated: &learning.ContentGeneratedData{ContentType: "x"},
		},
	}
	rec = f.do(t, "POST", "/api/learning/events", bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, "POST", "/api/learning/recommendations", learning.RecommendationRequest{Industry: "saas"})
	require.Equal(t, http.StatusOK, rec.Code)

	var recs struct {
		Recommendations []learning.Recommendation `json:"recommendations"`
	}
	decodeBody(t, rec, &recs)
	assert.NotNil(t, recs.Recommendations)

	rec = f.do(t, "GET", "/api/learning/insights/saas", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var insight learning.IndustryInsight
	decodeBody(t, rec, &insight)
	assert.Equal(t, "saas", insight.Industry)
}

func TestHandleHealthCheck(t *testing.T) {
	f := newServerFixture(t)

	rec := f.do(t, "GET", "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]interface{}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "healthy", resp["status"])
}

func TestContentTypeMiddleware(t *testing.T) {
	f := newServerFixture(t)

	req := httptest.NewRequest("POST", "/api/generate", bytes.NewBufferString("{}"))
	req.Header.Set("Content-Type", "text/xml")
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

type slowChatProvider struct {
	name types.Provider
}

func (m *slowChatProvider) Name() types.Provider { return m.name }
func (m *slowChatProvider) DefaultModel() string { return "slow-model" }

func (m *slowChatProvider) Generate(ctx context.Context, messages []types.Message, opts types.GenerateOptions) (*types.ProviderResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(time.Second):
		return &types.ProviderResult{Content: "late", Model: "slow-model", Provider: m.name}, nil
	}
}

func (m *slowChatProvider) HealthCheck(ctx context.Context) error { return nil }

func TestHandleGenerate_RequestTimeout(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	registry := providers.NewRegistry()
	registry.RegisterChat(&slowChatProvider{name: types.ProviderAnthropic})
	registry.RegisterChat(&slowChatProvider{name: types.ProviderOpenAI})
	registry.RegisterChat(&slowChatProvider{name: types.ProviderGemini})

	monitor := health.NewMonitor(time.Hour, time.Second, logger)
	store := routing.NewFileConfigStore(filepath.Join(t.TempDir(), "routing.json"), logger)
	router, err := routing.NewRouter(registry, monitor, store, logger)
	require.NoError(t, err)

	srv, err := NewServer(Deps{
		Router:   router,
		Registry: registry,
		Monitor:  monitor,
		Store:    store,
	}, &Config{Port: "0", RequestTimeout: 30 * time.Millisecond}, logger)
	require.NoError(t, err)
	handler := srv.setupRoutes()

	body, err := json.Marshal(types.GenerateRequest{UserPrompt: "Write a launch announcement"})
	require.NoError(t, err)

	start := time.Now()
	req := httptest.NewRequest("POST", "/api/generate", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}

func TestServer_CORSAndSecurityStats(t *testing.T) {
	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)

	registry := providers.NewRegistry()
	registry.RegisterChat(&mockChatProvider{name: types.ProviderAnthropic, model: "claude-sonnet-4-20250514"})
	registry.RegisterChat(&mockChatProvider{name: types.ProviderOpenAI, model: "gpt-4o"})
	registry.RegisterChat(&mockChatProvider{name: types.ProviderGemini, model: "gemini-1.5-flash-002"})

	monitor := health.NewMonitor(time.Hour, time.Second, logger)
	store := routing.NewFileConfigStore(filepath.Join(t.TempDir(), "routing.json"), logger)
	router, err := routing.NewRouter(registry, monitor, store, logger)
	require.NoError(t, err)

	srv, err := NewServer(Deps{
		Router:   router,
		Registry: registry,
		Monitor:  monitor,
		Store:    store,
	}, &Config{
		Port: "0",
		Security: &middleware.SecurityMiddlewareConfig{
			Auth: &security.Config{AllowedOrigins: []string{"https://app.example.com"}},
		},
	}, logger)
	require.NoError(t, err)
	t.Cleanup(func() { srv.securityMiddleware.Stop() })
	handler := srv.setupRoutes()

	// Configured origins are echoed, others are not.
	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://app.example.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest("GET", "/health", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))

	var resp struct {
		Status   string          `json:"status"`
		Security map[string]bool `json:"security"`
	}
	decodeBody(t, rec, &resp)
	assert.Equal(t, "healthy", resp.Status)
	assert.True(t, resp.Security["authentication_enabled"])
	assert.False(t, resp.Security["rate_limiter_enabled"])
}
