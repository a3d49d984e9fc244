package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/futurespeakai/sage-router/internal/types"
)

func TestProvider_Name(t *testing.T) {
	provider := createTestProvider(t, "")

	if provider.Name() != types.ProviderAnthropic {
		t.Errorf("Expected provider name 'anthropic', got %s", provider.Name())
	}
}

func TestProvider_DefaultModel(t *testing.T) {
	provider := createTestProvider(t, "")
	if provider.DefaultModel() == "" {
		t.Error("Default model should not be empty")
	}

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)
	custom := New(&Config{APIKey: "test", DefaultModel: "claude-3-5-haiku-latest"}, logger)
	if custom.DefaultModel() != "claude-3-5-haiku-latest" {
		t.Errorf("Expected configured default model, got %s", custom.DefaultModel())
	}
}

func TestProvider_Generate(t *testing.T) {
	var captured map[string]interface{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("Failed to decode request: %v", err)
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":    "msg_123",
			"type":  "message",
			"role":  "assistant",
			"model": "claude-sonnet-4-20250514",
			"content": []map[string]string{
				{"type": "text", "text": "A strategic answer"},
			},
			"stop_reason": "end_turn",
			"usage":       map[string]int{"input_tokens": 10, "output_tokens": 5},
		})
	}))
	defer server.Close()

	provider := createTestProvider(t, server.URL)

	result, err := provider.Generate(context.Background(), []types.Message{
		{Role: "system", Content: "You are a brand strategist."},
		{Role: "user", Content: "Outline a positioning strategy"},
	}, types.GenerateOptions{})
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if result.Content != "A strategic answer" {
		t.Errorf("Expected content 'A strategic answer', got %q", result.Content)
	}
	if result.Provider != types.ProviderAnthropic {
		t.Errorf("Expected provider anthropic, got %s", result.Provider)
	}

	// System turns must be lifted into the top-level system field.
	if captured["system"] == nil {
		t.Error("Expected system field in upstream request")
	}
	msgs, ok := captured["messages"].([]interface{})
	if !ok || len(msgs) != 1 {
		t.Fatalf("Expected exactly 1 conversation message upstream, got %v", captured["messages"])
	}
}

func TestProvider_Generate_Error(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"type": "error",
			"error": map[string]string{
				"type":    "invalid_request_error",
				"message": "model not found",
			},
		})
	}))
	defer server.Close()

	provider := createTestProvider(t, server.URL)

	_, err := provider.Generate(context.Background(), []types.Message{
		{Role: "user", Content: "Hello"},
	}, types.GenerateOptions{})
	if err == nil {
		t.Fatal("Expected error from failing upstream")
	}

	provErr, ok := err.(*types.ProviderError)
	if !ok {
		t.Fatalf("Expected *types.ProviderError, got %T", err)
	}
	if provErr.Provider != types.ProviderAnthropic {
		t.Errorf("Expected provider anthropic in error, got %s", provErr.Provider)
	}
}

// Helper functions
func createTestProvider(t *testing.T, baseURL string) *Provider {
	t.Helper()

	logger := logrus.New()
	logger.SetLevel(logrus.WarnLevel)

	config := &Config{
		APIKey:  "test-api-key",
		BaseURL: baseURL,
		Timeout: 30 * time.Second,
	}

	return New(config, logger)
}

func TestProvider_Generate_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	logger := logrus.New()
	logger.SetLevel(logrus.ErrorLevel)
	provider := New(&Config{
		APIKey:  "test-api-key",
		BaseURL: server.URL,
		Timeout: 20 * time.Millisecond,
	}, logger)

	_, err := provider.Generate(context.Background(), []types.Message{
		{Role: "user", Content: "Hello"},
	}, types.GenerateOptions{})
	if err == nil {
		t.Fatal("Expected a timeout error from a slow upstream")
	}

	if _, ok := err.(*types.ProviderError); !ok {
		t.Fatalf("Expected *types.ProviderError, got %T", err)
	}
}
