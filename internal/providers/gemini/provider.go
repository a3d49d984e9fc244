package gemini

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"github.com/futurespeakai/sage-router/internal/providers"
	"github.com/futurespeakai/sage-router/internal/types"
)

const defaultModel = "gemini-1.5-flash-002"

// Provider wraps the Gemini API. Gemini enforces strict per-minute quotas
// on lower tiers, so calls go through a client-side rate limiter.
type Provider struct {
	client  *genai.Client
	config  *Config
	limiter *rate.Limiter
	logger  *logrus.Logger
}

// Config holds Gemini-specific configuration.
type Config struct {
	APIKey            string        `yaml:"api_key"`
	DefaultModel      string        `yaml:"default_model"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	Timeout           time.Duration `yaml:"timeout"`
}

// New creates a Gemini provider instance.
func New(ctx context.Context, config *Config, logger *logrus.Logger) (*Provider, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(config.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	rpm := config.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}

	return &Provider{
		client:  client,
		config:  config,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 1),
		logger:  logger,
	}, nil
}

func (p *Provider) Name() types.Provider {
	return types.ProviderGemini
}

func (p *Provider) DefaultModel() string {
	if p.config.DefaultModel != "" {
		return p.config.DefaultModel
	}
	return defaultModel
}

// Generate performs a single content generation call. The genai client
// has no per-request timeout knob, so the configured timeout bounds the
// call through the context.
func (p *Provider) Generate(ctx context.Context, messages []types.Message, opts types.GenerateOptions) (*types.ProviderResult, error) {
	if p.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.config.Timeout)
		defer cancel()
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, types.NewProviderError(types.ProviderGemini, 0, "rate limiter wait aborted", err)
	}

	modelName := opts.Model
	if modelName == "" {
		modelName = p.DefaultModel()
	}

	model := p.client.GenerativeModel(modelName)
	if opts.Temperature != nil {
		model.SetTemperature(*opts.Temperature)
	}
	if opts.MaxTokens != nil {
		model.SetMaxOutputTokens(int32(*opts.MaxTokens))
	}

	// Gemini takes the system prompt as a separate instruction and the
	// rest of the conversation as a flat prompt.
	var prompt strings.Builder
	for _, msg := range messages {
		if msg.Role == "system" {
			model.SystemInstruction = &genai.Content{
				Parts: []genai.Part{genai.Text(msg.Content)},
			}
			continue
		}
		if prompt.Len() > 0 {
			prompt.WriteString("\n\n")
		}
		prompt.WriteString(msg.Content)
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt.String()))
	if err != nil {
		p.logger.WithError(err).WithField("model", modelName).Error("Gemini content generation failed")
		return nil, types.NewProviderError(types.ProviderGemini, 0, err.Error(), err)
	}

	content := extractText(resp)
	if content == "" {
		return nil, types.NewProviderError(types.ProviderGemini, 0, "empty response from gemini", nil)
	}

	return &types.ProviderResult{
		Content:  content,
		Model:    modelName,
		Provider: types.ProviderGemini,
	}, nil
}

// HealthCheck issues a minimal single-token generation.
func (p *Provider) HealthCheck(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return types.NewProviderError(types.ProviderGemini, 0, "rate limiter wait aborted", err)
	}

	model := p.client.GenerativeModel(p.DefaultModel())
	model.SetMaxOutputTokens(1)
	if _, err := model.GenerateContent(ctx, genai.Text("ping")); err != nil {
		return types.NewProviderError(types.ProviderGemini, 0, err.Error(), err)
	}
	p.logger.Debug("Gemini health check passed")
	return nil
}

// Close releases the underlying API client.
func (p *Provider) Close() error {
	return p.client.Close()
}

func extractText(resp *genai.GenerateContentResponse) string {
	var out strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				out.WriteString(string(text))
			}
		}
	}
	return out.String()
}

var _ providers.ChatProvider = (*Provider)(nil)
