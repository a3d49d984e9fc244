package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/futurespeakai/sage-router/internal/learning"
	"github.com/futurespeakai/sage-router/internal/middleware"
	"github.com/futurespeakai/sage-router/internal/providers/anthropic"
	"github.com/futurespeakai/sage-router/internal/providers/gemini"
	"github.com/futurespeakai/sage-router/internal/providers/openai"
	"github.com/futurespeakai/sage-router/internal/providers/perplexity"
	"github.com/futurespeakai/sage-router/internal/providers/pinecone"
	"github.com/futurespeakai/sage-router/internal/security"
	"github.com/futurespeakai/sage-router/internal/server"
)

// defaultProviderTimeout bounds a single upstream generation call.
const defaultProviderTimeout = 60 * time.Second

// Config represents the complete application configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Router    RouterConfig    `yaml:"router"`
	Providers ProvidersConfig `yaml:"providers"`
	Learning  LearningConfig  `yaml:"learning"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port           string        `yaml:"port"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxHeaderBytes int           `yaml:"max_header_bytes"`
}

// RouterConfig holds routing engine configuration
type RouterConfig struct {
	HealthCheckInterval time.Duration `yaml:"health_check_interval"`
	HealthProbeTimeout  time.Duration `yaml:"health_probe_timeout"`
	RequestTimeout      time.Duration `yaml:"request_timeout"`
	ConfigPath          string        `yaml:"config_path"`
}

// ProvidersConfig holds configuration for all providers
type ProvidersConfig struct {
	OpenAI     *openai.Config     `yaml:"openai"`
	Anthropic  *anthropic.Config  `yaml:"anthropic"`
	Gemini     *gemini.Config     `yaml:"gemini"`
	Perplexity *perplexity.Config `yaml:"perplexity"`
	Pinecone   *pinecone.Config   `yaml:"pinecone"`
}

// LearningConfig holds learning engine configuration
type LearningConfig struct {
	Enabled       bool          `yaml:"enabled"`
	BufferSize    int           `yaml:"buffer_size"`
	FlushInterval time.Duration `yaml:"flush_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "json" or "text"
	Output string `yaml:"output"` // "stdout", "stderr", or file path
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	APIKeys      []string         `yaml:"api_keys"`
	JWTSecret    string           `yaml:"jwt_secret"`
	RateLimiting RateLimitConfig  `yaml:"rate_limiting"`
	CORS         CORSConfig       `yaml:"cors"`
	Validation   ValidationConfig `yaml:"validation"`
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled"`
	RequestsPerMin int  `yaml:"requests_per_minute"`
	BurstSize      int  `yaml:"burst_size"`
}

// CORSConfig holds CORS configuration
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// ValidationConfig holds OpenAPI request validation configuration
type ValidationConfig struct {
	Enabled  bool   `yaml:"enabled"`
	SpecPath string `yaml:"spec_path"`
}

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	config := &Config{}

	config.setDefaults()

	if configPath != "" {
		if err := config.loadFromFile(configPath); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	config.loadFromEnv()
	config.applyProviderDefaults()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyProviderDefaults fills per-provider timeouts so every upstream
// call is bounded even when the section came from a bare env key.
func (c *Config) applyProviderDefaults() {
	if c.Providers.OpenAI != nil && c.Providers.OpenAI.Timeout <= 0 {
		c.Providers.OpenAI.Timeout = defaultProviderTimeout
	}
	if c.Providers.Anthropic != nil && c.Providers.Anthropic.Timeout <= 0 {
		c.Providers.Anthropic.Timeout = defaultProviderTimeout
	}
	if c.Providers.Gemini != nil && c.Providers.Gemini.Timeout <= 0 {
		c.Providers.Gemini.Timeout = defaultProviderTimeout
	}
	if c.Providers.Perplexity != nil && c.Providers.Perplexity.Timeout <= 0 {
		c.Providers.Perplexity.Timeout = defaultProviderTimeout
	}
	if c.Providers.Pinecone != nil && c.Providers.Pinecone.Timeout <= 0 {
		c.Providers.Pinecone.Timeout = defaultProviderTimeout
	}
}

// setDefaults sets default configuration values
func (c *Config) setDefaults() {
	c.Server = ServerConfig{
		Port:           "8080",
		ReadTimeout:    30 * time.Second,
		WriteTimeout:   120 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1MB
	}

	c.Router = RouterConfig{
		HealthCheckInterval: 60 * time.Second,
		HealthProbeTimeout:  5 * time.Second,
		RequestTimeout:      120 * time.Second,
		ConfigPath:          "data/routing_config.json",
	}

	c.Learning = LearningConfig{
		Enabled:       true,
		BufferSize:    1000,
		FlushInterval: 5 * time.Second,
	}

	c.Logging = LoggingConfig{
		Level:  "info",
		Format: "json",
		Output: "stdout",
	}

	c.Security = SecurityConfig{
		APIKeys: []string{},
		RateLimiting: RateLimitConfig{
			Enabled:        false,
			RequestsPerMin: 60,
			BurstSize:      10,
		},
		CORS: CORSConfig{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization", "X-API-Key"},
		},
		Validation: ValidationConfig{
			Enabled:  false,
			SpecPath: "docs/openapi.yaml",
		},
	}

	c.Providers = ProvidersConfig{}
}

// loadFromFile loads configuration from YAML file
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML config: %w", err)
	}

	return nil
}

// loadFromEnv loads configuration from environment variables. A
// provider section is created when its API key env var is set, so a
// file-less deployment still comes up.
func (c *Config) loadFromEnv() {
	if port := os.Getenv("SAGE_ROUTER_PORT"); port != "" {
		c.Server.Port = port
	}

	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		if c.Providers.OpenAI == nil {
			c.Providers.OpenAI = &openai.Config{}
		}
		c.Providers.OpenAI.APIKey = key
	}

	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		if c.Providers.Anthropic == nil {
			c.Providers.Anthropic = &anthropic.Config{}
		}
		c.Providers.Anthropic.APIKey = key
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		if c.Providers.Gemini == nil {
			c.Providers.Gemini = &gemini.Config{}
		}
		c.Providers.Gemini.APIKey = key
	}

	if key := os.Getenv("PERPLEXITY_API_KEY"); key != "" {
		if c.Providers.Perplexity == nil {
			c.Providers.Perplexity = &perplexity.Config{}
		}
		c.Providers.Perplexity.APIKey = key
	}

	if key := os.Getenv("PINECONE_API_KEY"); key != "" {
		if c.Providers.Pinecone == nil {
			c.Providers.Pinecone = &pinecone.Config{}
		}
		c.Providers.Pinecone.APIKey = key
	}

	if secret := os.Getenv("SAGE_ROUTER_JWT_SECRET"); secret != "" {
		c.Security.JWTSecret = secret
	}

	if level := os.Getenv("SAGE_ROUTER_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}

	if format := os.Getenv("SAGE_ROUTER_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port cannot be empty")
	}

	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}

	if !validLogLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	if c.Providers.OpenAI != nil && c.Providers.OpenAI.APIKey == "" {
		return fmt.Errorf("OpenAI API key is required when the OpenAI provider is enabled")
	}

	if c.Providers.Anthropic != nil && c.Providers.Anthropic.APIKey == "" {
		return fmt.Errorf("Anthropic API key is required when the Anthropic provider is enabled")
	}

	if c.Providers.Gemini != nil && c.Providers.Gemini.APIKey == "" {
		return fmt.Errorf("Gemini API key is required when the Gemini provider is enabled")
	}

	if c.Providers.Perplexity != nil && c.Providers.Perplexity.APIKey == "" {
		return fmt.Errorf("Perplexity API key is required when the Perplexity provider is enabled")
	}

	if c.Providers.Pinecone != nil {
		if c.Providers.Pinecone.APIKey == "" {
			return fmt.Errorf("Pinecone API key is required when the Pinecone provider is enabled")
		}
		if c.Providers.Pinecone.AssistantName == "" {
			return fmt.Errorf("Pinecone assistant name is required when the Pinecone provider is enabled")
		}
	}

	// Classification routes across these three, so at least one must
	// be configured.
	if c.Providers.OpenAI == nil && c.Providers.Anthropic == nil && c.Providers.Gemini == nil {
		return fmt.Errorf("at least one of the openai, anthropic, or gemini providers must be configured")
	}

	return nil
}

// ToServerConfig converts to server.Config
func (c *Config) ToServerConfig() *server.Config {
	return &server.Config{
		Port:           c.Server.Port,
		ReadTimeout:    c.Server.ReadTimeout,
		WriteTimeout:   c.Server.WriteTimeout,
		MaxHeaderBytes: c.Server.MaxHeaderBytes,
		RequestTimeout: c.Router.RequestTimeout,
		Security:       c.ToSecurityMiddlewareConfig(),
	}
}

// ToSecurityMiddlewareConfig converts to middleware.SecurityMiddlewareConfig
func (c *Config) ToSecurityMiddlewareConfig() *middleware.SecurityMiddlewareConfig {
	return &middleware.SecurityMiddlewareConfig{
		Auth: &security.Config{
			APIKeys:        c.Security.APIKeys,
			JWTSecret:      c.Security.JWTSecret,
			RequireAuth:    len(c.Security.APIKeys) > 0,
			AllowedOrigins: c.Security.CORS.AllowedOrigins,
		},
		RateLimit: &security.RateLimitConfig{
			Enabled:           c.Security.RateLimiting.Enabled,
			RequestsPerMinute: c.Security.RateLimiting.RequestsPerMin,
			BurstSize:         c.Security.RateLimiting.BurstSize,
		},
		Validation: &middleware.ValidationConfig{
			Enabled:  c.Security.Validation.Enabled,
			SpecPath: c.Security.Validation.SpecPath,
		},
	}
}

// ToLearningConfig converts to learning.Config
func (c *Config) ToLearningConfig() learning.Config {
	return learning.Config{
		Enabled:       c.Learning.Enabled,
		BufferSize:    c.Learning.BufferSize,
		FlushInterval: c.Learning.FlushInterval,
	}
}

// SaveToFile saves the current configuration to a YAML file
func (c *Config) SaveToFile(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// EnabledProviders returns the names of providers with configuration present
func (c *Config) EnabledProviders() []string {
	var names []string

	if c.Providers.OpenAI != nil {
		names = append(names, "openai")
	}
	if c.Providers.Anthropic != nil {
		names = append(names, "anthropic")
	}
	if c.Providers.Gemini != nil {
		names = append(names, "gemini")
	}
	if c.Providers.Perplexity != nil {
		names = append(names, "perplexity")
	}
	if c.Providers.Pinecone != nil {
		names = append(names, "pinecone")
	}

	return names
}
