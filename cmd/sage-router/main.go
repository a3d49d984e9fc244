package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/futurespeakai/sage-router/internal/config"
	"github.com/futurespeakai/sage-router/internal/health"
	"github.com/futurespeakai/sage-router/internal/learning"
	"github.com/futurespeakai/sage-router/internal/providers"
	"github.com/futurespeakai/sage-router/internal/providers/anthropic"
	"github.com/futurespeakai/sage-router/internal/providers/gemini"
	"github.com/futurespeakai/sage-router/internal/providers/openai"
	"github.com/futurespeakai/sage-router/internal/providers/perplexity"
	"github.com/futurespeakai/sage-router/internal/providers/pinecone"
	"github.com/futurespeakai/sage-router/internal/routing"
	"github.com/futurespeakai/sage-router/internal/server"
)

// Application represents the main application
type Application struct {
	config  *config.Config
	server  *server.Server
	monitor *health.Monitor
	engine  *learning.Engine
	logger  *logrus.Logger
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	// Load configuration
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup logger
	logger := logrus.New()
	if err := setupLogger(logger, cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to setup logger: %w", err)
	}

	// Create health monitor
	monitor := health.NewMonitor(cfg.Router.HealthCheckInterval, cfg.Router.HealthProbeTimeout, logger)

	// Register providers
	registry := providers.NewRegistry()
	if err := registerProviders(registry, monitor, cfg, logger); err != nil {
		return nil, fmt.Errorf("failed to register providers: %w", err)
	}

	// Create routing config store and router
	store := routing.NewFileConfigStore(cfg.Router.ConfigPath, logger)
	routerInstance, err := routing.NewRouter(registry, monitor, store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create router: %w", err)
	}

	// Create learning engine
	learningConfig := cfg.ToLearningConfig()
	engine := learning.NewEngine(&learningConfig, logger)

	// Create server
	serverInstance, err := server.NewServer(server.Deps{
		Router:   routerInstance,
		Registry: registry,
		Monitor:  monitor,
		Store:    store,
		Engine:   engine,
	}, cfg.ToServerConfig(), logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create server: %w", err)
	}

	return &Application{
		config:  cfg,
		server:  serverInstance,
		monitor: monitor,
		engine:  engine,
		logger:  logger,
	}, nil
}

// Run starts the application
func (app *Application) Run() error {
	app.logger.WithField("providers", app.config.EnabledProviders()).Info("Starting SAGE Router")

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start background health monitoring
	app.monitor.Start(ctx)

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		app.logger.WithField("address", ":"+app.config.Server.Port).Info("HTTP server starting")
		if err := app.server.Start(); err != nil {
			serverErrors <- fmt.Errorf("server failed to start: %w", err)
		}
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		app.logger.WithField("signal", sig.String()).Info("Shutdown signal received")
	}

	// Graceful shutdown
	app.logger.Info("Starting graceful shutdown...")

	// Create shutdown context with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	// Shutdown server first so in-flight requests drain before the
	// monitor and learning engine go away.
	if err := app.server.Stop(shutdownCtx); err != nil {
		app.logger.WithError(err).Error("Server shutdown error")
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.monitor.Stop()
	app.engine.Stop()

	app.logger.Info("Graceful shutdown completed")
	return nil
}

// setupLogger configures the logger based on configuration
func setupLogger(logger *logrus.Logger, config config.LoggingConfig) error {
	// Set log level
	level, err := logrus.ParseLevel(config.Level)
	if err != nil {
		return fmt.Errorf("invalid log level %s: %w", config.Level, err)
	}
	logger.SetLevel(level)

	// Set log format
	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339,
		})
	default:
		return fmt.Errorf("invalid log format: %s", config.Format)
	}

	// Set output
	switch config.Output {
	case "stdout":
		logger.SetOutput(os.Stdout)
	case "stderr":
		logger.SetOutput(os.Stderr)
	default:
		// Assume it's a file path
		file, err := os.OpenFile(config.Output, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return fmt.Errorf("failed to open log file %s: %w", config.Output, err)
		}
		logger.SetOutput(file)
	}

	return nil
}

// registerProviders registers all configured providers with the registry
// and wires each one into the health monitor.
func registerProviders(registry *providers.Registry, monitor *health.Monitor, cfg *config.Config, logger *logrus.Logger) error {
	providersRegistered := 0

	// Register OpenAI provider if configured
	if cfg.Providers.OpenAI != nil && cfg.Providers.OpenAI.APIKey != "" {
		openaiProvider := openai.New(cfg.Providers.OpenAI, logger)
		registry.RegisterChat(openaiProvider)
		registry.RegisterImage(openaiProvider)
		monitor.Register(openaiProvider)
		logger.WithFields(logrus.Fields{
			"provider": "openai",
			"model":    openaiProvider.DefaultModel(),
		}).Info("OpenAI provider registered")
		providersRegistered++
	}

	// Register Anthropic provider if configured
	if cfg.Providers.Anthropic != nil && cfg.Providers.Anthropic.APIKey != "" {
		anthropicProvider := anthropic.New(cfg.Providers.Anthropic, logger)
		registry.RegisterChat(anthropicProvider)
		monitor.Register(anthropicProvider)
		logger.WithFields(logrus.Fields{
			"provider": "anthropic",
			"model":    anthropicProvider.DefaultModel(),
		}).Info("Anthropic provider registered")
		providersRegistered++
	}

	// Register Gemini provider if configured
	if cfg.Providers.Gemini != nil && cfg.Providers.Gemini.APIKey != "" {
		geminiProvider, err := gemini.New(context.Background(), cfg.Providers.Gemini, logger)
		if err != nil {
			return fmt.Errorf("failed to create gemini provider: %w", err)
		}
		registry.RegisterChat(geminiProvider)
		monitor.Register(geminiProvider)
		logger.WithFields(logrus.Fields{
			"provider": "gemini",
			"model":    geminiProvider.DefaultModel(),
		}).Info("Gemini provider registered")
		providersRegistered++
	}

	// Register Perplexity provider if configured
	if cfg.Providers.Perplexity != nil && cfg.Providers.Perplexity.APIKey != "" {
		perplexityProvider := perplexity.New(cfg.Providers.Perplexity, logger)
		registry.RegisterChat(perplexityProvider)
		monitor.Register(perplexityProvider)
		logger.WithFields(logrus.Fields{
			"provider": "perplexity",
			"model":    perplexityProvider.DefaultModel(),
		}).Info("Perplexity provider registered")
		providersRegistered++
	}

	// Register Pinecone assistant provider if configured
	if cfg.Providers.Pinecone != nil && cfg.Providers.Pinecone.APIKey != "" {
		pineconeProvider := pinecone.New(cfg.Providers.Pinecone, logger)
		registry.RegisterChat(pineconeProvider)
		monitor.Register(pineconeProvider)
		logger.WithFields(logrus.Fields{
			"provider":  "pinecone",
			"assistant": cfg.Providers.Pinecone.AssistantName,
		}).Info("Pinecone assistant provider registered")
		providersRegistered++
	}

	if providersRegistered == 0 {
		return fmt.Errorf("no providers were registered - check your configuration and API keys")
	}

	logger.WithField("count", providersRegistered).Info("Provider registration completed")
	return nil
}

// printUsage prints application usage information
func printUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options]\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
	fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
	fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY          OpenAI API key\n")
	fmt.Fprintf(os.Stderr, "  ANTHROPIC_API_KEY       Anthropic API key\n")
	fmt.Fprintf(os.Stderr, "  GEMINI_API_KEY          Google Gemini API key\n")
	fmt.Fprintf(os.Stderr, "  PERPLEXITY_API_KEY      Perplexity API key\n")
	fmt.Fprintf(os.Stderr, "  PINECONE_API_KEY        Pinecone assistant API key\n")
	fmt.Fprintf(os.Stderr, "  SAGE_ROUTER_PORT        Server port (default: 8080)\n")
	fmt.Fprintf(os.Stderr, "  SAGE_ROUTER_JWT_SECRET  JWT signing secret\n")
	fmt.Fprintf(os.Stderr, "  SAGE_ROUTER_LOG_LEVEL   Log level (debug,info,warn,error,fatal)\n")
	fmt.Fprintf(os.Stderr, "  SAGE_ROUTER_LOG_FORMAT  Log format (json,text)\n")
	fmt.Fprintf(os.Stderr, "\nExamples:\n")
	fmt.Fprintf(os.Stderr, "  %s --config configs/config.yaml\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "  OPENAI_API_KEY=sk-xxx ANTHROPIC_API_KEY=sk-ant-xxx %s\n", os.Args[0])
}

func main() {
	// Parse command line flags
	var (
		configPath = flag.String("config", "", "Path to configuration file")
		showHelp   = flag.Bool("help", false, "Show help message")
		version    = flag.Bool("version", false, "Show version information")
	)
	flag.Parse()

	// Show help if requested
	if *showHelp {
		printUsage()
		os.Exit(0)
	}

	// Show version if requested
	if *version {
		fmt.Printf("SAGE Router v1.0.0\n")
		fmt.Printf("Build Date: %s\n", time.Now().Format("2006-01-02"))
		os.Exit(0)
	}

	// Create and run application
	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create application: %v\n", err)
		os.Exit(1)
	}

	// Run application
	if err := app.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Application error: %v\n", err)
		os.Exit(1)
	}
}
