package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/futurespeakai/sage-router/internal/health"
	"github.com/futurespeakai/sage-router/internal/learning"
	"github.com/futurespeakai/sage-router/internal/middleware"
	"github.com/futurespeakai/sage-router/internal/observability"
	"github.com/futurespeakai/sage-router/internal/providers"
	"github.com/futurespeakai/sage-router/internal/routing"
	"github.com/futurespeakai/sage-router/internal/types"
)

// Server is the HTTP front of the content generation service.
type Server struct {
	router   *routing.Router
	registry *providers.Registry
	monitor  *health.Monitor
	store    routing.ConfigStore
	engine   *learning.Engine

	httpServer         *http.Server
	logger             *logrus.Logger
	config             *Config
	securityMiddleware *middleware.SecurityMiddleware
}

// Config holds server configuration
type Config struct {
	Port           string                               `yaml:"port"`
	ReadTimeout    time.Duration                        `yaml:"read_timeout"`
	WriteTimeout   time.Duration                        `yaml:"write_timeout"`
	MaxHeaderBytes int                                  `yaml:"max_header_bytes"`
	RequestTimeout time.Duration                        `yaml:"request_timeout"`
	Security       *middleware.SecurityMiddlewareConfig `yaml:"security"`
}

// Deps bundles the components the server fronts.
type Deps struct {
	Router   *routing.Router
	Registry *providers.Registry
	Monitor  *health.Monitor
	Store    routing.ConfigStore
	Engine   *learning.Engine
}

// NewServer creates a new server instance
func NewServer(deps Deps, config *Config, logger *logrus.Logger) (*Server, error) {
	server := &Server{
		router:   deps.Router,
		registry: deps.Registry,
		monitor:  deps.Monitor,
		store:    deps.Store,
		engine:   deps.Engine,
		logger:   logger,
		config:   config,
	}

	if config.Security != nil {
		securityMiddleware, err := middleware.NewSecurityMiddleware(config.Security, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize security middleware: %w", err)
		}
		server.securityMiddleware = securityMiddleware
	}

	return server, nil
}

// Start starts the HTTP server
func (s *Server) Start() error {
	r := s.setupRoutes()

	s.httpServer = &http.Server{
		Addr:           ":" + s.config.Port,
		Handler:        r,
		ReadTimeout:    s.config.ReadTimeout,
		WriteTimeout:   s.config.WriteTimeout,
		MaxHeaderBytes: s.config.MaxHeaderBytes,
	}

	s.logger.WithField("port", s.config.Port).Info("Starting SAGE router server")
	return s.httpServer.ListenAndServe()
}

// Stop stops the HTTP server gracefully
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Stopping SAGE router server")

	if s.securityMiddleware != nil {
		s.securityMiddleware.Stop()
	}

	return s.httpServer.Shutdown(ctx)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *mux.Router {
	r := mux.NewRouter()

	if s.securityMiddleware != nil {
		r.Use(s.securityMiddleware.Handler())
		r.Use(s.securityMiddleware.CORSMiddleware(s.corsOrigins()))
	}

	r.Use(s.metricsMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.contentTypeMiddleware)

	api := r.PathPrefix("/api").Subrouter()

	// Generation
	api.HandleFunc("/generate", s.handleGenerate).Methods("POST")
	api.HandleFunc("/generate-image", s.handleGenerateImage).Methods("POST")

	// Routing
	api.HandleFunc("/test-routing-decision", s.handleTestRoutingDecision).Methods("POST")
	api.HandleFunc("/validate-routing", s.handleValidateRouting).Methods("POST")
	api.HandleFunc("/routing-config", s.handleGetRoutingConfig).Methods("GET")
	api.HandleFunc("/routing-config", s.handleUpdateRoutingConfig).Methods("POST")
	api.HandleFunc("/routing-config", s.handleResetRoutingConfig).Methods("DELETE")

	// Provider health
	api.HandleFunc("/provider-health", s.handleProviderHealth).Methods("GET")
	api.HandleFunc("/provider-health/{name}/reset-errors", s.handleResetProviderErrors).Methods("POST")

	// Learning
	api.HandleFunc("/learning/health", s.handleLearningHealth).Methods("GET")
	api.HandleFunc("/learning/events", s.handleLearningEvent).Methods("POST")
	api.HandleFunc("/learning/recommendations", s.handleRecommendations).Methods("POST")
	api.HandleFunc("/learning/insights/{industry}", s.handleInsights).Methods("GET")

	// Service health and metrics
	r.HandleFunc("/health", s.handleHealthCheck).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.setupDocsRoutes(r)

	return r
}

// Middleware

func (s *Server) metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: 200}
		next.ServeHTTP(wrapped, r)

		route := r.URL.Path
		if current := mux.CurrentRoute(r); current != nil {
			if tmpl, err := current.GetPathTemplate(); err == nil {
				route = tmpl
			}
		}

		observability.HTTPRequests.WithLabelValues(route, r.Method, strconv.Itoa(wrapped.statusCode)).Inc()
		observability.HTTPDuration.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: 200}
		next.ServeHTTP(wrapped, r)

		s.logger.WithFields(logrus.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      wrapped.statusCode,
			"duration_ms": time.Since(start).Milliseconds(),
			"user_agent":  r.UserAgent(),
			"remote_addr": r.RemoteAddr,
		}).Info("HTTP request")
	})
}

// corsOrigins returns the configured allowed origins, open by default.
func (s *Server) corsOrigins() []string {
	if s.config.Security != nil && s.config.Security.Auth != nil && len(s.config.Security.Auth.AllowedOrigins) > 0 {
		return s.config.Security.Auth.AllowedOrigins
	}
	return []string{"*"}
}

func (s *Server) contentTypeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost || r.Method == http.MethodPut {
			contentType := r.Header.Get("Content-Type")
			if contentType != "application/json" && contentType != "" {
				s.writeErrorResponse(w, http.StatusUnsupportedMediaType, "Content-Type must be application/json", "api_error")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// requestContext bounds generation work by the configured request timeout.
func (s *Server) requestContext(r *http.Request) (context.Context, context.CancelFunc) {
	if s.config.RequestTimeout > 0 {
		return context.WithTimeout(r.Context(), s.config.RequestTimeout)
	}
	return r.Context(), func() {}
}

// Handlers

// handleGenerate routes a prompt to the best provider and executes it,
// falling back along the category chain on failure.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req types.GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err), "invalid_request")
		return
	}

	if req.UserPrompt == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "userPrompt is required", "invalid_request")
		return
	}

	cfg := s.store.Get()
	decision := s.router.RouteWithConfig(req.UserPrompt, "", cfg)
	if req.Model != "" {
		decision.Model = req.Model
	}

	var messages []types.Message
	if req.SystemPrompt != "" {
		messages = append(messages, types.Message{Role: "system", Content: req.SystemPrompt})
	}
	messages = append(messages, types.Message{Role: "user", Content: req.UserPrompt})

	ctx, cancel := s.requestContext(r)
	defer cancel()

	result, err := s.router.Execute(ctx, decision, messages, types.GenerateOptions{
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	})
	if err != nil {
		var failure *types.GenerationFailure
		if errors.As(err, &failure) {
			s.logger.WithFields(logrus.Fields{
				"providers": failure.Providers(),
				"query_len": len(req.UserPrompt),
			}).Error("Generation exhausted all providers")
			s.writeErrorResponse(w, http.StatusBadGateway, err.Error(), "generation_failure")
			return
		}
		s.writeErrorResponse(w, http.StatusInternalServerError, err.Error(), "api_error")
		return
	}

	s.recordGeneration(result)

	response := types.GenerateResponse{
		Content:  result.Content,
		Provider: result.Provider,
		Model:    result.Model,
		Routed:   cfg.Enabled && cfg.ManualProvider == "",
	}

	s.writeJSON(w, http.StatusOK, response)
}

// recordGeneration feeds a completed generation into the learning engine.
func (s *Server) recordGeneration(result *types.ProviderResult) {
	if s.engine == nil {
		return
	}

	event := &learning.Event{
		Type: learning.ContentGenerated,
		Data: learning.EventData{
			ContentGenerated: &learning.ContentGeneratedData{
				ContentType: "text",
				Provider:    string(result.Provider),
				Model:       result.Model,
				WordCount:   len(result.Content) / 5,
			},
		},
	}
	if err := s.engine.Record(event); err != nil {
		s.logger.WithError(err).Debug("Failed to record generation event")
	}
}

// handleGenerateImage generates images via the configured image provider.
func (s *Server) handleGenerateImage(w http.ResponseWriter, r *http.Request) {
	var req types.ImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err), "invalid_request")
		return
	}

	if req.Prompt == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "prompt is required", "invalid_request")
		return
	}

	provider, err := s.registry.Image(types.ProviderOpenAI)
	if err != nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "image generation is not available", "api_error")
		return
	}

	ctx, cancel := s.requestContext(r)
	defer cancel()

	result, err := provider.GenerateImages(ctx, req)
	if err != nil {
		s.logger.WithError(err).Error("Image generation failed")
		s.writeErrorResponse(w, http.StatusBadGateway, err.Error(), "generation_failure")
		return
	}

	if s.engine != nil {
		event := &learning.Event{
			Type: learning.VisualGenerated,
			Data: learning.EventData{
				VisualGenerated: &learning.VisualGeneratedData{
					Prompt:     req.Prompt,
					Provider:   string(result.Provider),
					ImageCount: len(result.Images),
				},
			},
		}
		if err := s.engine.Record(event); err != nil {
			s.logger.WithError(err).Debug("Failed to record visual event")
		}
	}

	s.writeJSON(w, http.StatusOK, result)
}

// handleTestRoutingDecision returns the routing decision for a query
// without executing it.
func (s *Server) handleTestRoutingDecision(w http.ResponseWriter, r *http.Request) {
	var req routing.RouteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err), "invalid_request")
		return
	}

	if req.Query == "" {
		s.writeErrorResponse(w, http.StatusBadRequest, "query is required", "invalid_request")
		return
	}

	start := time.Now()
	var decision routing.Decision
	if req.Config != nil {
		decision = s.router.RouteWithConfig(req.Query, req.Context, *req.Config)
	} else {
		decision = s.router.Route(req.Query, req.Context)
	}
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0

	response := map[string]interface{}{
		"decision":       decision,
		"responseTimeMs": elapsed,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleValidateRouting runs the built-in classification suite.
func (s *Server) handleValidateRouting(w http.ResponseWriter, r *http.Request) {
	summary, results := s.router.RunValidationSuite()

	response := map[string]interface{}{
		"summary": summary,
		"results": results,
	}

	s.writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleGetRoutingConfig(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.store.Get())
}

func (s *Server) handleUpdateRoutingConfig(w http.ResponseWriter, r *http.Request) {
	var update routing.RoutingConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err), "invalid_request")
		return
	}

	cfg, err := s.store.Update(update)
	if err != nil {
		var validationErr *types.ConfigValidationError
		if errors.As(err, &validationErr) {
			s.writeErrorResponse(w, http.StatusBadRequest, validationErr.Error(), "validation_error")
			return
		}
		s.writeErrorResponse(w, http.StatusInternalServerError, err.Error(), "api_error")
		return
	}

	s.writeJSON(w, http.StatusOK, cfg)
}

func (s *Server) handleResetRoutingConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := s.store.Reset()
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, err.Error(), "api_error")
		return
	}

	s.writeJSON(w, http.StatusOK, cfg)
}

// handleProviderHealth returns the health table for all providers.
func (s *Server) handleProviderHealth(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"providers":        s.monitor.Records(),
		"healthyProviders": s.monitor.HealthyProviders(),
		"timestamp":        time.Now().Unix(),
	}

	s.writeJSON(w, http.StatusOK, response)
}

// handleResetProviderErrors clears the accumulated error count for one
// provider. This is the only path that resets the counter besides a
// successful probe.
func (s *Server) handleResetProviderErrors(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	provider, err := types.ParseProvider(vars["name"])
	if err != nil {
		s.writeErrorResponse(w, http.StatusNotFound, err.Error(), "invalid_request")
		return
	}

	s.monitor.ResetErrors(provider)

	s.logger.WithField("provider", provider).Info("Provider error count reset")
	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"provider": provider,
		"status":   "reset",
	})
}

// handleLearningHealth reports the learning engine's intake state.
func (s *Server) handleLearningHealth(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		s.writeJSON(w, http.StatusOK, learning.Health{Status: "disabled"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.engine.Health())
}

// handleLearningEvent ingests one learning event.
func (s *Server) handleLearningEvent(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "learning engine is not available", "api_error")
		return
	}

	var event learning.Event
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err), "invalid_request")
		return
	}

	if err := s.engine.Record(&event); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, err.Error(), "validation_error")
		return
	}

	s.writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"status": "accepted",
		"id":     event.ID,
	})
}

// handleRecommendations computes recommendations from recorded events.
func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "learning engine is not available", "api_error")
		return
	}

	var req learning.RecommendationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeErrorResponse(w, http.StatusBadRequest, fmt.Sprintf("Invalid JSON: %v", err), "invalid_request")
		return
	}

	recommendations := s.engine.Recommendations(req)
	if recommendations == nil {
		recommendations = []learning.Recommendation{}
	}

	s.writeJSON(w, http.StatusOK, map[string]interface{}{
		"recommendations": recommendations,
	})
}

// handleInsights returns aggregated insight for one industry.
func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		s.writeErrorResponse(w, http.StatusServiceUnavailable, "learning engine is not available", "api_error")
		return
	}

	vars := mux.Vars(r)
	s.writeJSON(w, http.StatusOK, s.engine.Insights(vars["industry"]))
}

// handleHealthCheck returns overall service status. Providers being
// down degrades the status but the service itself still answers.
func (s *Server) handleHealthCheck(w http.ResponseWriter, r *http.Request) {
	records := s.monitor.Records()

	status := "healthy"
	for _, record := range records {
		if !record.IsHealthy {
			status = "degraded"
			break
		}
	}

	response := map[string]interface{}{
		"status":    status,
		"providers": records,
		"timestamp": time.Now().Unix(),
	}
	if s.securityMiddleware != nil {
		response["security"] = s.securityMiddleware.GetStats()
	}

	s.writeJSON(w, http.StatusOK, response)
}

// Helper functions

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(v)
}

func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, message, errType string) {
	s.writeJSON(w, statusCode, types.ErrorResponse{
		Error: types.ErrorDetail{
			Message: message,
			Type:    errType,
			Code:    strconv.Itoa(statusCode),
		},
	})
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
