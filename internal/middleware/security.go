package middleware

import (
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/futurespeakai/sage-router/internal/security"
)

// SecurityMiddlewareConfig holds configuration for the security middleware stack
type SecurityMiddlewareConfig struct {
	Auth       *security.Config          `yaml:"auth"`
	RateLimit  *security.RateLimitConfig `yaml:"rate_limit"`
	Validation *ValidationConfig         `yaml:"validation"`
}

// SecurityMiddleware combines authentication, rate limiting, and
// request-shape validation into one chain.
type SecurityMiddleware struct {
	authProvider *security.DefaultAuthProvider
	rateLimiter  security.RateLimiter
	validator    *ValidationMiddleware
	logger       *logrus.Logger
}

// NewSecurityMiddleware creates a new security middleware stack
func NewSecurityMiddleware(config *SecurityMiddlewareConfig, logger *logrus.Logger) (*SecurityMiddleware, error) {
	var authProvider *security.DefaultAuthProvider
	if config.Auth != nil {
		authProvider = security.NewDefaultAuthProvider(config.Auth, logger)
	}

	var rateLimiter security.RateLimiter
	if config.RateLimit != nil && config.RateLimit.Enabled {
		rateLimiter = security.NewInMemoryRateLimiter(config.RateLimit, logger)
	}

	var validator *ValidationMiddleware
	var err error
	if config.Validation != nil {
		validator, err = NewValidationMiddleware(config.Validation, logger)
		if err != nil {
			return nil, err
		}
	}

	return &SecurityMiddleware{
		authProvider: authProvider,
		rateLimiter:  rateLimiter,
		validator:    validator,
		logger:       logger,
	}, nil
}

// Handler creates the complete security middleware chain
func (s *SecurityMiddleware) Handler() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		// Build the chain in reverse order so requests flow
		// auth, rate limit, validation, handler.
		handler := next

		if s.validator != nil {
			handler = s.validator.Middleware(handler)
		}

		if s.rateLimiter != nil {
			handler = security.RateLimitMiddleware(s.rateLimiter, security.DefaultKeyExtractor)(handler)
		}

		if s.authProvider != nil {
			handler = s.authProvider.AuthMiddleware()(handler)
		}

		handler = s.securityHeadersMiddleware()(handler)

		return handler
	}
}

// securityHeadersMiddleware adds security headers to responses
func (s *SecurityMiddleware) securityHeadersMiddleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			w.Header().Set("X-Frame-Options", "DENY")
			w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
			w.Header().Set("Content-Security-Policy", "default-src 'self'")

			w.Header().Set("Server", "SAGE-Router/1.0")
			w.Header().Set("X-API-Version", "1.0")

			next.ServeHTTP(w, r)
		})
	}
}

// Stop gracefully stops all middleware components
func (s *SecurityMiddleware) Stop() {
	if rateLimiter, ok := s.rateLimiter.(*security.InMemoryRateLimiter); ok {
		rateLimiter.Stop()
	}
}

// GetStats returns security middleware statistics
func (s *SecurityMiddleware) GetStats() map[string]interface{} {
	return map[string]interface{}{
		"authentication_enabled": s.authProvider != nil,
		"rate_limiter_enabled":   s.rateLimiter != nil,
		"validation_enabled":     s.validator != nil && s.validator.enabled,
	}
}

// CORSMiddleware creates CORS middleware for cross-origin requests
func (s *SecurityMiddleware) CORSMiddleware(allowedOrigins []string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := false
			for _, allowedOrigin := range allowedOrigins {
				if allowedOrigin == "*" || allowedOrigin == origin {
					allowed = true
					break
				}
			}

			if allowed {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-API-Key")
				w.Header().Set("Access-Control-Max-Age", "86400")
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
