package types

import (
	"fmt"
	"strings"
)

// ProviderError reports a single failed provider call. Clients surface the
// first error immediately; retries belong to the router.
type ProviderError struct {
	Provider   Provider
	StatusCode int
	Message    string
	Err        error
}

func (e *ProviderError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: %s (status %d)", e.Provider, e.Message, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError wraps err as a provider failure, keeping the cause
// available for errors.As / errors.Is.
func NewProviderError(provider Provider, statusCode int, message string, err error) *ProviderError {
	return &ProviderError{Provider: provider, StatusCode: statusCode, Message: message, Err: err}
}

// GenerationFailure is terminal: every provider in the fallback chain failed.
// Attempts preserves the order in which providers were tried.
type GenerationFailure struct {
	Attempts []*ProviderError
}

func (e *GenerationFailure) Error() string {
	parts := make([]string, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		parts = append(parts, a.Error())
	}
	return fmt.Sprintf("all providers failed: %s", strings.Join(parts, "; "))
}

// Providers returns the providers attempted, in order.
func (e *GenerationFailure) Providers() []Provider {
	out := make([]Provider, 0, len(e.Attempts))
	for _, a := range e.Attempts {
		out = append(out, a.Provider)
	}
	return out
}

// ConfigValidationError rejects a malformed routing config at the update
// boundary, before it can influence a routing decision.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("invalid routing config: %s: %s", e.Field, e.Message)
}

// HealthProbeError records a failed health check. It is written into the
// health table and never propagated to a routing caller.
type HealthProbeError struct {
	Provider Provider
	Err      error
}

func (e *HealthProbeError) Error() string {
	return fmt.Sprintf("health probe failed for %s: %v", e.Provider, e.Err)
}

func (e *HealthProbeError) Unwrap() error {
	return e.Err
}
