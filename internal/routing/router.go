package routing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/futurespeakai/sage-router/internal/health"
	"github.com/futurespeakai/sage-router/internal/observability"
	"github.com/futurespeakai/sage-router/internal/providers"
	"github.com/futurespeakai/sage-router/internal/types"
)

// Router maps queries to routing decisions and executes them against the
// provider registry with health-aware fallback.
type Router struct {
	registry *providers.Registry
	monitor  *health.Monitor
	store    ConfigStore
	logger   *logrus.Logger
}

// NewRouter wires the router and runs the chain completeness check, which
// is a startup invariant.
func NewRouter(registry *providers.Registry, monitor *health.Monitor, store ConfigStore, logger *logrus.Logger) (*Router, error) {
	if err := ValidateChains(); err != nil {
		return nil, fmt.Errorf("fallback chain validation failed: %w", err)
	}
	return &Router{
		registry: registry,
		monitor:  monitor,
		store:    store,
		logger:   logger,
	}, nil
}

// Route picks a provider, model and reasoning flag for the query using the
// stored routing config.
func (r *Router) Route(query, contextHint string) Decision {
	return r.RouteWithConfig(query, contextHint, r.store.Get())
}

// RouteWithConfig is Route with an explicit config, used by the routing
// test endpoint. Precedence: disabled switch, manual override, classifier.
func (r *Router) RouteWithConfig(query, contextHint string, cfg RoutingConfig) Decision {
	if !cfg.Enabled {
		target := categoryTargets[CategoryStrategic]
		return Decision{
			Provider:  target.provider,
			Model:     r.modelFor(target.provider, ""),
			Rationale: "routing disabled",
		}
	}

	if cfg.ManualProvider != "" {
		useReasoning := false
		if cfg.ForceReasoning != nil {
			useReasoning = *cfg.ForceReasoning
		}
		return Decision{
			Provider:     cfg.ManualProvider,
			Model:        r.modelFor(cfg.ManualProvider, cfg.ManualModel),
			UseReasoning: useReasoning,
			Rationale:    "manual override",
		}
	}

	category := Classify(query)
	target := categoryTargets[category]
	useReasoning := target.useReasoning
	if cfg.ForceReasoning != nil {
		useReasoning = *cfg.ForceReasoning
	}

	decision := Decision{
		Provider:     target.provider,
		Model:        r.modelFor(target.provider, ""),
		UseReasoning: useReasoning,
		Rationale:    rationaleFor(category),
		Category:     category,
	}

	observability.RoutingDecisions.WithLabelValues(string(category), string(decision.Provider)).Inc()
	r.logger.WithFields(logrus.Fields{
		"category":  category,
		"provider":  decision.Provider,
		"model":     decision.Model,
		"reasoning": decision.UseReasoning,
	}).Debug("Routing decision made")

	return decision
}

// Execute runs the decision against the providers with fallback. Attempts
// happen strictly in chain order, never more than len(chain) of them, and
// every attempt updates the health table. When the whole chain is unhealthy
// the original provider is tried anyway as a last resort.
func (r *Router) Execute(ctx context.Context, decision Decision, messages []types.Message, opts types.GenerateOptions) (*types.ProviderResult, error) {
	chain := r.chainFor(decision)

	candidates := make([]types.Provider, 0, len(chain))
	for _, p := range chain {
		if r.monitor.IsHealthy(p) {
			candidates = append(candidates, p)
		}
	}
	if len(candidates) == 0 {
		r.logger.WithField("provider", decision.Provider).Warn("All chain providers unhealthy, attempting original as last resort")
		candidates = []types.Provider{decision.Provider}
	}

	var attempts []*types.ProviderError
	for _, candidate := range candidates {
		if candidate != decision.Provider {
			observability.Fallbacks.WithLabelValues(string(decision.Provider), string(candidate)).Inc()
		}

		result, provErr := r.attempt(ctx, candidate, decision, messages, opts)
		if provErr == nil {
			return result, nil
		}
		attempts = append(attempts, provErr)
	}

	failure := &types.GenerationFailure{Attempts: attempts}
	r.logger.WithError(failure).Error("All providers in fallback chain failed")
	return nil, failure
}

// attempt makes a single provider call and records its outcome in the
// health table.
func (r *Router) attempt(ctx context.Context, candidate types.Provider, decision Decision, messages []types.Message, opts types.GenerateOptions) (*types.ProviderResult, *types.ProviderError) {
	client, err := r.registry.Chat(candidate)
	if err != nil {
		return nil, types.NewProviderError(candidate, 0, "provider not registered", err)
	}

	attemptOpts := opts
	if attemptOpts.Model == "" {
		if candidate == decision.Provider {
			attemptOpts.Model = decision.Model
		} else {
			// A model pinned for one provider means nothing to another.
			attemptOpts.Model = client.DefaultModel()
		}
	}

	start := time.Now()
	result, err := client.Generate(ctx, messages, attemptOpts)
	latency := time.Since(start)
	observability.ProviderLatency.WithLabelValues(string(candidate)).Observe(latency.Seconds())

	if err != nil {
		observability.ProviderRequests.WithLabelValues(string(candidate), "error").Inc()
		r.monitor.RecordFailure(candidate, latency, err)
		r.logger.WithError(err).WithField("provider", candidate).Warn("Provider attempt failed")

		var provErr *types.ProviderError
		if !errors.As(err, &provErr) {
			provErr = types.NewProviderError(candidate, 0, err.Error(), err)
		}
		return nil, provErr
	}

	observability.ProviderRequests.WithLabelValues(string(candidate), "success").Inc()
	r.monitor.RecordSuccess(candidate, latency)
	return result, nil
}

// chainFor returns the attempt order for a decision. Decisions without a
// category (manual override, routing disabled) get a chain built from the
// decided provider followed by the remaining manual providers.
func (r *Router) chainFor(decision Decision) []types.Provider {
	if decision.Category != "" {
		return FallbackChain(decision.Category)
	}
	chain := []types.Provider{decision.Provider}
	for _, p := range []types.Provider{types.ProviderAnthropic, types.ProviderOpenAI, types.ProviderGemini} {
		if p != decision.Provider {
			chain = append(chain, p)
		}
	}
	return chain
}

// modelFor resolves the model for a provider, preferring an explicit choice
// over the registered client's default.
func (r *Router) modelFor(provider types.Provider, explicit string) string {
	if explicit != "" {
		return explicit
	}
	client, err := r.registry.Chat(provider)
	if err != nil {
		return ""
	}
	return client.DefaultModel()
}

func rationaleFor(category Category) string {
	switch category {
	case CategoryResearch:
		return "research keywords matched"
	case CategoryCreative:
		return "creative keywords matched"
	case CategoryTechnical:
		return "technical keywords matched"
	default:
		return "strategic default"
	}
}
