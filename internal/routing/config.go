package routing

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/futurespeakai/sage-router/internal/types"
)

// RoutingConfig holds the user's routing preferences. Manual overrides are
// limited to the three providers the classifier can choose between.
type RoutingConfig struct {
	Enabled        bool           `json:"enabled"`
	ManualProvider types.Provider `json:"manualProvider,omitempty"`
	ManualModel    string         `json:"manualModel,omitempty"`
	ForceReasoning *bool          `json:"forceReasoning,omitempty"`
}

// DefaultRoutingConfig returns the configuration a fresh install starts with.
func DefaultRoutingConfig() RoutingConfig {
	return RoutingConfig{Enabled: true}
}

// manualProviders are the providers a user may pin routing to.
var manualProviders = map[types.Provider]bool{
	types.ProviderOpenAI:    true,
	types.ProviderAnthropic: true,
	types.ProviderGemini:    true,
}

// Validate rejects malformed configs at the update boundary so routing
// itself never sees one.
func (c RoutingConfig) Validate() error {
	if c.ManualModel != "" && c.ManualProvider == "" {
		return &types.ConfigValidationError{
			Field:   "manualModel",
			Message: "manual model requires a manual provider",
		}
	}
	if c.ManualProvider != "" && !manualProviders[c.ManualProvider] {
		return &types.ConfigValidationError{
			Field:   "manualProvider",
			Message: "must be one of openai, anthropic, gemini",
		}
	}
	return nil
}

// RouteRequest is the body of POST /api/test-routing-decision. A non-nil
// Config is used for this request only and never persisted.
type RouteRequest struct {
	Query   string         `json:"query"`
	Context string         `json:"context,omitempty"`
	Config  *RoutingConfig `json:"config,omitempty"`
}

// RoutingConfigUpdate is a partial update; nil fields leave the current
// value unchanged. Setting ManualProvider to the empty string clears the
// override (and the manual model with it).
type RoutingConfigUpdate struct {
	Enabled        *bool   `json:"enabled,omitempty"`
	ManualProvider *string `json:"manualProvider,omitempty"`
	ManualModel    *string `json:"manualModel,omitempty"`
	ForceReasoning *bool   `json:"forceReasoning,omitempty"`
}

// ConfigStore owns loading, persisting and mutating the routing config.
type ConfigStore interface {
	Get() RoutingConfig
	Update(RoutingConfigUpdate) (RoutingConfig, error)
	Reset() (RoutingConfig, error)
}

// FileConfigStore persists the routing config as JSON at a fixed path.
// Reads vastly outnumber writes, so readers get a copy under an RLock.
type FileConfigStore struct {
	mu      sync.RWMutex
	path    string
	current RoutingConfig
	logger  *logrus.Logger
}

// NewFileConfigStore loads the persisted config, silently falling back to
// defaults when the file is missing or corrupt. A parse failure must never
// crash the service.
func NewFileConfigStore(path string, logger *logrus.Logger) *FileConfigStore {
	s := &FileConfigStore{
		path:    path,
		current: DefaultRoutingConfig(),
		logger:  logger,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			logger.WithError(err).Warn("Failed to read routing config, using defaults")
		}
		return s
	}

	var loaded RoutingConfig
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger.WithError(err).Warn("Corrupt routing config, using defaults")
		return s
	}
	if err := loaded.Validate(); err != nil {
		logger.WithError(err).Warn("Invalid persisted routing config, using defaults")
		return s
	}

	s.current = loaded
	return s
}

// Get returns a snapshot of the current config.
func (s *FileConfigStore) Get() RoutingConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Update shallow-merges the partial update into the current config,
// validates the result, persists it and returns it.
func (s *FileConfigStore) Update(u RoutingConfigUpdate) (RoutingConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.current
	if u.Enabled != nil {
		next.Enabled = *u.Enabled
	}
	if u.ManualProvider != nil {
		next.ManualProvider = types.Provider(*u.ManualProvider)
		if next.ManualProvider == "" {
			next.ManualModel = ""
		}
	}
	if u.ManualModel != nil {
		next.ManualModel = *u.ManualModel
	}
	if u.ForceReasoning != nil {
		next.ForceReasoning = u.ForceReasoning
	}

	if err := next.Validate(); err != nil {
		return s.current, err
	}

	if err := s.persist(next); err != nil {
		return s.current, err
	}
	s.current = next
	return next, nil
}

// Reset restores defaults and persists them. Idempotent.
func (s *FileConfigStore) Reset() (RoutingConfig, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	defaults := DefaultRoutingConfig()
	if err := s.persist(defaults); err != nil {
		return s.current, err
	}
	s.current = defaults
	return defaults, nil
}

func (s *FileConfigStore) persist(cfg RoutingConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, data, 0o644)
}

var _ ConfigStore = (*FileConfigStore)(nil)
