package providers

import (
	"context"

	"github.com/futurespeakai/sage-router/internal/types"
)

// ChatProvider is the uniform contract every chat client implements.
// Clients translate request/response shapes for one upstream API and
// surface the first error as a *types.ProviderError; they never retry
// internally. Retries and fallback belong to the router.
type ChatProvider interface {
	Name() types.Provider
	DefaultModel() string
	Generate(ctx context.Context, messages []types.Message, opts types.GenerateOptions) (*types.ProviderResult, error)
	HealthCheck(ctx context.Context) error
}

// ImageProvider is implemented by providers that can generate images.
type ImageProvider interface {
	Name() types.Provider
	GenerateImages(ctx context.Context, req types.ImageRequest) (*types.ImageResult, error)
}
