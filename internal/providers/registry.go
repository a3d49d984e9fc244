package providers

import (
	"fmt"
	"sync"

	"github.com/futurespeakai/sage-router/internal/types"
)

// Registry holds the configured provider clients. It is populated once at
// startup and read-only afterwards, so the mutex only guards registration.
type Registry struct {
	mu    sync.RWMutex
	chat  map[types.Provider]ChatProvider
	image map[types.Provider]ImageProvider
}

func NewRegistry() *Registry {
	return &Registry{
		chat:  make(map[types.Provider]ChatProvider),
		image: make(map[types.Provider]ImageProvider),
	}
}

func (r *Registry) RegisterChat(p ChatProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat[p.Name()] = p
}

func (r *Registry) RegisterImage(p ImageProvider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.image[p.Name()] = p
}

// Chat returns the chat client for the given provider.
func (r *Registry) Chat(name types.Provider) (ChatProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.chat[name]
	if !ok {
		return nil, fmt.Errorf("no chat provider registered for %s", name)
	}
	return p, nil
}

// Image returns the image client for the given provider.
func (r *Registry) Image(name types.Provider) (ImageProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.image[name]
	if !ok {
		return nil, fmt.Errorf("no image provider registered for %s", name)
	}
	return p, nil
}

// ChatProviders lists the registered chat providers in the service's
// canonical order.
func (r *Registry) ChatProviders() []types.Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]types.Provider, 0, len(r.chat))
	for _, p := range types.AllProviders {
		if _, ok := r.chat[p]; ok {
			out = append(out, p)
		}
	}
	return out
}
