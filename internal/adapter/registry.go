package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/Ning0612/fsbridge/internal/domain"
)

// Factory creates an adapter for a transport configuration
type Factory func(ctx context.Context, t domain.Transport) (Adapter, error)

// Registry maps transport types to the factories that build them
type Registry struct {
	mu        sync.RWMutex
	factories map[domain.TransportType]Factory
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{factories: make(map[domain.TransportType]Factory)}
}

// Register installs f for transport type t, replacing any previous factory
func (r *Registry) Register(t domain.TransportType, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[t] = f
}

// Supports returns true if a factory is registered for t
func (r *Registry) Supports(t domain.TransportType) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[t]
	return ok
}

// Create builds the adapter for transport and wraps it in Operations
func (r *Registry) Create(ctx context.Context, transport domain.Transport) (*Operations, error) {
	r.mu.RLock()
	f, ok := r.factories[transport.Type]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown transport type %q: %w", transport.Type, domain.ErrUnsupported)
	}

	a, err := f(ctx, transport)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s adapter for %s: %w", transport.Type, transport.Name, err)
	}
	return NewOperations(a), nil
}
