// Package registry keeps the chat models available to the service.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/davidbz/hearth/internal/domain"
)

// Registry implements domain.ProviderRegistry. Providers are kept in
// registration order and a model is served by the first provider that
// registered it.
type Registry struct {
	mu              sync.RWMutex
	providers       *orderedmap.OrderedMap[string, domain.ChatModel]
	modelToProvider map[string]string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers:       orderedmap.New[string, domain.ChatModel](),
		modelToProvider: make(map[string]string),
	}
}

// Register adds a provider and indexes its models.
func (r *Registry) Register(ctx context.Context, provider domain.ChatModel) error {
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	name := provider.Name()
	if name == "" {
		return errors.New("provider name cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.providers.Get(name); exists {
		return fmt.Errorf("provider %s already registered", name)
	}
	r.providers.Set(name, provider)

	for _, model := range provider.SupportedModels(ctx) {
		if _, taken := r.modelToProvider[model]; !taken {
			r.modelToProvider[model] = name
		}
	}

	return nil
}

// Get retrieves a provider by name.
func (r *Registry) Get(_ context.Context, providerName string) (domain.ChatModel, error) {
	if providerName == "" {
		return nil, errors.New("provider name cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers.Get(providerName)
	if !exists {
		return nil, fmt.Errorf("provider %s not found", providerName)
	}
	return provider, nil
}

// GetByModel retrieves the provider serving model. Models missing from the
// index are offered to providers in registration order.
func (r *Registry) GetByModel(ctx context.Context, model string) (domain.ChatModel, error) {
	if model == "" {
		return nil, errors.New("model cannot be empty")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if name, indexed := r.modelToProvider[model]; indexed {
		if provider, ok := r.providers.Get(name); ok {
			return provider, nil
		}
	}

	for pair := r.providers.Oldest(); pair != nil; pair = pair.Next() {
		if pair.Value.IsModelSupported(ctx, model) {
			return pair.Value, nil
		}
	}

	return nil, fmt.Errorf("no provider found for model %s: %w", model, domain.ErrModelNotSupported)
}

// List returns provider names in registration order.
func (r *Registry) List(_ context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, r.providers.Len())
	for pair := r.providers.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names, nil
}

// Models returns the indexed model to provider mapping.
func (r *Registry) Models(_ context.Context) map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make(map[string]string, len(r.modelToProvider))
	for model, name := range r.modelToProvider {
		models[model] = name
	}
	return models
}
