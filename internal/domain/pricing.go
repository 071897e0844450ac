package domain

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

const tokensPerMillion = 1_000_000.0

// PricingConfig contains model pricing in USD per million tokens.
type PricingConfig struct {
	InputCostPer1M  float64
	OutputCostPer1M float64
}

// CostCalculator prices token usage.
type CostCalculator interface {
	// Calculate returns the total cost for a given model and usage.
	Calculate(ctx context.Context, model string, usage Usage) (float64, error)
}

// PricingRegistry maintains pricing information for models.
type PricingRegistry interface {
	// GetPricing returns pricing config for a model.
	GetPricing(ctx context.Context, model string) (PricingConfig, error)

	// RegisterPricing adds pricing for a model.
	RegisterPricing(ctx context.Context, model string, config PricingConfig) error
}

// InMemoryPricingRegistry stores pricing configs in memory.
type InMemoryPricingRegistry struct {
	mu      sync.RWMutex
	pricing map[string]PricingConfig
}

// NewInMemoryPricingRegistry creates an empty pricing registry.
func NewInMemoryPricingRegistry() *InMemoryPricingRegistry {
	return &InMemoryPricingRegistry{
		mu:      sync.RWMutex{},
		pricing: make(map[string]PricingConfig),
	}
}

// GetPricing retrieves pricing for a model.
func (r *InMemoryPricingRegistry) GetPricing(_ context.Context, model string) (PricingConfig, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	config, exists := r.pricing[model]
	if !exists {
		return PricingConfig{}, fmt.Errorf("pricing not found for model: %s", model)
	}
	return config, nil
}

// RegisterPricing adds or replaces pricing for a model.
func (r *InMemoryPricingRegistry) RegisterPricing(_ context.Context, model string, config PricingConfig) error {
	if model == "" {
		return errors.New("model cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	r.pricing[model] = config
	return nil
}

// TokenCostCalculator prices usage from a PricingRegistry.
type TokenCostCalculator struct {
	pricing PricingRegistry
}

// NewTokenCostCalculator creates a calculator backed by registry.
func NewTokenCostCalculator(registry PricingRegistry) *TokenCostCalculator {
	return &TokenCostCalculator{pricing: registry}
}

// Calculate computes the cost of usage. Unknown models cost nothing.
func (c *TokenCostCalculator) Calculate(ctx context.Context, model string, usage Usage) (float64, error) {
	if model == "" {
		return 0, errors.New("model cannot be empty")
	}

	pricing, err := c.pricing.GetPricing(ctx, model)
	if err != nil {
		//nolint:nilerr // unpriced models are billed at zero
		return 0, nil
	}

	input := float64(usage.PromptTokens) / tokensPerMillion * pricing.InputCostPer1M
	output := float64(usage.CompletionTokens) / tokensPerMillion * pricing.OutputCostPer1M

	return input + output, nil
}
