package openai

import (
	"context"
	"fmt"

	"github.com/davidbz/hearth/internal/domain"
)

// DeepSeek list prices per 1M tokens (cache miss).
var modelPricing = []struct {
	model   string
	pricing domain.PricingConfig
}{
	{"deepseek-chat", domain.PricingConfig{InputCostPer1M: 0.27, OutputCostPer1M: 1.10}},
	{"deepseek-reasoner", domain.PricingConfig{InputCostPer1M: 0.55, OutputCostPer1M: 2.19}},
}

// DefaultModels returns the models served when none are configured.
func DefaultModels() []string {
	models := make([]string, len(modelPricing))
	for i, entry := range modelPricing {
		models[i] = entry.model
	}
	return models
}

// RegisterPricing registers model pricing with the registry.
func RegisterPricing(ctx context.Context, registry domain.PricingRegistry) error {
	for _, entry := range modelPricing {
		if err := registry.RegisterPricing(ctx, entry.model, entry.pricing); err != nil {
			return fmt.Errorf("failed to register pricing for model %s: %w", entry.model, err)
		}
	}
	return nil
}
