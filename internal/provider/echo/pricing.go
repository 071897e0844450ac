package echo

import (
	"context"
	"fmt"

	"github.com/davidbz/hearth/internal/domain"
)

// RegisterPricing registers zero pricing for every model p serves.
func RegisterPricing(ctx context.Context, registry domain.PricingRegistry, p *Provider) error {
	for _, model := range p.SupportedModels(ctx) {
		if err := registry.RegisterPricing(ctx, model, domain.PricingConfig{}); err != nil {
			return fmt.Errorf("failed to register echo pricing: %w", err)
		}
	}
	return nil
}
