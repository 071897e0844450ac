// Package routing chooses the model that serves a turn.
package routing

import (
	"context"
	"errors"
	"fmt"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
)

// Config names the models behind each mode.
type Config struct {
	ChatModel     string `env:"CHAT_MODEL"          envDefault:"deepseek-chat"`
	ReasonerModel string `env:"CHAT_REASONER_MODEL" envDefault:"deepseek-reasoner"`
}

// ModeRouter picks the reasoner model for reasoning turns and the chat model
// otherwise. A reasoning turn falls back to the chat model when no provider
// serves the reasoner.
type ModeRouter struct {
	registry      domain.ProviderRegistry
	chatModel     string
	reasonerModel string
}

// NewModeRouter creates a router.
func NewModeRouter(registry domain.ProviderRegistry, cfg *Config) *ModeRouter {
	return &ModeRouter{
		registry:      registry,
		chatModel:     cfg.ChatModel,
		reasonerModel: cfg.ReasonerModel,
	}
}

// Route returns the model name for req.
func (r *ModeRouter) Route(ctx context.Context, req *domain.RouteRequest) (string, error) {
	if req == nil {
		return "", errors.New("route request cannot be nil")
	}

	if req.ReasoningMode && r.reasonerModel != "" {
		if r.served(ctx, r.reasonerModel) {
			return r.reasonerModel, nil
		}
		observability.FromContext(ctx).Warn("reasoner model has no provider, using chat model",
			observability.String("reasoner_model", r.reasonerModel),
			observability.String("chat_model", r.chatModel))
	}

	if r.chatModel == "" {
		return "", errors.New("chat model is not configured")
	}
	if !r.served(ctx, r.chatModel) {
		return "", fmt.Errorf("no provider found for model %s: %w", r.chatModel, domain.ErrModelNotSupported)
	}
	return r.chatModel, nil
}

func (r *ModeRouter) served(ctx context.Context, model string) bool {
	_, err := r.registry.GetByModel(ctx, model)
	return err == nil
}
