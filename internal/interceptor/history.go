package interceptor

import (
	"context"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
)

// History writes an audit line for every request and every completed response.
type History struct {
	calculator domain.CostCalculator
	metrics    *observability.Metrics
}

// NewHistory creates the stage.
func NewHistory(calculator domain.CostCalculator, metrics *observability.Metrics) *History {
	return &History{
		calculator: calculator,
		metrics:    metrics,
	}
}

// Name implements domain.Interceptor.
func (h *History) Name() string { return "history" }

// Priority implements domain.Interceptor.
func (h *History) Priority() int { return PriorityHistory }

// Before logs the outgoing request.
func (h *History) Before(ctx context.Context, req *domain.ChatRequest) (*domain.ChatRequest, error) {
	promptChars := 0
	if idx := req.LastUserMessage(); idx >= 0 {
		promptChars = len(req.Messages[idx].Text)
	}

	observability.FromContext(ctx).Info("chat request",
		observability.String("model", req.Model),
		observability.Int("messages", len(req.Messages)),
		observability.Int("prompt_chars", promptChars),
		observability.Bool("reasoning_mode", req.ReasoningMode))

	return req, nil
}

// After prices the response and logs it.
func (h *History) After(
	ctx context.Context,
	req *domain.ChatRequest,
	resp *domain.ChatResponse,
) (*domain.ChatResponse, error) {
	logger := observability.FromContext(ctx)

	model := resp.Model
	if model == "" {
		model = req.Model
	}

	cost, err := h.calculator.Calculate(ctx, model, resp.Usage)
	if err != nil {
		logger.Warn("failed to price response", observability.Error(err))
	}
	resp.Usage.Cost = cost

	h.metrics.TokensUsed(model, resp.Usage.PromptTokens, resp.Usage.CompletionTokens)

	logger.Info("chat response",
		observability.String("response_id", resp.ID),
		observability.String("finish_reason", resp.Generation.FinishReason),
		observability.Int("text_chars", len(resp.Message.Text)),
		observability.Int("reasoning_chars", len(resp.Message.Reasoning)),
		observability.Int("prompt_tokens", resp.Usage.PromptTokens),
		observability.Int("completion_tokens", resp.Usage.CompletionTokens),
		observability.Float64("cost_usd", cost))

	return resp, nil
}
