package interceptor

import (
	"context"

	"github.com/davidbz/hearth/internal/domain"
)

// Memory injects the session's conversation window and records each exchange.
type Memory struct {
	memory *domain.ChatMemory
}

// NewMemory creates the stage.
func NewMemory(memory *domain.ChatMemory) *Memory {
	return &Memory{memory: memory}
}

// Name implements domain.Interceptor.
func (m *Memory) Name() string { return "memory" }

// Priority implements domain.Interceptor.
func (m *Memory) Priority() int { return PriorityMemory }

// Before prepends stored history and saves the new user message.
func (m *Memory) Before(ctx context.Context, req *domain.ChatRequest) (*domain.ChatRequest, error) {
	return req.WithMessages(m.memory.Before(ctx, req.SessionID, req.Messages)), nil
}

// After saves the assistant message.
func (m *Memory) After(
	ctx context.Context,
	req *domain.ChatRequest,
	resp *domain.ChatResponse,
) (*domain.ChatResponse, error) {
	m.memory.After(ctx, req.SessionID, []domain.Message{resp.Message})
	return resp, nil
}
