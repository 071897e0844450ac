package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/davidbz/hearth/internal/observability"
)

// ChatService turns user turns into model calls routed through the
// interceptor chain.
type ChatService struct {
	registry      ProviderRegistry
	router        Router
	chain         *InterceptorChain
	cancellations *CancellationRegistry
	systemPrompt  string
	metrics       *observability.Metrics
}

// NewChatService creates a chat service (DI constructor).
func NewChatService(
	registry ProviderRegistry,
	router Router,
	chain *InterceptorChain,
	cancellations *CancellationRegistry,
	systemPrompt string,
	metrics *observability.Metrics,
) *ChatService {
	return &ChatService{
		registry:      registry,
		router:        router,
		chain:         chain,
		cancellations: cancellations,
		systemPrompt:  systemPrompt,
		metrics:       metrics,
	}
}

// Stream starts a streaming turn. The returned channel closes when the turn
// completes or is stopped; a mid-stream failure arrives as an error fragment.
func (s *ChatService) Stream(ctx context.Context, turn *TurnRequest) (<-chan Fragment, error) {
	ctx, req, provider, err := s.prepare(ctx, turn)
	if err != nil {
		return nil, err
	}

	observability.FromContext(ctx).Info("starting streaming turn",
		observability.Bool("reasoning_mode", req.ReasoningMode),
		observability.Bool("knowledge_base", req.KnowledgeBaseID != ""))

	fragments, err := s.chain.Stream(ctx, req, provider.Stream)
	if err != nil {
		return nil, fmt.Errorf("failed to stream from provider: %w", err)
	}
	return fragments, nil
}

// Call runs a blocking turn.
func (s *ChatService) Call(ctx context.Context, turn *TurnRequest) (*ChatResponse, error) {
	ctx, req, provider, err := s.prepare(ctx, turn)
	if err != nil {
		return nil, err
	}

	response, err := s.chain.Call(ctx, req, provider.Call)
	if err != nil {
		return nil, fmt.Errorf("completion failed: %w", err)
	}
	return response, nil
}

// Stop signals the session's in-flight stream to end. It does not wait for
// the stream to wind down and reports whether a stream was signalled.
func (s *ChatService) Stop(ctx context.Context, sessionID string) bool {
	if sessionID == "" {
		sessionID = DefaultSessionID
	}

	stopped := s.cancellations.Cancel(sessionID)
	if stopped {
		s.metrics.StopRequested()
	}

	observability.FromContext(ctx).Info("stop requested",
		observability.String("session_id", sessionID),
		observability.Bool("stream_active", stopped))

	return stopped
}

// ActiveStreams returns the number of sessions with an in-flight stream.
func (s *ChatService) ActiveStreams() int {
	return s.cancellations.Active()
}

func (s *ChatService) prepare(
	ctx context.Context,
	turn *TurnRequest,
) (context.Context, *ChatRequest, ChatModel, error) {
	if turn == nil {
		return ctx, nil, nil, errors.New("request cannot be nil")
	}
	if strings.TrimSpace(turn.Prompt) == "" {
		return ctx, nil, nil, ErrEmptyPrompt
	}

	sessionID := turn.SessionID
	if sessionID == "" {
		sessionID = DefaultSessionID
	}
	ctx = observability.WithSessionID(ctx, sessionID)

	model, err := s.router.Route(ctx, &RouteRequest{ReasoningMode: turn.ReasoningMode})
	if err != nil {
		return ctx, nil, nil, fmt.Errorf("model routing failed: %w", err)
	}

	provider, err := s.registry.GetByModel(ctx, model)
	if err != nil {
		return ctx, nil, nil, fmt.Errorf("provider routing failed: %w", err)
	}
	ctx = observability.WithProvider(ctx, provider.Name())
	ctx = observability.WithModel(ctx, model)

	messages := make([]Message, 0, 2)
	if s.systemPrompt != "" {
		messages = append(messages, NewSystemMessage(s.systemPrompt))
	}
	messages = append(messages, NewUserMessage(turn.Prompt))

	return ctx, &ChatRequest{
		SessionID:       sessionID,
		Model:           model,
		Messages:        messages,
		ReasoningMode:   turn.ReasoningMode,
		KnowledgeBaseID: turn.KnowledgeBaseID,
	}, provider, nil
}
