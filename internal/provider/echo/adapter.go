// Package echo provides a deterministic chat model that streams the user's
// prompt back word by word. It needs no network access and backs local
// development and tests.
package echo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
)

const (
	providerName = "echo"
	finishStop   = "stop"

	defaultChunkDelay = 10 * time.Millisecond
)

// Model names served when none are given.
const (
	ChatModel     = "echo-chat"
	ReasonerModel = "echo-reasoner"
)

// Provider implements domain.ChatModel without external calls.
type Provider struct {
	name            string
	supportedModels map[string]bool
	chunkDelay      time.Duration
}

// Option configures a Provider.
type Option func(*Provider)

// WithModels replaces the served model names.
func WithModels(models ...string) Option {
	return func(p *Provider) {
		p.supportedModels = make(map[string]bool, len(models))
		for _, m := range models {
			if m != "" {
				p.supportedModels[m] = true
			}
		}
	}
}

// WithChunkDelay sets the pause between streamed words.
func WithChunkDelay(d time.Duration) Option {
	return func(p *Provider) {
		p.chunkDelay = d
	}
}

// NewProvider creates an echo provider.
func NewProvider(opts ...Option) *Provider {
	p := &Provider{
		name: providerName,
		supportedModels: map[string]bool{
			ChatModel:     true,
			ReasonerModel: true,
		},
		chunkDelay: defaultChunkDelay,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Call returns the echoed response at once.
func (p *Provider) Call(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	if err := p.validate(req); err != nil {
		return nil, err
	}

	observability.FromContext(ctx).Debug("echoing request")

	reasoning, text := p.compose(req)
	usage := usageFor(req, reasoning, text)

	msg := domain.Message{Role: domain.RoleAssistant, Text: text}
	if reasoning != "" {
		msg.Reasoning = reasoning
	}

	return &domain.ChatResponse{
		ID:         uuid.NewString(),
		Model:      req.Model,
		Message:    msg,
		Generation: domain.GenerationMetadata{FinishReason: finishStop},
		Usage:      usage,
		FinishTime: time.Now(),
	}, nil
}

// Stream emits reasoning words (in reasoning mode), then text words, then a
// closing fragment with the finish reason and usage.
func (p *Provider) Stream(ctx context.Context, req *domain.ChatRequest) (<-chan domain.Fragment, error) {
	if err := p.validate(req); err != nil {
		return nil, err
	}

	logger := observability.FromContext(ctx)
	logger.Debug("streaming echo request")

	reasoning, text := p.compose(req)
	id := uuid.NewString()
	fragments := make(chan domain.Fragment)

	go func() {
		defer close(fragments)

		send := func(f domain.Fragment) bool {
			f.ID = id
			f.Model = req.Model
			select {
			case <-ctx.Done():
				return false
			case fragments <- f:
			}
			if p.chunkDelay > 0 {
				select {
				case <-ctx.Done():
					return false
				case <-time.After(p.chunkDelay):
				}
			}
			return true
		}

		for _, word := range splitWords(reasoning) {
			if !send(domain.Fragment{ReasoningDelta: word}) {
				return
			}
		}
		for _, word := range splitWords(text) {
			if !send(domain.Fragment{TextDelta: word}) {
				return
			}
		}

		usage := usageFor(req, reasoning, text)
		send(domain.Fragment{
			Generation: &domain.GenerationMetadata{FinishReason: finishStop},
			Usage:      &usage,
		})
	}()

	return fragments, nil
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// IsModelSupported checks if the provider supports the given model.
func (p *Provider) IsModelSupported(_ context.Context, model string) bool {
	return p.supportedModels[model]
}

// SupportedModels returns a list of all models this provider supports.
func (p *Provider) SupportedModels(_ context.Context) []string {
	models := make([]string, 0, len(p.supportedModels))
	for model := range p.supportedModels {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

func (p *Provider) validate(req *domain.ChatRequest) error {
	if req == nil {
		return errors.New("request cannot be nil")
	}
	if !p.supportedModels[req.Model] {
		return fmt.Errorf("model %s is not supported by echo provider: %w", req.Model, domain.ErrModelNotSupported)
	}
	return nil
}

// compose builds the reasoning trace and answer for req.
func (p *Provider) compose(req *domain.ChatRequest) (string, string) {
	prompt := ""
	if idx := req.LastUserMessage(); idx >= 0 {
		prompt = req.Messages[idx].Text
	}

	reasoning := ""
	if req.ReasoningMode {
		reasoning = fmt.Sprintf("The user said %q with %d earlier messages in context.",
			prompt, len(req.Messages)-1)
	}

	return reasoning, "echo: " + prompt
}

// splitWords splits s into words, keeping the separating space on all but the last.
func splitWords(s string) []string {
	words := strings.Fields(s)
	for i := range len(words) - 1 {
		words[i] += " "
	}
	return words
}

// countTokens performs simple word-based token counting.
func countTokens(content string) int {
	return len(strings.Fields(content))
}

func usageFor(req *domain.ChatRequest, reasoning, text string) domain.Usage {
	prompt := 0
	for _, msg := range req.Messages {
		prompt += countTokens(msg.Text)
	}
	completion := countTokens(reasoning) + countTokens(text)

	return domain.Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}
