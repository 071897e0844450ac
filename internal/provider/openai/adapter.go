// Package openai adapts OpenAI-compatible chat endpoints (DeepSeek by default)
// to domain.ChatModel using the official SDK. Reasoning deltas are read from
// the raw chunk JSON since the SDK has no typed field for them.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/ssestream"
	"github.com/openai/openai-go/shared"
	"github.com/tidwall/gjson"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/tool"
)

const (
	reasoningField   = "reasoning_content"
	finishToolCalls  = "tool_calls"
	defaultToolRound = 4
)

// Provider implements domain.ChatModel for OpenAI-compatible APIs.
type Provider struct {
	client    openai.Client
	name      string
	models    map[string]bool
	tools     *tool.Registry
	maxRounds int
}

// Option configures a Provider.
type Option func(*Provider)

// WithTools offers the registry's tools to the model. At most maxRounds
// rounds of tool calls run per turn.
func WithTools(tools *tool.Registry, maxRounds int) Option {
	return func(p *Provider) {
		p.tools = tools
		if maxRounds > 0 {
			p.maxRounds = maxRounds
		}
	}
}

// NewProvider creates a new provider.
func NewProvider(config Config, opts ...Option) (*Provider, error) {
	if config.APIKey == "" {
		return nil, errors.New("OpenAI API key is required")
	}

	reqOpts := []option.RequestOption{
		option.WithAPIKey(config.APIKey),
	}

	if config.BaseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(config.BaseURL))
	}

	if config.Timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(time.Duration(config.Timeout)*time.Second))
	}

	if config.MaxRetries > 0 {
		reqOpts = append(reqOpts, option.WithMaxRetries(config.MaxRetries))
	}

	models := config.Models
	if len(models) == 0 {
		models = DefaultModels()
	}
	served := make(map[string]bool, len(models))
	for _, model := range models {
		served[model] = true
	}

	p := &Provider{
		client:    openai.NewClient(reqOpts...),
		name:      "openai",
		models:    served,
		maxRounds: defaultToolRound,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Call sends a request and returns the full response. Tool calls requested
// by the model are answered and the conversation continues until the model
// replies without one.
func (p *Provider) Call(ctx context.Context, req *domain.ChatRequest) (*domain.ChatResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling chat completions API")

	params := p.toSDKParams(req)
	var usage domain.Usage

	for round := 0; ; round++ {
		var httpResp *http.Response
		resp, err := p.client.Chat.Completions.New(ctx, params, option.WithResponseInto(&httpResp))
		if err != nil {
			logger.Error("chat completions call failed", observability.Error(err))
			return nil, fmt.Errorf("chat completions call failed: %w", err)
		}
		usage = usage.Add(toDomainUsage(resp.Usage))

		if round < p.maxRounds && len(resp.Choices) > 0 && len(resp.Choices[0].Message.ToolCalls) > 0 {
			message := resp.Choices[0].Message
			params.Messages = append(params.Messages, message.ToParam())
			params.Messages = append(params.Messages, p.runTools(ctx, message.ToolCalls)...)
			continue
		}

		logger.Debug("chat completions call succeeded",
			observability.Int("prompt_tokens", usage.PromptTokens),
			observability.Int("completion_tokens", usage.CompletionTokens),
			observability.Int("tool_rounds", round),
		)

		out := p.toDomainResponse(resp, rateLimitFromHeaders(httpResp))
		out.Usage = usage
		return out, nil
	}
}

// Stream sends a request and returns its fragments. Usage is summed over
// tool rounds and arrives as the last fragment.
func (p *Provider) Stream(ctx context.Context, req *domain.ChatRequest) (<-chan domain.Fragment, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}

	logger := observability.FromContext(ctx)
	logger.Debug("calling streaming chat completions API")

	params := p.toSDKParams(req)
	params.StreamOptions = openai.ChatCompletionStreamOptionsParam{
		IncludeUsage: openai.Bool(true),
	}

	var httpResp *http.Response
	stream := p.client.Chat.Completions.NewStreaming(ctx, params, option.WithResponseInto(&httpResp))
	if err := stream.Err(); err != nil {
		_ = stream.Close()
		return nil, fmt.Errorf("failed to open stream: %w", err)
	}

	fragments := make(chan domain.Fragment)
	go func() {
		defer close(fragments)
		defer logger.Debug("chat completions stream closed")

		send := func(f domain.Fragment) bool {
			select {
			case fragments <- f:
				return true
			case <-ctx.Done():
				return false
			}
		}

		turn := &streamTurn{rateLimit: rateLimitFromHeaders(httpResp)}
		for n := 0; ; n++ {
			acc, ok := turn.pump(ctx, stream, send)
			if !ok {
				return
			}

			if n >= p.maxRounds || len(acc.Choices) == 0 || len(acc.Choices[0].Message.ToolCalls) == 0 {
				break
			}

			message := acc.Choices[0].Message
			params.Messages = append(params.Messages, message.ToParam())
			params.Messages = append(params.Messages, p.runTools(ctx, message.ToolCalls)...)

			stream = p.client.Chat.Completions.NewStreaming(ctx, params)
			if err := stream.Err(); err != nil {
				_ = stream.Close()
				send(domain.Fragment{Error: fmt.Errorf("failed to continue after tool calls: %w", err)})
				return
			}
		}

		if turn.usage.TotalTokens > 0 {
			usage := turn.usage
			send(domain.Fragment{ID: turn.lastID, Model: turn.lastModel, Usage: &usage})
		}
	}()

	return fragments, nil
}

// streamTurn carries state across the streams of one turn.
type streamTurn struct {
	rateLimit *domain.RateLimit
	usage     domain.Usage
	lastID    string
	lastModel string
}

// pump forwards one stream and accumulates it. It reports false when the
// turn must end, either because ctx is done or an error fragment was sent.
func (t *streamTurn) pump(
	ctx context.Context,
	stream *ssestream.Stream[openai.ChatCompletionChunk],
	send func(domain.Fragment) bool,
) (*openai.ChatCompletionAccumulator, bool) {
	defer stream.Close()

	acc := &openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)

		fragment := toFragment(chunk)
		if fragment.Usage != nil {
			t.usage = t.usage.Add(*fragment.Usage)
			t.lastID, t.lastModel = fragment.ID, fragment.Model
			fragment.Usage = nil
		}
		if fragment.Generation != nil && fragment.Generation.FinishReason == finishToolCalls {
			fragment.Generation = nil
		}
		if fragment.TextDelta == "" && fragment.ReasoningDelta == "" && fragment.Generation == nil {
			continue
		}

		if t.rateLimit != nil {
			fragment.RateLimit = t.rateLimit
			t.rateLimit = nil
		}
		if !send(fragment) {
			return nil, false
		}
	}

	err := stream.Err()
	if err == nil || errors.Is(err, io.EOF) {
		return acc, true
	}
	if ctx.Err() == nil {
		send(domain.Fragment{Error: fmt.Errorf("chat completions stream error: %w", err)})
	}
	return nil, false
}

// runTools answers each tool call in order.
func (p *Provider) runTools(
	ctx context.Context,
	calls []openai.ChatCompletionMessageToolCall,
) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(calls))
	for _, call := range calls {
		var result string
		if p.tools == nil {
			result = fmt.Sprintf("error: unknown tool %q", call.Function.Name)
		} else {
			result = p.tools.Invoke(ctx, call.Function.Name, json.RawMessage(call.Function.Arguments))
		}
		messages = append(messages, openai.ToolMessage(result, call.ID))
	}
	return messages
}

// Name returns the provider identifier.
func (p *Provider) Name() string {
	return p.name
}

// IsModelSupported checks if the provider serves the given model.
func (p *Provider) IsModelSupported(_ context.Context, model string) bool {
	return p.models[model]
}

// SupportedModels returns the configured models in name order.
func (p *Provider) SupportedModels(_ context.Context) []string {
	models := make([]string, 0, len(p.models))
	for model := range p.models {
		models = append(models, model)
	}
	sort.Strings(models)
	return models
}

// toSDKParams converts a domain request to SDK ChatCompletionNewParams.
// Reasoning traces are never sent back to the model.
func (p *Provider) toSDKParams(req *domain.ChatRequest) openai.ChatCompletionNewParams {
	messages := make([]openai.ChatCompletionMessageParamUnion, len(req.Messages))
	for i, msg := range req.Messages {
		switch msg.Role {
		case domain.RoleAssistant:
			messages[i] = openai.AssistantMessage(msg.Text)
		case domain.RoleSystem:
			messages[i] = openai.SystemMessage(msg.Text)
		default:
			messages[i] = openai.UserMessage(msg.Text)
		}
	}

	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(req.Model),
		Messages: messages,
	}

	if req.Temperature > 0 {
		params.Temperature = openai.Float(req.Temperature)
	}

	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}

	if p.tools.Len() > 0 {
		params.Tools = buildTools(p.tools)
	}

	return params
}

// buildTools converts registered tools to SDK tool params.
func buildTools(tools *tool.Registry) []openai.ChatCompletionToolParam {
	all := tools.All()
	out := make([]openai.ChatCompletionToolParam, 0, len(all))
	for _, t := range all {
		out = append(out, openai.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        t.Name(),
				Description: openai.String(t.Description()),
				Parameters: shared.FunctionParameters{
					"type":       "object",
					"properties": t.Parameters(),
				},
			},
		})
	}
	return out
}

// toFragment maps one SDK chunk.
func toFragment(chunk openai.ChatCompletionChunk) domain.Fragment {
	fragment := domain.Fragment{
		ID:    chunk.ID,
		Model: chunk.Model,
	}

	if len(chunk.Choices) > 0 {
		choice := chunk.Choices[0]
		fragment.TextDelta = choice.Delta.Content
		fragment.ReasoningDelta = gjson.Get(choice.Delta.RawJSON(), reasoningField).String()
		if choice.FinishReason != "" {
			fragment.Generation = &domain.GenerationMetadata{FinishReason: choice.FinishReason}
		}
	}

	if chunk.Usage.TotalTokens > 0 {
		usage := toDomainUsage(chunk.Usage)
		fragment.Usage = &usage
	}

	return fragment
}

func toDomainUsage(u openai.CompletionUsage) domain.Usage {
	return domain.Usage{
		PromptTokens:     int(u.PromptTokens),
		CompletionTokens: int(u.CompletionTokens),
		TotalTokens:      int(u.TotalTokens),
	}
}

// toDomainResponse converts an SDK completion to a domain response.
func (p *Provider) toDomainResponse(resp *openai.ChatCompletion, rateLimit *domain.RateLimit) *domain.ChatResponse {
	message := domain.Message{Role: domain.RoleAssistant}
	var generation domain.GenerationMetadata

	if len(resp.Choices) > 0 {
		choice := resp.Choices[0]
		message.Text = choice.Message.Content
		message.Reasoning = gjson.Get(choice.Message.RawJSON(), reasoningField).String()
		generation.FinishReason = choice.FinishReason
	}

	return &domain.ChatResponse{
		ID:         resp.ID,
		Model:      resp.Model,
		Message:    message,
		Generation: generation,
		Usage:      toDomainUsage(resp.Usage),
		RateLimit:  rateLimit,
		FinishTime: time.Now(),
	}
}

// rateLimitFromHeaders reads x-ratelimit-* headers. It returns nil when the
// endpoint sends none.
func rateLimitFromHeaders(resp *http.Response) *domain.RateLimit {
	if resp == nil {
		return nil
	}

	header := func(name string) int64 {
		v, err := strconv.ParseInt(resp.Header.Get(name), 10, 64)
		if err != nil {
			return 0
		}
		return v
	}

	rl := &domain.RateLimit{
		RequestsLimit:     header("x-ratelimit-limit-requests"),
		RequestsRemaining: header("x-ratelimit-remaining-requests"),
		TokensLimit:       header("x-ratelimit-limit-tokens"),
		TokensRemaining:   header("x-ratelimit-remaining-tokens"),
	}
	if rl.IsEmpty() {
		return nil
	}
	return rl
}
