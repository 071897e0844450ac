package openai_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/provider/openai"
	"github.com/davidbz/hearth/internal/tool"
)

const streamBody = `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"deepseek-reasoner","choices":[{"index":0,"delta":{"role":"assistant","content":null,"reasoning_content":"Let me think"},"finish_reason":null}]}

data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"deepseek-reasoner","choices":[{"index":0,"delta":{"content":"Hello"},"finish_reason":null}]}

data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"deepseek-reasoner","choices":[{"index":0,"delta":{"content":" there"},"finish_reason":null}]}

data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"deepseek-reasoner","choices":[{"index":0,"delta":{},"finish_reason":"stop"}]}

data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"deepseek-reasoner","choices":[],"usage":{"prompt_tokens":9,"completion_tokens":3,"total_tokens":12}}

data: [DONE]

`

const completionBody = `{"id":"r1","object":"chat.completion","created":1,"model":"deepseek-chat",` +
	`"choices":[{"index":0,"message":{"role":"assistant","content":"Hi!","reasoning_content":"greet back"},"finish_reason":"stop"}],` +
	`"usage":{"prompt_tokens":4,"completion_tokens":2,"total_tokens":6}}`

// capturedRequest holds the decoded body of the last API call.
type capturedRequest struct {
	Model         string `json:"model"`
	Stream        bool   `json:"stream"`
	StreamOptions *struct {
		IncludeUsage bool `json:"include_usage"`
	} `json:"stream_options"`
	Messages []struct {
		Role       string `json:"role"`
		Content    string `json:"content"`
		ToolCallID string `json:"tool_call_id"`
	} `json:"messages"`
	Tools []struct {
		Function struct {
			Name string `json:"name"`
		} `json:"function"`
	} `json:"tools"`
}

const toolCallCompletion = `{"id":"r0","object":"chat.completion","created":1,"model":"deepseek-chat",` +
	`"choices":[{"index":0,"message":{"role":"assistant","content":"","tool_calls":[` +
	`{"id":"call_1","type":"function","function":{"name":"get_current_time","arguments":"{}"}}]},"finish_reason":"tool_calls"}],` +
	`"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`

const toolCallStream = `data: {"id":"c0","object":"chat.completion.chunk","created":1,"model":"deepseek-chat","choices":[{"index":0,"delta":{"role":"assistant","tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"get_current_time","arguments":""}}]},"finish_reason":null}]}

data: {"id":"c0","object":"chat.completion.chunk","created":1,"model":"deepseek-chat","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{}"}}]},"finish_reason":null}]}

data: {"id":"c0","object":"chat.completion.chunk","created":1,"model":"deepseek-chat","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}

data: {"id":"c0","object":"chat.completion.chunk","created":1,"model":"deepseek-chat","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}

data: [DONE]

`

// sequenceServer answers successive requests with successive bodies and keeps
// every decoded request.
type sequenceServer struct {
	mu       sync.Mutex
	bodies   []string
	requests []capturedRequest
}

func newSequenceServer(t *testing.T, contentType string, bodies ...string) (*httptest.Server, *sequenceServer) {
	t.Helper()

	seq := &sequenceServer{bodies: bodies}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var captured capturedRequest
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &captured))

		seq.mu.Lock()
		n := len(seq.requests)
		seq.requests = append(seq.requests, captured)
		seq.mu.Unlock()

		w.Header().Set("Content-Type", contentType)
		_, _ = fmt.Fprint(w, seq.bodies[min(n, len(seq.bodies)-1)])
	}))
	t.Cleanup(server.Close)
	return server, seq
}

func (s *sequenceServer) all() []capturedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]capturedRequest(nil), s.requests...)
}

func clockTools(t *testing.T) *tool.Registry {
	t.Helper()

	tools := tool.NewRegistry()
	now := func() time.Time { return time.Date(2025, 5, 30, 9, 0, 0, 0, time.UTC) }
	require.NoError(t, tools.Register(tool.NewCurrentTime(time.UTC, now)))
	return tools
}

func newToolProvider(t *testing.T, baseURL string, maxRounds int) *openai.Provider {
	t.Helper()

	provider, err := openai.NewProvider(openai.Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Timeout: 5,
	}, openai.WithTools(clockTools(t), maxRounds))
	require.NoError(t, err)
	return provider
}

func newTestServer(t *testing.T, status int, contentType, body string, captured *capturedRequest) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		if captured != nil {
			require.NoError(t, json.Unmarshal(raw, captured))
		}

		w.Header().Set("Content-Type", contentType)
		w.Header().Set("x-ratelimit-limit-requests", "100")
		w.Header().Set("x-ratelimit-remaining-requests", "99")
		w.Header().Set("x-ratelimit-limit-tokens", "50000")
		w.Header().Set("x-ratelimit-remaining-tokens", "49000")
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func newProvider(t *testing.T, baseURL string) *openai.Provider {
	t.Helper()

	provider, err := openai.NewProvider(openai.Config{
		APIKey:  "test-key",
		BaseURL: baseURL,
		Timeout: 5,
	})
	require.NoError(t, err)
	return provider
}

func chatRequest(model string) *domain.ChatRequest {
	return &domain.ChatRequest{
		SessionID: "s1",
		Model:     model,
		Messages: []domain.Message{
			domain.NewSystemMessage("be brief"),
			domain.NewUserMessage("hi"),
			{Role: domain.RoleAssistant, Text: "hello", Reasoning: "never resent"},
			domain.NewUserMessage("again"),
		},
	}
}

func TestNewProvider(t *testing.T) {
	t.Run("should require an API key", func(t *testing.T) {
		provider, err := openai.NewProvider(openai.Config{})

		require.Nil(t, provider)
		require.ErrorContains(t, err, "OpenAI API key is required")
	})

	t.Run("should default the served models", func(t *testing.T) {
		provider, err := openai.NewProvider(openai.Config{APIKey: "k"})
		require.NoError(t, err)

		ctx := context.Background()
		require.Equal(t, "openai", provider.Name())
		require.Equal(t, []string{"deepseek-chat", "deepseek-reasoner"}, provider.SupportedModels(ctx))
		require.True(t, provider.IsModelSupported(ctx, "deepseek-reasoner"))
		require.False(t, provider.IsModelSupported(ctx, "gpt-4"))
	})

	t.Run("should serve configured models", func(t *testing.T) {
		provider, err := openai.NewProvider(openai.Config{APIKey: "k", Models: []string{"gpt-4o"}})
		require.NoError(t, err)

		require.True(t, provider.IsModelSupported(context.Background(), "gpt-4o"))
		require.False(t, provider.IsModelSupported(context.Background(), "deepseek-chat"))
	})
}

func TestProvider_Stream(t *testing.T) {
	ctx := context.Background()

	t.Run("should map reasoning, text, finish and usage chunks", func(t *testing.T) {
		var captured capturedRequest
		server := newTestServer(t, http.StatusOK, "text/event-stream", streamBody, &captured)
		provider := newProvider(t, server.URL)

		out, err := provider.Stream(ctx, chatRequest("deepseek-reasoner"))
		require.NoError(t, err)

		var fragments []domain.Fragment
		for f := range out {
			fragments = append(fragments, f)
		}

		require.Len(t, fragments, 5)
		require.Equal(t, "Let me think", fragments[0].ReasoningDelta)
		require.Equal(t, &domain.RateLimit{
			RequestsLimit:     100,
			RequestsRemaining: 99,
			TokensLimit:       50000,
			TokensRemaining:   49000,
		}, fragments[0].RateLimit)
		require.Nil(t, fragments[1].RateLimit)
		require.Equal(t, "Hello", fragments[1].TextDelta)
		require.Equal(t, " there", fragments[2].TextDelta)
		require.Equal(t, "stop", fragments[3].Generation.FinishReason)
		require.Equal(t, &domain.Usage{PromptTokens: 9, CompletionTokens: 3, TotalTokens: 12}, fragments[4].Usage)
		require.Equal(t, "c1", fragments[4].ID)

		require.True(t, captured.Stream)
		require.NotNil(t, captured.StreamOptions)
		require.True(t, captured.StreamOptions.IncludeUsage)
		require.Equal(t, "deepseek-reasoner", captured.Model)
		require.Len(t, captured.Messages, 4)
		require.Equal(t, "system", captured.Messages[0].Role)
		require.Equal(t, "hello", captured.Messages[2].Content)
	})

	t.Run("should aggregate into a reasoning message", func(t *testing.T) {
		server := newTestServer(t, http.StatusOK, "text/event-stream", streamBody, nil)
		provider := newProvider(t, server.URL)

		out, err := provider.Stream(ctx, chatRequest("deepseek-reasoner"))
		require.NoError(t, err)

		var resp *domain.ChatResponse
		for range domain.NewFragmentAggregator().Aggregate(ctx, out, func(_ context.Context, r *domain.ChatResponse) {
			resp = r
		}) {
		}

		require.NotNil(t, resp)
		require.Equal(t, "Hello there", resp.Message.Text)
		require.Equal(t, "Let me think", resp.Message.Reasoning)
		require.Equal(t, 12, resp.Usage.TotalTokens)
		require.Equal(t, "deepseek-reasoner", resp.Model)
	})

	t.Run("should fail before streaming on client errors", func(t *testing.T) {
		server := newTestServer(t, http.StatusBadRequest, "application/json",
			`{"error":{"message":"model not found","type":"invalid_request_error"}}`, nil)
		provider := newProvider(t, server.URL)

		out, err := provider.Stream(ctx, chatRequest("missing"))

		require.Nil(t, out)
		require.ErrorContains(t, err, "failed to open stream")
	})

	t.Run("should reject nil requests", func(t *testing.T) {
		provider := newProvider(t, "http://127.0.0.1:0")

		out, err := provider.Stream(ctx, nil)

		require.Nil(t, out)
		require.ErrorContains(t, err, "request cannot be nil")
	})
}

func TestProvider_Call(t *testing.T) {
	ctx := context.Background()

	t.Run("should return text, reasoning, usage and quota", func(t *testing.T) {
		var captured capturedRequest
		server := newTestServer(t, http.StatusOK, "application/json", completionBody, &captured)
		provider := newProvider(t, server.URL)

		resp, err := provider.Call(ctx, chatRequest("deepseek-chat"))
		require.NoError(t, err)

		require.Equal(t, "r1", resp.ID)
		require.Equal(t, "Hi!", resp.Message.Text)
		require.Equal(t, "greet back", resp.Message.Reasoning)
		require.Equal(t, "stop", resp.Generation.FinishReason)
		require.Equal(t, 6, resp.Usage.TotalTokens)
		require.Equal(t, int64(49000), resp.RateLimit.TokensRemaining)
		require.False(t, captured.Stream)
	})

	t.Run("should wrap API errors", func(t *testing.T) {
		server := newTestServer(t, http.StatusBadRequest, "application/json",
			`{"error":{"message":"bad","type":"invalid_request_error"}}`, nil)
		provider := newProvider(t, server.URL)

		_, err := provider.Call(ctx, chatRequest("deepseek-chat"))

		require.ErrorContains(t, err, "chat completions call failed")
	})

	t.Run("should reject nil requests", func(t *testing.T) {
		provider := newProvider(t, "http://127.0.0.1:0")

		_, err := provider.Call(ctx, nil)

		require.ErrorContains(t, err, "request cannot be nil")
	})
}

func TestProvider_Tools(t *testing.T) {
	ctx := context.Background()

	t.Run("should answer tool calls before returning the reply", func(t *testing.T) {
		server, seq := newSequenceServer(t, "application/json", toolCallCompletion, completionBody)
		provider := newToolProvider(t, server.URL, 4)

		resp, err := provider.Call(ctx, chatRequest("deepseek-chat"))
		require.NoError(t, err)

		require.Equal(t, "Hi!", resp.Message.Text)
		require.Equal(t, 13, resp.Usage.TotalTokens)

		requests := seq.all()
		require.Len(t, requests, 2)
		require.Len(t, requests[0].Tools, 1)
		require.Equal(t, "get_current_time", requests[0].Tools[0].Function.Name)

		followUp := requests[1].Messages
		require.Len(t, followUp, 6)
		require.Equal(t, "assistant", followUp[4].Role)
		require.Equal(t, "tool", followUp[5].Role)
		require.Equal(t, "call_1", followUp[5].ToolCallID)
		require.Equal(t, "2025-05-30 09:00:00", followUp[5].Content)
	})

	t.Run("should stop calling tools after the round limit", func(t *testing.T) {
		server, seq := newSequenceServer(t, "application/json", toolCallCompletion)
		provider := newToolProvider(t, server.URL, 2)

		_, err := provider.Call(ctx, chatRequest("deepseek-chat"))
		require.NoError(t, err)
		require.Len(t, seq.all(), 3)
	})

	t.Run("should continue a stream after tool calls", func(t *testing.T) {
		server, seq := newSequenceServer(t, "text/event-stream", toolCallStream, streamBody)
		provider := newToolProvider(t, server.URL, 4)

		out, err := provider.Stream(ctx, chatRequest("deepseek-chat"))
		require.NoError(t, err)

		var fragments []domain.Fragment
		for f := range out {
			fragments = append(fragments, f)
		}

		require.Len(t, fragments, 5)
		require.Equal(t, "Hello", fragments[1].TextDelta)
		require.Equal(t, "stop", fragments[3].Generation.FinishReason)
		require.Equal(t, 19, fragments[4].Usage.TotalTokens)

		requests := seq.all()
		require.Len(t, requests, 2)
		require.True(t, requests[1].Stream)
		last := requests[1].Messages[len(requests[1].Messages)-1]
		require.Equal(t, "tool", last.Role)
		require.Equal(t, "2025-05-30 09:00:00", last.Content)
	})

	t.Run("should not offer tools without a registry", func(t *testing.T) {
		var captured capturedRequest
		server := newTestServer(t, http.StatusOK, "application/json", completionBody, &captured)

		_, err := newProvider(t, server.URL).Call(ctx, chatRequest("deepseek-chat"))
		require.NoError(t, err)
		require.Empty(t, captured.Tools)
	})
}

func TestRegisterPricing(t *testing.T) {
	t.Run("should price both default models", func(t *testing.T) {
		ctx := context.Background()
		registry := domain.NewInMemoryPricingRegistry()

		require.NoError(t, openai.RegisterPricing(ctx, registry))

		for _, model := range openai.DefaultModels() {
			pricing, err := registry.GetPricing(ctx, model)
			require.NoError(t, err)
			require.Greater(t, pricing.OutputCostPer1M, pricing.InputCostPer1M)
		}
	})
}
