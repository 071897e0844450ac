package http_test

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/hearth/internal/config"
	"github.com/davidbz/hearth/internal/domain"
	hearthhttp "github.com/davidbz/hearth/internal/http"
	"github.com/davidbz/hearth/internal/interceptor"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/provider/echo"
	"github.com/davidbz/hearth/internal/provider/registry"
	"github.com/davidbz/hearth/internal/routing"
	"github.com/davidbz/hearth/internal/storage/memory"
	"github.com/davidbz/hearth/internal/workpool"
)

type fixture struct {
	server  *httptest.Server
	handler *hearthhttp.Handler
	store   *memory.HistoryStore
}

func newFixture(t *testing.T, opts ...echo.Option) *fixture {
	t.Helper()

	ctx := context.Background()
	providers := registry.NewRegistry()
	require.NoError(t, providers.Register(ctx, echo.NewProvider(opts...)))
	router := routing.NewModeRouter(providers, &routing.Config{
		ChatModel:     echo.ChatModel,
		ReasonerModel: echo.ReasonerModel,
	})

	promRegistry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(promRegistry)
	store := memory.NewHistoryStore(20, time.Hour)
	chatMemory := domain.NewChatMemory(store, workpool.New(4), 20, metrics)
	cancellations := domain.NewCancellationRegistry()
	chain := domain.NewInterceptorChain(nil,
		interceptor.NewCancellation(cancellations, 0, metrics),
		interceptor.NewMemory(chatMemory),
	)
	service := domain.NewChatService(providers, router, chain, cancellations, "", metrics)

	handler := hearthhttp.NewHandler(service, chatMemory, &config.MemoryConfig{
		Backend: config.BackendMemory,
		Window:  20,
		TTL:     time.Hour,
	})
	server := httptest.NewServer(hearthhttp.NewServer(&config.ServerConfig{}, handler, nil, promRegistry).Routes())
	t.Cleanup(server.Close)

	return &fixture{server: server, handler: handler, store: store}
}

// plainWriter is a ResponseWriter without http.Flusher.
type plainWriter struct {
	header http.Header
	status int
	body   strings.Builder
}

func (w *plainWriter) Header() http.Header { return w.header }

func (w *plainWriter) Write(p []byte) (int, error) { return w.body.Write(p) }

func (w *plainWriter) WriteHeader(status int) { w.status = status }

func (f *fixture) post(t *testing.T, path, body string) *http.Response {
	t.Helper()

	resp, err := http.Post(f.server.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	return resp
}

func (f *fixture) do(t *testing.T, method, path string) *http.Response {
	t.Helper()

	req, err := http.NewRequest(method, f.server.URL+path, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()

	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

// sseEvent is one parsed server-sent event.
type sseEvent struct {
	name string
	data string
}

func readEvents(t *testing.T, resp *http.Response, onEvent func(sseEvent)) []sseEvent {
	t.Helper()
	defer resp.Body.Close()

	var events []sseEvent
	current := sseEvent{}
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, "event: "):
			current.name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			current.data = strings.TrimPrefix(line, "data: ")
		case line == "":
			if current.data == "" {
				continue
			}
			events = append(events, current)
			if onEvent != nil {
				onEvent(current)
			}
			current = sseEvent{}
		}
	}
	return events
}

func joinText(t *testing.T, events []sseEvent) (string, string) {
	t.Helper()

	var text, reasoning strings.Builder
	for _, e := range events {
		var fragment domain.Fragment
		require.NoError(t, json.Unmarshal([]byte(e.data), &fragment))
		text.WriteString(fragment.TextDelta)
		reasoning.WriteString(fragment.ReasoningDelta)
	}
	return text.String(), reasoning.String()
}

func TestHandler_Stream(t *testing.T) {
	t.Run("should stream fragments and persist the turn", func(t *testing.T) {
		f := newFixture(t, echo.WithChunkDelay(0))

		resp := f.post(t, "/api/chat/stream", `{"prompt":"hello world","chatSessionId":"s1"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		require.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		text, reasoning := joinText(t, readEvents(t, resp, nil))
		require.Equal(t, "echo: hello world", text)
		require.Empty(t, reasoning)

		history, err := f.store.LoadHistory(context.Background(), "s1")
		require.NoError(t, err)
		require.Len(t, history, 2)
		require.Equal(t, "hello world", history[0].Text)
		require.Equal(t, "echo: hello world", history[1].Text)
	})

	t.Run("should stream reasoning in thinking mode", func(t *testing.T) {
		f := newFixture(t, echo.WithChunkDelay(0))

		resp := f.post(t, "/api/chat/stream", `{"prompt":"why","thinkingMode":true}`)
		_, reasoning := joinText(t, readEvents(t, resp, nil))

		require.Contains(t, reasoning, `The user said "why"`)
	})

	t.Run("should reject malformed and empty turns", func(t *testing.T) {
		f := newFixture(t)

		resp := f.post(t, "/api/chat/stream", `{"prompt":`)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)

		resp = f.post(t, "/api/chat/stream", `{"prompt":"  "}`)
		resp.Body.Close()
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("should not start a turn when the writer cannot flush", func(t *testing.T) {
		f := newFixture(t, echo.WithChunkDelay(0))
		w := &plainWriter{header: http.Header{}}
		req := httptest.NewRequest(http.MethodPost, "/api/chat/stream",
			strings.NewReader(`{"prompt":"hello","chatSessionId":"s3"}`))

		f.handler.HandleStream(w, req)

		require.Equal(t, http.StatusInternalServerError, w.status)
		require.Contains(t, w.body.String(), "streaming not supported")
		history, err := f.store.LoadHistory(context.Background(), "s3")
		require.NoError(t, err)
		require.Empty(t, history)
	})

	t.Run("should stop a running stream and keep the partial answer", func(t *testing.T) {
		f := newFixture(t, echo.WithChunkDelay(100*time.Millisecond))
		prompt := strings.Repeat("word ", 50)

		resp := f.post(t, "/api/chat/stream", `{"prompt":"`+prompt+`","chatSessionId":"s2"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		stopped := make(chan bool, 1)
		events := readEvents(t, resp, func(sseEvent) {
			if len(stopped) > 0 {
				return
			}
			body := decode[map[string]any](t, f.post(t, "/api/chat/stop?chatSessionId=s2", ""))
			stopped <- body["stopped"].(bool)
		})

		require.True(t, <-stopped)
		text, _ := joinText(t, events)
		require.NotEmpty(t, text)
		require.Less(t, len(text), len("echo: "+prompt))

		history, err := f.store.LoadHistory(context.Background(), "s2")
		require.NoError(t, err)
		require.Len(t, history, 2)
		require.Equal(t, domain.RoleAssistant, history[1].Role)
		require.True(t, strings.HasPrefix(history[1].Text, text))
	})
}

func TestHandler_Call(t *testing.T) {
	t.Run("should return the complete response", func(t *testing.T) {
		f := newFixture(t)

		resp := f.post(t, "/api/chat", `{"prompt":"hi","chatSessionId":"s1"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		body := decode[domain.ChatResponse](t, resp)
		require.Equal(t, "echo: hi", body.Message.Text)
		require.Equal(t, echo.ChatModel, body.Model)
	})
}

func TestHandler_Stop(t *testing.T) {
	t.Run("should report when no stream is active", func(t *testing.T) {
		f := newFixture(t)

		body := decode[map[string]any](t, f.post(t, "/api/chat/stop", ""))

		require.Equal(t, domain.DefaultSessionID, body["chatSessionId"])
		require.Equal(t, false, body["stopped"])
	})
}

func TestHandler_Memory(t *testing.T) {
	ctx := context.Background()

	t.Run("should list, read and delete conversations", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AppendHistory(ctx, "a", []domain.Message{domain.NewUserMessage("one")}))
		require.NoError(t, f.store.AppendHistory(ctx, "b", []domain.Message{domain.NewUserMessage("two")}))

		list := decode[map[string]any](t, f.do(t, http.MethodGet, "/api/chat/memory/conversations"))
		require.Equal(t, []any{"a", "b"}, list["conversations"])
		require.InDelta(t, 2, list["count"], 0)

		conversation := decode[struct {
			SessionID string           `json:"chatSessionId"`
			Messages  []domain.Message `json:"messages"`
		}](t, f.do(t, http.MethodGet, "/api/chat/memory/conversations/a"))
		require.Equal(t, "a", conversation.SessionID)
		require.Len(t, conversation.Messages, 1)
		require.Equal(t, "one", conversation.Messages[0].Text)

		resp := f.do(t, http.MethodDelete, "/api/chat/memory/conversations/a")
		resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		sessions, err := f.store.ListSessions(ctx)
		require.NoError(t, err)
		require.Equal(t, []string{"b"}, sessions)
	})

	t.Run("should return an empty window for unknown sessions", func(t *testing.T) {
		f := newFixture(t)

		body := decode[map[string]any](t, f.do(t, http.MethodGet, "/api/chat/memory/conversations/nobody"))

		require.Equal(t, []any{}, body["messages"])
	})

	t.Run("should report status and run cleanup", func(t *testing.T) {
		f := newFixture(t)
		require.NoError(t, f.store.AppendHistory(ctx, "a", []domain.Message{domain.NewUserMessage("one")}))

		status := decode[map[string]any](t, f.do(t, http.MethodGet, "/api/chat/memory/status"))
		require.Equal(t, config.BackendMemory, status["backend"])
		require.InDelta(t, 20, status["window"], 0)
		require.InDelta(t, 1, status["sessions"], 0)
		require.InDelta(t, 0, status["activeStreams"], 0)

		cleanup := decode[map[string]int](t, f.post(t, "/api/chat/memory/cleanup", ""))
		require.Equal(t, 0, cleanup["removed"])
	})
}

func TestServer_Routes(t *testing.T) {
	t.Run("should serve health and metrics", func(t *testing.T) {
		f := newFixture(t)

		health := decode[map[string]string](t, f.do(t, http.MethodGet, "/health"))
		require.Equal(t, "healthy", health["status"])

		resp := f.do(t, http.MethodGet, "/metrics")
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("should reject unknown methods", func(t *testing.T) {
		f := newFixture(t)

		resp := f.do(t, http.MethodGet, "/api/chat/stream")
		resp.Body.Close()
		require.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
	})
}
