package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/davidbz/hearth/internal/config"
	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
)

const sessionParam = "chatSessionId"

// Handler handles HTTP requests.
type Handler struct {
	chat   *domain.ChatService
	memory *domain.ChatMemory
	config *config.MemoryConfig
}

// NewHandler creates a new HTTP handler (DI constructor).
func NewHandler(chat *domain.ChatService, memory *domain.ChatMemory, cfg *config.MemoryConfig) *Handler {
	return &Handler{
		chat:   chat,
		memory: memory,
		config: cfg,
	}
}

// HandleStream runs a turn and relays its fragments as server-sent events.
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	turn, ok := decodeTurn(w, r)
	if !ok {
		return
	}

	logger := observability.FromContext(ctx)

	flusher, ok := w.(http.Flusher)
	if !ok {
		logger.Error("streaming not supported")
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	fragments, err := h.chat.Stream(ctx, turn)
	if err != nil {
		logger.Error("stream failed", observability.Error(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	relay(ctx, w, flusher, fragments)
}

// relay writes fragments until the stream closes. The channel is always
// drained so upstream stages can finish their writes.
func relay(ctx context.Context, w http.ResponseWriter, flusher http.Flusher, fragments <-chan domain.Fragment) {
	logger := observability.FromContext(ctx)
	writable := true

	for fragment := range fragments {
		if !writable {
			continue
		}

		if fragment.Error != nil {
			logger.Error("stream fragment error", observability.Error(fragment.Error))
			fmt.Fprintf(w, "event: error\ndata: %s\n\n", fragment.Error.Error())
			flusher.Flush()
			writable = false
			continue
		}

		data, err := json.Marshal(fragment)
		if err != nil {
			logger.Error("failed to encode fragment", observability.Error(err))
			continue
		}
		if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
			logger.Info("client went away", observability.Error(err))
			writable = false
			continue
		}
		flusher.Flush()
	}

	logger.Info("stream response finished")
}

// HandleCall runs a blocking turn.
func (h *Handler) HandleCall(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	turn, ok := decodeTurn(w, r)
	if !ok {
		return
	}

	logger := observability.FromContext(ctx)

	response, err := h.chat.Call(ctx, turn)
	if err != nil {
		logger.Error("completion failed", observability.Error(err))
		http.Error(w, err.Error(), statusFor(err))
		return
	}

	logger.Info("completion succeeded",
		observability.Int("tokens", response.Usage.TotalTokens),
		observability.Float64("cost", response.Usage.Cost),
	)

	writeJSON(ctx, w, http.StatusOK, response)
}

// HandleStop signals the session's in-flight stream and returns immediately.
func (h *Handler) HandleStop(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get(sessionParam)
	if sessionID == "" {
		sessionID = domain.DefaultSessionID
	}

	stopped := h.chat.Stop(r.Context(), sessionID)

	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		sessionParam: sessionID,
		"stopped":    stopped,
	})
}

// HandleListConversations lists the stored session ids.
func (h *Handler) HandleListConversations(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.memory.Sessions(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).Error("failed to list conversations", observability.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"conversations": sessions,
		"count":         len(sessions),
	})
}

// HandleGetConversation returns one session's stored window.
func (h *Handler) HandleGetConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	messages, err := h.memory.History(r.Context(), sessionID)
	if err != nil {
		observability.FromContext(r.Context()).Error("failed to load conversation", observability.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if messages == nil {
		messages = []domain.Message{}
	}

	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		sessionParam: sessionID,
		"messages":   messages,
		"count":      len(messages),
	})
}

// HandleDeleteConversation forgets one session.
func (h *Handler) HandleDeleteConversation(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	if err := h.memory.Clear(r.Context(), sessionID); err != nil {
		observability.FromContext(r.Context()).Error("failed to delete conversation", observability.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		sessionParam: sessionID,
		"deleted":    true,
	})
}

// HandleCleanup removes expired sessions now.
func (h *Handler) HandleCleanup(w http.ResponseWriter, r *http.Request) {
	removed, err := h.memory.Prune(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).Error("cleanup failed", observability.Error(err))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, map[string]int{"removed": removed})
}

// HandleMemoryStatus reports the backend and its current load.
func (h *Handler) HandleMemoryStatus(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.memory.Sessions(r.Context())
	if err != nil {
		observability.FromContext(r.Context()).Error("failed to read memory status", observability.Error(err))
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}

	writeJSON(r.Context(), w, http.StatusOK, map[string]any{
		"backend":       h.config.Backend,
		"window":        h.memory.Window(),
		"ttl":           h.config.TTL.String(),
		"sessions":      len(sessions),
		"activeStreams": h.chat.ActiveStreams(),
	})
}

// HandleHealth handles health check requests.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func decodeTurn(w http.ResponseWriter, r *http.Request) (*domain.TurnRequest, bool) {
	var turn domain.TurnRequest
	if err := json.NewDecoder(r.Body).Decode(&turn); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return nil, false
	}
	return &turn, true
}

func statusFor(err error) int {
	if errors.Is(err, domain.ErrEmptyPrompt) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		observability.FromContext(ctx).Error("failed to encode response", observability.Error(err))
	}
}
