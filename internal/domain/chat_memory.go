package domain

import (
	"context"
	"errors"
	"fmt"

	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/workpool"
)

// DefaultMemoryWindow is the number of messages kept per session.
const DefaultMemoryWindow = 20

// ChatMemory keeps a bounded window of each session's conversation.
// Persistence failures during a turn are logged and swallowed.
type ChatMemory struct {
	store   HistoryStore
	pool    *workpool.Pool
	window  int
	metrics *observability.Metrics
}

// NewChatMemory creates a memory over store. Blocking store calls run on pool.
func NewChatMemory(store HistoryStore, pool *workpool.Pool, window int, metrics *observability.Metrics) *ChatMemory {
	if window <= 0 {
		window = DefaultMemoryWindow
	}
	return &ChatMemory{
		store:   store,
		pool:    pool,
		window:  window,
		metrics: metrics,
	}
}

// Window returns the configured window size.
func (m *ChatMemory) Window() int {
	return m.window
}

// Before prepends the stored window to instructions and records the new
// user message, the last user entry of instructions.
func (m *ChatMemory) Before(ctx context.Context, sessionID string, instructions []Message) []Message {
	logger := observability.FromContext(ctx)

	history, err := workpool.Run(ctx, m.pool, func(ctx context.Context) ([]Message, error) {
		return m.store.LoadHistory(ctx, sessionID)
	})
	if err != nil {
		logger.Warn("failed to load conversation memory, continuing without it",
			observability.Error(err))
		m.metrics.MemoryFailed("load")
		history = nil
	}
	history = m.trim(history)

	augmented := make([]Message, 0, len(history)+len(instructions))
	augmented = append(augmented, history...)
	augmented = append(augmented, instructions...)

	for i := len(instructions) - 1; i >= 0; i-- {
		if instructions[i].Role == RoleUser {
			m.save(ctx, sessionID, []Message{instructions[i]})
			break
		}
	}

	logger.Debug("conversation memory applied",
		observability.Int("history_messages", len(history)))

	return augmented
}

// After records messages produced by the model.
func (m *ChatMemory) After(ctx context.Context, sessionID string, produced []Message) {
	if len(produced) == 0 {
		return
	}
	m.save(ctx, sessionID, produced)
}

// History returns the stored window for a session.
func (m *ChatMemory) History(ctx context.Context, sessionID string) ([]Message, error) {
	if sessionID == "" {
		return nil, errors.New("session id cannot be empty")
	}

	history, err := m.store.LoadHistory(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return m.trim(history), nil
}

// Sessions lists every session with stored history.
func (m *ChatMemory) Sessions(ctx context.Context) ([]string, error) {
	sessions, err := m.store.ListSessions(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// Clear deletes a session's history.
func (m *ChatMemory) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session id cannot be empty")
	}

	if err := m.store.DeleteHistory(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}

// Prune removes index entries of expired sessions.
func (m *ChatMemory) Prune(ctx context.Context) (int, error) {
	removed, err := m.store.PruneExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to prune expired sessions: %w", err)
	}
	m.metrics.SessionsPruned(removed)
	return removed, nil
}

func (m *ChatMemory) save(ctx context.Context, sessionID string, messages []Message) {
	err := m.pool.Do(ctx, func(ctx context.Context) error {
		return m.store.AppendHistory(ctx, sessionID, messages)
	})
	if err != nil {
		observability.FromContext(ctx).Warn("failed to save conversation memory",
			observability.Int("messages", len(messages)),
			observability.Error(err))
		m.metrics.MemoryFailed("save")
	}
}

func (m *ChatMemory) trim(history []Message) []Message {
	if len(history) <= m.window {
		return history
	}
	return history[len(history)-m.window:]
}
