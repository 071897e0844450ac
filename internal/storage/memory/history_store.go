// Package memory provides a process-local HistoryStore.
package memory

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/davidbz/hearth/internal/domain"
)

type conversation struct {
	messages  []domain.Message
	expiresAt time.Time
}

// HistoryStore keeps conversation windows in memory with the same index and
// TTL semantics as the Redis store.
type HistoryStore struct {
	mu            sync.RWMutex
	conversations map[string]*conversation
	index         map[string]struct{}
	window        int
	ttl           time.Duration
	now           func() time.Time
}

// Option configures a HistoryStore.
type Option func(*HistoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *HistoryStore) {
		s.now = now
	}
}

// NewHistoryStore creates an in-memory store keeping window messages per
// session for ttl after the last append.
func NewHistoryStore(window int, ttl time.Duration, opts ...Option) *HistoryStore {
	if window <= 0 {
		window = domain.DefaultMemoryWindow
	}

	s := &HistoryStore{
		mu:            sync.RWMutex{},
		conversations: make(map[string]*conversation),
		index:         make(map[string]struct{}),
		window:        window,
		ttl:           ttl,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ListSessions returns the indexed session ids in sorted order.
func (s *HistoryStore) ListSessions(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]string, 0, len(s.index))
	for id := range s.index {
		sessions = append(sessions, id)
	}
	slices.Sort(sessions)
	return sessions, nil
}

// LoadHistory returns a copy of the session's live messages.
func (s *HistoryStore) LoadHistory(_ context.Context, sessionID string) ([]domain.Message, error) {
	if sessionID == "" {
		return nil, errors.New("session id cannot be empty")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	conv, ok := s.conversations[sessionID]
	if !ok || s.expired(conv) {
		return []domain.Message{}, nil
	}
	return slices.Clone(conv.messages), nil
}

// AppendHistory appends messages, trims to the window and refreshes the TTL.
func (s *HistoryStore) AppendHistory(_ context.Context, sessionID string, messages []domain.Message) error {
	if sessionID == "" {
		return errors.New("session id cannot be empty")
	}
	if len(messages) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[sessionID]
	if !ok || s.expired(conv) {
		conv = &conversation{}
		s.conversations[sessionID] = conv
	}

	conv.messages = append(conv.messages, messages...)
	if overflow := len(conv.messages) - s.window; overflow > 0 {
		conv.messages = slices.Clone(conv.messages[overflow:])
	}
	if s.ttl > 0 {
		conv.expiresAt = s.now().Add(s.ttl)
	}

	s.index[sessionID] = struct{}{}
	return nil
}

// DeleteHistory removes the session's messages and index entry.
func (s *HistoryStore) DeleteHistory(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session id cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.conversations, sessionID)
	delete(s.index, sessionID)
	return nil
}

// PruneExpired drops index entries whose conversation has expired.
func (s *HistoryStore) PruneExpired(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id := range s.index {
		conv, ok := s.conversations[id]
		if ok && !s.expired(conv) {
			continue
		}
		delete(s.conversations, id)
		delete(s.index, id)
		removed++
	}
	return removed, nil
}

func (s *HistoryStore) expired(conv *conversation) bool {
	return !conv.expiresAt.IsZero() && !s.now().Before(conv.expiresAt)
}
