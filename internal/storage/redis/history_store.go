package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/storage"
)

const (
	conversationKeyPrefix = "chat:conversation:"
	sessionIndexKey       = "chat:conversations"

	// DefaultTTL is how long an idle conversation is kept.
	DefaultTTL = 7 * 24 * time.Hour
)

// HistoryStore persists conversation windows in Redis. Each session is a
// list of JSON records; known sessions are members of one index set.
type HistoryStore struct {
	client *redis.Client
	window int
	ttl    time.Duration
}

// NewHistoryStore creates a Redis-backed history store.
func NewHistoryStore(client *redis.Client, window int, ttl time.Duration) *HistoryStore {
	if window <= 0 {
		window = domain.DefaultMemoryWindow
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &HistoryStore{
		client: client,
		window: window,
		ttl:    ttl,
	}
}

func conversationKey(sessionID string) string {
	return conversationKeyPrefix + sessionID
}

// ListSessions returns the indexed session ids in sorted order.
func (s *HistoryStore) ListSessions(ctx context.Context) ([]string, error) {
	sessions, err := s.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	slices.Sort(sessions)
	return sessions, nil
}

// LoadHistory returns the session's messages, oldest first. Records that
// cannot be decoded are skipped.
func (s *HistoryStore) LoadHistory(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if sessionID == "" {
		return nil, errors.New("session id cannot be empty")
	}

	raw, err := s.client.LRange(ctx, conversationKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}

	logger := observability.FromContext(ctx)
	messages := make([]domain.Message, 0, len(raw))
	for _, item := range raw {
		msg, decodeErr := storage.DecodeMessage([]byte(item))
		if decodeErr != nil {
			logger.Warn("skipping undecodable history record",
				observability.String("session_id", sessionID),
				observability.Error(decodeErr))
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// AppendHistory pushes messages, trims the list to the window, refreshes the
// TTL and indexes the session in one MULTI/EXEC.
func (s *HistoryStore) AppendHistory(ctx context.Context, sessionID string, messages []domain.Message) error {
	if sessionID == "" {
		return errors.New("session id cannot be empty")
	}
	if len(messages) == 0 {
		return nil
	}

	values := make([]any, 0, len(messages))
	for _, msg := range messages {
		data, err := storage.EncodeMessage(msg)
		if err != nil {
			return err
		}
		values = append(values, string(data))
	}

	key := conversationKey(sessionID)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.RPush(ctx, key, values...)
		pipe.LTrim(ctx, key, int64(-s.window), -1)
		pipe.Expire(ctx, key, s.ttl)
		pipe.SAdd(ctx, sessionIndexKey, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}

	return nil
}

// DeleteHistory removes the session's list and index entry.
func (s *HistoryStore) DeleteHistory(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session id cannot be empty")
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, conversationKey(sessionID))
		pipe.SRem(ctx, sessionIndexKey, sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}

	return nil
}

// PruneExpired removes index members whose list has expired.
func (s *HistoryStore) PruneExpired(ctx context.Context) (int, error) {
	sessions, err := s.client.SMembers(ctx, sessionIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to list sessions: %w", err)
	}
	if len(sessions) == 0 {
		return 0, nil
	}

	pipe := s.client.Pipeline()
	checks := make([]*redis.IntCmd, len(sessions))
	for i, id := range sessions {
		checks[i] = pipe.Exists(ctx, conversationKey(id))
	}
	if _, execErr := pipe.Exec(ctx); execErr != nil {
		return 0, fmt.Errorf("failed to check sessions: %w", execErr)
	}

	var expired []any
	for i, check := range checks {
		if check.Val() == 0 {
			expired = append(expired, sessions[i])
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	if remErr := s.client.SRem(ctx, sessionIndexKey, expired...).Err(); remErr != nil {
		return 0, fmt.Errorf("failed to prune sessions: %w", remErr)
	}

	observability.FromContext(ctx).Info("pruned expired sessions",
		observability.Int("removed", len(expired)))

	return len(expired), nil
}
