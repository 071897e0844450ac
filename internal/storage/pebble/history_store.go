// Package pebble provides an embedded, durable HistoryStore for single-node
// deployments without Redis.
package pebble

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/maphash"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
	"github.com/davidbz/hearth/internal/storage"
)

const (
	dataPrefix  = "chat:session/"
	indexPrefix = "chat:index/"
	lockStripes = 64
)

// Config contains pebble storage settings.
type Config struct {
	Path string `env:"PEBBLE_PATH" envDefault:"data/history"`
}

// Open opens (or creates) the database at cfg.Path.
func Open(cfg *Config) (*pebble.DB, error) {
	db, err := pebble.Open(cfg.Path, &pebble.Options{})
	if err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", cfg.Path, err)
	}
	return db, nil
}

type envelope struct {
	ExpiresAt int64             `json:"expires_at"`
	Records   []json.RawMessage `json:"records"`
}

// HistoryStore keeps one envelope per session plus an index key per session.
// Writes for one session are serialized on a fixed set of lock stripes.
type HistoryStore struct {
	db     *pebble.DB
	window int
	ttl    time.Duration
	now    func() time.Time
	seed   maphash.Seed
	locks  [lockStripes]sync.Mutex
}

// Option configures a HistoryStore.
type Option func(*HistoryStore)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *HistoryStore) {
		s.now = now
	}
}

// NewHistoryStore creates a pebble-backed history store.
func NewHistoryStore(db *pebble.DB, window int, ttl time.Duration, opts ...Option) *HistoryStore {
	if window <= 0 {
		window = domain.DefaultMemoryWindow
	}
	s := &HistoryStore{
		db:     db,
		window: window,
		ttl:    ttl,
		now:    time.Now,
		seed:   maphash.MakeSeed(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func dataKey(sessionID string) []byte  { return []byte(dataPrefix + sessionID) }
func indexKey(sessionID string) []byte { return []byte(indexPrefix + sessionID) }

// prefixUpperBound returns the smallest key greater than every key with prefix.
func prefixUpperBound(prefix string) []byte {
	end := []byte(prefix)
	for i := len(end) - 1; i >= 0; i-- {
		end[i]++
		if end[i] != 0 {
			return end[:i+1]
		}
	}
	return nil
}

func (s *HistoryStore) lock(sessionID string) func() {
	m := &s.locks[maphash.String(s.seed, sessionID)%lockStripes]
	m.Lock()
	return m.Unlock
}

// ListSessions returns indexed session ids in key order.
func (s *HistoryStore) ListSessions(_ context.Context) ([]string, error) {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte(indexPrefix),
		UpperBound: prefixUpperBound(indexPrefix),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open index iterator: %w", err)
	}

	var sessions []string
	for iter.First(); iter.Valid(); iter.Next() {
		sessions = append(sessions, string(iter.Key()[len(indexPrefix):]))
	}

	if closeErr := iter.Close(); closeErr != nil {
		return nil, fmt.Errorf("failed to scan index: %w", closeErr)
	}
	return sessions, nil
}

// LoadHistory returns the session's live messages, oldest first.
func (s *HistoryStore) LoadHistory(ctx context.Context, sessionID string) ([]domain.Message, error) {
	if sessionID == "" {
		return nil, errors.New("session id cannot be empty")
	}

	env, found, err := s.read(sessionID)
	if err != nil {
		return nil, err
	}
	if !found || s.expired(env) {
		return []domain.Message{}, nil
	}

	logger := observability.FromContext(ctx)
	messages := make([]domain.Message, 0, len(env.Records))
	for _, raw := range env.Records {
		msg, decodeErr := storage.DecodeMessage(raw)
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

// AppendHistory appends messages, trims to the window, refreshes the expiry
// and indexes the session in one synced batch.
func (s *HistoryStore) AppendHistory(_ context.Context, sessionID string, messages []domain.Message) error {
	if sessionID == "" {
		return errors.New("session id cannot be empty")
	}
	if len(messages) == 0 {
		return nil
	}

	unlock := s.lock(sessionID)
	defer unlock()

	env, found, err := s.read(sessionID)
	if err != nil {
		return err
	}
	if !found || s.expired(env) {
		env = envelope{}
	}

	for _, msg := range messages {
		data, encodeErr := storage.EncodeMessage(msg)
		if encodeErr != nil {
			return encodeErr
		}
		env.Records = append(env.Records, data)
	}
	if overflow := len(env.Records) - s.window; overflow > 0 {
		env.Records = env.Records[overflow:]
	}
	env.ExpiresAt = 0
	if s.ttl > 0 {
		env.ExpiresAt = s.now().Add(s.ttl).UnixNano()
	}

	payload, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Set(dataKey(sessionID), payload, nil); err != nil {
		return fmt.Errorf("failed to stage history: %w", err)
	}
	if err := batch.Set(indexKey(sessionID), nil, nil); err != nil {
		return fmt.Errorf("failed to stage index: %w", err)
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		return fmt.Errorf("failed to append history: %w", err)
	}
	return nil
}

// DeleteHistory removes the session's data and index keys.
func (s *HistoryStore) DeleteHistory(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return errors.New("session id cannot be empty")
	}

	unlock := s.lock(sessionID)
	defer unlock()

	if err := s.remove(sessionID); err != nil {
		return fmt.Errorf("failed to delete history: %w", err)
	}
	return nil
}

// PruneExpired removes sessions whose data is missing or past expiry.
func (s *HistoryStore) PruneExpired(ctx context.Context) (int, error) {
	sessions, err := s.ListSessions(ctx)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range sessions {
		pruned, pruneErr := s.pruneOne(id)
		if pruneErr != nil {
			return removed, pruneErr
		}
		if pruned {
			removed++
		}
	}
	return removed, nil
}

func (s *HistoryStore) pruneOne(sessionID string) (bool, error) {
	unlock := s.lock(sessionID)
	defer unlock()

	env, found, err := s.read(sessionID)
	if err != nil {
		return false, err
	}
	if found && !s.expired(env) {
		return false, nil
	}

	if err := s.remove(sessionID); err != nil {
		return false, fmt.Errorf("failed to prune session %s: %w", sessionID, err)
	}
	return true, nil
}

func (s *HistoryStore) read(sessionID string) (envelope, bool, error) {
	value, closer, err := s.db.Get(dataKey(sessionID))
	if errors.Is(err, pebble.ErrNotFound) {
		return envelope{}, false, nil
	}
	if err != nil {
		return envelope{}, false, fmt.Errorf("failed to read history: %w", err)
	}
	defer closer.Close()

	var env envelope
	if err := json.Unmarshal(value, &env); err != nil {
		return envelope{}, false, fmt.Errorf("failed to decode history: %w", err)
	}
	return env, true, nil
}

func (s *HistoryStore) remove(sessionID string) error {
	batch := s.db.NewBatch()
	defer batch.Close()

	if err := batch.Delete(dataKey(sessionID), nil); err != nil {
		return err
	}
	if err := batch.Delete(indexKey(sessionID), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

func (s *HistoryStore) expired(env envelope) bool {
	return env.ExpiresAt > 0 && s.now().UnixNano() >= env.ExpiresAt
}
