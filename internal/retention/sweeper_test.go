package retention_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/mocks"
	"github.com/davidbz/hearth/internal/retention"
	"github.com/davidbz/hearth/internal/storage/memory"
	"github.com/davidbz/hearth/internal/workpool"
)

// blockingPruner holds a sweep open until released.
type blockingPruner struct {
	entered chan struct{}
	release chan struct{}
}

func (b *blockingPruner) Prune(context.Context) (int, error) {
	close(b.entered)
	<-b.release
	return 0, nil
}

func TestNewSweeper(t *testing.T) {
	t.Run("should reject invalid schedules", func(t *testing.T) {
		_, err := retention.NewSweeper(nil, &retention.Config{Cron: "every tuesday"})

		require.ErrorContains(t, err, "invalid prune schedule")
	})

	t.Run("should compute the next run", func(t *testing.T) {
		sweeper, err := retention.NewSweeper(nil, &retention.Config{Enabled: true, Cron: "*/30 * * * *"})
		require.NoError(t, err)

		next, err := sweeper.NextRun(time.Date(2025, 6, 1, 10, 5, 0, 0, time.UTC))
		require.NoError(t, err)
		require.Equal(t, time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC), next)
	})

	t.Run("should allow disabling the schedule", func(t *testing.T) {
		sweeper, err := retention.NewSweeper(nil, &retention.Config{Enabled: false, Cron: "*/30 * * * *"})
		require.NoError(t, err)

		_, err = sweeper.NextRun(time.Now())
		require.Error(t, err)

		cancel := sweeper.Start(context.Background())
		cancel()
	})
}

func TestSweeper_RunOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("should prune expired sessions from memory", func(t *testing.T) {
		now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		store := memory.NewHistoryStore(20, time.Hour, memory.WithClock(func() time.Time { return now }))
		require.NoError(t, store.AppendHistory(ctx, "old", []domain.Message{domain.NewUserMessage("x")}))
		now = now.Add(2 * time.Hour)

		chatMemory := domain.NewChatMemory(store, workpool.New(1), 20, nil)
		sweeper, err := retention.NewSweeper(chatMemory, &retention.Config{Cron: "*/30 * * * *"})
		require.NoError(t, err)

		removed, err := sweeper.RunOnce(ctx)
		require.NoError(t, err)
		require.Equal(t, 1, removed)
	})

	t.Run("should surface prune failures", func(t *testing.T) {
		store := mocks.NewMockHistoryStore(t)
		store.EXPECT().PruneExpired(mock.Anything).Return(0, errors.New("connection reset"))
		sweeper, err := retention.NewSweeper(domain.NewChatMemory(store, workpool.New(1), 20, nil), &retention.Config{})
		require.NoError(t, err)

		_, err = sweeper.RunOnce(ctx)
		require.ErrorContains(t, err, "connection reset")
	})

	t.Run("should refuse overlapping sweeps", func(t *testing.T) {
		pruner := &blockingPruner{entered: make(chan struct{}), release: make(chan struct{})}
		sweeper, err := retention.NewSweeper(pruner, &retention.Config{})
		require.NoError(t, err)

		done := make(chan error, 1)
		go func() {
			_, runErr := sweeper.RunOnce(ctx)
			done <- runErr
		}()
		<-pruner.entered

		_, err = sweeper.RunOnce(ctx)
		require.ErrorIs(t, err, retention.ErrSweepRunning)

		close(pruner.release)
		require.NoError(t, <-done)
	})
}
