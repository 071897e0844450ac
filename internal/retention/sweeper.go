// Package retention runs scheduled expiry sweeps over conversation memory.
package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/adhocore/gronx"

	"github.com/davidbz/hearth/internal/observability"
)

const retryDelay = 30 * time.Second

// ErrSweepRunning is returned when a sweep is requested while one is in progress.
var ErrSweepRunning = errors.New("expiry sweep already running")

// Config holds the sweep schedule.
type Config struct {
	Enabled bool   `env:"MEMORY_PRUNE_ENABLED" envDefault:"true"`
	Cron    string `env:"MEMORY_PRUNE_CRON"    envDefault:"*/30 * * * *"`
}

// Pruner removes expired sessions and reports how many were removed.
type Pruner interface {
	Prune(ctx context.Context) (int, error)
}

// Sweeper prunes expired sessions on a cron schedule.
type Sweeper struct {
	pruner  Pruner
	cron    string
	now     func() time.Time
	mu      sync.Mutex
	running bool
}

// NewSweeper validates the schedule and creates a sweeper.
func NewSweeper(pruner Pruner, cfg *Config) (*Sweeper, error) {
	if cfg.Cron != "" && !gronx.New().IsValid(cfg.Cron) {
		return nil, fmt.Errorf("invalid prune schedule %q", cfg.Cron)
	}
	s := &Sweeper{
		pruner: pruner,
		now:    time.Now,
	}
	if cfg.Enabled {
		s.cron = cfg.Cron
	}
	return s, nil
}

// NextRun returns the first scheduled sweep after t.
func (s *Sweeper) NextRun(t time.Time) (time.Time, error) {
	if s.cron == "" {
		return time.Time{}, errors.New("scheduled sweeps are disabled")
	}
	return gronx.NextTickAfter(s.cron, t, false)
}

// Start runs the schedule until the returned cancel func is called or ctx ends.
func (s *Sweeper) Start(ctx context.Context) context.CancelFunc {
	logger := observability.FromContext(ctx)
	if s.cron == "" {
		logger.Info("scheduled expiry sweeps disabled")
		return func() {}
	}

	ctx, cancel := context.WithCancel(ctx)
	logger.Info("scheduled expiry sweeps enabled", observability.String("cron", s.cron))
	go s.loop(ctx)
	return cancel
}

// RunOnce performs one sweep now.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return 0, ErrSweepRunning
	}
	s.running = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	started := s.now()
	removed, err := s.pruner.Prune(ctx)
	if err != nil {
		return 0, err
	}

	observability.FromContext(ctx).Info("expiry sweep finished",
		observability.Int("removed", removed),
		observability.Duration("duration", s.now().Sub(started)))
	return removed, nil
}

func (s *Sweeper) loop(ctx context.Context) {
	logger := observability.FromContext(ctx)

	for {
		next, err := s.NextRun(s.now())
		if err != nil {
			logger.Error("failed to compute next sweep", observability.Error(err))
			if !sleep(ctx, retryDelay) {
				return
			}
			continue
		}

		if !sleep(ctx, time.Until(next)) {
			return
		}

		if _, err := s.RunOnce(ctx); err != nil && !errors.Is(err, ErrSweepRunning) {
			logger.Error("expiry sweep failed", observability.Error(err))
		}
	}
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}
