package interceptor

import (
	"context"
	"errors"
	"time"

	"github.com/davidbz/hearth/internal/domain"
	"github.com/davidbz/hearth/internal/observability"
)

// Cancellation ends a session's stream when its stop signal fires or the
// optional deadline passes. Inner stages see the cancellation through ctx.
type Cancellation struct {
	registry    *domain.CancellationRegistry
	maxDuration time.Duration
	metrics     *observability.Metrics
}

// NewCancellation creates the stage. A zero maxDuration disables the deadline.
func NewCancellation(
	registry *domain.CancellationRegistry,
	maxDuration time.Duration,
	metrics *observability.Metrics,
) *Cancellation {
	return &Cancellation{
		registry:    registry,
		maxDuration: maxDuration,
		metrics:     metrics,
	}
}

// Name implements domain.Interceptor.
func (c *Cancellation) Name() string { return "cancellation" }

// Priority implements domain.Interceptor.
func (c *Cancellation) Priority() int { return PriorityCancellation }

// WrapStream races the inner stream against the session's stop signal.
func (c *Cancellation) WrapStream(
	ctx context.Context,
	req *domain.ChatRequest,
	next domain.StreamFunc,
) (<-chan domain.Fragment, error) {
	signal := c.registry.SignalFor(req.SessionID)

	streamCtx, cancel := context.WithCancel(ctx)
	if c.maxDuration > 0 {
		streamCtx, cancel = context.WithTimeout(ctx, c.maxDuration)
	}

	in, err := next(streamCtx, req)
	if err != nil {
		cancel()
		c.registry.Release(req.SessionID, signal)
		return nil, err
	}

	out := make(chan domain.Fragment)
	go func() {
		defer close(out)
		defer c.registry.Release(req.SessionID, signal)
		defer cancel()

		started := time.Now()
		outcome := c.forward(streamCtx, cancel, signal, in, out)
		c.metrics.StreamFinished(outcome)

		observability.FromContext(ctx).Info("stream finished",
			observability.String("outcome", outcome),
			observability.Duration("duration", time.Since(started)))
	}()

	return out, nil
}

func (c *Cancellation) forward(
	streamCtx context.Context,
	cancel context.CancelFunc,
	signal *domain.Signal,
	in <-chan domain.Fragment,
	out chan<- domain.Fragment,
) string {
	stop := func() string {
		cancel()
		drain(in)
		return outcomeOf(streamCtx)
	}

	for {
		select {
		case <-signal.Done():
			return stop()

		case <-streamCtx.Done():
			return stop()

		case f, ok := <-in:
			if !ok {
				if streamCtx.Err() != nil {
					return outcomeOf(streamCtx)
				}
				return observability.OutcomeCompleted
			}

			select {
			case out <- f:
			case <-signal.Done():
				return stop()
			case <-streamCtx.Done():
				return stop()
			}

			if f.Error != nil {
				drain(in)
				if errors.Is(f.Error, context.DeadlineExceeded) {
					return observability.OutcomeTimeout
				}
				return observability.OutcomeFailed
			}
		}
	}
}

func outcomeOf(ctx context.Context) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return observability.OutcomeTimeout
	}
	return observability.OutcomeCancelled
}

// drain waits for inner stages to finish, which includes their completion hooks.
func drain(in <-chan domain.Fragment) {
	//nolint:revive // intentionally empty
	for range in {
	}
}
