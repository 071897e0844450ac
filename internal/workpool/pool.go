// Package workpool bounds how many blocking I/O steps run at once.
package workpool

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

const defaultSize = 16

// Pool admits at most size concurrent tasks.
type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

// New creates a pool of the given size. Non-positive sizes use the default.
func New(size int) *Pool {
	if size <= 0 {
		size = defaultSize
	}
	return &Pool{
		sem:  semaphore.NewWeighted(int64(size)),
		size: int64(size),
	}
}

// Size returns the pool capacity.
func (p *Pool) Size() int {
	return int(p.size)
}

// Do runs fn once a slot is free. It fails without running fn if ctx ends first.
func (p *Pool) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("failed to acquire worker: %w", err)
	}
	defer p.sem.Release(1)

	return fn(ctx)
}

// Run is Do for tasks that produce a value.
func Run[T any](ctx context.Context, p *Pool, fn func(ctx context.Context) (T, error)) (T, error) {
	var result T
	err := p.Do(ctx, func(ctx context.Context) error {
		var fnErr error
		result, fnErr = fn(ctx)
		return fnErr
	})
	return result, err
}
