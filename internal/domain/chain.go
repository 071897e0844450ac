package domain

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/davidbz/hearth/internal/observability"
)

// StreamFunc produces the fragment stream for a request.
type StreamFunc func(ctx context.Context, req *ChatRequest) (<-chan Fragment, error)

// CallFunc produces a complete response for a request.
type CallFunc func(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

// Interceptor is a named, ordered stage around the model call.
// Lower priorities run earlier and wrap outermost.
type Interceptor interface {
	Name() string
	Priority() int
}

// RequestTransformer rewrites the request before the next stage runs.
type RequestTransformer interface {
	Interceptor
	Before(ctx context.Context, req *ChatRequest) (*ChatRequest, error)
}

// ResponseTransformer observes or rewrites a complete response. For streams it
// receives the message reconstructed by the aggregator.
type ResponseTransformer interface {
	Interceptor
	After(ctx context.Context, req *ChatRequest, resp *ChatResponse) (*ChatResponse, error)
}

// StreamWrapper owns its stage of a streaming call. When the same interceptor
// also transforms, Before runs ahead of WrapStream and After receives the
// message aggregated from the wrapped stream.
type StreamWrapper interface {
	Interceptor
	WrapStream(ctx context.Context, req *ChatRequest, next StreamFunc) (<-chan Fragment, error)
}

// InterceptorChain composes interceptors around a terminal model call.
type InterceptorChain struct {
	interceptors []Interceptor
	aggregator   *FragmentAggregator
}

// NewInterceptorChain sorts interceptors by priority. Equal priorities keep
// registration order.
func NewInterceptorChain(aggregator *FragmentAggregator, interceptors ...Interceptor) *InterceptorChain {
	if aggregator == nil {
		aggregator = NewFragmentAggregator()
	}

	sorted := make([]Interceptor, 0, len(interceptors))
	for _, ic := range interceptors {
		if ic != nil {
			sorted = append(sorted, ic)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Priority() < sorted[j].Priority()
	})

	return &InterceptorChain{
		interceptors: sorted,
		aggregator:   aggregator,
	}
}

// Names returns interceptor names in execution order.
func (c *InterceptorChain) Names() []string {
	names := make([]string, len(c.interceptors))
	for i, ic := range c.interceptors {
		names[i] = ic.Name()
	}
	return names
}

// Stream runs req through every interceptor and terminal.
func (c *InterceptorChain) Stream(ctx context.Context, req *ChatRequest, terminal StreamFunc) (<-chan Fragment, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if terminal == nil {
		return nil, errors.New("terminal stream cannot be nil")
	}

	next := terminal
	// Apply in reverse order so the first interceptor wraps outermost.
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		next = c.streamStage(c.interceptors[i], next)
	}
	return next(ctx, req)
}

// Call runs req through every Before and After around terminal. Stream
// wrappers take no part in blocking calls.
func (c *InterceptorChain) Call(ctx context.Context, req *ChatRequest, terminal CallFunc) (*ChatResponse, error) {
	if req == nil {
		return nil, errors.New("request cannot be nil")
	}
	if terminal == nil {
		return nil, errors.New("terminal call cannot be nil")
	}

	next := terminal
	for i := len(c.interceptors) - 1; i >= 0; i-- {
		next = callStage(c.interceptors[i], next)
	}
	return next(ctx, req)
}

func (c *InterceptorChain) streamStage(ic Interceptor, next StreamFunc) StreamFunc {
	stage := next
	if wrapper, ok := ic.(StreamWrapper); ok {
		stage = func(ctx context.Context, req *ChatRequest) (<-chan Fragment, error) {
			return wrapper.WrapStream(ctx, req, next)
		}
	}

	before, hasBefore := ic.(RequestTransformer)
	after, hasAfter := ic.(ResponseTransformer)
	if !hasBefore && !hasAfter {
		return stage
	}

	return func(ctx context.Context, req *ChatRequest) (<-chan Fragment, error) {
		if hasBefore {
			transformed, err := before.Before(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("interceptor %s failed: %w", ic.Name(), err)
			}
			req = transformed
		}

		in, err := stage(ctx, req)
		if err != nil {
			return nil, err
		}
		if !hasAfter {
			return in, nil
		}

		return c.aggregator.Aggregate(ctx, in, func(doneCtx context.Context, resp *ChatResponse) {
			if _, afterErr := after.After(doneCtx, req, resp); afterErr != nil {
				observability.FromContext(doneCtx).Warn("interceptor after hook failed",
					observability.String("interceptor", ic.Name()),
					observability.Error(afterErr))
			}
		}), nil
	}
}

func callStage(ic Interceptor, next CallFunc) CallFunc {
	before, hasBefore := ic.(RequestTransformer)
	after, hasAfter := ic.(ResponseTransformer)
	if !hasBefore && !hasAfter {
		return next
	}

	return func(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
		if hasBefore {
			transformed, err := before.Before(ctx, req)
			if err != nil {
				return nil, fmt.Errorf("interceptor %s failed: %w", ic.Name(), err)
			}
			req = transformed
		}

		resp, err := next(ctx, req)
		if err != nil {
			return nil, err
		}
		if !hasAfter {
			return resp, nil
		}

		updated, err := after.After(ctx, req, resp)
		if err != nil {
			return nil, fmt.Errorf("interceptor %s failed: %w", ic.Name(), err)
		}
		return updated, nil
	}
}
