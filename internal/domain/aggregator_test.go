package domain_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/davidbz/hearth/internal/domain"
)

// completionRecorder captures onComplete invocations.
type completionRecorder struct {
	mu        sync.Mutex
	responses []*domain.ChatResponse
	ctxErrs   []error
}

func (r *completionRecorder) record(ctx context.Context, resp *domain.ChatResponse) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, resp)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
}

func (r *completionRecorder) calls() []*domain.ChatResponse {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*domain.ChatResponse(nil), r.responses...)
}

func feed(fragments ...domain.Fragment) <-chan domain.Fragment {
	ch := make(chan domain.Fragment, len(fragments))
	for _, f := range fragments {
		ch <- f
	}
	close(ch)
	return ch
}

func drain(ch <-chan domain.Fragment) []domain.Fragment {
	var got []domain.Fragment
	for f := range ch {
		got = append(got, f)
	}
	return got
}

func TestFragmentAggregator_Completion(t *testing.T) {
	t.Run("should concatenate text deltas without reasoning", func(t *testing.T) {
		recorder := &completionRecorder{}
		aggregator := domain.NewFragmentAggregator()

		out := aggregator.Aggregate(context.Background(), feed(
			domain.Fragment{TextDelta: "Hel"},
			domain.Fragment{TextDelta: "lo, "},
			domain.Fragment{TextDelta: "world"},
		), recorder.record)
		forwarded := drain(out)

		require.Len(t, forwarded, 3)
		calls := recorder.calls()
		require.Len(t, calls, 1)
		require.Equal(t, "Hello, world", calls[0].Message.Text)
		require.Equal(t, domain.RoleAssistant, calls[0].Message.Role)
		require.False(t, calls[0].Message.HasReasoning())
		require.Empty(t, calls[0].Message.Reasoning)
	})

	t.Run("should build the reasoning variant when reasoning was streamed", func(t *testing.T) {
		recorder := &completionRecorder{}
		aggregator := domain.NewFragmentAggregator()

		drain(aggregator.Aggregate(context.Background(), feed(
			domain.Fragment{ReasoningDelta: "step1"},
			domain.Fragment{TextDelta: "answer"},
		), recorder.record))

		calls := recorder.calls()
		require.Len(t, calls, 1)
		require.True(t, calls[0].Message.HasReasoning())
		require.Equal(t, "step1", calls[0].Message.Reasoning)
		require.Equal(t, "answer", calls[0].Message.Text)
	})

	t.Run("should never let usage regress to zero", func(t *testing.T) {
		recorder := &completionRecorder{}
		aggregator := domain.NewFragmentAggregator()

		drain(aggregator.Aggregate(context.Background(), feed(
			domain.Fragment{TextDelta: "a", Usage: &domain.Usage{PromptTokens: 10}},
			domain.Fragment{TextDelta: "b", Usage: &domain.Usage{PromptTokens: 0, CompletionTokens: 4, TotalTokens: 14}},
		), recorder.record))

		calls := recorder.calls()
		require.Len(t, calls, 1)
		require.Equal(t, 10, calls[0].Usage.PromptTokens)
		require.Equal(t, 4, calls[0].Usage.CompletionTokens)
		require.Equal(t, 14, calls[0].Usage.TotalTokens)
	})

	t.Run("should merge id, model, metadata, generation and rate limit", func(t *testing.T) {
		recorder := &completionRecorder{}
		aggregator := domain.NewFragmentAggregator()

		first := domain.NewMetadata()
		first.Set("a", 1)
		first.Set("b", "x")
		second := domain.NewMetadata()
		second.Set("b", "y")
		second.Set("c", true)

		drain(aggregator.Aggregate(context.Background(), feed(
			domain.Fragment{
				TextDelta: "t",
				ID:        "id-1",
				Model:     "m-1",
				Metadata:  first,
				RateLimit: &domain.RateLimit{RequestsLimit: 100, RequestsRemaining: 99},
			},
			domain.Fragment{
				ID:         "",
				Model:      "m-2",
				Metadata:   second,
				Generation: &domain.GenerationMetadata{FinishReason: "stop"},
				RateLimit:  &domain.RateLimit{RequestsLimit: 100, RequestsRemaining: 98},
			},
			domain.Fragment{Generation: &domain.GenerationMetadata{}},
		), recorder.record))

		calls := recorder.calls()
		require.Len(t, calls, 1)
		resp := calls[0]
		require.Equal(t, "id-1", resp.ID)
		require.Equal(t, "m-2", resp.Model)
		require.Equal(t, "stop", resp.Generation.FinishReason)
		require.NotNil(t, resp.RateLimit)
		require.Equal(t, int64(99), resp.RateLimit.RequestsRemaining)

		var keys []string
		for pair := resp.Message.Metadata.Oldest(); pair != nil; pair = pair.Next() {
			keys = append(keys, pair.Key)
		}
		require.Equal(t, []string{"a", "b", "c"}, keys)
		b, _ := resp.Message.Metadata.Get("b")
		require.Equal(t, "y", b)
	})

	t.Run("should flush an empty message on normal completion", func(t *testing.T) {
		recorder := &completionRecorder{}
		aggregator := domain.NewFragmentAggregator()

		drain(aggregator.Aggregate(context.Background(), feed(), recorder.record))

		calls := recorder.calls()
		require.Len(t, calls, 1)
		require.Empty(t, calls[0].Message.Text)
	})

	t.Run("should forward fragments in emission order", func(t *testing.T) {
		aggregator := domain.NewFragmentAggregator()

		forwarded := drain(aggregator.Aggregate(context.Background(), feed(
			domain.Fragment{TextDelta: "1"},
			domain.Fragment{ReasoningDelta: "2"},
			domain.Fragment{TextDelta: "3"},
		), nil))

		require.Equal(t, []domain.Fragment{
			{TextDelta: "1"},
			{ReasoningDelta: "2"},
			{TextDelta: "3"},
		}, forwarded)
	})
}

func TestFragmentAggregator_Cancellation(t *testing.T) {
	t.Run("should flush partial content once when cancelled", func(t *testing.T) {
		recorder := &completionRecorder{}
		aggregator := domain.NewFragmentAggregator()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		in := make(chan domain.Fragment)
		out := aggregator.Aggregate(ctx, in, recorder.record)

		in <- domain.Fragment{TextDelta: "Par"}
		first := <-out
		require.Equal(t, "Par", first.TextDelta)

		cancel()
		drain(out)

		calls := recorder.calls()
		require.Len(t, calls, 1)
		require.Equal(t, "Par", calls[0].Message.Text)
		require.NoError(t, recorder.ctxErrs[0])
	})

	t.Run("should not flush when cancelled before any fragment", func(t *testing.T) {
		recorder := &completionRecorder{}
		aggregator := domain.NewFragmentAggregator()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		in := make(chan domain.Fragment)
		drain(aggregator.Aggregate(ctx, in, recorder.record))

		require.Empty(t, recorder.calls())
	})

	t.Run("should treat a closed input after cancellation as cancelled", func(t *testing.T) {
		recorder := &completionRecorder{}
		aggregator := domain.NewFragmentAggregator()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		drain(aggregator.Aggregate(ctx, feed(), recorder.record))

		require.Empty(t, recorder.calls())
	})

	t.Run("should treat a context error fragment as cancellation", func(t *testing.T) {
		recorder := &completionRecorder{}
		aggregator := domain.NewFragmentAggregator()
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		in := make(chan domain.Fragment, 1)
		in <- domain.Fragment{Error: context.Canceled}
		close(in)

		forwarded := drain(aggregator.Aggregate(ctx, in, recorder.record))

		require.Empty(t, forwarded)
		require.Empty(t, recorder.calls())
	})
}

func TestFragmentAggregator_Error(t *testing.T) {
	t.Run("should flush partial content and then forward the error", func(t *testing.T) {
		recorder := &completionRecorder{}
		aggregator := domain.NewFragmentAggregator()
		upstreamErr := errors.New("upstream exploded")

		forwarded := drain(aggregator.Aggregate(context.Background(), feed(
			domain.Fragment{TextDelta: "partial"},
			domain.Fragment{Error: upstreamErr},
			domain.Fragment{TextDelta: "ignored"},
		), recorder.record))

		require.Len(t, forwarded, 2)
		require.ErrorIs(t, forwarded[1].Error, upstreamErr)

		calls := recorder.calls()
		require.Len(t, calls, 1)
		require.Equal(t, "partial", calls[0].Message.Text)
	})

	t.Run("should forward the error without flushing when nothing was streamed", func(t *testing.T) {
		recorder := &completionRecorder{}
		aggregator := domain.NewFragmentAggregator()
		upstreamErr := errors.New("rate limited")

		forwarded := drain(aggregator.Aggregate(context.Background(), feed(
			domain.Fragment{Usage: &domain.Usage{PromptTokens: 3}},
			domain.Fragment{Error: upstreamErr},
		), recorder.record))

		require.Len(t, forwarded, 2)
		require.ErrorIs(t, forwarded[1].Error, upstreamErr)
		require.Empty(t, recorder.calls())
	})
}

func TestAggregationState_Reset(t *testing.T) {
	t.Run("should start empty after reset", func(t *testing.T) {
		state := domain.NewAggregationState()
		state.Fold(domain.Fragment{
			TextDelta:      "x",
			ReasoningDelta: "y",
			ID:             "id",
			Usage:          &domain.Usage{TotalTokens: 5},
			RateLimit:      &domain.RateLimit{TokensLimit: 1},
		})
		require.True(t, state.HasContent())

		state.Reset()

		require.False(t, state.HasContent())
		resp := state.Response()
		require.Empty(t, resp.ID)
		require.Zero(t, resp.Usage.TotalTokens)
		require.Nil(t, resp.RateLimit)
		require.Nil(t, resp.Message.Metadata)
	})

	t.Run("should accept a new rate limit after reset", func(t *testing.T) {
		state := domain.NewAggregationState()
		state.Fold(domain.Fragment{RateLimit: &domain.RateLimit{TokensLimit: 1}})
		state.Reset()
		state.Fold(domain.Fragment{RateLimit: &domain.RateLimit{TokensLimit: 2}})

		require.Equal(t, int64(2), state.Response().RateLimit.TokensLimit)
	})
}
