package domain

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/davidbz/hearth/internal/observability"
)

// CompletionFunc receives the message reconstructed from a stream.
type CompletionFunc func(ctx context.Context, resp *ChatResponse)

// AggregationState accumulates fragments into one response.
// It is owned by a single aggregation and is not safe for concurrent use.
type AggregationState struct {
	text       strings.Builder
	reasoning  strings.Builder
	metadata   *Metadata
	generation GenerationMetadata
	usage      Usage
	id         string
	model      string
	rateLimit  *RateLimit
}

// NewAggregationState returns an empty accumulator.
func NewAggregationState() *AggregationState {
	s := &AggregationState{}
	s.Reset()
	return s
}

// Fold merges one fragment into the state.
func (s *AggregationState) Fold(f Fragment) {
	s.text.WriteString(f.TextDelta)
	s.reasoning.WriteString(f.ReasoningDelta)

	if f.Metadata != nil {
		for pair := f.Metadata.Oldest(); pair != nil; pair = pair.Next() {
			s.metadata.Set(pair.Key, pair.Value)
		}
	}

	if f.Generation != nil && !f.Generation.IsZero() {
		s.generation = *f.Generation
	}

	if f.Usage != nil {
		if f.Usage.PromptTokens > 0 {
			s.usage.PromptTokens = f.Usage.PromptTokens
		}
		if f.Usage.CompletionTokens > 0 {
			s.usage.CompletionTokens = f.Usage.CompletionTokens
		}
		if f.Usage.TotalTokens > 0 {
			s.usage.TotalTokens = f.Usage.TotalTokens
		}
	}

	if f.ID != "" {
		s.id = f.ID
	}
	if f.Model != "" {
		s.model = f.Model
	}

	// first quota snapshot wins
	if s.rateLimit.IsEmpty() && !f.RateLimit.IsEmpty() {
		rl := *f.RateLimit
		s.rateLimit = &rl
	}
}

// HasContent reports whether any text or reasoning was accumulated.
func (s *AggregationState) HasContent() bool {
	return s.text.Len() > 0 || s.reasoning.Len() > 0
}

// Message builds the assistant message accumulated so far.
func (s *AggregationState) Message() Message {
	msg := Message{
		Role: RoleAssistant,
		Text: s.text.String(),
	}

	if s.reasoning.Len() > 0 {
		msg.Reasoning = s.reasoning.String()
	}

	if s.metadata.Len() > 0 {
		msg.Metadata = NewMetadata()
		for pair := s.metadata.Oldest(); pair != nil; pair = pair.Next() {
			msg.Metadata.Set(pair.Key, pair.Value)
		}
	}

	return msg
}

// Response builds the terminal response accumulated so far.
func (s *AggregationState) Response() *ChatResponse {
	var rateLimit *RateLimit
	if s.rateLimit != nil {
		rl := *s.rateLimit
		rateLimit = &rl
	}

	return &ChatResponse{
		ID:         s.id,
		Model:      s.model,
		Message:    s.Message(),
		Generation: s.generation,
		Usage:      s.usage,
		RateLimit:  rateLimit,
		FinishTime: time.Now(),
	}
}

// Reset empties the state.
func (s *AggregationState) Reset() {
	s.text.Reset()
	s.reasoning.Reset()
	s.metadata = NewMetadata()
	s.generation = GenerationMetadata{}
	s.usage = Usage{}
	s.id = ""
	s.model = ""
	s.rateLimit = nil
}

// streamEnd classifies how a fragment sequence terminated.
type streamEnd int

const (
	endCompleted streamEnd = iota
	endCancelled
	endFailed
)

// FragmentAggregator reconstructs complete responses from fragment streams.
type FragmentAggregator struct{}

// NewFragmentAggregator creates an aggregator.
func NewFragmentAggregator() *FragmentAggregator {
	return &FragmentAggregator{}
}

// Aggregate forwards every fragment from in unchanged and calls onComplete
// once with the reconstructed response when the stream ends. Cancellation
// (ctx done) and error fragments flush only when text or reasoning was seen.
// onComplete receives a context that is no longer cancellable.
func (a *FragmentAggregator) Aggregate(
	ctx context.Context,
	in <-chan Fragment,
	onComplete CompletionFunc,
) <-chan Fragment {
	out := make(chan Fragment)

	go func() {
		defer close(out)

		state := NewAggregationState()

		for {
			select {
			case <-ctx.Done():
				a.finish(ctx, state, endCancelled, onComplete)
				return

			case f, ok := <-in:
				if !ok {
					end := endCompleted
					if ctx.Err() != nil {
						end = endCancelled
					}
					a.finish(ctx, state, end, onComplete)
					return
				}

				if f.Error != nil {
					if errors.Is(f.Error, context.Canceled) && ctx.Err() != nil {
						a.finish(ctx, state, endCancelled, onComplete)
						return
					}

					a.finish(ctx, state, endFailed, onComplete)
					select {
					case out <- f:
					case <-ctx.Done():
					}
					return
				}

				state.Fold(f)

				select {
				case out <- f:
				case <-ctx.Done():
					a.finish(ctx, state, endCancelled, onComplete)
					return
				}
			}
		}
	}()

	return out
}

func (a *FragmentAggregator) finish(
	ctx context.Context,
	state *AggregationState,
	end streamEnd,
	onComplete CompletionFunc,
) {
	defer state.Reset()

	logger := observability.FromContext(ctx)

	if end != endCompleted && !state.HasContent() {
		logger.Debug("stream ended without content, nothing to flush",
			observability.Bool("cancelled", end == endCancelled))
		return
	}

	resp := state.Response()

	logger.Debug("flushing aggregated response",
		observability.Int("text_length", len(resp.Message.Text)),
		observability.Bool("reasoning", resp.Message.HasReasoning()),
		observability.Bool("partial", end != endCompleted))

	if onComplete != nil {
		onComplete(context.WithoutCancel(ctx), resp)
	}
}
