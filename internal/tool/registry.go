// Package tool holds the functions the assistant may call during a turn.
package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/davidbz/hearth/internal/observability"
)

// Config controls which tools are offered to the model.
type Config struct {
	Enabled   bool   `env:"TOOLS_ENABLED"    envDefault:"true"`
	Timezone  string `env:"TOOLS_TIMEZONE"   envDefault:"Local"`
	MaxRounds int    `env:"TOOLS_MAX_ROUNDS" envDefault:"4"`
}

// Tool is a function the model can call by name.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the JSON Schema properties of the arguments object.
	Parameters() map[string]any
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry keeps tools in registration order.
type Registry struct {
	mu    sync.RWMutex
	tools *orderedmap.OrderedMap[string, Tool]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: orderedmap.New[string, Tool]()}
}

// NewDefaultRegistry registers the date tools for cfg. It returns nil when
// tools are disabled.
func NewDefaultRegistry(cfg *Config, alarms *AlarmBook) (*Registry, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	loc, err := loadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	r := NewRegistry()
	for _, t := range []Tool{NewCurrentTime(loc, nil), NewSetAlarm(loc, alarms)} {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds a tool. Names must be unique.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return errors.New("tool cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools.Get(t.Name()); exists {
		return fmt.Errorf("tool %s already registered", t.Name())
	}
	r.tools.Set(t.Name(), t)
	return nil
}

// All returns the tools in registration order.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Tool, 0, r.tools.Len())
	for pair := r.tools.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Value)
	}
	return out
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools.Len()
}

// Invoke runs the named tool. Failures are returned as text for the model to
// read rather than as errors, so one bad call does not end the turn.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) string {
	logger := observability.FromContext(ctx).With(observability.String("tool", name))

	r.mu.RLock()
	t, ok := r.tools.Get(name)
	r.mu.RUnlock()
	if !ok {
		logger.Warn("model called an unknown tool")
		return fmt.Sprintf("error: unknown tool %q", name)
	}

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	result, err := t.Execute(ctx, args)
	if err != nil {
		logger.Warn("tool call failed", observability.Error(err))
		return "error: " + err.Error()
	}

	logger.Debug("tool call finished")
	return result
}
