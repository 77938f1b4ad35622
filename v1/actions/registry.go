package actions

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
)

// Registry maps action type handles to implementations. It is filled at
// startup and read concurrently afterwards.
type Registry struct {
	mu    sync.RWMutex
	types map[string]ActionType
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]ActionType)}
}

// Register adds an action type. Handles must be unique.
func (r *Registry) Register(t ActionType) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.Handle()]; exists {
		return fmt.Errorf("action type %q already registered", t.Handle())
	}
	r.types[t.Handle()] = t
	return nil
}

// MustRegister is Register for startup code
func (r *Registry) MustRegister(t ActionType) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get returns the action type for handle
func (r *Registry) Get(handle string) (ActionType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownActionType, handle)
	}
	return t, nil
}

// MustGet is Get for handles registered at startup
func (r *Registry) MustGet(handle string) ActionType {
	t, err := r.Get(handle)
	if err != nil {
		panic(err)
	}
	return t
}

// List returns all action types sorted by handle
func (r *Registry) List() []ActionType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ActionType, 0, len(r.types))
	for _, t := range r.types {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Handle() < out[j].Handle() })
	return out
}

// Execute resolves the type of a stored action and runs it
func (r *Registry) Execute(ctx context.Context, action models.CustomAction, sub SubmissionView, ectx ExecutionContext) error {
	t, err := r.Get(action.ActionType)
	if err != nil {
		return err
	}
	if err := t.Execute(ctx, []byte(action.ActionData), sub, ectx); err != nil {
		return fmt.Errorf("action %q (%s): %w", action.ActionName, action.ActionType, err)
	}
	return nil
}
