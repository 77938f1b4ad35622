// Package attributes holds the pluggable field types a FieldKey can use
package attributes

import (
	"fmt"
	"sort"
	"sync"

	"github.com/gov-dx-sandbox/attribute-forms/v1/models"
)

// Type validates, normalizes and renders the values of one kind of field
type Type interface {
	Handle() string
	// IsEmpty reports whether a raw value counts as not provided
	IsEmpty(key models.FieldKey, raw string) bool
	// Validate checks a non-empty raw value and returns a user-facing detail on failure
	Validate(key models.FieldKey, raw string) error
	// Normalize returns the value that is stored
	Normalize(key models.FieldKey, raw string) string
	// Display renders a stored value for people
	Display(key models.FieldKey, stored string) string
}

// Registry maps type handles to implementations
type Registry struct {
	mu    sync.RWMutex
	types map[string]Type
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{types: make(map[string]Type)}
}

// NewDefaultRegistry creates a registry holding the built-in types
func NewDefaultRegistry() *Registry {
	r := NewRegistry()
	for _, t := range []Type{
		TextType{},
		TextareaType{},
		EmailType{},
		NumberType{},
		BooleanType{},
		SelectType{},
		DateType{},
	} {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a type
func (r *Registry) Register(t Type) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.types[t.Handle()] = t
}

// Get returns the type registered under handle
func (r *Registry) Get(handle string) (Type, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[handle]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrUnknownAttributeType, handle)
	}
	return t, nil
}

// Handles lists the registered type handles in sorted order
func (r *Registry) Handles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	handles := make([]string, 0, len(r.types))
	for h := range r.types {
		handles = append(handles, h)
	}
	sort.Strings(handles)
	return handles
}
