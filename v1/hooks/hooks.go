// Package hooks lets other parts of the process observe submissions before and after they are handled
package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Event is passed to every listener of a hook
type Event struct {
	Name         string            `json:"name"`
	InstanceID   string            `json:"instanceId"`
	FormTypeID   uint              `json:"formTypeId"`
	SubmissionID string            `json:"submissionId,omitempty"`
	IsSpam       bool              `json:"isSpam"`
	RemoteIP     string            `json:"-"`
	Values       map[string]string `json:"values,omitempty"`
	FiredAt      time.Time         `json:"firedAt"`
}

// Listener handles one event
type Listener func(ctx context.Context, e Event) error

// Dispatcher holds the listeners registered per event name
type Dispatcher struct {
	mu        sync.RWMutex
	listeners map[string][]Listener
}

func NewDispatcher() *Dispatcher {
	return &Dispatcher{listeners: make(map[string][]Listener)}
}

// On registers a listener for an event name
func (d *Dispatcher) On(name string, l Listener) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.listeners[name] = append(d.listeners[name], l)
}

// Fire calls the listeners for e.Name in registration order. Listener
// errors and panics are logged and never stop the caller.
func (d *Dispatcher) Fire(ctx context.Context, e Event) {
	d.mu.RLock()
	listeners := append([]Listener(nil), d.listeners[e.Name]...)
	d.mu.RUnlock()

	if e.FiredAt.IsZero() {
		e.FiredAt = time.Now().UTC()
	}
	for i, l := range listeners {
		if err := call(ctx, l, e); err != nil {
			slog.WarnContext(ctx, "Hook listener failed", "event", e.Name, "listener", i, "error", err)
		}
	}
}

func call(ctx context.Context, l Listener, e Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return l(ctx, e)
}

// Publisher appends an entry to a stream
type Publisher interface {
	Publish(ctx context.Context, stream string, values map[string]any) (string, error)
}

// StreamListener forwards events to a redis stream
func StreamListener(p Publisher, stream string) Listener {
	return func(ctx context.Context, e Event) error {
		values, err := json.Marshal(e.Values)
		if err != nil {
			return err
		}
		_, err = p.Publish(ctx, stream, map[string]any{
			"event":        e.Name,
			"instanceId":   e.InstanceID,
			"formTypeId":   e.FormTypeID,
			"submissionId": e.SubmissionID,
			"isSpam":       e.IsSpam,
			"values":       string(values),
			"firedAt":      e.FiredAt.Format(time.RFC3339),
		})
		return err
	}
}
