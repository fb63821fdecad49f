// Package hook decouples board side effects from board logic. The board
// fires events; registered listeners react. Nothing in the board knows what
// happens downstream.
package hook

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/tverenko/flowboard/internal/model"
)

// Event names a board event listeners can subscribe to.
type Event string

const (
	EventTransition Event = "on_transition"
	EventDone       Event = "on_done"
	EventRejected   Event = "on_rejected"
	EventStaleTask  Event = "on_stale_task"
)

// Listener receives a read-only snapshot of the task that triggered the
// event. A returned error is logged by the registry and never propagates to
// the firing caller.
type Listener func(ctx context.Context, task model.Task) error

// Registry maps the fixed set of events to ordered listener lists.
type Registry struct {
	mu        sync.RWMutex
	listeners map[Event][]Listener
}

// NewRegistry creates a registry with the fixed event set and no listeners.
func NewRegistry() *Registry {
	return &Registry{
		listeners: map[Event][]Listener{
			EventTransition: {},
			EventDone:       {},
			EventRejected:   {},
			EventStaleTask:  {},
		},
	}
}

// Register appends fn to the listener list for event. Registration happens
// at wiring time, before the board serves traffic; an unknown event is a
// configuration error.
func (r *Registry) Register(event Event, fn Listener) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.listeners[event]; !ok {
		return fmt.Errorf("unknown hook event %q", event)
	}
	r.listeners[event] = append(r.listeners[event], fn)
	return nil
}

// Fire invokes every listener registered for event in registration order.
// A failing listener is logged and does not affect sibling listeners or the
// caller.
func (r *Registry) Fire(ctx context.Context, event Event, task model.Task) {
	r.mu.RLock()
	fns := r.listeners[event]
	r.mu.RUnlock()

	for _, fn := range fns {
		if err := fn(ctx, task); err != nil {
			log.Error().Err(err).Str("event", string(event)).Str("task", task.ID).Msg("hook listener failed")
		}
	}
}

// LogTransition is a built-in listener that logs every task transition.
func LogTransition(_ context.Context, task model.Task) error {
	log.Info().Str("task", task.ID).Str("stage", string(task.Stage)).Msg("task transitioned")
	return nil
}
