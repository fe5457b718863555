// Package event implements the GraphEventEmitter (C9) from spec.md §4.6,
// grounded on the original event_emitter.py: subscribe/unsubscribe raise
// on duplicate/absent listeners, and emit fans out synchronously to a
// snapshot of the listener list so a listener that subscribes or
// unsubscribes during its own callback does not corrupt the in-flight
// iteration (a re-entrancy guarantee the Python version does not make
// explicit but spec.md §4.6 requires).
package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/grerr"
)

// Listener receives every published event. Listener order is call order
// of Subscribe; emission stops at the first listener error and that error
// is returned to the publisher (ErrListener-wrapped), matching the
// "abort the action on listener failure" requirement.
type Listener func(ctx context.Context, ev ast.Event) error

// Emitter is the event bus the action executor publishes UpdateEvents to
// and the rule engine subscribes to.
type Emitter struct {
	mu        sync.Mutex
	listeners map[string]Listener
	order     []string
}

func NewEmitter() *Emitter {
	return &Emitter{listeners: map[string]Listener{}}
}

func (e *Emitter) Subscribe(name string, l Listener) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.listeners[name]; exists {
		return fmt.Errorf("listener %q is already subscribed: %w", name, grerr.ErrAlreadyExists)
	}
	e.listeners[name] = l
	e.order = append(e.order, name)
	return nil
}

func (e *Emitter) Unsubscribe(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.listeners[name]; !exists {
		return grerr.NotFoundf("listener %q", name)
	}
	delete(e.listeners, name)
	for i, n := range e.order {
		if n == name {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
	return nil
}

// Publish snapshots the current listener list, then invokes each one in
// subscription order outside the lock so listeners may themselves call
// Subscribe/Unsubscribe or publish further events without deadlocking.
func (e *Emitter) Publish(ctx context.Context, ev ast.Event) error {
	e.mu.Lock()
	snapshot := make([]Listener, 0, len(e.order))
	for _, name := range e.order {
		snapshot = append(snapshot, e.listeners[name])
	}
	e.mu.Unlock()

	for _, l := range snapshot {
		if err := l(ctx, ev); err != nil {
			return fmt.Errorf("listener failed: %v: %w", err, grerr.ErrListener)
		}
	}
	return nil
}
