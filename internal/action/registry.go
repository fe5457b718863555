// Package action implements the ActionRegistry (C6) and ActionExecutor
// (C7) from spec.md §4.2, grounded on the original action_registry.py and
// action_executor.py: register/lookup by (entity_type, action_name),
// ordered precondition evaluation, EFFECT application, and a transactional
// persist-then-emit sequence.
package action

import (
	"sync"

	"github.com/arxos/graphrules/internal/ast"
)

// Registry stores ActionDefs keyed by (entity type, action name).
// Re-registering the same key overwrites the previous definition, matching
// action_registry.py's register() semantics (last write wins, no error).
type Registry struct {
	mu      sync.RWMutex
	actions map[string]ast.ActionDef
}

func NewRegistry() *Registry {
	return &Registry{actions: map[string]ast.ActionDef{}}
}

func key(entityType, actionName string) string { return entityType + "::" + actionName }

func (r *Registry) Register(def ast.ActionDef) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.actions[key(def.EntityType, def.ActionName)] = def
}

func (r *Registry) Lookup(entityType, actionName string) (ast.ActionDef, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.actions[key(entityType, actionName)]
	return def, ok
}

func (r *Registry) All() []ast.ActionDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ast.ActionDef, 0, len(r.actions))
	for _, d := range r.actions {
		out = append(out, d)
	}
	return out
}
