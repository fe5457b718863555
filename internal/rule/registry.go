// Package rule implements the RuleRegistry (C8) and RuleEngine (C10) from
// spec.md §4.4, grounded on the original rule_registry.py and
// rule_engine.py: a trigger-key index into priority-sorted rule lists, and
// a cascade-depth-limited execution loop over each matched rule's FOR
// body.
package rule

import (
	"fmt"
	"sort"
	"sync"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/grerr"
)

// Registry indexes RuleDefs by Trigger.Key() so OnEvent can look up
// candidates in O(1) instead of scanning every rule. Within a bucket,
// rules run in descending Priority, ties broken by registration order —
// rule_registry.py's sort is stable for the same reason.
type Registry struct {
	mu      sync.RWMutex
	byName  map[string]ast.RuleDef
	buckets map[string][]ast.RuleDef
	seq     map[string]int
	nextSeq int
}

func NewRegistry() *Registry {
	return &Registry{
		byName:  map[string]ast.RuleDef{},
		buckets: map[string][]ast.RuleDef{},
		seq:     map[string]int{},
	}
}

// Register adds def, returning an error wrapping grerr.ErrAlreadyExists
// if a rule with the same name is already registered — rule_registry.py
// raises on duplicate names rather than overwriting, unlike the action
// registry.
func (r *Registry) Register(def ast.RuleDef) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[def.Name]; exists {
		return fmt.Errorf("rule %q is already registered: %w", def.Name, grerr.ErrAlreadyExists)
	}
	r.byName[def.Name] = def
	r.seq[def.Name] = r.nextSeq
	r.nextSeq++

	key := def.Trigger.Key()
	r.buckets[key] = append(r.buckets[key], def)
	sort.SliceStable(r.buckets[key], func(i, j int) bool {
		return r.buckets[key][i].Priority > r.buckets[key][j].Priority
	})
	return nil
}

// Match returns the rules bound to an exact trigger key plus those bound
// to the same type/entity-type with no property restriction (the
// "any property" bucket), merged in priority order.
func (r *Registry) Match(t ast.Trigger) []ast.RuleDef {
	r.mu.RLock()
	defer r.mu.RUnlock()

	exact := r.buckets[t.Key()]
	var wildcard []ast.RuleDef
	if t.Property != "" {
		wildcard = r.buckets[ast.Trigger{Type: t.Type, EntityType: t.EntityType}.Key()]
	}
	if len(wildcard) == 0 {
		out := make([]ast.RuleDef, len(exact))
		copy(out, exact)
		return out
	}

	merged := append(append([]ast.RuleDef{}, exact...), wildcard...)
	sort.SliceStable(merged, func(i, j int) bool {
		if merged[i].Priority != merged[j].Priority {
			return merged[i].Priority > merged[j].Priority
		}
		return r.seq[merged[i].Name] < r.seq[merged[j].Name]
	})
	return merged
}

func (r *Registry) All() []ast.RuleDef {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ast.RuleDef, 0, len(r.byName))
	for _, d := range r.byName {
		out = append(out, d)
	}
	return out
}
