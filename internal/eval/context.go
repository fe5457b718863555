// Package eval walks an ast.Expr tree against an EvaluationContext and
// produces a scalar Go value, grounded on the original Python
// evaluator/context/functions trio: a dispatch-by-type switch over the
// AST, a bound-variable scope for path resolution, and a small builtin
// function table (spec.md §4.3).
package eval

import (
	"context"
	"strings"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/graph"
)

// EvaluationContext carries the bound variables an expression may
// reference by path ("this.status", "po.amount") plus the old/new
// property values needed by CHANGED, mirroring the Python
// EvaluationContext's vars/old_values/new_values maps.
type EvaluationContext struct {
	Store     graph.Store
	Vars      map[string]*graph.Entity
	Params    map[string]any // action-invocation parameters, addressed as "params.x"
	OldValues map[string]any // property name -> value before the triggering update
	NewValues map[string]any // property name -> value after the triggering update
}

func NewContext(store graph.Store) *EvaluationContext {
	return &EvaluationContext{Store: store, Vars: map[string]*graph.Entity{}}
}

func (c *EvaluationContext) Bind(variable string, e *graph.Entity) {
	c.Vars[variable] = e
}

func (c *EvaluationContext) Child() *EvaluationContext {
	vars := make(map[string]*graph.Entity, len(c.Vars))
	for k, v := range c.Vars {
		vars[k] = v
	}
	return &EvaluationContext{Store: c.Store, Vars: vars, Params: c.Params, OldValues: c.OldValues, NewValues: c.NewValues}
}

// ResolvePath resolves a dotted path against bound entities. A single
// segment is looked up directly in Vars; "this" is the conventional name
// for the entity under rule evaluation. The reserved prefix "params"
// indexes into Params instead, e.g. "params.newPrice" in an action's
// EFFECT block. Unknown variables or missing properties resolve to nil
// rather than erroring, matching the Python resolver's permissive
// behavior (comparisons against nil simply evaluate false, per spec.md
// §4.3's null-handling rule).
func (c *EvaluationContext) ResolvePath(p ast.Path) any {
	if len(p.Segments) == 0 {
		return nil
	}
	if p.Segments[0] == "params" && len(p.Segments) == 2 {
		return c.Params[p.Segments[1]]
	}
	entity, ok := c.Vars[p.Segments[0]]
	if !ok || entity == nil {
		return nil
	}
	if len(p.Segments) == 1 {
		return entity
	}
	rest := p.Segments[1:]
	if len(rest) == 1 {
		switch rest[0] {
		case "id":
			return entity.ID
		case "name":
			return entity.Name
		case "entity_type", "type":
			return entity.EntityType
		case "uri":
			if entity.URI == nil {
				return nil
			}
			return *entity.URI
		}
	}
	propPath := strings.Join(rest, ".")
	if v, ok := entity.Properties[propPath]; ok {
		return v
	}
	// properties are flat in this store; nested dotted access degrades to
	// a top-level lookup on the first remaining segment.
	v, ok := entity.Properties[rest[0]]
	if !ok {
		return nil
	}
	return v
}

// PatternEvaluator is implemented by internal/translate.Translator, kept
// as a narrow interface here so eval has no import-time dependency on the
// translate package (which itself imports ast and graph, not eval).
type PatternEvaluator interface {
	EvalExists(ctx context.Context, store graph.Store, evalCtx *EvaluationContext, pattern ast.Pattern) (bool, error)
}
