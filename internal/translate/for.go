package translate

import (
	"context"
	"fmt"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/eval"
	"github.com/arxos/graphrules/internal/graph"
)

// CompileFor renders a FOR clause's entity scan as SQL: all entities of
// the clause's EntityType, additionally matching Condition when present,
// mirroring the original translate_for.
func (t *Translator) CompileFor(fc *ast.ForClause) (*CompiledQuery, error) {
	b := &builder{}
	sc := newScope("f")
	alias, err := sc.aliasFor(fc.Variable)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf("SELECT %s.id, %s.name, %s.entity_type, %s.is_instance, %s.properties, %s.uri, %s.created_at, %s.updated_at FROM graph_entities %s WHERE %s.entity_type = %s",
		alias, alias, alias, alias, alias, alias, alias, alias, alias, alias, b.param(fc.EntityType))

	if fc.Condition != nil {
		cond, err := t.translateExpr(b, sc, fc.Condition)
		if err != nil {
			return nil, err
		}
		sql += " AND " + cond
	}

	return &CompiledQuery{SQL: sql, Args: b.args}, nil
}

// RunFor executes a compiled FOR clause against store and binds each
// resulting row to fc.Variable in a fresh child context derived from
// parent, invoking visit once per row. Evaluation order follows the
// store's natural row order (Postgres: physical/ index order; no ORDER BY
// is implied by the DSL per spec.md §4.4).
func (t *Translator) RunFor(ctx context.Context, store graph.Store, parent *eval.EvaluationContext, fc *ast.ForClause, visit func(child *eval.EvaluationContext) error) error {
	compiled, err := t.CompileFor(fc)
	if err != nil {
		return err
	}
	rows, err := store.ExecuteParameterizedSQL(ctx, compiled.SQL, compiled.Args)
	if err != nil {
		return err
	}
	for _, row := range rows {
		entity := rowToEntity(row)
		child := parent.Child()
		child.Bind(fc.Variable, entity)
		if err := visit(child); err != nil {
			return err
		}
	}
	return nil
}

func rowToEntity(row graph.Row) *graph.Entity {
	e := &graph.Entity{}
	if v, ok := row["id"].(int64); ok {
		e.ID = v
	}
	if v, ok := row["name"].(string); ok {
		e.Name = v
	}
	if v, ok := row["entity_type"].(string); ok {
		e.EntityType = v
	}
	if v, ok := row["is_instance"].(bool); ok {
		e.IsInstance = v
	}
	if v, ok := row["properties"].(map[string]any); ok {
		e.Properties = v
	} else {
		e.Properties = map[string]any{}
	}
	return e
}
