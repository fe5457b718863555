package translate

import (
	"context"
	"fmt"
	"strings"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/eval"
	"github.com/arxos/graphrules/internal/graph"
	"github.com/arxos/graphrules/internal/grerr"
)

// translatePattern renders a graph Pattern as a SQL EXISTS(...) boolean
// expression, grounded on the original _translate_relationship_pattern:
// one graph_relationships join per edge, walked in pattern order, with an
// inline WHERE folded into the subquery.
//
// Pattern variables resolve through the caller's own scope sc rather than
// a fresh one, so a variable already bound outside (typically the "this"
// entity a rule is evaluating) becomes a correlated reference into the
// subquery instead of an independent, unconstrained table scan — without
// this, `EXISTS(this -[ownedBy]-> mgr)` would be true whenever the
// relationship exists anywhere in the graph, regardless of which entity
// is under evaluation.
func (t *Translator) translatePattern(b *builder, sc *scope, pattern ast.Pattern) (string, error) {
	if len(pattern.Nodes) == 0 {
		return "", grerr.Invalidf("empty graph pattern")
	}

	subSQL := &builder{args: b.args}

	preExisting := map[string]bool{}
	for _, n := range pattern.Nodes {
		if _, ok := sc.aliases[n.Variable]; ok {
			preExisting[n.Variable] = true
		}
	}

	var fromTables []string
	addedToFrom := map[string]bool{}
	resolveNode := func(variable string) (string, error) {
		alias, err := sc.aliasFor(variable)
		if err != nil {
			return "", err
		}
		if !preExisting[variable] && !addedToFrom[alias] {
			fromTables = append(fromTables, fmt.Sprintf("graph_entities %s", alias))
			addedToFrom[alias] = true
		}
		return alias, nil
	}

	if _, err := resolveNode(pattern.Nodes[0].Variable); err != nil {
		return "", err
	}

	var joinConds []string
	for i, edge := range pattern.Edges {
		toAlias, err := resolveNode(edge.To.Variable)
		if err != nil {
			return "", err
		}
		fromAlias, err := resolveNode(edge.From.Variable)
		if err != nil {
			return "", err
		}
		relAlias := fmt.Sprintf("r%d", i)
		fromTables = append(fromTables, fmt.Sprintf("graph_relationships %s", relAlias))

		var relJoin string
		switch edge.Direction {
		case ast.DirOut:
			relJoin = fmt.Sprintf("%s.source_id = %s.id AND %s.target_id = %s.id", relAlias, fromAlias, relAlias, toAlias)
		case ast.DirIn:
			relJoin = fmt.Sprintf("%s.target_id = %s.id AND %s.source_id = %s.id", relAlias, fromAlias, relAlias, toAlias)
		default:
			relJoin = fmt.Sprintf("(%s.source_id = %s.id AND %s.target_id = %s.id) OR (%s.target_id = %s.id AND %s.source_id = %s.id)",
				relAlias, fromAlias, relAlias, toAlias, relAlias, fromAlias, relAlias, toAlias)
		}
		joinConds = append(joinConds, fmt.Sprintf("%s.relationship_type = %s AND (%s)", relAlias, subSQL.param(edge.RelationshipType), relJoin))
	}

	var sql strings.Builder
	sql.WriteString("EXISTS (SELECT 1 FROM ")
	sql.WriteString(strings.Join(fromTables, ", "))
	sql.WriteString(" WHERE ")
	wrote := false
	for _, jc := range joinConds {
		if wrote {
			sql.WriteString(" AND ")
		}
		sql.WriteString(jc)
		wrote = true
	}
	if pattern.Where != nil {
		cond, err := t.translateExpr(subSQL, sc, pattern.Where)
		if err != nil {
			return "", err
		}
		if wrote {
			sql.WriteString(" AND ")
		}
		sql.WriteString(cond)
		wrote = true
	}
	sql.WriteString(")")

	b.args = subSQL.args
	return sql.String(), nil
}

// EvalExists compiles pattern and runs it as a scalar boolean SELECT
// through store.ExecuteParameterizedSQL. The pattern's first node is
// pinned to the already-bound entity of the same variable name when one
// exists in evalCtx, so `EXISTS(this -[ownedBy]-> mgr)` anchors on the
// entity the rule is currently evaluating rather than scanning the whole
// table.
func (t *Translator) EvalExists(ctx context.Context, store graph.Store, evalCtx *eval.EvaluationContext, pattern ast.Pattern) (bool, error) {
	b := &builder{}
	sc := newScope("x")

	firstAlias, err := sc.aliasFor(pattern.Nodes[0].Variable)
	if err != nil {
		return false, err
	}

	var pinClause string
	if bound := evalCtx.Vars[pattern.Nodes[0].Variable]; bound != nil {
		pinClause = fmt.Sprintf("%s.id = %s", firstAlias, b.param(bound.ID))
	}

	inner, err := t.translatePattern(b, sc, pattern)
	if err != nil {
		return false, err
	}

	sql := fmt.Sprintf("SELECT 1 FROM graph_entities %s WHERE ", firstAlias)
	if pinClause != "" {
		sql += pinClause + " AND "
	}
	sql += inner

	rows, err := store.ExecuteParameterizedSQL(ctx, sql, b.args)
	if err != nil {
		return false, err
	}
	return len(rows) > 0, nil
}
