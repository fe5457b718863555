package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arxos/graphrules/internal/ast"
)

func TestParseActionDef(t *testing.T) {
	src := `
ACTION PurchaseOrder.approve(approver: string) {
	PRECONDITION: po.amount < 10000 ON_FAILURE: "amount too large"
	EFFECT {
		SET po.status = "approved";
		SET po.approvedBy = approver;
	}
}`
	defs, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	a, ok := defs[0].(ast.ActionDef)
	require.True(t, ok)
	assert.Equal(t, "PurchaseOrder", a.EntityType)
	assert.Equal(t, "approve", a.ActionName)
	require.Len(t, a.Parameters, 1)
	assert.Equal(t, "approver", a.Parameters[0].Name)
	assert.Equal(t, "string", a.Parameters[0].ParamType)
	require.Len(t, a.Preconditions, 1)
	assert.Equal(t, "amount too large", a.Preconditions[0].OnFailure)
	require.NotNil(t, a.Effect)
	require.Len(t, a.Effect.Statements, 2)
	assert.Equal(t, "po.status", a.Effect.Statements[0].Target)
}

func TestParseActionDefOptionalParam(t *testing.T) {
	src := `ACTION Invoice.void(reason: string?) { EFFECT { SET inv.status = "void"; } }`
	defs, err := Parse(src)
	require.NoError(t, err)
	a := defs[0].(ast.ActionDef)
	require.Len(t, a.Parameters, 1)
	assert.True(t, a.Parameters[0].Optional)
}

func TestParseRuleDefWithForAndTrigger(t *testing.T) {
	src := `
RULE escalate_large_po PRIORITY 10 {
	ON UPDATE(PurchaseOrder.amount)
	FOR (po: PurchaseOrder WHERE po.amount > 10000) {
		TRIGGER PurchaseOrder.escalate FOR po WITH { reason: "large amount" };
	}
}`
	defs, err := Parse(src)
	require.NoError(t, err)
	require.Len(t, defs, 1)

	r, ok := defs[0].(ast.RuleDef)
	require.True(t, ok)
	assert.Equal(t, "escalate_large_po", r.Name)
	assert.Equal(t, 10, r.Priority)
	assert.Equal(t, ast.TriggerUpdate, r.Trigger.Type)
	assert.Equal(t, "PurchaseOrder", r.Trigger.EntityType)
	assert.Equal(t, "amount", r.Trigger.Property)
	assert.Equal(t, "po", r.Body.Variable)
	require.Len(t, r.Body.Statements, 1)

	stmt, ok := r.Body.Statements[0].(ast.TriggerStatement)
	require.True(t, ok)
	assert.Equal(t, "escalate", stmt.ActionName)
	assert.Equal(t, "po", stmt.Target)
	assert.Contains(t, stmt.Params, "reason")
}

func TestParseNestedForClause(t *testing.T) {
	src := `
RULE cascade PRIORITY 0 {
	ON CREATE(Order)
	FOR (o: Order) {
		FOR (item: LineItem WHERE item.orderId == o.id) {
			SET item.status = "pending";
		}
	}
}`
	defs, err := Parse(src)
	require.NoError(t, err)
	r := defs[0].(ast.RuleDef)
	require.Len(t, r.Body.Statements, 1)
	inner, ok := r.Body.Statements[0].(*ast.ForClause)
	require.True(t, ok)
	assert.Equal(t, "item", inner.Variable)
}

func TestParseExpressionPrecedence(t *testing.T) {
	src := `ACTION X.y() { PRECONDITION: a == 1 AND b == 2 OR c == 3 ON_FAILURE: "no" }`
	defs, err := Parse(src)
	require.NoError(t, err)
	cond := defs[0].(ast.ActionDef).Preconditions[0].Condition
	logical, ok := cond.(ast.Logical)
	require.True(t, ok)
	assert.Equal(t, ast.LogicalOr, logical.Op)
	left, ok := logical.Left.(ast.Logical)
	require.True(t, ok)
	assert.Equal(t, ast.LogicalAnd, left.Op)
}

func TestParseExistsPattern(t *testing.T) {
	src := `ACTION X.y() { PRECONDITION: EXISTS(this -[ownedBy]-> mgr WHERE mgr.active == true) ON_FAILURE: "no manager" }`
	defs, err := Parse(src)
	require.NoError(t, err)
	cond := defs[0].(ast.ActionDef).Preconditions[0].Condition
	exists, ok := cond.(ast.Exists)
	require.True(t, ok)
	require.Len(t, exists.Pattern.Nodes, 2)
	require.Len(t, exists.Pattern.Edges, 1)
	assert.Equal(t, "ownedBy", exists.Pattern.Edges[0].RelationshipType)
	assert.Equal(t, ast.DirOut, exists.Pattern.Edges[0].Direction)
	assert.NotNil(t, exists.Pattern.Where)
}

func TestParseReversedEdgeDirection(t *testing.T) {
	src := `ACTION X.y() { PRECONDITION: EXISTS(this <-[managedBy]- mgr) ON_FAILURE: "no" }`
	defs, err := Parse(src)
	require.NoError(t, err)
	exists := defs[0].(ast.ActionDef).Preconditions[0].Condition.(ast.Exists)
	assert.Equal(t, ast.DirIn, exists.Pattern.Edges[0].Direction)
}

func TestParseInExpression(t *testing.T) {
	src := `ACTION X.y() { PRECONDITION: po.status IN ["draft", "pending"] ON_FAILURE: "no" }`
	defs, err := Parse(src)
	require.NoError(t, err)
	cond := defs[0].(ast.ActionDef).Preconditions[0].Condition.(ast.Binary)
	assert.Equal(t, ast.OpIn, cond.Op)
	lit := cond.Right.(ast.Literal)
	items, ok := lit.Value.([]ast.Expr)
	require.True(t, ok)
	assert.Len(t, items, 2)
}

func TestParseChangedFromTo(t *testing.T) {
	src := `ACTION X.y() { PRECONDITION: po.status CHANGED FROM "draft" TO "approved" ON_FAILURE: "no" }`
	defs, err := Parse(src)
	require.NoError(t, err)
	cond := defs[0].(ast.ActionDef).Preconditions[0].Condition.(ast.Changed)
	assert.NotNil(t, cond.From)
	assert.NotNil(t, cond.To)
}

func TestParseErrorUnexpectedToken(t *testing.T) {
	_, err := Parse(`RULE { ON UPDATE(X) FOR (x: X) { SET x.a = 1; } }`)
	assert.Error(t, err)
}

func TestParseErrorMismatchedBrace(t *testing.T) {
	_, err := Parse(`ACTION X.y() { EFFECT { SET a.b = 1; }`)
	assert.Error(t, err)
}
