package eval

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/graph"
)

func newTestContext() *EvaluationContext {
	c := NewContext(graph.NewMemoryStore())
	c.Bind("po", &graph.Entity{
		ID: 1, Name: "po-1", EntityType: "PurchaseOrder",
		Properties: map[string]any{"amount": 150.0, "status": "pending"},
	})
	return c
}

func TestEvalLiteralAndPath(t *testing.T) {
	ev := New(nil)
	c := newTestContext()
	v, err := ev.Eval(context.Background(), c, ast.Literal{Value: int64(42)})
	require.NoError(t, err)
	assert.Equal(t, int64(42), v)

	v, err = ev.Eval(context.Background(), c, ast.Path{Segments: []string{"po", "amount"}})
	require.NoError(t, err)
	assert.Equal(t, 150.0, v)
}

func TestEvalBinaryComparisons(t *testing.T) {
	ev := New(nil)
	c := newTestContext()
	cases := []struct {
		op   ast.CompareOp
		rhs  any
		want bool
	}{
		{ast.OpGt, int64(100), true},
		{ast.OpLt, int64(100), false},
		{ast.OpEq, 150.0, true},
		{ast.OpNeq, 150.0, false},
	}
	for _, tc := range cases {
		expr := ast.Binary{Op: tc.op, Left: ast.Path{Segments: []string{"po", "amount"}}, Right: ast.Literal{Value: tc.rhs}}
		got, err := ev.EvalBool(context.Background(), c, expr)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "op=%s", tc.op)
	}
}

func TestEvalBinaryNullIsFalse(t *testing.T) {
	ev := New(nil)
	c := newTestContext()
	expr := ast.Binary{Op: ast.OpEq, Left: ast.Path{Segments: []string{"po", "missing"}}, Right: ast.Literal{Value: int64(1)}}
	got, err := ev.EvalBool(context.Background(), c, expr)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvalIsNull(t *testing.T) {
	ev := New(nil)
	c := newTestContext()
	expr := ast.IsNull{Operand: ast.Path{Segments: []string{"po", "missing"}}}
	got, err := ev.EvalBool(context.Background(), c, expr)
	require.NoError(t, err)
	assert.True(t, got)

	expr.Negated = true
	got, err = ev.EvalBool(context.Background(), c, expr)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvalLogicalShortCircuit(t *testing.T) {
	ev := New(nil)
	c := newTestContext()
	// right side references an unknown function; if AND short-circuits on a
	// false left operand, evaluating it must never error.
	expr := ast.Logical{
		Op:    ast.LogicalAnd,
		Left:  ast.Literal{Value: false},
		Right: ast.Call{Name: "NOT_A_FUNCTION"},
	}
	got, err := ev.EvalBool(context.Background(), c, expr)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvalIn(t *testing.T) {
	ev := New(nil)
	c := newTestContext()
	expr := ast.Binary{
		Op:   ast.OpIn,
		Left: ast.Path{Segments: []string{"po", "status"}},
		Right: ast.Literal{Value: []ast.Expr{
			ast.Literal{Value: "draft"},
			ast.Literal{Value: "pending"},
		}},
	}
	got, err := ev.EvalBool(context.Background(), c, expr)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvalMatches(t *testing.T) {
	ev := New(nil)
	c := newTestContext()
	expr := ast.Matches{Operand: ast.Path{Segments: []string{"po", "status"}}, Pattern: ast.Literal{Value: "^pend"}}
	got, err := ev.EvalBool(context.Background(), c, expr)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvalChanged(t *testing.T) {
	ev := New(nil)
	c := newTestContext()
	c.OldValues = map[string]any{"status": "draft"}
	c.NewValues = map[string]any{"status": "approved"}

	expr := ast.Changed{Operand: ast.Path{Segments: []string{"po", "status"}}}
	got, err := ev.EvalBool(context.Background(), c, expr)
	require.NoError(t, err)
	assert.True(t, got)

	expr.From = ast.Literal{Value: "draft"}
	expr.To = ast.Literal{Value: "approved"}
	got, err = ev.EvalBool(context.Background(), c, expr)
	require.NoError(t, err)
	assert.True(t, got)

	expr.To = ast.Literal{Value: "rejected"}
	got, err = ev.EvalBool(context.Background(), c, expr)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvalChangedNoDelta(t *testing.T) {
	ev := New(nil)
	c := newTestContext()
	c.OldValues = map[string]any{"status": "draft"}
	c.NewValues = map[string]any{"status": "draft"}
	expr := ast.Changed{Operand: ast.Path{Segments: []string{"po", "status"}}}
	got, err := ev.EvalBool(context.Background(), c, expr)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvalExistsWithoutPatternErrors(t *testing.T) {
	ev := New(nil)
	c := newTestContext()
	_, err := ev.Eval(context.Background(), c, ast.Exists{Pattern: ast.Pattern{Nodes: []ast.PatternNode{{Variable: "x"}}}})
	assert.Error(t, err)
}

func TestEvalBuiltinFunctions(t *testing.T) {
	ev := New(nil)
	c := newTestContext()

	v, err := ev.Eval(context.Background(), c, ast.Call{Name: "CONCAT", Args: []ast.Expr{
		ast.Literal{Value: "a"}, ast.Literal{Value: "b"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "ab", v)

	v, err = ev.Eval(context.Background(), c, ast.Call{Name: "UPPER", Args: []ast.Expr{ast.Literal{Value: "abc"}}})
	require.NoError(t, err)
	assert.Equal(t, "ABC", v)

	v, err = ev.Eval(context.Background(), c, ast.Call{Name: "ABS", Args: []ast.Expr{ast.Literal{Value: -5.0}}})
	require.NoError(t, err)
	assert.Equal(t, 5.0, v)

	v, err = ev.Eval(context.Background(), c, ast.Call{Name: "MAX", Args: []ast.Expr{
		ast.Literal{Value: 1.0}, ast.Literal{Value: 9.0}, ast.Literal{Value: 4.0},
	}})
	require.NoError(t, err)
	assert.Equal(t, 9.0, v)

	v, err = ev.Eval(context.Background(), c, ast.Call{Name: "COALESCE", Args: []ast.Expr{
		ast.Literal{Value: nil}, ast.Literal{Value: "fallback"},
	}})
	require.NoError(t, err)
	assert.Equal(t, "fallback", v)

	_, err = ev.Eval(context.Background(), c, ast.Call{Name: "UNKNOWN"})
	assert.Error(t, err)
}

func TestEvalBuiltinArityMismatch(t *testing.T) {
	ev := New(nil)
	c := newTestContext()
	_, err := ev.Eval(context.Background(), c, ast.Call{Name: "LENGTH", Args: []ast.Expr{
		ast.Literal{Value: "a"}, ast.Literal{Value: "b"},
	}})
	assert.Error(t, err)
}

func TestEvalDatetimeAdd(t *testing.T) {
	ev := New(nil)
	c := newTestContext()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	v, err := ev.Eval(context.Background(), c, ast.Call{Name: "DATETIME_ADD", Args: []ast.Expr{
		ast.Literal{Value: base}, ast.Literal{Value: 3.0}, ast.Literal{Value: "days"},
	}})
	require.NoError(t, err)
	assert.Equal(t, base.AddDate(0, 0, 3), v)
}

func TestEvaluationContextChildIsolation(t *testing.T) {
	c := newTestContext()
	child := c.Child()
	child.Bind("x", &graph.Entity{ID: 2, Name: "other"})
	_, presentInParent := c.Vars["x"]
	assert.False(t, presentInParent)
	assert.Equal(t, c.Store, child.Store)
}

func TestResolvePathParams(t *testing.T) {
	c := newTestContext()
	c.Params = map[string]any{"reason": "overdue"}
	v := c.ResolvePath(ast.Path{Segments: []string{"params", "reason"}})
	assert.Equal(t, "overdue", v)
}

func TestResolvePathUnknownVariable(t *testing.T) {
	c := newTestContext()
	v := c.ResolvePath(ast.Path{Segments: []string{"nope", "x"}})
	assert.Nil(t, v)
}
