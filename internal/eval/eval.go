package eval

import (
	"context"
	"fmt"
	"regexp"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/grerr"
)

// Evaluator walks ast.Expr trees. Pattern is nil-safe only when the
// expression tree being evaluated contains no Exists node; the rule
// engine and action executor both construct an Evaluator with a real
// translate.Translator.
type Evaluator struct {
	Pattern PatternEvaluator
}

func New(pattern PatternEvaluator) *Evaluator {
	return &Evaluator{Pattern: pattern}
}

// Eval dispatches on the concrete Expr type, mirroring the Python
// evaluator's _evaluate_tuple dispatch table.
func (ev *Evaluator) Eval(ctx context.Context, c *EvaluationContext, expr ast.Expr) (any, error) {
	switch e := expr.(type) {
	case ast.Literal:
		return e.Value, nil

	case ast.Path:
		return c.ResolvePath(e), nil

	case ast.Binary:
		return ev.evalBinary(ctx, c, e)

	case ast.Logical:
		return ev.evalLogical(ctx, c, e)

	case ast.Not:
		v, err := ev.EvalBool(ctx, c, e.Operand)
		if err != nil {
			return nil, err
		}
		return !v, nil

	case ast.IsNull:
		v, err := ev.Eval(ctx, c, e.Operand)
		if err != nil {
			return nil, err
		}
		isNull := v == nil
		if e.Negated {
			return !isNull, nil
		}
		return isNull, nil

	case ast.Matches:
		return ev.evalMatches(ctx, c, e)

	case ast.Changed:
		return ev.evalChanged(c, e)

	case ast.Call:
		return ev.evalCall(ctx, c, e)

	case ast.Exists:
		if ev.Pattern == nil {
			return nil, grerr.Invalidf("EXISTS evaluated without a pattern translator")
		}
		return ev.Pattern.EvalExists(ctx, c.Store, c, e.Pattern)

	default:
		return nil, grerr.Invalidf("unsupported expression node %T", expr)
	}
}

// EvalBool evaluates expr and coerces the result to bool: nil, false,
// numeric zero and the empty string are false; every other value is true.
func (ev *Evaluator) EvalBool(ctx context.Context, c *EvaluationContext, expr ast.Expr) (bool, error) {
	v, err := ev.Eval(ctx, c, expr)
	if err != nil {
		return false, err
	}
	return truthy(v), nil
}

func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	default:
		if f, ok := asFloat(v); ok {
			return f != 0
		}
		return true
	}
}

func (ev *Evaluator) evalLogical(ctx context.Context, c *EvaluationContext, e ast.Logical) (any, error) {
	left, err := ev.EvalBool(ctx, c, e.Left)
	if err != nil {
		return nil, err
	}
	if e.Op == ast.LogicalAnd && !left {
		return false, nil
	}
	if e.Op == ast.LogicalOr && left {
		return true, nil
	}
	return ev.EvalBool(ctx, c, e.Right)
}

func (ev *Evaluator) evalBinary(ctx context.Context, c *EvaluationContext, e ast.Binary) (any, error) {
	left, err := ev.Eval(ctx, c, e.Left)
	if err != nil {
		return nil, err
	}

	if e.Op == ast.OpIn {
		list, ok := e.Right.(ast.Literal)
		if !ok {
			return nil, grerr.Invalidf("IN requires a literal list on the right-hand side")
		}
		items, ok := list.Value.([]ast.Expr)
		if !ok {
			return nil, grerr.Invalidf("IN requires a literal list on the right-hand side")
		}
		for _, item := range items {
			v, err := ev.Eval(ctx, c, item)
			if err != nil {
				return nil, err
			}
			if looseEqual(left, v) {
				return true, nil
			}
		}
		return false, nil
	}

	right, err := ev.Eval(ctx, c, e.Right)
	if err != nil {
		return nil, err
	}

	// spec.md §4.3: null compares false to everything except explicit
	// IS [NOT] NULL, regardless of operator.
	if left == nil || right == nil {
		return false, nil
	}

	switch e.Op {
	case ast.OpEq:
		return looseEqual(left, right), nil
	case ast.OpNeq:
		return !looseEqual(left, right), nil
	case ast.OpLt, ast.OpGt, ast.OpLte, ast.OpGte:
		return compareOrdered(e.Op, left, right)
	default:
		return nil, grerr.Invalidf("unsupported comparison operator %q", e.Op)
	}
}

func (ev *Evaluator) evalMatches(ctx context.Context, c *EvaluationContext, e ast.Matches) (any, error) {
	left, err := ev.Eval(ctx, c, e.Operand)
	if err != nil {
		return nil, err
	}
	if left == nil {
		return false, nil
	}
	patVal, err := ev.Eval(ctx, c, e.Pattern)
	if err != nil {
		return nil, err
	}
	s, ok := asString(left)
	if !ok {
		return false, nil
	}
	pat, ok := asString(patVal)
	if !ok {
		return nil, grerr.Invalidf("MATCHES pattern must be a string")
	}
	re, err := regexp.Compile(pat)
	if err != nil {
		return nil, grerr.Invalidf("invalid MATCHES pattern %q: %v", pat, err)
	}
	return re.MatchString(s), nil
}

// evalChanged inspects c.OldValues/NewValues, not c.Vars, matching the
// Python evaluator's handling of CHANGED as a trigger-context primitive
// rather than a graph-backed read.
func (ev *Evaluator) evalChanged(c *EvaluationContext, e ast.Changed) (any, error) {
	path, ok := e.Operand.(ast.Path)
	if !ok || len(path.Segments) < 2 {
		return nil, grerr.Invalidf("CHANGED requires a property path operand")
	}
	prop := path.Segments[len(path.Segments)-1]
	oldV, hadOld := c.OldValues[prop]
	newV, hadNew := c.NewValues[prop]
	if !hadOld && !hadNew {
		return false, nil
	}
	if looseEqual(oldV, newV) {
		return false, nil
	}
	if e.From == nil && e.To == nil {
		return true, nil
	}
	matched := true
	if e.From != nil {
		fv, err := ev.evalLiteralOrPath(c, e.From)
		if err != nil {
			return nil, err
		}
		matched = matched && looseEqual(oldV, fv)
	}
	if e.To != nil {
		tv, err := ev.evalLiteralOrPath(c, e.To)
		if err != nil {
			return nil, err
		}
		matched = matched && looseEqual(newV, tv)
	}
	return matched, nil
}

func (ev *Evaluator) evalLiteralOrPath(c *EvaluationContext, e ast.Expr) (any, error) {
	switch t := e.(type) {
	case ast.Literal:
		return t.Value, nil
	case ast.Path:
		return c.ResolvePath(t), nil
	default:
		return nil, fmt.Errorf("CHANGED FROM/TO operand must be a literal or path, got %T", e)
	}
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
