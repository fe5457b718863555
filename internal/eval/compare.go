package eval

import (
	"fmt"
	"time"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/grerr"
)

// looseEqual compares values the way the DSL's JSONB-backed properties
// naturally arrive: numeric types compare by value regardless of Go kind
// (int64 vs float64), everything else by ==.
func looseEqual(a, b any) bool {
	if af, aok := asFloat(a); aok {
		if bf, bok := asFloat(b); bok {
			return af == bf
		}
	}
	return a == b
}

func asFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case int:
		return float64(t), true
	case int64:
		return float64(t), true
	case float64:
		return t, true
	case float32:
		return float64(t), true
	default:
		return 0, false
	}
}

func compareOrdered(op ast.CompareOp, left, right any) (bool, error) {
	if lf, lok := asFloat(left); lok {
		if rf, rok := asFloat(right); rok {
			return compareFloats(op, lf, rf), nil
		}
	}
	if ls, lok := left.(string); lok {
		if rs, rok := right.(string); rok {
			return compareStrings(op, ls, rs), nil
		}
	}
	if lt, lok := left.(time.Time); lok {
		if rt, rok := right.(time.Time); rok {
			return compareFloats(op, float64(lt.UnixNano()), float64(rt.UnixNano())), nil
		}
	}
	return false, grerr.Invalidf("cannot order-compare %v (%T) and %v (%T)", left, left, right, right)
}

func compareFloats(op ast.CompareOp, l, r float64) bool {
	switch op {
	case ast.OpLt:
		return l < r
	case ast.OpGt:
		return l > r
	case ast.OpLte:
		return l <= r
	case ast.OpGte:
		return l >= r
	default:
		panic(fmt.Sprintf("compareFloats: unsupported op %q", op))
	}
}

func compareStrings(op ast.CompareOp, l, r string) bool {
	switch op {
	case ast.OpLt:
		return l < r
	case ast.OpGt:
		return l > r
	case ast.OpLte:
		return l <= r
	case ast.OpGte:
		return l >= r
	default:
		panic(fmt.Sprintf("compareStrings: unsupported op %q", op))
	}
}
