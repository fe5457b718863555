package translate

import (
	"fmt"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/grerr"
)

// translateExpr renders expr as a boolean SQL fragment against sc's
// aliases, appending any literal values to b.args. It mirrors the
// Python translator's _translate_binary_op / _translate_value dispatch,
// generalized to the richer ast package here.
func (t *Translator) translateExpr(b *builder, sc *scope, expr ast.Expr) (string, error) {
	switch e := expr.(type) {
	case ast.Literal:
		return t.translateValue(b, e.Value)

	case ast.Path:
		return t.translatePath(sc, e)

	case ast.Binary:
		return t.translateBinary(b, sc, e)

	case ast.Logical:
		left, err := t.translateExpr(b, sc, e.Left)
		if err != nil {
			return "", err
		}
		right, err := t.translateExpr(b, sc, e.Right)
		if err != nil {
			return "", err
		}
		op := "AND"
		if e.Op == ast.LogicalOr {
			op = "OR"
		}
		return fmt.Sprintf("(%s %s %s)", left, op, right), nil

	case ast.Not:
		inner, err := t.translateExpr(b, sc, e.Operand)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("(NOT %s)", inner), nil

	case ast.IsNull:
		inner, err := t.translatePath(sc, mustPath(e.Operand))
		if err != nil {
			return "", err
		}
		if e.Negated {
			return fmt.Sprintf("(%s IS NOT NULL)", inner), nil
		}
		return fmt.Sprintf("(%s IS NULL)", inner), nil

	case ast.Matches:
		left, err := t.translatePath(sc, mustPath(e.Operand))
		if err != nil {
			return "", err
		}
		pat, ok := e.Pattern.(ast.Literal)
		if !ok {
			return "", grerr.Invalidf("MATCHES pattern must be a string literal in a translated condition")
		}
		return fmt.Sprintf("(%s ~ %s)", left, b.param(pat.Value)), nil

	case ast.Exists:
		return t.translatePattern(b, sc, e.Pattern)

	case ast.Call:
		return t.translateCall(b, sc, e)

	default:
		return "", grerr.Invalidf("expression node %T cannot be translated to SQL", expr)
	}
}

func mustPath(e ast.Expr) ast.Path {
	if p, ok := e.(ast.Path); ok {
		return p
	}
	return ast.Path{}
}

// translatePath resolves a bound-variable path to a JSONB text-extraction
// expression against that variable's alias, e.g. "po.amount" becomes
// "f0.properties->>'amount'" when po is a FOR clause's first variable. The bare entity-id/name/type fields read
// their dedicated columns instead of the properties blob.
func (t *Translator) translatePath(sc *scope, p ast.Path) (string, error) {
	if len(p.Segments) < 2 {
		return "", grerr.Invalidf("path %q must reference a bound variable's field", p.String())
	}
	alias, err := sc.aliasFor(p.Segments[0])
	if err != nil {
		return "", err
	}
	field := p.Segments[len(p.Segments)-1]
	switch field {
	case "id":
		return alias + ".id", nil
	case "name":
		return alias + ".name", nil
	case "entity_type", "type":
		return alias + ".entity_type", nil
	default:
		return fmt.Sprintf("%s.properties->>'%s'", alias, sqlStringEscape(field)), nil
	}
}

func sqlStringEscape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	return string(out)
}

func (t *Translator) translateValue(b *builder, v any) (string, error) {
	return b.param(v), nil
}

var binaryOps = map[ast.CompareOp]string{
	ast.OpEq: "=", ast.OpNeq: "!=", ast.OpLt: "<", ast.OpGt: ">",
	ast.OpLte: "<=", ast.OpGte: ">=",
}

func (t *Translator) translateBinary(b *builder, sc *scope, e ast.Binary) (string, error) {
	if e.Op == ast.OpIn {
		return t.translateIn(b, sc, e)
	}
	left, err := t.translateOperand(b, sc, e.Left)
	if err != nil {
		return "", err
	}
	right, err := t.translateOperand(b, sc, e.Right)
	if err != nil {
		return "", err
	}
	op, ok := binaryOps[e.Op]
	if !ok {
		return "", grerr.Invalidf("unsupported comparison operator %q in translated condition", e.Op)
	}
	// Properties are extracted as text; a numeric literal comparison
	// needs an explicit cast so "10" > "9" does not sort lexically.
	if _, isNum := numericLiteral(e.Right); isNum {
		left = "(" + left + ")::numeric"
	}
	return fmt.Sprintf("(%s %s %s)", left, op, right), nil
}

func numericLiteral(e ast.Expr) (float64, bool) {
	lit, ok := e.(ast.Literal)
	if !ok {
		return 0, false
	}
	switch v := lit.Value.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

func (t *Translator) translateOperand(b *builder, sc *scope, e ast.Expr) (string, error) {
	if p, ok := e.(ast.Path); ok {
		return t.translatePath(sc, p)
	}
	return t.translateExpr(b, sc, e)
}

func (t *Translator) translateIn(b *builder, sc *scope, e ast.Binary) (string, error) {
	left, err := t.translateOperand(b, sc, e.Left)
	if err != nil {
		return "", err
	}
	lit, ok := e.Right.(ast.Literal)
	if !ok {
		return "", grerr.Invalidf("IN requires a literal list")
	}
	items, ok := lit.Value.([]ast.Expr)
	if !ok {
		return "", grerr.Invalidf("IN requires a literal list")
	}
	placeholders := make([]string, 0, len(items))
	for _, item := range items {
		itemLit, ok := item.(ast.Literal)
		if !ok {
			return "", grerr.Invalidf("IN list items must be literals in a translated condition")
		}
		placeholders = append(placeholders, b.param(itemLit.Value))
	}
	joined := ""
	for i, p := range placeholders {
		if i > 0 {
			joined += ", "
		}
		joined += p
	}
	return fmt.Sprintf("(%s IN (%s))", left, joined), nil
}

// translateCall supports the small subset of builtins that have a direct
// SQL equivalent; anything else is rejected with a clear error rather than
// silently mistranslated (it is still usable inside ACTION preconditions,
// which evaluate in Go, never SQL).
func (t *Translator) translateCall(b *builder, sc *scope, call ast.Call) (string, error) {
	switch call.Name {
	case "NOW":
		return "now()", nil
	case "UPPER", "LOWER", "LENGTH":
		if len(call.Args) != 1 {
			return "", grerr.Invalidf("%s expects exactly one argument in a translated condition", call.Name)
		}
		arg, err := t.translateOperand(b, sc, call.Args[0])
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("%s(%s)", call.Name, arg), nil
	default:
		return "", grerr.Invalidf("function %q cannot appear in a graph pattern's WHERE clause", call.Name)
	}
}
