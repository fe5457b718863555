package parser

import (
	"strconv"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/lexer"
)

// parseExpression implements the expression := or_expr rule and the
// precedence cascade from spec.md §4.1: OR binds loosest, then AND, then
// NOT, then comparisons.
func (p *parser) parseExpression() (ast.Expr, error) {
	return p.parseOr()
}

func (p *parser) parseOr() (ast.Expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("OR") {
		p.advance()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = ast.Logical{Op: ast.LogicalOr, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseAnd() (ast.Expr, error) {
	left, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.isKeyword("AND") {
		p.advance()
		right, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		left = ast.Logical{Op: ast.LogicalAnd, Left: left, Right: right}
	}
	return left, nil
}

func (p *parser) parseNot() (ast.Expr, error) {
	if p.isKeyword("NOT") {
		p.advance()
		operand, err := p.parseComparison()
		if err != nil {
			return nil, err
		}
		return ast.Not{Operand: operand}, nil
	}
	return p.parseComparison()
}

var compareOps = map[string]ast.CompareOp{
	"==": ast.OpEq, "!=": ast.OpNeq, "<": ast.OpLt, ">": ast.OpGt,
	"<=": ast.OpLte, ">=": ast.OpGte,
}

func (p *parser) parseComparison() (ast.Expr, error) {
	if p.isKeyword("EXISTS") {
		p.advance()
		if _, err := p.expectType(lexer.LPAREN, "'('"); err != nil {
			return nil, err
		}
		pattern, err := p.parsePattern()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectType(lexer.RPAREN, "')'"); err != nil {
			return nil, err
		}
		return ast.Exists{Pattern: pattern}, nil
	}

	left, err := p.parseTerm()
	if err != nil {
		return nil, err
	}

	switch {
	case p.cur().Type == lexer.OP:
		op := compareOps[p.cur().Value]
		p.advance()
		right, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return ast.Binary{Op: op, Left: left, Right: right}, nil

	case p.isKeyword("IN"):
		p.advance()
		if _, err := p.expectType(lexer.LBRACKET, "'['"); err != nil {
			return nil, err
		}
		var items []ast.Expr
		for p.cur().Type != lexer.RBRACKET {
			if len(items) > 0 {
				if _, err := p.expectType(lexer.COMMA, "','"); err != nil {
					return nil, err
				}
			}
			v, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			items = append(items, v)
		}
		if _, err := p.expectType(lexer.RBRACKET, "']'"); err != nil {
			return nil, err
		}
		return ast.Binary{Op: ast.OpIn, Left: left, Right: listExpr(items)}, nil

	case p.isKeyword("IS"):
		p.advance()
		negated := false
		if p.isKeyword("NOT") {
			p.advance()
			negated = true
		}
		if err := p.expectKeyword("NULL"); err != nil {
			return nil, err
		}
		return ast.IsNull{Operand: left, Negated: negated}, nil

	case p.isKeyword("MATCHES"):
		p.advance()
		pattern, err := p.parseTerm()
		if err != nil {
			return nil, err
		}
		return ast.Matches{Operand: left, Pattern: pattern}, nil

	case p.isKeyword("CHANGED"):
		p.advance()
		ch := ast.Changed{Operand: left}
		if p.isKeyword("FROM") {
			p.advance()
			from, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			ch.From = from
			if err := p.expectKeyword("TO"); err != nil {
				return nil, err
			}
			to, err := p.parseTerm()
			if err != nil {
				return nil, err
			}
			ch.To = to
		}
		return ch, nil

	default:
		return left, nil
	}
}

// listExpr packs a parsed value_list into a single pseudo-literal Expr so
// ast.Binary can carry IN's right-hand side uniformly. The evaluator and
// translator both recognize ast.Literal{Value: []ast.Expr} as a list.
func listExpr(items []ast.Expr) ast.Expr {
	return ast.Literal{Value: items}
}

func (p *parser) parseTerm() (ast.Expr, error) {
	t := p.cur()
	switch {
	case t.Type == lexer.LPAREN:
		p.advance()
		e, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectType(lexer.RPAREN, "')'"); err != nil {
			return nil, err
		}
		return e, nil

	case t.Type == lexer.STRING:
		p.advance()
		return ast.Literal{Value: t.Value}, nil

	case t.Type == lexer.INT:
		p.advance()
		n, _ := strconv.ParseInt(t.Value, 10, 64)
		return ast.Literal{Value: n}, nil

	case t.Type == lexer.FLOAT:
		p.advance()
		f, _ := strconv.ParseFloat(t.Value, 64)
		return ast.Literal{Value: f}, nil

	case t.IsKeyword("true"):
		p.advance()
		return ast.Literal{Value: true}, nil

	case t.IsKeyword("false"):
		p.advance()
		return ast.Literal{Value: false}, nil

	case t.IsKeyword("NULL"):
		p.advance()
		return ast.Literal{Value: nil}, nil

	case t.Type == lexer.IDENT:
		return p.parseIdentOrCall()

	default:
		return nil, p.errorf("unexpected token %q in expression", t.Value)
	}
}

func (p *parser) parseIdentOrCall() (ast.Expr, error) {
	first, err := p.expectIdent()
	if err != nil {
		return nil, err
	}
	if p.cur().Type == lexer.LPAREN {
		p.advance()
		var args []ast.Expr
		for p.cur().Type != lexer.RPAREN {
			if len(args) > 0 {
				if _, err := p.expectType(lexer.COMMA, "','"); err != nil {
					return nil, err
				}
			}
			a, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			args = append(args, a)
		}
		if _, err := p.expectType(lexer.RPAREN, "')'"); err != nil {
			return nil, err
		}
		return ast.Call{Name: first, Args: args}, nil
	}

	segments := []string{first}
	for p.cur().Type == lexer.DOT {
		p.advance()
		seg, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return ast.Path{Segments: segments}, nil
}

// parsePattern parses a graph pattern: node (edge node)* [WHERE expr].
func (p *parser) parsePattern() (ast.Pattern, error) {
	var pat ast.Pattern
	first, err := p.parsePatternNode()
	if err != nil {
		return pat, err
	}
	pat.Nodes = append(pat.Nodes, first)

	for p.cur().Type == lexer.DASH || p.cur().Type == lexer.ARROW_FROM {
		edge, next, err := p.parsePatternEdge(pat.Nodes[len(pat.Nodes)-1])
		if err != nil {
			return pat, err
		}
		pat.Edges = append(pat.Edges, edge)
		pat.Nodes = append(pat.Nodes, next)
	}

	if p.isKeyword("WHERE") {
		p.advance()
		where, err := p.parseExpression()
		if err != nil {
			return pat, err
		}
		pat.Where = where
	}
	return pat, nil
}

func (p *parser) parsePatternNode() (ast.PatternNode, error) {
	name, err := p.expectIdent()
	if err != nil {
		return ast.PatternNode{}, err
	}
	return ast.PatternNode{Variable: name}, nil
}

// parsePatternEdge parses "-[rel]->" or "<-[rel]-" starting right after the
// `from` node has been consumed, returning the edge and the node on the
// other side.
func (p *parser) parsePatternEdge(from ast.PatternNode) (ast.PatternEdge, ast.PatternNode, error) {
	var edge ast.PatternEdge
	reversed := false
	if p.cur().Type == lexer.ARROW_FROM {
		p.advance() // consumed "<-"
		reversed = true
	} else {
		if _, err := p.expectType(lexer.DASH, "'-'"); err != nil {
			return edge, ast.PatternNode{}, err
		}
	}
	if _, err := p.expectType(lexer.LBRACKET, "'['"); err != nil {
		return edge, ast.PatternNode{}, err
	}
	relType, err := p.expectIdent()
	if err != nil {
		return edge, ast.PatternNode{}, err
	}
	if _, err := p.expectType(lexer.RBRACKET, "']'"); err != nil {
		return edge, ast.PatternNode{}, err
	}

	var direction ast.Direction
	switch {
	case reversed:
		if _, err := p.expectType(lexer.DASH, "'-'"); err != nil {
			return edge, ast.PatternNode{}, err
		}
		direction = ast.DirIn
	case p.cur().Type == lexer.ARROW_TO:
		p.advance()
		direction = ast.DirOut
	case p.cur().Type == lexer.DASH:
		p.advance()
		direction = ast.DirBoth
	default:
		return edge, ast.PatternNode{}, p.errorf("expected '->', '-', or closing edge, got %q", p.cur().Value)
	}

	to, err := p.parsePatternNode()
	if err != nil {
		return edge, ast.PatternNode{}, err
	}

	edge = ast.PatternEdge{RelationshipType: relType, Direction: direction, From: from, To: to}
	return edge, to, nil
}
