// Package parser implements a hand-written recursive-descent parser over
// the lexer's token stream, producing the ast.Def values described in
// spec.md §4.1. It is grounded in the teacher's cmd/aql.Parser (a
// position-tracking parser over a flat token stream) generalized from
// AQL's single-statement SELECT/UPDATE grammar to the nested
// ACTION/RULE/FOR grammar this DSL requires.
package parser

import (
	"fmt"
	"strconv"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/grerr"
	"github.com/arxos/graphrules/internal/lexer"
)

// Parse tokenizes and parses DSL text into a list of ActionDef/RuleDef
// values. Unknown syntax never yields partial registrations: on error the
// returned slice is nil.
func Parse(src string) ([]ast.Def, error) {
	toks, err := tokenizeAll(src)
	if err != nil {
		return nil, &grerr.ParseError{Message: err.Error()}
	}
	p := &parser{toks: toks}
	defs, err := p.parseFile()
	if err != nil {
		return nil, err
	}
	return defs, nil
}

func tokenizeAll(src string) ([]lexer.Token, error) {
	lx := lexer.New(src)
	var toks []lexer.Token
	for {
		t, err := lx.Next()
		if err != nil {
			return nil, err
		}
		toks = append(toks, t)
		if t.Type == lexer.EOF {
			break
		}
	}
	return toks, nil
}

type parser struct {
	toks []lexer.Token
	pos  int
}

func (p *parser) cur() lexer.Token  { return p.toks[p.pos] }
func (p *parser) atEOF() bool       { return p.cur().Type == lexer.EOF }
func (p *parser) advance() lexer.Token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) errorf(format string, args ...any) error {
	t := p.cur()
	return &grerr.ParseError{
		Line:    t.Line,
		Column:  t.Column,
		Message: fmt.Sprintf(format, args...),
	}
}

func (p *parser) expectType(tt lexer.TokenType, what string) (lexer.Token, error) {
	if p.cur().Type != tt {
		return lexer.Token{}, p.errorf("expected %s, got %q", what, p.cur().Value)
	}
	return p.advance(), nil
}

func (p *parser) expectKeyword(kw string) error {
	if !p.cur().IsKeyword(kw) {
		return p.errorf("expected keyword %s, got %q", kw, p.cur().Value)
	}
	p.advance()
	return nil
}

func (p *parser) isKeyword(kw string) bool { return p.cur().IsKeyword(kw) }

func (p *parser) expectIdent() (string, error) {
	t, err := p.expectType(lexer.IDENT, "identifier")
	return t.Value, err
}

func (p *parser) parseFile() ([]ast.Def, error) {
	var defs []ast.Def
	for !p.atEOF() {
		switch {
		case p.isKeyword("ACTION"):
			a, err := p.parseActionDef()
			if err != nil {
				return nil, err
			}
			defs = append(defs, a)
		case p.isKeyword("RULE"):
			r, err := p.parseRuleDef()
			if err != nil {
				return nil, err
			}
			defs = append(defs, r)
		default:
			return nil, p.errorf("expected ACTION or RULE, got %q", p.cur().Value)
		}
	}
	return defs, nil
}

func (p *parser) parseActionDef() (ast.ActionDef, error) {
	var a ast.ActionDef
	if err := p.expectKeyword("ACTION"); err != nil {
		return a, err
	}
	entityType, err := p.expectIdent()
	if err != nil {
		return a, err
	}
	if _, err := p.expectType(lexer.DOT, "'.'"); err != nil {
		return a, err
	}
	actionName, err := p.expectIdent()
	if err != nil {
		return a, err
	}
	a.EntityType = entityType
	a.ActionName = actionName

	if p.cur().Type == lexer.LPAREN {
		params, err := p.parseParamList()
		if err != nil {
			return a, err
		}
		a.Parameters = params
	}

	if _, err := p.expectType(lexer.LBRACE, "'{'"); err != nil {
		return a, err
	}
	for p.isKeyword("PRECONDITION") {
		pc, err := p.parsePrecondition()
		if err != nil {
			return a, err
		}
		a.Preconditions = append(a.Preconditions, pc)
	}
	if p.isKeyword("EFFECT") {
		eff, err := p.parseEffect()
		if err != nil {
			return a, err
		}
		a.Effect = eff
	}
	if _, err := p.expectType(lexer.RBRACE, "'}'"); err != nil {
		return a, err
	}
	return a, nil
}

func (p *parser) parseParamList() ([]ast.Parameter, error) {
	if _, err := p.expectType(lexer.LPAREN, "'('"); err != nil {
		return nil, err
	}
	var params []ast.Parameter
	for p.cur().Type != lexer.RPAREN {
		if len(params) > 0 {
			if _, err := p.expectType(lexer.COMMA, "','"); err != nil {
				return nil, err
			}
		}
		name, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectType(lexer.COLON, "':'"); err != nil {
			return nil, err
		}
		typ, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		optional := false
		if p.cur().Type == lexer.QUESTION {
			p.advance()
			optional = true
		}
		params = append(params, ast.Parameter{Name: name, ParamType: typ, Optional: optional})
	}
	if _, err := p.expectType(lexer.RPAREN, "')'"); err != nil {
		return nil, err
	}
	return params, nil
}

func (p *parser) parsePrecondition() (ast.Precondition, error) {
	var pc ast.Precondition
	if err := p.expectKeyword("PRECONDITION"); err != nil {
		return pc, err
	}
	if p.cur().Type == lexer.IDENT {
		pc.Name = p.advance().Value
	}
	if _, err := p.expectType(lexer.COLON, "':'"); err != nil {
		return pc, err
	}
	cond, err := p.parseExpression()
	if err != nil {
		return pc, err
	}
	pc.Condition = cond
	if err := p.expectKeyword("ON_FAILURE"); err != nil {
		return pc, err
	}
	if _, err := p.expectType(lexer.COLON, "':'"); err != nil {
		return pc, err
	}
	msg, err := p.expectType(lexer.STRING, "string literal")
	if err != nil {
		return pc, err
	}
	pc.OnFailure = msg.Value
	return pc, nil
}

func (p *parser) parseEffect() (*ast.EffectBlock, error) {
	if err := p.expectKeyword("EFFECT"); err != nil {
		return nil, err
	}
	if _, err := p.expectType(lexer.LBRACE, "'{'"); err != nil {
		return nil, err
	}
	eff := &ast.EffectBlock{}
	for p.isKeyword("SET") {
		s, err := p.parseSetStatement()
		if err != nil {
			return nil, err
		}
		eff.Statements = append(eff.Statements, s)
		if _, err := p.expectType(lexer.SEMI, "';'"); err != nil {
			return nil, err
		}
	}
	if _, err := p.expectType(lexer.RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return eff, nil
}

func (p *parser) parseSetStatement() (ast.SetStatement, error) {
	var s ast.SetStatement
	if err := p.expectKeyword("SET"); err != nil {
		return s, err
	}
	path, err := p.parseDottedPath()
	if err != nil {
		return s, err
	}
	s.Target = path
	if _, err := p.expectType(lexer.ASSIGN, "'='"); err != nil {
		return s, err
	}
	val, err := p.parseExpression()
	if err != nil {
		return s, err
	}
	s.Value = val
	return s, nil
}

func (p *parser) parseDottedPath() (string, error) {
	first, err := p.expectIdent()
	if err != nil {
		return "", err
	}
	path := first
	for p.cur().Type == lexer.DOT {
		p.advance()
		seg, err := p.expectIdent()
		if err != nil {
			return "", err
		}
		path += "." + seg
	}
	return path, nil
}

func (p *parser) parseRuleDef() (ast.RuleDef, error) {
	var r ast.RuleDef
	if err := p.expectKeyword("RULE"); err != nil {
		return r, err
	}
	name, err := p.expectIdent()
	if err != nil {
		return r, err
	}
	r.Name = name
	if p.isKeyword("PRIORITY") {
		p.advance()
		n, err := p.expectType(lexer.INT, "integer")
		if err != nil {
			return r, err
		}
		v, _ := strconv.Atoi(n.Value)
		r.Priority = v
	}
	if _, err := p.expectType(lexer.LBRACE, "'{'"); err != nil {
		return r, err
	}
	if err := p.expectKeyword("ON"); err != nil {
		return r, err
	}
	trigger, err := p.parseTrigger()
	if err != nil {
		return r, err
	}
	r.Trigger = trigger
	body, err := p.parseForClause()
	if err != nil {
		return r, err
	}
	r.Body = body
	if _, err := p.expectType(lexer.RBRACE, "'}'"); err != nil {
		return r, err
	}
	return r, nil
}

var triggerTypes = map[string]ast.TriggerType{
	"UPDATE": ast.TriggerUpdate, "CREATE": ast.TriggerCreate,
	"DELETE": ast.TriggerDelete, "LINK": ast.TriggerLink, "SCAN": ast.TriggerScan,
}

func (p *parser) parseTrigger() (ast.Trigger, error) {
	var tr ast.Trigger
	tt, ok := triggerTypes[p.cur().Value]
	if p.cur().Type != lexer.KEYWORD || !ok {
		return tr, p.errorf("expected trigger type, got %q", p.cur().Value)
	}
	p.advance()
	tr.Type = tt
	if _, err := p.expectType(lexer.LPAREN, "'('"); err != nil {
		return tr, err
	}
	entityType, err := p.expectIdent()
	if err != nil {
		return tr, err
	}
	tr.EntityType = entityType
	if p.cur().Type == lexer.DOT {
		p.advance()
		prop, err := p.expectIdent()
		if err != nil {
			return tr, err
		}
		tr.Property = prop
	}
	if _, err := p.expectType(lexer.RPAREN, "')'"); err != nil {
		return tr, err
	}
	return tr, nil
}

func (p *parser) parseForClause() (ast.ForClause, error) {
	var f ast.ForClause
	if err := p.expectKeyword("FOR"); err != nil {
		return f, err
	}
	if _, err := p.expectType(lexer.LPAREN, "'('"); err != nil {
		return f, err
	}
	variable, err := p.expectIdent()
	if err != nil {
		return f, err
	}
	f.Variable = variable
	if _, err := p.expectType(lexer.COLON, "':'"); err != nil {
		return f, err
	}
	entityType, err := p.expectIdent()
	if err != nil {
		return f, err
	}
	f.EntityType = entityType
	if p.isKeyword("WHERE") {
		p.advance()
		cond, err := p.parseExpression()
		if err != nil {
			return f, err
		}
		f.Condition = cond
	}
	if _, err := p.expectType(lexer.RPAREN, "')'"); err != nil {
		return f, err
	}
	if _, err := p.expectType(lexer.LBRACE, "'{'"); err != nil {
		return f, err
	}
	for !p.atEOF() && p.cur().Type != lexer.RBRACE {
		stmt, err := p.parseStatement()
		if err != nil {
			return f, err
		}
		f.Statements = append(f.Statements, stmt)
		if _, isFor := stmt.(*ast.ForClause); !isFor {
			if _, err := p.expectType(lexer.SEMI, "';'"); err != nil {
				return f, err
			}
		}
	}
	if _, err := p.expectType(lexer.RBRACE, "'}'"); err != nil {
		return f, err
	}
	return f, nil
}

func (p *parser) parseStatement() (ast.Statement, error) {
	switch {
	case p.isKeyword("SET"):
		s, err := p.parseSetStatement()
		return s, err
	case p.isKeyword("TRIGGER"):
		return p.parseTriggerStatement()
	case p.isKeyword("FOR"):
		f, err := p.parseForClause()
		if err != nil {
			return nil, err
		}
		return &f, nil
	default:
		return nil, p.errorf("expected SET, TRIGGER, or FOR, got %q", p.cur().Value)
	}
}

func (p *parser) parseTriggerStatement() (ast.TriggerStatement, error) {
	var t ast.TriggerStatement
	if err := p.expectKeyword("TRIGGER"); err != nil {
		return t, err
	}
	entityType, err := p.expectIdent()
	if err != nil {
		return t, err
	}
	if _, err := p.expectType(lexer.DOT, "'.'"); err != nil {
		return t, err
	}
	actionName, err := p.expectIdent()
	if err != nil {
		return t, err
	}
	t.EntityType = entityType
	t.ActionName = actionName
	if err := p.expectKeyword("FOR"); err != nil {
		return t, err
	}
	target, err := p.expectIdent()
	if err != nil {
		return t, err
	}
	t.Target = target
	if p.isKeyword("WITH") {
		p.advance()
		params, err := p.parseObjectLiteral()
		if err != nil {
			return t, err
		}
		t.Params = params
	}
	return t, nil
}

func (p *parser) parseObjectLiteral() (map[string]ast.Expr, error) {
	if _, err := p.expectType(lexer.LBRACE, "'{'"); err != nil {
		return nil, err
	}
	obj := map[string]ast.Expr{}
	for p.cur().Type != lexer.RBRACE {
		if len(obj) > 0 {
			if _, err := p.expectType(lexer.COMMA, "','"); err != nil {
				return nil, err
			}
		}
		key, err := p.expectIdent()
		if err != nil {
			return nil, err
		}
		if _, err := p.expectType(lexer.COLON, "':'"); err != nil {
			return nil, err
		}
		val, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		obj[key] = val
	}
	if _, err := p.expectType(lexer.RBRACE, "'}'"); err != nil {
		return nil, err
	}
	return obj, nil
}
