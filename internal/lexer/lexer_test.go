package lexer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lexAll(t *testing.T, src string) []Token {
	t.Helper()
	l := New(src)
	var toks []Token
	for {
		tok, err := l.Next()
		require.NoError(t, err)
		toks = append(toks, tok)
		if tok.Type == EOF {
			break
		}
	}
	return toks
}

func TestLexerPunctuationAndArrows(t *testing.T) {
	toks := lexAll(t, "{ } ( ) [ ] , ; : . ? -> <- -")
	types := make([]TokenType, 0, len(toks))
	for _, tok := range toks {
		types = append(types, tok.Type)
	}
	assert.Equal(t, []TokenType{
		LBRACE, RBRACE, LPAREN, RPAREN, LBRACKET, RBRACKET,
		COMMA, SEMI, COLON, DOT, QUESTION, ARROW_TO, ARROW_FROM, DASH, EOF,
	}, types)
}

func TestLexerOperators(t *testing.T) {
	toks := lexAll(t, "== != >= <= = > <")
	var values []string
	for _, tok := range toks {
		if tok.Type == EOF {
			continue
		}
		values = append(values, tok.Value)
	}
	assert.Equal(t, []string{"==", "!=", ">=", "<=", "=", ">", "<"}, values)
	assert.Equal(t, ASSIGN, toks[4].Type)
}

func TestLexerKeywordsVsIdentifiers(t *testing.T) {
	toks := lexAll(t, "RULE po_total EXISTS mgr")
	require.Len(t, toks, 5)
	assert.Equal(t, KEYWORD, toks[0].Type)
	assert.Equal(t, IDENT, toks[1].Type)
	assert.Equal(t, KEYWORD, toks[2].Type)
	assert.Equal(t, IDENT, toks[3].Type)
	assert.True(t, toks[0].IsKeyword("RULE"))
	assert.False(t, toks[1].IsKeyword("RULE"))
}

func TestLexerStringEscapes(t *testing.T) {
	toks := lexAll(t, `"a\nb\t\"c\""`)
	require.Len(t, toks, 2)
	assert.Equal(t, STRING, toks[0].Type)
	assert.Equal(t, "a\nb\t\"c\"", toks[0].Value)
}

func TestLexerUnterminatedString(t *testing.T) {
	l := New(`"unterminated`)
	_, err := l.Next()
	assert.Error(t, err)
}

func TestLexerNumbers(t *testing.T) {
	toks := lexAll(t, "42 3.14 0")
	require.Len(t, toks, 4)
	assert.Equal(t, INT, toks[0].Type)
	assert.Equal(t, "42", toks[0].Value)
	assert.Equal(t, FLOAT, toks[1].Type)
	assert.Equal(t, "3.14", toks[1].Value)
	assert.Equal(t, INT, toks[2].Type)
}

func TestLexerCommentsAndWhitespace(t *testing.T) {
	toks := lexAll(t, "RULE // trailing comment\n  po_total")
	require.Len(t, toks, 3)
	assert.Equal(t, KEYWORD, toks[0].Type)
	assert.Equal(t, IDENT, toks[1].Type)
	assert.Equal(t, 2, toks[1].Line)
}

func TestLexerUnexpectedCharacter(t *testing.T) {
	l := New("@")
	_, err := l.Next()
	assert.Error(t, err)
}
