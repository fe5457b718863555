// Package translate turns graph patterns and boolean expressions from the
// DSL into parameterized SQL, grounded on the original Python
// PGQTranslator (translate_for / translate_condition / pgq_translator.py's
// relationship-pattern handling) with one deliberate improvement: every
// value reaches the database as a placeholder argument, never interpolated
// into the query text, and every identifier (bound variable used as a SQL
// alias) is checked against a whitelist before being concatenated into the
// query (spec.md's hardening requirement over the original's string
// formatting).
package translate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/arxos/graphrules/internal/ast"
	"github.com/arxos/graphrules/internal/grerr"
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateIdent guards every bound-variable-derived SQL alias. It is the
// single choke point through which identifiers reach generated SQL text.
func validateIdent(name string) error {
	if !identRe.MatchString(name) {
		return grerr.Invalidf("invalid identifier %q in graph pattern", name)
	}
	return nil
}

// builder accumulates SQL text and its positional arguments, handing out
// $N placeholders as lib/pq expects.
type builder struct {
	sql  strings.Builder
	args []any
}

func (b *builder) param(v any) string {
	b.args = append(b.args, v)
	return fmt.Sprintf("$%d", len(b.args))
}

func (b *builder) write(s string) { b.sql.WriteString(s) }

// scope maps a bound variable name to the SQL alias used for its
// graph_entities row within the current query, mirroring the Python
// translator's var_aliases dict.
type scope struct {
	aliases map[string]string
	next    int
	prefix  string
}

func newScope(prefix string) *scope {
	return &scope{aliases: map[string]string{}, prefix: prefix}
}

func (s *scope) aliasFor(variable string) (string, error) {
	if a, ok := s.aliases[variable]; ok {
		return a, nil
	}
	if err := validateIdent(variable); err != nil {
		return "", err
	}
	a := fmt.Sprintf("%s%d", s.prefix, s.next)
	s.next++
	s.aliases[variable] = a
	return a, nil
}

// Translator compiles AST fragments into SQL. It is stateless and safe
// for concurrent use; all mutable state lives in the per-call builder and
// scope values.
type Translator struct{}

func New() *Translator { return &Translator{} }

// CompiledQuery is ready to hand to graph.Store.ExecuteParameterizedSQL.
type CompiledQuery struct {
	SQL  string
	Args []any
}
