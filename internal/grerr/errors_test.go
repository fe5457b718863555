package grerr

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSentinelWrappers(t *testing.T) {
	assert.ErrorIs(t, NotFoundf("entity %d", 5), ErrNotFound)
	assert.ErrorIs(t, Invalidf("bad input %q", "x"), ErrInvalidInput)
	assert.ErrorIs(t, Storef("write failed: %v", "disk full"), ErrStore)
}

func TestParseErrorFormatting(t *testing.T) {
	e := &ParseError{Line: 3, Column: 7, Message: "unexpected token"}
	assert.Equal(t, `line 3:7: unexpected token`, e.Error())

	withExpected := &ParseError{Line: 1, Column: 1, Message: "bad", Expected: []string{"SELECT", "UPDATE"}}
	assert.Contains(t, withExpected.Error(), "expected one of")
	assert.ErrorIs(t, withExpected, ErrInvalidInput)

	var target *ParseError
	assert.True(t, errors.As(error(withExpected), &target))
}
