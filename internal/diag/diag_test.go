package diag

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpl/internal/token"
)

func TestSourceLine(t *testing.T) {
	src := "let x = 1;\r\nreturn x;\nprint(x);"

	ln, ok := SourceLine(src, 1)
	assert.True(t, ok)
	assert.Equal(t, "let x = 1;", ln)

	ln, ok = SourceLine(src, 3)
	assert.True(t, ok)
	assert.Equal(t, "print(x);", ln)

	_, ok = SourceLine(src, 4)
	assert.False(t, ok)
	_, ok = SourceLine(src, 0)
	assert.False(t, ok)
}

func TestErrorString(t *testing.T) {
	err := &Error{
		Kind:    UnexpectedToken,
		Message: `unexpected ";", expected expression`,
		File:    "main.cpl",
		Span:    token.Span{Line: 1, Column: 9, Offset: 8, Length: 1},
		Lexeme:  ";",
	}
	assert.Equal(t, `main.cpl:1:9: unexpected ";", expected expression`, err.Error())

	err.File = ""
	assert.Equal(t, `1:9: unexpected ";", expected expression`, err.Error())

	var target *Error
	wrapped := fmt.Errorf("compile: %w", err)
	require.True(t, errors.As(wrapped, &target))
	assert.Equal(t, UnexpectedToken, target.Kind)
}

func TestRender(t *testing.T) {
	src := "fn main() {\n    let x = ;\n}\n"
	err := &Error{
		Kind:    UnexpectedToken,
		Message: `unexpected ";", expected expression`,
		File:    "main.cpl",
		Span:    token.Span{Line: 2, Column: 13, Offset: 24, Length: 1},
		Lexeme:  ";",
	}
	want := "main.cpl:2:13: unexpected \";\", expected expression (at \";\")\n" +
		"        let x = ;\n" +
		"                ^\n"
	assert.Equal(t, want, Render(src, err))

	eof := &Error{Kind: UnexpectedEndOfInput, Message: "unexpected end of input", Span: token.Span{Line: 9, Column: 1}}
	assert.Equal(t, "9:1: unexpected end of input\n", Render(src, eof))
}

func TestKindFamilies(t *testing.T) {
	for _, k := range []Kind{UnrecognizedCharacter, UnterminatedString, UnterminatedComment, InvalidCharLiteral, InvalidNumericLiteral, InvalidEscapeSequence} {
		assert.True(t, k.IsLexical(), k.String())
		assert.False(t, k.IsSyntactic(), k.String())
	}
	for _, k := range []Kind{UnexpectedToken, UnexpectedEndOfInput, MissingInitializerOrType, DuplicateDefault, InvalidAssignmentTarget, InvalidCasePattern, TooManyParameters, TooManyArguments} {
		assert.True(t, k.IsSyntactic(), k.String())
		assert.False(t, k.IsLexical(), k.String())
	}
	assert.Equal(t, "Kind(0)", Kind(0).String())
}

func TestList(t *testing.T) {
	a := &Error{Kind: UnexpectedToken, Message: "a", Span: token.Span{Line: 1, Column: 1}}
	b := &Error{Kind: UnexpectedToken, Message: "b", Span: token.Span{Line: 2, Column: 1}}
	assert.Equal(t, "no errors", List{}.Error())
	assert.Equal(t, "1:1: a", List{a}.Error())
	assert.Equal(t, "1:1: a (and 1 more errors)", List{a, b}.Error())
}

func TestKindText(t *testing.T) {
	buf, err := json.Marshal(&Error{Kind: DuplicateDefault, Message: "duplicate default arm"})
	require.NoError(t, err)
	assert.Contains(t, string(buf), `"kind":"DuplicateDefault"`)

	var back Error
	require.NoError(t, json.Unmarshal(buf, &back))
	assert.Equal(t, DuplicateDefault, back.Kind)

	var k Kind
	assert.Error(t, k.UnmarshalText([]byte("Nope")))
	_, err = Kind(0).MarshalText()
	assert.Error(t, err)
}
