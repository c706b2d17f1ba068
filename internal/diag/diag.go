package diag

import (
	"fmt"
	"strings"

	"cpl/internal/token"
)

// Kind classifies a diagnostic.
// Lexical kinds are reported by the lexer, syntactic kinds by the parser.
type Kind int

const (
	_ Kind = iota

	lexicalBeg
	UnrecognizedCharacter
	UnterminatedString
	UnterminatedComment
	InvalidCharLiteral
	InvalidNumericLiteral
	InvalidEscapeSequence
	lexicalEnd

	syntacticBeg
	UnexpectedToken
	UnexpectedEndOfInput
	MissingInitializerOrType
	DuplicateDefault
	InvalidAssignmentTarget
	InvalidCasePattern
	TooManyParameters
	TooManyArguments
	syntacticEnd
)

var kindNames = map[Kind]string{
	UnrecognizedCharacter: "UnrecognizedCharacter",
	UnterminatedString:    "UnterminatedString",
	UnterminatedComment:   "UnterminatedComment",
	InvalidCharLiteral:    "InvalidCharLiteral",
	InvalidNumericLiteral: "InvalidNumericLiteral",
	InvalidEscapeSequence: "InvalidEscapeSequence",

	UnexpectedToken:          "UnexpectedToken",
	UnexpectedEndOfInput:     "UnexpectedEndOfInput",
	MissingInitializerOrType: "MissingInitializerOrType",
	DuplicateDefault:         "DuplicateDefault",
	InvalidAssignmentTarget:  "InvalidAssignmentTarget",
	InvalidCasePattern:       "InvalidCasePattern",
	TooManyParameters:        "TooManyParameters",
	TooManyArguments:         "TooManyArguments",
}

func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// MarshalText encodes k by name.
func (k Kind) MarshalText() ([]byte, error) {
	if s, ok := kindNames[k]; ok {
		return []byte(s), nil
	}
	return nil, fmt.Errorf("unknown diagnostic kind %d", int(k))
}

// UnmarshalText decodes a kind name produced by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for kind, name := range kindNames {
		if name == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown diagnostic kind %q", text)
}

// IsLexical reports whether k belongs to the lexer's error family.
func (k Kind) IsLexical() bool { return lexicalBeg < k && k < lexicalEnd }

// IsSyntactic reports whether k belongs to the parser's error family.
func (k Kind) IsSyntactic() bool { return syntacticBeg < k && k < syntacticEnd }

// Error is a structured source diagnostic.
// It carries enough data for a caller to render line, column and the offending lexeme.
type Error struct {
	Kind     Kind       `codec:"kind" json:"kind"`
	Message  string     `codec:"message" json:"message"`
	File     string     `codec:"file,omitempty" json:"file,omitempty"`
	Span     token.Span `codec:"span" json:"span"`
	Lexeme   string     `codec:"lexeme,omitempty" json:"lexeme,omitempty"`
	Expected []string   `codec:"expected,omitempty" json:"expected,omitempty"`
	Found    string     `codec:"found,omitempty" json:"found,omitempty"`
}

func (e *Error) Error() string {
	var sb strings.Builder
	if e.File != "" {
		sb.WriteString(e.File)
		sb.WriteByte(':')
	}
	fmt.Fprintf(&sb, "%d:%d: %s", e.Span.Line, e.Span.Column, e.Message)
	return sb.String()
}

// List holds the diagnostics of a unit parsed in recovery mode.
type List []*Error

func (l List) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
}

// SourceLine returns the 1-based line of source without its terminator.
func SourceLine(source string, line int) (string, bool) {
	if line < 1 {
		return "", false
	}
	for i := 1; i < line; i++ {
		idx := strings.IndexByte(source, '\n')
		if idx < 0 {
			return "", false
		}
		source = source[idx+1:]
	}
	if idx := strings.IndexByte(source, '\n'); idx >= 0 {
		source = source[:idx]
	}
	return strings.TrimSuffix(source, "\r"), true
}

// Render formats err against source: the header, the offending line and a caret
// underline of the span. Errors without a locatable line render as the header only.
func Render(source string, err *Error) string {
	var out strings.Builder
	out.WriteString(err.Error())
	if err.Lexeme != "" && err.Kind != UnexpectedEndOfInput {
		fmt.Fprintf(&out, " (at %q)", err.Lexeme)
	}
	out.WriteByte('\n')

	ln, ok := SourceLine(source, err.Span.Line)
	if !ok {
		return out.String()
	}
	ln = strings.ReplaceAll(ln, "\t", " ")
	out.WriteString("    ")
	out.WriteString(ln)
	out.WriteByte('\n')

	col := err.Span.Column
	if col < 1 {
		col = 1
	}
	width := len([]rune(err.Lexeme))
	if err.Lexeme == "" {
		width = err.Span.Length
	}
	if width < 1 {
		width = 1
	}
	if rest := len([]rune(ln)) - (col - 1); width > rest && rest > 0 {
		width = rest
	}
	out.WriteString("    ")
	out.WriteString(strings.Repeat(" ", col-1))
	out.WriteString(strings.Repeat("^", width))
	out.WriteByte('\n')
	return out.String()
}
