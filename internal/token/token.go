package token

import (
	"fmt"
	"strconv"
)

// Kind identifies the category of a token.
// Kinds are grouped in contiguous ranges so a token can be classified
// as a literal, operator, punctuation mark or keyword with a range check.
type Kind uint8

// Token is one lexical unit of CPL source.
// For example: Token{Kind: INT, Lexeme: "5"} or Token{Kind: SHL_ASSIGN, Lexeme: "<<="}
type Token struct {
	Kind Kind `codec:"kind" json:"kind"`
	// exact source text, quotes included for string and char literals
	Lexeme string `codec:"lexeme" json:"lexeme"`
	// decoded payload of string and char literals
	Value string `codec:"value,omitempty" json:"value,omitempty"`
	Span  Span   `codec:"span" json:"span"`
}

// Span locates a token or node in its compilation unit.
// Line and Column are 1-based; Column counts characters, Length counts bytes.
type Span struct {
	Line   int `codec:"line" json:"line"`
	Column int `codec:"column" json:"column"`
	Offset int `codec:"offset" json:"offset"`
	Length int `codec:"length" json:"length"`
}

// End returns the byte offset just past the span.
func (s Span) End() int { return s.Offset + s.Length }

// To returns a span covering s through other. Both spans must belong to the same unit.
func (s Span) To(other Span) Span {
	if other.End() <= s.Offset {
		return s
	}
	s.Length = other.End() - s.Offset
	return s
}

func (s Span) String() string {
	return strconv.Itoa(s.Line) + ":" + strconv.Itoa(s.Column)
}

const (
	ILLEGAL Kind = iota
	EOF

	literalBeg
	IDENT  // foo
	INT    // 42
	FLOAT  // 3.14
	STRING // "hello"
	CHAR   // 'a'
	literalEnd

	operatorBeg
	PLUS    // +
	MINUS   // -
	STAR    // *
	SLASH   // /
	PERCENT // %

	EQ     // ==
	NOT_EQ // !=
	GT     // >
	LT     // <
	GT_EQ  // >=
	LT_EQ  // <=

	AND  // &&
	OR   // ||
	BANG // !

	BIT_AND // &
	BIT_OR  // |
	BIT_XOR // ^
	SHL     // <<
	SHR     // >>
	TILDE   // ~

	ASSIGN         // =
	PLUS_ASSIGN    // +=
	MINUS_ASSIGN   // -=
	STAR_ASSIGN    // *=
	SLASH_ASSIGN   // /=
	PERCENT_ASSIGN // %=
	AND_ASSIGN     // &=
	OR_ASSIGN      // |=
	XOR_ASSIGN     // ^=
	SHL_ASSIGN     // <<=
	SHR_ASSIGN     // >>=

	INC   // ++
	DEC   // --
	ARROW // ->
	operatorEnd

	punctuationBeg
	LPAREN    // (
	RPAREN    // )
	LBRACE    // {
	RBRACE    // }
	COMMA     // ,
	SEMICOLON // ;
	COLON     // :
	DOT       // .
	FAT_ARROW // =>
	punctuationEnd

	keywordBeg
	LET
	FN
	IF
	ELIF
	ELSE
	SWITCH
	CASE
	DEFAULT
	WHILE
	FOR
	BREAK
	CONTINUE
	RETURN
	NONE
	TO
	IMPORT
	EXPORT
	TRUE
	FALSE
	keywordEnd
)

var names = [...]string{
	ILLEGAL: "ILLEGAL",
	EOF:     "EOF",

	IDENT:  "IDENT",
	INT:    "INT",
	FLOAT:  "FLOAT",
	STRING: "STRING",
	CHAR:   "CHAR",

	PLUS:    "+",
	MINUS:   "-",
	STAR:    "*",
	SLASH:   "/",
	PERCENT: "%",

	EQ:     "==",
	NOT_EQ: "!=",
	GT:     ">",
	LT:     "<",
	GT_EQ:  ">=",
	LT_EQ:  "<=",

	AND:  "&&",
	OR:   "||",
	BANG: "!",

	BIT_AND: "&",
	BIT_OR:  "|",
	BIT_XOR: "^",
	SHL:     "<<",
	SHR:     ">>",
	TILDE:   "~",

	ASSIGN:         "=",
	PLUS_ASSIGN:    "+=",
	MINUS_ASSIGN:   "-=",
	STAR_ASSIGN:    "*=",
	SLASH_ASSIGN:   "/=",
	PERCENT_ASSIGN: "%=",
	AND_ASSIGN:     "&=",
	OR_ASSIGN:      "|=",
	XOR_ASSIGN:     "^=",
	SHL_ASSIGN:     "<<=",
	SHR_ASSIGN:     ">>=",

	INC:   "++",
	DEC:   "--",
	ARROW: "->",

	LPAREN:    "(",
	RPAREN:    ")",
	LBRACE:    "{",
	RBRACE:    "}",
	COMMA:     ",",
	SEMICOLON: ";",
	COLON:     ":",
	DOT:       ".",
	FAT_ARROW: "=>",

	LET:      "let",
	FN:       "fn",
	IF:       "if",
	ELIF:     "elif",
	ELSE:     "else",
	SWITCH:   "switch",
	CASE:     "case",
	DEFAULT:  "default",
	WHILE:    "while",
	FOR:      "for",
	BREAK:    "break",
	CONTINUE: "continue",
	RETURN:   "return",
	NONE:     "none",
	TO:       "to",
	IMPORT:   "import",
	EXPORT:   "export",
	TRUE:     "true",
	FALSE:    "false",
}

// String returns the lexeme for operators, punctuation and keywords,
// and an upper-case class name for everything else.
func (k Kind) String() string {
	if int(k) < len(names) && names[k] != "" {
		return names[k]
	}
	return "Kind(" + strconv.Itoa(int(k)) + ")"
}

// MarshalText encodes k by its String form.
func (k Kind) MarshalText() ([]byte, error) {
	if int(k) < len(names) && names[k] != "" {
		return []byte(names[k]), nil
	}
	return nil, fmt.Errorf("unknown token kind %d", int(k))
}

// UnmarshalText decodes a name produced by MarshalText.
func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range names {
		if name != "" && name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown token kind %q", text)
}

func (k Kind) IsLiteral() bool     { return literalBeg < k && k < literalEnd }
func (k Kind) IsOperator() bool    { return operatorBeg < k && k < operatorEnd }
func (k Kind) IsPunctuation() bool { return punctuationBeg < k && k < punctuationEnd }
func (k Kind) IsKeyword() bool     { return keywordBeg < k && k < keywordEnd }

// IsAssignment reports whether k is = or one of the compound assignment operators.
func (k Kind) IsAssignment() bool { return ASSIGN <= k && k <= SHR_ASSIGN }

// keywords maps reserved words to their kinds.
// true and false are keywords that the parser turns into boolean literals.
var keywords map[string]Kind

// symbols maps every operator and punctuation lexeme to its kind.
var symbols map[string]Kind

func init() {
	keywords = make(map[string]Kind, keywordEnd-keywordBeg)
	for k := keywordBeg + 1; k < keywordEnd; k++ {
		keywords[names[k]] = k
	}
	symbols = make(map[string]Kind)
	for k := operatorBeg + 1; k < operatorEnd; k++ {
		symbols[names[k]] = k
	}
	for k := punctuationBeg + 1; k < punctuationEnd; k++ {
		symbols[names[k]] = k
	}
}

// Lookup returns the keyword kind for ident, or IDENT.
// Matching is exact and case-sensitive: "For" is an identifier.
func Lookup(ident string) Kind {
	if k, ok := keywords[ident]; ok {
		return k
	}
	return IDENT
}

// LookupSymbol returns the operator or punctuation kind spelled by lexeme.
func LookupSymbol(lexeme string) (Kind, bool) {
	k, ok := symbols[lexeme]
	return k, ok
}

// Keywords returns every reserved word.
func Keywords() []string {
	out := make([]string, 0, len(keywords))
	for k := keywordBeg + 1; k < keywordEnd; k++ {
		out = append(out, names[k])
	}
	return out
}

// Symbols returns every operator and punctuation lexeme.
func Symbols() []string {
	out := make([]string, 0, len(symbols))
	for k := operatorBeg + 1; k < operatorEnd; k++ {
		out = append(out, names[k])
	}
	for k := punctuationBeg + 1; k < punctuationEnd; k++ {
		out = append(out, names[k])
	}
	return out
}

// typeNames are the builtin numeric type names. They lex as identifiers.
var typeNames = map[string]bool{
	"i8": true, "i16": true, "i32": true, "i64": true, "i128": true,
	"u8": true, "u16": true, "u32": true, "u64": true, "u128": true,
	"f32": true, "f64": true,
}

// IsTypeName reports whether name is one of the builtin type names.
func IsTypeName(name string) bool {
	return typeNames[name]
}
