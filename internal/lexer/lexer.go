package lexer

import (
	"fmt"
	"iter"
	"unicode/utf8"

	"cpl/internal/diag"
	"cpl/internal/token"
)

// Lexer holds the state while tokenizing one compilation unit.
// It reads byte by byte, like a tape reader, and never moves backwards.
type Lexer struct {
	name         string // unit name used in diagnostics
	input        string // the source code
	position     int    // current position in input (points to current char)
	readPosition int    // current reading position (after current char)
	ch           byte   // current character under examination
	line         int    // line of ch, 1-based
	column       int    // column of ch in characters, 1-based
}

// mark remembers where a token starts.
type mark struct {
	offset int
	line   int
	column int
}

// New creates a new Lexer for an unnamed input.
func New(input string) *Lexer {
	return NewNamed("", input)
}

// NewNamed creates a new Lexer whose diagnostics carry name.
func NewNamed(name, input string) *Lexer {
	l := &Lexer{name: name, input: input, line: 1}
	l.readChar() // Initialize with first character
	return l
}

// Name returns the unit name given to NewNamed.
func (l *Lexer) Name() string { return l.name }

// readChar advances to the next character.
// Newlines bump the line counter once they are left behind; UTF-8
// continuation bytes do not advance the column.
func (l *Lexer) readChar() {
	if l.readPosition > len(l.input) {
		return // already parked on EOF
	}
	if l.ch == '\n' {
		l.line++
		l.column = 0
	}
	l.position = l.readPosition
	l.readPosition++
	if l.position >= len(l.input) {
		l.ch = 0
		l.column++
		return
	}
	l.ch = l.input[l.position]
	if utf8.RuneStart(l.ch) {
		l.column++
	}
}

// peekChar looks at the next character without consuming it.
func (l *Lexer) peekChar() byte {
	if l.readPosition >= len(l.input) {
		return 0
	}
	return l.input[l.readPosition]
}

func (l *Lexer) atEOF() bool {
	return l.position >= len(l.input)
}

// match consumes the current character if it is ch.
func (l *Lexer) match(ch byte) bool {
	if l.atEOF() || l.ch != ch {
		return false
	}
	l.readChar()
	return true
}

func (l *Lexer) mark() mark {
	return mark{offset: l.position, line: l.line, column: l.column}
}

func (l *Lexer) span(m mark) token.Span {
	end := l.position
	if end > len(l.input) {
		end = len(l.input)
	}
	return token.Span{Line: m.line, Column: m.column, Offset: m.offset, Length: end - m.offset}
}

func (l *Lexer) makeToken(kind token.Kind, m mark) token.Token {
	sp := l.span(m)
	return token.Token{Kind: kind, Lexeme: l.input[sp.Offset:sp.End()], Span: sp}
}

// fail builds the diagnostic for the text scanned since m and an ILLEGAL token
// covering the same text.
func (l *Lexer) fail(kind diag.Kind, m mark, format string, args ...interface{}) (token.Token, error) {
	tok := l.makeToken(token.ILLEGAL, m)
	return tok, &diag.Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		File:    l.name,
		Span:    tok.Span,
		Lexeme:  tok.Lexeme,
	}
}

// failPrefix is fail with the reported span cut down to the first n bytes,
// e.g. the opening quote of a string that runs to end of input.
func (l *Lexer) failPrefix(kind diag.Kind, m mark, n int, format string, args ...interface{}) (token.Token, error) {
	tok, err := l.fail(kind, m, format, args...)
	if de, ok := err.(*diag.Error); ok && n < de.Span.Length {
		de.Span.Length = n
		de.Lexeme = de.Lexeme[:n]
	}
	return tok, err
}

// NextToken returns the next token from input.
// Once the input is exhausted every call returns EOF.
func (l *Lexer) NextToken() (token.Token, error) {
	if tok, err := l.skipIgnored(); err != nil {
		return tok, err
	}

	m := l.mark()
	if l.atEOF() {
		return token.Token{Kind: token.EOF, Span: token.Span{Line: m.line, Column: m.column, Offset: len(l.input)}}, nil
	}

	switch {
	case isLetter(l.ch):
		// Identifier or keyword: let, fn, if vs x, foo, forest
		l.readIdentifier()
		tok := l.makeToken(token.IDENT, m)
		tok.Kind = token.Lookup(tok.Lexeme)
		return tok, nil
	case isDigit(l.ch):
		return l.readNumber(m)
	case l.ch == '"':
		return l.readString(m)
	case l.ch == '\'':
		return l.readCharLiteral(m)
	}

	if kind, ok := l.readSymbol(); ok {
		return l.makeToken(kind, m), nil
	}

	// Unknown character: swallow the rest of its UTF-8 sequence so the
	// reported lexeme is a whole character.
	for !l.atEOF() && !utf8.RuneStart(l.ch) {
		l.readChar()
	}
	return l.fail(diag.UnrecognizedCharacter, m, "unrecognized character %q", l.input[m.offset:l.position])
}

// readSymbol recognizes operators and punctuation using maximal munch:
// <<= wins over <<, which wins over <.
func (l *Lexer) readSymbol() (token.Kind, bool) {
	ch := l.ch
	l.readChar()

	switch ch {
	case '+':
		switch {
		case l.match('+'):
			return token.INC, true
		case l.match('='):
			return token.PLUS_ASSIGN, true
		}
		return token.PLUS, true
	case '-':
		switch {
		case l.match('-'):
			return token.DEC, true
		case l.match('='):
			return token.MINUS_ASSIGN, true
		case l.match('>'):
			return token.ARROW, true
		}
		return token.MINUS, true
	case '*':
		if l.match('=') {
			return token.STAR_ASSIGN, true
		}
		return token.STAR, true
	case '/':
		if l.match('=') {
			return token.SLASH_ASSIGN, true
		}
		return token.SLASH, true
	case '%':
		if l.match('=') {
			return token.PERCENT_ASSIGN, true
		}
		return token.PERCENT, true
	case '=':
		switch {
		case l.match('='):
			return token.EQ, true
		case l.match('>'):
			return token.FAT_ARROW, true
		}
		return token.ASSIGN, true
	case '!':
		if l.match('=') {
			return token.NOT_EQ, true
		}
		return token.BANG, true
	case '<':
		switch {
		case l.match('<'):
			if l.match('=') {
				return token.SHL_ASSIGN, true
			}
			return token.SHL, true
		case l.match('='):
			return token.LT_EQ, true
		}
		return token.LT, true
	case '>':
		switch {
		case l.match('>'):
			if l.match('=') {
				return token.SHR_ASSIGN, true
			}
			return token.SHR, true
		case l.match('='):
			return token.GT_EQ, true
		}
		return token.GT, true
	case '&':
		switch {
		case l.match('&'):
			return token.AND, true
		case l.match('='):
			return token.AND_ASSIGN, true
		}
		return token.BIT_AND, true
	case '|':
		switch {
		case l.match('|'):
			return token.OR, true
		case l.match('='):
			return token.OR_ASSIGN, true
		}
		return token.BIT_OR, true
	case '^':
		if l.match('=') {
			return token.XOR_ASSIGN, true
		}
		return token.BIT_XOR, true
	case '~':
		return token.TILDE, true
	case '(':
		return token.LPAREN, true
	case ')':
		return token.RPAREN, true
	case '{':
		return token.LBRACE, true
	case '}':
		return token.RBRACE, true
	case ',':
		return token.COMMA, true
	case ';':
		return token.SEMICOLON, true
	case ':':
		return token.COLON, true
	case '.':
		return token.DOT, true
	}
	return token.ILLEGAL, false
}

// All returns the token stream as a lazy sequence.
// The sequence ends after EOF or after the first error.
func (l *Lexer) All() iter.Seq2[token.Token, error] {
	return func(yield func(token.Token, error) bool) {
		for {
			tok, err := l.NextToken()
			if !yield(tok, err) {
				return
			}
			if err != nil || tok.Kind == token.EOF {
				return
			}
		}
	}
}

// Tokenize scans the whole input. The returned stream always ends with
// exactly one EOF token; on failure no tokens are returned.
func Tokenize(name, input string) ([]token.Token, error) {
	var tokens []token.Token
	for tok, err := range NewNamed(name, input).All() {
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}
	return tokens, nil
}

// Replay serves an already scanned token stream, such as the output of
// Tokenize, with the same interface as a Lexer.
type Replay struct {
	name   string
	tokens []token.Token
	pos    int
}

// NewReplay returns a source over tokens. A stream that does not end in EOF
// behaves as if it did.
func NewReplay(name string, tokens []token.Token) *Replay {
	return &Replay{name: name, tokens: tokens}
}

// Name returns the unit name given to NewReplay.
func (r *Replay) Name() string { return r.name }

// NextToken returns the next stored token, then EOF forever.
func (r *Replay) NextToken() (token.Token, error) {
	if r.pos < len(r.tokens) {
		tok := r.tokens[r.pos]
		if tok.Kind != token.EOF {
			r.pos++
		}
		return tok, nil
	}
	eof := token.Token{Kind: token.EOF}
	if n := len(r.tokens); n > 0 {
		last := r.tokens[n-1]
		eof.Span = token.Span{
			Line:   last.Span.Line,
			Column: last.Span.Column + utf8.RuneCountInString(last.Lexeme),
			Offset: last.Span.End(),
		}
	}
	return eof, nil
}
