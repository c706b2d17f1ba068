package lexer

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"cpl/internal/diag"
	"cpl/internal/token"
)

// skipIgnored drops whitespace and comments ahead of the next token.
// /// doc comments are plain line comments here.
func (l *Lexer) skipIgnored() (token.Token, error) {
	for {
		l.skipWhitespace()

		// Line comment: // ...
		if l.ch == '/' && l.peekChar() == '/' {
			l.skipLineComment()
			continue
		}

		// Block comment: /* ... */
		if l.ch == '/' && l.peekChar() == '*' {
			if tok, err := l.skipBlockComment(); err != nil {
				return tok, err
			}
			continue
		}

		return token.Token{}, nil
	}
}

// skipWhitespace ignores spaces, tabs, newlines, carriage returns
func (l *Lexer) skipWhitespace() {
	for !l.atEOF() && (l.ch == ' ' || l.ch == '\t' || l.ch == '\n' || l.ch == '\r') {
		l.readChar()
	}
}

func (l *Lexer) skipLineComment() {
	// Skip leading "//"
	l.readChar()
	l.readChar()
	for !l.atEOF() && l.ch != '\n' {
		l.readChar()
	}
}

// skipBlockComment drops /* ... */. Block comments do not nest.
func (l *Lexer) skipBlockComment() (token.Token, error) {
	m := l.mark()
	// Skip leading "/*"
	l.readChar()
	l.readChar()
	for {
		if l.atEOF() {
			return l.failPrefix(diag.UnterminatedComment, m, 2, "unterminated block comment")
		}
		if l.ch == '*' && l.peekChar() == '/' {
			l.readChar()
			l.readChar()
			return token.Token{}, nil
		}
		l.readChar()
	}
}

// readIdentifier reads [a-zA-Z_][a-zA-Z0-9_]*.
// First char is guaranteed to be a letter/underscore by caller.
func (l *Lexer) readIdentifier() {
	for isLetter(l.ch) || isDigit(l.ch) {
		l.readChar()
	}
}

// readNumber reads an integer or a float with exactly one fractional part.
// Signs are separate tokens.
func (l *Lexer) readNumber(m mark) (token.Token, error) {
	kind := token.INT
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		kind = token.FLOAT
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}

	// 12ab, 1.2.3: swallow the malformed tail and report it as one literal
	if isLetter(l.ch) || (kind == token.FLOAT && l.ch == '.' && isDigit(l.peekChar())) {
		for isLetter(l.ch) || isDigit(l.ch) || (l.ch == '.' && isDigit(l.peekChar())) {
			l.readChar()
		}
		return l.fail(diag.InvalidNumericLiteral, m, "invalid numeric literal %q", l.input[m.offset:l.position])
	}

	tok := l.makeToken(kind, m)
	switch kind {
	case token.INT:
		if _, err := strconv.ParseUint(tok.Lexeme, 10, 64); err != nil {
			return l.fail(diag.InvalidNumericLiteral, m, "integer literal %s does not fit in 64 bits", tok.Lexeme)
		}
	case token.FLOAT:
		if _, err := strconv.ParseFloat(tok.Lexeme, 64); err != nil {
			return l.fail(diag.InvalidNumericLiteral, m, "float literal %s is out of range", tok.Lexeme)
		}
	}
	return tok, nil
}

// readString reads "..." and decodes its escape sequences into Value.
// Strings may span lines. An unknown escape is reported once the closing
// quote is found, so the rest of the literal is not lexed as code.
func (l *Lexer) readString(m mark) (token.Token, error) {
	l.readChar() // opening quote

	var (
		value   strings.Builder
		badEsc  mark
		badText string
	)
	for {
		if l.atEOF() {
			return l.failPrefix(diag.UnterminatedString, m, 1, "unterminated string literal")
		}
		switch l.ch {
		case '"':
			l.readChar()
			if badText != "" {
				return l.failPrefix(diag.InvalidEscapeSequence, badEsc, len(badText), "unknown escape sequence %q", badText)
			}
			tok := l.makeToken(token.STRING, m)
			tok.Value = value.String()
			return tok, nil
		case '\\':
			esc := l.mark()
			l.readChar()
			if l.atEOF() {
				return l.failPrefix(diag.UnterminatedString, m, 1, "unterminated string literal")
			}
			r, ok := unescape(l.ch)
			l.readChar()
			if !ok {
				for !l.atEOF() && !utf8.RuneStart(l.ch) {
					l.readChar()
				}
				if badText == "" {
					badEsc, badText = esc, l.input[esc.offset:l.position]
				}
				continue
			}
			value.WriteByte(r)
		default:
			value.WriteByte(l.ch)
			l.readChar()
		}
	}
}

// readCharLiteral reads exactly one character or one escape between single quotes.
func (l *Lexer) readCharLiteral(m mark) (token.Token, error) {
	l.readChar() // opening quote

	var value string
	switch {
	case l.atEOF() || l.ch == '\n':
		return l.fail(diag.InvalidCharLiteral, m, "unterminated char literal")
	case l.ch == '\'':
		l.readChar()
		return l.fail(diag.InvalidCharLiteral, m, "empty char literal")
	case l.ch == '\\':
		l.readChar()
		if l.atEOF() {
			return l.fail(diag.InvalidCharLiteral, m, "unterminated char literal")
		}
		r, ok := unescape(l.ch)
		if !ok {
			l.skipCharTail()
			return l.fail(diag.InvalidCharLiteral, m, "unknown escape sequence in char literal")
		}
		value = string(r)
		l.readChar()
	default:
		r, size := utf8.DecodeRuneInString(l.input[l.position:])
		if r == utf8.RuneError && size <= 1 {
			l.skipCharTail()
			return l.fail(diag.InvalidCharLiteral, m, "invalid UTF-8 in char literal")
		}
		value = l.input[l.position : l.position+size]
		for i := 0; i < size; i++ {
			l.readChar()
		}
	}

	if !l.match('\'') {
		l.skipCharTail()
		return l.fail(diag.InvalidCharLiteral, m, "char literal must contain exactly one character")
	}
	tok := l.makeToken(token.CHAR, m)
	tok.Value = value
	return tok, nil
}

// skipCharTail moves past a broken char literal: up to and including the
// next quote on the same line.
func (l *Lexer) skipCharTail() {
	for !l.atEOF() && l.ch != '\'' && l.ch != '\n' {
		l.readChar()
	}
	l.match('\'')
}

// unescape maps the character after a backslash to the byte it stands for.
func unescape(ch byte) (byte, bool) {
	switch ch {
	case 'n':
		return '\n', true
	case 't':
		return '\t', true
	case 'r':
		return '\r', true
	case '0':
		return 0, true
	case '\\', '"', '\'':
		return ch, true
	}
	return 0, false
}

// isLetter checks if ch is a letter or underscore
// We allow underscores in identifiers: foo_bar
func isLetter(ch byte) bool {
	return 'a' <= ch && ch <= 'z' || 'A' <= ch && ch <= 'Z' || ch == '_'
}

// isDigit checks if ch is 0-9
func isDigit(ch byte) bool {
	return '0' <= ch && ch <= '9'
}
