package parser

import (
	"fmt"
	"strconv"
	"strings"

	"cpl/internal/ast"
	"cpl/internal/diag"
	"cpl/internal/lexer"
	"cpl/internal/token"
)

// precedence levels (lowest to highest)
// These determine operator binding: 5 + 3 * 2 parses as 5 + (3 * 2) because * has higher precedence
const (
	_ int = iota // Start at 0, ignore this
	LOWEST
	ASSIGN      // = += <<= ...
	LOGICOR     // ||
	LOGICAND    // &&
	BITOR       // |
	BITXOR      // ^
	BITAND      // &
	EQUALS      // ==
	LESSGREATER // > or <
	SHIFT       // << or >>
	SUM         // +
	PRODUCT     // *
	PREFIX      // -X, !X or ~X
	POSTFIX     // X++ or myFunction(X)
)

// precedence table maps token kinds to their precedence level
var precedences = map[token.Kind]int{
	token.ASSIGN:         ASSIGN,
	token.PLUS_ASSIGN:    ASSIGN,
	token.MINUS_ASSIGN:   ASSIGN,
	token.STAR_ASSIGN:    ASSIGN,
	token.SLASH_ASSIGN:   ASSIGN,
	token.PERCENT_ASSIGN: ASSIGN,
	token.AND_ASSIGN:     ASSIGN,
	token.OR_ASSIGN:      ASSIGN,
	token.XOR_ASSIGN:     ASSIGN,
	token.SHL_ASSIGN:     ASSIGN,
	token.SHR_ASSIGN:     ASSIGN,
	token.OR:             LOGICOR,
	token.AND:            LOGICAND,
	token.BIT_OR:         BITOR,
	token.BIT_XOR:        BITXOR,
	token.BIT_AND:        BITAND,
	token.EQ:             EQUALS,
	token.NOT_EQ:         EQUALS,
	token.LT:             LESSGREATER,
	token.GT:             LESSGREATER,
	token.LT_EQ:          LESSGREATER,
	token.GT_EQ:          LESSGREATER,
	token.SHL:            SHIFT,
	token.SHR:            SHIFT,
	token.PLUS:           SUM,
	token.MINUS:          SUM,
	token.SLASH:          PRODUCT,
	token.STAR:           PRODUCT,
	token.PERCENT:        PRODUCT,
	token.INC:            POSTFIX,
	token.DEC:            POSTFIX,
	token.LPAREN:         POSTFIX,
}

// TokenSource feeds tokens to the parser. *lexer.Lexer and *lexer.Replay
// are the usual sources.
type TokenSource interface {
	NextToken() (token.Token, error)
	Name() string
}

// maxListLen bounds parameter and argument lists.
const maxListLen = 255

// Parser turns the token stream of one unit into an ast.Tree.
// A Parser is single use: call ParseProgram once.
type Parser struct {
	l TokenSource // The lexer feeding us tokens
	b *ast.Builder

	curToken  token.Token // Current token under examination
	peekToken token.Token // Next Token (for look-ahead)
	curErr    error
	peekErr   error

	// Recover makes ParseProgram skip to the next statement after an error
	// and report every diagnostic as a diag.List instead of stopping at the first.
	Recover bool

	errors  diag.List
	depth   int // open braces of the statement being parsed
	syncing bool

	// Pratt parser tables
	prefixParseFns map[token.Kind]prefixParseFn // Functions for tokens that start expressions
	infixParseFns  map[token.Kind]infixParseFn  // Functions for tokens that appear in the middle
}

// prefixParseFn parses expressions that start with a specific token
// Example: -5, !true, 42, x
type prefixParseFn func() ast.ExprID

// infixParseFn parses expressions where the operator follows a complete operand
// Example: 5 + 3, add(2, 3), i++
// The argument is the left side already parsed
type infixParseFn func(ast.ExprID) ast.ExprID

// bailout unwinds the parser to the statement loop after an error has been recorded.
type bailout struct{}

// New creates a new parser reading from l
func New(l TokenSource) *Parser {
	p := &Parser{
		l: l,
		b: ast.NewBuilder(l.Name()),
	}

	p.prefixParseFns = make(map[token.Kind]prefixParseFn)
	p.infixParseFns = make(map[token.Kind]infixParseFn)

	// Register prefix parsers (tokens that can START an expression)
	p.registerPrefix(token.IDENT, p.parseIdentifier)
	p.registerPrefix(token.INT, p.parseIntegerLiteral)
	p.registerPrefix(token.FLOAT, p.parseFloatLiteral)
	p.registerPrefix(token.STRING, p.parseStringLiteral)
	p.registerPrefix(token.CHAR, p.parseCharLiteral)
	p.registerPrefix(token.TRUE, p.parseBoolean)
	p.registerPrefix(token.FALSE, p.parseBoolean)
	p.registerPrefix(token.NONE, p.parseNoneLiteral)
	p.registerPrefix(token.BANG, p.parsePrefixExpression)
	p.registerPrefix(token.MINUS, p.parsePrefixExpression)
	p.registerPrefix(token.TILDE, p.parsePrefixExpression)
	p.registerPrefix(token.LPAREN, p.parseGroupedExpression)

	// Register infix parsers (tokens that appear AFTER an operand)
	for kind, prec := range precedences {
		switch {
		case prec == ASSIGN:
			p.registerInfix(kind, p.parseAssignExpression)
		case kind == token.INC || kind == token.DEC:
			p.registerInfix(kind, p.parsePostfixExpression)
		case kind == token.LPAREN:
			p.registerInfix(kind, p.parseCallExpression)
		default:
			p.registerInfix(kind, p.parseInfixExpression)
		}
	}

	// Only peekToken is primed here; ParseProgram shifts it into curToken
	// so a lexical error in the first token is reported like any other.
	p.peekToken, p.peekErr = l.NextToken()

	return p
}

// Parse parses one compilation unit in fail-fast mode.
func Parse(name, source string) (*ast.Tree, error) {
	return New(lexer.NewNamed(name, source)).ParseProgram()
}

// registerPrefix adds a prefix parser for a token kind
func (p *Parser) registerPrefix(kind token.Kind, fn prefixParseFn) {
	p.prefixParseFns[kind] = fn
}

// registerInfix adds an infix parser for a token kind
func (p *Parser) registerInfix(kind token.Kind, fn infixParseFn) {
	p.infixParseFns[kind] = fn
}

// nextToken advances to the next token.
// A lexical error attached to the new current token aborts the statement.
func (p *Parser) nextToken() {
	p.curToken, p.curErr = p.peekToken, p.peekErr
	p.peekToken, p.peekErr = p.l.NextToken()

	if err := p.curErr; err != nil {
		p.curErr = nil
		if p.syncing {
			p.record(err)
			return
		}
		p.fail(err)
	}
}

// curTokenIs checks if current token matches
func (p *Parser) curTokenIs(kind token.Kind) bool {
	return p.curToken.Kind == kind
}

// peekTokenIs checks if next token matches
func (p *Parser) peekTokenIs(kind token.Kind) bool {
	return p.peekToken.Kind == kind
}

// expectPeek checks next token and advances if correct, else fails
// Used for mandatory syntax like "let <ident> ="
func (p *Parser) expectPeek(kind token.Kind) {
	if !p.peekTokenIs(kind) {
		p.peekError(describeKind(kind))
	}
	p.nextToken()
}

// peekError fails on the next token, which was expected to be one of expected.
func (p *Parser) peekError(expected ...string) {
	if err := p.peekErr; err != nil {
		// the lexer already knows what is wrong with it
		p.peekErr = nil
		p.fail(err)
	}
	p.fail(p.unexpected(p.peekToken, expected...))
}

// curError fails on the current token.
func (p *Parser) curError(expected ...string) {
	p.fail(p.unexpected(p.curToken, expected...))
}

// peekPrecedence returns precedence of next token
func (p *Parser) peekPrecedence() int {
	if p, ok := precedences[p.peekToken.Kind]; ok {
		return p
	}
	return LOWEST
}

// ParseProgram parses statements until EOF.
// Without Recover the first error is returned as a *diag.Error and the tree is nil.
// With Recover every error is collected into a diag.List, returned together
// with a tree of the statements that parsed.
func (p *Parser) ParseProgram() (*ast.Tree, error) {
	ok := p.guard(p.nextToken)
	for {
		if !ok {
			if !p.Recover {
				break
			}
			p.synchronize()
		}
		if p.curTokenIs(token.EOF) {
			break
		}
		ok = p.guard(func() {
			id := p.parseStatement()
			p.b.AddTop(id)
			p.nextToken()
		})
	}

	tree := p.b.Tree()
	switch {
	case len(p.errors) == 0:
		return tree, nil
	case p.Recover:
		return tree, p.errors
	default:
		return nil, p.errors[0]
	}
}

// guard runs fn and reports whether it finished without a parse error.
func (p *Parser) guard(fn func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, stop := r.(bailout); !stop {
				panic(r)
			}
			ok = false
		}
	}()
	fn()
	return true
}

// synchronize skips to the start of the next top-level statement: past the
// semicolon or closing brace that ends the broken one, or up to a keyword
// that can only begin a statement.
func (p *Parser) synchronize() {
	p.syncing = true
	defer func() { p.syncing = false }()

	depth := p.depth
	p.depth = 0
	for first := true; !p.curTokenIs(token.EOF); first = false {
		switch p.curToken.Kind {
		case token.LBRACE:
			depth++
		case token.RBRACE:
			depth--
			if depth <= 0 {
				p.nextToken()
				if p.curTokenIs(token.SEMICOLON) {
					p.nextToken()
				}
				return
			}
		case token.SEMICOLON:
			if depth <= 0 {
				p.nextToken()
				return
			}
		default:
			if !first && depth <= 0 && startsStatement(p.curToken.Kind) {
				return
			}
		}
		p.nextToken()
	}
}

func startsStatement(kind token.Kind) bool {
	switch kind {
	case token.LET, token.FN, token.IF, token.SWITCH, token.WHILE, token.FOR,
		token.BREAK, token.CONTINUE, token.RETURN, token.IMPORT, token.EXPORT:
		return true
	}
	return false
}

// record keeps err without unwinding.
func (p *Parser) record(err error) {
	de, ok := err.(*diag.Error)
	if !ok {
		de = &diag.Error{Kind: diag.UnexpectedToken, Message: err.Error(), File: p.l.Name()}
	}
	p.errors = append(p.errors, de)
}

// fail records err and unwinds to ParseProgram.
func (p *Parser) fail(err error) {
	p.record(err)
	panic(bailout{})
}

// errorAt builds a diagnostic located at tok.
func (p *Parser) errorAt(kind diag.Kind, tok token.Token, format string, args ...interface{}) *diag.Error {
	return &diag.Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		File:    p.l.Name(),
		Span:    tok.Span,
		Lexeme:  tok.Lexeme,
		Found:   describeToken(tok),
	}
}

// unexpected reports tok where one of expected should have been.
// Running out of input is its own kind so callers can ask for more (the REPL does).
func (p *Parser) unexpected(tok token.Token, expected ...string) *diag.Error {
	want := strings.Join(expected, " or ")
	var err *diag.Error
	if tok.Kind == token.EOF {
		err = p.errorAt(diag.UnexpectedEndOfInput, tok, "unexpected end of input, expected %s", want)
	} else {
		err = p.errorAt(diag.UnexpectedToken, tok, "expected %s, found %s", want, describeToken(tok))
	}
	err.Expected = expected
	return err
}

func describeKind(kind token.Kind) string {
	switch kind {
	case token.IDENT:
		return "identifier"
	case token.EOF:
		return "end of input"
	}
	return strconv.Quote(kind.String())
}

func describeToken(tok token.Token) string {
	switch tok.Kind {
	case token.IDENT:
		return "identifier " + tok.Lexeme
	case token.INT, token.FLOAT:
		return "number " + tok.Lexeme
	case token.STRING:
		return "string " + tok.Lexeme
	case token.CHAR:
		return "char " + tok.Lexeme
	case token.EOF:
		return "end of input"
	case token.ILLEGAL:
		return strconv.Quote(tok.Lexeme)
	}
	return strconv.Quote(tok.Kind.String())
}
