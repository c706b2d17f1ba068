package parser

import (
	"strconv"

	"cpl/internal/ast"
	"cpl/internal/diag"
	"cpl/internal/token"
)

func (p *Parser) parseExpression(precedence int) ast.ExprID {
	// First, find a prefix parser for current token
	// This handles: literals, identifiers, prefix operators (! - ~), grouped expressions
	prefix := p.prefixParseFns[p.curToken.Kind]
	if prefix == nil {
		p.curError("expression")
	}
	leftExp := prefix()

	// While next token is an operator with higher precedence than ours,
	// consume it and build the expression tree
	for !p.peekTokenIs(token.SEMICOLON) && precedence < p.peekPrecedence() {
		infix := p.infixParseFns[p.peekToken.Kind]
		if infix == nil {
			return leftExp
		}

		p.nextToken()            // Advance to the operator
		leftExp = infix(leftExp) // Parse with left side already known
	}

	return leftExp
}

// parseExpressionAfter advances past the current token and parses an expression.
func (p *Parser) parseExpressionAfter() ast.ExprID {
	if p.peekErr == nil && p.prefixParseFns[p.peekToken.Kind] == nil {
		p.peekError("expression")
	}
	p.nextToken()
	return p.parseExpression(LOWEST)
}

func (p *Parser) leaf(kind ast.ExprKind) ast.Expr {
	return ast.Leaf(kind, p.curToken.Span)
}

func (p *Parser) span(id ast.ExprID) token.Span {
	return p.b.Expr(id).Span
}

// parseIdentifier parses a variable name
func (p *Parser) parseIdentifier() ast.ExprID {
	e := p.leaf(ast.Ident)
	e.Text = p.curToken.Lexeme
	return p.b.AddExpr(e)
}

// parseIntegerLiteral parses a number
func (p *Parser) parseIntegerLiteral() ast.ExprID {
	value, err := strconv.ParseUint(p.curToken.Lexeme, 10, 64)
	if err != nil {
		p.fail(p.errorAt(diag.InvalidNumericLiteral, p.curToken, "could not parse %q as integer", p.curToken.Lexeme))
	}
	e := p.leaf(ast.IntLit)
	e.Text, e.Int = p.curToken.Lexeme, value
	return p.b.AddExpr(e)
}

func (p *Parser) parseFloatLiteral() ast.ExprID {
	value, err := strconv.ParseFloat(p.curToken.Lexeme, 64)
	if err != nil {
		p.fail(p.errorAt(diag.InvalidNumericLiteral, p.curToken, "could not parse %q as float", p.curToken.Lexeme))
	}
	e := p.leaf(ast.FloatLit)
	e.Text, e.Float = p.curToken.Lexeme, value
	return p.b.AddExpr(e)
}

func (p *Parser) parseStringLiteral() ast.ExprID {
	e := p.leaf(ast.StringLit)
	e.Text = p.curToken.Value
	return p.b.AddExpr(e)
}

func (p *Parser) parseCharLiteral() ast.ExprID {
	e := p.leaf(ast.CharLit)
	e.Text = p.curToken.Value
	return p.b.AddExpr(e)
}

func (p *Parser) parseBoolean() ast.ExprID {
	e := p.leaf(ast.BoolLit)
	e.Bool = p.curTokenIs(token.TRUE)
	return p.b.AddExpr(e)
}

func (p *Parser) parseNoneLiteral() ast.ExprID {
	return p.b.AddExpr(p.leaf(ast.NoneLit))
}

// parsePrefixExpression parses ! - ~ applied to an operand.
// The operand binds tighter than any binary operator: -a * b is (-a) * b.
func (p *Parser) parsePrefixExpression() ast.ExprID {
	e := p.leaf(ast.Unary)
	e.Op = p.curToken.Kind

	p.nextToken()
	e.Left = p.parseExpression(PREFIX)
	e.Span = e.Span.To(p.span(e.Left))
	return p.b.AddExpr(e)
}

func (p *Parser) parseGroupedExpression() ast.ExprID {
	e := p.leaf(ast.Grouping)
	e.Left = p.parseExpressionAfter()
	p.expectPeek(token.RPAREN)
	e.Span = e.Span.To(p.curToken.Span)
	return p.b.AddExpr(e)
}

// parseInfixExpression parses a left-associative binary operator
func (p *Parser) parseInfixExpression(left ast.ExprID) ast.ExprID {
	e := ast.Leaf(ast.Binary, p.span(left))
	e.Op = p.curToken.Kind
	e.Left = left

	precedence := precedences[e.Op]
	p.nextToken()
	e.Right = p.parseExpression(precedence)
	e.Span = e.Span.To(p.span(e.Right))
	return p.b.AddExpr(e)
}

// parseAssignExpression parses = and the compound assignments.
// They are right-associative: a = b = c is a = (b = c).
func (p *Parser) parseAssignExpression(target ast.ExprID) ast.ExprID {
	op := p.curToken
	p.checkTarget(target, op)

	e := ast.Leaf(ast.Assign, p.span(target))
	e.Op = op.Kind
	e.Left = target

	p.nextToken()
	e.Right = p.parseExpression(ASSIGN - 1)
	e.Span = e.Span.To(p.span(e.Right))
	return p.b.AddExpr(e)
}

// parsePostfixExpression parses x++ and x--.
func (p *Parser) parsePostfixExpression(operand ast.ExprID) ast.ExprID {
	p.checkTarget(operand, p.curToken)

	e := ast.Leaf(ast.Unary, p.span(operand))
	e.Op = p.curToken.Kind
	e.Postfix = true
	e.Left = operand
	e.Span = e.Span.To(p.curToken.Span)
	return p.b.AddExpr(e)
}

// checkTarget rejects anything but a plain identifier on the left of op.
func (p *Parser) checkTarget(target ast.ExprID, op token.Token) {
	e := p.b.Expr(target)
	if e.Kind == ast.Ident {
		return
	}
	tok := token.Token{Kind: op.Kind, Lexeme: op.Lexeme, Span: e.Span}
	err := p.errorAt(diag.InvalidAssignmentTarget, tok, "cannot apply %s to %s, the target must be an identifier", op.Lexeme, e.Kind)
	err.Lexeme = ""
	p.fail(err)
}

// parseCallExpression parses the argument list after a callee
func (p *Parser) parseCallExpression(callee ast.ExprID) ast.ExprID {
	e := ast.Leaf(ast.Call, p.span(callee))
	e.Left = callee
	e.Args = p.parseExpressionList(token.RPAREN)
	e.Span = e.Span.To(p.curToken.Span)
	return p.b.AddExpr(e)
}

// parseExpressionList parses comma separated expressions up to end.
// curToken is the opening token on entry and end on return.
func (p *Parser) parseExpressionList(end token.Kind) []ast.ExprID {
	var list []ast.ExprID
	if p.peekTokenIs(end) {
		p.nextToken()
		return list
	}

	for {
		if len(list) == maxListLen {
			p.fail(p.errorAt(diag.TooManyArguments, p.peekToken, "a call can pass at most %d arguments", maxListLen))
		}
		list = append(list, p.parseExpressionAfter())
		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}

	if !p.peekTokenIs(end) {
		p.peekError(describeKind(token.COMMA), describeKind(end))
	}
	p.nextToken()
	return list
}
