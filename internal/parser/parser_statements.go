package parser

import (
	"cpl/internal/ast"
	"cpl/internal/diag"
	"cpl/internal/token"
)

// parseStatement dispatches to specific statement parsers based on token kind.
// curToken is the first token of the statement on entry and its last token
// (; or }) on return.
func (p *Parser) parseStatement() ast.StmtID {
	switch p.curToken.Kind {
	case token.LET:
		return p.parseLetStatement()
	case token.FN:
		return p.parseFunctionStatement()
	case token.IF:
		return p.parseIfStatement()
	case token.SWITCH:
		return p.parseSwitchStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.IMPORT:
		return p.parseImportStatement()
	case token.EXPORT:
		return p.parseExportStatement()
	}

	stmt := p.parseSimpleStatement()
	p.expectPeek(token.SEMICOLON)
	stmt.Span = stmt.Span.To(p.curToken.Span)
	return p.b.AddStmt(stmt)
}

// parseSimpleStatement parses the statements that take no block: break,
// continue, return and expressions. The
// terminating semicolon and adding the node are left to the caller.
func (p *Parser) parseSimpleStatement() ast.Stmt {
	switch p.curToken.Kind {
	case token.BREAK:
		return ast.Node(ast.Break, p.curToken.Span)
	case token.CONTINUE:
		return ast.Node(ast.Continue, p.curToken.Span)
	case token.RETURN:
		return p.parseReturnStatement()
	}

	if p.prefixParseFns[p.curToken.Kind] == nil {
		p.curError("statement")
	}
	stmt := ast.Node(ast.ExprStmt, p.curToken.Span)
	stmt.Value = p.parseExpression(LOWEST)
	stmt.Span = stmt.Span.To(p.span(stmt.Value))
	return stmt
}

// parseLetStatement parses "let name (: type)? (= expr)? ;".
// At least one of the type and the initializer is required.
func (p *Parser) parseLetStatement() ast.StmtID {
	stmt := ast.Node(ast.LetDecl, p.curToken.Span)

	p.expectPeek(token.IDENT)
	name := p.curToken
	stmt.Name = name.Lexeme

	if p.peekTokenIs(token.COLON) {
		p.nextToken()
		stmt.Type = p.parseTypeAnnotation()
	}

	switch {
	case p.peekTokenIs(token.ASSIGN):
		p.nextToken()
		stmt.Value = p.parseExpressionAfter()
	case stmt.Type == "" && p.peekTokenIs(token.SEMICOLON):
		p.fail(p.errorAt(diag.MissingInitializerOrType, name,
			"let %s needs a type annotation or an initializer", name.Lexeme))
	case stmt.Type == "":
		p.peekError(describeKind(token.COLON), describeKind(token.ASSIGN))
	}

	p.expectPeek(token.SEMICOLON)
	stmt.Span = stmt.Span.To(p.curToken.Span)
	return p.b.AddStmt(stmt)
}

// parseFunctionStatement parses "fn name(a: T, ...) (-> R)? { body }".
func (p *Parser) parseFunctionStatement() ast.StmtID {
	stmt := ast.Node(ast.FnDecl, p.curToken.Span)

	p.expectPeek(token.IDENT)
	stmt.Name = p.curToken.Lexeme

	p.expectPeek(token.LPAREN)
	stmt.Params = p.parseFunctionParameters()

	if p.peekTokenIs(token.ARROW) {
		p.nextToken()
		stmt.Type = p.parseTypeAnnotation()
	}

	p.expectPeek(token.LBRACE)
	stmt.Body = p.parseBlockStatement()
	stmt.Span = stmt.Span.To(p.curToken.Span)
	return p.b.AddStmt(stmt)
}

// parseFunctionParameters parses the list after "(" up to and including ")".
func (p *Parser) parseFunctionParameters() []ast.Param {
	var params []ast.Param
	if p.peekTokenIs(token.RPAREN) {
		p.nextToken()
		return params
	}

	for {
		if len(params) == maxListLen {
			p.fail(p.errorAt(diag.TooManyParameters, p.peekToken, "a function can take at most %d parameters", maxListLen))
		}
		p.expectPeek(token.IDENT)
		param := ast.Param{Name: p.curToken.Lexeme, Span: p.curToken.Span}
		p.expectPeek(token.COLON)
		param.Type = p.parseTypeAnnotation()
		param.Span = param.Span.To(p.curToken.Span)
		params = append(params, param)

		if !p.peekTokenIs(token.COMMA) {
			break
		}
		p.nextToken()
	}

	if !p.peekTokenIs(token.RPAREN) {
		p.peekError(describeKind(token.COMMA), describeKind(token.RPAREN))
	}
	p.nextToken()
	return params
}

// parseBlockStatement parses statements from the current "{" to its "}".
func (p *Parser) parseBlockStatement() []ast.StmtID {
	p.depth++
	p.nextToken()

	var body []ast.StmtID
	for !p.curTokenIs(token.RBRACE) {
		if p.curTokenIs(token.EOF) {
			p.curError(describeKind(token.RBRACE))
		}
		body = append(body, p.parseStatement())
		p.nextToken()
	}

	p.depth--
	return body
}

// parseIfStatement parses if/elif/else chains. Branches keep source order.
func (p *Parser) parseIfStatement() ast.StmtID {
	stmt := ast.Node(ast.If, p.curToken.Span)

	for {
		cond := p.parseExpressionAfter()
		p.expectPeek(token.LBRACE)
		body := p.parseBlockStatement()
		stmt.Branches = append(stmt.Branches, ast.Branch{Cond: cond, Body: body})

		if !p.peekTokenIs(token.ELIF) {
			break
		}
		p.nextToken()
	}

	if p.peekTokenIs(token.ELSE) {
		p.nextToken()
		p.expectPeek(token.LBRACE)
		stmt.Else = p.parseBlockStatement()
		stmt.HasElse = true
	}

	stmt.Span = stmt.Span.To(p.curToken.Span)
	return p.b.AddStmt(stmt)
}

// parseSwitchStatement parses
//
//	switch x { case 1 => { ... }, 2 => break, default => { ... } }
//
// The case keyword is optional and _ is the same as default.
// Arms are separated by commas and the last comma may be omitted.
func (p *Parser) parseSwitchStatement() ast.StmtID {
	stmt := ast.Node(ast.Switch, p.curToken.Span)
	stmt.Value = p.parseExpressionAfter()

	p.expectPeek(token.LBRACE)
	p.depth++
	p.nextToken()

	var defaultArm *token.Token
	for !p.curTokenIs(token.RBRACE) {
		if p.curTokenIs(token.EOF) {
			p.curError("switch arm", describeKind(token.RBRACE))
		}

		arm := ast.Case{Pattern: ast.NoExpr, Span: p.curToken.Span}
		if p.curTokenIs(token.CASE) {
			p.nextToken()
		}

		if p.isDefaultMarker() {
			if defaultArm != nil {
				err := p.errorAt(diag.DuplicateDefault, p.curToken,
					"switch already has a default arm at %s", defaultArm.Span)
				p.fail(err)
			}
			tok := p.curToken
			defaultArm = &tok
			arm.Default = true
		} else {
			arm.Pattern = p.parseCasePattern()
		}

		p.expectPeek(token.FAT_ARROW)
		if p.peekTokenIs(token.LBRACE) {
			p.nextToken()
			arm.Body = p.parseBlockStatement()
		} else {
			p.nextToken()
			arm.Body = []ast.StmtID{p.parseArmBody()}
		}
		arm.Span = arm.Span.To(p.curToken.Span)
		stmt.Cases = append(stmt.Cases, arm)

		switch {
		case p.peekTokenIs(token.COMMA):
			p.nextToken()
		case !p.peekTokenIs(token.RBRACE):
			p.peekError(describeKind(token.COMMA), describeKind(token.RBRACE))
		}
		p.nextToken()
	}

	p.depth--
	stmt.Span = stmt.Span.To(p.curToken.Span)
	return p.b.AddStmt(stmt)
}

// parseArmBody parses a switch arm body written without braces. if, while,
// for and switch end at their own "}"; declarations need a block.
func (p *Parser) parseArmBody() ast.StmtID {
	switch p.curToken.Kind {
	case token.IF:
		return p.parseIfStatement()
	case token.WHILE:
		return p.parseWhileStatement()
	case token.FOR:
		return p.parseForStatement()
	case token.SWITCH:
		return p.parseSwitchStatement()
	case token.LET, token.FN, token.IMPORT, token.EXPORT:
		p.curError(describeKind(token.LBRACE), "simple statement")
	}
	return p.b.AddStmt(p.parseSimpleStatement())
}

func (p *Parser) isDefaultMarker() bool {
	return p.curTokenIs(token.DEFAULT) || (p.curTokenIs(token.IDENT) && p.curToken.Lexeme == "_")
}

// parseCasePattern parses a switch pattern. Only literals match by equality,
// so anything else (identifiers, operators, calls) is rejected. A negative
// number is accepted as -literal.
func (p *Parser) parseCasePattern() ast.ExprID {
	id := p.parseExpression(LOWEST)
	e := p.b.Expr(id)

	ok := e.Kind.IsLiteral()
	if e.Kind == ast.Unary && e.Op == token.MINUS && !e.Postfix {
		inner := p.b.Expr(e.Left).Kind
		ok = inner == ast.IntLit || inner == ast.FloatLit
	}
	if !ok {
		err := p.errorAt(diag.InvalidCasePattern, token.Token{Span: e.Span}, "case pattern must be a literal, found %s", e.Kind)
		err.Found = e.Kind.String()
		p.fail(err)
	}
	return id
}

// parseWhileStatement parses "while cond { body }".
func (p *Parser) parseWhileStatement() ast.StmtID {
	stmt := ast.Node(ast.While, p.curToken.Span)
	stmt.Value = p.parseExpressionAfter()

	p.expectPeek(token.LBRACE)
	stmt.Body = p.parseBlockStatement()
	stmt.Span = stmt.Span.To(p.curToken.Span)
	return p.b.AddStmt(stmt)
}

// parseForStatement parses "for i in start to end { body }".
// in is not reserved: an identifier spelled "in" right after the binding is
// taken as the separator, and the separator may be left out.
func (p *Parser) parseForStatement() ast.StmtID {
	stmt := ast.Node(ast.For, p.curToken.Span)

	p.expectPeek(token.IDENT)
	stmt.Name = p.curToken.Lexeme

	if p.peekTokenIs(token.IDENT) && p.peekToken.Lexeme == "in" {
		p.nextToken()
	}

	stmt.Start = p.parseExpressionAfter()
	p.expectPeek(token.TO)
	stmt.End = p.parseExpressionAfter()

	p.expectPeek(token.LBRACE)
	stmt.Body = p.parseBlockStatement()
	stmt.Span = stmt.Span.To(p.curToken.Span)
	return p.b.AddStmt(stmt)
}

// parseReturnStatement parses "return" with an optional value.
func (p *Parser) parseReturnStatement() ast.Stmt {
	stmt := ast.Node(ast.Return, p.curToken.Span)

	switch p.peekToken.Kind {
	case token.SEMICOLON, token.COMMA, token.RBRACE:
		// bare return; a switch arm body may end in , or }
	default:
		stmt.Value = p.parseExpressionAfter()
		stmt.Span = stmt.Span.To(p.span(stmt.Value))
	}
	return stmt
}

// parseImportStatement parses "import a.b.c;".
func (p *Parser) parseImportStatement() ast.StmtID {
	stmt := ast.Node(ast.Import, p.curToken.Span)

	p.expectPeek(token.IDENT)
	stmt.Path = append(stmt.Path, p.curToken.Lexeme)
	for p.peekTokenIs(token.DOT) {
		p.nextToken()
		p.expectPeek(token.IDENT)
		stmt.Path = append(stmt.Path, p.curToken.Lexeme)
	}

	p.expectPeek(token.SEMICOLON)
	stmt.Span = stmt.Span.To(p.curToken.Span)
	return p.b.AddStmt(stmt)
}

// parseExportStatement parses "export name;".
func (p *Parser) parseExportStatement() ast.StmtID {
	stmt := ast.Node(ast.Export, p.curToken.Span)

	p.expectPeek(token.IDENT)
	stmt.Name = p.curToken.Lexeme

	p.expectPeek(token.SEMICOLON)
	stmt.Span = stmt.Span.To(p.curToken.Span)
	return p.b.AddStmt(stmt)
}
