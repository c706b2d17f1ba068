package parser

import (
	"cpl/internal/token"
)

// parseTypeAnnotation parses the type name after ":" or "->".
// Type names lex as identifiers; only the builtin numeric types and none are accepted.
func (p *Parser) parseTypeAnnotation() string {
	switch {
	case p.peekTokenIs(token.NONE):
	case p.peekTokenIs(token.IDENT) && token.IsTypeName(p.peekToken.Lexeme):
	default:
		p.peekError("type name")
	}
	p.nextToken()
	return p.curToken.Lexeme
}
