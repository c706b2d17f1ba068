package ast

import (
	"bytes"
	"strings"
)

// String renders the tree back into canonical CPL source.
// Parsing the result yields a tree of the same shape.
func (t *Tree) String() string {
	var out bytes.Buffer
	for _, id := range t.Top {
		t.writeStmt(&out, id, 0)
	}
	return out.String()
}

// StmtString renders one statement as canonical source.
func (t *Tree) StmtString(id StmtID) string {
	var out bytes.Buffer
	t.writeStmt(&out, id, 0)
	return strings.TrimSuffix(out.String(), "\n")
}

func indent(out *bytes.Buffer, depth int) {
	for i := 0; i < depth; i++ {
		out.WriteString("    ")
	}
}

func (t *Tree) writeBlock(out *bytes.Buffer, body []StmtID, depth int) {
	if len(body) == 0 {
		out.WriteString("{}")
		return
	}
	out.WriteString("{\n")
	for _, id := range body {
		t.writeStmt(out, id, depth+1)
	}
	indent(out, depth)
	out.WriteString("}")
}

func (t *Tree) writeStmt(out *bytes.Buffer, id StmtID, depth int) {
	s := t.Stmts[id]
	indent(out, depth)

	switch s.Kind {
	case LetDecl:
		out.WriteString("let ")
		out.WriteString(s.Name)
		if s.Type != "" {
			out.WriteString(": ")
			out.WriteString(s.Type)
		}
		if s.Value != NoExpr {
			out.WriteString(" = ")
			out.WriteString(t.source(s.Value))
		}
		out.WriteString(";")
	case FnDecl:
		out.WriteString("fn ")
		out.WriteString(s.Name)
		out.WriteString("(")
		for i, p := range s.Params {
			if i > 0 {
				out.WriteString(", ")
			}
			out.WriteString(p.Name + ": " + p.Type)
		}
		out.WriteString(") ")
		if s.Type != "" {
			out.WriteString("-> " + s.Type + " ")
		}
		t.writeBlock(out, s.Body, depth)
	case If:
		for i, br := range s.Branches {
			if i == 0 {
				out.WriteString("if ")
			} else {
				out.WriteString(" elif ")
			}
			out.WriteString(t.source(br.Cond))
			out.WriteString(" ")
			t.writeBlock(out, br.Body, depth)
		}
		if s.HasElse {
			out.WriteString(" else ")
			t.writeBlock(out, s.Else, depth)
		}
	case Switch:
		out.WriteString("switch ")
		out.WriteString(t.source(s.Value))
		out.WriteString(" {\n")
		for _, c := range s.Cases {
			indent(out, depth+1)
			if c.Default {
				out.WriteString("default => ")
			} else {
				out.WriteString("case " + t.source(c.Pattern) + " => ")
			}
			t.writeBlock(out, c.Body, depth+1)
			out.WriteString(",\n")
		}
		indent(out, depth)
		out.WriteString("}")
	case While:
		out.WriteString("while ")
		out.WriteString(t.source(s.Value))
		out.WriteString(" ")
		t.writeBlock(out, s.Body, depth)
	case For:
		out.WriteString("for " + s.Name + " in ")
		out.WriteString(t.source(s.Start))
		out.WriteString(" to ")
		out.WriteString(t.source(s.End))
		out.WriteString(" ")
		t.writeBlock(out, s.Body, depth)
	case Break:
		out.WriteString("break;")
	case Continue:
		out.WriteString("continue;")
	case Return:
		out.WriteString("return")
		if s.Value != NoExpr {
			out.WriteString(" " + t.source(s.Value))
		}
		out.WriteString(";")
	case ExprStmt:
		out.WriteString(t.source(s.Value))
		out.WriteString(";")
	case Import:
		out.WriteString("import " + strings.Join(s.Path, ".") + ";")
	case Export:
		out.WriteString("export " + s.Name + ";")
	default:
		out.WriteString("<" + s.Kind.String() + ">")
	}
	out.WriteString("\n")
}

// source renders an expression as it would be written; only Grouping
// nodes produce parentheses.
func (t *Tree) source(id ExprID) string {
	var out strings.Builder
	t.writeExpr(&out, id, false)
	return out.String()
}

// ExprString renders an expression with every operation parenthesized,
// e.g. 1 + 2 * 3 becomes (1 + (2 * 3)).
func (t *Tree) ExprString(id ExprID) string {
	var out strings.Builder
	t.writeExpr(&out, id, true)
	return out.String()
}

func (t *Tree) writeExpr(out *strings.Builder, id ExprID, explicit bool) {
	if id == NoExpr {
		return
	}
	e := t.Exprs[id]
	lp, rp := "", ""
	if explicit {
		lp, rp = "(", ")"
	}

	switch e.Kind {
	case IntLit, FloatLit, Ident:
		out.WriteString(e.Text)
	case BoolLit:
		if e.Bool {
			out.WriteString("true")
		} else {
			out.WriteString("false")
		}
	case StringLit:
		out.WriteString(Quote(e.Text, '"'))
	case CharLit:
		out.WriteString(Quote(e.Text, '\''))
	case NoneLit:
		out.WriteString("none")
	case Binary, Assign:
		out.WriteString(lp)
		t.writeExpr(out, e.Left, explicit)
		out.WriteString(" " + e.Op.String() + " ")
		t.writeExpr(out, e.Right, explicit)
		out.WriteString(rp)
	case Unary:
		out.WriteString(lp)
		if e.Postfix {
			t.writeExpr(out, e.Left, explicit)
			out.WriteString(e.Op.String())
		} else {
			out.WriteString(e.Op.String())
			// - -x must not print as --x
			if inner := t.Exprs[e.Left]; !explicit && inner.Kind == Unary && !inner.Postfix && inner.Op == e.Op {
				out.WriteString(" ")
			}
			t.writeExpr(out, e.Left, explicit)
		}
		out.WriteString(rp)
	case Call:
		t.writeExpr(out, e.Left, explicit)
		out.WriteString("(")
		for i, arg := range e.Args {
			if i > 0 {
				out.WriteString(", ")
			}
			t.writeExpr(out, arg, explicit)
		}
		out.WriteString(")")
	case Grouping:
		if explicit {
			t.writeExpr(out, e.Left, explicit)
			return
		}
		out.WriteString("(")
		t.writeExpr(out, e.Left, explicit)
		out.WriteString(")")
	default:
		out.WriteString("<" + e.Kind.String() + ">")
	}
}

// Quote renders s as a CPL string or char literal using the escapes the
// lexer understands.
func Quote(s string, quote byte) string {
	var out strings.Builder
	out.WriteByte(quote)
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; ch {
		case '\n':
			out.WriteString(`\n`)
		case '\t':
			out.WriteString(`\t`)
		case '\r':
			out.WriteString(`\r`)
		case 0:
			out.WriteString(`\0`)
		case '\\':
			out.WriteString(`\\`)
		case quote:
			out.WriteByte('\\')
			out.WriteByte(ch)
		default:
			out.WriteByte(ch)
		}
	}
	out.WriteByte(quote)
	return out.String()
}
