package ast

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpl/internal/token"
)

func at(col int) token.Span { return token.Span{Line: 1, Column: col, Offset: col - 1, Length: 1} }

func ident(b *Builder, name string) ExprID {
	e := Leaf(Ident, at(1))
	e.Text = name
	return b.AddExpr(e)
}

func intLit(b *Builder, text string, v uint64) ExprID {
	e := Leaf(IntLit, at(1))
	e.Text, e.Int = text, v
	return b.AddExpr(e)
}

func binary(b *Builder, op token.Kind, l, r ExprID) ExprID {
	e := Leaf(Binary, at(1))
	e.Op, e.Left, e.Right = op, l, r
	return b.AddExpr(e)
}

// sample builds:
//
//	let x: i32 = 1 + 2 * 3;
//	fn add(a: i32, b: i32) -> i32 { return a + b; }
//	if x { x += 1; } elif y { } else { return; }
//	switch x { case 1 => { break; }, default => {}, }
//	for i in 0 to 10 { print(i); }
//	import std.io;
//	export add;
func sample() *Tree {
	b := NewBuilder("sample.cpl")

	let := Node(LetDecl, at(1))
	let.Name, let.Type = "x", "i32"
	let.Value = binary(b, token.PLUS, intLit(b, "1", 1), binary(b, token.STAR, intLit(b, "2", 2), intLit(b, "3", 3)))
	b.AddTop(b.AddStmt(let))

	ret := Node(Return, at(1))
	ret.Value = binary(b, token.PLUS, ident(b, "a"), ident(b, "b"))
	fn := Node(FnDecl, at(1))
	fn.Name, fn.Type = "add", "i32"
	fn.Params = []Param{{Name: "a", Type: "i32"}, {Name: "b", Type: "i32"}}
	fn.Body = []StmtID{b.AddStmt(ret)}
	b.AddTop(b.AddStmt(fn))

	inc := Leaf(Assign, at(1))
	inc.Op, inc.Left, inc.Right = token.PLUS_ASSIGN, ident(b, "x"), intLit(b, "1", 1)
	incStmt := Node(ExprStmt, at(1))
	incStmt.Value = b.AddExpr(inc)
	ifs := Node(If, at(1))
	ifs.Branches = []Branch{
		{Cond: ident(b, "x"), Body: []StmtID{b.AddStmt(incStmt)}},
		{Cond: ident(b, "y")},
	}
	ifs.Else = []StmtID{b.AddStmt(Node(Return, at(1)))}
	ifs.HasElse = true
	b.AddTop(b.AddStmt(ifs))

	sw := Node(Switch, at(1))
	sw.Value = ident(b, "x")
	sw.Cases = []Case{
		{Pattern: intLit(b, "1", 1), Body: []StmtID{b.AddStmt(Node(Break, at(1)))}},
		{Pattern: NoExpr, Default: true},
	}
	b.AddTop(b.AddStmt(sw))

	call := Leaf(Call, at(1))
	call.Left = ident(b, "print")
	call.Args = []ExprID{ident(b, "i")}
	callStmt := Node(ExprStmt, at(1))
	callStmt.Value = b.AddExpr(call)
	loop := Node(For, at(1))
	loop.Name = "i"
	loop.Start, loop.End = intLit(b, "0", 0), intLit(b, "10", 10)
	loop.Body = []StmtID{b.AddStmt(callStmt)}
	b.AddTop(b.AddStmt(loop))

	imp := Node(Import, at(1))
	imp.Path = []string{"std", "io"}
	b.AddTop(b.AddStmt(imp))

	exp := Node(Export, at(1))
	exp.Name = "add"
	b.AddTop(b.AddStmt(exp))

	return b.Tree()
}

const sampleSource = `let x: i32 = 1 + 2 * 3;
fn add(a: i32, b: i32) -> i32 {
    return a + b;
}
if x {
    x += 1;
} elif y {} else {
    return;
}
switch x {
    case 1 => {
        break;
    },
    default => {},
}
for i in 0 to 10 {
    print(i);
}
import std.io;
export add;
`

func TestTreeString(t *testing.T) {
	tree := sample()
	assert.Equal(t, sampleSource, tree.String())
	assert.Equal(t, 7, tree.Len())
	assert.Equal(t, "export add;", tree.StmtString(tree.Top[6]))
}

func TestExprString(t *testing.T) {
	tree := sample()
	let := tree.Stmt(tree.Top[0])
	assert.Equal(t, "(1 + (2 * 3))", tree.ExprString(let.Value))
}

func TestUnaryPrinting(t *testing.T) {
	b := NewBuilder("u")
	inner := Leaf(Unary, at(1))
	inner.Op, inner.Left = token.MINUS, ident(b, "x")
	outer := Leaf(Unary, at(1))
	outer.Op, outer.Left = token.MINUS, b.AddExpr(inner)
	neg := b.AddExpr(outer)

	post := Leaf(Unary, at(1))
	post.Op, post.Postfix, post.Left = token.INC, true, ident(b, "i")
	inc := b.AddExpr(post)

	group := Leaf(Grouping, at(1))
	group.Left = binary(b, token.PLUS, ident(b, "a"), ident(b, "b"))
	prod := binary(b, token.STAR, b.AddExpr(group), ident(b, "c"))
	tree := b.Tree()

	assert.Equal(t, "- -x", tree.source(neg))
	assert.Equal(t, "(-(-x))", tree.ExprString(neg))
	assert.Equal(t, "i++", tree.source(inc))
	assert.Equal(t, "(i++)", tree.ExprString(inc))
	assert.Equal(t, "(a + b) * c", tree.source(prod))
	assert.Equal(t, "((a + b) * c)", tree.ExprString(prod))
}

func TestQuote(t *testing.T) {
	tests := []struct {
		in    string
		quote byte
		want  string
	}{
		{"hello", '"', `"hello"`},
		{"a\nb\tc", '"', `"a\nb\tc"`},
		{`say "hi"`, '"', `"say \"hi\""`},
		{"'", '\'', `'\''`},
		{"'", '"', `"'"`},
		{"\\", '\'', `'\\'`},
		{"\x00", '\'', `'\0'`},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Quote(tt.in, tt.quote), "Quote(%q)", tt.in)
	}
}

func TestKindNames(t *testing.T) {
	assert.Equal(t, "Identifier", Ident.String())
	assert.Equal(t, "Assignment", Assign.String())
	assert.Equal(t, "ExprStatement", ExprStmt.String())
	assert.Equal(t, "ExprKind(200)", ExprKind(200).String())
	assert.True(t, NoneLit.IsLiteral())
	assert.False(t, Ident.IsLiteral())
}

func TestWalkOrder(t *testing.T) {
	tree := sample()
	var stmts []StmtKind
	var idents []string
	Walk(tree, Visitor{
		Stmt: func(_ StmtID, s Stmt) bool {
			stmts = append(stmts, s.Kind)
			return true
		},
		Expr: func(_ ExprID, e Expr) bool {
			if e.Kind == Ident {
				idents = append(idents, e.Text)
			}
			return true
		},
	})

	assert.Equal(t, []StmtKind{
		LetDecl, FnDecl, Return, If, ExprStmt, Return, Switch, Break, For, ExprStmt, Import, Export,
	}, stmts)
	assert.Equal(t, []string{"a", "b", "x", "x", "y", "x", "print", "i"}, idents)
}

func TestWalkSkipsChildren(t *testing.T) {
	tree := sample()
	count := 0
	Walk(tree, Visitor{
		Stmt: func(_ StmtID, s Stmt) bool {
			count++
			return s.Kind != FnDecl && s.Kind != If && s.Kind != Switch && s.Kind != For
		},
	})
	assert.Equal(t, 7, count)
}

func TestMsgpackRoundTrip(t *testing.T) {
	tree := sample()
	var buf bytes.Buffer
	require.NoError(t, tree.EncodeMsgpack(&buf))

	got, err := DecodeMsgpack(&buf)
	require.NoError(t, err)
	assert.Equal(t, tree.Name, got.Name)
	assert.Equal(t, tree.String(), got.String())
	assert.Equal(t, len(tree.Exprs), len(got.Exprs))
}

func TestEncodeJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sample().EncodeJSON(&buf))
	out := buf.String()
	assert.Contains(t, out, `"name": "sample.cpl"`)
	assert.Contains(t, out, `"path"`)
}

func TestDecodeMsgpackGarbage(t *testing.T) {
	_, err := DecodeMsgpack(bytes.NewReader([]byte{0xc1}))
	assert.Error(t, err)
}
