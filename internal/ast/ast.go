package ast

import (
	"fmt"

	"cpl/internal/token"
)

// ExprID addresses an expression in its Tree's arena.
type ExprID int32

// StmtID addresses a statement in its Tree's arena.
type StmtID int32

// NoExpr marks an absent optional expression (let without initializer, bare return).
const NoExpr ExprID = -1

// ExprKind tags the expression variants. The set is closed.
type ExprKind uint8

const (
	BadExpr ExprKind = iota
	IntLit
	FloatLit
	BoolLit
	StringLit
	CharLit
	NoneLit
	Ident
	Binary
	Unary
	Assign
	Call
	Grouping
)

var exprKindNames = [...]string{
	BadExpr:   "BadExpr",
	IntLit:    "IntLit",
	FloatLit:  "FloatLit",
	BoolLit:   "BoolLit",
	StringLit: "StringLit",
	CharLit:   "CharLit",
	NoneLit:   "NoneLit",
	Ident:     "Identifier",
	Binary:    "Binary",
	Unary:     "Unary",
	Assign:    "Assignment",
	Call:      "Call",
	Grouping:  "Grouping",
}

func (k ExprKind) String() string {
	if int(k) < len(exprKindNames) {
		return exprKindNames[k]
	}
	return fmt.Sprintf("ExprKind(%d)", k)
}

// IsLiteral reports whether k is one of the literal variants.
func (k ExprKind) IsLiteral() bool { return IntLit <= k && k <= NoneLit }

// StmtKind tags the statement variants. The set is closed.
type StmtKind uint8

const (
	BadStmt StmtKind = iota
	LetDecl
	FnDecl
	If
	Switch
	While
	For
	Break
	Continue
	Return
	ExprStmt
	Import
	Export
)

var stmtKindNames = [...]string{
	BadStmt:  "BadStmt",
	LetDecl:  "LetDecl",
	FnDecl:   "FnDecl",
	If:       "If",
	Switch:   "Switch",
	While:    "While",
	For:      "For",
	Break:    "Break",
	Continue: "Continue",
	Return:   "Return",
	ExprStmt: "ExprStatement",
	Import:   "Import",
	Export:   "Export",
}

func (k StmtKind) String() string {
	if int(k) < len(stmtKindNames) {
		return stmtKindNames[k]
	}
	return fmt.Sprintf("StmtKind(%d)", k)
}

// Expr is one expression node. Which fields are meaningful depends on Kind:
//
//	IntLit      Text (lexeme), Int
//	FloatLit    Text (lexeme), Float
//	BoolLit     Bool
//	StringLit   Text (decoded value)
//	CharLit     Text (decoded character)
//	NoneLit     -
//	Ident       Text (name)
//	Binary      Op, Left, Right
//	Unary       Op, Left (operand), Postfix for ++ and -- after the operand
//	Assign      Op (= or compound), Left (target), Right (value)
//	Call        Left (callee), Args
//	Grouping    Left (inner)
type Expr struct {
	Kind    ExprKind   `codec:"kind" json:"kind"`
	Span    token.Span `codec:"span" json:"span"`
	Op      token.Kind `codec:"op,omitempty" json:"op,omitempty"`
	Postfix bool       `codec:"postfix,omitempty" json:"postfix,omitempty"`
	Text    string     `codec:"text,omitempty" json:"text,omitempty"`
	Int     uint64     `codec:"int,omitempty" json:"int,omitempty"`
	Float   float64    `codec:"float,omitempty" json:"float,omitempty"`
	Bool    bool       `codec:"bool,omitempty" json:"bool,omitempty"`
	Left    ExprID     `codec:"left" json:"left"`
	Right   ExprID     `codec:"right" json:"right"`
	Args    []ExprID   `codec:"args,omitempty" json:"args,omitempty"`
}

// Param is one function parameter.
type Param struct {
	Name string     `codec:"name" json:"name"`
	Type string     `codec:"type" json:"type"`
	Span token.Span `codec:"span" json:"span"`
}

// Branch is one condition/body pair of an If. The first branch is the
// if itself, later ones are elif branches in source order.
type Branch struct {
	Cond ExprID   `codec:"cond" json:"cond"`
	Body []StmtID `codec:"body" json:"body"`
}

// Case is one switch arm. Default arms have Pattern == NoExpr.
type Case struct {
	Pattern ExprID     `codec:"pattern" json:"pattern"`
	Default bool       `codec:"default,omitempty" json:"default,omitempty"`
	Body    []StmtID   `codec:"body" json:"body"`
	Span    token.Span `codec:"span" json:"span"`
}

// Stmt is one statement node. Which fields are meaningful depends on Kind:
//
//	LetDecl     Name, Type (optional), Value (optional, NoExpr)
//	FnDecl      Name, Params, Type (return type, optional), Body
//	If          Branches, Else, HasElse
//	Switch      Value (scrutinee), Cases
//	While       Value (condition), Body
//	For         Name (binding), Start, End, Body
//	Break       -
//	Continue    -
//	Return      Value (optional, NoExpr)
//	ExprStmt    Value
//	Import      Path
//	Export      Name
type Stmt struct {
	Kind     StmtKind   `codec:"kind" json:"kind"`
	Span     token.Span `codec:"span" json:"span"`
	Name     string     `codec:"name,omitempty" json:"name,omitempty"`
	Type     string     `codec:"type,omitempty" json:"type,omitempty"`
	Value    ExprID     `codec:"value" json:"value"`
	Start    ExprID     `codec:"start" json:"start"`
	End      ExprID     `codec:"end" json:"end"`
	Params   []Param    `codec:"params,omitempty" json:"params,omitempty"`
	Body     []StmtID   `codec:"body,omitempty" json:"body,omitempty"`
	Branches []Branch   `codec:"branches,omitempty" json:"branches,omitempty"`
	Else     []StmtID   `codec:"else,omitempty" json:"else,omitempty"`
	HasElse  bool       `codec:"has_else,omitempty" json:"has_else,omitempty"`
	Cases    []Case     `codec:"cases,omitempty" json:"cases,omitempty"`
	Path     []string   `codec:"path,omitempty" json:"path,omitempty"`
}

// Tree is the AST of one compilation unit.
// Nodes live in two arenas and refer to their children by index, so a Tree
// has no pointers between nodes and can be copied or serialized as is.
// Top lists the top-level statements in source order.
// A Tree is never modified once the parser returns it.
type Tree struct {
	Name  string   `codec:"name" json:"name"`
	Exprs []Expr   `codec:"exprs" json:"exprs"`
	Stmts []Stmt   `codec:"stmts" json:"stmts"`
	Top   []StmtID `codec:"top" json:"top"`
}

// Expr returns a copy of the expression with the given id.
func (t *Tree) Expr(id ExprID) Expr {
	return t.Exprs[id]
}

// Stmt returns a copy of the statement with the given id.
func (t *Tree) Stmt(id StmtID) Stmt {
	return t.Stmts[id]
}

// Len returns the number of top-level statements.
func (t *Tree) Len() int { return len(t.Top) }

// Builder appends nodes to a Tree under construction.
type Builder struct {
	tree *Tree
}

// NewBuilder starts an empty tree for the named unit.
func NewBuilder(name string) *Builder {
	return &Builder{tree: &Tree{Name: name}}
}

// AddExpr stores e and returns its id. Unused child links must be NoExpr.
func (b *Builder) AddExpr(e Expr) ExprID {
	b.tree.Exprs = append(b.tree.Exprs, e)
	return ExprID(len(b.tree.Exprs) - 1)
}

// AddStmt stores s and returns its id. Unused child links must be NoExpr.
func (b *Builder) AddStmt(s Stmt) StmtID {
	b.tree.Stmts = append(b.tree.Stmts, s)
	return StmtID(len(b.tree.Stmts) - 1)
}

// Expr reads back a node that was already added.
func (b *Builder) Expr(id ExprID) Expr {
	return b.tree.Exprs[id]
}

// AddTop appends a top-level statement.
func (b *Builder) AddTop(id StmtID) {
	b.tree.Top = append(b.tree.Top, id)
}

// Tree finishes construction. The builder must not be used afterwards.
func (b *Builder) Tree() *Tree {
	t := b.tree
	b.tree = nil
	return t
}

// Leaf returns an expression of the given kind with no children.
func Leaf(kind ExprKind, span token.Span) Expr {
	return Expr{Kind: kind, Span: span, Left: NoExpr, Right: NoExpr}
}

// Node returns a statement of the given kind with no expression children.
func Node(kind StmtKind, span token.Span) Stmt {
	return Stmt{Kind: kind, Span: span, Value: NoExpr, Start: NoExpr, End: NoExpr}
}
