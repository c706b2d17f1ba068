package ast

// Visitor receives nodes during Walk. Either callback may be nil.
// Returning false skips the children of the node just visited.
type Visitor struct {
	Stmt func(id StmtID, s Stmt) bool
	Expr func(id ExprID, e Expr) bool
}

// Walk visits every top-level statement and its descendants in pre-order,
// in source order.
func Walk(t *Tree, v Visitor) {
	w := walker{t: t, v: v}
	w.stmts(t.Top)
}

type walker struct {
	t *Tree
	v Visitor
}

func (w *walker) stmts(ids []StmtID) {
	for _, id := range ids {
		w.stmt(id)
	}
}

func (w *walker) stmt(id StmtID) {
	s := w.t.Stmts[id]
	if w.v.Stmt != nil && !w.v.Stmt(id, s) {
		return
	}

	switch s.Kind {
	case LetDecl, Return, ExprStmt:
		w.expr(s.Value)
	case FnDecl:
		w.stmts(s.Body)
	case If:
		for _, br := range s.Branches {
			w.expr(br.Cond)
			w.stmts(br.Body)
		}
		w.stmts(s.Else)
	case Switch:
		w.expr(s.Value)
		for _, c := range s.Cases {
			w.expr(c.Pattern)
			w.stmts(c.Body)
		}
	case While:
		w.expr(s.Value)
		w.stmts(s.Body)
	case For:
		w.expr(s.Start)
		w.expr(s.End)
		w.stmts(s.Body)
	}
}

func (w *walker) expr(id ExprID) {
	if id == NoExpr {
		return
	}
	e := w.t.Exprs[id]
	if w.v.Expr != nil && !w.v.Expr(id, e) {
		return
	}

	switch e.Kind {
	case Binary, Assign:
		w.expr(e.Left)
		w.expr(e.Right)
	case Unary, Grouping:
		w.expr(e.Left)
	case Call:
		w.expr(e.Left)
		for _, arg := range e.Args {
			w.expr(arg)
		}
	}
}
