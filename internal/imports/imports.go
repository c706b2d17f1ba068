package imports

import (
	"strings"

	"cpl/internal/ast"
	"cpl/internal/token"
)

// StdRoot is the first path segment of standard library modules.
const StdRoot = "std"

// JoinPath renders a dotted module path.
func JoinPath(parts []string) string {
	return strings.Join(parts, ".")
}

// DefaultAlias is the name an import binds when used unqualified:
// the last path segment.
func DefaultAlias(parts []string) string {
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// IsStdPath reports whether parts names a standard library module.
func IsStdPath(parts []string) bool {
	return len(parts) >= 1 && parts[0] == StdRoot
}

// Import is one import statement of a unit.
type Import struct {
	Path  string     `codec:"path" json:"path"`
	Alias string     `codec:"alias" json:"alias"`
	Std   bool       `codec:"std,omitempty" json:"std,omitempty"`
	Span  token.Span `codec:"span" json:"span"`
}

// Export is one export statement of a unit.
type Export struct {
	Name string     `codec:"name" json:"name"`
	Span token.Span `codec:"span" json:"span"`
}

// Summary lists what a unit imports and exports, in source order.
type Summary struct {
	Imports []Import `codec:"imports" json:"imports"`
	Exports []Export `codec:"exports" json:"exports"`
}

// Collect gathers the top-level imports and exports of tree.
// Nothing is resolved; duplicates are kept as written.
func Collect(tree *ast.Tree) Summary {
	var sum Summary
	for _, id := range tree.Top {
		s := tree.Stmt(id)
		switch s.Kind {
		case ast.Import:
			sum.Imports = append(sum.Imports, Import{
				Path:  JoinPath(s.Path),
				Alias: DefaultAlias(s.Path),
				Std:   IsStdPath(s.Path),
				Span:  s.Span,
			})
		case ast.Export:
			sum.Exports = append(sum.Exports, Export{Name: s.Name, Span: s.Span})
		}
	}
	return sum
}

// Nested returns import and export statements that are not at top level,
// which tooling reports as misplaced.
func Nested(tree *ast.Tree) []ast.StmtID {
	top := make(map[ast.StmtID]bool, len(tree.Top))
	for _, id := range tree.Top {
		top[id] = true
	}

	var out []ast.StmtID
	ast.Walk(tree, ast.Visitor{
		Stmt: func(id ast.StmtID, s ast.Stmt) bool {
			if (s.Kind == ast.Import || s.Kind == ast.Export) && !top[id] {
				out = append(out, id)
			}
			return true
		},
	})
	return out
}
