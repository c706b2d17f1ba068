package driver

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"cpl/internal/ast"
	"cpl/internal/diag"
	"cpl/internal/lexer"
	"cpl/internal/parser"
	"cpl/internal/token"
)

var (
	// logger instance
	log = logrus.New()
)

// SetLogLevelString changes global module log level.
func SetLogLevelString(level string) error {
	ll, err := logrus.ParseLevel(level)
	if err != nil {
		return err
	}

	SetLogLevel(ll)
	return nil // OK
}

// SetLogLevel changes global module log level.
func SetLogLevel(level logrus.Level) {
	log.Level = level
}

// SetLogOutput changes the destination of the module log.
func SetLogOutput(w io.Writer) {
	log.Out = w
}

// GetLogLevel gets global module log level.
func GetLogLevel() logrus.Level {
	return log.Level
}

// DefaultExtension is the file extension of CPL sources.
const DefaultExtension = ".cpl"

// Unit is one compilation unit: a name for diagnostics and its source text.
type Unit struct {
	Name   string
	Source string
}

// Load reads a source file. The path must exist, be a regular file
// and carry the ext extension (".cpl" when empty).
func Load(path, ext string) (*Unit, error) {
	if len(ext) == 0 {
		ext = DefaultExtension
	}

	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("file %q does not exist", path)
		}
		return nil, fmt.Errorf("failed to access %q: %s", path, err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("%q is not a file", path)
	}
	if filepath.Ext(path) != ext {
		return nil, fmt.Errorf("file %q must have %q extension", path, ext)
	}

	buf, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %s", path, err)
	}

	return &Unit{Name: path, Source: string(buf)}, nil
}

// Options controls a compilation.
type Options struct {
	// Recover collects every diagnostic instead of stopping at the first.
	Recover bool
}

// Timings are the wall-clock durations of the front-end phases.
type Timings struct {
	Lex   time.Duration `codec:"lex" json:"lex"`
	Parse time.Duration `codec:"parse" json:"parse"`
	Total time.Duration `codec:"total" json:"total"`
}

// Stats counts the nodes reachable from the top level of a tree.
type Stats struct {
	Statements  int `codec:"statements" json:"statements"`
	Expressions int `codec:"expressions" json:"expressions"`
}

// Count walks tree and counts its statements and expressions.
func Count(tree *ast.Tree) Stats {
	var st Stats
	ast.Walk(tree, ast.Visitor{
		Stmt: func(ast.StmtID, ast.Stmt) bool { st.Statements++; return true },
		Expr: func(ast.ExprID, ast.Expr) bool { st.Expressions++; return true },
	})
	return st
}

// Result is the output of Compile. Tree is nil when the unit failed in
// fail-fast mode; in recovery mode it holds the statements that parsed.
type Result struct {
	Unit        *Unit
	Tokens      []token.Token
	Tree        *ast.Tree
	Diagnostics diag.List
	Timings     Timings
	Stats       Stats
}

// Compile tokenizes and parses unit. The returned error is the first
// diagnostic (fail-fast) or the diag.List of all of them (Recover).
func Compile(unit *Unit, opts Options) (*Result, error) {
	res := &Result{Unit: unit}
	start := time.Now()

	toks, lexErr := lexer.Tokenize(unit.Name, unit.Source)
	res.Timings.Lex = time.Since(start)
	res.Tokens = toks

	var src parser.TokenSource
	if lexErr == nil {
		src = lexer.NewReplay(unit.Name, toks)
	} else {
		// rescan lazily so the parser meets the lexical error in place,
		// after any parse error that comes before it
		res.log().WithError(lexErr).Debug("lexing failed")
		src = lexer.NewNamed(unit.Name, unit.Source)
	}

	parseStart := time.Now()
	p := parser.New(src)
	p.Recover = opts.Recover
	tree, err := p.ParseProgram()
	res.Timings.Parse = time.Since(parseStart)
	res.Timings.Total = time.Since(start)
	res.Tree = tree

	if tree != nil {
		res.Stats = Count(tree)
	}

	if err != nil {
		var list diag.List
		if errors.As(err, &list) {
			res.Diagnostics = list
		} else {
			res.Diagnostics = diag.List{asDiag(err)}
		}
		res.log().WithField("diagnostics", len(res.Diagnostics)).Debug("parsing failed")
		return res, err
	}

	res.log().Debug("compiled unit")
	return res, nil // OK
}

// CompileFile loads and compiles one file.
func CompileFile(path, ext string, opts Options) (*Result, error) {
	unit, err := Load(path, ext)
	if err != nil {
		return nil, err
	}
	return Compile(unit, opts)
}

func (res *Result) log() *logrus.Entry {
	return log.WithFields(map[string]interface{}{
		"unit":       res.Unit.Name,
		"tokens":     len(res.Tokens),
		"statements": res.Stats.Statements,
		"lex":        res.Timings.Lex,
		"parse":      res.Timings.Parse,
		"total":      res.Timings.Total,
	})
}

func asDiag(err error) *diag.Error {
	var de *diag.Error
	if errors.As(err, &de) {
		return de
	}
	return &diag.Error{Kind: diag.UnexpectedToken, Message: err.Error()}
}

// Render formats every diagnostic of the result against its source.
func (res *Result) Render() string {
	var out []byte
	for _, d := range res.Diagnostics {
		out = append(out, diag.Render(res.Unit.Source, d)...)
	}
	return string(out)
}
