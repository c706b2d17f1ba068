package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpl/internal/diag"
	"cpl/internal/output"
	"cpl/internal/token"
)

type result struct {
	code   int
	stdout string
	stderr string
}

func run(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := runCLI(args, strings.NewReader(stdin), &out, &errOut)
	return result{code: code, stdout: out.String(), stderr: errOut.String()}
}

func writeSource(t *testing.T, name, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(data), 0644))
	return path
}

func withSignalContext(t *testing.T, d time.Duration) {
	t.Helper()
	old := signalContext
	signalContext = func() (context.Context, context.CancelFunc) {
		return context.WithTimeout(context.Background(), d)
	}
	t.Cleanup(func() { signalContext = old })
}

func TestRunCLINoArgs(t *testing.T) {
	r := run(t, "")
	assert.Equal(t, exitUsage, r.code)
	assert.Contains(t, r.stderr, "try --help")
}

func TestHelp(t *testing.T) {
	r := run(t, "", "--help")
	assert.Equal(t, exitOK, r.code)
	assert.Contains(t, r.stdout, "usage: cpl")
	for _, cmd := range []string{"tokens", "parse", "check", "repl", "serve"} {
		assert.Contains(t, r.stdout, cmd)
	}
}

func TestMainUsesExitFn(t *testing.T) {
	oldArgs, oldExit := os.Args, exitFn
	defer func() {
		os.Args = oldArgs
		exitFn = oldExit
	}()

	os.Args = []string{"cpl", "--format", "xml", "tokens"}
	got := -1
	exitFn = func(code int) { got = code }
	main()
	assert.Equal(t, exitUsage, got)
}

func TestTokensText(t *testing.T) {
	r := run(t, "let x = 1;", "tokens")
	require.Equal(t, exitOK, r.code, r.stderr)

	lines := strings.Split(strings.TrimSpace(r.stdout), "\n")
	require.Len(t, lines, 6)
	assert.Equal(t, []string{"1:1", "let", "let"}, strings.Fields(lines[0]))
	assert.Equal(t, []string{"1:5", "IDENT", "x"}, strings.Fields(lines[1]))
	assert.Equal(t, []string{"1:9", "INT", "1"}, strings.Fields(lines[3]))
	assert.Equal(t, []string{"1:11", "EOF"}, strings.Fields(lines[5]))
}

func TestTokensLexError(t *testing.T) {
	r := run(t, "let @", "tokens")
	assert.Equal(t, exitDiagnostics, r.code)
	assert.Contains(t, r.stdout, "let")
	assert.Contains(t, r.stderr, `<stdin>:1:5: unrecognized character "@"`)
}

func TestTokensJSON(t *testing.T) {
	r := run(t, `'a' "b"`, "-f", "json", "tokens")
	require.Equal(t, exitOK, r.code, r.stderr)

	var resp output.TokensResponse
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp))
	assert.True(t, resp.OK)
	require.Len(t, resp.Tokens, 3)
	assert.Equal(t, token.CHAR, resp.Tokens[0].Kind)
	assert.Equal(t, "a", resp.Tokens[0].Value)
	assert.Equal(t, token.STRING, resp.Tokens[1].Kind)
}

func TestParseText(t *testing.T) {
	path := writeSource(t, "main.cpl", "let   x:i32=1+2*3 ;\nfn f(){return x;}")
	r := run(t, "", "parse", path)
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Equal(t, "let x: i32 = 1 + 2 * 3;\nfn f() {\n    return x;\n}\n", r.stdout)
	assert.Empty(t, r.stderr)
}

func TestParseDiagnostics(t *testing.T) {
	r := run(t, "let x = ;", "parse")
	assert.Equal(t, exitDiagnostics, r.code)
	assert.Empty(t, r.stdout)
	assert.Equal(t, "<stdin>:1:9: expected expression, found \";\" (at \";\")\n    let x = ;\n            ^\n", r.stderr)
}

func TestParseRecover(t *testing.T) {
	r := run(t, "let a = ;\nlet b = 2;\nlet c = ;\n", "--recover", "parse")
	assert.Equal(t, exitDiagnostics, r.code)
	assert.Equal(t, "let b = 2;\n", r.stdout)
	assert.Equal(t, 2, strings.Count(r.stderr, "expected expression"))
}

func TestParseMsgpack(t *testing.T) {
	r := run(t, "export main;", "-f", "msgpack", "parse")
	require.Equal(t, exitOK, r.code, r.stderr)

	var resp output.ParseResponse
	require.NoError(t, output.Decode(strings.NewReader(r.stdout), "msgpack", &resp))
	assert.True(t, resp.OK)
	require.NotNil(t, resp.AST)
	assert.Equal(t, "export main;\n", resp.AST.String())
	require.NotNil(t, resp.Imports)
	require.Len(t, resp.Imports.Exports, 1)
	assert.Equal(t, "main", resp.Imports.Exports[0].Name)
}

func TestParseJSONDiagnostics(t *testing.T) {
	r := run(t, "fn f(a) {}", "--format=json", "parse")
	assert.Equal(t, exitDiagnostics, r.code)

	var resp struct {
		OK          bool          `json:"ok"`
		Diagnostics []*diag.Error `json:"diagnostics"`
	}
	require.NoError(t, json.Unmarshal([]byte(r.stdout), &resp))
	assert.False(t, resp.OK)
	require.Len(t, resp.Diagnostics, 1)
	assert.Equal(t, diag.UnexpectedToken, resp.Diagnostics[0].Kind)
}

func TestTiming(t *testing.T) {
	r := run(t, "let x = 1;", "--timing", "parse")
	require.Equal(t, exitOK, r.code)
	assert.Contains(t, r.stderr, "total")
}

func TestCheck(t *testing.T) {
	path := writeSource(t, "lib.cpl", "import std.io;\nfn f() {\n    export f;\n}\n")
	r := run(t, "", "check", path)
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "lib.cpl: ok (3 statements, 0 expressions)")
	assert.Contains(t, r.stderr, "lib.cpl:3:5: warning: export is only allowed at top level")

	r = run(t, "let x = 1", "check")
	assert.Equal(t, exitDiagnostics, r.code)
	assert.Contains(t, r.stderr, `expected ";"`)
	assert.Empty(t, r.stdout)

	// the parse error comes before the bad character
	r = run(t, "let x = ; @", "check")
	assert.Equal(t, exitDiagnostics, r.code)
	assert.Contains(t, r.stderr, `<stdin>:1:9: expected expression, found ";"`)
	assert.NotContains(t, r.stderr, "unrecognized character")
}

func TestCheckFileErrors(t *testing.T) {
	r := run(t, "", "check", filepath.Join(t.TempDir(), "missing.cpl"))
	assert.Equal(t, exitUsage, r.code)
	assert.Contains(t, r.stderr, "does not exist")

	wrong := writeSource(t, "main.src", "let x = 1;")
	r = run(t, "", "check", wrong)
	assert.Equal(t, exitUsage, r.code)
	assert.Contains(t, r.stderr, `must have ".cpl" extension`)

	cfg := writeSource(t, "cpl.yaml", "extension: src\n")
	r = run(t, "", "--config", cfg, "check", wrong)
	assert.Equal(t, exitOK, r.code, r.stderr)
}

func TestConfigErrors(t *testing.T) {
	r := run(t, "", "--config", filepath.Join(t.TempDir(), "none.yaml"), "check")
	assert.Equal(t, exitUsage, r.code)
	assert.Contains(t, r.stderr, "failed to read configuration")

	r = run(t, "", "--log-level", "loud", "check")
	assert.Equal(t, exitUsage, r.code)
	assert.Contains(t, r.stderr, "failed to set log level")

	cfg := writeSource(t, "cpl.yaml", "format: json\nrecover: true\n")
	r = run(t, "let a = ;\nlet b = ;\n", "--config", cfg, "check")
	assert.Equal(t, exitDiagnostics, r.code)
	assert.Equal(t, 2, strings.Count(r.stdout, `"kind":"UnexpectedToken"`))

	// flags override the file
	r = run(t, "let a = 1;", "--config", cfg, "-f", "text", "check")
	assert.Equal(t, exitOK, r.code)
	assert.Contains(t, r.stdout, "<stdin>: ok")
}

func TestCheckWatch(t *testing.T) {
	withSignalContext(t, 300*time.Millisecond)
	path := writeSource(t, "live.cpl", "let x = 1;")

	r := run(t, "", "check", "--watch", path)
	assert.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stdout, "live.cpl: ok")

	r = run(t, "", "check", "--watch")
	assert.Equal(t, exitUsage, r.code)
	assert.Contains(t, r.stderr, "--watch needs a file argument")
}

func TestLogsGoToStderr(t *testing.T) {
	r := run(t, "let x = 1;", "--log-level", "debug", "check")
	require.Equal(t, exitOK, r.code, r.stderr)
	assert.Contains(t, r.stderr, "configuration")
	assert.Contains(t, r.stderr, "compiled unit")
	assert.Contains(t, r.stderr, "unit=\"<stdin>\"")

	r = run(t, "let x = 1;", "check")
	assert.NotContains(t, r.stderr, "compiled unit")
}

func TestRepl(t *testing.T) {
	r := run(t, "let x = 1;\n\nlet = 2;\nexit\nlet y = 3;\n", "repl")
	assert.Equal(t, exitOK, r.code)
	assert.True(t, strings.HasPrefix(r.stdout, "> Tokens:\n"))
	assert.Contains(t, r.stdout, "AST:\nlet x = 1;\n")
	assert.Contains(t, r.stdout, `<repl>:1:5: expected identifier, found "="`)
	assert.Contains(t, r.stdout, "Exiting REPL...")
	assert.NotContains(t, r.stdout, "let y")
}

func TestReplEndOfInput(t *testing.T) {
	r := run(t, "1 + 2;", "repl")
	assert.Equal(t, exitOK, r.code)
	assert.Contains(t, r.stdout, "AST:\n1 + 2;\n")
	assert.True(t, strings.HasSuffix(r.stdout, "> \n"))
}

func TestServe(t *testing.T) {
	withSignalContext(t, 200*time.Millisecond)
	r := run(t, "", "--log-level", "error", "serve", "-l", "127.0.0.1:0")
	assert.Equal(t, exitOK, r.code, r.stderr)

	r = run(t, "", "--log-level", "error", "serve", "-l", "256.0.0.1:99999")
	assert.Equal(t, exitUsage, r.code)
	assert.Contains(t, r.stderr, "failed to listen")
}
