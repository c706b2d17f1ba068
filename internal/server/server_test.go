package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cpl/internal/config"
	"cpl/internal/diag"
	"cpl/internal/driver"
	"cpl/internal/output"
	"cpl/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
	SetLogLevel(logrus.ErrorLevel)
	driver.SetLogLevel(logrus.ErrorLevel)
}

func do(t *testing.T, s *Server, method, url, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, url, strings.NewReader(body))
	s.Handler().ServeHTTP(w, req)
	return w
}

type parseReply struct {
	OK          bool                   `json:"ok"`
	AST         map[string]interface{} `json:"ast"`
	Diagnostics []*diag.Error          `json:"diagnostics"`
	Imports     struct {
		Imports []map[string]interface{} `json:"imports"`
		Exports []map[string]interface{} `json:"exports"`
	} `json:"imports"`
	Stats   *driver.Stats          `json:"stats"`
	Timings map[string]interface{} `json:"timings"`
}

func decodeParse(t *testing.T, w *httptest.ResponseRecorder) parseReply {
	t.Helper()
	var r parseReply
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r), w.Body.String())
	return r
}

func TestVersion(t *testing.T) {
	s := New(nil, "1.2.3")
	w := do(t, s, http.MethodGet, "/version", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"version":"1.2.3"}`, w.Body.String())
}

func TestParse(t *testing.T) {
	s := New(config.Default(), "test")
	w := do(t, s, http.MethodPost, "/parse?name=main.cpl", "import std.io;\nlet x = 1 + 2;\nexport x;")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, w.Header().Get("Content-Type"), "application/json")

	r := decodeParse(t, w)
	assert.True(t, r.OK)
	assert.Empty(t, r.Diagnostics)
	require.NotNil(t, r.AST)
	assert.Equal(t, "main.cpl", r.AST["name"])
	assert.Len(t, r.AST["top"], 3)
	require.Len(t, r.Imports.Imports, 1)
	assert.Equal(t, "std.io", r.Imports.Imports[0]["path"])
	assert.Equal(t, true, r.Imports.Imports[0]["std"])
	require.Len(t, r.Imports.Exports, 1)
	assert.Equal(t, driver.Stats{Statements: 3, Expressions: 3}, *r.Stats)
	assert.Nil(t, r.Timings)
}

func TestParseDiagnostics(t *testing.T) {
	s := New(config.Default(), "test")
	w := do(t, s, http.MethodPost, "/parse?name=bad.cpl", "let x = ;")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	r := decodeParse(t, w)
	assert.False(t, r.OK)
	assert.Nil(t, r.AST)
	require.Len(t, r.Diagnostics, 1)

	d := r.Diagnostics[0]
	assert.Equal(t, diag.UnexpectedToken, d.Kind)
	assert.Equal(t, "bad.cpl", d.File)
	assert.Equal(t, 1, d.Span.Line)
	assert.Equal(t, 9, d.Span.Column)
	assert.Equal(t, []string{"expression"}, d.Expected)
	assert.Contains(t, w.Body.String(), `"kind":"UnexpectedToken"`)
}

func TestParseRecover(t *testing.T) {
	s := New(config.Default(), "test")
	w := do(t, s, http.MethodPost, "/parse?recover=true", "let a = ;\nlet b = 2;\nlet c = ;\n")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	r := decodeParse(t, w)
	assert.False(t, r.OK)
	assert.Len(t, r.Diagnostics, 2)
	require.NotNil(t, r.AST)
	assert.Equal(t, "input.cpl", r.AST["name"])
	assert.Len(t, r.AST["top"], 1)

	// recovery can come from configuration too
	cfg := config.Default()
	cfg.Recover = true
	w = do(t, New(cfg, "test"), http.MethodPost, "/parse", "let a = ;\nlet b = ;\n")
	assert.Len(t, decodeParse(t, w).Diagnostics, 2)

	w = do(t, New(cfg, "test"), http.MethodPost, "/parse?recover=false", "let a = ;\nlet b = ;\n")
	assert.Len(t, decodeParse(t, w).Diagnostics, 1)
}

func TestParseTimings(t *testing.T) {
	cfg := config.Default()
	cfg.Timing = true
	w := do(t, New(cfg, "test"), http.MethodPost, "/parse", "let x = 1;")
	r := decodeParse(t, w)
	require.NotNil(t, r.Timings)
	assert.Contains(t, r.Timings, "total")
}

func TestParseMsgpack(t *testing.T) {
	s := New(config.Default(), "test")
	src := "fn add(a: i32, b: i32) -> i32 { return a + b; }"

	for _, req := range []func() *http.Request{
		func() *http.Request {
			return httptest.NewRequest(http.MethodPost, "/parse?format=msgpack", strings.NewReader(src))
		},
		func() *http.Request {
			r := httptest.NewRequest(http.MethodPost, "/parse", strings.NewReader(src))
			r.Header.Set("Accept", "application/msgpack")
			return r
		},
	} {
		w := httptest.NewRecorder()
		s.Handler().ServeHTTP(w, req())
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "application/msgpack", w.Header().Get("Content-Type"))

		var resp output.ParseResponse
		require.NoError(t, output.Decode(bytes.NewReader(w.Body.Bytes()), config.FormatMsgpack, &resp))
		assert.True(t, resp.OK)
		require.NotNil(t, resp.AST)
		assert.Equal(t, "fn add(a: i32, b: i32) -> i32 {\n    return a + b;\n}\n", resp.AST.String())
	}
}

func TestParseUnknownFormat(t *testing.T) {
	s := New(config.Default(), "test")
	w := do(t, s, http.MethodPost, "/parse?format=xml", "let x = 1;")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	var e Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &e))
	assert.Equal(t, http.StatusBadRequest, e.Status)
	assert.Contains(t, e.Message, `unknown format "xml"`)
}

func TestParseTooLarge(t *testing.T) {
	s := New(config.Default(), "test")
	w := do(t, s, http.MethodPost, "/parse", strings.Repeat(" ", MaxSourceSize+1))
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestTokens(t *testing.T) {
	s := New(config.Default(), "test")
	w := do(t, s, http.MethodPost, "/tokens", `let s = "a\n";`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp output.TokensResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.OK)
	assert.Nil(t, resp.Error)

	var kinds []token.Kind
	for _, tok := range resp.Tokens {
		kinds = append(kinds, tok.Kind)
	}
	assert.Equal(t, []token.Kind{token.LET, token.IDENT, token.ASSIGN, token.STRING, token.SEMICOLON, token.EOF}, kinds)
	assert.Contains(t, w.Body.String(), `"kind":"STRING"`)
	assert.Equal(t, "a\n", resp.Tokens[3].Value)
	assert.Equal(t, 9, resp.Tokens[3].Span.Column)
}

func TestTokensLexError(t *testing.T) {
	s := New(config.Default(), "test")
	w := do(t, s, http.MethodPost, "/tokens?name=x.cpl", "let @")
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	var resp output.TokensResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.False(t, resp.OK)
	assert.Len(t, resp.Tokens, 1)
	require.NotNil(t, resp.Error)
	assert.Equal(t, diag.UnrecognizedCharacter, resp.Error.Kind)
	assert.Equal(t, "x.cpl", resp.Error.File)
}

func TestLoggingLevel(t *testing.T) {
	old, oldDriver := GetLogLevel(), driver.GetLogLevel()
	defer func() {
		SetLogLevel(old)
		driver.SetLogLevel(oldDriver)
	}()

	s := New(nil, "test")
	w := do(t, s, http.MethodPost, "/logging/level?core=debug&driver=info", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"core":"debug","driver":"info"}`, w.Body.String())
	assert.Equal(t, logrus.DebugLevel, GetLogLevel())
	assert.Equal(t, logrus.InfoLevel, driver.GetLogLevel())

	w = do(t, s, http.MethodGet, "/logging/level?parser=debug", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "unknown logger name")
}

func TestServe(t *testing.T) {
	cfg := config.Default()
	cfg.Server.ShutdownTimeout = "100ms"
	s := New(cfg, "9.9.9")

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/version")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.JSONEq(t, `{"version":"9.9.9"}`, string(body))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeBadTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.Server.ShutdownTimeout = "never"
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()

	assert.Error(t, New(cfg, "test").Serve(context.Background(), l))
}
