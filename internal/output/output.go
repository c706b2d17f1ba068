package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/ugorji/go/codec"

	"cpl/internal/ast"
	"cpl/internal/config"
	"cpl/internal/diag"
	"cpl/internal/driver"
	"cpl/internal/imports"
	"cpl/internal/lexer"
	"cpl/internal/token"
)

// encodings
var (
	jsonHandle    = &codec.JsonHandle{}
	msgpackHandle = &codec.MsgpackHandle{WriteExt: true}
)

// FormatError reports an output format that is neither json nor msgpack.
type FormatError struct {
	Format string
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("unknown format %q", e.Format)
}

// Handle returns the codec handle of format: JSON for "" or "json",
// MessagePack for "msgpack".
func Handle(format string) (codec.Handle, error) {
	switch strings.ToLower(format) {
	case "", config.FormatJSON:
		return jsonHandle, nil
	case config.FormatMsgpack:
		return msgpackHandle, nil
	}
	return nil, &FormatError{Format: format}
}

// ContentType is the MIME type of format.
func ContentType(format string) string {
	if strings.ToLower(format) == config.FormatMsgpack {
		return "application/msgpack"
	}
	return "application/json; charset=utf-8"
}

// Encode writes v to w in format.
func Encode(w io.Writer, format string, v interface{}) error {
	h, err := Handle(format)
	if err != nil {
		return err
	}
	return codec.NewEncoder(w, h).Encode(v)
}

// Decode reads v from r in format.
func Decode(r io.Reader, format string, v interface{}) error {
	h, err := Handle(format)
	if err != nil {
		return err
	}
	return codec.NewDecoder(r, h).Decode(v)
}

// ParseResponse is the structured result of parsing one unit.
type ParseResponse struct {
	OK          bool             `codec:"ok" json:"ok"`
	AST         *ast.Tree        `codec:"ast,omitempty" json:"ast,omitempty"`
	Imports     *imports.Summary `codec:"imports,omitempty" json:"imports,omitempty"`
	Diagnostics []*diag.Error    `codec:"diagnostics,omitempty" json:"diagnostics,omitempty"`
	Stats       *driver.Stats    `codec:"stats,omitempty" json:"stats,omitempty"`
	Timings     *driver.Timings  `codec:"timings,omitempty" json:"timings,omitempty"`
}

// NewParseResponse builds the reply for a compiled unit. The tree is
// included when the unit compiled cleanly or was parsed in recovery mode.
func NewParseResponse(res *driver.Result, recovered, timing bool) *ParseResponse {
	resp := &ParseResponse{OK: len(res.Diagnostics) == 0}
	if !resp.OK {
		resp.Diagnostics = res.Diagnostics
	}
	if res.Tree != nil && (resp.OK || recovered) {
		sum := imports.Collect(res.Tree)
		resp.AST = res.Tree
		resp.Imports = &sum
		resp.Stats = &res.Stats
	}
	if timing {
		resp.Timings = &res.Timings
	}
	return resp
}

// TokensResponse is the token stream of one unit up to EOF or the first
// lexical error.
type TokensResponse struct {
	OK     bool          `codec:"ok" json:"ok"`
	Tokens []token.Token `codec:"tokens" json:"tokens"`
	Error  *diag.Error   `codec:"error,omitempty" json:"error,omitempty"`
}

// NewTokensResponse scans unit up to EOF or the first lexical error.
func NewTokensResponse(unit *driver.Unit) (*TokensResponse, error) {
	resp := &TokensResponse{OK: true, Tokens: []token.Token{}}
	for tok, err := range lexer.NewNamed(unit.Name, unit.Source).All() {
		if err != nil {
			de, ok := err.(*diag.Error)
			if !ok {
				return nil, err
			}
			resp.OK = false
			resp.Error = de
			break
		}
		resp.Tokens = append(resp.Tokens, tok)
	}
	return resp, nil
}
