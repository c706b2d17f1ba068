package ast

import (
	"io"

	"github.com/ugorji/go/codec"
)

// handles are safe for concurrent use once configured
var (
	jsonHandle    = &codec.JsonHandle{Indent: 2}
	msgpackHandle = &codec.MsgpackHandle{WriteExt: true}
)

// EncodeJSON writes the tree as indented JSON for tooling.
func (t *Tree) EncodeJSON(w io.Writer) error {
	return codec.NewEncoder(w, jsonHandle).Encode(t)
}

// EncodeMsgpack writes the tree in MessagePack.
func (t *Tree) EncodeMsgpack(w io.Writer) error {
	return codec.NewEncoder(w, msgpackHandle).Encode(t)
}

// DecodeMsgpack reads a tree written by EncodeMsgpack.
func DecodeMsgpack(r io.Reader) (*Tree, error) {
	t := new(Tree)
	if err := codec.NewDecoder(r, msgpackHandle).Decode(t); err != nil {
		return nil, err
	}
	return t, nil
}
