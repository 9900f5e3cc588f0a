package ws

import (
	"fmt"

	"github.com/cowork-labs/coedit/internal/ot"
)

// Frame type names on the wire.
const (
	// client -> server
	TypeSubmit = "submit"
	TypeCursor = "cursor"

	// server -> client
	TypeSnapshot = "snapshot"
	TypeCommit   = "commit"
	TypeAck      = "ack"
	TypeError    = "error"
)

// Frame is the single JSON message shape both directions share; Type
// selects which fields are meaningful.
type Frame struct {
	Type string `json:"type"`

	// Submit, Commit.
	Op *WireOp `json:"op,omitempty"`

	// Snapshot, Commit, Ack: the server revision.
	Revision int `json:"revision,omitempty"`

	// Snapshot.
	Content string `json:"content,omitempty"`

	// Ack.
	OpID string `json:"op_id,omitempty"`

	// Cursor.
	Cursor *ot.Cursor `json:"cursor,omitempty"`

	// Error.
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// WireOp is the JSON form of an operation.
type WireOp struct {
	ID     string `json:"id"`
	Kind   string `json:"kind"`
	Pos    int    `json:"pos"`
	Text   string `json:"text,omitempty"`
	Length int    `json:"length,omitempty"`
	Base   int    `json:"base"`
	Author string `json:"author"`
}

// encodeOp converts an operation to its wire form.
func encodeOp(op ot.Operation) *WireOp {
	return &WireOp{
		ID:     op.ID,
		Kind:   op.Kind.String(),
		Pos:    op.Pos,
		Text:   op.Text,
		Length: op.Length,
		Base:   op.Base,
		Author: op.Author,
	}
}

// decodeOp converts a wire operation back. The kind string is validated;
// everything else is validated by the engine.
func decodeOp(w *WireOp) (ot.Operation, error) {
	op := ot.Operation{
		ID:     w.ID,
		Pos:    w.Pos,
		Text:   w.Text,
		Length: w.Length,
		Base:   w.Base,
		Author: w.Author,
	}
	switch w.Kind {
	case "insert":
		op.Kind = ot.KindInsert
	case "delete":
		op.Kind = ot.KindDelete
	default:
		return op, fmt.Errorf("unknown operation kind %q", w.Kind)
	}
	return op, nil
}
