package ot

import (
	"fmt"
	"unicode/utf8"
)

// Kind distinguishes the two edit operation types.
type Kind int

const (
	// KindInsert inserts text at a position.
	KindInsert Kind = iota + 1
	// KindDelete removes a run of characters starting at a position.
	KindDelete
)

// String returns the wire name for the kind.
func (k Kind) String() string {
	switch k {
	case KindInsert:
		return "insert"
	case KindDelete:
		return "delete"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Operation is a single edit to a document, immutable once created.
//
// Positions and lengths are measured in runes, not bytes, so multi-byte
// text transforms the same way single-byte text does.
//
// Transformation never mutates an Operation in place - Transform returns
// a new value. This keeps history entries safely shareable across sessions.
type Operation struct {
	// ID uniquely identifies the operation: author id plus a monotonically
	// increasing per-author counter (see OpID).
	ID string

	// Kind is KindInsert or KindDelete.
	Kind Kind

	// Pos is the zero-based rune offset the edit applies at, in the
	// coordinate space of the revision the operation is expressed against.
	Pos int

	// Text is the payload for KindInsert. Empty for KindDelete.
	Text string

	// Length is the number of runes removed for KindDelete. Zero for
	// KindInsert.
	Length int

	// Base is the document revision the operation was composed against.
	Base int

	// Author identifies the client that authored the edit. Also the
	// deterministic tie-breaker for same-position concurrent inserts.
	Author string
}

// OpID builds the canonical operation id from an author and that author's
// edit counter.
func OpID(author string, seq int64) string {
	return fmt.Sprintf("%s:%d", author, seq)
}

// NewInsert creates an insert operation.
func NewInsert(author string, seq int64, base, pos int, text string) Operation {
	return Operation{
		ID:     OpID(author, seq),
		Kind:   KindInsert,
		Pos:    pos,
		Text:   text,
		Base:   base,
		Author: author,
	}
}

// NewDelete creates a delete operation removing length runes at pos.
func NewDelete(author string, seq int64, base, pos, length int) Operation {
	return Operation{
		ID:     OpID(author, seq),
		Kind:   KindDelete,
		Pos:    pos,
		Length: length,
		Base:   base,
		Author: author,
	}
}

// TextLen returns the insert payload length in runes.
func (op Operation) TextLen() int {
	return utf8.RuneCountInString(op.Text)
}

// IsNoop reports whether applying the operation leaves the document
// unchanged. Transformation can degenerate an operation to a no-op (a
// delete fully contained in a concurrent delete, or an insert absorbed
// by one); no-ops still commit and occupy a revision so that revision
// numbers stay aligned across replicas.
func (op Operation) IsNoop() bool {
	switch op.Kind {
	case KindInsert:
		return op.Text == ""
	case KindDelete:
		return op.Length == 0
	default:
		return true
	}
}

// end returns the exclusive end of a delete's range.
func (op Operation) end() int {
	return op.Pos + op.Length
}

// String renders a compact human-readable form, used in logs and traces.
func (op Operation) String() string {
	switch op.Kind {
	case KindInsert:
		return fmt.Sprintf("%s insert(%d, %q) base=%d", op.ID, op.Pos, op.Text, op.Base)
	case KindDelete:
		return fmt.Sprintf("%s delete(%d, %d) base=%d", op.ID, op.Pos, op.Length, op.Base)
	default:
		return fmt.Sprintf("%s unknown base=%d", op.ID, op.Base)
	}
}
