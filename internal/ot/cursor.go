package ot

// Cursor is a caret position plus an optional selection. Start and End are
// rune offsets; a collapsed selection (Start == End) is a plain caret.
// Start <= End always holds for cursors produced by this package.
type Cursor struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Caret returns a collapsed cursor at pos.
func Caret(pos int) Cursor {
	return Cursor{Start: pos, End: pos}
}

// AdvanceCursor re-projects c through op using the same position rules the
// text transform uses: an insert at or before a point shifts it right by
// the inserted length, a delete before it shifts it left, and a point
// inside a deleted range clamps to the range start.
func AdvanceCursor(c Cursor, op Operation) Cursor {
	c.Start = advancePoint(c.Start, op)
	c.End = advancePoint(c.End, op)
	if c.End < c.Start {
		c.End = c.Start
	}
	return c
}

func advancePoint(p int, op Operation) int {
	switch op.Kind {
	case KindInsert:
		if op.Pos <= p {
			return p + op.TextLen()
		}
		return p
	case KindDelete:
		switch {
		case p <= op.Pos:
			return p
		case p < op.end():
			return op.Pos
		default:
			return p - op.Length
		}
	default:
		return p
	}
}
