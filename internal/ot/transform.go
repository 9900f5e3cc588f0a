package ot

// Transform rewrites a against the effect of b, where both operations were
// composed against the same revision. The result is the version of a that
// applies after b has already been applied, preserving a's intent.
//
// The function is pure and total: every input pair in the domain produces a
// defined output, and neither argument is mutated.
//
// Rules, in position space:
//
//   - insert/insert: the earlier position is unchanged; the later shifts
//     right by the other's length. Equal positions break the tie by author
//     id (then by op id): the lower id keeps its position, the higher id
//     shifts right. The tie-break is a total order, so both replicas pick
//     the same interleaving regardless of application order.
//   - insert/delete: an insert at or before the deleted range is unchanged;
//     strictly inside the range it is absorbed (position clamps to the
//     range start and the payload is dropped, see below); past the range it
//     shifts left by the deleted length.
//   - delete/insert: an insert at or before the range shifts the range
//     right; strictly inside the range it grows the range by the inserted
//     length, so the insertion is deleted along with the range.
//   - delete/delete: the surviving span is a's range minus the overlap with
//     b's; full containment degenerates a to a zero-length no-op.
//
// The absorb rule is symmetric on purpose: if the insert merely clamped to
// the range start and kept its payload, one application order would keep
// the text and the other would delete it, breaking convergence. Dropping
// the payload on both sides makes delete-absorbs-insert hold in either
// order.
func Transform(a, b Operation) Operation {
	switch {
	case a.Kind == KindInsert && b.Kind == KindInsert:
		return transformInsertInsert(a, b)
	case a.Kind == KindInsert && b.Kind == KindDelete:
		return transformInsertDelete(a, b)
	case a.Kind == KindDelete && b.Kind == KindInsert:
		return transformDeleteInsert(a, b)
	default:
		return transformDeleteDelete(a, b)
	}
}

// TransformAll rewrites op against each entry of history in order. This is
// the server-side loop: history holds the committed operations the author
// had not seen, oldest first, each expressed against the revision it
// committed at.
func TransformAll(op Operation, history []Operation) Operation {
	for _, h := range history {
		op = Transform(op, h)
	}
	return op
}

func transformInsertInsert(a, b Operation) Operation {
	switch {
	case a.Pos < b.Pos:
		return a
	case a.Pos > b.Pos:
		a.Pos += b.TextLen()
		return a
	case precedes(a, b):
		return a
	default:
		a.Pos += b.TextLen()
		return a
	}
}

// precedes is the total order for same-position concurrent inserts: lower
// author id wins, then lower op id for the degenerate same-author case.
func precedes(a, b Operation) bool {
	if a.Author != b.Author {
		return a.Author < b.Author
	}
	return a.ID < b.ID
}

func transformInsertDelete(a, b Operation) Operation {
	switch {
	case a.Pos <= b.Pos:
		return a
	case a.Pos < b.end():
		// Absorbed: the surrounding text is gone in both orders.
		a.Pos = b.Pos
		a.Text = ""
		return a
	default:
		a.Pos -= b.Length
		return a
	}
}

func transformDeleteInsert(a, b Operation) Operation {
	switch {
	case b.Pos <= a.Pos:
		a.Pos += b.TextLen()
		return a
	case b.Pos < a.end():
		a.Length += b.TextLen()
		return a
	default:
		return a
	}
}

func transformDeleteDelete(a, b Operation) Operation {
	// Runes of b's range strictly before a's start: a shifts left by these.
	pre := 0
	if b.Pos < a.Pos {
		pre = min(b.Length, a.Pos-b.Pos)
	}

	// Overlap between the two ranges: already gone, a must not re-delete it.
	overlap := min(a.end(), b.end()) - max(a.Pos, b.Pos)
	if overlap < 0 {
		overlap = 0
	}

	a.Pos -= pre
	a.Length -= overlap
	return a
}
