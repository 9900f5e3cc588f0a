package ot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAdvanceCursor_Insert(t *testing.T) {
	c := Caret(5)

	assert.Equal(t, Caret(8), AdvanceCursor(c, NewInsert("a", 1, 0, 2, "xyz")), "insert before caret shifts right")
	assert.Equal(t, Caret(8), AdvanceCursor(c, NewInsert("a", 2, 0, 5, "xyz")), "insert at caret shifts right")
	assert.Equal(t, Caret(5), AdvanceCursor(c, NewInsert("a", 3, 0, 6, "xyz")), "insert after caret leaves it alone")
}

func TestAdvanceCursor_Delete(t *testing.T) {
	c := Caret(5)

	assert.Equal(t, Caret(3), AdvanceCursor(c, NewDelete("a", 1, 0, 1, 2)), "delete before caret shifts left")
	assert.Equal(t, Caret(4), AdvanceCursor(c, NewDelete("a", 2, 0, 4, 3)), "caret inside range clamps to range start")
	assert.Equal(t, Caret(5), AdvanceCursor(c, NewDelete("a", 3, 0, 6, 2)), "delete after caret leaves it alone")
	assert.Equal(t, Caret(5), AdvanceCursor(c, NewDelete("a", 4, 0, 5, 2)), "delete starting at caret leaves it alone")
}

func TestAdvanceCursor_Selection(t *testing.T) {
	sel := Cursor{Start: 2, End: 6}

	got := AdvanceCursor(sel, NewDelete("a", 1, 0, 3, 2))
	assert.Equal(t, Cursor{Start: 2, End: 4}, got, "delete inside selection shrinks it")

	got = AdvanceCursor(sel, NewDelete("a", 2, 0, 0, 8))
	assert.Equal(t, Cursor{Start: 0, End: 0}, got, "selection swallowed by delete collapses")

	got = AdvanceCursor(sel, NewInsert("a", 3, 0, 4, "ab"))
	assert.Equal(t, Cursor{Start: 2, End: 8}, got, "insert inside selection extends the end")
}
