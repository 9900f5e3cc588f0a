package ot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApply_Insert(t *testing.T) {
	doc := []rune("hello")

	out, err := Apply(doc, NewInsert("a", 1, 0, 5, " world"))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(out))
	assert.Equal(t, "hello", string(doc), "input buffer must not be mutated")

	out, err = Apply(doc, NewInsert("a", 2, 0, 0, ">"))
	require.NoError(t, err)
	assert.Equal(t, ">hello", string(out))
}

func TestApply_InsertMultibyte(t *testing.T) {
	doc := []rune("héllo")

	out, err := Apply(doc, NewInsert("a", 1, 0, 2, "ß"))
	require.NoError(t, err)
	assert.Equal(t, "héßllo", string(out))
}

func TestApply_Delete(t *testing.T) {
	doc := []rune("hello world")

	out, err := Apply(doc, NewDelete("a", 1, 0, 5, 6))
	require.NoError(t, err)
	assert.Equal(t, "hello", string(out))

	out, err = Apply(doc, NewDelete("a", 2, 0, 0, 0))
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(out), "zero-length delete is a no-op")
}

func TestApply_OutOfBounds(t *testing.T) {
	doc := []rune("abc")

	tests := []struct {
		name string
		op   Operation
	}{
		{"insert past end", NewInsert("a", 1, 0, 4, "x")},
		{"insert negative", NewInsert("a", 2, 0, -1, "x")},
		{"delete past end", NewDelete("a", 3, 0, 2, 2)},
		{"delete negative pos", NewDelete("a", 4, 0, -1, 1)},
		{"delete negative length", NewDelete("a", 5, 0, 1, -1)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Apply(doc, tt.op)
			var be *BoundsError
			require.ErrorAs(t, err, &be)
			assert.Equal(t, 3, be.DocLen)
		})
	}
}

func TestApplyAll(t *testing.T) {
	ops := []Operation{
		NewInsert("a", 1, 0, 0, "hello"),
		NewInsert("a", 2, 1, 5, " world"),
		NewDelete("a", 3, 2, 0, 6),
	}

	out, err := ApplyAll(nil, ops)
	require.NoError(t, err)
	assert.Equal(t, "world", string(out))

	_, err = ApplyAll(nil, []Operation{NewDelete("a", 1, 0, 0, 1)})
	var be *BoundsError
	assert.ErrorAs(t, err, &be)
}
