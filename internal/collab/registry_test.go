package collab

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowork-labs/coedit/internal/ot"
	"github.com/cowork-labs/coedit/internal/session"
)

func TestRegistry_CreateAndJoin(t *testing.T) {
	r := NewRegistry(nil)

	id := r.CreateDocument("Test Document", "alice")
	require.NotEmpty(t, id)

	rev, content, err := r.Join(id, "alice")
	require.NoError(t, err)
	assert.Equal(t, 0, rev)
	assert.Equal(t, "", content)

	_, _, err = r.Join("nope", "alice")
	assert.Error(t, err)
}

// TestRegistry_CollaborativeEditing walks the two-user flow: the owner
// writes, a second user is granted write access and appends, and both see
// the same text.
func TestRegistry_CollaborativeEditing(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	id := r.CreateDocument("Test Document", "alice")
	_, _, err := r.Join(id, "alice")
	require.NoError(t, err)
	_, _, err = r.Join(id, "bob")
	require.NoError(t, err)

	require.NoError(t, r.GrantPermission(id, "bob", session.CapRead|session.CapWrite))

	require.NoError(t, r.InsertText(ctx, id, "alice", 0, "Hello, "))
	require.NoError(t, r.InsertText(ctx, id, "bob", 7, "World!"))

	content, ok := r.Content(id)
	require.True(t, ok)
	assert.Equal(t, "Hello, World!", content)
}

func TestRegistry_UnjoinedClientCannotEdit(t *testing.T) {
	r := NewRegistry(nil)
	id := r.CreateDocument("Test Document", "alice")

	err := r.InsertText(context.Background(), id, "alice", 0, "x")
	assert.True(t, IsUnauthorized(err), "even the owner must join first: %v", err)
}

func TestRegistry_ReadOnlyClientCannotEdit(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	id := r.CreateDocument("Test Document", "alice")
	_, _, err := r.Join(id, "mallory")
	require.NoError(t, err)

	err = r.InsertText(ctx, id, "mallory", 0, "x")
	assert.True(t, IsUnauthorized(err), "default grant is read-only: %v", err)
}

func TestRegistry_DeleteText(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	id := r.CreateDocument("Test Document", "alice")
	_, _, err := r.Join(id, "alice")
	require.NoError(t, err)

	require.NoError(t, r.InsertText(ctx, id, "alice", 0, "hello world"))
	require.NoError(t, r.DeleteText(ctx, id, "alice", 5, 6))

	content, _ := r.Content(id)
	assert.Equal(t, "hello", content)
}

func TestRegistry_CursorsFollowEdits(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	id := r.CreateDocument("Test Document", "alice")
	_, _, err := r.Join(id, "alice")
	require.NoError(t, err)
	_, _, err = r.Join(id, "bob")
	require.NoError(t, err)

	r.UpdateCursor(id, "bob", ot.Caret(0))
	require.NoError(t, r.InsertText(ctx, id, "alice", 0, "abc"))

	cursors := r.ActiveCursors(id)
	require.Len(t, cursors, 2)
	assert.Equal(t, "alice", cursors[0].ClientID)
	assert.Equal(t, "bob", cursors[1].ClientID)
	assert.Equal(t, ot.Caret(3), cursors[1].Cursor, "insert at bob's caret pushes it right")
}

// TestRegistry_CursorProjectionOrder pins that presence cursors advance in
// commit order even when projections arrive reversed, as racing Submit
// calls can deliver them. Insert-then-delete does not commute with
// delete-then-insert in cursor space, so misordered application would leave
// the cursor in the wrong place.
func TestRegistry_CursorProjectionOrder(t *testing.T) {
	r := NewRegistry(nil)

	id := r.CreateDocument("Test Document", "alice")
	_, _, err := r.Join(id, "alice")
	require.NoError(t, err)
	_, _, err = r.Join(id, "bob")
	require.NoError(t, err)
	r.UpdateCursor(id, "bob", ot.Caret(1))

	e, ok := r.entry(id)
	require.True(t, ok)

	ins := ot.NewInsert("alice", 1, 0, 0, "abc") // revision 1
	del := ot.NewDelete("alice", 2, 1, 0, 3)     // revision 2

	// Revision 2 arrives first: it must be held, not applied.
	e.projectCursors(del, 2)
	cursors := r.ActiveCursors(id)
	assert.Equal(t, ot.Caret(1), cursors[1].Cursor, "early projection is buffered")

	// Revision 1 arrives and both drain in order: 1 -> 4 -> 1.
	e.projectCursors(ins, 1)
	cursors = r.ActiveCursors(id)
	assert.Equal(t, ot.Caret(1), cursors[1].Cursor)
	assert.Equal(t, 2, e.projectedRev)
	assert.Empty(t, e.projections)
}

func TestRegistry_LeaveRemovesPresence(t *testing.T) {
	r := NewRegistry(nil)
	id := r.CreateDocument("Test Document", "alice")
	_, _, err := r.Join(id, "alice")
	require.NoError(t, err)
	_, _, err = r.Join(id, "bob")
	require.NoError(t, err)

	r.Leave(id, "bob")
	assert.Len(t, r.ActiveCursors(id), 1)

	err = r.InsertText(context.Background(), id, "bob", 0, "x")
	assert.True(t, IsUnauthorized(err), "left client is no longer an active editor")
}

func TestRegistry_PersistencePull(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	id := r.CreateDocument("Test Document", "alice")
	_, _, err := r.Join(id, "alice")
	require.NoError(t, err)
	require.NoError(t, r.InsertText(ctx, id, "alice", 0, "abc"))

	rev, content, ok := r.Snapshot(id)
	require.True(t, ok)
	assert.Equal(t, 1, rev)
	assert.Equal(t, "abc", content)

	ops := r.AppendedSince(id, 0)
	require.Len(t, ops, 1)
	assert.Equal(t, "alice:1", ops[0].ID)

	assert.Empty(t, r.AppendedSince(id, 1))
	assert.Equal(t, []string{id}, r.Documents())
}

func TestRegistry_IndependentDocuments(t *testing.T) {
	r := NewRegistry(nil)
	ctx := context.Background()

	a := r.CreateDocument("A", "alice")
	b := r.CreateDocument("B", "alice")
	_, _, err := r.Join(a, "alice")
	require.NoError(t, err)
	_, _, err = r.Join(b, "alice")
	require.NoError(t, err)

	require.NoError(t, r.InsertText(ctx, a, "alice", 0, "only in a"))

	contentB, _ := r.Content(b)
	assert.Equal(t, "", contentB)
}
