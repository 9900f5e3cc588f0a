package collab

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cowork-labs/coedit/internal/document"
	"github.com/cowork-labs/coedit/internal/ot"
	"github.com/cowork-labs/coedit/internal/session"
)

// allowAll grants every capability to every client.
type allowAll struct{}

func (allowAll) HasCapability(string, session.Capability) bool { return true }

// denyWrite grants read but never write.
type denyWrite struct{}

func (denyWrite) HasCapability(_ string, want session.Capability) bool {
	return !want.Has(session.CapWrite)
}

func newTestController(t *testing.T, perms CapabilityChecker) *Controller {
	t.Helper()
	return NewController(document.New("doc-1", "Test Document", "alice"), perms, nil)
}

func TestController_SubmitCommits(t *testing.T) {
	c := newTestController(t, allowAll{})

	op, rev, err := c.Submit(context.Background(), "alice", ot.NewInsert("alice", 1, 0, 0, "hello"))
	require.NoError(t, err)
	assert.Equal(t, 1, rev)
	assert.Equal(t, 0, op.Pos)
	assert.Equal(t, "hello", c.Document().Content())
}

func TestController_StaleRevision(t *testing.T) {
	c := newTestController(t, allowAll{})

	_, _, err := c.Submit(context.Background(), "alice", ot.NewInsert("alice", 1, 5, 0, "x"))
	assert.True(t, IsStaleRevision(err), "base ahead of document: %v", err)

	bad := ot.NewInsert("alice", 2, 0, 0, "x")
	bad.Base = -1
	_, _, err = c.Submit(context.Background(), "alice", bad)
	assert.True(t, IsStaleRevision(err), "negative base: %v", err)

	assert.Equal(t, 0, c.Document().Revision(), "rejections mutate nothing")
}

func TestController_Unauthorized(t *testing.T) {
	c := newTestController(t, denyWrite{})

	_, _, err := c.Submit(context.Background(), "bob", ot.NewInsert("bob", 1, 0, 0, "x"))
	assert.True(t, IsUnauthorized(err), "got: %v", err)
	assert.Equal(t, 0, c.Document().Revision())
}

func TestController_Malformed(t *testing.T) {
	c := newTestController(t, allowAll{})

	_, _, err := c.Submit(context.Background(), "alice", ot.NewDelete("alice", 1, 0, 0, 3))
	assert.True(t, IsMalformed(err), "delete beyond bounds: %v", err)
	assert.Equal(t, 0, c.Document().Revision())
	assert.Equal(t, "", c.Document().Content())
}

func TestController_TransformsAgainstConcurrentHistory(t *testing.T) {
	c := newTestController(t, allowAll{})
	ctx := context.Background()

	_, _, err := c.Submit(ctx, "x", ot.NewInsert("x", 1, 0, 0, "hello"))
	require.NoError(t, err)

	// y is still at base 0; its position-0 insert loses the tie to x and
	// lands after "hello".
	op, rev, err := c.Submit(ctx, "y", ot.NewInsert("y", 1, 0, 0, "!!"))
	require.NoError(t, err)
	assert.Equal(t, 2, rev)
	assert.Equal(t, 5, op.Pos)
	assert.Equal(t, "hello!!", c.Document().Content())
}

func TestController_BroadcastAndAck(t *testing.T) {
	c := newTestController(t, allowAll{})
	qa := c.Subscribe("alice")
	qb := c.Subscribe("bob")

	committed, rev, err := c.Submit(context.Background(), "alice", ot.NewInsert("alice", 1, 0, 0, "hi"))
	require.NoError(t, err)

	ack, ok := qa.TryDequeue()
	require.True(t, ok, "originator gets an ack")
	assert.Equal(t, EventAck, ack.Type)
	assert.Equal(t, committed.ID, ack.OpID)
	assert.Equal(t, rev, ack.Revision)

	ev, ok := qb.TryDequeue()
	require.True(t, ok, "other session gets the commit")
	assert.Equal(t, EventCommit, ev.Type)
	assert.Equal(t, committed, ev.Op)

	_, ok = qa.TryDequeue()
	assert.False(t, ok, "originator does not also receive the commit")
}

func TestController_UnsubscribedSessionStopsReceiving(t *testing.T) {
	c := newTestController(t, allowAll{})
	qb := c.Subscribe("bob")
	c.Unsubscribe("bob")

	_, _, err := c.Submit(context.Background(), "alice", ot.NewInsert("alice", 1, 0, 0, "hi"))
	require.NoError(t, err)

	_, ok := qb.TryDequeue()
	assert.False(t, ok)
	assert.True(t, qb.Closed())
}

// TestController_NoLostUpdatesUnderContention: N concurrent submissions
// against the same base revision all commit, the final revision equals N,
// and the live buffer equals a full replay of the log.
func TestController_NoLostUpdatesUnderContention(t *testing.T) {
	c := newTestController(t, allowAll{})
	ctx := context.Background()
	const n = 32

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			author := fmt.Sprintf("client-%02d", i)
			_, _, errs[i] = c.Submit(ctx, author, ot.NewInsert(author, 1, 0, 0, "ab"))
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "submission %d must not be dropped", i)
	}

	doc := c.Document()
	assert.Equal(t, n, doc.Revision(), "every submission occupies a revision")
	assert.Len(t, doc.Content(), n*2, "every payload survives")

	replayed, err := doc.Replay(-1)
	require.NoError(t, err)
	assert.Equal(t, doc.Content(), replayed, "buffer matches log replay")
}

func TestRejectError_Helpers(t *testing.T) {
	stale := newStaleRevision("c", "c:1", 9, 2)
	assert.True(t, IsStaleRevision(stale))
	assert.False(t, IsUnauthorized(stale))
	assert.Contains(t, stale.Error(), "STALE_REVISION")

	wrapped := fmt.Errorf("submit: %w", newUnauthorized("c", "c:2"))
	assert.True(t, IsUnauthorized(wrapped), "helpers see through wrapping")

	assert.False(t, IsMalformed(fmt.Errorf("plain error")))
}
