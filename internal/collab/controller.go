// Package collab orchestrates collaborative editing: the per-document sync
// controller that validates, transforms, commits, and broadcasts incoming
// operations, and the registry that owns one controller per open document.
package collab

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/cowork-labs/coedit/internal/document"
	"github.com/cowork-labs/coedit/internal/ot"
	"github.com/cowork-labs/coedit/internal/session"
)

// CapabilityChecker is the permission collaborator. It is queried once per
// submitted operation; the engine consumes only the yes/no answer.
type CapabilityChecker interface {
	HasCapability(clientID string, cap session.Capability) bool
}

// Controller is the sync controller for one document. Each submission runs
// one cycle of validate, transform, commit, broadcast and returns to idle;
// there is no cross-cycle blocking wait.
//
// The commit step is the single serialization point per document
// (document.Commit holds the document lock); everything before it runs
// without the lock, and a re-transform inside the lock covers operations
// that committed in between. Independent documents share nothing and
// commit concurrently.
type Controller struct {
	doc    *document.Document
	perms  CapabilityChecker
	logger *slog.Logger

	mu   sync.Mutex
	subs map[string]*Queue // keyed by client id
}

// NewController creates a controller for doc, consulting perms on every
// submission.
func NewController(doc *document.Document, perms CapabilityChecker, logger *slog.Logger) *Controller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		doc:    doc,
		perms:  perms,
		logger: logger.With("doc", doc.ID),
		subs:   make(map[string]*Queue),
	}
}

// Document returns the controlled document.
func (c *Controller) Document() *document.Document {
	return c.doc
}

// Snapshot exposes the document's consistent (revision, content) pair to
// the persistence collaborator, which pulls; the engine never calls into
// storage.
func (c *Controller) Snapshot() (int, string) {
	return c.doc.Snapshot()
}

// AppendedSince exposes the committed operations after rev, oldest first,
// for durable checkpointing.
func (c *Controller) AppendedSince(rev int) []ot.Operation {
	return c.doc.EntriesSince(rev)
}

// Subscribe registers a delivery queue for clientID and returns it. A
// second subscribe for the same client closes and replaces the first
// (reconnect).
func (c *Controller) Subscribe(clientID string) *Queue {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.subs[clientID]; ok {
		old.Close()
	}
	q := NewQueue()
	c.subs[clientID] = q
	return q
}

// Unsubscribe tears down clientID's delivery queue. Operations already
// committed stay committed and keep broadcasting to remaining sessions; a
// disconnecting client's uncommitted submission is simply dropped by its
// transport.
func (c *Controller) Unsubscribe(clientID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if q, ok := c.subs[clientID]; ok {
		q.Close()
		delete(c.subs, clientID)
	}
}

// Submit runs one controller cycle for an operation from clientID.
//
// Validating: rejects CodeStaleRevision if the base revision is negative
// or ahead of the document, CodeUnauthorized if the client lacks Write.
// Transforming: rewrites the operation against every committed entry after
// its base, without holding the commit lock. Committing: appends, bumps
// the revision, applies to the buffer (re-transforming against any entries
// that arrived since the unlocked phase). Broadcasting: enqueues the
// committed operation to every other subscriber and an ack to the
// originator, never blocking.
//
// Returns the fully transformed operation and the revision it committed
// as. Rejections report to the originator only and mutate nothing.
func (c *Controller) Submit(ctx context.Context, clientID string, op ot.Operation) (ot.Operation, int, error) {
	if err := ctx.Err(); err != nil {
		return op, 0, err
	}

	// Validating.
	current := c.doc.Revision()
	if op.Base < 0 || op.Base > current {
		return op, 0, newStaleRevision(clientID, op.ID, op.Base, current)
	}
	if !c.perms.HasCapability(clientID, session.CapWrite) {
		return op, 0, newUnauthorized(clientID, op.ID)
	}
	if op.Kind == ot.KindInsert {
		op.Text = norm.NFC.String(op.Text)
	}

	// Transforming, against a fixed history prefix, lock not held.
	entries := c.doc.EntriesSince(op.Base)
	fromRev := op.Base + len(entries)
	transformed := ot.TransformAll(op, entries)

	// Committing. Commit re-checks the revision under the document lock
	// and transforms against any gap before appending.
	committed, rev, err := c.doc.Commit(transformed, fromRev)
	if err != nil {
		c.logger.Warn("rejecting out-of-bounds operation",
			"client", clientID, "op", op.ID, "err", err)
		return op, 0, newMalformed(clientID, op.ID, err)
	}

	c.logger.Debug("committed operation",
		"client", clientID, "op", committed.ID, "revision", rev)

	// Broadcasting: fire-and-forget fan-out.
	c.broadcast(clientID, committed, rev)
	return committed, rev, nil
}

func (c *Controller) broadcast(originID string, op ot.Operation, rev int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for clientID, q := range c.subs {
		if clientID == originID {
			q.Enqueue(Event{Type: EventAck, Revision: rev, OpID: op.ID})
			continue
		}
		q.Enqueue(Event{Type: EventCommit, Revision: rev, Op: op})
	}
}
