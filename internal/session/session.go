// Package session tracks the per-connected-client side of collaboration:
// the optimistic local view, the pending (unacknowledged) operations, the
// cursor, and the capability set.
package session

import (
	"fmt"
	"sync"

	"github.com/cowork-labs/coedit/internal/ot"
)

// Session is one client's context on one document.
//
// Lifecycle: created on connect (seeded with a server snapshot), destroyed
// on disconnect. The acked revision only ever advances.
//
// The local view is optimistic: local edits apply immediately and sit in
// pendingOps until the server acknowledges them. Remote operations are
// transformed against pendingOps before they touch the view, and
// pendingOps are rebased against each remote operation, so local
// unacknowledged edits are neither lost nor duplicated.
type Session struct {
	// ClientID identifies this client; it is also the author id stamped on
	// every operation the session creates.
	ClientID string

	mu      sync.Mutex
	caps    Capability
	view    []rune
	acked   int
	pending []ot.Operation
	cursor  ot.Cursor
	seq     int64
}

// New creates a session seeded with the server snapshot (content, rev).
func New(clientID string, caps Capability, content string, rev int) *Session {
	return &Session{
		ClientID: clientID,
		caps:     caps,
		view:     []rune(content),
		acked:    rev,
	}
}

// Capabilities returns the session's capability set.
func (s *Session) Capabilities() Capability {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.caps
}

// SetCapabilities replaces the capability set (permission grant/revoke).
func (s *Session) SetCapabilities(caps Capability) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.caps = caps
}

// View returns the current optimistic local text.
func (s *Session) View() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.view)
}

// AckedRevision returns the highest server revision this session has
// incorporated.
func (s *Session) AckedRevision() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.acked
}

// PendingCount returns the number of unacknowledged local operations.
func (s *Session) PendingCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending)
}

// Cursor returns the session's cursor.
func (s *Session) Cursor() ot.Cursor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cursor
}

// SetCursor moves the cursor explicitly (user click / selection drag).
func (s *Session) SetCursor(c ot.Cursor) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cursor = c
}

// Insert composes an insert against the acked revision, applies it to the
// local view immediately, appends it to the pending queue, and returns it
// for forwarding to the sync controller.
func (s *Session) Insert(pos int, text string) (ot.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	op := ot.NewInsert(s.ClientID, s.seq, s.acked, pos, text)
	return op, s.submitLocked(op)
}

// Delete composes a delete against the acked revision, applies it locally,
// and returns it for forwarding.
func (s *Session) Delete(pos, length int) (ot.Operation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	op := ot.NewDelete(s.ClientID, s.seq, s.acked, pos, length)
	return op, s.submitLocked(op)
}

func (s *Session) submitLocked(op ot.Operation) error {
	next, err := ot.Apply(s.view, op)
	if err != nil {
		s.seq-- // the operation never happened
		return fmt.Errorf("local edit: %w", err)
	}
	s.view = next
	s.pending = append(s.pending, op)
	s.cursor = ot.AdvanceCursor(s.cursor, op)
	return nil
}

// OnRemote incorporates a committed operation broadcast by the server at
// revision rev. The operation is transformed against every pending local
// operation in order before applying, and each pending operation is rebased
// against it so later acknowledgements line up.
func (s *Session) OnRemote(op ot.Operation, rev int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Symmetric pass: at step i, incoming and pending[i] are expressed
	// against the same intermediate state, so each transforms against the
	// other's pre-transform value.
	incoming := op
	for i := range s.pending {
		p := s.pending[i]
		s.pending[i] = ot.Transform(p, incoming)
		incoming = ot.Transform(incoming, p)
	}

	return s.applyRemoteLocked(incoming, rev)
}

func (s *Session) applyRemoteLocked(op ot.Operation, rev int) error {
	next, err := ot.Apply(s.view, op)
	if err != nil {
		return fmt.Errorf("remote operation %s: %w", op.ID, err)
	}
	s.view = next
	s.cursor = ot.AdvanceCursor(s.cursor, op)
	if rev > s.acked {
		s.acked = rev
	}
	return nil
}

// OnAck removes the acknowledged operation from the pending queue and
// advances the acked revision. The acked revision never decreases.
func (s *Session) OnAck(opID string, rev int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, p := range s.pending {
		if p.ID == opID {
			s.pending = append(s.pending[:i], s.pending[i+1:]...)
			break
		}
	}
	if rev > s.acked {
		s.acked = rev
	}
}
