package collab

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/cowork-labs/coedit/internal/document"
	"github.com/cowork-labs/coedit/internal/ot"
	"github.com/cowork-labs/coedit/internal/session"
)

// Registry is an explicit map from document id to its document state and
// sync controller, owned by whatever process hosts the collaboration
// service. There is no process-wide singleton; independent registries are
// fully independent.
type Registry struct {
	logger *slog.Logger

	mu   sync.RWMutex
	docs map[string]*docEntry
}

// docEntry bundles everything one open document owns.
type docEntry struct {
	ctrl  *Controller
	perms *permissionTable

	mu       sync.Mutex
	presence map[string]*presenceEntry

	// Cursor projection bookkeeping: commits race out of Submit, so
	// projections are buffered by revision and applied in commit order.
	projectedRev int
	projections  map[int]ot.Operation
}

// presenceEntry tracks one joined client: its cursor and its per-author
// operation counter for the convenience edit methods.
type presenceEntry struct {
	cursor ot.Cursor
	seq    int64
}

// CursorInfo is one active client's cursor, as listed to callers.
type CursorInfo struct {
	ClientID string
	Cursor   ot.Cursor
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		docs:   make(map[string]*docEntry),
	}
}

// CreateDocument creates an empty document owned by ownerID and returns
// its id. The owner holds the full capability set.
func (r *Registry) CreateDocument(title, ownerID string) string {
	id := uuid.NewString()
	perms := newPermissionTable(ownerID)
	doc := document.New(id, title, ownerID)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs[id] = &docEntry{
		ctrl:        NewController(doc, perms, r.logger),
		perms:       perms,
		presence:    make(map[string]*presenceEntry),
		projections: make(map[int]ot.Operation),
	}
	r.logger.Info("document created", "doc", id, "title", title, "owner", ownerID)
	return id
}

// Controller returns the sync controller for a document id.
func (r *Registry) Controller(docID string) (*Controller, bool) {
	e, ok := r.entry(docID)
	if !ok {
		return nil, false
	}
	return e.ctrl, true
}

func (r *Registry) entry(docID string) (*docEntry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.docs[docID]
	return e, ok
}

// Join registers clientID as an active editor of the document, with its
// cursor at the origin, and returns the document's current snapshot so the
// client can seed its local view.
func (r *Registry) Join(docID, clientID string) (rev int, content string, err error) {
	e, ok := r.entry(docID)
	if !ok {
		return 0, "", fmt.Errorf("join: unknown document %q", docID)
	}

	e.mu.Lock()
	if _, joined := e.presence[clientID]; !joined {
		e.presence[clientID] = &presenceEntry{}
	}
	e.mu.Unlock()

	r.logger.Info("client joined", "doc", docID, "client", clientID)
	rev, content = e.ctrl.Snapshot()
	return rev, content, nil
}

// Leave removes clientID from the document's active set and tears down
// its delivery queue. Committed operations are unaffected.
func (r *Registry) Leave(docID, clientID string) {
	e, ok := r.entry(docID)
	if !ok {
		return
	}

	e.mu.Lock()
	delete(e.presence, clientID)
	e.mu.Unlock()

	e.ctrl.Unsubscribe(clientID)
	r.logger.Info("client left", "doc", docID, "client", clientID)
}

// GrantPermission sets clientID's capability set on the document.
func (r *Registry) GrantPermission(docID, clientID string, caps session.Capability) error {
	e, ok := r.entry(docID)
	if !ok {
		return fmt.Errorf("grant: unknown document %q", docID)
	}
	e.perms.grant(clientID, caps)
	r.logger.Info("permission granted", "doc", docID, "client", clientID, "caps", caps.String())
	return nil
}

// Submit forwards an operation from a joined client to the document's
// controller. Clients that never joined are rejected as unauthorized, as
// are clients without Write capability.
func (r *Registry) Submit(ctx context.Context, docID, clientID string, op ot.Operation) (ot.Operation, int, error) {
	e, ok := r.entry(docID)
	if !ok {
		return op, 0, fmt.Errorf("submit: unknown document %q", docID)
	}

	e.mu.Lock()
	_, joined := e.presence[clientID]
	e.mu.Unlock()
	if !joined {
		return op, 0, newUnauthorized(clientID, op.ID)
	}

	committed, rev, err := e.ctrl.Submit(ctx, clientID, op)
	if err != nil {
		return op, 0, err
	}

	e.projectCursors(committed, rev)
	return committed, rev, nil
}

// projectCursors re-projects every active cursor through committed
// operations, by the same rule the text itself transforms by, in commit
// order. Concurrent Submit calls can reach here out of order, so a
// projection arriving early is held until the revisions before it have
// been applied.
func (e *docEntry) projectCursors(op ot.Operation, rev int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.projections[rev] = op
	for {
		next, ok := e.projections[e.projectedRev+1]
		if !ok {
			return
		}
		delete(e.projections, e.projectedRev+1)
		e.projectedRev++

		for id, p := range e.presence {
			if id == next.Author {
				continue // the author's transport reports its own cursor
			}
			p.cursor = ot.AdvanceCursor(p.cursor, next)
		}
	}
}

// InsertText composes and submits an insert on behalf of a joined client,
// based on the document's current revision.
func (r *Registry) InsertText(ctx context.Context, docID, clientID string, pos int, text string) error {
	e, ok := r.entry(docID)
	if !ok {
		return fmt.Errorf("insert: unknown document %q", docID)
	}
	op, ok := e.nextOp(clientID, func(seq int64, base int) ot.Operation {
		return ot.NewInsert(clientID, seq, base, pos, text)
	})
	if !ok {
		return newUnauthorized(clientID, "")
	}
	_, _, err := r.Submit(ctx, docID, clientID, op)
	return err
}

// DeleteText composes and submits a delete on behalf of a joined client.
func (r *Registry) DeleteText(ctx context.Context, docID, clientID string, pos, length int) error {
	e, ok := r.entry(docID)
	if !ok {
		return fmt.Errorf("delete: unknown document %q", docID)
	}
	op, ok := e.nextOp(clientID, func(seq int64, base int) ot.Operation {
		return ot.NewDelete(clientID, seq, base, pos, length)
	})
	if !ok {
		return newUnauthorized(clientID, "")
	}
	_, _, err := r.Submit(ctx, docID, clientID, op)
	return err
}

// nextOp mints the client's next operation against the current revision.
func (e *docEntry) nextOp(clientID string, build func(seq int64, base int) ot.Operation) (ot.Operation, bool) {
	base := e.ctrl.Document().Revision()

	e.mu.Lock()
	defer e.mu.Unlock()
	p, joined := e.presence[clientID]
	if !joined {
		return ot.Operation{}, false
	}
	p.seq++
	return build(p.seq, base), true
}

// UpdateCursor records clientID's cursor as reported by its transport.
func (r *Registry) UpdateCursor(docID, clientID string, cursor ot.Cursor) {
	e, ok := r.entry(docID)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if p, joined := e.presence[clientID]; joined {
		p.cursor = cursor
	}
}

// ActiveCursors lists the joined clients and their cursors, ordered by
// client id for stable output.
func (r *Registry) ActiveCursors(docID string) []CursorInfo {
	e, ok := r.entry(docID)
	if !ok {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]CursorInfo, 0, len(e.presence))
	for id, p := range e.presence {
		out = append(out, CursorInfo{ClientID: id, Cursor: p.cursor})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClientID < out[j].ClientID })
	return out
}

// Content returns the current text of a document.
func (r *Registry) Content(docID string) (string, bool) {
	e, ok := r.entry(docID)
	if !ok {
		return "", false
	}
	return e.ctrl.Document().Content(), true
}

// Documents lists the open document ids, sorted.
func (r *Registry) Documents() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.docs))
	for id := range r.docs {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Snapshot exposes a document's (revision, content) pair for the
// persistence collaborator. ok is false for unknown documents.
func (r *Registry) Snapshot(docID string) (rev int, content string, ok bool) {
	e, found := r.entry(docID)
	if !found {
		return 0, "", false
	}
	rev, content = e.ctrl.Snapshot()
	return rev, content, true
}

// AppendedSince exposes a document's committed operations after rev for
// the persistence collaborator.
func (r *Registry) AppendedSince(docID string, rev int) []ot.Operation {
	e, ok := r.entry(docID)
	if !ok {
		return nil
	}
	return e.ctrl.AppendedSince(rev)
}

// permissionTable is the in-process permission collaborator: a per-document
// capability map with a read-only default for unknown clients.
type permissionTable struct {
	mu    sync.RWMutex
	caps  map[string]session.Capability
	owner string
}

func newPermissionTable(ownerID string) *permissionTable {
	return &permissionTable{
		caps:  map[string]session.Capability{ownerID: session.CapOwner},
		owner: ownerID,
	}
}

func (t *permissionTable) grant(clientID string, caps session.Capability) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.caps[clientID] = caps
}

// HasCapability implements CapabilityChecker. Clients without an explicit
// grant hold read-only access.
func (t *permissionTable) HasCapability(clientID string, want session.Capability) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	caps, ok := t.caps[clientID]
	if !ok {
		caps = session.CapRead
	}
	return caps.Has(want)
}
