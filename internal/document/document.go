// Package document holds the materialized state of one collaborative
// document: the text buffer, the revision counter, and the append-only
// revision log that produced them.
//
// INVARIANTS:
//   - Revision() always equals the log length.
//   - Content() is always exactly the result of replaying the log, in
//     order, against the empty document.
//
// Both are maintained by making Commit the only mutation path: it appends
// to the log and applies to the buffer under one lock.
package document

import (
	"sync"

	"github.com/cowork-labs/coedit/internal/ot"
)

// Document is the shared state many sessions read and the sync controller
// alone mutates.
type Document struct {
	// ID is the registry-assigned document identifier.
	ID string

	// Title and Owner come from document creation and never change.
	Title string
	Owner string

	mu      sync.RWMutex
	content []rune
	log     *Log
}

// New creates an empty document at revision 0.
func New(id, title, owner string) *Document {
	return &Document{
		ID:    id,
		Title: title,
		Owner: owner,
		log:   NewLog(),
	}
}

// Revision returns the current revision number.
func (d *Document) Revision() int {
	return d.log.Len()
}

// Content returns the current text.
func (d *Document) Content() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return string(d.content)
}

// Snapshot returns the revision and content as one consistent pair, for
// the persistence collaborator to pull.
func (d *Document) Snapshot() (int, string) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.log.Len(), string(d.content)
}

// EntriesSince returns the committed operations with revision greater than
// rev, oldest first.
func (d *Document) EntriesSince(rev int) []ot.Operation {
	return d.log.EntriesSince(rev)
}

// Commit is the single serialization point: it transforms op against any
// entries committed after fromRev (the revision op is currently expressed
// against), bounds-checks it, applies it to the buffer, and appends it to
// the log - all under one lock, so revision numbers never collide.
//
// The fromRev re-transform closes the race the controller leaves open on
// purpose: transformation against the bulk of history happens without the
// lock, and any operations that committed in the meantime are caught up
// with here before the append. Returns the final transformed operation and
// the revision it committed as.
//
// A bounds failure returns an *ot.BoundsError and leaves both the buffer
// and the log untouched.
func (d *Document) Commit(op ot.Operation, fromRev int) (ot.Operation, int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	op = ot.TransformAll(op, d.log.EntriesSince(fromRev))

	next, err := ot.Apply(d.content, op)
	if err != nil {
		return op, d.log.Len(), err
	}
	d.content = next
	rev := d.log.Append(op)
	return op, rev, nil
}

// Replay reconstructs the content at revision rev by replaying the log
// from the beginning. It never touches the live buffer; the result is
// computed on a fresh one.
func (d *Document) Replay(rev int) (string, error) {
	entries := d.log.Entries()
	if rev >= 0 && rev < len(entries) {
		entries = entries[:rev]
	}
	out, err := ot.ApplyAll(nil, entries)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
