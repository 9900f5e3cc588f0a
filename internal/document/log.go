package document

import (
	"sync"

	"github.com/cowork-labs/coedit/internal/ot"
)

// Log is the append-only revision log for one document: the event-sourcing
// record of every accepted operation, in commit order.
//
// Revision numbers are 1-based: the entry committed as revision n is
// entries[n-1], and Len() is always the current document revision. Entries
// are never mutated or removed while the document is live; compaction is an
// external collaborator's concern.
//
// Thread-safety: Append is called only under the owning document's commit
// lock, but EntriesSince may be called from any goroutine (the transform
// phase reads history without holding the commit lock), so the log carries
// its own read lock.
type Log struct {
	mu      sync.RWMutex
	entries []ot.Operation
}

// NewLog returns an empty log.
func NewLog() *Log {
	return &Log{}
}

// Append records op as the next revision and returns that revision number.
func (l *Log) Append(op ot.Operation) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, op)
	return len(l.entries)
}

// Len returns the number of entries, which equals the current revision.
func (l *Log) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.entries)
}

// EntriesSince returns a copy of every entry with revision greater than
// rev, oldest first. A rev at or past the end returns nil.
func (l *Log) EntriesSince(rev int) []ot.Operation {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if rev < 0 {
		rev = 0
	}
	if rev >= len(l.entries) {
		return nil
	}
	out := make([]ot.Operation, len(l.entries)-rev)
	copy(out, l.entries[rev:])
	return out
}

// Entries returns a copy of the full history, oldest first.
func (l *Log) Entries() []ot.Operation {
	return l.EntriesSince(0)
}
