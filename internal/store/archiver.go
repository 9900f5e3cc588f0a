package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cowork-labs/coedit/internal/ot"
)

// Source is the engine surface the archiver pulls from. *collab.Registry
// satisfies it.
type Source interface {
	// Documents lists the open document ids.
	Documents() []string
	// Snapshot returns a consistent (revision, content) pair; ok is false
	// for unknown documents.
	Snapshot(docID string) (rev int, content string, ok bool)
	// AppendedSince returns committed operations after rev, oldest first.
	AppendedSince(docID string, rev int) []ot.Operation
}

// Archiver periodically pulls newly committed operations and snapshots
// from the engine into the store. One archiver per store; documents are
// synced one at a time, resuming from the highest archived revision, so a
// missed tick or restart loses nothing.
type Archiver struct {
	store  *Store
	source Source
	logger *slog.Logger
}

// NewArchiver creates an archiver pulling from source into st.
func NewArchiver(st *Store, source Source, logger *slog.Logger) *Archiver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Archiver{store: st, source: source, logger: logger}
}

// Run pulls on the given interval until ctx is cancelled. Errors are
// logged and retried on the next tick; a flaky disk never reaches the
// engine.
func (a *Archiver) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final pull so a clean shutdown archives everything.
			if err := a.SyncOnce(context.Background()); err != nil {
				a.logger.Error("final archive pull failed", "err", err)
			}
			return
		case <-ticker.C:
			if err := a.SyncOnce(ctx); err != nil {
				a.logger.Error("archive pull failed", "err", err)
			}
		}
	}
}

// SyncOnce pulls every open document once.
func (a *Archiver) SyncOnce(ctx context.Context) error {
	for _, docID := range a.source.Documents() {
		if err := a.syncDoc(ctx, docID); err != nil {
			return fmt.Errorf("sync %s: %w", docID, err)
		}
	}
	return nil
}

func (a *Archiver) syncDoc(ctx context.Context, docID string) error {
	last, err := a.store.MaxRevision(ctx, docID)
	if err != nil {
		return err
	}

	// Snapshot before ops: commits landing in between leave the snapshot
	// behind the oplog, never ahead of it.
	rev, content, ok := a.source.Snapshot(docID)

	ops := a.source.AppendedSince(docID, last)
	if len(ops) > 0 {
		if err := a.store.AppendOps(ctx, docID, last+1, ops); err != nil {
			return err
		}
		a.logger.Debug("archived operations", "doc", docID, "from", last+1, "count", len(ops))
	}

	// Checkpoint only what the archived oplog covers, so replaying the
	// archive can always reach the snapshot revision.
	if !ok || rev > last+len(ops) {
		return nil
	}
	return a.store.SaveSnapshot(ctx, docID, rev, content)
}
