package store

import (
	"context"
	"fmt"

	"github.com/cowork-labs/coedit/internal/ot"
)

// AppendOps archives ops for docID in one transaction. startRev is the
// revision the first op committed as; subsequent ops occupy consecutive
// revisions. Re-archiving an already-stored revision fails on the primary
// key, which keeps the archive append-only.
func (s *Store) AppendOps(ctx context.Context, docID string, startRev int, ops []ot.Operation) error {
	if len(ops) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("append ops: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO operations (doc_id, revision, op_id, author, kind, position, payload, length, base_revision)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("append ops: prepare: %w", err)
	}
	defer stmt.Close()

	for i, op := range ops {
		rev := startRev + i
		_, err := stmt.ExecContext(ctx, docID, rev, op.ID, op.Author,
			op.Kind.String(), op.Pos, op.Text, op.Length, op.Base)
		if err != nil {
			return fmt.Errorf("append ops: revision %d: %w", rev, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("append ops: commit: %w", err)
	}
	return nil
}

// SaveSnapshot records the latest checkpoint for docID, replacing any
// previous one. Snapshots only ever move forward.
func (s *Store) SaveSnapshot(ctx context.Context, docID string, rev int, content string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (doc_id, revision, content)
		VALUES (?, ?, ?)
		ON CONFLICT (doc_id) DO UPDATE
		SET revision = excluded.revision,
		    content  = excluded.content,
		    taken_at = strftime('%Y-%m-%dT%H:%M:%fZ', 'now')
		WHERE excluded.revision >= snapshots.revision`,
		docID, rev, content)
	if err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}
