package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/cowork-labs/coedit/internal/ot"
)

// ReadOps returns docID's archived operations in revision order, starting
// after afterRev.
func (s *Store) ReadOps(ctx context.Context, docID string, afterRev int) ([]ot.Operation, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT op_id, author, kind, position, payload, length, base_revision
		FROM operations
		WHERE doc_id = ? AND revision > ?
		ORDER BY revision`,
		docID, afterRev)
	if err != nil {
		return nil, fmt.Errorf("read ops: %w", err)
	}
	defer rows.Close()

	var ops []ot.Operation
	for rows.Next() {
		var op ot.Operation
		var kind string
		if err := rows.Scan(&op.ID, &op.Author, &kind, &op.Pos, &op.Text, &op.Length, &op.Base); err != nil {
			return nil, fmt.Errorf("read ops: scan: %w", err)
		}
		switch kind {
		case "insert":
			op.Kind = ot.KindInsert
		case "delete":
			op.Kind = ot.KindDelete
		default:
			return nil, fmt.Errorf("read ops: unknown kind %q for op %s", kind, op.ID)
		}
		ops = append(ops, op)
	}
	return ops, rows.Err()
}

// MaxRevision returns the highest archived revision for docID, or 0 if
// nothing is archived yet.
func (s *Store) MaxRevision(ctx context.Context, docID string) (int, error) {
	var rev sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT MAX(revision) FROM operations WHERE doc_id = ?`, docID).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("max revision: %w", err)
	}
	return int(rev.Int64), nil
}

// Snapshot is an archived checkpoint.
type Snapshot struct {
	DocID    string
	Revision int
	Content  string
}

// ErrNoSnapshot is returned when a document has no archived snapshot.
var ErrNoSnapshot = errors.New("no snapshot archived")

// ReadSnapshot returns the latest archived snapshot for docID.
func (s *Store) ReadSnapshot(ctx context.Context, docID string) (Snapshot, error) {
	snap := Snapshot{DocID: docID}
	err := s.db.QueryRowContext(ctx,
		`SELECT revision, content FROM snapshots WHERE doc_id = ?`, docID).
		Scan(&snap.Revision, &snap.Content)
	if errors.Is(err, sql.ErrNoRows) {
		return snap, ErrNoSnapshot
	}
	if err != nil {
		return snap, fmt.Errorf("read snapshot: %w", err)
	}
	return snap, nil
}

// Documents lists every document id present in the archive, sorted.
func (s *Store) Documents(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT doc_id FROM operations
		UNION SELECT doc_id FROM snapshots
		ORDER BY doc_id`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("list documents: scan: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
