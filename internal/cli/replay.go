package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cowork-labs/coedit/internal/ot"
	"github.com/cowork-labs/coedit/internal/store"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Database string
	DocID    string // optional - specific document only
}

// ReplayDocResult holds the replay result for a single document.
type ReplayDocResult struct {
	DocID            string `json:"doc_id"`
	Revisions        int    `json:"revisions"`
	Inserts          int    `json:"inserts"`
	Deletes          int    `json:"deletes"`
	SnapshotRevision int    `json:"snapshot_revision"`
	HasSnapshot      bool   `json:"has_snapshot"`
	Consistent       bool   `json:"consistent"`
}

// ReplayResult holds the overall replay result.
type ReplayResult struct {
	Docs          []ReplayDocResult `json:"docs"`
	TotalDocs     int               `json:"total_docs"`
	AllConsistent bool              `json:"all_consistent"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay archived operation logs and verify snapshots",
		Long: `Replay each document's archived operation log from the empty document
and verify that the result at the snapshot revision matches the archived
snapshot content.

Exit codes:
  0 - All documents are consistent
  1 - Verification failed (replay diverges from a snapshot)
  2 - Command error (database not found, etc.)

Examples:
  coedit replay --db ./coedit.db
  coedit replay --db ./coedit.db --doc 4f5b2c
  coedit replay --db ./coedit.db --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.DocID, "doc", "", "replay specific document only")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	// Open database
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	// Get documents to process
	var docIDs []string
	if opts.DocID != "" {
		docIDs = []string{opts.DocID}
	} else {
		docIDs, err = st.Documents(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list documents", err)
		}
	}

	if len(docIDs) == 0 {
		if opts.Format == "json" {
			result := ReplayResult{
				Docs:          []ReplayDocResult{},
				TotalDocs:     0,
				AllConsistent: true,
			}
			return outputReplayJSON(cmd, result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "No documents found in database.")
		return nil
	}

	// Process each document
	result := ReplayResult{
		Docs:          make([]ReplayDocResult, 0, len(docIDs)),
		TotalDocs:     len(docIDs),
		AllConsistent: true,
	}

	for _, docID := range docIDs {
		docResult, err := replayAndVerifyDoc(ctx, st, docID)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to replay document %s", docID), err)
		}

		result.Docs = append(result.Docs, docResult)
		if !docResult.Consistent {
			result.AllConsistent = false
		}
	}

	// Output results
	if opts.Format == "json" {
		return outputReplayJSON(cmd, result)
	}

	return outputReplayText(cmd, result, opts.Verbose)
}

// replayAndVerifyDoc replays a document's oplog and checks it against the
// archived snapshot.
func replayAndVerifyDoc(ctx context.Context, st *store.Store, docID string) (ReplayDocResult, error) {
	ops, err := st.ReadOps(ctx, docID, 0)
	if err != nil {
		return ReplayDocResult{}, err
	}

	result := ReplayDocResult{
		DocID:      docID,
		Revisions:  len(ops),
		Consistent: true,
	}
	for _, op := range ops {
		switch op.Kind {
		case ot.KindInsert:
			result.Inserts++
		case ot.KindDelete:
			result.Deletes++
		}
	}

	snap, err := st.ReadSnapshot(ctx, docID)
	if err == store.ErrNoSnapshot {
		// Nothing to verify against; the oplog alone is the document.
		return result, nil
	}
	if err != nil {
		return ReplayDocResult{}, err
	}
	result.HasSnapshot = true
	result.SnapshotRevision = snap.Revision

	// Revisions are contiguous from 1, so the first N ops reconstruct the
	// content at revision N.
	if snap.Revision > len(ops) {
		result.Consistent = false
		return result, nil
	}
	replayed, err := ot.ApplyAll(nil, ops[:snap.Revision])
	if err != nil {
		result.Consistent = false
		return result, nil
	}
	result.Consistent = string(replayed) == snap.Content
	return result, nil
}

// outputReplayJSON outputs the replay result as JSON.
func outputReplayJSON(cmd *cobra.Command, result ReplayResult) error {
	response := CLIResponse{
		Status: "ok",
		Data:   result,
	}

	if !result.AllConsistent {
		response.Status = "error"
		response.Error = &CLIError{
			Code:    "E_CONSISTENCY",
			Message: "snapshot verification failed",
		}
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(response); err != nil {
		return err
	}

	if !result.AllConsistent {
		// Verification failure = exit code 1
		return NewExitError(ExitFailure, "snapshot verification failed")
	}
	return nil
}

// outputReplayText outputs the replay result as text.
func outputReplayText(cmd *cobra.Command, result ReplayResult, verbose bool) error {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "Replay Summary: %d document(s)\n", result.TotalDocs)
	fmt.Fprintln(w)

	for _, doc := range result.Docs {
		status := "✓"
		if !doc.Consistent {
			status = "✗"
		}

		fmt.Fprintf(w, "%s Document: %s\n", status, doc.DocID)

		if verbose {
			fmt.Fprintf(w, "  Revisions: %d\n", doc.Revisions)
			fmt.Fprintf(w, "  Inserts: %d\n", doc.Inserts)
			fmt.Fprintf(w, "  Deletes: %d\n", doc.Deletes)
			if doc.HasSnapshot {
				fmt.Fprintf(w, "  Snapshot Revision: %d\n", doc.SnapshotRevision)
			} else {
				fmt.Fprintln(w, "  Snapshot: none")
			}
		} else {
			fmt.Fprintf(w, "  Revisions: %d (%d inserts, %d deletes)\n", doc.Revisions, doc.Inserts, doc.Deletes)
		}

		if !doc.Consistent {
			fmt.Fprintln(w, "  Warning: Replay diverges from archived snapshot!")
		}
		fmt.Fprintln(w)
	}

	if result.AllConsistent {
		fmt.Fprintln(w, "✓ All documents verified consistent")
		return nil
	}

	fmt.Fprintln(w, "✗ Snapshot verification failed")
	// Verification failure = exit code 1
	return NewExitError(ExitFailure, "snapshot verification failed")
}
