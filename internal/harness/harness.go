// Package harness runs conformance scenarios against the real sync
// engine: a registry, a document, and a set of clients submitting edits
// through the same path production traffic takes. The committed-operation
// trace is deterministic and compared against golden files.
package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/cowork-labs/coedit/internal/collab"
	"github.com/cowork-labs/coedit/internal/ot"
	"github.com/cowork-labs/coedit/internal/session"
)

// TraceOp is the committed operation recorded in a trace event.
type TraceOp struct {
	ID     string `json:"id"`
	Author string `json:"author"`
	Kind   string `json:"kind"`
	Pos    int    `json:"pos"`
	Text   string `json:"text,omitempty"`
	Length int    `json:"length,omitempty"`
}

// TraceEvent is one outcome in a scenario's trace: a commit or a
// rejection, in step order.
type TraceEvent struct {
	Type     string   `json:"type"` // "commit" or "reject"
	Revision int      `json:"revision,omitempty"`
	Op       *TraceOp `json:"op,omitempty"`
	Client   string   `json:"client,omitempty"`
	Code     string   `json:"code,omitempty"`
}

// Result is a scenario execution result.
type Result struct {
	Name          string
	Trace         []TraceEvent
	FinalContent  string
	FinalRevision int

	// Failures lists expectation mismatches; empty means the scenario
	// passed.
	Failures []string
}

// Passed reports whether every expectation held.
func (r *Result) Passed() bool {
	return len(r.Failures) == 0
}

// Run executes a scenario against a fresh registry and returns the
// result. Steps run sequentially, so the trace is deterministic.
func Run(scenario *Scenario) (*Result, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := collab.NewRegistry(logger)
	ctx := context.Background()

	docID := reg.CreateDocument(scenario.Document.Title, scenario.Document.Owner)
	for _, c := range scenario.Clients {
		if _, _, err := reg.Join(docID, c.ID); err != nil {
			return nil, fmt.Errorf("join %s: %w", c.ID, err)
		}
		if c.ID == scenario.Document.Owner {
			continue // owner's grant comes from document creation
		}
		caps := session.ParseCapability(c.Capability)
		if err := reg.GrantPermission(docID, c.ID, caps); err != nil {
			return nil, fmt.Errorf("grant %s: %w", c.ID, err)
		}
	}

	result := &Result{Name: scenario.Name}
	seqs := make(map[string]int64, len(scenario.Clients))
	ctrl, _ := reg.Controller(docID)

	for i, step := range scenario.Steps {
		base := ctrl.Document().Revision()
		if step.Base != nil {
			base = *step.Base
		}
		seqs[step.Client]++
		op := buildOp(step, seqs[step.Client], base)

		committed, rev, err := reg.Submit(ctx, docID, step.Client, op)
		if err != nil {
			var re *collab.RejectError
			if !errors.As(err, &re) {
				return nil, fmt.Errorf("step %d: %w", i, err)
			}
			result.Trace = append(result.Trace, TraceEvent{
				Type:   "reject",
				Client: step.Client,
				Code:   string(re.Code),
			})
			checkReject(result, i, step, re)
			continue
		}

		result.Trace = append(result.Trace, TraceEvent{
			Type:     "commit",
			Revision: rev,
			Op: &TraceOp{
				ID:     committed.ID,
				Author: committed.Author,
				Kind:   committed.Kind.String(),
				Pos:    committed.Pos,
				Text:   committed.Text,
				Length: committed.Length,
			},
		})
		checkCommit(result, i, step, committed, rev)
	}

	content, _ := reg.Content(docID)
	result.FinalContent = content
	result.FinalRevision = ctrl.Document().Revision()
	checkFinal(result, scenario.Final)
	return result, nil
}

func buildOp(step Step, seq int64, base int) ot.Operation {
	if step.Insert != nil {
		return ot.NewInsert(step.Client, seq, base, step.Insert.Pos, step.Insert.Text)
	}
	return ot.NewDelete(step.Client, seq, base, step.Delete.Pos, step.Delete.Length)
}

func checkReject(result *Result, i int, step Step, re *collab.RejectError) {
	if step.Expect == nil || step.Expect.Reject == "" {
		result.fail("step %d: unexpected rejection %s", i, re.Code)
		return
	}
	if string(re.Code) != step.Expect.Reject {
		result.fail("step %d: expected rejection %s, got %s", i, step.Expect.Reject, re.Code)
	}
}

func checkCommit(result *Result, i int, step Step, committed ot.Operation, rev int) {
	if step.Expect == nil {
		return
	}
	if step.Expect.Reject != "" {
		result.fail("step %d: expected rejection %s, but committed as revision %d", i, step.Expect.Reject, rev)
		return
	}
	if step.Expect.Pos != nil && committed.Pos != *step.Expect.Pos {
		result.fail("step %d: expected position %d, got %d", i, *step.Expect.Pos, committed.Pos)
	}
	if step.Expect.Revision != nil && rev != *step.Expect.Revision {
		result.fail("step %d: expected revision %d, got %d", i, *step.Expect.Revision, rev)
	}
}

func checkFinal(result *Result, final FinalSpec) {
	if final.Content != nil && result.FinalContent != *final.Content {
		result.fail("final content: expected %q, got %q", *final.Content, result.FinalContent)
	}
	if final.Revision != nil && result.FinalRevision != *final.Revision {
		result.fail("final revision: expected %d, got %d", *final.Revision, result.FinalRevision)
	}
}

func (r *Result) fail(format string, args ...any) {
	r.Failures = append(r.Failures, fmt.Sprintf(format, args...))
}
