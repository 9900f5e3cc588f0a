package harness

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// TraceSnapshot is the serialized form compared against golden files.
type TraceSnapshot struct {
	ScenarioName  string       `json:"scenario_name"`
	Trace         []TraceEvent `json:"trace"`
	FinalContent  string       `json:"final_content"`
	FinalRevision int          `json:"final_revision"`
}

// AssertGolden compares a result's trace snapshot against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, result *Result) {
	t.Helper()

	snap := TraceSnapshot{
		ScenarioName:  result.Name,
		Trace:         result.Trace,
		FinalContent:  result.FinalContent,
		FinalRevision: result.FinalRevision,
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		t.Fatalf("marshal trace snapshot: %v", err)
	}
	data = append(data, '\n')

	g := goldie.New(t, goldie.WithFixtureDir("testdata/golden"))
	g.Assert(t, result.Name, data)
}

// FailureReport renders expectation failures for test output.
func FailureReport(result *Result) string {
	out := ""
	for _, f := range result.Failures {
		out += fmt.Sprintf("  - %s\n", f)
	}
	return out
}
