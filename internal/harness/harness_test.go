package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScenarios(t *testing.T) {
	paths, err := filepath.Glob(filepath.Join("testdata", "scenarios", "*.yaml"))
	require.NoError(t, err)
	require.NotEmpty(t, paths, "no scenario files found")

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			scenario, err := LoadScenario(path)
			require.NoError(t, err)

			result, err := Run(scenario)
			require.NoError(t, err)
			require.Truef(t, result.Passed(), "expectation failures:\n%s", FailureReport(result))

			AssertGolden(t, result)
		})
	}
}

func TestLoadScenario_Validation(t *testing.T) {
	cases := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name: "missing name",
			yaml: `
document: {title: T, owner: a}
clients: [{id: a, capability: owner}]
`,
			wantErr: "name is required",
		},
		{
			name: "missing owner",
			yaml: `
name: x
clients: [{id: a, capability: owner}]
`,
			wantErr: "document.owner is required",
		},
		{
			name: "unknown client in step",
			yaml: `
name: x
document: {title: T, owner: a}
clients: [{id: a, capability: owner}]
steps:
  - client: ghost
    insert: {pos: 0, text: hi}
`,
			wantErr: `unknown client "ghost"`,
		},
		{
			name: "step with both insert and delete",
			yaml: `
name: x
document: {title: T, owner: a}
clients: [{id: a, capability: owner}]
steps:
  - client: a
    insert: {pos: 0, text: hi}
    delete: {pos: 0, length: 1}
`,
			wantErr: "exactly one of insert or delete",
		},
		{
			name: "step with neither",
			yaml: `
name: x
document: {title: T, owner: a}
clients: [{id: a, capability: owner}]
steps:
  - client: a
`,
			wantErr: "exactly one of insert or delete",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "scenario.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tc.yaml), 0o644))

			_, err := LoadScenario(path)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}

func TestRun_ReportsExpectationFailures(t *testing.T) {
	wrongPos := 42
	scenario := &Scenario{
		Name:     "wrong-expectation",
		Document: DocumentSpec{Title: "T", Owner: "a"},
		Clients:  []ClientSpec{{ID: "a", Capability: "owner"}},
		Steps: []Step{{
			Client: "a",
			Insert: &InsertSpec{Pos: 0, Text: "hi"},
			Expect: &ExpectSpec{Pos: &wrongPos},
		}},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Passed())
	require.Len(t, result.Failures, 1)
	assert.Contains(t, result.Failures[0], "expected position 42")
}
