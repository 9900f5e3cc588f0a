package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingScenario = `
name: smoke
document: {title: Smoke, owner: a}
clients:
  - {id: a, capability: owner}
steps:
  - client: a
    insert: {pos: 0, text: hi}
    expect: {revision: 1}
final:
  content: hi
  revision: 1
`

const failingScenario = `
name: doomed
document: {title: Doomed, owner: a}
clients:
  - {id: a, capability: owner}
steps:
  - client: a
    insert: {pos: 0, text: hi}
final:
  content: nope
`

func writeScenario(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestTestCommand_Pass(t *testing.T) {
	dir := t.TempDir()
	path := writeScenario(t, dir, "smoke.yaml", passingScenario)

	out, err := runCommand(t, "test", path)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ smoke")
	assert.Contains(t, out, "1 scenario(s) passed")
}

func TestTestCommand_Fail(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "smoke.yaml", passingScenario)
	writeScenario(t, dir, "doomed.yaml", failingScenario)

	out, err := runCommand(t, "test", "--dir", dir)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ doomed")
	assert.Contains(t, out, "✓ smoke")
	assert.Contains(t, out, "1 of 2 scenario(s) failed")
}

func TestTestCommand_Filter(t *testing.T) {
	dir := t.TempDir()
	writeScenario(t, dir, "smoke.yaml", passingScenario)
	writeScenario(t, dir, "doomed.yaml", failingScenario)

	out, err := runCommand(t, "test", "--dir", dir, "--filter", "smoke")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ smoke")
	assert.NotContains(t, out, "doomed")
}

func TestTestCommand_NoScenarios(t *testing.T) {
	_, err := runCommand(t, "test")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
