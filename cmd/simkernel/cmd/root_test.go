package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"simkernel/trace"
)

// Executes the root command with args and returns what it printed
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cfgPairs, cfgFile, logLevel, tracePath, exportTree, stopAtFirst = nil, "", "", "", false, false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args, "--log-level", "warn"))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestScenarios(t *testing.T) {
	out, err := execute(t, "scenarios")
	require.NoError(t, err)
	assert.Contains(t, out, "client-server")
	assert.Contains(t, out, "reliable-broadcast")
}

func TestRun(t *testing.T) {
	out, err := execute(t, "run", "client-server", "--cfg", "contexts/factory:thread")
	require.NoError(t, err)
	assert.Contains(t, out, "Outcome: completed")
	assert.Contains(t, out, "Trace: 1;2;3;4;2;1;3;4;1;1")

	_, err = execute(t, "run", "missing")
	assert.Error(t, err)

	_, err = execute(t, "run", "client-server", "--cfg", "contexts/factory:fiber")
	assert.Error(t, err)
}

func TestExploreAndReplay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failure.json")
	out, err := execute(t, "explore", "client-server", "--trace", path)
	require.Error(t, err)
	assert.Contains(t, out, "Predicate broken")
	// The exploration goes on after the first violation and reports all of them
	assert.Contains(t, out, "failing runs:")
	assert.Greater(t, strings.Count(out, "  assertion-violation "), 1)

	recorded, err := trace.Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, recorded)

	out, err = execute(t, "replay", "client-server", path)
	assert.Error(t, err)
	assert.Contains(t, out, "Outcome: assertion-violation")
	assert.Contains(t, out, "Trace: "+recorded.String())

	out, err = execute(t, "replay", "client-server", recorded.String())
	assert.Error(t, err)
	assert.Contains(t, out, "Outcome: assertion-violation")
}

func TestExploreStopAtFirst(t *testing.T) {
	out, err := execute(t, "explore", "client-server", "--stop-at-first", "--cfg", "model-check/num-concurrent:1")
	require.Error(t, err)
	assert.Contains(t, out, "1 failing runs")
}

func TestExploreCorrectScenario(t *testing.T) {
	out, err := execute(t, "explore", "philosophers-ordered", "--tree", "--cfg", "model-check/num-concurrent:2")
	require.NoError(t, err)
	assert.Contains(t, out, "All predicates hold")
	assert.Contains(t, out, "\"0\";")
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "simkernel.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model-check:\n  guide: random\n  max-runs: 3\n"), 0o644))
	out, err := execute(t, "explore", "philosophers-ordered", "--config", path)
	require.NoError(t, err)
	assert.Contains(t, out, " 3 runs")
}
