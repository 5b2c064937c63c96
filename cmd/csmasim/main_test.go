package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/csma-simulator/internal/sweep"
	"github.com/signalsfoundry/csma-simulator/kb"
)

func execute(t *testing.T, ctx context.Context, args ...string) (string, string, error) {
	t.Helper()
	cmd := newRootCmd()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	if ctx == nil {
		ctx = context.Background()
	}
	err := cmd.ExecuteContext(ctx)
	return stdout.String(), stderr.String(), err
}

func TestRunPrintsTable(t *testing.T) {
	out, _, err := execute(t, nil, "run", "--duration", "0.2")
	require.NoError(t, err)

	assert.Contains(t, out, "Scenario: hidden-terminal")
	for _, id := range []string{"A", "B", "AP"} {
		assert.Contains(t, out, "\n"+id+" ")
	}
	assert.Contains(t, out, "Throughput:")
	assert.Contains(t, out, "Utilization:")
}

func TestRunJSONOutput(t *testing.T) {
	out, _, err := execute(t, nil, "run", "--duration", "0.2", "--rate", "500", "--output", "json", "--delays")
	require.NoError(t, err)

	var rec kb.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	require.NotNil(t, rec.Result)
	assert.Equal(t, 500.0, rec.ArrivalRate)
	assert.Len(t, rec.Result.Delays, rec.Summary.Successes)
	for _, st := range rec.Result.Stations {
		assert.Equal(t, 500.0, st.ArrivalRate)
	}
}

func TestRunIsReproducible(t *testing.T) {
	first, _, err := execute(t, nil, "run", "--duration", "0.2", "--seed", "9", "-o", "yaml")
	require.NoError(t, err)
	second, _, err := execute(t, nil, "run", "--duration", "0.2", "--seed", "9", "-o", "yaml")
	require.NoError(t, err)

	var a, b kb.Record
	require.NoError(t, yaml.Unmarshal([]byte(first), &a))
	require.NoError(t, yaml.Unmarshal([]byte(second), &b))
	assert.Equal(t, a.Summary, b.Summary)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestRunScenarioFile(t *testing.T) {
	out, _, err := execute(t, nil, "run", "-s", "../../examples/scenarios/saturated_bss.json", "--duration", "0.1", "-o", "json")
	require.NoError(t, err)

	var rec kb.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, "saturated-bss", rec.Scenario)
	assert.Len(t, rec.Result.Stations, 4)
}

func TestRunRejectsBadInput(t *testing.T) {
	_, _, err := execute(t, nil, "run", "--output", "xml")
	assert.ErrorContains(t, err, "unknown output format")

	_, _, err = execute(t, nil, "run", "-s", "does-not-exist.yaml")
	assert.Error(t, err)

	_, _, err = execute(t, nil, "run", "--duration", "-1")
	assert.ErrorContains(t, err, "duration must be positive")
}

func TestRunEventLogWritesDebugLines(t *testing.T) {
	_, stderr, err := execute(t, nil, "run", "--duration", "0.1", "--rate", "1000", "--event-log", "--log-level", "debug")
	require.NoError(t, err)
	assert.Contains(t, stderr, "frame delivered")
	assert.Contains(t, stderr, "simulation finished")
}

func TestSweepTable(t *testing.T) {
	out, _, err := execute(t, nil, "sweep", "--duration", "0.1", "--rates", "300,100", "--workers", "2")
	require.NoError(t, err)

	assert.Contains(t, out, "Rate (fps)")
	i100 := bytes.Index([]byte(out), []byte("\n100 "))
	i300 := bytes.Index([]byte(out), []byte("\n300 "))
	require.True(t, i100 > 0 && i300 > 0, out)
	assert.Less(t, i100, i300, "rows are ordered by rate")
}

func TestSweepRatesFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "csmasim.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("rates: [200, 400]\nduration: 0.1\noutput: json\n"), 0o600))

	out, _, err := execute(t, nil, "sweep", "--config", cfgPath)
	require.NoError(t, err)

	var res sweep.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Len(t, res.Points, 2)
	assert.Equal(t, 200.0, res.Points[0].ArrivalRate)
	assert.Equal(t, 400.0, res.Points[1].ArrivalRate)
}

func TestEnvironmentOverridesDefaults(t *testing.T) {
	t.Setenv("CSMASIM_DURATION", "0.1")
	t.Setenv("CSMASIM_OUTPUT", "json")

	out, _, err := execute(t, nil, "run")
	require.NoError(t, err)

	var rec kb.Record
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, 0.1, rec.Result.DurationSeconds)
}

func TestServeStopsWhenContextEnds(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, stderr, err := execute(t, ctx, "serve", "--listen", "127.0.0.1:0", "--grpc-listen", "127.0.0.1:0")
	require.NoError(t, err)
	assert.Contains(t, stderr, "serving HTTP API")
	assert.Contains(t, stderr, "shutting down")
}

func TestParseRates(t *testing.T) {
	rates, err := parseRates([]string{"100, 200", "300"})
	require.NoError(t, err)
	assert.Equal(t, []float64{100, 200, 300}, rates)

	_, err = parseRates([]string{"fast"})
	assert.Error(t, err)
}
