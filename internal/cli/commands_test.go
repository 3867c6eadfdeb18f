package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sprintledger/internal/config"
)

func TestSeedDemoThenRecalc(t *testing.T) {
	db := tempDB(t)

	out, err := execute(t, append([]string{"seed", "--demo", "--format", "json"}, db...)...)
	require.NoError(t, err)

	var seeded struct {
		Status string     `json:"status"`
		Data   SeedResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &seeded))
	assert.Equal(t, "ok", seeded.Status)
	assert.Equal(t, "demo", seeded.Data.Source)
	assert.Equal(t, 3, seeded.Data.Created["project"])
	assert.Equal(t, 4, seeded.Data.Created["sprint"])
	assert.NotEmpty(t, seeded.Data.IDs["sprint1"])

	// seeding derived the points already, so a sweep changes nothing
	out, err = execute(t, append([]string{"recalc", "--format", "json"}, db...)...)
	require.NoError(t, err)

	var recalced struct {
		Data RecalcResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &recalced))
	assert.Len(t, recalced.Data.Sprints, 4)
	assert.Equal(t, 0, recalced.Data.Changed)

	out, err = execute(t, append([]string{"recalc", seeded.Data.IDs["sprint1"]}, db...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Recalculated 1 sprint(s), 0 changed")
	assert.Contains(t, out, seeded.Data.IDs["sprint1"]+": 3 -> 3")
}

func TestSeedRequiresOneSource(t *testing.T) {
	_, err := execute(t, append([]string{"seed"}, tempDB(t)...)...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, append([]string{"seed", "--demo", "x.cue"}, tempDB(t)...)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exactly one")
}

func TestSeedFixtureFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "team.cue")
	require.NoError(t, os.WriteFile(path, []byte(`team: sam: {name: "Sam Lee", role: "QA", capacity: 30}`), 0o644))

	out, err := execute(t, append([]string{"seed", path}, tempDB(t)...)...)
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded "+path)
	assert.Contains(t, out, "team_member")
}

func TestSeedBadFixture(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.cue")
	require.NoError(t, os.WriteFile(path, []byte(`team: sam: {name: "Sam"}`), 0o644))

	out, err := execute(t, append([]string{"seed", path}, tempDB(t)...)...)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "failed to load fixture")
}

func TestRecalcUnknownSprint(t *testing.T) {
	out, err := execute(t, append([]string{"recalc", "nope", "--format", "json"}, tempDB(t)...)...)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))

	var resp CLIResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "NOT_FOUND", resp.Error.Code)
}

func TestScenarioCommand(t *testing.T) {
	dir := filepath.Join("..", "harness", "testdata", "scenarios")

	out, err := execute(t, "scenario", dir)
	require.NoError(t, err)
	assert.Contains(t, out, "✓ accepted_points")
	assert.Contains(t, out, "✓ delete_cascade")
	assert.Contains(t, out, "2 passed, 0 failed, 2 total")
}

func TestScenarioCommandSQLiteBackend(t *testing.T) {
	path := filepath.Join("..", "harness", "testdata", "scenarios", "accepted_points.yaml")

	out, err := execute(t, "scenario", path, "--backend", "sqlite", "--format", "json")
	require.NoError(t, err)

	var resp struct {
		Data ScenarioSummary `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, 1, resp.Data.Passed)
}

func TestScenarioCommandFilter(t *testing.T) {
	dir := filepath.Join("..", "harness", "testdata", "scenarios")

	out, err := execute(t, "scenario", dir, "--filter", "delete_*")
	require.NoError(t, err)
	assert.Contains(t, out, "1 passed, 0 failed, 1 total")
}

const failingScenario = `
name: wrong_points
description: "expects points that are never earned"
flow:
  - op: recalc
assertions:
  - type: trace_count
    op: recalc
    count: 2
`

func TestScenarioCommandFailure(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wrong_points.yaml")
	require.NoError(t, os.WriteFile(path, []byte(failingScenario), 0o644))

	out, err := execute(t, "scenario", path)
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Contains(t, out, "✗ wrong_points")
	assert.Contains(t, out, "expected 2 recalc steps, got 1")
}

func TestScenarioCommandGoldenUpdate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sweep.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: sweep\ndescription: d\nflow:\n  - op: recalc\n"), 0o644))

	_, err := execute(t, "scenario", path, "--update")
	require.NoError(t, err)

	golden, err := os.ReadFile(filepath.Join(dir, "golden", "sweep.golden"))
	require.NoError(t, err)
	assert.Contains(t, string(golden), `"op": "recalc"`)

	_, err = execute(t, "scenario", path)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "golden", "sweep.golden"), []byte("{}\n"), 0o644))
	out, err := execute(t, "scenario", path)
	require.Error(t, err)
	assert.Contains(t, out, "does not match golden file")
}

func TestScenarioCommandMissingPath(t *testing.T) {
	_, err := execute(t, "scenario", filepath.Join(t.TempDir(), "absent"))
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestServeAnswersHealthAndStops(t *testing.T) {
	ready := make(chan string, 1)
	opts := &ServeOptions{
		RootOptions: &RootOptions{Format: "text", Config: config.Config{
			AppEnv:         "test",
			DBDriver:       "sqlite",
			DBDSN:          filepath.Join(t.TempDir(), "serve.db"),
			RequestTimeout: time.Second,
			ReconcileCron:  "@every 1h",
			LogLevel:       "error",
			CORSOrigins:    []string{"*"},
		}},
		Addr:  "127.0.0.1:0",
		Ready: ready,
	}

	ctx, cancel := context.WithCancel(context.Background())
	cmd := &cobra.Command{}
	cmd.SetContext(ctx)
	cmd.SetErr(io.Discard)

	done := make(chan error, 1)
	go func() { done <- runServe(opts, cmd) }()

	var addr string
	select {
	case addr = <-ready:
	case err := <-done:
		cancel()
		t.Fatalf("serve exited early: %v", err)
	case <-time.After(10 * time.Second):
		cancel()
		t.Fatal("server did not start")
	}

	resp, err := http.Get(fmt.Sprintf("http://%s/api/health", addr))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeRejectsBadSchedule(t *testing.T) {
	opts := &ServeOptions{RootOptions: &RootOptions{Config: config.Config{
		DBDriver:       "sqlite",
		DBDSN:          filepath.Join(t.TempDir(), "serve.db"),
		RequestTimeout: time.Second,
		ReconcileCron:  "every tuesday",
		LogLevel:       "error",
	}}, Addr: "127.0.0.1:0"}

	cmd := &cobra.Command{}
	cmd.SetErr(io.Discard)
	err := runServe(opts, cmd)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}
