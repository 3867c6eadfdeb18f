package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sprintledger/internal/harness"
	"github.com/roach88/sprintledger/internal/record"
	"github.com/roach88/sprintledger/internal/store"
)

// Scenario store backends.
const (
	BackendMemory = "memory"
	BackendSQLite = "sqlite"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Update  bool   // regenerate golden files
	Filter  string // glob on scenario names
	Backend string
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name   string   `json:"name"`
	Pass   bool     `json:"pass"`
	Errors []string `json:"errors,omitempty"`
}

// ScenarioSummary holds the overall result.
type ScenarioSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <file.yaml|dir>...",
		Short: "Run YAML scenarios against a fresh tracker",
		Long: `Run YAML scenarios against a fresh tracker.

Each scenario runs on an empty store with a fixed clock and sequential ids.
When <dir>/golden/<name>.golden exists next to a scenario, the trace must
match it as well.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  sprintledger scenario ./scenarios
  sprintledger scenario ./scenarios/delete_task.yaml --backend sqlite
  sprintledger scenario ./scenarios --filter "delete_*" --update`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")
	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Backend, "backend", BackendMemory, "store backend: memory or sqlite (in-memory database)")
	return cmd
}

func runScenarios(opts *ScenarioOptions, paths []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)
	if opts.Backend != BackendMemory && opts.Backend != BackendSQLite {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid backend %q: must be %s or %s", opts.Backend, BackendMemory, BackendSQLite))
	}

	var files []string
	for _, p := range paths {
		found, err := findScenarioFiles(p, opts.Filter)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to find scenarios", err)
		}
		files = append(files, found...)
	}

	summary := ScenarioSummary{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}
	w := io.Discard
	if opts.Format != "json" {
		w = cmd.OutOrStdout()
	}
	for _, f := range files {
		res := runScenarioFile(opts, f, cmd)
		summary.Scenarios = append(summary.Scenarios, res)
		if res.Pass {
			summary.Passed++
			fmt.Fprintf(w, "✓ %s\n", res.Name)
			continue
		}
		summary.Failed++
		fmt.Fprintf(w, "✗ %s\n", res.Name)
		for _, e := range res.Errors {
			fmt.Fprintf(w, "  %s\n", e)
		}
	}

	text := fmt.Sprintf("\nScenario Summary: %d passed, %d failed, %d total", summary.Passed, summary.Failed, summary.Total)
	if summary.Total == 0 {
		text = "No scenarios found."
	}
	if summary.Failed > 0 {
		if opts.Format == "json" {
			if err := out.Error(CodeScenarioFailed, fmt.Sprintf("%d scenario(s) failed", summary.Failed), summary); err != nil {
				return err
			}
		} else {
			fmt.Fprintln(w, text)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return out.Success(summary, text)
}

// findScenarioFiles returns path itself or the YAML files under it.
func findScenarioFiles(path, filter string) ([]string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return []string{path}, nil
	}

	var files []string
	err = filepath.WalkDir(path, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if d.Name() == "golden" {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(p)
		if ext != ".yaml" && ext != ".yml" {
			return nil
		}
		if filter != "" {
			name := strings.TrimSuffix(filepath.Base(p), ext)
			matched, err := filepath.Match(filter, name)
			if err != nil {
				return fmt.Errorf("invalid filter pattern: %w", err)
			}
			if !matched {
				return nil
			}
		}
		files = append(files, p)
		return nil
	})
	return files, err
}

func runScenarioFile(opts *ScenarioOptions, path string, cmd *cobra.Command) ScenarioResult {
	base := filepath.Base(path)
	s, err := harness.LoadScenario(path)
	if err != nil {
		return ScenarioResult{Name: base, Errors: []string{fmt.Sprintf("failed to load scenario: %v", err)}}
	}

	st, closeStore, err := scenarioStore(opts.Backend)
	if err != nil {
		return ScenarioResult{Name: s.Name, Errors: []string{fmt.Sprintf("failed to open store: %v", err)}}
	}
	defer closeStore()

	log := opts.logger(cmd)
	result, err := harness.RunWith(commandContext(cmd), s, harness.Options{Store: st, Log: &log})
	if err != nil {
		return ScenarioResult{Name: s.Name, Errors: []string{fmt.Sprintf("execution failed: %v", err)}}
	}

	errs := append([]string(nil), result.Errors...)
	if err := checkGolden(opts.Update, goldenFilePath(path), s.Name, result); err != nil {
		errs = append(errs, err.Error())
	}
	return ScenarioResult{Name: s.Name, Pass: len(errs) == 0, Errors: errs}
}

// scenarioStore opens an empty store. The memory backend is created by the
// harness itself.
func scenarioStore(backend string) (record.Store, func(), error) {
	if backend == BackendMemory {
		return nil, func() {}, nil
	}
	st, err := store.Open(":memory:", store.WithDriver(store.DriverPureGo))
	if err != nil {
		return nil, nil, err
	}
	return st, func() { _ = st.Close() }, nil
}

// goldenFilePath returns <dir>/golden/<name>.golden for a scenario file.
func goldenFilePath(scenarioFile string) string {
	dir := filepath.Dir(scenarioFile)
	base := filepath.Base(scenarioFile)
	name := strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, "golden", name+".golden")
}

// checkGolden compares result with the golden file, or rewrites it when
// update is set. A missing golden file is not an error.
func checkGolden(update bool, path, name string, result *harness.Result) error {
	data, err := harness.Snapshot(name, result)
	if err != nil {
		return fmt.Errorf("failed to marshal trace: %w", err)
	}
	if update {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return fmt.Errorf("failed to write golden file: %w", err)
		}
		return nil
	}

	want, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(want, data) {
		return fmt.Errorf("trace does not match golden file %s (run with --update to regenerate)", path)
	}
	return nil
}
