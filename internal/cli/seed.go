package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/seed"
	"github.com/roach88/sprintledger/internal/tracker"
)

// SeedOptions holds flags for the seed command.
type SeedOptions struct {
	*RootOptions
	Demo bool
}

// SeedResult is the seed command's output.
type SeedResult struct {
	Source  string            `json:"source"`
	Created map[string]int    `json:"created"`
	IDs     map[string]string `json:"ids"`
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SeedOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "seed [fixture.cue]",
		Short: "Load a CUE fixture into the store",
		Long: `Load a CUE fixture into the store.

Entries are created through the tracker, so references are checked,
assignee names filled, logged hours applied and accepted points derived.

Examples:
  sprintledger seed --demo --db ./sprintledger.db
  sprintledger seed ./fixtures/team.cue --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(opts, args, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Demo, "demo", false, "load the built-in demo workspace")
	return cmd
}

func runSeed(opts *SeedOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	if opts.Demo == (len(args) == 1) {
		return NewExitError(ExitCommandError, "pass exactly one of a fixture file or --demo")
	}

	var (
		fx     *seed.Fixture
		source string
		err    error
	)
	if opts.Demo {
		source = "demo"
		fx, err = seed.Demo()
	} else {
		source = args[0]
		fx, err = seed.Load(source)
	}
	if err != nil {
		return out.Fail("failed to load fixture", err)
	}
	out.VerboseLog("loaded %d entries from %s", len(fx.Entries), source)

	return opts.withTracker(cmd, func(ctx context.Context, svc *tracker.Service) error {
		res, err := seed.Apply(ctx, svc, fx)
		if err != nil {
			return out.Fail("failed to apply fixture", err)
		}

		result := SeedResult{Source: source, Created: make(map[string]int), IDs: res.IDs}
		for k, n := range res.Created {
			result.Created[string(k)] = n
		}
		return out.Success(result, seedSummary(result))
	})
}

func seedSummary(r SeedResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Seeded %s:", r.Source)
	for _, k := range entity.Kinds() {
		if n, ok := r.Created[string(k)]; ok {
			fmt.Fprintf(&b, "\n  %-12s %d", k, n)
		}
	}
	return b.String()
}
