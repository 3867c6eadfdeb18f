package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/sprintledger/internal/metrics"
	"github.com/roach88/sprintledger/internal/tracker"
)

// RecalcResult is the recalc command's output.
type RecalcResult struct {
	Sprints []metrics.Summary `json:"sprints"`
	Changed int               `json:"changed"`
}

// NewRecalcCommand creates the recalc command.
func NewRecalcCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "recalc [sprint-id]",
		Short: "Recompute sprint accepted points",
		Long: `Recompute accepted points from Done tasks and bugs.

With a sprint id only that sprint is recomputed; otherwise every sprint is.
Values are written only when they changed.

Examples:
  sprintledger recalc
  sprintledger recalc 0190c8e2-7a4b-7c3d-9e1f-2a3b4c5d6e7f --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecalc(rootOpts, args, cmd)
		},
	}
}

func runRecalc(opts *RootOptions, args []string, cmd *cobra.Command) error {
	out := opts.formatter(cmd)

	return opts.withTracker(cmd, func(ctx context.Context, svc *tracker.Service) error {
		var sums []metrics.Summary
		if len(args) == 1 {
			sum, err := svc.RecalculateSprint(ctx, args[0])
			if err != nil {
				return out.Fail("failed to recalculate sprint", err)
			}
			sums = []metrics.Summary{sum}
		} else {
			all, err := svc.RecalculateAll(ctx)
			if err != nil {
				return out.Fail("failed to recalculate sprints", err)
			}
			sums = all
		}

		result := RecalcResult{Sprints: sums}
		for _, s := range sums {
			if s.Changed {
				result.Changed++
			}
		}
		return out.Success(result, recalcSummary(result))
	})
}

func recalcSummary(r RecalcResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recalculated %d sprint(s), %d changed", len(r.Sprints), r.Changed)
	for _, s := range r.Sprints {
		mark := " "
		if s.Changed {
			mark = "*"
		}
		fmt.Fprintf(&b, "\n %s %s: %d -> %d (%.2fh)", mark, s.SprintID, s.Previous, s.AcceptedPoints, s.TaskHours+s.BugHours)
	}
	return b.String()
}
