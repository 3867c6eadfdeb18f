// Package metrics derives sprint accepted points from completed work.
//
// Accepted points are recomputed synchronously whenever a work item's status,
// actual hours, or sprint changes, and written to the sprint's
// acceptedPoints field. A periodic sweep (internal/jobs) calls
// RecalculateAll to heal any write that failed midway.
package metrics

import (
	"context"
	"math"

	"github.com/rs/zerolog"

	"github.com/roach88/sprintledger/internal/apperr"
	"github.com/roach88/sprintledger/internal/clock"
	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/record"
)

// HoursPerPoint converts effort hours to story points.
const HoursPerPoint = 8

// AcceptedPoints converts completed hours to points, rounding half up
// (12h -> 1.5 -> 2).
func AcceptedPoints(hours float64) int {
	if hours <= 0 {
		return 0
	}
	return int(math.Floor(hours/HoursPerPoint + 0.5))
}

// Summary is the breakdown behind one sprint's accepted points.
type Summary struct {
	SprintID       string  `json:"sprintId"`
	TaskHours      float64 `json:"taskHours"`
	BugHours       float64 `json:"bugHours"`
	DoneTasks      int     `json:"doneTasks"`
	DoneBugs       int     `json:"doneBugs"`
	AcceptedPoints int     `json:"acceptedPoints"`

	// Previous is the stored value before recalculation.
	Previous int `json:"previous"`
	// Changed reports whether a write was issued.
	Changed bool `json:"changed"`
}

// Calculator reads completed work through the store and persists points.
type Calculator struct {
	store record.Store
	clock clock.Clock
	log   zerolog.Logger
}

// NewCalculator creates a Calculator.
func NewCalculator(store record.Store, clk clock.Clock, log zerolog.Logger) *Calculator {
	return &Calculator{store: store, clock: clk, log: log}
}

// Compute sums the actual hours of Done tasks and bugs in sprintID.
// It never writes.
func (c *Calculator) Compute(ctx context.Context, sprintID string) (Summary, error) {
	sum := Summary{SprintID: sprintID}
	done := record.Eq(entity.FieldSprintID, record.String(sprintID)).
		And(entity.FieldStatus, record.String(entity.StatusDone))

	tasks, err := c.store.Find(ctx, entity.KindTask.Collection(), done)
	if err != nil {
		return sum, apperr.FromStore("find done tasks", string(entity.KindSprint), sprintID, err)
	}
	for _, t := range tasks {
		sum.TaskHours += t.Number(entity.FieldActualHours)
	}
	sum.DoneTasks = len(tasks)

	bugs, err := c.store.Find(ctx, entity.KindBug.Collection(), done)
	if err != nil {
		return sum, apperr.FromStore("find done bugs", string(entity.KindSprint), sprintID, err)
	}
	for _, b := range bugs {
		sum.BugHours += b.Number(entity.FieldActualHours)
	}
	sum.DoneBugs = len(bugs)

	sum.AcceptedPoints = AcceptedPoints(sum.TaskHours + sum.BugHours)
	return sum, nil
}

// Recalculate computes sprintID's points and writes them when they differ
// from the stored value. Returns NOT_FOUND if the sprint does not exist.
func (c *Calculator) Recalculate(ctx context.Context, sprintID string) (Summary, error) {
	sprint, err := c.store.GetOne(ctx, entity.KindSprint.Collection(), sprintID)
	if err != nil {
		return Summary{SprintID: sprintID}, apperr.FromStore("get sprint", string(entity.KindSprint), sprintID, err)
	}
	return c.recalculate(ctx, sprint)
}

func (c *Calculator) recalculate(ctx context.Context, sprint record.Record) (Summary, error) {
	sprintID := sprint.ID()
	sum, err := c.Compute(ctx, sprintID)
	if err != nil {
		return sum, err
	}

	sum.Previous = int(sprint.Number(entity.FieldAcceptedPoints))
	_, hasPoints := sprint[entity.FieldAcceptedPoints].(record.Number)
	if hasPoints && sum.Previous == sum.AcceptedPoints {
		return sum, nil
	}

	err = c.store.UpdateFields(ctx, entity.KindSprint.Collection(), sprintID, record.Fields{
		entity.FieldAcceptedPoints: record.Number(sum.AcceptedPoints),
		entity.FieldUpdatedAt:      record.String(clock.Stamp(c.clock.Now())),
	})
	if err != nil {
		return sum, apperr.FromStore("update accepted points", string(entity.KindSprint), sprintID, err)
	}
	sum.Changed = true

	c.log.Debug().
		Str("sprint_id", sprintID).
		Int("previous", sum.Previous).
		Int("accepted_points", sum.AcceptedPoints).
		Msg("accepted points updated")
	return sum, nil
}

// RecalculateIfExists is Recalculate for trigger paths: a missing or empty
// sprint id is not an error, since work items may reference no sprint or a
// sprint that was never created.
func (c *Calculator) RecalculateIfExists(ctx context.Context, sprintID string) (Summary, bool, error) {
	if sprintID == "" {
		return Summary{}, false, nil
	}
	sum, err := c.Recalculate(ctx, sprintID)
	if apperr.IsNotFound(err) {
		return sum, false, nil
	}
	if err != nil {
		return sum, false, err
	}
	return sum, true, nil
}

// RecalculateAll recomputes every sprint. It keeps going after a per-sprint
// failure and returns the first error along with every summary computed.
func (c *Calculator) RecalculateAll(ctx context.Context) ([]Summary, error) {
	sprints, err := c.store.Find(ctx, entity.KindSprint.Collection(), nil)
	if err != nil {
		return nil, apperr.FromStore("list sprints", string(entity.KindSprint), "", err)
	}

	out := make([]Summary, 0, len(sprints))
	var firstErr error
	for _, sprint := range sprints {
		sum, err := c.recalculate(ctx, sprint)
		if err != nil {
			c.log.Warn().Err(err).Str("sprint_id", sprint.ID()).Msg("recalculate failed")
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, sum)
	}
	return out, firstErr
}
