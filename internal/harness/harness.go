package harness

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/sprintledger/internal/apperr"
	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/record"
	"github.com/roach88/sprintledger/internal/seed"
	"github.com/roach88/sprintledger/internal/testutil"
	"github.com/roach88/sprintledger/internal/tracker"
)

// IDPrefix prefixes every id a run generates.
const IDPrefix = "id"

// Options configures a run.
type Options struct {
	// Store defaults to a fresh testutil.MemoryStore. It should start empty.
	Store record.Store
	// Log defaults to a disabled logger.
	Log *zerolog.Logger
}

// Harness executes one scenario.
type Harness struct {
	store   record.Store
	svc     *tracker.Service
	clock   *testutil.FixedClock
	aliases map[string]string
	log     zerolog.Logger
}

// Run executes s against a fresh in-memory store.
func Run(ctx context.Context, s *Scenario) (*Result, error) {
	return RunWith(ctx, s, Options{})
}

// RunWith executes s with opts.
//
// Execution flow:
//  1. Build a tracker with a fixed clock and sequential ids
//  2. Apply the seed fixture, if any, registering its keys as aliases
//  3. Execute flow steps, checking expect clauses
//  4. Evaluate assertions against the trace and final store state
//
// The returned error covers setup failures only; expectation and assertion
// failures are reported in Result.Errors.
func RunWith(ctx context.Context, s *Scenario, opts Options) (*Result, error) {
	st := opts.Store
	if st == nil {
		st = testutil.NewMemoryStore()
	}
	log := zerolog.Nop()
	if opts.Log != nil {
		log = *opts.Log
	}
	clk := testutil.NewFixedClock(testutil.Epoch)
	h := &Harness{
		store: st,
		svc: tracker.New(st,
			tracker.WithClock(clk),
			tracker.WithIDGenerator(testutil.NewSequentialIDs(IDPrefix)),
			tracker.WithLogger(log),
		),
		clock:   clk,
		aliases: make(map[string]string),
		log:     log,
	}

	result := NewResult()
	if s.Seed != "" {
		if err := h.applySeed(ctx, s.Seed); err != nil {
			return nil, fmt.Errorf("failed to apply seed: %w", err)
		}
	}

	for i, step := range s.Flow {
		if err := h.executeStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("flow step %d: %w", i, err)
		}
	}

	ev := &evaluator{ctx: ctx, store: st, aliases: h.aliases}
	for _, msg := range ev.evaluate(result.Trace, s.Assertions) {
		result.AddError(msg)
	}

	for k, v := range h.aliases {
		result.IDs[k] = v
	}
	return result, nil
}

func (h *Harness) applySeed(ctx context.Context, path string) error {
	fx, err := seed.Load(path)
	if err != nil {
		return err
	}
	res, err := seed.Apply(ctx, h.svc, fx)
	if err != nil {
		return err
	}
	for k, id := range res.IDs {
		h.aliases[k] = id
	}
	h.log.Debug().Int("entries", len(fx.Entries)).Str("path", path).Msg("seed applied")
	return nil
}

// executeStep runs one step. Each step advances the clock by one second so
// timestamps differ between steps.
func (h *Harness) executeStep(ctx context.Context, i int, step Step, result *Result) error {
	h.clock.Advance(time.Second)

	var kind entity.Kind
	if step.Kind != "" {
		k, err := entity.ParseKind(step.Kind)
		if err != nil {
			return err
		}
		kind = k
	}
	if step.Op == OpRecalc {
		kind = entity.KindSprint
	}
	id, err := h.resolveString(step.ID)
	if err != nil {
		return err
	}

	out, runErr := h.invoke(ctx, step, kind, id)
	ev := TraceEvent{Op: step.Op, Kind: string(kind), ID: id, Outcome: OutcomeOK}
	if runErr != nil {
		if apperr.CodeOf(runErr) == "" {
			// not a tracker outcome: bad scenario input
			return runErr
		}
		ev.Outcome = string(apperr.CodeOf(runErr))
	} else {
		ev.Result = out
		if rec, ok := out.(record.Record); ok && step.As != "" {
			h.aliases[step.As] = rec.ID()
		}
		if step.Op == OpCreate {
			if rec, ok := out.(record.Record); ok {
				ev.ID = rec.ID()
			}
		}
	}
	result.addTrace(ev)

	for _, msg := range h.check(i, step, runErr, out) {
		result.AddError(msg)
	}
	return nil
}

func (h *Harness) invoke(ctx context.Context, step Step, kind entity.Kind, id string) (any, error) {
	switch step.Op {
	case OpCreate:
		p, err := h.patch(kind, step.Body)
		if err != nil {
			return nil, err
		}
		return h.svc.Create(ctx, p)
	case OpUpdate:
		p, err := h.patch(kind, step.Body)
		if err != nil {
			return nil, err
		}
		return h.svc.Update(ctx, kind, id, p)
	case OpDelete:
		if kind == entity.KindTimeEntry {
			return h.svc.DeleteTimeEntry(ctx, id)
		}
		report, err := h.svc.Delete(ctx, kind, id)
		return report.Steps, err
	case OpGet:
		return h.svc.Get(ctx, kind, id)
	case OpList:
		f, err := h.listFilter(step.Filter)
		if err != nil {
			return nil, err
		}
		recs, err := h.svc.ListBy(ctx, kind, f)
		return recs, err
	case OpRecalc:
		if id == "" {
			return h.svc.RecalculateAll(ctx)
		}
		return h.svc.RecalculateSprint(ctx, id)
	}
	return nil, fmt.Errorf("unknown op %q", step.Op)
}

// patch decodes body into kind's patch. Decode failures are VALIDATION
// outcomes, so scenarios can exercise rejected payloads.
func (h *Harness) patch(kind entity.Kind, body map[string]any) (entity.Patch, error) {
	resolved := make(map[string]any, len(body))
	for k, v := range body {
		rv, err := h.resolve(v)
		if err != nil {
			return nil, err
		}
		resolved[k] = rv
	}
	raw, err := json.Marshal(resolved)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	return entity.DecodePatchBytes(kind, raw)
}

func (h *Harness) listFilter(m map[string]string) (tracker.ListFilter, error) {
	var f tracker.ListFilter
	for k, v := range m {
		id, err := h.resolveString(v)
		if err != nil {
			return f, err
		}
		switch k {
		case "project_id":
			f.ProjectID = id
		case "sprint_id":
			f.SprintID = id
		case "task_id":
			f.TaskID = id
		case "assignee_id":
			f.AssigneeID = id
		default:
			return f, fmt.Errorf("unknown list filter %q", k)
		}
	}
	return f, nil
}

// check compares a step's outcome with its expect clause.
func (h *Harness) check(i int, step Step, runErr error, out any) []string {
	want := step.Expect
	if want == nil {
		want = &Expect{}
	}
	label := fmt.Sprintf("flow[%d] %s %s", i, step.Op, step.Kind)

	got := string(apperr.CodeOf(runErr))
	if got != want.Error {
		if want.Error == "" {
			return []string{fmt.Sprintf("%s: unexpected error: %v", label, runErr)}
		}
		return []string{fmt.Sprintf("%s: expected error %s, got %q", label, want.Error, got)}
	}
	if runErr != nil {
		return nil
	}

	var errs []string
	if want.Count != nil {
		recs, ok := out.([]record.Record)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: count is only valid on list", label))
		} else if len(recs) != *want.Count {
			errs = append(errs, fmt.Sprintf("%s: expected %d records, got %d", label, *want.Count, len(recs)))
		}
	}
	if len(want.Result) > 0 {
		rec, ok := out.(record.Record)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: result is only valid on record results", label))
		} else if err := h.matchFields(rec, want.Result); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", label, err))
		}
	}
	return errs
}

func (h *Harness) matchFields(rec record.Record, want map[string]any) error {
	return matchFields(rec, want, h.aliases)
}

func (h *Harness) resolve(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	return h.resolveString(s)
}

func (h *Harness) resolveString(s string) (string, error) {
	return resolveAlias(s, h.aliases)
}

// resolveAlias maps "$name" to its id. Other strings pass through.
func resolveAlias(s string, aliases map[string]string) (string, error) {
	name, ok := strings.CutPrefix(s, "$")
	if !ok || name == "" {
		return s, nil
	}
	id, ok := aliases[name]
	if !ok {
		return "", fmt.Errorf("unknown alias %q", s)
	}
	return id, nil
}
