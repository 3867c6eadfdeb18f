// Package cascade applies the reference rules of an entity.Registry when a
// parent record is deleted.
//
// Each step is a separate store call; there is no transaction across them.
// A dependent that vanishes between steps is tolerated, the parent's own
// absence is not. Steps run before the parent is removed so a failure
// leaves the parent in place to retry against.
package cascade

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/roach88/sprintledger/internal/apperr"
	"github.com/roach88/sprintledger/internal/clock"
	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/record"
)

// Step records the outcome of one dependent rule.
type Step struct {
	Kind    entity.Kind `json:"kind"`
	Field   string      `json:"field"`
	Policy  string      `json:"policy"`
	Matched int         `json:"matched"`
	Skipped bool        `json:"skipped,omitempty"`
}

// Report summarizes one cascading delete.
type Report struct {
	Kind    entity.Kind   `json:"kind"`
	ID      string        `json:"id"`
	Steps   []Step        `json:"steps"`
	Deleted record.Record `json:"deleted"`
}

// Cleared returns the number of dependents of kind whose references were cleared.
func (r Report) Cleared(kind entity.Kind) int {
	return r.count(kind, entity.PolicyClear)
}

// Removed returns the number of dependents of kind that were deleted.
func (r Report) Removed(kind entity.Kind) int {
	return r.count(kind, entity.PolicyDelete)
}

func (r Report) count(kind entity.Kind, p entity.Policy) int {
	n := 0
	for _, s := range r.Steps {
		if s.Kind == kind && s.Policy == p.String() {
			n += s.Matched
		}
	}
	return n
}

// Engine runs cascades against a store.
type Engine struct {
	store    record.Store
	registry *entity.Registry
	clock    clock.Clock
	log      zerolog.Logger
}

// New creates an Engine.
func New(store record.Store, registry *entity.Registry, clk clock.Clock, log zerolog.Logger) *Engine {
	return &Engine{store: store, registry: registry, clock: clk, log: log}
}

// Delete removes the kind/id record after applying every dependent rule.
// Returns NOT_FOUND if the record does not exist.
func (e *Engine) Delete(ctx context.Context, kind entity.Kind, id string) (Report, error) {
	report := Report{Kind: kind, ID: id, Steps: []Step{}}

	target, err := e.store.GetOne(ctx, kind.Collection(), id)
	if err != nil {
		return report, apperr.FromStore("get "+string(kind), string(kind), id, err)
	}
	report.Deleted = target

	for _, dep := range e.registry.Dependents(kind) {
		if dep.Reference.Policy == entity.PolicyOrphan {
			continue
		}
		step, err := e.apply(ctx, dep, id)
		if err != nil {
			return report, err
		}
		report.Steps = append(report.Steps, step)
	}

	if err := e.store.DeleteOne(ctx, kind.Collection(), id); err != nil {
		// deleted concurrently after our read: the end state is what was asked for
		if !errors.Is(err, record.ErrNotFound) {
			return report, apperr.FromStore("delete "+string(kind), string(kind), id, err)
		}
	}

	e.log.Info().
		Str("kind", string(kind)).
		Str("id", id).
		Int("steps", len(report.Steps)).
		Msg("cascade delete")
	return report, nil
}

func (e *Engine) apply(ctx context.Context, dep entity.Dependent, parentID string) (Step, error) {
	ref := dep.Reference
	coll := dep.Kind.Collection()
	step := Step{Kind: dep.Kind, Field: ref.Field, Policy: ref.Policy.String()}
	filter := dep.Filter(parentID)

	// zero dependents: issue no write at all
	matches, err := e.store.Find(ctx, coll, filter)
	if err != nil {
		return step, apperr.FromStore("find dependents", string(dep.Kind), "", err)
	}
	if len(matches) == 0 {
		step.Skipped = true
		return step, nil
	}

	var n int
	switch ref.Policy {
	case entity.PolicyClear:
		n, err = e.store.UpdateMany(ctx, coll, filter, clearFields(ref, e.clock.Now()))
	case entity.PolicyDelete:
		n, err = e.store.DeleteMany(ctx, coll, filter)
	}
	if errors.Is(err, record.ErrNotFound) {
		err = nil
	}
	if err != nil {
		return step, apperr.FromStore(ref.Policy.String()+" dependents", string(dep.Kind), "", err)
	}
	step.Matched = n

	e.log.Debug().
		Str("collection", coll).
		Str("field", ref.Field).
		Str("policy", step.Policy).
		Int("count", n).
		Msg("cascade step")
	return step, nil
}

func clearFields(ref entity.Reference, now time.Time) record.Fields {
	fields := record.Fields{
		ref.Field:             record.Null{},
		entity.FieldUpdatedAt: record.String(clock.Stamp(now)),
	}
	for _, f := range ref.Clears {
		fields[f] = record.Null{}
	}
	return fields
}

// PropagateAssigneeName rewrites the denormalized assignee name on every
// task and bug assigned to memberID. Returns the number of items updated.
func (e *Engine) PropagateAssigneeName(ctx context.Context, memberID, name string) (int, error) {
	total := 0
	for _, dep := range e.registry.Dependents(entity.KindTeamMember) {
		if len(dep.Reference.Clears) == 0 {
			continue
		}
		coll := dep.Kind.Collection()
		fields := record.Fields{entity.FieldUpdatedAt: record.String(clock.Stamp(e.clock.Now()))}
		for _, f := range dep.Reference.Clears {
			fields[f] = record.String(name)
		}
		n, err := e.store.UpdateMany(ctx, coll, dep.Filter(memberID), fields)
		if err != nil {
			return total, apperr.FromStore("propagate assignee", string(dep.Kind), "", err)
		}
		total += n
	}
	return total, nil
}
