package tracker

import (
	"context"
	"errors"

	"github.com/roach88/sprintledger/internal/apperr"
	"github.com/roach88/sprintledger/internal/cascade"
	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/ledger"
	"github.com/roach88/sprintledger/internal/record"
)

// Create stores a new record built from p. Time entries go through the
// ledger; see CreateTimeEntry.
func (s *Service) Create(ctx context.Context, p entity.Patch) (record.Record, error) {
	if in, ok := p.(entity.TimeEntryInput); ok {
		rec, _, err := s.CreateTimeEntry(ctx, in)
		return rec, err
	}
	kind := p.Kind()
	ctx, span := s.start(ctx, "Create", kind, "")
	rec, err := s.create(ctx, p)
	return rec, finish(span, err)
}

func (s *Service) create(ctx context.Context, p entity.Patch) (record.Record, error) {
	kind := p.Kind()
	fields, err := entity.CreateFields(p)
	if err != nil {
		return nil, err
	}
	if err := s.checkReferences(ctx, kind, fields); err != nil {
		return nil, err
	}
	if kind.IsWorkItem() {
		if err := s.fillAssignee(ctx, fields, patchSets(p, entity.FieldAssignee)); err != nil {
			return nil, err
		}
	}

	rec := record.Record(fields).Merge(record.Fields{
		entity.FieldID:        record.String(s.ids.Generate()),
		entity.FieldCreatedAt: s.now(),
		entity.FieldUpdatedAt: record.Null{},
	})
	stored, err := s.store.Insert(ctx, kind.Collection(), rec)
	if err != nil {
		return nil, apperr.FromStore("create "+string(kind), string(kind), rec.ID(), err)
	}
	s.log.Info().Str("kind", string(kind)).Str("id", stored.ID()).Msg("created")

	switch {
	case kind == entity.KindSprint:
		// acceptedPoints is derived; a supplied value never survives
		if _, err := s.metrics.Recalculate(ctx, stored.ID()); err != nil {
			return stored, err
		}
		latest, err := s.store.GetOne(ctx, kind.Collection(), stored.ID())
		if err != nil {
			return stored, apperr.FromStore("get "+string(kind), string(kind), stored.ID(), err)
		}
		return latest, nil
	case kind.IsWorkItem():
		// a work item can be born Done with hours already on it
		item := entity.WorkItemOf(kind, stored)
		if item.Done() && item.ActualHours > 0 {
			if _, _, err := s.metrics.RecalculateIfExists(ctx, item.SprintID); err != nil {
				return stored, err
			}
		}
	}
	return stored, nil
}

// Get returns the kind/id record or NOT_FOUND.
func (s *Service) Get(ctx context.Context, kind entity.Kind, id string) (record.Record, error) {
	ctx, span := s.start(ctx, "Get", kind, id)
	rec, err := s.store.GetOne(ctx, kind.Collection(), id)
	return rec, finish(span, apperr.FromStore("get "+string(kind), string(kind), id, err))
}

// List returns kind records matching filter in insertion order.
func (s *Service) List(ctx context.Context, kind entity.Kind, filter record.Filter) ([]record.Record, error) {
	ctx, span := s.start(ctx, "List", kind, "")
	recs, err := s.store.Find(ctx, kind.Collection(), filter)
	return recs, finish(span, apperr.FromStore("list "+string(kind), string(kind), "", err))
}

// Update applies p to the kind/id record and returns the result.
// Time entries are immutable and cannot be updated.
func (s *Service) Update(ctx context.Context, kind entity.Kind, id string, p entity.Patch) (record.Record, error) {
	ctx, span := s.start(ctx, "Update", kind, id)
	rec, err := s.update(ctx, kind, id, p)
	return rec, finish(span, err)
}

func (s *Service) update(ctx context.Context, kind entity.Kind, id string, p entity.Patch) (record.Record, error) {
	if kind == entity.KindTimeEntry {
		return nil, apperr.Validation("time entries are immutable")
	}
	if p.Kind() != kind {
		return nil, apperr.Validation("%s patch cannot update a %s", p.Kind(), kind)
	}

	if kind.IsWorkItem() {
		// direct actualHours edits serialize with ledger adjustments
		unlock := s.ledger.Locks().Lock(ledger.WorkItemKey(kind, id))
		defer unlock()
	}
	before, err := s.store.GetOne(ctx, kind.Collection(), id)
	if err != nil {
		return nil, apperr.FromStore("get "+string(kind), string(kind), id, err)
	}

	fields := p.Fields()
	if err := s.checkReferences(ctx, kind, fields); err != nil {
		return nil, err
	}
	if kind.IsWorkItem() {
		if err := s.fillAssignee(ctx, fields, patchSets(p, entity.FieldAssignee)); err != nil {
			return nil, err
		}
	}

	fields[entity.FieldUpdatedAt] = s.now()
	if err := s.store.UpdateFields(ctx, kind.Collection(), id, fields); err != nil {
		return nil, apperr.FromStore("update "+string(kind), string(kind), id, err)
	}
	after := before.Merge(fields)
	s.log.Info().Str("kind", string(kind)).Str("id", id).Strs("fields", fields.SortedKeys()).Msg("updated")

	switch kind {
	case entity.KindSprint:
		if changed(before, after, entity.FieldStatus) || patchSets(p, entity.FieldAcceptedPoints) {
			if _, err := s.metrics.Recalculate(ctx, id); err != nil {
				return after, err
			}
		}
	case entity.KindTask, entity.KindBug:
		if err := s.afterWorkItemChange(ctx, kind, before, after); err != nil {
			return after, err
		}
	case entity.KindTeamMember:
		if name, ok := fields[entity.FieldName].(record.String); ok && changed(before, after, entity.FieldName) {
			if _, err := s.cascade.PropagateAssigneeName(ctx, id, string(name)); err != nil {
				return after, err
			}
		}
	}

	// re-read so triggered writes (acceptedPoints) are reflected
	latest, err := s.store.GetOne(ctx, kind.Collection(), id)
	if err != nil {
		return after, apperr.FromStore("get "+string(kind), string(kind), id, err)
	}
	return latest, nil
}

// afterWorkItemChange recalculates the sprints a work-item edit touched:
// the old and new sprint when sprintId moved, the current one when status
// or actualHours changed.
func (s *Service) afterWorkItemChange(ctx context.Context, kind entity.Kind, before, after record.Record) error {
	if !changed(before, after, entity.FieldStatus, entity.FieldActualHours, entity.FieldSprintID) {
		return nil
	}
	old := entity.WorkItemOf(kind, before)
	cur := entity.WorkItemOf(kind, after)

	sprints := []string{cur.SprintID}
	if old.SprintID != cur.SprintID {
		sprints = append(sprints, old.SprintID)
	}
	for _, sprintID := range sprints {
		if _, _, err := s.metrics.RecalculateIfExists(ctx, sprintID); err != nil {
			return err
		}
	}
	return nil
}

// Delete removes the kind/id record, applying cascades.
func (s *Service) Delete(ctx context.Context, kind entity.Kind, id string) (cascade.Report, error) {
	if kind == entity.KindTimeEntry {
		_, err := s.DeleteTimeEntry(ctx, id)
		return cascade.Report{Kind: kind, ID: id, Steps: []cascade.Step{}}, err
	}
	ctx, span := s.start(ctx, "Delete", kind, id)
	report, err := s.delete(ctx, kind, id)
	return report, finish(span, err)
}

func (s *Service) delete(ctx context.Context, kind entity.Kind, id string) (cascade.Report, error) {
	report, err := s.cascade.Delete(ctx, kind, id)
	if err != nil {
		return report, err
	}
	if kind.IsWorkItem() {
		// the item no longer contributes to its sprint
		item := entity.WorkItemOf(kind, report.Deleted)
		if item.Done() {
			if _, _, err := s.metrics.RecalculateIfExists(ctx, item.SprintID); err != nil {
				return report, err
			}
		}
	}
	return report, nil
}

// checkReferences verifies that every non-null reference field in fields
// names an existing record. Time entries are exempt: an unresolved work
// item is allowed and simply not counted.
func (s *Service) checkReferences(ctx context.Context, kind entity.Kind, fields record.Fields) error {
	if !s.checkRefs || kind == entity.KindTimeEntry {
		return nil
	}
	for _, ref := range s.registry.References(kind) {
		id, ok := fields[ref.Field].(record.String)
		if !ok || id == "" {
			continue
		}
		_, err := s.store.GetOne(ctx, ref.Target.Collection(), string(id))
		if errors.Is(err, record.ErrNotFound) {
			return apperr.Validation("%s references missing %s %q", ref.Field, ref.Target, string(id))
		}
		if err != nil {
			return apperr.FromStore("check reference", string(ref.Target), string(id), err)
		}
	}
	return nil
}

// fillAssignee keeps the denormalized assignee name in step with assigneeId
// unless the caller set assignee explicitly.
func (s *Service) fillAssignee(ctx context.Context, fields record.Fields, explicit bool) error {
	v, ok := fields[entity.FieldAssigneeID]
	if !ok || explicit {
		return nil
	}
	if record.IsNull(v) {
		fields[entity.FieldAssignee] = record.Null{}
		return nil
	}
	id, _ := v.(record.String)
	member, err := s.store.GetOne(ctx, entity.KindTeamMember.Collection(), string(id))
	if err != nil {
		if errors.Is(err, record.ErrNotFound) {
			// reference checks are off; leave the name alone
			return nil
		}
		return apperr.FromStore("get team member", string(entity.KindTeamMember), string(id), err)
	}
	if name, ok := member.String(entity.FieldName); ok {
		fields[entity.FieldAssignee] = record.String(name)
	}
	return nil
}

func patchSets(p entity.Patch, field string) bool {
	_, ok := p.Fields()[field]
	return ok
}

func changed(before, after record.Record, fields ...string) bool {
	for _, f := range fields {
		if !record.Equal(before[f], after[f]) {
			return true
		}
	}
	return false
}
