package tracker

import (
	"context"

	"github.com/roach88/sprintledger/internal/apperr"
	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/ledger"
	"github.com/roach88/sprintledger/internal/record"
)

// CreateTimeEntry stores the entry and applies its hours to a Done work
// item. The stored entry is returned even when a later aggregate write
// fails with STORE_UNAVAILABLE.
func (s *Service) CreateTimeEntry(ctx context.Context, in entity.TimeEntryInput) (record.Record, ledger.Effect, error) {
	ctx, span := s.start(ctx, "CreateTimeEntry", entity.KindTimeEntry, "")
	rec, effect, err := s.createTimeEntry(ctx, in)
	return rec, effect, finish(span, err)
}

func (s *Service) createTimeEntry(ctx context.Context, in entity.TimeEntryInput) (record.Record, ledger.Effect, error) {
	fields, err := entity.CreateFields(in)
	if err != nil {
		return nil, ledger.Effect{}, err
	}
	rec := record.Record(fields).Merge(record.Fields{
		entity.FieldID:        record.String(s.ids.Generate()),
		entity.FieldCreatedAt: s.now(),
	})
	return s.ledger.Create(ctx, rec)
}

// DeleteTimeEntry reverses the entry's hours on a Done work item, then
// removes the entry. Returns NOT_FOUND if absent.
func (s *Service) DeleteTimeEntry(ctx context.Context, id string) (ledger.Effect, error) {
	ctx, span := s.start(ctx, "DeleteTimeEntry", entity.KindTimeEntry, id)
	effect, err := s.ledger.Delete(ctx, id)
	return effect, finish(span, err)
}

func (s *Service) GetTimeEntry(ctx context.Context, id string) (record.Record, error) {
	return s.Get(ctx, entity.KindTimeEntry, id)
}

// ListTimeEntries honors ProjectID and SprintID on the entry itself and
// AssigneeID through the referenced work item: an entry matches when its
// task or bug is assigned to the member.
func (s *Service) ListTimeEntries(ctx context.Context, f ListFilter) ([]record.Record, error) {
	ctx, span := s.start(ctx, "ListTimeEntries", entity.KindTimeEntry, "")
	recs, err := s.listTimeEntries(ctx, f)
	return recs, finish(span, err)
}

func (s *Service) listTimeEntries(ctx context.Context, f ListFilter) ([]record.Record, error) {
	entries, err := s.store.Find(ctx, entity.KindTimeEntry.Collection(), f.records(entity.KindTimeEntry))
	if err != nil {
		return nil, apperr.FromStore("list time entries", string(entity.KindTimeEntry), "", err)
	}
	if f.AssigneeID == "" {
		return entries, nil
	}

	// one query per work-item kind instead of one lookup per entry
	assigned := map[entity.Kind]map[string]bool{}
	for _, kind := range []entity.Kind{entity.KindTask, entity.KindBug} {
		items, err := s.store.Find(ctx, kind.Collection(), record.Eq(entity.FieldAssigneeID, record.String(f.AssigneeID)))
		if err != nil {
			return nil, apperr.FromStore("list assigned work items", string(kind), "", err)
		}
		ids := make(map[string]bool, len(items))
		for _, it := range items {
			ids[it.ID()] = true
		}
		assigned[kind] = ids
	}

	out := make([]record.Record, 0, len(entries))
	for _, e := range entries {
		view := entity.TimeEntryOf(e)
		if assigned[view.WorkItemKind()][view.WorkItemID] {
			out = append(out, e)
		}
	}
	return out, nil
}
