package tracker

import (
	"context"

	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/record"
)

// ListFilter narrows list operations. Empty fields are ignored; fields that
// do not apply to a kind are ignored too.
type ListFilter struct {
	ProjectID  string
	SprintID   string
	TaskID     string
	AssigneeID string
}

func (f ListFilter) records(kind entity.Kind) record.Filter {
	out := record.Filter{}
	add := func(field, v string) {
		if v != "" {
			out[field] = record.String(v)
		}
	}
	switch kind {
	case entity.KindSprint:
		add(entity.FieldProjectID, f.ProjectID)
	case entity.KindTask:
		add(entity.FieldProjectID, f.ProjectID)
		add(entity.FieldSprintID, f.SprintID)
		add(entity.FieldAssigneeID, f.AssigneeID)
	case entity.KindBug:
		add(entity.FieldProjectID, f.ProjectID)
		add(entity.FieldSprintID, f.SprintID)
		add(entity.FieldTaskID, f.TaskID)
		add(entity.FieldAssigneeID, f.AssigneeID)
	case entity.KindTeamMember, entity.KindTimeEntry:
		add(entity.FieldProjectID, f.ProjectID)
		add(entity.FieldSprintID, f.SprintID)
	}
	return out
}

// ListBy lists kind records narrowed by f. Time entries honor the
// assignee join; see ListTimeEntries.
func (s *Service) ListBy(ctx context.Context, kind entity.Kind, f ListFilter) ([]record.Record, error) {
	if kind == entity.KindTimeEntry {
		return s.ListTimeEntries(ctx, f)
	}
	return s.List(ctx, kind, f.records(kind))
}
