package tracker

import (
	"context"

	"github.com/roach88/sprintledger/internal/cascade"
	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/record"
)

func (s *Service) CreateTask(ctx context.Context, p entity.TaskPatch) (record.Record, error) {
	return s.Create(ctx, p)
}

func (s *Service) GetTask(ctx context.Context, id string) (record.Record, error) {
	return s.Get(ctx, entity.KindTask, id)
}

// ListTasks honors ProjectID, SprintID, and AssigneeID.
func (s *Service) ListTasks(ctx context.Context, f ListFilter) ([]record.Record, error) {
	return s.List(ctx, entity.KindTask, f.records(entity.KindTask))
}

// UpdateTask applies p. Changes to status, actualHours, or sprintId
// recalculate the affected sprints.
func (s *Service) UpdateTask(ctx context.Context, id string, p entity.TaskPatch) (record.Record, error) {
	return s.Update(ctx, entity.KindTask, id, p)
}

// DeleteTask clears taskId on its bugs, deletes its time entries, removes
// the task, and recalculates its sprint.
func (s *Service) DeleteTask(ctx context.Context, id string) (cascade.Report, error) {
	return s.Delete(ctx, entity.KindTask, id)
}

func (s *Service) CreateBug(ctx context.Context, p entity.BugPatch) (record.Record, error) {
	return s.Create(ctx, p)
}

func (s *Service) GetBug(ctx context.Context, id string) (record.Record, error) {
	return s.Get(ctx, entity.KindBug, id)
}

// ListBugs honors ProjectID, SprintID, TaskID, and AssigneeID.
func (s *Service) ListBugs(ctx context.Context, f ListFilter) ([]record.Record, error) {
	return s.List(ctx, entity.KindBug, f.records(entity.KindBug))
}

// UpdateBug applies p with the same triggers as UpdateTask.
func (s *Service) UpdateBug(ctx context.Context, id string, p entity.BugPatch) (record.Record, error) {
	return s.Update(ctx, entity.KindBug, id, p)
}

// DeleteBug deletes the bug's time entries, removes the bug, and
// recalculates its sprint.
func (s *Service) DeleteBug(ctx context.Context, id string) (cascade.Report, error) {
	return s.Delete(ctx, entity.KindBug, id)
}
