package tracker

import (
	"context"

	"github.com/roach88/sprintledger/internal/cascade"
	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/record"
)

func (s *Service) CreateProject(ctx context.Context, p entity.ProjectPatch) (record.Record, error) {
	return s.Create(ctx, p)
}

func (s *Service) GetProject(ctx context.Context, id string) (record.Record, error) {
	return s.Get(ctx, entity.KindProject, id)
}

func (s *Service) ListProjects(ctx context.Context) ([]record.Record, error) {
	return s.List(ctx, entity.KindProject, nil)
}

func (s *Service) UpdateProject(ctx context.Context, id string, p entity.ProjectPatch) (record.Record, error) {
	return s.Update(ctx, entity.KindProject, id, p)
}

// DeleteProject removes a project. Sprints, work items, and members that
// reference it are left in place.
func (s *Service) DeleteProject(ctx context.Context, id string) (cascade.Report, error) {
	return s.Delete(ctx, entity.KindProject, id)
}
