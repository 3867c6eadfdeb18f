package tracker

import (
	"context"

	"github.com/roach88/sprintledger/internal/cascade"
	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/metrics"
	"github.com/roach88/sprintledger/internal/record"
)

func (s *Service) CreateSprint(ctx context.Context, p entity.SprintPatch) (record.Record, error) {
	return s.Create(ctx, p)
}

func (s *Service) GetSprint(ctx context.Context, id string) (record.Record, error) {
	return s.Get(ctx, entity.KindSprint, id)
}

// ListSprints honors ListFilter.ProjectID.
func (s *Service) ListSprints(ctx context.Context, f ListFilter) ([]record.Record, error) {
	return s.List(ctx, entity.KindSprint, f.records(entity.KindSprint))
}

// UpdateSprint applies p. A status change or a supplied acceptedPoints
// recalculates accepted points.
func (s *Service) UpdateSprint(ctx context.Context, id string, p entity.SprintPatch) (record.Record, error) {
	return s.Update(ctx, entity.KindSprint, id, p)
}

// DeleteSprint clears sprintId on the sprint's tasks and bugs, then removes it.
func (s *Service) DeleteSprint(ctx context.Context, id string) (cascade.Report, error) {
	return s.Delete(ctx, entity.KindSprint, id)
}

// RecalculateSprint recomputes and persists one sprint's accepted points.
func (s *Service) RecalculateSprint(ctx context.Context, id string) (metrics.Summary, error) {
	ctx, span := s.start(ctx, "RecalculateSprint", entity.KindSprint, id)
	sum, err := s.metrics.Recalculate(ctx, id)
	return sum, finish(span, err)
}

// RecalculateAll recomputes every sprint.
func (s *Service) RecalculateAll(ctx context.Context) ([]metrics.Summary, error) {
	ctx, span := s.start(ctx, "RecalculateAll", entity.KindSprint, "")
	sums, err := s.metrics.RecalculateAll(ctx)
	return sums, finish(span, err)
}
