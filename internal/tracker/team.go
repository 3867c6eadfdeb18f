package tracker

import (
	"context"

	"github.com/roach88/sprintledger/internal/cascade"
	"github.com/roach88/sprintledger/internal/entity"
	"github.com/roach88/sprintledger/internal/record"
)

func (s *Service) CreateTeamMember(ctx context.Context, p entity.TeamMemberPatch) (record.Record, error) {
	return s.Create(ctx, p)
}

func (s *Service) GetTeamMember(ctx context.Context, id string) (record.Record, error) {
	return s.Get(ctx, entity.KindTeamMember, id)
}

// ListTeamMembers honors ProjectID and SprintID.
func (s *Service) ListTeamMembers(ctx context.Context, f ListFilter) ([]record.Record, error) {
	return s.List(ctx, entity.KindTeamMember, f.records(entity.KindTeamMember))
}

// UpdateTeamMember applies p. A rename is copied onto assigned work items.
func (s *Service) UpdateTeamMember(ctx context.Context, id string, p entity.TeamMemberPatch) (record.Record, error) {
	return s.Update(ctx, entity.KindTeamMember, id, p)
}

// DeleteTeamMember clears assigneeId and assignee on every assigned task
// and bug, then removes the member.
func (s *Service) DeleteTeamMember(ctx context.Context, id string) (cascade.Report, error) {
	return s.Delete(ctx, entity.KindTeamMember, id)
}
