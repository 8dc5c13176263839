package service

import (
	"context"
	"wrestling-tracker/internal/domain"
	"wrestling-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// TeamService resolves team/stable membership. A team whose membership
// cannot be resolved expands to an empty set; ExpandParticipant then keeps
// the team ID itself as an opaque participant so attribution is coarse
// rather than lost.
type TeamService struct {
	repo   *repository.EntityRepository
	logger zerolog.Logger
}

func NewTeamService(repo *repository.EntityRepository, logger zerolog.Logger) *TeamService {
	return &TeamService{repo: repo, logger: logger}
}

// Expand returns the deduplicated member superstar IDs of a team.
func (s *TeamService) Expand(ctx context.Context, teamID int64) ([]int64, error) {
	if teamID == 0 {
		return nil, nil
	}

	for _, key := range domain.TeamMemberKeys {
		ids, err := s.repo.AttrIDList(ctx, teamID, key)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			return ids, nil
		}
	}

	// Child-post relationship: superstars parented under the team.
	children, err := s.repo.Children(ctx, teamID, domain.TypeSuperstar)
	if err != nil {
		return nil, err
	}
	if len(children) > 0 {
		return domain.DedupeIDs(children), nil
	}

	s.logger.Debug().Int64("team_id", teamID).Msg("team membership unresolved")
	return nil, nil
}

// TeamsFor returns all team IDs a superstar belongs to, unioned across
// every membership attribute key.
func (s *TeamService) TeamsFor(ctx context.Context, superstarID int64) ([]int64, error) {
	var out []int64
	for _, key := range domain.SuperstarTeamKeys {
		ids, err := s.repo.AttrIDList(ctx, superstarID, key)
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	return domain.DedupeIDs(out), nil
}

// ExpandParticipant resolves one participant ID to individuals: a superstar
// is itself, a team is its members, an unresolvable team is kept as-is.
func (s *TeamService) ExpandParticipant(ctx context.Context, id int64) ([]int64, error) {
	if id == 0 {
		return nil, nil
	}
	entityType, err := s.repo.EntityType(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domain.IsTeamType(entityType) {
		return []int64{id}, nil
	}
	members, err := s.Expand(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(members) == 0 {
		return []int64{id}, nil
	}
	return members, nil
}

// ExpandRows flattens participant rows to individual IDs.
func (s *TeamService) ExpandRows(ctx context.Context, rows []domain.ParticipantRow) ([]int64, error) {
	var out []int64
	for _, row := range rows {
		ids, err := s.ExpandParticipant(ctx, row.Participant)
		if err != nil {
			return nil, err
		}
		out = append(out, ids...)
	}
	return domain.DedupeIDs(out), nil
}

// ExpandIDs flattens a plain ID list the same way.
func (s *TeamService) ExpandIDs(ctx context.Context, ids []int64) ([]int64, error) {
	var out []int64
	for _, id := range ids {
		expanded, err := s.ExpandParticipant(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, expanded...)
	}
	return domain.DedupeIDs(out), nil
}
