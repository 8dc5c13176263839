package service

import (
	"context"
	"encoding/json"
	"strings"
	"wrestling-tracker/internal/domain"
	"wrestling-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// ClassifierService decides tag vs. singles for a match. Signals are tried
// in a fixed priority order and the first decisive one wins; the order is
// deliberately conservative so 3-way singles matches never classify as tag.
// The classifier only reads, never writes.
type ClassifierService struct {
	repo         *repository.EntityRepository
	participants *ParticipantService
	teams        *TeamService
	types        *MatchTypeConfig
	logger       zerolog.Logger
}

func NewClassifierService(repo *repository.EntityRepository, participants *ParticipantService, teams *TeamService, types *MatchTypeConfig, logger zerolog.Logger) *ClassifierService {
	return &ClassifierService{repo: repo, participants: participants, teams: teams, types: types, logger: logger}
}

// teamSideRoles are role markers denoting one side of a tag match.
var teamSideRoles = map[string]bool{"a": true, "b": true, "team a": true, "team b": true}

// IsTag classifies the match. Expanded participant IDs and resolved rows
// may be passed when the caller already computed them; nil means compute.
func (s *ClassifierService) IsTag(ctx context.Context, matchID int64, expandedIDs []int64, rows []domain.ParticipantRow) (bool, error) {
	if matchID == 0 {
		return false, nil
	}

	// 1) Taxonomy terms are decisive in both directions.
	terms, err := s.repo.Terms(ctx, matchID, domain.TaxonomyMatchType)
	if err != nil {
		return false, err
	}
	for _, term := range terms {
		for _, label := range []string{term.Slug, term.Name} {
			if label == "" {
				continue
			}
			if IsSinglesType(label) {
				return false, nil
			}
			if s.types.IsTagType(label) {
				return true, nil
			}
		}
	}

	// 2) Explicit match_type value.
	matchType, err := s.repo.Attr(ctx, matchID, domain.AttrMatchType)
	if err != nil {
		return false, err
	}
	if matchType = strings.TrimSpace(matchType); matchType != "" {
		if IsSinglesType(matchType) {
			return false, nil
		}
		if s.types.IsTagType(matchType) {
			return true, nil
		}
	}

	// 3) Cached verdict from an existing snapshot.
	if cached, ok, err := s.cachedVerdict(ctx, matchID); err != nil {
		return false, err
	} else if ok {
		return cached, nil
	}

	if rows == nil {
		if rows, err = s.participants.Resolve(ctx, matchID); err != nil {
			return false, err
		}
	}

	// 4) Participant-row role markers.
	for _, row := range rows {
		role := strings.ToLower(strings.TrimSpace(row.Role))
		if role == "" {
			continue
		}
		if strings.Contains(role, "tag") || teamSideRoles[role] {
			return true, nil
		}
	}

	// 5) A team entity among participants or recorded winners implies tag.
	for _, row := range rows {
		isTeam, err := s.isTeamEntity(ctx, row.Participant)
		if err != nil {
			return false, err
		}
		if isTeam {
			return true, nil
		}
	}
	for _, key := range []string{domain.AttrWFWinners, domain.AttrWinners} {
		winners, err := s.repo.AttrIDList(ctx, matchID, key)
		if err != nil {
			return false, err
		}
		for _, wid := range winners {
			isTeam, err := s.isTeamEntity(ctx, wid)
			if err != nil {
				return false, err
			}
			if isTeam {
				return true, nil
			}
		}
	}

	// 6) Count heuristic: four or more expanded individuals reads as tag;
	// two or three stays singles/multi-man.
	if expandedIDs == nil {
		if expandedIDs, err = s.teams.ExpandRows(ctx, rows); err != nil {
			return false, err
		}
	}
	return len(expandedIDs) >= 4, nil
}

func (s *ClassifierService) cachedVerdict(ctx context.Context, matchID int64) (verdict bool, ok bool, err error) {
	raw, err := s.repo.Attr(ctx, matchID, domain.AttrMatchSnapshot)
	if err != nil || raw == "" {
		return false, false, err
	}
	var snap domain.MatchSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.logger.Debug().Int64("match_id", matchID).Err(err).Msg("unreadable match snapshot, ignoring cached verdict")
		return false, false, nil
	}
	if !snap.Applied {
		return false, false, nil
	}
	return snap.IsTag, true, nil
}

func (s *ClassifierService) isTeamEntity(ctx context.Context, id int64) (bool, error) {
	if id == 0 {
		return false, nil
	}
	entityType, err := s.repo.EntityType(ctx, id)
	if err != nil {
		return false, err
	}
	return domain.IsTeamType(entityType), nil
}
