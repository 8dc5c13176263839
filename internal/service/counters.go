package service

import (
	"context"
	"fmt"
	"strconv"
	"wrestling-tracker/internal/constants"
	"wrestling-tracker/internal/domain"
	"wrestling-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// CounterService recomputes a superstar's derived record from scratch by
// rescanning every match referencing them, directly or through a team.
// There is no event log to replay, so a full rescan of current match state
// is the only recomputation guaranteed correct after arbitrary edits,
// trashes, and restores.
type CounterService struct {
	repo         *repository.EntityRepository
	participants *ParticipantService
	teams        *TeamService
	classifier   *ClassifierService
	logger       zerolog.Logger
}

func NewCounterService(repo *repository.EntityRepository, participants *ParticipantService, teams *TeamService, classifier *ClassifierService, logger zerolog.Logger) *CounterService {
	return &CounterService{repo: repo, participants: participants, teams: teams, classifier: classifier, logger: logger}
}

// Recompute rebuilds and persists all ten counters for one superstar,
// fully overwriting prior values. A malformed match is skipped, never
// allowed to abort the whole recomputation.
func (s *CounterService) Recompute(ctx context.Context, superstarID int64) (bool, error) {
	if superstarID == 0 {
		return false, nil
	}

	teamIDs, err := s.teams.TeamsFor(ctx, superstarID)
	if err != nil {
		return false, err
	}
	searchIDs := append([]int64{superstarID}, teamIDs...)

	candidates, err := s.candidateMatches(ctx, searchIDs)
	if err != nil {
		return false, err
	}

	var counters domain.Counters
	for _, matchID := range candidates {
		if err := s.tally(ctx, matchID, superstarID, teamIDs, &counters); err != nil {
			s.logger.Warn().
				Int64("superstar_id", superstarID).
				Int64("match_id", matchID).
				Err(err).
				Msg("skipping match during counter recomputation")
		}
	}

	if err := s.persist(ctx, superstarID, counters); err != nil {
		return false, err
	}

	s.logger.Info().
		Int64("superstar_id", superstarID).
		Int("candidates", len(candidates)).
		Int("total", counters.TotalMatches).
		Int("wins", counters.Wins).
		Int("tag_matches", counters.TagMatches).
		Msg("superstar counters recomputed")
	return true, nil
}

// candidateMatches runs the coarse LIKE query across participant-ish
// attribute keys. False positives are expected; tally re-verifies presence.
func (s *CounterService) candidateMatches(ctx context.Context, searchIDs []int64) ([]int64, error) {
	patterns := make([]string, 0, len(searchIDs))
	for _, id := range searchIDs {
		patterns = append(patterns, "%"+strconv.FormatInt(id, 10)+"%")
	}
	return s.repo.SearchIDsByAttrLike(ctx, domain.TypeMatch, domain.ParticipantSearchKeys, patterns, constants.SearchCandidateLimit)
}

func (s *CounterService) tally(ctx context.Context, matchID, superstarID int64, teamIDs []int64, counters *domain.Counters) error {
	rows, err := s.participants.Resolve(ctx, matchID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	expanded, err := s.teams.ExpandRows(ctx, rows)
	if err != nil {
		return err
	}

	winners, err := s.participants.Winners(ctx, matchID)
	if err != nil {
		return err
	}
	winnersExpanded, err := s.teams.ExpandIDs(ctx, winners)
	if err != nil {
		return err
	}

	// Guard against coarse-query false positives: the superstar must
	// actually appear, directly, via a team, or among expanded winners.
	present := contains(expanded, superstarID) || contains(winnersExpanded, superstarID)
	if !present {
		for _, tid := range teamIDs {
			if contains(expanded, tid) || contains(winnersExpanded, tid) {
				present = true
				break
			}
		}
	}
	if !present {
		return nil
	}

	isTag, err := s.classifier.IsTag(ctx, matchID, expanded, rows)
	if err != nil {
		return err
	}

	won := contains(winnersExpanded, superstarID)
	if !won {
		for _, tid := range teamIDs {
			if contains(winnersExpanded, tid) {
				won = true
				break
			}
		}
	}

	// Singles and tag outcomes partition the record: a tag result lands in
	// the tag_* counter only, never in the plain one.
	counters.TotalMatches++
	if isTag {
		counters.TagMatches++
	}

	if len(winnersExpanded) > 0 {
		switch {
		case won && isTag:
			counters.TagWins++
		case won:
			counters.Wins++
		case isTag:
			counters.TagLosses++
		default:
			counters.Losses++
		}
		return nil
	}

	result, err := s.repo.Attr(ctx, matchID, domain.AttrMatchResult)
	if err != nil {
		return err
	}
	switch domain.NormalizeMatchResult(result) {
	case domain.OutcomeDraw:
		if isTag {
			counters.TagDraws++
		} else {
			counters.Draws++
		}
	case domain.OutcomeNoContest:
		if isTag {
			counters.TagNoContests++
		} else {
			counters.NoContests++
		}
	}
	// No recorded result: the match still counted toward totals above.
	return nil
}

func (s *CounterService) persist(ctx context.Context, superstarID int64, counters domain.Counters) error {
	values := counters.Values()
	for i, key := range domain.CounterAttrKeys {
		if err := s.repo.SetAttr(ctx, superstarID, key, strconv.Itoa(values[i])); err != nil {
			return fmt.Errorf("failed to persist counter %s: %w", key, err)
		}
	}
	return nil
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
