package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"wrestling-tracker/internal/domain"
	"wrestling-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// SnapshotService owns the canonical match snapshot. Nothing else writes
// wf_match_snapshot or the normalized participant attributes; every
// downstream consumer (counters, reign lifecycle, listings) reads them.
type SnapshotService struct {
	repo         *repository.EntityRepository
	participants *ParticipantService
	teams        *TeamService
	classifier   *ClassifierService
	logger       zerolog.Logger
}

func NewSnapshotService(repo *repository.EntityRepository, participants *ParticipantService, teams *TeamService, classifier *ClassifierService, logger zerolog.Logger) *SnapshotService {
	return &SnapshotService{repo: repo, participants: participants, teams: teams, classifier: classifier, logger: logger}
}

// Update rebuilds the snapshot from current participant rows. Calling it
// again with unchanged input produces identical output apart from the
// applied_at timestamp.
func (s *SnapshotService) Update(ctx context.Context, matchID int64) (bool, error) {
	if matchID == 0 {
		return false, nil
	}

	rows, err := s.participants.Resolve(ctx, matchID)
	if err != nil {
		return false, err
	}

	expanded, err := s.teams.ExpandRows(ctx, rows)
	if err != nil {
		return false, err
	}

	isTag, err := s.classifier.IsTag(ctx, matchID, expanded, rows)
	if err != nil {
		return false, err
	}

	var winners []int64
	for _, row := range rows {
		if row.IsWinner && row.Participant != 0 {
			winners = append(winners, row.Participant)
		}
	}
	winners = domain.DedupeIDs(winners)

	winnersExpanded, err := s.teams.ExpandIDs(ctx, winners)
	if err != nil {
		return false, err
	}

	matchResult, err := s.repo.Attr(ctx, matchID, domain.AttrMatchResult)
	if err != nil {
		return false, err
	}

	prev, err := s.load(ctx, matchID)
	if err != nil {
		return false, err
	}

	snap := domain.MatchSnapshot{
		Applied:             true,
		AppliedAt:           time.Now().Format(time.RFC3339),
		AppliedParticipants: buildParticipantEntries(rows, winnersExpanded, matchResult, isTag),
		Winners:             winners,
		WinnersExpanded:     winnersExpanded,
		IsTag:               isTag,
		MatchResult:         matchResult,
		ParticipantIDs:      expanded,
	}
	if prev != nil {
		snap.Extra = prev.Extra
	}

	encoded, err := json.Marshal(snap)
	if err != nil {
		return false, fmt.Errorf("failed to encode snapshot for match %d: %w", matchID, err)
	}
	if err := s.repo.SetAttr(ctx, matchID, domain.AttrMatchSnapshot, string(encoded)); err != nil {
		return false, err
	}

	if err := s.syncParticipantAttrs(ctx, matchID, rows, expanded); err != nil {
		return false, err
	}
	if err := s.syncWinnerAttrs(ctx, matchID, winners); err != nil {
		return false, err
	}

	s.logger.Debug().
		Int64("match_id", matchID).
		Int("participants", len(rows)).
		Int("winners", len(winners)).
		Bool("is_tag", isTag).
		Msg("match snapshot updated")
	return true, nil
}

// Snapshot loads the stored snapshot, nil when absent or unreadable.
func (s *SnapshotService) Snapshot(ctx context.Context, matchID int64) (*domain.MatchSnapshot, error) {
	return s.load(ctx, matchID)
}

func (s *SnapshotService) load(ctx context.Context, matchID int64) (*domain.MatchSnapshot, error) {
	raw, err := s.repo.Attr(ctx, matchID, domain.AttrMatchSnapshot)
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	var snap domain.MatchSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.logger.Warn().Int64("match_id", matchID).Err(err).Msg("stored snapshot unreadable, rebuilding from scratch")
		return nil, nil
	}
	return &snap, nil
}

func buildParticipantEntries(rows []domain.ParticipantRow, winnersExpanded []int64, matchResult string, isTag bool) []domain.SnapshotParticipant {
	winnerSet := make(map[int64]bool, len(winnersExpanded))
	for _, id := range winnersExpanded {
		winnerSet[id] = true
	}
	noWinnerOutcome := domain.NormalizeMatchResult(matchResult)

	entries := make([]domain.SnapshotParticipant, 0, len(rows))
	for _, row := range rows {
		outcome := domain.OutcomeUnknown
		switch {
		case len(winnersExpanded) > 0 && (row.IsWinner || winnerSet[row.Participant]):
			outcome = domain.OutcomeWin
		case len(winnersExpanded) > 0:
			outcome = domain.OutcomeLoss
		default:
			outcome = noWinnerOutcome
		}
		entries = append(entries, domain.SnapshotParticipant{
			ID:       row.Participant,
			IsWinner: row.IsWinner,
			Outcome:  outcome,
			IsTag:    isTag,
		})
	}
	return entries
}

// syncParticipantAttrs writes the normalized flat lists used for fast
// external lookup and the coarse candidate query.
func (s *SnapshotService) syncParticipantAttrs(ctx context.Context, matchID int64, rows []domain.ParticipantRow, expanded []int64) error {
	raw := make([]int64, 0, len(rows))
	for _, row := range rows {
		raw = append(raw, row.Participant)
	}
	if err := s.repo.SetAttrIDList(ctx, matchID, domain.AttrMatchParticipants, domain.DedupeIDs(raw)); err != nil {
		return err
	}
	return s.repo.SetAttrIDList(ctx, matchID, domain.AttrMatchParticipantsExpanded, expanded)
}

// syncWinnerAttrs mirrors snapshot winners into the legacy winner keys, or
// clears them so stale winners cannot survive a save.
func (s *SnapshotService) syncWinnerAttrs(ctx context.Context, matchID int64, winners []int64) error {
	if len(winners) == 0 {
		if err := s.repo.DeleteAttr(ctx, matchID, domain.AttrWFWinners); err != nil {
			return err
		}
		return s.repo.DeleteAttr(ctx, matchID, domain.AttrWinners)
	}
	if err := s.repo.SetAttrIDList(ctx, matchID, domain.AttrWFWinners, winners); err != nil {
		return err
	}
	return s.repo.SetAttrIDList(ctx, matchID, domain.AttrWinners, winners)
}
