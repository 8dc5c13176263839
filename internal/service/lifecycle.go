package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
	"wrestling-tracker/internal/domain"
	"wrestling-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// LifecycleService orchestrates everything a match save or removal triggers:
// attribute persistence, explicit-clear detection, snapshot rebuild, counter
// recomputation, and reign synchronization.
type LifecycleService struct {
	repo         *repository.EntityRepository
	participants *ParticipantService
	teams        *TeamService
	snapshots    *SnapshotService
	counters     *CounterService
	reigns       *ReignService
	logger       zerolog.Logger
}

func NewLifecycleService(repo *repository.EntityRepository, participants *ParticipantService, teams *TeamService, snapshots *SnapshotService, counters *CounterService, reigns *ReignService, logger zerolog.Logger) *LifecycleService {
	return &LifecycleService{
		repo:         repo,
		participants: participants,
		teams:        teams,
		snapshots:    snapshots,
		counters:     counters,
		reigns:       reigns,
		logger:       logger,
	}
}

// SaveResult reports what one save pipeline run did.
type SaveResult struct {
	Cleared      bool    `json:"cleared"`
	SnapshotOK   bool    `json:"snapshot_ok"`
	Recomputed   []int64 `json:"recomputed"`
	ReignCreated int64   `json:"reign_created,omitempty"`
	ReignRemoved bool    `json:"reign_removed"`
	TitleChanged bool    `json:"title_changed"`
}

// SaveMatch persists the posted attributes and runs the full post-save
// pipeline. Posted values are applied verbatim, including empty ones: the
// explicit-clear rules need to see present-but-empty keys.
func (s *LifecycleService) SaveMatch(ctx context.Context, matchID int64, posted map[string]string) (*SaveResult, error) {
	entity, err := s.repo.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if entity == nil || entity.Type != domain.TypeMatch {
		return nil, fmt.Errorf("match %d not found", matchID)
	}

	for key, value := range posted {
		if err := s.repo.SetAttr(ctx, matchID, key, value); err != nil {
			return nil, err
		}
	}

	result := &SaveResult{}

	result.Cleared, err = s.HandleExplicitClear(ctx, matchID, posted)
	if err != nil {
		return nil, err
	}

	result.SnapshotOK, err = s.snapshots.Update(ctx, matchID)
	if err != nil {
		return nil, err
	}

	rows, err := s.participants.Resolve(ctx, matchID)
	if err != nil {
		return nil, err
	}
	expanded, err := s.teams.ExpandRows(ctx, rows)
	if err != nil {
		return nil, err
	}
	for _, id := range expanded {
		if _, err := s.counters.Recompute(ctx, id); err != nil {
			s.logger.Warn().Int64("match_id", matchID).Int64("superstar_id", id).Err(err).Msg("counter recompute failed during match save")
			continue
		}
		result.Recomputed = append(result.Recomputed, id)
	}

	sync, err := s.SyncReignOnMatchSave(ctx, matchID)
	if err != nil {
		return nil, err
	}
	result.ReignCreated = sync.ReignCreated
	result.ReignRemoved = sync.ReignRemoved
	result.TitleChanged = sync.TitleChanged

	return result, nil
}

// HandleExplicitClear detects an editor deliberately blanking winner data and
// removes the stored winners and snapshot so stale applied state cannot
// survive the save. Absent keys mean "unchanged"; present-but-empty keys mean
// "cleared".
func (s *LifecycleService) HandleExplicitClear(ctx context.Context, matchID int64, posted map[string]string) (bool, error) {
	if !explicitClearRequested(posted) {
		return false, nil
	}
	for _, key := range []string{domain.AttrWFWinners, domain.AttrWinners, domain.AttrMatchSnapshot} {
		if err := s.repo.DeleteAttr(ctx, matchID, key); err != nil {
			return false, err
		}
	}
	s.logger.Info().Int64("match_id", matchID).Msg("winner data explicitly cleared")
	return true, nil
}

func explicitClearRequested(posted map[string]string) bool {
	if value, ok := posted[domain.AttrWFWinners]; ok && emptyValue(value) {
		return true
	}

	// Winner-ish keys posted together and all empty also count as a clear,
	// covering repeater rows and champion lists blanked in one edit.
	markers := []string{"winner", "participants_details", "reign_champions"}
	found := false
	for key, value := range posted {
		for _, marker := range markers {
			if strings.Contains(key, marker) {
				found = true
				if !emptyValue(value) {
					return false
				}
				break
			}
		}
	}
	return found
}

func emptyValue(value string) bool {
	switch strings.TrimSpace(value) {
	case "", "[]", "{}", "0", "a:0:{}", "null", "false":
		return true
	}
	return false
}

// ReignSyncResult reports what reign synchronization decided for one save.
type ReignSyncResult struct {
	ReignCreated int64
	ReignRemoved bool
	TitleChanged bool
}

// SyncReignOnMatchSave keeps the reign attached to a match consistent with
// the match's winners. An existing reign whose champions still equal the
// winners is left alone; a diverged one is reversed and removed before a
// fresh reign is considered.
func (s *LifecycleService) SyncReignOnMatchSave(ctx context.Context, matchID int64) (*ReignSyncResult, error) {
	result := &ReignSyncResult{}

	winners, err := s.participants.Winners(ctx, matchID)
	if err != nil {
		return nil, err
	}
	winnersNorm := normalizeIDSet(winners)

	existing, err := s.reigns.FindReignForMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if existing != 0 {
		champs, err := s.reigns.championsOf(ctx, existing)
		if err != nil {
			return nil, err
		}
		if len(winnersNorm) > 0 && equalIDSets(winnersNorm, normalizeIDSet(champs)) {
			if err := s.repo.SetAttr(ctx, matchID, domain.AttrTitleChanged, "0"); err != nil {
				return nil, err
			}
			return result, nil
		}

		reversed, err := s.reigns.ReverseAndCloseForMatch(ctx, matchID, "winners changed on save")
		if err != nil {
			return nil, err
		}
		result.ReignRemoved = reversed
		if err := s.repo.DeleteAttr(ctx, matchID, domain.AttrReignCreated); err != nil {
			return nil, err
		}
	}

	championship, err := s.repo.AttrID(ctx, matchID, domain.AttrChampionship)
	if err != nil {
		return nil, err
	}
	titleOnLine, err := s.titleOnLine(ctx, matchID)
	if err != nil {
		return nil, err
	}

	titleChanged, err := s.titleChanged(ctx, championship, winnersNorm)
	if err != nil {
		return nil, err
	}
	result.TitleChanged = titleChanged
	if err := s.repo.SetAttr(ctx, matchID, domain.AttrTitleChanged, boolAttr(titleChanged)); err != nil {
		return nil, err
	}

	if !titleOnLine || championship == 0 || len(winnersNorm) == 0 || !titleChanged {
		return result, nil
	}

	reignID, err := s.createReign(ctx, matchID, championship, winners)
	if err != nil {
		return nil, err
	}
	result.ReignCreated = reignID

	applied, err := s.reigns.Apply(ctx, reignID, ApplyOptions{})
	if err != nil {
		return nil, err
	}
	if applied.Status != domain.StatusOK {
		s.logger.Warn().Int64("match_id", matchID).Int64("reign_id", reignID).Str("message", applied.Message).Msg("new reign could not be applied")
	}
	return result, nil
}

// titleChanged compares the championship's current champions with the
// match's winners. Empty winners still count: a title match saved without
// winners diverges from a standing champion, it only never creates a reign.
func (s *LifecycleService) titleChanged(ctx context.Context, championship int64, winnersNorm []int64) (bool, error) {
	if championship == 0 {
		return false, nil
	}

	reigns, err := s.reigns.currentReignsOf(ctx, championship)
	if err != nil {
		return false, err
	}
	var holders []int64
	for _, id := range reigns {
		champs, err := s.reigns.championsOf(ctx, id)
		if err != nil {
			return false, err
		}
		holders = append(holders, champs...)
	}
	return !equalIDSets(winnersNorm, normalizeIDSet(holders)), nil
}

func (s *LifecycleService) titleOnLine(ctx context.Context, matchID int64) (bool, error) {
	for _, key := range []string{domain.AttrTitleOnTheLine, domain.AttrTitleOnLine} {
		has, err := s.repo.HasAttr(ctx, matchID, key)
		if err != nil {
			return false, err
		}
		if has {
			return s.repo.AttrBool(ctx, matchID, key)
		}
	}
	return false, nil
}

func (s *LifecycleService) createReign(ctx context.Context, matchID, championship int64, winners []int64) (int64, error) {
	date, err := s.matchDate(ctx, matchID)
	if err != nil {
		return 0, err
	}

	title, err := s.reignTitle(ctx, championship, winners, date)
	if err != nil {
		return 0, err
	}

	reign := &domain.Entity{Type: domain.TypeReign, Title: title, Status: domain.StatusPublish}
	reignID, err := s.repo.Create(ctx, reign)
	if err != nil {
		return 0, err
	}

	attrs := map[string]string{
		domain.AttrReignTitle:     fmt.Sprintf("%d", championship),
		domain.AttrReignChampions: domain.EncodeIDList(domain.DedupeIDs(winners)),
		domain.AttrReignStartDate: date,
		domain.AttrReignIsCurrent: "1",
		domain.AttrReignWonMatch:  fmt.Sprintf("%d", matchID),
	}
	for key, value := range attrs {
		if err := s.repo.SetAttr(ctx, reignID, key, value); err != nil {
			return 0, err
		}
	}
	if err := s.repo.SetAttr(ctx, matchID, domain.AttrReignCreated, fmt.Sprintf("%d", reignID)); err != nil {
		return 0, err
	}

	s.logger.Info().
		Int64("match_id", matchID).
		Int64("reign_id", reignID).
		Int64("championship", championship).
		Ints64("champions", winners).
		Msg("reign created from match")
	return reignID, nil
}

func (s *LifecycleService) matchDate(ctx context.Context, matchID int64) (string, error) {
	for _, key := range []string{"match_date", "date", "event_date"} {
		value, err := s.repo.Attr(ctx, matchID, key)
		if err != nil {
			return "", err
		}
		if value != "" {
			return value, nil
		}
	}
	return time.Now().Format(dateLayout), nil
}

func (s *LifecycleService) reignTitle(ctx context.Context, championship int64, winners []int64, date string) (string, error) {
	champEntity, err := s.repo.Get(ctx, championship)
	if err != nil {
		return "", err
	}
	champName := fmt.Sprintf("Championship %d", championship)
	if champEntity != nil && champEntity.Title != "" {
		champName = champEntity.Title
	}

	var names []string
	for _, id := range domain.DedupeIDs(winners) {
		entity, err := s.repo.Get(ctx, id)
		if err != nil {
			return "", err
		}
		if entity != nil && entity.Title != "" {
			names = append(names, entity.Title)
		} else {
			names = append(names, fmt.Sprintf("#%d", id))
		}
	}
	return fmt.Sprintf("%s: %s (won %s)", champName, strings.Join(names, " & "), date), nil
}

// HandleMatchRemoval reverses any reign the match created, deletes the match,
// and recomputes everyone who was in it.
func (s *LifecycleService) HandleMatchRemoval(ctx context.Context, matchID int64) error {
	rows, err := s.participants.Resolve(ctx, matchID)
	if err != nil {
		return err
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
	affected := domain.DedupeIDs(append(expanded, winnersExpanded...))

	if _, err := s.reigns.ReverseAndCloseForMatch(ctx, matchID, "match removed"); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, matchID); err != nil {
		return err
	}

	for _, id := range affected {
		if _, err := s.counters.Recompute(ctx, id); err != nil {
			s.logger.Warn().Int64("match_id", matchID).Int64("superstar_id", id).Err(err).Msg("counter recompute failed after match removal")
		}
	}
	s.logger.Info().Int64("match_id", matchID).Ints64("recomputed", affected).Msg("match removed")
	return nil
}

func normalizeIDSet(ids []int64) []int64 {
	out := domain.DedupeIDs(ids)
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func equalIDSets(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
