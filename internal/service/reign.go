package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"wrestling-tracker/internal/domain"
	"wrestling-tracker/internal/events"
	"wrestling-tracker/internal/lock"
	"wrestling-tracker/internal/repository"

	"github.com/rs/zerolog"
)

const (
	reignProcessor = "reign_apply"
	dateLayout     = "2006-01-02"
)

// ReignService applies a championship reign's bookkeeping to superstar
// records and can reverse exactly what it applied. Every apply run first
// undoes the previous run's effects, so repeated applies converge instead
// of double counting.
type ReignService struct {
	repo      *repository.EntityRepository
	counters  *CounterService
	snapshots *SnapshotService
	locks     *lock.Keyed
	notifier  *events.Notifier
	logger    zerolog.Logger
}

func NewReignService(repo *repository.EntityRepository, counters *CounterService, snapshots *SnapshotService, locks *lock.Keyed, notifier *events.Notifier, logger zerolog.Logger) *ReignService {
	return &ReignService{
		repo:      repo,
		counters:  counters,
		snapshots: snapshots,
		locks:     locks,
		notifier:  notifier,
		logger:    logger,
	}
}

// ApplyOptions carries caller context for one apply run.
type ApplyOptions struct {
	// Manual marks the run as operator initiated rather than part of a
	// match-save pipeline.
	Manual bool
}

// ReignAppliedPayload is the event payload emitted after a successful apply.
type ReignAppliedPayload struct {
	ReignID      int64   `json:"reign_id"`
	Championship int64   `json:"championship"`
	Champions    []int64 `json:"champions"`
	ClosedReigns []int64 `json:"closed_reigns"`
	Manual       bool    `json:"manual"`
}

// Apply runs the reign application engine for one reign. Lock contention is
// not an error: the caller gets a StatusError result with a "Lock active"
// message and a nil error.
func (s *ReignService) Apply(ctx context.Context, reignID int64, opts ApplyOptions) (*domain.ApplyResult, error) {
	entity, err := s.repo.Get(ctx, reignID)
	if err != nil {
		return nil, err
	}
	if entity == nil || entity.Type != domain.TypeReign {
		return &domain.ApplyResult{Status: domain.StatusError, Message: "Reign not found"}, nil
	}

	release, ok := s.locks.TryAcquire(reignLockKey(reignID))
	if !ok {
		s.logger.Warn().Int64("reign_id", reignID).Msg("reign apply skipped, lock active")
		return &domain.ApplyResult{Status: domain.StatusError, Message: "Lock active"}, nil
	}
	defer release()

	// Undo whatever a previous run did before applying fresh state.
	if err := s.ReverseSnapshotEffects(ctx, reignID); err != nil {
		return nil, fmt.Errorf("failed to reverse previous apply of reign %d: %w", reignID, err)
	}

	state, err := s.readState(ctx, reignID)
	if err != nil {
		return nil, err
	}
	if len(state.Champions) == 0 {
		return &domain.ApplyResult{Status: domain.StatusError, Message: "No champions recorded"}, nil
	}

	var closed []int64
	if state.IsCurrent && state.Championship != 0 {
		closed, err = s.closeRivalReigns(ctx, reignID, state)
		if err != nil {
			return nil, err
		}
	}

	for _, champ := range state.Champions {
		count, err := s.repo.AttrInt(ctx, champ, domain.AttrTitleReignCount)
		if err != nil {
			return nil, err
		}
		if err := s.repo.SetAttr(ctx, champ, domain.AttrTitleReignCount, fmt.Sprintf("%d", count+1)); err != nil {
			return nil, err
		}
		if state.IsCurrent {
			if err := s.addCurrentTitle(ctx, champ, reignID); err != nil {
				return nil, err
			}
		}
	}

	if err := s.writeCanonical(ctx, reignID, state, opts); err != nil {
		return nil, err
	}

	snap := domain.ReignSnapshot{
		Applied:        true,
		AppliedAt:      time.Now().Format(time.RFC3339),
		Champions:      state.Champions,
		IsCurrent:      state.IsCurrent,
		StartDate:      state.StartDate,
		EndDate:        state.EndDate,
		ClosedReignIDs: closed,
		Processor:      reignProcessor,
	}
	encoded, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to encode reign snapshot: %w", err)
	}
	if err := s.repo.SetAttr(ctx, reignID, domain.AttrReignSnapshot, string(encoded)); err != nil {
		return nil, err
	}

	s.logger.Info().
		Int64("reign_id", reignID).
		Int64("championship", state.Championship).
		Ints64("champions", state.Champions).
		Ints64("closed_reigns", closed).
		Bool("manual", opts.Manual).
		Msg("reign applied")

	release()
	s.notifier.Emit(events.ReignApplied, ReignAppliedPayload{
		ReignID:      reignID,
		Championship: state.Championship,
		Champions:    state.Champions,
		ClosedReigns: closed,
		Manual:       opts.Manual,
	})

	return &domain.ApplyResult{
		Status:           domain.StatusOK,
		AppliedChampions: state.Champions,
		ClosedReignIDs:   closed,
	}, nil
}

// reignState is a reign's resolved fields after legacy-key fallback.
type reignState struct {
	Championship int64
	Champions    []int64
	StartDate    string
	EndDate      string
	IsCurrent    bool
}

func (s *ReignService) readState(ctx context.Context, reignID int64) (*reignState, error) {
	title, err := s.attrFirst(ctx, reignID, domain.AttrReignTitle, domain.AttrReignTitleLegacy)
	if err != nil {
		return nil, err
	}
	champs, err := s.attrFirst(ctx, reignID, domain.AttrReignChampions, domain.AttrReignChampsLegacy)
	if err != nil {
		return nil, err
	}
	start, err := s.attrFirst(ctx, reignID, domain.AttrReignStartDate, domain.AttrReignStartLegacy)
	if err != nil {
		return nil, err
	}
	end, err := s.attrFirst(ctx, reignID, domain.AttrReignEndDate, domain.AttrReignEndLegacy)
	if err != nil {
		return nil, err
	}

	state := &reignState{
		Championship: domain.ParseID(title),
		Champions:    domain.DedupeIDs(domain.ParseIDList(champs)),
		StartDate:    start,
		EndDate:      end,
	}

	// An explicit is_current flag wins; otherwise an open end date means
	// the reign is current.
	for _, key := range []string{domain.AttrReignIsCurrent, domain.AttrReignCurLegacy} {
		has, err := s.repo.HasAttr(ctx, reignID, key)
		if err != nil {
			return nil, err
		}
		if has {
			state.IsCurrent, err = s.repo.AttrBool(ctx, reignID, key)
			return state, err
		}
	}
	state.IsCurrent = end == ""
	return state, nil
}

// closeRivalReigns ends every other current reign of the same championship.
func (s *ReignService) closeRivalReigns(ctx context.Context, reignID int64, state *reignState) ([]int64, error) {
	rivals, err := s.currentReignsOf(ctx, state.Championship)
	if err != nil {
		return nil, err
	}

	endDate := state.StartDate
	if endDate == "" {
		endDate = time.Now().Format(dateLayout)
	}
	wonMatch, err := s.repo.AttrID(ctx, reignID, domain.AttrReignWonMatch)
	if err != nil {
		return nil, err
	}

	var closed []int64
	for _, rival := range rivals {
		if rival == reignID {
			continue
		}
		if err := s.repo.SetAttr(ctx, rival, domain.AttrReignEndDate, endDate); err != nil {
			return nil, err
		}
		if err := s.repo.SetAttr(ctx, rival, domain.AttrReignIsCurrent, "0"); err != nil {
			return nil, err
		}
		if wonMatch != 0 {
			if err := s.repo.SetAttr(ctx, rival, domain.AttrReignEndedByMatch, fmt.Sprintf("%d", wonMatch)); err != nil {
				return nil, err
			}
		}
		champs, err := s.championsOf(ctx, rival)
		if err != nil {
			return nil, err
		}
		for _, champ := range champs {
			if err := s.removeCurrentTitle(ctx, champ, rival); err != nil {
				return nil, err
			}
		}
		closed = append(closed, rival)
	}
	return closed, nil
}

// currentReignsOf lists current reigns of a championship across both key
// generations and all non-trash statuses.
func (s *ReignService) currentReignsOf(ctx context.Context, championship int64) ([]int64, error) {
	statuses := []string{domain.StatusPublish, domain.StatusPrivate, domain.StatusDraft}
	value := fmt.Sprintf("%d", championship)

	seen := make(map[int64]bool)
	var out []int64
	for _, key := range []string{domain.AttrReignTitle, domain.AttrReignTitleLegacy} {
		ids, err := s.repo.FindIDsByAttrs(ctx, domain.TypeReign,
			[]repository.AttrCondition{{Key: key, Value: value}}, statuses...)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			st, err := s.readState(ctx, id)
			if err != nil {
				return nil, err
			}
			if st.IsCurrent {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (s *ReignService) championsOf(ctx context.Context, reignID int64) ([]int64, error) {
	raw, err := s.attrFirst(ctx, reignID, domain.AttrReignChampions, domain.AttrReignChampsLegacy)
	if err != nil {
		return nil, err
	}
	return domain.DedupeIDs(domain.ParseIDList(raw)), nil
}

// writeCanonical persists resolved values under the canonical keys. Legacy
// keys are left in place for consumers not yet migrated.
func (s *ReignService) writeCanonical(ctx context.Context, reignID int64, state *reignState, opts ApplyOptions) error {
	if state.Championship != 0 {
		if err := s.repo.SetAttr(ctx, reignID, domain.AttrReignTitle, fmt.Sprintf("%d", state.Championship)); err != nil {
			return err
		}
	}
	if err := s.repo.SetAttrIDList(ctx, reignID, domain.AttrReignChampions, state.Champions); err != nil {
		return err
	}
	if state.StartDate != "" {
		if err := s.repo.SetAttr(ctx, reignID, domain.AttrReignStartDate, state.StartDate); err != nil {
			return err
		}
	}
	if state.EndDate != "" {
		if err := s.repo.SetAttr(ctx, reignID, domain.AttrReignEndDate, state.EndDate); err != nil {
			return err
		}
	}
	if err := s.repo.SetAttr(ctx, reignID, domain.AttrReignIsCurrent, boolAttr(state.IsCurrent)); err != nil {
		return err
	}
	return s.repo.SetAttr(ctx, reignID, domain.AttrReignManual, boolAttr(opts.Manual))
}

// ReverseSnapshotEffects undoes exactly what the recorded apply run did.
// A reign with no applied snapshot is a no-op.
func (s *ReignService) ReverseSnapshotEffects(ctx context.Context, reignID int64) error {
	raw, err := s.repo.Attr(ctx, reignID, domain.AttrReignSnapshot)
	if err != nil {
		return err
	}
	if raw == "" {
		return nil
	}
	var snap domain.ReignSnapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		s.logger.Warn().Int64("reign_id", reignID).Err(err).Msg("discarding unreadable reign snapshot")
		return s.repo.DeleteAttr(ctx, reignID, domain.AttrReignSnapshot)
	}
	if !snap.Applied {
		return s.repo.DeleteAttr(ctx, reignID, domain.AttrReignSnapshot)
	}

	for _, champ := range snap.Champions {
		count, err := s.repo.AttrInt(ctx, champ, domain.AttrTitleReignCount)
		if err != nil {
			return err
		}
		if count > 0 {
			if err := s.repo.SetAttr(ctx, champ, domain.AttrTitleReignCount, fmt.Sprintf("%d", count-1)); err != nil {
				return err
			}
		}
		if snap.IsCurrent {
			if err := s.removeCurrentTitle(ctx, champ, reignID); err != nil {
				return err
			}
		}
	}

	for _, closedID := range snap.ClosedReignIDs {
		if err := s.reopenReign(ctx, closedID); err != nil {
			return err
		}
	}

	s.logger.Info().
		Int64("reign_id", reignID).
		Ints64("champions", snap.Champions).
		Ints64("reopened", snap.ClosedReignIDs).
		Msg("reign effects reversed")
	return s.repo.DeleteAttr(ctx, reignID, domain.AttrReignSnapshot)
}

func (s *ReignService) reopenReign(ctx context.Context, reignID int64) error {
	entity, err := s.repo.Get(ctx, reignID)
	if err != nil {
		return err
	}
	if entity == nil {
		return nil
	}
	if err := s.repo.SetAttr(ctx, reignID, domain.AttrReignIsCurrent, "1"); err != nil {
		return err
	}
	for _, key := range []string{domain.AttrReignEndDate, domain.AttrReignEndLegacy, domain.AttrReignEndedByMatch} {
		if err := s.repo.DeleteAttr(ctx, reignID, key); err != nil {
			return err
		}
	}
	champs, err := s.championsOf(ctx, reignID)
	if err != nil {
		return err
	}
	for _, champ := range champs {
		if err := s.addCurrentTitle(ctx, champ, reignID); err != nil {
			return err
		}
	}
	return nil
}

// FindReignForMatch locates the reign created by a match: the back reference
// on the match when valid, otherwise a search on the reign side.
func (s *ReignService) FindReignForMatch(ctx context.Context, matchID int64) (int64, error) {
	backRef, err := s.repo.AttrID(ctx, matchID, domain.AttrReignCreated)
	if err != nil {
		return 0, err
	}
	if backRef != 0 {
		entityType, err := s.repo.EntityType(ctx, backRef)
		if err != nil {
			return 0, err
		}
		if entityType == domain.TypeReign {
			return backRef, nil
		}
	}

	ids, err := s.repo.FindIDsByAttrs(ctx, domain.TypeReign,
		[]repository.AttrCondition{{Key: domain.AttrReignWonMatch, Value: fmt.Sprintf("%d", matchID)}},
		domain.StatusPublish, domain.StatusPrivate, domain.StatusDraft)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	return ids[0], nil
}

// ReverseAndCloseForMatch reverses the reign a match created, removes the
// reign, and recomputes every superstar the reversal touched. Used when a
// match's winners diverge from the reign or the match is removed. Deletion
// falls back to a draft demotion so a failed delete cannot leave an applied
// reign live.
func (s *ReignService) ReverseAndCloseForMatch(ctx context.Context, matchID int64, note string) (bool, error) {
	reignID, err := s.FindReignForMatch(ctx, matchID)
	if err != nil {
		return false, err
	}
	if reignID == 0 {
		return false, nil
	}

	affected, err := s.affectedSuperstars(ctx, reignID, matchID)
	if err != nil {
		return false, err
	}

	if err := s.ReverseSnapshotEffects(ctx, reignID); err != nil {
		return false, err
	}

	if err := s.repo.SetAttr(ctx, reignID, domain.AttrReignReversedBy, fmt.Sprintf("%d", matchID)); err != nil {
		return false, err
	}
	if note != "" {
		if err := s.repo.SetAttr(ctx, reignID, domain.AttrReignReversedNote, note); err != nil {
			return false, err
		}
	}

	// Mark the reign ended before deleting it. If the delete fails and the
	// reign survives as a draft, it must not still read as current.
	if err := s.repo.SetAttr(ctx, reignID, domain.AttrReignIsCurrent, "0"); err != nil {
		return false, err
	}
	if err := s.repo.SetAttr(ctx, reignID, domain.AttrReignEndDate, time.Now().Format(dateLayout)); err != nil {
		return false, err
	}
	if err := s.repo.SetAttr(ctx, reignID, domain.AttrReignEndedByMatch, fmt.Sprintf("%d", matchID)); err != nil {
		return false, err
	}

	if err := s.repo.Delete(ctx, reignID); err != nil {
		s.logger.Error().Int64("reign_id", reignID).Err(err).Msg("reign delete failed, demoting to draft")
		if err := s.repo.SetStatus(ctx, reignID, domain.StatusDraft); err != nil {
			return false, fmt.Errorf("failed to demote reign %d after delete failure: %w", reignID, err)
		}
	}

	for _, id := range affected {
		if _, err := s.counters.Recompute(ctx, id); err != nil {
			s.logger.Warn().Int64("superstar_id", id).Err(err).Msg("counter recompute failed after reign reversal")
		}
	}

	s.logger.Info().
		Int64("match_id", matchID).
		Int64("reign_id", reignID).
		Str("note", note).
		Msg("reign reversed and removed")
	return true, nil
}

// affectedSuperstars unions the reign's champions with the match's recorded
// expanded winners, so everyone the apply run may have touched gets a
// recompute.
func (s *ReignService) affectedSuperstars(ctx context.Context, reignID, matchID int64) ([]int64, error) {
	var all []int64

	raw, err := s.repo.Attr(ctx, reignID, domain.AttrReignSnapshot)
	if err != nil {
		return nil, err
	}
	if raw != "" {
		var snap domain.ReignSnapshot
		if err := json.Unmarshal([]byte(raw), &snap); err == nil {
			all = append(all, snap.Champions...)
		}
	}

	champs, err := s.championsOf(ctx, reignID)
	if err != nil {
		return nil, err
	}
	all = append(all, champs...)

	matchSnap, err := s.snapshots.Snapshot(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if matchSnap != nil {
		all = append(all, matchSnap.WinnersExpanded...)
	}

	return domain.DedupeIDs(all), nil
}

// current_titles holds the reign IDs a superstar currently holds, so a
// wrestler with two belts lists two distinct reigns.

func (s *ReignService) addCurrentTitle(ctx context.Context, superstarID, reignID int64) error {
	titles, err := s.repo.AttrIDList(ctx, superstarID, domain.AttrCurrentTitles)
	if err != nil {
		return err
	}
	for _, t := range titles {
		if t == reignID {
			return nil
		}
	}
	return s.repo.SetAttrIDList(ctx, superstarID, domain.AttrCurrentTitles, append(titles, reignID))
}

func (s *ReignService) removeCurrentTitle(ctx context.Context, superstarID, reignID int64) error {
	titles, err := s.repo.AttrIDList(ctx, superstarID, domain.AttrCurrentTitles)
	if err != nil {
		return err
	}
	kept := titles[:0]
	for _, t := range titles {
		if t != reignID {
			kept = append(kept, t)
		}
	}
	if len(kept) == len(titles) {
		return nil
	}
	return s.repo.SetAttrIDList(ctx, superstarID, domain.AttrCurrentTitles, kept)
}

func (s *ReignService) attrFirst(ctx context.Context, id int64, keys ...string) (string, error) {
	for _, key := range keys {
		value, err := s.repo.Attr(ctx, id, key)
		if err != nil {
			return "", err
		}
		if value != "" {
			return value, nil
		}
	}
	return "", nil
}

func reignLockKey(reignID int64) string {
	return fmt.Sprintf("reign:%d", reignID)
}

func boolAttr(v bool) string {
	if v {
		return "1"
	}
	return "0"
}
