package service

import (
	"context"
	"fmt"
	"sync"
	"wrestling-tracker/internal/constants"
	"wrestling-tracker/internal/domain"
	"wrestling-tracker/internal/repository"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Rebuild actions.
const (
	ActionSnapshots = "update_snapshots"
	ActionRecompute = "recompute"
	ActionBoth      = "both"
)

// RebuildRequest selects what a maintenance sweep should touch. Explicit ID
// lists win over All; All expands to every match and every superstar that
// appears in any participant attribute.
type RebuildRequest struct {
	Action       string  `json:"action"`
	MatchIDs     []int64 `json:"match_ids,omitempty"`
	SuperstarIDs []int64 `json:"superstar_ids,omitempty"`
	All          bool    `json:"all"`
	Dry          bool    `json:"dry"`
}

// RebuildReport summarizes one sweep run.
type RebuildReport struct {
	Action            string           `json:"action"`
	Dry               bool             `json:"dry"`
	SnapshotsUpdated  int              `json:"snapshots_updated"`
	SnapshotsSkipped  int              `json:"snapshots_skipped"`
	CountersRebuilt   int              `json:"counters_rebuilt"`
	MatchesSelected   int              `json:"matches_selected"`
	SuperstarsTargets int              `json:"superstars_selected"`
	Errors            map[int64]string `json:"errors,omitempty"`
}

// SweepService runs bulk maintenance: rebuilding match snapshots and
// recomputing superstar counters across the whole store or a selected set.
type SweepService struct {
	repo      *repository.EntityRepository
	snapshots *SnapshotService
	counters  *CounterService
	logger    zerolog.Logger
}

func NewSweepService(repo *repository.EntityRepository, snapshots *SnapshotService, counters *CounterService, logger zerolog.Logger) *SweepService {
	return &SweepService{repo: repo, snapshots: snapshots, counters: counters, logger: logger}
}

// Run executes one sweep. Snapshot rebuilds are independent per match and run
// concurrently; counter recomputes run sequentially because two superstars
// sharing matches would race on the same candidate scans for no gain.
func (s *SweepService) Run(ctx context.Context, req RebuildRequest) (*RebuildReport, error) {
	switch req.Action {
	case ActionSnapshots, ActionRecompute, ActionBoth:
	case "":
		req.Action = ActionBoth
	default:
		return nil, fmt.Errorf("unknown rebuild action %q", req.Action)
	}

	report := &RebuildReport{Action: req.Action, Dry: req.Dry, Errors: make(map[int64]string)}

	matchIDs := req.MatchIDs
	if len(matchIDs) == 0 && req.All {
		var err error
		matchIDs, err = s.repo.AllIDsOfType(ctx, domain.TypeMatch)
		if err != nil {
			return nil, err
		}
	}
	superstarIDs := req.SuperstarIDs
	if len(superstarIDs) == 0 && req.All {
		var err error
		superstarIDs, err = s.AllParticipantIDs(ctx)
		if err != nil {
			return nil, err
		}
	}
	report.MatchesSelected = len(matchIDs)
	report.SuperstarsTargets = len(superstarIDs)

	if req.Dry {
		s.logger.Info().Str("action", req.Action).Int("matches", len(matchIDs)).Int("superstars", len(superstarIDs)).Msg("dry run, nothing touched")
		return report, nil
	}

	if req.Action == ActionSnapshots || req.Action == ActionBoth {
		if err := s.rebuildSnapshots(ctx, matchIDs, report); err != nil {
			return nil, err
		}
	}

	if req.Action == ActionRecompute || req.Action == ActionBoth {
		for _, id := range superstarIDs {
			if _, err := s.counters.Recompute(ctx, id); err != nil {
				report.Errors[id] = err.Error()
				continue
			}
			report.CountersRebuilt++
		}
	}

	s.logger.Info().
		Str("action", req.Action).
		Int("snapshots_updated", report.SnapshotsUpdated).
		Int("counters_rebuilt", report.CountersRebuilt).
		Int("errors", len(report.Errors)).
		Msg("rebuild sweep finished")
	if len(report.Errors) == 0 {
		report.Errors = nil
	}
	return report, nil
}

func (s *SweepService) rebuildSnapshots(ctx context.Context, matchIDs []int64, report *RebuildReport) error {
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(constants.RebuildConcurrency)

	for _, matchID := range matchIDs {
		g.Go(func() error {
			ok, err := s.snapshots.Update(ctx, matchID)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Errors[matchID] = err.Error()
				return nil
			}
			if ok {
				report.SnapshotsUpdated++
			} else {
				report.SnapshotsSkipped++
			}
			return nil
		})
	}
	return g.Wait()
}

// AllParticipantIDs unions every ID referenced by any participant list
// attribute across all matches. Used when a sweep targets everyone.
func (s *SweepService) AllParticipantIDs(ctx context.Context) ([]int64, error) {
	values, err := s.repo.AttrValuesForKeys(ctx,
		[]string{domain.AttrMatchParticipantsExpanded, domain.AttrMatchParticipants, domain.AttrParticipants},
		constants.SearchCandidateLimit)
	if err != nil {
		return nil, err
	}
	var all []int64
	for _, v := range values {
		all = append(all, domain.ParseIDList(v)...)
	}
	return domain.DedupeIDs(all), nil
}
