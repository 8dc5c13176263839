package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"wrestling-tracker/internal/domain"
	"wrestling-tracker/internal/repository"

	"github.com/rs/zerolog"
)

// ParticipantService resolves the ordered participant rows of a match from
// whichever storage shape the data happens to be in. Sources are tried in
// priority order; the first that yields rows wins. No source yielding rows
// is a valid terminal state, not an error: correctness here means never
// losing a participant regardless of which schema generation stored it.
type ParticipantService struct {
	repo    *repository.EntityRepository
	sources []rowSource
	logger  zerolog.Logger
}

type rowSource interface {
	name() string
	rows(ctx context.Context, matchID int64) ([]domain.ParticipantRow, error)
}

func NewParticipantService(repo *repository.EntityRepository, logger zerolog.Logger) *ParticipantService {
	s := &ParticipantService{repo: repo, logger: logger}
	s.sources = []rowSource{
		&detailsSource{repo: repo},
		&flattenedSource{repo: repo},
		&legacyListSource{repo: repo, keys: []string{domain.AttrMatchParticipants, domain.AttrParticipants}},
		&winnersOnlySource{repo: repo},
	}
	return s
}

func (s *ParticipantService) Resolve(ctx context.Context, matchID int64) ([]domain.ParticipantRow, error) {
	if matchID == 0 {
		return nil, nil
	}
	for _, src := range s.sources {
		rows, err := src.rows(ctx, matchID)
		if err != nil {
			return nil, fmt.Errorf("participant source %s failed for match %d: %w", src.name(), matchID, err)
		}
		if len(rows) > 0 {
			s.logger.Debug().
				Int64("match_id", matchID).
				Str("source", src.name()).
				Int("rows", len(rows)).
				Msg("participants resolved")
			return rows, nil
		}
	}
	return nil, nil
}

// Winners returns the winner IDs of a match: rows flagged is_winner first,
// falling back to the legacy winner attributes when no row carries a flag.
func (s *ParticipantService) Winners(ctx context.Context, matchID int64) ([]int64, error) {
	rows, err := s.Resolve(ctx, matchID)
	if err != nil {
		return nil, err
	}
	var winners []int64
	for _, r := range rows {
		if r.IsWinner && r.Participant != 0 {
			winners = append(winners, r.Participant)
		}
	}
	if len(winners) > 0 {
		return domain.DedupeIDs(winners), nil
	}
	for _, key := range []string{domain.AttrWFWinners, domain.AttrWinners} {
		ids, err := s.repo.AttrIDList(ctx, matchID, key)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			return domain.DedupeIDs(ids), nil
		}
	}
	return nil, nil
}

/* -------------------------
 * Source implementations
 * ------------------------- */

// rawRow tolerates the field shapes repeater rows were stored with:
// participant as number, numeric string, or object with an ID key;
// is_winner as bool, number, or string.
type rawRow struct {
	Participant json.RawMessage `json:"participant"`
	IsWinner    json.RawMessage `json:"is_winner"`
	Role        string          `json:"role"`
}

func (r rawRow) toRow() (domain.ParticipantRow, bool) {
	id := domain.ParseID(strings.Trim(string(r.Participant), `"`))
	if id == 0 {
		id = domain.ParseID(string(r.Participant))
	}
	if id == 0 {
		return domain.ParticipantRow{}, false
	}
	return domain.ParticipantRow{
		Participant: id,
		IsWinner:    flexBool(r.IsWinner),
		Role:        strings.TrimSpace(r.Role),
	}, true
}

func flexBool(raw json.RawMessage) bool {
	v := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	switch strings.ToLower(v) {
	case "true", "1", "yes", "on":
		return true
	}
	return false
}

// detailsSource covers the structured repeater field under its plural and
// singular names, plus the degraded shapes the same keys were migrated
// through: scalar ID, JSON ID array, serialized array.
type detailsSource struct {
	repo *repository.EntityRepository
}

func (d *detailsSource) name() string { return "participants_details" }

func (d *detailsSource) rows(ctx context.Context, matchID int64) ([]domain.ParticipantRow, error) {
	for _, key := range []string{domain.AttrParticipantsDetails, domain.AttrParticipantDetails} {
		raw, err := d.repo.Attr(ctx, matchID, key)
		if err != nil {
			return nil, err
		}
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}

		if strings.HasPrefix(raw, "[") {
			var rawRows []rawRow
			if err := json.Unmarshal([]byte(raw), &rawRows); err == nil {
				var out []domain.ParticipantRow
				for _, rr := range rawRows {
					if row, ok := rr.toRow(); ok {
						out = append(out, row)
					}
				}
				if len(out) > 0 {
					return out, nil
				}
			}
		}

		// Scalar ID, JSON int array, CSV, or serialized array.
		if ids := domain.ParseIDList(raw); len(ids) > 0 {
			return idsToRows(ids, false), nil
		}
	}
	return nil, nil
}

var flattenedRowKey = regexp.MustCompile(`^participants?_details_(\d+)_(participant|is_winner|role)$`)

// flattenedSource rebuilds rows from sub-keyed attributes
// (participants_details_{i}_{field}) by index.
type flattenedSource struct {
	repo *repository.EntityRepository
}

func (f *flattenedSource) name() string { return "flattened_details" }

func (f *flattenedSource) rows(ctx context.Context, matchID int64) ([]domain.ParticipantRow, error) {
	attrs, err := f.repo.AttrsWithPrefix(ctx, matchID, "participant")
	if err != nil {
		return nil, err
	}
	byIndex := make(map[int]*domain.ParticipantRow)
	for key, value := range attrs {
		m := flattenedRowKey.FindStringSubmatch(key)
		if m == nil {
			continue
		}
		idx, _ := strconv.Atoi(m[1])
		row := byIndex[idx]
		if row == nil {
			row = &domain.ParticipantRow{}
			byIndex[idx] = row
		}
		switch m[2] {
		case "participant":
			row.Participant = domain.ParseID(value)
		case "is_winner":
			row.IsWinner = domain.ParseBool(value)
		case "role":
			row.Role = strings.TrimSpace(value)
		}
	}
	if len(byIndex) == 0 {
		return nil, nil
	}

	indexes := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indexes = append(indexes, idx)
	}
	sort.Ints(indexes)

	var out []domain.ParticipantRow
	for _, idx := range indexes {
		if byIndex[idx].Participant != 0 {
			out = append(out, *byIndex[idx])
		}
	}
	return out, nil
}

// legacyListSource reads simple list-valued participant attributes.
type legacyListSource struct {
	repo *repository.EntityRepository
	keys []string
}

func (l *legacyListSource) name() string { return "legacy_lists" }

func (l *legacyListSource) rows(ctx context.Context, matchID int64) ([]domain.ParticipantRow, error) {
	for _, key := range l.keys {
		ids, err := l.repo.AttrIDList(ctx, matchID, key)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			return idsToRows(ids, false), nil
		}
	}
	return nil, nil
}

// winnersOnlySource is the last resort: a winners-only attribute produces
// winner rows and nothing else.
type winnersOnlySource struct {
	repo *repository.EntityRepository
}

func (w *winnersOnlySource) name() string { return "winners_only" }

func (w *winnersOnlySource) rows(ctx context.Context, matchID int64) ([]domain.ParticipantRow, error) {
	for _, key := range []string{domain.AttrWFWinners, domain.AttrWinners} {
		ids, err := w.repo.AttrIDList(ctx, matchID, key)
		if err != nil {
			return nil, err
		}
		if len(ids) > 0 {
			return idsToRows(ids, true), nil
		}
	}
	return nil, nil
}

func idsToRows(ids []int64, winners bool) []domain.ParticipantRow {
	rows := make([]domain.ParticipantRow, 0, len(ids))
	for _, id := range domain.DedupeIDs(ids) {
		rows = append(rows, domain.ParticipantRow{Participant: id, IsWinner: winners})
	}
	return rows
}
