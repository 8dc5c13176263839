package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"wrestling-tracker/internal/config"
	"wrestling-tracker/internal/domain"
	"wrestling-tracker/internal/repository"
	"wrestling-tracker/internal/service"

	"github.com/rs/zerolog"
)

// TrackerServer exposes the reconciliation engine as a JSON API for the
// editorial frontend and admin tooling.
type TrackerServer struct {
	repo         *repository.EntityRepository
	participants *service.ParticipantService
	teams        *service.TeamService
	classifier   *service.ClassifierService
	snapshots    *service.SnapshotService
	counters     *service.CounterService
	reigns       *service.ReignService
	lifecycle    *service.LifecycleService
	sweep        *service.SweepService
	cfg          *config.Config
	logger       zerolog.Logger
}

func NewTrackerServer(
	repo *repository.EntityRepository,
	participants *service.ParticipantService,
	teams *service.TeamService,
	classifier *service.ClassifierService,
	snapshots *service.SnapshotService,
	counters *service.CounterService,
	reigns *service.ReignService,
	lifecycle *service.LifecycleService,
	sweep *service.SweepService,
	cfg *config.Config,
	logger zerolog.Logger,
) *TrackerServer {
	return &TrackerServer{
		repo:         repo,
		participants: participants,
		teams:        teams,
		classifier:   classifier,
		snapshots:    snapshots,
		counters:     counters,
		reigns:       reigns,
		lifecycle:    lifecycle,
		sweep:        sweep,
		cfg:          cfg,
		logger:       logger,
	}
}

func (s *TrackerServer) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/matches/{id}/participants", s.handleParticipants)
	mux.HandleFunc("GET /api/v1/matches/{id}/tag", s.handleTagVerdict)
	mux.HandleFunc("GET /api/v1/teams/{id}/members", s.handleTeamMembers)
	mux.HandleFunc("POST /api/v1/matches/{id}/snapshot", s.handleSnapshot)
	mux.HandleFunc("POST /api/v1/matches/{id}/save", s.handleSave)
	mux.HandleFunc("DELETE /api/v1/matches/{id}", s.handleMatchDelete)
	mux.HandleFunc("POST /api/v1/wrestlers/{id}/recompute", s.handleRecompute)
	mux.HandleFunc("GET /api/v1/wrestlers/{id}/record", s.handleRecord)
	mux.HandleFunc("POST /api/v1/reigns/{id}/apply", s.handleReignApply)
	mux.HandleFunc("DELETE /api/v1/reigns/{id}", s.handleReignDelete)
	mux.HandleFunc("POST /api/v1/admin/rebuild", s.handleRebuild)
}

func (s *TrackerServer) handleParticipants(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rows, err := s.participants.Resolve(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	expanded, err := s.teams.ExpandRows(r.Context(), rows)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"match_id":     id,
		"participants": rows,
		"expanded":     expanded,
	})
}

func (s *TrackerServer) handleTagVerdict(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rows, err := s.participants.Resolve(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	expanded, err := s.teams.ExpandRows(r.Context(), rows)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	isTag, err := s.classifier.IsTag(r.Context(), id, expanded, rows)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"match_id": id, "is_tag": isTag})
}

func (s *TrackerServer) handleTeamMembers(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	members, err := s.teams.Expand(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"team_id": id, "members": members})
}

func (s *TrackerServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	updated, err := s.snapshots.Update(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	snap, err := s.snapshots.Snapshot(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": updated, "snapshot": snap})
}

func (s *TrackerServer) handleSave(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var posted map[string]string
	if err := json.NewDecoder(r.Body).Decode(&posted); err != nil {
		writeError(w, http.StatusBadRequest, "invalid save payload")
		return
	}
	result, err := s.lifecycle.SaveMatch(r.Context(), id, posted)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *TrackerServer) handleMatchDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.lifecycle.HandleMatchRemoval(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *TrackerServer) handleRecompute(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	done, err := s.counters.Recompute(r.Context(), id)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"superstar_id": id, "recomputed": done})
}

func (s *TrackerServer) handleRecord(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var counters domain.Counters
	values := []*int{
		&counters.TotalMatches, &counters.Wins, &counters.Losses, &counters.Draws, &counters.NoContests,
		&counters.TagMatches, &counters.TagWins, &counters.TagLosses, &counters.TagDraws, &counters.TagNoContests,
	}
	for i, key := range domain.CounterAttrKeys {
		v, err := s.repo.AttrInt(r.Context(), id, key)
		if err != nil {
			s.fail(w, r, err)
			return
		}
		*values[i] = v
	}
	titles, err := s.repo.AttrIDList(r.Context(), id, domain.AttrCurrentTitles)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	reignCount, err := s.repo.AttrInt(r.Context(), id, domain.AttrTitleReignCount)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"superstar_id":   id,
		"record":         counters,
		"current_titles": titles,
		"reign_count":    reignCount,
	})
}

func (s *TrackerServer) handleReignApply(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var body struct {
		Manual bool `json:"manual"`
	}
	if r.Body != nil {
		// An empty body means a non-manual apply.
		_ = json.NewDecoder(r.Body).Decode(&body)
	}
	result, err := s.reigns.Apply(r.Context(), id, service.ApplyOptions{Manual: body.Manual})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	status := http.StatusOK
	if result.Status != domain.StatusOK {
		status = http.StatusConflict
	}
	writeJSON(w, status, result)
}

func (s *TrackerServer) handleReignDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.reigns.ReverseSnapshotEffects(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	if err := s.repo.Delete(r.Context(), id); err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"deleted": id})
}

func (s *TrackerServer) handleRebuild(w http.ResponseWriter, r *http.Request) {
	if !s.authorized(r) {
		writeError(w, http.StatusForbidden, "admin token required")
		return
	}
	var req service.RebuildRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid rebuild request")
		return
	}
	report, err := s.sweep.Run(r.Context(), req)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *TrackerServer) authorized(r *http.Request) bool {
	if s.cfg.AdminToken == "" {
		return false
	}
	token := r.Header.Get("X-Admin-Token")
	return subtle.ConstantTimeCompare([]byte(token), []byte(s.cfg.AdminToken)) == 1
}

func (s *TrackerServer) fail(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error().Str("path", r.URL.Path).Err(err).Msg("request failed")
	writeError(w, http.StatusInternalServerError, "internal error")
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": domain.StatusError, "message": message})
}
