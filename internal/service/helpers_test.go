package service

import (
	"context"
	"database/sql"
	"testing"
	"time"
	"wrestling-tracker/internal/database"
	"wrestling-tracker/internal/domain"
	"wrestling-tracker/internal/events"
	"wrestling-tracker/internal/lock"
	"wrestling-tracker/internal/repository"

	_ "github.com/mattn/go-sqlite3"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	db           *sql.DB
	repo         *repository.EntityRepository
	types        *MatchTypeConfig
	participants *ParticipantService
	teams        *TeamService
	classifier   *ClassifierService
	snapshots    *SnapshotService
	counters     *CounterService
	reigns       *ReignService
	lifecycle    *LifecycleService
	sweep        *SweepService
	locks        *lock.Keyed
	notifier     *events.Notifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec("PRAGMA foreign_keys = ON")
	require.NoError(t, err)

	log := zerolog.Nop()
	require.NoError(t, database.Migrate(db, log))

	env := &testEnv{
		db:       db,
		repo:     repository.NewEntityRepository(db, log),
		types:    NewMatchTypeConfig(),
		locks:    lock.NewKeyed(10 * time.Second),
		notifier: events.NewNotifier(log),
	}
	env.participants = NewParticipantService(env.repo, log)
	env.teams = NewTeamService(env.repo, log)
	env.classifier = NewClassifierService(env.repo, env.participants, env.teams, env.types, log)
	env.snapshots = NewSnapshotService(env.repo, env.participants, env.teams, env.classifier, log)
	env.counters = NewCounterService(env.repo, env.participants, env.teams, env.classifier, log)
	env.reigns = NewReignService(env.repo, env.counters, env.snapshots, env.locks, env.notifier, log)
	env.lifecycle = NewLifecycleService(env.repo, env.participants, env.teams, env.snapshots, env.counters, env.reigns, log)
	env.sweep = NewSweepService(env.repo, env.snapshots, env.counters, log)
	return env
}

func (e *testEnv) createEntity(t *testing.T, entityType, title string) int64 {
	t.Helper()
	id, err := e.repo.Create(context.Background(), &domain.Entity{Type: entityType, Title: title})
	require.NoError(t, err)
	return id
}

func (e *testEnv) setAttr(t *testing.T, id int64, key, value string) {
	t.Helper()
	require.NoError(t, e.repo.SetAttr(context.Background(), id, key, value))
}

func (e *testEnv) attr(t *testing.T, id int64, key string) string {
	t.Helper()
	v, err := e.repo.Attr(context.Background(), id, key)
	require.NoError(t, err)
	return v
}

func (e *testEnv) counterValue(t *testing.T, superstarID int64, key string) int {
	t.Helper()
	v, err := e.repo.AttrInt(context.Background(), superstarID, key)
	require.NoError(t, err)
	return v
}

// newMatch creates a match with a structured participant repeater.
func (e *testEnv) newMatch(t *testing.T, detailsJSON string) int64 {
	t.Helper()
	id := e.createEntity(t, domain.TypeMatch, "Match")
	if detailsJSON != "" {
		e.setAttr(t, id, domain.AttrParticipantsDetails, detailsJSON)
	}
	return id
}
