package fx

import (
	"wrestling-tracker/internal/config"
	"wrestling-tracker/internal/constants"
	"wrestling-tracker/internal/database"
	"wrestling-tracker/internal/events"
	"wrestling-tracker/internal/lock"
	"wrestling-tracker/internal/logger"
	"wrestling-tracker/internal/repository"
	"wrestling-tracker/internal/server"
	"wrestling-tracker/internal/service"

	"go.uber.org/fx"
)

func ProvideLocks() *lock.Keyed {
	return lock.NewKeyed(constants.ReignLockTTL)
}

var Module = fx.Options(
	fx.Provide(logger.New),
	fx.Provide(config.Load),
	fx.Provide(database.New),
	fx.Provide(ProvideLocks),
	fx.Provide(events.NewNotifier),
	// repos
	fx.Provide(repository.NewEntityRepository),
	// svc
	fx.Provide(service.NewMatchTypeConfig),
	fx.Provide(service.NewParticipantService),
	fx.Provide(service.NewTeamService),
	fx.Provide(service.NewClassifierService),
	fx.Provide(service.NewSnapshotService),
	fx.Provide(service.NewCounterService),
	fx.Provide(service.NewReignService),
	fx.Provide(service.NewLifecycleService),
	fx.Provide(service.NewSweepService),
	// server
	fx.Provide(server.NewTrackerServer),
)
