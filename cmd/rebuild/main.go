package main

import (
	"context"
	"fmt"
	"os"
	"wrestling-tracker/internal/config"
	"wrestling-tracker/internal/database"
	"wrestling-tracker/internal/logger"
	"wrestling-tracker/internal/repository"
	"wrestling-tracker/internal/service"

	"github.com/spf13/cobra"
)

func main() {
	var (
		action       string
		matchIDs     []int64
		superstarIDs []int64
		all          bool
		dry          bool
	)

	rootCmd := &cobra.Command{
		Use:   "rebuild",
		Short: "Rebuild match snapshots and superstar records",
		Long: `Runs the maintenance sweep against the tracker database: rebuilds
match snapshots, recomputes superstar win/loss records, or both.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), service.RebuildRequest{
				Action:       action,
				MatchIDs:     matchIDs,
				SuperstarIDs: superstarIDs,
				All:          all,
				Dry:          dry,
			})
		},
	}

	rootCmd.Flags().StringVar(&action, "action", service.ActionBoth, "update_snapshots, recompute, or both")
	rootCmd.Flags().Int64SliceVar(&matchIDs, "match-ids", nil, "match IDs to rebuild snapshots for")
	rootCmd.Flags().Int64SliceVar(&superstarIDs, "superstar-ids", nil, "superstar IDs to recompute")
	rootCmd.Flags().BoolVar(&all, "all", false, "target every match and every referenced superstar")
	rootCmd.Flags().BoolVar(&dry, "dry", false, "report what would be touched without writing")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, req service.RebuildRequest) error {
	log := logger.New()

	cfg, err := config.Load(log)
	if err != nil {
		return err
	}
	db, err := database.New(cfg, log)
	if err != nil {
		return err
	}
	defer db.Close()

	repo := repository.NewEntityRepository(db, log)
	types := service.NewMatchTypeConfig()
	participants := service.NewParticipantService(repo, log)
	teams := service.NewTeamService(repo, log)
	classifier := service.NewClassifierService(repo, participants, teams, types, log)
	snapshots := service.NewSnapshotService(repo, participants, teams, classifier, log)
	counters := service.NewCounterService(repo, participants, teams, classifier, log)
	sweep := service.NewSweepService(repo, snapshots, counters, log)

	report, err := sweep.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Printf("action=%s dry=%v matches=%d superstars=%d snapshots_updated=%d counters_rebuilt=%d errors=%d\n",
		report.Action, report.Dry, report.MatchesSelected, report.SuperstarsTargets,
		report.SnapshotsUpdated, report.CountersRebuilt, len(report.Errors))
	for id, msg := range report.Errors {
		fmt.Printf("  entity %d: %s\n", id, msg)
	}
	return nil
}
