package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/spigell/job-harvester/internal/listing"
	"github.com/spigell/job-harvester/internal/schedule"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the saved searches of the config on their cron schedules",
	Run: func(cmd *cobra.Command, _ []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		config, logger := bootstrap()
		if len(config.Schedule.Searches) == 0 {
			logger.Fatal("no saved searches", zap.String("hint", "add entries under schedule.searches"))
		}

		svc, err := newServices(ctx, config, logger)
		if err != nil {
			logger.Fatal("building services", zap.Error(err))
		}
		defer svc.Close()

		dump, _ := cmd.Flags().GetBool("dump")
		scheduler, err := schedule.New(svc.pipeline, svc.seen, config.Schedule.Searches, logger,
			schedule.WithTimeout(config.Schedule.Timeout),
			schedule.WithReport(func(_ context.Context, run schedule.Run) { reportRun(logger, run, dump) }),
		)
		if err != nil {
			logger.Fatal("building the scheduler", zap.Error(err))
		}

		if once, _ := cmd.Flags().GetBool("once"); once {
			for _, search := range config.Schedule.Searches {
				scheduler.RunOnce(ctx, search)
			}
			return
		}

		if err := scheduler.Start(ctx); err != nil {
			logger.Fatal("starting the scheduler", zap.Error(err))
		}
		<-ctx.Done()
		scheduler.Stop()
	},
}

func init() {
	rootCmd.AddCommand(scheduleCmd)

	scheduleCmd.Flags().Bool("once", false, "run every saved search once and exit")
	scheduleCmd.Flags().Bool("dump", false, "dump the new listings of every run to a file")
}

func reportRun(logger *zap.Logger, run schedule.Run, dump bool) {
	log := logger.With(zap.String("search", run.Search.Name))
	if run.Err != nil {
		log.Warn("saved search produced nothing", zap.Error(run.Err))
		return
	}
	if len(run.Listings) == 0 {
		log.Info("no new listings", zap.Duration("duration", run.Duration))
		return
	}

	listings := &listing.Listings{Items: run.Listings}
	showListings(log, listings)

	if dump {
		filename, err := listings.DumpToTmpFile()
		if err != nil {
			log.Error("dump results to file", zap.Error(err))
			return
		}
		log.Info("dumping result to file", zap.String("filename", filename))
	}
}
