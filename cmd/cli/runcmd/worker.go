package runcmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"bgtask/internal/config"
	"bgtask/internal/scheduler"
	"bgtask/internal/store"
	"bgtask/internal/worker"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs a worker process",
	Run: func(cmd *cobra.Command, args []string) {
		log.Info().Msg("Running worker process")
		conf := config.FromCobraCmd(cmd)

		db := mustDatabase(conf)
		notifier, closeNotifier := buildNotifier(conf)

		st := store.NewPostgresStore(db)
		clock := scheduler.SystemClock()
		schedConf := conf.SchedulerConfig()

		sched := scheduler.New(st, clock, schedConf)
		retry := scheduler.NewRetryEngine(st, clock, schedConf, notifier)
		repeat := scheduler.NewRepeatEngine(st, clock)

		wrk := worker.New(st, clock, schedConf, sched, retry, repeat, worker.DefaultRegistry)
		wrk.Queue = conf.Worker.Queue
		wrk.SleepDuration = time.Duration(conf.Worker.SleepDuration) * time.Second

		janitor := scheduler.NewJanitor(st, clock, conf.Janitor.Cron,
			time.Duration(conf.Janitor.RetentionDays)*24*time.Hour)

		ctx, cancel := context.WithCancel(context.Background())

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

		if err := janitor.Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Failed to start janitor")
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- wrk.Start(ctx)
		}()

		defer func() {
			if err := db.Close(); err != nil {
				log.Printf("Could not close db cleanly on shutdown: %v\n", err)
			}

			closeNotifier()
			janitor.Stop()
			cancel()
		}()

		select {
		case err := <-errCh:
			if err != nil && ctx.Err() == nil {
				log.Fatal().Err(err).Str("worker_id", wrk.ID).Msg("Ran into problems")
			}
		case sig := <-sigCh:
			log.Info().Msgf("Received signal %v, shutting down...", sig)
		}
	},
}
