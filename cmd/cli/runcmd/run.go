package runcmd

import (
	"context"
	"log"

	"github.com/jmoiron/sqlx"
	"github.com/spf13/cobra"

	"bgtask/internal/config"
	"bgtask/internal/database"
	"bgtask/internal/signals"
	"bgtask/internal/store"
)

var Command = &cobra.Command{
	Use:   "run",
	Short: "Run service",
	Long:  "Run service from a selected list of services",
}

var MigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Creates the task schema and tables",
	Run: func(cmd *cobra.Command, args []string) {
		conf := config.FromCobraCmd(cmd)
		db := mustDatabase(conf)
		defer func() { _ = db.Close() }()

		if err := store.NewPostgresStore(db).EnsureSchema(context.Background()); err != nil {
			log.Fatalf("Could not migrate database: %v", err)
		}
	},
}

func init() {
	Command.AddCommand(workerCmd)
}

func mustDatabase(conf *config.BGConfig) *sqlx.DB {
	db, err := database.New(conf)
	if err != nil {
		log.Fatalf("Could not connect to database: %v", err)
	}

	return db
}

// buildNotifier assembles the signal fan-out: always the in-process hub, plus
// the Redis publisher when the notification queue is enabled.
func buildNotifier(conf *config.BGConfig) (signals.Notifier, func()) {
	hub := signals.NewHub()
	if !conf.Queue.Enabled {
		return hub, func() {}
	}

	rn, err := signals.NewRedisNotifier(conf.Queue.Host, conf.Queue.Password, conf.Queue.DB)
	if err != nil {
		log.Fatalf("Could not connect to redis notification queue: %v", err)
	}
	return signals.Fanout{hub, rn}, func() { _ = rn.Close() }
}
