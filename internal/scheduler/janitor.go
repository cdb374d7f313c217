package scheduler

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"bgtask/internal/store"
)

// Janitor periodically purges archived records older than the configured
// retention, so the completed table does not grow without bound.
type Janitor struct {
	store     store.TaskStore
	clock     Clock
	cronSpec  string
	retention time.Duration
	cron      *cron.Cron

	isRunning  bool
	context    context.Context
	cancelFunc context.CancelFunc
}

// NewJanitor creates a janitor that runs on the given cron expression and
// deletes completed records older than retention. A zero retention disables
// purging entirely.
func NewJanitor(st store.TaskStore, clock Clock, cronSpec string, retention time.Duration) *Janitor {
	c := cron.New(cron.WithLocation(time.UTC))
	return &Janitor{
		store:     st,
		clock:     clock,
		cronSpec:  cronSpec,
		retention: retention,
		cron:      c,
	}
}

// Start begins the purge schedule. It returns without error when retention is
// zero, leaving the janitor idle.
func (j *Janitor) Start(ctx context.Context) error {
	if j.isRunning || j.retention <= 0 {
		return nil
	}

	j.isRunning = true
	j.context, j.cancelFunc = context.WithCancel(ctx)

	if _, err := j.cron.AddFunc(j.cronSpec, func() {
		if j.context.Err() != nil {
			return
		}
		j.purge(j.context)
	}); err != nil {
		j.isRunning = false
		return err
	}

	j.cron.Start()
	return nil
}

// Stop halts the purge schedule.
func (j *Janitor) Stop() {
	if !j.isRunning {
		return
	}

	j.cancelFunc()
	j.cron.Stop()
	j.isRunning = false
}

func (j *Janitor) purge(ctx context.Context) {
	cutoff := j.clock.Now().Add(-j.retention)

	count, err := j.store.PurgeCompleted(ctx, cutoff)
	if err != nil {
		log.Error().Err(err).Msg("Failed to purge completed tasks")
		return
	}
	if count > 0 {
		log.Info().
			Int64("purged", count).
			Time("cutoff", cutoff).
			Msg("Purged old completed tasks")
	}
}
