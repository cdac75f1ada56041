// Package maintenance runs the periodic settlement-rollover and
// day-trade-counter GC jobs on a cron schedule, grounded on the teacher's
// minimal cron.Job registry (trader-go/internal/scheduler/scheduler.go).
// This is genuinely cron-shaped (calendar-aligned rollover), distinct
// from the fixed-interval ticker loops in internal/scheduler.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Job mirrors the teacher's scheduler.Job interface.
type Job interface {
	Run(ctx context.Context) error
	Name() string
}

// Runner wraps robfig/cron, logging each job's outcome the way the
// teacher's Scheduler.AddJob does.
type Runner struct {
	cron *cron.Cron
	log  zerolog.Logger
}

func New(log zerolog.Logger) *Runner {
	return &Runner{
		cron: cron.New(),
		log:  log.With().Str("component", "maintenance").Logger(),
	}
}

func (r *Runner) Start() { r.cron.Start() }

func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
}

// AddJob registers job on a standard 5-field cron schedule string.
func (r *Runner) AddJob(schedule string, job Job) error {
	_, err := r.cron.AddFunc(schedule, func() {
		r.log.Debug().Str("job", job.Name()).Msg("running maintenance job")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := job.Run(ctx); err != nil {
			r.log.Error().Err(err).Str("job", job.Name()).Msg("maintenance job failed")
			return
		}
		r.log.Debug().Str("job", job.Name()).Msg("maintenance job completed")
	})
	if err != nil {
		return err
	}
	r.log.Info().Str("schedule", schedule).Str("job", job.Name()).Msg("maintenance job registered")
	return nil
}
